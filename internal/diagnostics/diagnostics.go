package diagnostics

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"courier/internal/constants"
	"courier/internal/logger"
	"courier/pkg/metrics"
)

// Event is one operator-facing diagnostic record. Events are append-only;
// nothing in the pipeline reads them back.
type Event struct {
	Type       string    `bson:"type"`
	Carrier    string    `bson:"carrier"`
	Ref        string    `bson:"ref"`
	Detail     string    `bson:"detail,omitempty"`
	RecordedAt time.Time `bson:"recordedAt"`
}

type Store struct {
	collection *mongo.Collection
	logger     logger.Logger
}

func NewStore(db *mongo.Database, log logger.Logger) *Store {
	return &Store{
		collection: db.Collection(constants.DiagnosticEventsCollection),
		logger:     log,
	}
}

// Record persists one event. Failures are logged and swallowed: diagnostics
// must never fail the message path that reports them.
func (s *Store) Record(ctx context.Context, eventType, carrierName, ref, detail string) {
	metrics.DiagnosticEventsTotal.WithLabelValues(eventType, carrierName).Inc()

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultMongoOperationTimeout)
	defer cancel()

	_, err := s.collection.InsertOne(insertCtx, Event{
		Type:       eventType,
		Carrier:    carrierName,
		Ref:        ref,
		Detail:     detail,
		RecordedAt: time.Now(),
	})
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record diagnostic event",
			"event_type", eventType,
			"carrier", carrierName,
			"ref", ref,
			"error", err,
		)
	}
}
