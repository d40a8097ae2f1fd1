package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courier/internal/constants"
)

// EnsureMongoCollections creates the indexes the routing table and the
// diagnostics stream rely on. Diagnostic events age out after thirty days.
func EnsureMongoCollections(ctx context.Context, db *mongo.Database) error {
	wabaIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "wabaId", Value: 1}},
			Options: options.Index().SetName("idx_waba_routes_waba_id").SetUnique(true),
		},
	}
	if err := createIndexes(ctx, db.Collection(constants.WabaRoutesCollection), wabaIndexes); err != nil {
		return err
	}

	diagIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "recordedAt", Value: -1}},
			Options: options.Index().SetName("idx_diagnostics_type_recorded_at"),
		},
		{
			Keys:    bson.D{{Key: "recordedAt", Value: 1}},
			Options: options.Index().SetName("idx_diagnostics_ttl").SetExpireAfterSeconds(30 * 24 * 3600),
		},
	}
	return createIndexes(ctx, db.Collection(constants.DiagnosticEventsCollection), diagIndexes)
}

func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", collection.Name(), err)
	}
	return nil
}
