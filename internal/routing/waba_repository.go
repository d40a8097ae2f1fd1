package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courier/internal/constants"
	apperrors "courier/pkg/errors"
)

type WabaRepository interface {
	Get(ctx context.Context, wabaID string) (*WabaRoute, error)
	Upsert(ctx context.Context, route WabaRoute) (*WabaRoute, error)
}

type MongoWabaRepository struct {
	collection *mongo.Collection
}

func NewWabaRepository(db *mongo.Database) WabaRepository {
	return &MongoWabaRepository{
		collection: db.Collection(constants.WabaRoutesCollection),
	}
}

func (r *MongoWabaRepository) Get(ctx context.Context, wabaID string) (*WabaRoute, error) {
	var route WabaRoute
	err := r.collection.FindOne(ctx, bson.M{"wabaId": wabaID}).Decode(&route)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound.WithDetail("message", "no routing entry for waba '"+wabaID+"'")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load waba route: %w", err)
	}
	return &route, nil
}

func (r *MongoWabaRepository) Upsert(ctx context.Context, route WabaRoute) (*WabaRoute, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"targetUrl": route.TargetURL,
			"enabled":   route.Enabled,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"wabaId":    route.WabaID,
			"createdAt": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored WabaRoute
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"wabaId": route.WabaID}, update, opts).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert waba route: %w", err)
	}
	return &stored, nil
}
