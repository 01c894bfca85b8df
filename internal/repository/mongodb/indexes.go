package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes listings and logins rely on. It is
// idempotent and safe to run on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	reports := []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "priority", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{
			{Key: "location.coordinates.latitude", Value: 1},
			{Key: "location.coordinates.longitude", Value: 1},
		}},
	}
	if _, err := db.Collection(reportsCollection).Indexes().CreateMany(ctx, reports); err != nil {
		return err
	}

	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, users)
	return err
}
