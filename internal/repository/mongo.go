package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	roomsCollection    = "rooms"
	messagesCollection = "messages"
	countersCollection = "counters"
)

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. The unique
// (property_id, tenant_id) index is what makes concurrent room creation
// collapse to a single room.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(roomsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "property_id", Value: 1}, {Key: "tenant_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "landlord_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "is_read", Value: 1}}},
	})
	return err
}
