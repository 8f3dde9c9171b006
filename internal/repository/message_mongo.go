package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/homehive/chat-service/internal/apperr"
	"github.com/homehive/chat-service/internal/models"
)

type mongoMessageRepo struct {
	msgs     *mongo.Collection
	counters *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &mongoMessageRepo{
		msgs:     db.Collection(messagesCollection),
		counters: db.Collection(countersCollection),
	}
}

// nextSeq atomically allocates the next per-room sequence number. The counter
// document is upserted on first use, so rooms need no setup step.
func (r *mongoMessageRepo) nextSeq(ctx context.Context, roomID string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": roomID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

func (r *mongoMessageRepo) Append(ctx context.Context, m *models.Message) (*models.Message, error) {
	seq, err := r.nextSeq(ctx, m.RoomID)
	if err != nil {
		return nil, err
	}
	m.Seq = seq
	m.CreatedAt = time.Now().UTC()
	m.IsRead = false
	if _, err := r.msgs.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *mongoMessageRepo) Get(ctx context.Context, roomID string, seq int64) (*models.Message, error) {
	var m models.Message
	err := r.msgs.FindOne(ctx, bson.M{"room_id": roomID, "seq": seq}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageRepo) List(ctx context.Context, roomID string, limit int64, beforeSeq int64) ([]*models.Message, error) {
	filter := bson.M{"room_id": roomID}
	if beforeSeq > 0 {
		filter["seq"] = bson.M{"$lt": beforeSeq}
	}
	// newest page first, then reversed to chronological order
	cur, err := r.msgs.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *mongoMessageRepo) UpdateContent(ctx context.Context, roomID string, seq int64, content string, editedAt time.Time) error {
	res, err := r.msgs.UpdateOne(ctx,
		bson.M{"room_id": roomID, "seq": seq},
		bson.M{"$set": bson.M{"content": content, "edited_at": editedAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *mongoMessageRepo) Delete(ctx context.Context, roomID string, seq int64) error {
	res, err := r.msgs.DeleteOne(ctx, bson.M{"room_id": roomID, "seq": seq})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *mongoMessageRepo) MarkRead(ctx context.Context, roomID, readerID string) (int64, error) {
	res, err := r.msgs.UpdateMany(ctx,
		bson.M{"room_id": roomID, "sender_id": bson.M{"$ne": readerID}, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoMessageRepo) CountUnread(ctx context.Context, roomID, userID string) (int64, error) {
	return r.msgs.CountDocuments(ctx, bson.M{
		"room_id":   roomID,
		"sender_id": bson.M{"$ne": userID},
		"is_read":   false,
	})
}

func (r *mongoMessageRepo) Last(ctx context.Context, roomID string) (*models.Message, error) {
	var m models.Message
	err := r.msgs.FindOne(ctx, bson.M{"room_id": roomID},
		options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
