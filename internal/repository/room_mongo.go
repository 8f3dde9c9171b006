package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/homehive/chat-service/internal/apperr"
	"github.com/homehive/chat-service/internal/models"
)

type mongoRoomRepo struct {
	col *mongo.Collection
}

func NewMongoRoomRepository(db *mongo.Database) RoomRepository {
	return &mongoRoomRepo{col: db.Collection(roomsCollection)}
}

type mongoRoom struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty"`
	PropertyID  string                 `bson:"property_id"`
	TenantID    string                 `bson:"tenant_id"`
	LandlordID  string                 `bson:"landlord_id"`
	Tenant      models.UserSummary     `bson:"tenant"`
	Landlord    models.UserSummary     `bson:"landlord"`
	Property    models.PropertySummary `bson:"property"`
	LastMessage *models.Message        `bson:"last_message,omitempty"`
	CreatedAt   time.Time              `bson:"created_at"`
	UpdatedAt   time.Time              `bson:"updated_at"`
}

func (d *mongoRoom) toModel() *models.Room {
	return &models.Room{
		ID:          d.ID.Hex(),
		PropertyID:  d.PropertyID,
		TenantID:    d.TenantID,
		LandlordID:  d.LandlordID,
		Tenant:      d.Tenant,
		Landlord:    d.Landlord,
		Property:    d.Property,
		LastMessage: d.LastMessage,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (r *mongoRoomRepo) GetOrCreate(ctx context.Context, room *models.Room) (*models.Room, bool, error) {
	now := time.Now().UTC()
	doc := mongoRoom{
		PropertyID: room.PropertyID,
		TenantID:   room.TenantID,
		LandlordID: room.LandlordID,
		Tenant:     room.Tenant,
		Landlord:   room.Landlord,
		Property:   room.Property,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, ferr := r.findByPair(ctx, room.PropertyID, room.TenantID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toModel(), true, nil
}

func (r *mongoRoomRepo) findByPair(ctx context.Context, propertyID, tenantID string) (*models.Room, error) {
	var doc mongoRoom
	err := r.col.FindOne(ctx, bson.M{"property_id": propertyID, "tenant_id": tenantID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *mongoRoomRepo) Get(ctx context.Context, id string) (*models.Room, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var doc mongoRoom
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *mongoRoomRepo) ListByUser(ctx context.Context, userID string) ([]*models.Room, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"tenant_id": userID},
		bson.M{"landlord_id": userID},
	}}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Room
	for cur.Next(ctx) {
		var doc mongoRoom
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toModel())
	}
	return out, cur.Err()
}

func (r *mongoRoomRepo) Touch(ctx context.Context, roomID string, last *models.Message) error {
	oid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return apperr.ErrNotFound
	}
	update := bson.M{"$set": bson.M{
		"updated_at":   time.Now().UTC(),
		"last_message": last,
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
