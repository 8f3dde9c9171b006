package models

import "time"

// UserSummary is the denormalized participant snapshot embedded in a room,
// captured when the room is created so list views never call the user service.
type UserSummary struct {
	ID     string `bson:"id" json:"id"`
	Name   string `bson:"name" json:"name"`
	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

// PropertySummary is the denormalized listing snapshot embedded in a room.
type PropertySummary struct {
	ID         string `bson:"id" json:"id"`
	Title      string `bson:"title" json:"title"`
	CoverImage string `bson:"cover_image,omitempty" json:"cover_image,omitempty"`
}

// Room is the persistent two-party conversation for one property.
// At most one room exists per (property, tenant) pair.
type Room struct {
	ID          string          `bson:"_id,omitempty" json:"id"`
	PropertyID  string          `bson:"property_id" json:"property_id"`
	TenantID    string          `bson:"tenant_id" json:"tenant_id"`
	LandlordID  string          `bson:"landlord_id" json:"landlord_id"`
	Tenant      UserSummary     `bson:"tenant" json:"tenant"`
	Landlord    UserSummary     `bson:"landlord" json:"landlord"`
	Property    PropertySummary `bson:"property" json:"property"`
	LastMessage *Message        `bson:"last_message,omitempty" json:"last_message,omitempty"`
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at" json:"updated_at"`
}

func (r *Room) HasParticipant(userID string) bool {
	return userID == r.TenantID || userID == r.LandlordID
}

// OtherParticipant returns the participant that is not userID.
func (r *Room) OtherParticipant(userID string) UserSummary {
	if userID == r.TenantID {
		return r.Landlord
	}
	return r.Tenant
}
