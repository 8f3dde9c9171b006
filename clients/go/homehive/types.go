package homehive

import "time"

type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type PropertySummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CoverImage string `json:"cover_image,omitempty"`
}

type ReplyInfo struct {
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}

type Message struct {
	ID          int64      `json:"id"`
	RoomID      string     `json:"room_id"`
	SenderID    string     `json:"sender_id"`
	SenderName  string     `json:"sender_name"`
	Content     string     `json:"content"`
	ReplyTo     *int64     `json:"reply_to,omitempty"`
	ReplyToInfo *ReplyInfo `json:"reply_to_info,omitempty"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
}

type Room struct {
	ID               string          `json:"id"`
	PropertyID       string          `json:"property_id"`
	TenantID         string          `json:"tenant_id"`
	LandlordID       string          `json:"landlord_id"`
	Tenant           UserSummary     `json:"tenant"`
	Landlord         UserSummary     `json:"landlord"`
	Property         PropertySummary `json:"property"`
	LastMessage      *Message        `json:"last_message,omitempty"`
	OtherParticipant UserSummary     `json:"other_participant"`
	UnreadCount      int64           `json:"unread_count"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Frame is the live channel envelope.
type Frame struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	RoomID    string   `json:"room_id,omitempty"`
	MessageID int64    `json:"message_id,omitempty"`
	Error     string   `json:"error,omitempty"`
}

const (
	FrameMessage        = "message"
	FrameMessageEdited  = "message_edited"
	FrameMessageDeleted = "message_deleted"
	FrameError          = "error"
)
