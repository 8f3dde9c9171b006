package models

import "time"

// ReplyInfo is the render-time snapshot of a reply target. It is resolved on
// every read, never stored, so editing the target is reflected immediately and
// a deleted target simply resolves to nothing.
type ReplyInfo struct {
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}

// Message is one chat message. Seq is allocated per room and strictly
// increasing, which makes it both the ordering and the deduplication key for
// clients merging the live channel with history fetches.
type Message struct {
	Seq         int64      `bson:"seq" json:"id"`
	RoomID      string     `bson:"room_id" json:"room_id"`
	SenderID    string     `bson:"sender_id" json:"sender_id"`
	SenderName  string     `bson:"sender_name" json:"sender_name"`
	Content     string     `bson:"content" json:"content"`
	ReplyTo     *int64     `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	ReplyToInfo *ReplyInfo `bson:"-" json:"reply_to_info,omitempty"`
	IsRead      bool       `bson:"is_read" json:"is_read"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	EditedAt    *time.Time `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
}
