// Package events publishes chat activity to kafka for the notification
// pipeline (navigation badge, push delivery). Publishing is best effort: the
// chat core never fails an operation because an event could not be written.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeMessageSent    = "message_sent"
	TypeMessageEdited  = "message_edited"
	TypeMessageDeleted = "message_deleted"
	TypeRoomRead       = "room_read"
)

type Event struct {
	Type        string    `json:"type"`
	RoomID      string    `json:"room_id"`
	MessageID   int64     `json:"message_id,omitempty"`
	SenderID    string    `json:"sender_id,omitempty"`
	RecipientID string    `json:"recipient_id,omitempty"`
	At          time.Time `json:"at"`
}

type Publisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w, log: log}
}

// Publish is nil-safe so callers can hold a nil *Publisher when kafka is not
// configured.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.writer == nil {
		return
	}
	ev.At = time.Now().UTC()
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Warnw("marshal chat event", "err", err)
		return
	}
	msg := kafka.Message{Key: []byte(ev.RoomID), Value: value, Time: ev.At}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warnw("publish chat event", "type", ev.Type, "room", ev.RoomID, "err", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
