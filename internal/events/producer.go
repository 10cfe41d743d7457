package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON messages to one topic.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) send(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
	})
}

// PublishMatches sends a lead's recomputed match list, keyed by lead id so
// updates for one lead stay ordered.
func (p *Producer) PublishMatches(ctx context.Context, m MatchesUpdated) error {
	if err := p.send(ctx, m.LeadID, m); err != nil {
		return fmt.Errorf("publish matches for lead %s: %w", m.LeadID, err)
	}
	return nil
}

// NotifyChange sends a record-change event, keyed by entity and id.
func (p *Producer) NotifyChange(ctx context.Context, ev ChangeEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := p.send(ctx, ev.Entity+":"+ev.ID, ev); err != nil {
		return fmt.Errorf("notify %s %s change: %w", ev.Entity, ev.ID, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
