// Package notify publishes "record synchronized" events over watermill so
// other parts of the application can react to fresh data.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// TopicSynchronized carries one message per reconciled record.
const TopicSynchronized = "record.synchronized"

// Event describes one reconciled record.
type Event struct {
	Entity    string `json:"entity"`
	LocalID   int64  `json:"local_id"`
	RemoteKey string `json:"remote_key"`
	Created   bool   `json:"created"`
	// Record is the persisted entity; after decoding it is a generic map.
	Record any `json:"record,omitempty"`
}

// Notifier is what the reconciler publishes to.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Publisher encodes events onto a watermill topic.
type Publisher struct {
	pub   message.Publisher
	topic string
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub, topic: TopicSynchronized}
}

func (p *Publisher) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set("entity", ev.Entity)
	msg.SetContext(ctx)

	if err := p.pub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}

// Decode reads an Event back from a message.
func Decode(msg *message.Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return ev, nil
}

// NewInProcess returns an in-memory pub/sub. Publish does not block when
// nobody subscribes.
func NewInProcess(log *slog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
		PreserveContext:     true,
	}, watermill.NewSlogLogger(log))
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, Event) error { return nil }
