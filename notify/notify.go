/*
Package notify delivers outbound customer messages.

The ledger emits a Message after a transaction commits and does not wait
for, or depend on, its delivery. Sinks hand the message to whatever does
the actual sending: a Redis list drained by the WhatsApp dispatcher in
production, the log in development, nothing in tests.
*/
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message is one outbound notification.
type Message struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Phone     string    `json:"phone"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Message kinds.
const (
	KindDeliveryDeleted = "delivery_deleted"
	KindDepositChanged  = "deposit_changed"
)

func NewMessage(kind, phone, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Phone:     phone,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// Sink accepts messages for delivery.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Noop drops every message.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }

// LogSink writes messages to the log instead of sending them.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Send(_ context.Context, msg Message) error {
	s.Log.Info("notification",
		zap.String("id", msg.ID),
		zap.String("kind", msg.Kind),
		zap.String("phone", msg.Phone),
		zap.String("text", msg.Text),
	)
	return nil
}

// Recorder keeps every message it is given.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// DefaultTimeout bounds a single Emit.
const DefaultTimeout = 3 * time.Second

// Emit hands msg to sink and swallows any failure after logging it. It
// detaches from the caller's cancellation so a finished request does not
// abort the hand-off.
func Emit(ctx context.Context, sink Sink, log *zap.Logger, msg Message) {
	if sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
	defer cancel()

	if err := sink.Send(ctx, msg); err != nil && log != nil {
		log.Warn("notification not sent",
			zap.String("id", msg.ID),
			zap.String("kind", msg.Kind),
			zap.Error(err),
		)
	}
}
