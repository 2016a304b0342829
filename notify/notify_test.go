package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingSink struct{ err error }

func (f failingSink) Send(context.Context, Message) error { return f.err }

type deadlineSink struct{ deadline time.Time }

func (d *deadlineSink) Send(ctx context.Context, _ Message) error {
	d.deadline, _ = ctx.Deadline()
	return ctx.Err()
}

func TestEmit_DeliversToSink(t *testing.T) {
	rec := &Recorder{}
	msg := NewMessage("delivery_deleted", "+100", "hello")

	Emit(context.Background(), rec, zap.NewNop(), msg)

	got := rec.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, msg.ID, got[0].ID)
	assert.NotEmpty(t, got[0].ID)
}

func TestEmit_SwallowsAndLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	assert.NotPanics(t, func() {
		Emit(context.Background(), failingSink{err: errors.New("provider down")}, zap.New(core), NewMessage("k", "p", "t"))
	})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "notification not sent", logs.All()[0].Message)
}

func TestEmit_IgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &deadlineSink{}
	Emit(ctx, sink, zap.NewNop(), NewMessage("k", "p", "t"))

	assert.False(t, sink.deadline.IsZero(), "emit sets its own deadline")
}

func TestEmit_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, nil, NewMessage("k", "p", "t"))
	})
}
