package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncRecorder_DeliversInOrder(t *testing.T) {
	log := &eventLog{}
	rec := NewAsyncRecorder(log, 16)

	for i := 0; i < 5; i++ {
		require.NoError(t, rec.Record(context.Background(), Event{Key: ClientKey(fmt.Sprint(i))}))
	}
	require.NoError(t, rec.Close(context.Background()))

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.events, 5)
	for i, ev := range log.events {
		assert.Equal(t, ClientKey(fmt.Sprint(i)), ev.Key)
	}
	assert.Zero(t, rec.Dropped())
}

func TestAsyncRecorder_SlowBackendDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	log := &eventLog{}
	slow := RecorderFunc(func(ctx context.Context, ev Event) error {
		<-release
		return log.Record(ctx, ev)
	})
	rec := NewAsyncRecorder(slow, 1)

	const total = 10
	start := time.Now()
	for i := 0; i < total; i++ {
		require.NoError(t, rec.Record(context.Background(), Event{}))
	}
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	require.NoError(t, rec.Close(context.Background()))

	log.mu.Lock()
	delivered := len(log.events)
	log.mu.Unlock()

	// At most one event in flight plus one queued.
	assert.LessOrEqual(t, delivered, 2)
	assert.Equal(t, int64(total-delivered), rec.Dropped())
}

func TestAsyncRecorder_RequestContextNotCarried(t *testing.T) {
	var got error
	done := make(chan struct{})
	rec := NewAsyncRecorder(RecorderFunc(func(ctx context.Context, ev Event) error {
		got = ctx.Err()
		close(done)
		return nil
	}), 1)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, rec.Record(ctx, Event{}))
	cancel()

	<-done
	assert.NoError(t, got)
	require.NoError(t, rec.Close(context.Background()))
}

func TestAsyncRecorder_RecordAfterClose(t *testing.T) {
	rec := NewAsyncRecorder(&eventLog{}, 0)
	require.NoError(t, rec.Close(context.Background()))
	require.NoError(t, rec.Close(context.Background()), "Close is idempotent")

	assert.ErrorIs(t, rec.Record(context.Background(), Event{}), ErrRecorderClosed)
}

func TestAsyncRecorder_CloseHonorsContext(t *testing.T) {
	release := make(chan struct{})
	rec := NewAsyncRecorder(RecorderFunc(func(context.Context, Event) error {
		<-release
		return nil
	}), 4)
	require.NoError(t, rec.Record(context.Background(), Event{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rec.Close(ctx), context.Canceled)

	close(release)
	assert.NoError(t, rec.Close(context.Background()))
}

func TestAsyncRecorder_BehindGate(t *testing.T) {
	log := &eventLog{}
	rec := NewAsyncRecorder(log, 8)
	handler := Middleware(newTestRegistry(t, 1), WithRecorder(rec))(http.HandlerFunc(okHandler))

	doRequest(handler, "192.168.1.1:1", nil)
	doRequest(handler, "192.168.1.1:1", nil)
	require.NoError(t, rec.Close(context.Background()))

	log.mu.Lock()
	defer log.mu.Unlock()
	require.Len(t, log.events, 2)
	assert.True(t, log.events[0].Allowed)
	assert.False(t, log.events[1].Allowed)
}
