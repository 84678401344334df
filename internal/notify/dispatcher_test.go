package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, 16, nil)

	for _, target := range []string{"a", "b", "c"} {
		d.Dispatch(Event{Type: EventLike, TargetID: target})
	}
	require.NoError(t, d.Shutdown(context.Background()))

	require.Equal(t, 3, rec.len())
	assert.Equal(t, "a", rec.events[0].TargetID)
	assert.Equal(t, "c", rec.events[2].TargetID)
	assert.False(t, rec.events[0].At.IsZero(), "timestamp is filled in")
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	var calls int
	var mu sync.Mutex
	d := NewDispatcher(NotifierFunc(func(context.Context, Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("push gateway down")
	}), 4, nil)

	d.Dispatch(Event{Type: EventFollow, TargetID: "u2"})
	d.Dispatch(Event{Type: EventFollow, TargetID: "u3"})
	require.NoError(t, d.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	rec := &recorder{}
	d := NewDispatcher(NotifierFunc(func(ctx context.Context, e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return rec.Notify(ctx, e)
	}), 1, nil)

	d.Dispatch(Event{TargetID: "first"})
	<-started // first is being delivered, the buffer is empty again

	d.Dispatch(Event{TargetID: "queued"})
	d.Dispatch(Event{TargetID: "dropped"})

	close(release)
	require.NoError(t, d.Shutdown(context.Background()))

	require.Equal(t, 2, rec.len())
	assert.Equal(t, "queued", rec.events[1].TargetID)
}

func TestDispatcher_AfterShutdown(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, 4, nil)
	require.NoError(t, d.Shutdown(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()), "second shutdown is a no-op")

	d.Dispatch(Event{TargetID: "late"})
	assert.Zero(t, rec.len())
}

func TestDispatcher_ShutdownTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d := NewDispatcher(NotifierFunc(func(context.Context, Event) error {
		<-block
		return nil
	}), 4, nil)
	d.Dispatch(Event{TargetID: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), Event{Type: EventLike}))
}

func TestDispatcher_NotifierPanicIsContained(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(NotifierFunc(func(ctx context.Context, e Event) error {
		if e.TargetID == "boom" {
			panic("push client bug")
		}
		return rec.Notify(ctx, e)
	}), 4, nil)

	d.Dispatch(Event{Type: EventLike, TargetID: "boom"})
	d.Dispatch(Event{Type: EventLike, TargetID: "after"})
	require.NoError(t, d.Shutdown(context.Background()))

	require.Equal(t, 1, rec.len(), "delivery continues after a panic")
	assert.Equal(t, "after", rec.events[0].TargetID)
}
