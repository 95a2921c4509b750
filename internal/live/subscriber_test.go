package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/results"
)

type countingLoader struct {
	calls atomic.Int32
	err   error
}

func (l *countingLoader) SessionResults(_ context.Context, sessionID string) (*results.SessionResults, error) {
	n := l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return &results.SessionResults{SessionID: sessionID, Questions: make([]results.QuestionResult, n)}, nil
}

func channelSink() (Sink, <-chan *results.SessionResults) {
	ch := make(chan *results.SessionResults, 16)
	return func(r *results.SessionResults) { ch <- r }, ch
}

func receive(t *testing.T, ch <-chan *results.SessionResults) *results.SessionResults {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for results")
		return nil
	}
}

func TestSubscriberLifecycle(t *testing.T) {
	f := feed.NewMemoryFeed()
	loader := &countingLoader{}
	sink, ch := channelSink()
	s := NewSubscriber(f, loader, sink, nil)

	assert.Equal(t, Idle, s.State())
	require.NoError(t, s.Subscribe("weekly-meeting"))
	assert.Equal(t, Subscribed, s.State())
	assert.Equal(t, "weekly-meeting", s.SessionID())
	assert.Equal(t, 1, f.Subscribers("weekly-meeting"))

	first := receive(t, ch)
	assert.Equal(t, "weekly-meeting", first.SessionID)

	require.NoError(t, f.Publish(context.Background(), feed.VoteInserted("weekly-meeting")))
	second := receive(t, ch)
	assert.Len(t, second.Questions, 2)
	assert.Same(t, second, s.Latest())

	s.Unsubscribe()
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, "", s.SessionID())
	assert.Equal(t, 0, f.Subscribers("weekly-meeting"))

	require.NoError(t, f.Publish(context.Background(), feed.VoteInserted("weekly-meeting")))
	assert.Equal(t, int32(2), loader.calls.Load())

	s.Unsubscribe()
}

func TestSubscriberIgnoresOtherSessionsAndEvents(t *testing.T) {
	f := feed.NewMemoryFeed()
	loader := &countingLoader{}
	sink, ch := channelSink()
	s := NewSubscriber(f, loader, sink, nil)
	require.NoError(t, s.Subscribe("weekly-meeting"))
	defer s.Unsubscribe()
	receive(t, ch)

	require.NoError(t, f.Publish(context.Background(), feed.VoteInserted("other")))
	require.NoError(t, f.Publish(context.Background(), feed.Event{Type: "session_closed", SessionID: "weekly-meeting"}))

	select {
	case <-ch:
		t.Fatal("unexpected refresh")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestSubscriberSubscribeTwice(t *testing.T) {
	s := NewSubscriber(feed.NewMemoryFeed(), &countingLoader{}, nil, nil)
	require.NoError(t, s.Subscribe("a"))
	defer s.Unsubscribe()

	assert.NoError(t, s.Subscribe("a"))
	assert.ErrorIs(t, s.Subscribe("b"), ErrAlreadySubscribed)
}

func TestSubscriberCoalescesBursts(t *testing.T) {
	f := feed.NewMemoryFeed()
	loader := &countingLoader{}

	var (
		mu      sync.Mutex
		release = make(chan struct{})
		pushes  int
	)
	sink := func(*results.SessionResults) {
		mu.Lock()
		pushes++
		n := pushes
		mu.Unlock()
		if n == 1 {
			<-release
		}
	}
	s := NewSubscriber(f, loader, sink, nil)
	require.NoError(t, s.Subscribe("weekly-meeting"))

	for i := 0; i < 20; i++ {
		require.NoError(t, f.Publish(context.Background(), feed.VoteInserted("weekly-meeting")))
	}
	close(release)

	require.Eventually(t, func() bool { return loader.calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), loader.calls.Load())
	s.Unsubscribe()
}

func TestSubscriberLoadFailureKeepsSubscription(t *testing.T) {
	f := feed.NewMemoryFeed()
	loader := &countingLoader{err: errors.New("store down")}
	s := NewSubscriber(f, loader, nil, nil)
	require.NoError(t, s.Subscribe("weekly-meeting"))
	defer s.Unsubscribe()

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Subscribed, s.State())
	assert.Nil(t, s.Latest())
}
