// Package live keeps a session's results current while someone is watching them.
package live

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/results"
)

// State is the subscription state of a Subscriber.
type State int

const (
	// Idle means no feed subscription is open.
	Idle State = iota
	// Subscribed means the feed is open and results are pushed on every vote.
	Subscribed
)

func (s State) String() string {
	if s == Subscribed {
		return "subscribed"
	}
	return "idle"
}

// ErrAlreadySubscribed is returned when Subscribe names a different session than the open subscription.
var ErrAlreadySubscribed = errors.New("live: already subscribed to another session")

// ResultsLoader recomputes a session's results. *results.Service implements it.
type ResultsLoader interface {
	SessionResults(ctx context.Context, sessionID string) (*results.SessionResults, error)
}

// Sink receives every freshly computed result set.
type Sink func(*results.SessionResults)

// Subscriber follows the change feed of one session and pushes recomputed results to a sink.
type Subscriber struct {
	listener feed.Listener
	loader   ResultsLoader
	sink     Sink
	logger   *zap.Logger

	mu         sync.Mutex
	state      State
	sessionID  string
	cancelFeed func()
	cancel     context.CancelFunc
	done       chan struct{}
	refreshCh  chan struct{}

	latestMu sync.RWMutex
	latest   *results.SessionResults
}

// NewSubscriber creates an idle subscriber. sink may be nil.
func NewSubscriber(listener feed.Listener, loader ResultsLoader, sink Sink, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{listener: listener, loader: loader, sink: sink, logger: logger}
}

// Subscribe opens the feed for sessionID, loads an initial snapshot and refreshes on each vote.
// Subscribing again to the same session is a no-op.
func (s *Subscriber) Subscribe(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Subscribed {
		if s.sessionID == sessionID {
			return nil
		}
		return ErrAlreadySubscribed
	}

	refreshCh := make(chan struct{}, 1)
	cancelFeed, err := s.listener.Subscribe(sessionID, func(ev feed.Event) {
		if ev.Type != feed.EventVoteInserted || ev.SessionID != sessionID {
			return
		}
		select {
		case refreshCh <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.state = Subscribed
	s.sessionID = sessionID
	s.cancelFeed = cancelFeed
	s.cancel = cancel
	s.refreshCh = refreshCh
	s.done = make(chan struct{})

	go s.run(ctx, sessionID, refreshCh, s.done)
	s.logger.Info("live results subscribed", zap.String("session_id", sessionID))
	return nil
}

// Unsubscribe closes the feed and waits for the refresh loop to exit. Safe to call when idle.
func (s *Subscriber) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		return
	}
	s.cancelFeed()
	s.cancel()
	<-s.done
	s.logger.Info("live results unsubscribed", zap.String("session_id", s.sessionID))

	s.state = Idle
	s.sessionID = ""
	s.cancelFeed = nil
	s.cancel = nil
	s.refreshCh = nil
	s.done = nil
}

// State reports whether the subscriber is idle or subscribed.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the session being followed, or "" when idle.
func (s *Subscriber) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Latest returns the most recent results pushed to the sink, or nil before the first load.
func (s *Subscriber) Latest() *results.SessionResults {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

func (s *Subscriber) run(ctx context.Context, sessionID string, refreshCh <-chan struct{}, done chan struct{}) {
	defer close(done)

	load := func() {
		res, err := s.loader.SessionResults(ctx, sessionID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("live results load failed", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}
		s.latestMu.Lock()
		s.latest = res
		s.latestMu.Unlock()
		if s.sink != nil {
			s.sink(res)
		}
	}
	load()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refreshCh:
			load()
		}
	}
}
