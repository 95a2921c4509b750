// Package feed carries change notifications for poll sessions between instances.
package feed

import (
	"context"
	"time"
)

// EventType names a change notification.
type EventType string

// EventVoteInserted is published after votes for a session are committed.
const EventVoteInserted EventType = "vote_inserted"

// Event is a change notification scoped to one session.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// VoteInserted builds the event published after a vote submission.
func VoteInserted(sessionID string) Event {
	return Event{Type: EventVoteInserted, SessionID: sessionID, At: time.Now()}
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Listener delivers a session's events to handler until cancel is called.
type Listener interface {
	Subscribe(sessionID string, handler func(Event)) (cancel func(), err error)
}

// Feed is both sides of the change feed.
type Feed interface {
	Publisher
	Listener
}
