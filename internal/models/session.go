package models

import (
	"time"
)

// Session is one poll instance. ID is the organizer-chosen slug used in voter and result URLs.
type Session struct {
	ID           string    `json:"id"`
	PasswordHash *string   `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// PasswordProtected reports whether voters must unlock the session before voting.
func (s *Session) PasswordProtected() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

// SessionSummary is a session annotated with counts for list views.
type SessionSummary struct {
	Session
	PasswordProtected bool `json:"password_protected"`
	QuestionCount     int  `json:"question_count"`
	OptionCount       int  `json:"option_count"`
}
