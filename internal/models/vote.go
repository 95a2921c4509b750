package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote is one voter's selection for one question. Votes are append-only.
// VoterName is nil for anonymous votes.
type Vote struct {
	ID               uuid.UUID `json:"id"`
	SessionID        string    `json:"session_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	SelectedOptionID uuid.UUID `json:"selected_option_id"`
	VoterName        *string   `json:"voter_name"`
	IsAnonymous      bool      `json:"is_anonymous"`
	CreatedAt        time.Time `json:"created_at"`
}
