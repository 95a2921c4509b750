package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is a prompt within a session. Order is 1-based and unique within the session.
type Question struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"question_text"`
	Order     int       `json:"question_order"`
	CreatedAt time.Time `json:"created_at"`
}

// Option is a selectable answer for a question.
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"option_text"`
	Order      int       `json:"option_order"`
}

// QuestionWithOptions is a question and its options in option order.
type QuestionWithOptions struct {
	Question
	Options []Option `json:"options"`
}

// HasOption reports whether optionID belongs to the question.
func (q *QuestionWithOptions) HasOption(optionID uuid.UUID) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
