// Package results derives per-option counts and percentages from the raw vote set.
// Nothing here is stored; results are recomputed on every read.
package results

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/livepoll/backend/internal/models"
)

// OptionResult is the tally for one option.
type OptionResult struct {
	OptionID   uuid.UUID `json:"option_id"`
	Text       string    `json:"text"`
	Order      int       `json:"order"`
	Count      int       `json:"count"`
	Percentage float64   `json:"percentage"`
}

// QuestionResult is the tally for one question, options in option order.
type QuestionResult struct {
	QuestionID uuid.UUID      `json:"question_id"`
	Text       string         `json:"question_text"`
	Order      int            `json:"question_order"`
	TotalVotes int            `json:"total_votes"`
	Options    []OptionResult `json:"options"`
}

// SessionResults is the tally for every question of a session.
type SessionResults struct {
	SessionID  string           `json:"session_id"`
	IsActive   bool             `json:"is_active"`
	Questions  []QuestionResult `json:"questions"`
	ComputedAt time.Time        `json:"computed_at"`
}

// ComputeResults tallies votes for the options of questionID.
// Options of other questions are ignored; a vote counts toward an option when its selected option id matches.
// The inputs are not modified.
func ComputeResults(questionID uuid.UUID, votes []models.Vote, options []models.Option) QuestionResult {
	own := make([]models.Option, 0, len(options))
	for _, o := range options {
		if o.QuestionID == questionID {
			own = append(own, o)
		}
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].Order < own[j].Order })

	counts := make(map[uuid.UUID]int, len(own))
	for _, o := range own {
		counts[o.ID] = 0
	}
	for _, v := range votes {
		if _, ok := counts[v.SelectedOptionID]; ok {
			counts[v.SelectedOptionID]++
		}
	}

	res := QuestionResult{QuestionID: questionID, Options: make([]OptionResult, 0, len(own))}
	for _, o := range own {
		res.TotalVotes += counts[o.ID]
	}
	for _, o := range own {
		res.Options = append(res.Options, OptionResult{
			OptionID:   o.ID,
			Text:       o.Text,
			Order:      o.Order,
			Count:      counts[o.ID],
			Percentage: Percentage(counts[o.ID], res.TotalVotes),
		})
	}
	return res
}

// Percentage returns count/total*100 rounded to one decimal, or 0 when total is 0.
// Percentages of a question are not normalized to sum to exactly 100.
func Percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// ComputeSessionResults tallies every question of layout, in question order.
func ComputeSessionResults(sessionID string, active bool, layout []models.QuestionWithOptions, votes []models.Vote) SessionResults {
	qs := make([]models.QuestionWithOptions, len(layout))
	copy(qs, layout)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })

	out := SessionResults{SessionID: sessionID, IsActive: active, Questions: make([]QuestionResult, 0, len(qs))}
	for _, q := range qs {
		r := ComputeResults(q.ID, votes, q.Options)
		r.Text = q.Text
		r.Order = q.Order
		out.Questions = append(out.Questions, r)
	}
	return out
}
