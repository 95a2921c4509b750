package votes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/models"
	"github.com/livepoll/backend/internal/results"
)

type fixture struct {
	validator *Validator
	sessions  *fakeSessions
	store     *fakeStore
	publisher *recordingPublisher
	lunch     models.QuestionWithOptions
	drinks    models.QuestionWithOptions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lunch := question("weekly-meeting", "Lunch?", 1, "Pizza", "Salad")
	drinks := question("weekly-meeting", "Drinks?", 2, "Tea", "Coffee")
	hash := "$2a$10$hash"
	fs := &fakeSessions{
		sessions: map[string]*models.Session{
			"weekly-meeting": {ID: "weekly-meeting", IsActive: true},
			"closed":         {ID: "closed", IsActive: false},
			"locked":         {ID: "locked", IsActive: true, PasswordHash: &hash},
		},
		layouts: map[string][]models.QuestionWithOptions{
			"weekly-meeting": {lunch, drinks},
			"closed":         {question("closed", "q", 1, "a", "b")},
			"locked":         {question("locked", "q", 1, "a", "b")},
		},
	}
	store := &fakeStore{}
	pub := &recordingPublisher{}
	v := NewValidator(fs, store, fakeAccess{token: "ok"}, pub, nil)
	v.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	return &fixture{validator: v, sessions: fs, store: store, publisher: pub, lunch: lunch, drinks: drinks}
}

func (f *fixture) fullAnswers() map[uuid.UUID]uuid.UUID {
	return map[uuid.UUID]uuid.UUID{
		f.lunch.ID:  f.lunch.Options[0].ID,
		f.drinks.ID: f.drinks.Options[1].ID,
	}
}

func TestSubmitVoteInsertsOneRowPerQuestion(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.validator.SubmitVote(context.Background(), Submission{
		SessionID: "weekly-meeting",
		Answers:   f.fullAnswers(),
		VoterName: "  Ada ",
	})
	require.NoError(t, err)
	require.Len(t, receipt.VoteIDs, 2)

	require.Len(t, f.store.votes, 2)
	assert.Equal(t, 1, f.store.batches)
	first, second := f.store.votes[0], f.store.votes[1]
	assert.Equal(t, f.lunch.ID, first.QuestionID)
	assert.Equal(t, f.lunch.Options[0].ID, first.SelectedOptionID)
	assert.Equal(t, f.drinks.ID, second.QuestionID)
	assert.Equal(t, f.drinks.Options[1].ID, second.SelectedOptionID)
	for _, v := range f.store.votes {
		require.NotNil(t, v.VoterName)
		assert.Equal(t, "Ada", *v.VoterName)
		assert.False(t, v.IsAnonymous)
		assert.Equal(t, receipt.SubmittedAt, v.CreatedAt)
		assert.Equal(t, "weekly-meeting", v.SessionID)
	}

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, feed.EventVoteInserted, f.publisher.events[0].Type)
	assert.Equal(t, "weekly-meeting", f.publisher.events[0].SessionID)
}

func TestSubmitVoteAnonymousDropsName(t *testing.T) {
	f := newFixture(t)
	_, err := f.validator.SubmitVote(context.Background(), Submission{
		SessionID: "weekly-meeting", Answers: f.fullAnswers(), VoterName: "ignored", IsAnonymous: true,
	})
	require.NoError(t, err)
	for _, v := range f.store.votes {
		assert.Nil(t, v.VoterName)
		assert.True(t, v.IsAnonymous)
	}
}

func TestSubmitVoteBlankNameRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.validator.SubmitVote(context.Background(), Submission{
		SessionID: "weekly-meeting", Answers: f.fullAnswers(), VoterName: "   ",
	})
	assert.True(t, apperr.IsValidation(err), "got %v", err)
	assert.Empty(t, f.store.votes)
	assert.Empty(t, f.publisher.events)
}

func TestSubmitVoteRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, s *Submission)
		check  func(t *testing.T, err error)
	}{
		{"missing session", func(f *fixture, s *Submission) { s.SessionID = "nope" },
			func(t *testing.T, err error) { assert.ErrorIs(t, err, apperr.ErrNotFound) }},
		{"inactive session with valid answers", func(f *fixture, s *Submission) {
			s.SessionID = "closed"
			q := f.sessions.layouts["closed"][0]
			s.Answers = map[uuid.UUID]uuid.UUID{q.ID: q.Options[0].ID}
		}, func(t *testing.T, err error) { assert.ErrorIs(t, err, apperr.ErrSessionInactive) }},
		{"locked without token", func(f *fixture, s *Submission) {
			s.SessionID = "locked"
			q := f.sessions.layouts["locked"][0]
			s.Answers = map[uuid.UUID]uuid.UUID{q.ID: q.Options[0].ID}
		}, func(t *testing.T, err error) { assert.ErrorIs(t, err, apperr.ErrUnauthorized) }},
		{"locked with token for another session", func(f *fixture, s *Submission) {
			s.SessionID = "locked"
			s.AccessToken = "ok:weekly-meeting"
		}, func(t *testing.T, err error) { assert.ErrorIs(t, err, apperr.ErrUnauthorized) }},
		{"missing question", func(f *fixture, s *Submission) { delete(s.Answers, f.drinks.ID) },
			func(t *testing.T, err error) { assert.True(t, apperr.IsValidation(err)) }},
		{"option from another question", func(f *fixture, s *Submission) { s.Answers[f.lunch.ID] = f.drinks.Options[0].ID },
			func(t *testing.T, err error) { assert.True(t, apperr.IsValidation(err)) }},
		{"extra question", func(f *fixture, s *Submission) { s.Answers[uuid.New()] = uuid.New() },
			func(t *testing.T, err error) { assert.True(t, apperr.IsValidation(err)) }},
		{"no answers", func(f *fixture, s *Submission) { s.Answers = nil },
			func(t *testing.T, err error) { assert.True(t, apperr.IsValidation(err)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sub := Submission{SessionID: "weekly-meeting", Answers: f.fullAnswers(), VoterName: "Ada"}
			tt.mutate(f, &sub)
			_, err := f.validator.SubmitVote(context.Background(), sub)
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, f.store.votes, "rejected submissions must not write")
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestSubmitVoteUnlockedSession(t *testing.T) {
	f := newFixture(t)
	q := f.sessions.layouts["locked"][0]
	_, err := f.validator.SubmitVote(context.Background(), Submission{
		SessionID:   "locked",
		Answers:     map[uuid.UUID]uuid.UUID{q.ID: q.Options[1].ID},
		IsAnonymous: true,
		AccessToken: "ok:locked",
	})
	require.NoError(t, err)
	assert.Len(t, f.store.votes, 1)
}

func TestSubmitVoteAllowsRepeatSubmissions(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.validator.SubmitVote(context.Background(), Submission{
			SessionID: "weekly-meeting", Answers: f.fullAnswers(), VoterName: "Ada",
		})
		require.NoError(t, err)
	}
	assert.Len(t, f.store.votes, 6)
	assert.Len(t, f.publisher.events, 3)
}

func TestSubmitVoteStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("connection refused")

	_, err := f.validator.SubmitVote(context.Background(), Submission{
		SessionID: "weekly-meeting", Answers: f.fullAnswers(), IsAnonymous: true,
	})
	var se *apperr.StoreError
	assert.ErrorAs(t, err, &se)
	assert.Empty(t, f.publisher.events)
}

func TestSubmitVoteConcurrentVotersAreAllCounted(t *testing.T) {
	const voters = 200
	f := newFixture(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answers := map[uuid.UUID]uuid.UUID{
				f.lunch.ID:  f.lunch.Options[i%2].ID,
				f.drinks.ID: f.drinks.Options[0].ID,
			}
			_, err := f.validator.SubmitVote(context.Background(), Submission{
				SessionID:   "weekly-meeting",
				Answers:     answers,
				IsAnonymous: true,
			})
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Empty(t, failures)

	f.store.mu.Lock()
	stored := append([]models.Vote(nil), f.store.votes...)
	batches := f.store.batches
	f.store.mu.Unlock()
	assert.Equal(t, voters, batches)

	lunch := results.ComputeResults(f.lunch.ID, stored, f.lunch.Options)
	assert.Equal(t, voters, lunch.TotalVotes)
	sum := 0
	for _, o := range lunch.Options {
		sum += o.Count
	}
	assert.Equal(t, voters, sum)
	assert.Equal(t, voters/2, lunch.Options[0].Count)
	assert.Equal(t, voters/2, lunch.Options[1].Count)

	drinks := results.ComputeResults(f.drinks.ID, stored, f.drinks.Options)
	assert.Equal(t, voters, drinks.Options[0].Count)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	assert.Len(t, f.publisher.events, voters)
}
