package suggest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store"
)

type memoryStore struct {
	patterns    []*store.TaskPattern
	tasks       []*store.Task
	suggestions []*store.Suggestion
}

func (m *memoryStore) ListTaskPatterns(_ context.Context, find *store.FindTaskPattern) ([]*store.TaskPattern, error) {
	list := make([]*store.TaskPattern, 0)
	for _, p := range m.patterns {
		if find.CreatorID != nil && p.CreatorID != *find.CreatorID {
			continue
		}
		if find.IsActive != nil && p.IsActive != *find.IsActive {
			continue
		}
		list = append(list, p)
	}
	return list, nil
}

func (m *memoryStore) ListTasks(_ context.Context, find *store.FindTask) ([]*store.Task, error) {
	list := make([]*store.Task, 0)
	for _, t := range m.tasks {
		if find.CreatorID != nil && t.CreatorID != *find.CreatorID {
			continue
		}
		if find.Completed != nil && t.Completed != *find.Completed {
			continue
		}
		list = append(list, t)
	}
	return list, nil
}

func (m *memoryStore) ListSuggestions(_ context.Context, find *store.FindSuggestion) ([]*store.Suggestion, error) {
	list := make([]*store.Suggestion, 0)
	for _, s := range m.suggestions {
		if find.ID != nil && s.ID != *find.ID {
			continue
		}
		if find.CreatorID != nil && s.CreatorID != *find.CreatorID {
			continue
		}
		list = append(list, s)
	}
	return list, nil
}

func (m *memoryStore) CreateSuggestion(_ context.Context, create *store.Suggestion) (*store.Suggestion, error) {
	create.ID = int32(len(m.suggestions) + 1)
	create.CreatedTs = time.Now().Unix()
	m.suggestions = append(m.suggestions, create)
	return create, nil
}

func (m *memoryStore) UpdateSuggestion(_ context.Context, update *store.UpdateSuggestion) (*store.Suggestion, error) {
	for _, s := range m.suggestions {
		if s.ID == update.ID {
			if update.IsAccepted != nil {
				s.IsAccepted = *update.IsAccepted
			}
			if update.IsDismissed != nil {
				s.IsDismissed = *update.IsDismissed
			}
			return s, nil
		}
	}
	return nil, errors.NotFound("suggestion %d not found", update.ID)
}

func testProfile() *profile.Profile {
	p := &profile.Profile{Driver: "sqlite", DSN: "test.db"}
	_ = p.Validate()
	return p
}

func newTestRanker(st *memoryStore, now time.Time) *Ranker {
	r := NewRanker(st, testProfile(), slog.Default())
	r.now = func() time.Time { return now }
	return r
}

func duePattern(id int32, userID int32, title string, confidence float64, nextExpected time.Time) *store.TaskPattern {
	next := nextExpected.Unix()
	return &store.TaskPattern{
		ID:              id,
		CreatorID:       userID,
		Type:            store.PatternTypeRecurring,
		NormalizedTitle: title,
		Frequency:       "weekly",
		Confidence:      confidence,
		IsActive:        true,
		NextExpectedTs:  &next,
	}
}

func TestSuggestMonotonicInPatternConfidence(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st := &memoryStore{patterns: []*store.TaskPattern{
		duePattern(1, 1, "weak habit", 0.6, now),
		duePattern(2, 1, "strong habit", 0.9, now),
	}}
	r := newTestRanker(st, now)

	suggestions, err := r.Suggest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	// Same urgency and behavior, higher pattern confidence ranks first.
	assert.Equal(t, "strong habit", suggestions[0].Title)
	assert.Equal(t, "weak habit", suggestions[1].Title)
	assert.Greater(t, suggestions[0].Confidence, suggestions[1].Confidence)
}

func TestSuggestTopKBound(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st := &memoryStore{}
	for i := int32(1); i <= 8; i++ {
		st.patterns = append(st.patterns, duePattern(i, 1, "habit", 0.9, now))
	}
	// Distinct titles so open-suggestion reuse does not collapse them.
	for i, p := range st.patterns {
		p.NormalizedTitle = p.NormalizedTitle + string(rune('a'+i))
	}
	r := newTestRanker(st, now)

	suggestions, err := r.Suggest(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, suggestions, 5)
}

func TestSuggestCooldownSuppression(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	patternID := int32(7)
	st := &memoryStore{
		patterns: []*store.TaskPattern{duePattern(patternID, 1, "snoozed habit", 0.9, now)},
		suggestions: []*store.Suggestion{{
			ID:          1,
			CreatorID:   1,
			Title:       "snoozed habit",
			PatternID:   &patternID,
			IsDismissed: true,
			CreatedTs:   now.Add(-24 * time.Hour).Unix(),
		}},
	}
	r := newTestRanker(st, now)

	suggestions, err := r.Suggest(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, suggestions, "dismissed pattern inside the cool-down is not regenerated")

	// Outside the cool-down window the pattern surfaces again.
	st.suggestions[0].CreatedTs = now.Add(-8 * 24 * time.Hour).Unix()
	suggestions, err = r.Suggest(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, suggestions, 1)
}

func TestSuggestTieBreakByEarliestDue(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st := &memoryStore{patterns: []*store.TaskPattern{
		duePattern(1, 1, "later habit", 0.8, now.Add(-1*time.Hour)),
		duePattern(2, 1, "earlier habit", 0.8, now.Add(-2*time.Hour)),
	}}
	r := newTestRanker(st, now)

	suggestions, err := r.Suggest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "earlier habit", suggestions[0].Title)
}

func TestSuggestIncludesDeadlineTasks(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(2 * time.Hour).Unix()
	st := &memoryStore{tasks: []*store.Task{{
		ID:        1,
		CreatorID: 1,
		Title:     "file taxes",
		Priority:  store.TaskPriorityHigh,
		DueTs:     &due,
	}}}
	r := newTestRanker(st, now)

	suggestions, err := r.Suggest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "file taxes", suggestions[0].Title)
	assert.Equal(t, "due soon", suggestions[0].Reason)
}

func TestSuggestUrgencyHorizonIsConfigurable(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(3 * 24 * time.Hour).Unix()
	st := &memoryStore{tasks: []*store.Task{{
		ID:        1,
		CreatorID: 1,
		Title:     "renew passport",
		Priority:  store.TaskPriorityLow,
		DueTs:     &due,
	}}}
	r := newTestRanker(st, now)

	// With the default week-long horizon a task due in three days surfaces.
	suggestions, err := r.Suggest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)

	// A shorter horizon pushes the same task out of range.
	st.suggestions = nil
	r.profile.SuggestUrgencyHorizon = 24 * time.Hour
	suggestions, err = r.Suggest(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestAcceptAndDismissAreTerminal(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st := &memoryStore{suggestions: []*store.Suggestion{
		{ID: 1, CreatorID: 1, Title: "one"},
		{ID: 2, CreatorID: 1, Title: "two"},
		{ID: 3, CreatorID: 2, Title: "other user"},
	}}
	r := newTestRanker(st, now)
	ctx := context.Background()

	accepted, err := r.Accept(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, accepted.IsAccepted)

	// A resolved suggestion cannot flip to the other terminal state.
	_, err = r.Dismiss(ctx, 1, 1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))

	_, err = r.Accept(ctx, 1, 3)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotOwned))

	_, err = r.Dismiss(ctx, 1, 99)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
