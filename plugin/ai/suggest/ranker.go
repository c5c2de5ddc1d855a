// Package suggest scores and ranks candidate suggestions from active
// patterns and deadline/priority signals on open tasks.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store"
)

// Store is the slice of the store the ranker needs.
type Store interface {
	ListTaskPatterns(ctx context.Context, find *store.FindTaskPattern) ([]*store.TaskPattern, error)
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
	ListSuggestions(ctx context.Context, find *store.FindSuggestion) ([]*store.Suggestion, error)
	CreateSuggestion(ctx context.Context, create *store.Suggestion) (*store.Suggestion, error)
	UpdateSuggestion(ctx context.Context, update *store.UpdateSuggestion) (*store.Suggestion, error)
}

// Ranker generates, scores and persists suggestions for a user.
type Ranker struct {
	store   Store
	profile *profile.Profile
	logger  *slog.Logger

	now func() time.Time
}

func NewRanker(st Store, p *profile.Profile, logger *slog.Logger) *Ranker {
	return &Ranker{store: st, profile: p, logger: logger, now: time.Now}
}

type candidate struct {
	title       string
	description string
	reason      string
	patternID   *int32
	score       float64
	// tiebreakTs is the earliest next-expected or due timestamp.
	tiebreakTs int64
}

// Suggest computes the top-K suggestions for the user. Newly surfaced
// suggestions are persisted; a suggestion dismissed for the same pattern
// within the cool-down window is never regenerated.
func (r *Ranker) Suggest(ctx context.Context, userID int32) ([]*store.Suggestion, error) {
	now := r.now()

	active := true
	patterns, err := r.store.ListTaskPatterns(ctx, &store.FindTaskPattern{CreatorID: &userID, IsActive: &active})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to load patterns", err)
	}
	open := false
	tasks, err := r.store.ListTasks(ctx, &store.FindTask{CreatorID: &userID, Completed: &open})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to load open tasks", err)
	}
	existing, err := r.store.ListSuggestions(ctx, &store.FindSuggestion{CreatorID: &userID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to load suggestions", err)
	}

	w1, w2, w3, w4 := r.normalizedWeights()
	behavior := behaviorRate(patterns)

	candidates := make([]candidate, 0)
	for _, p := range patterns {
		if p.Type == store.PatternTypeBehavior || p.NextExpectedTs == nil {
			continue
		}
		urgency := urgencyAt(*p.NextExpectedTs, now, r.profile.SuggestUrgencyHorizon)
		if urgency == 0 {
			continue
		}
		score := w1*p.Confidence + w2*urgency + w4*behavior
		candidates = append(candidates, candidate{
			title:      p.NormalizedTitle,
			reason:     fmt.Sprintf("you usually do this %s", p.Frequency),
			patternID:  &p.ID,
			score:      score,
			tiebreakTs: *p.NextExpectedTs,
		})
	}
	for _, t := range tasks {
		if t.DueTs == nil {
			continue
		}
		urgency := urgencyAt(*t.DueTs, now, r.profile.SuggestUrgencyHorizon)
		if urgency == 0 {
			continue
		}
		score := w2*urgency + w3*priorityWeight(t.Priority) + w4*behavior
		candidates = append(candidates, candidate{
			title:       t.Title,
			description: t.Description,
			reason:      "due soon",
			score:       score,
			tiebreakTs:  *t.DueTs,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].tiebreakTs < candidates[j].tiebreakTs
	})

	result := make([]*store.Suggestion, 0, r.profile.SuggestTopK)
	for _, c := range candidates {
		if len(result) >= r.profile.SuggestTopK {
			break
		}
		if r.inCooldown(c.patternID, existing, now) {
			continue
		}
		if s := findOpen(c, existing); s != nil {
			result = append(result, s)
			continue
		}
		s, err := r.store.CreateSuggestion(ctx, &store.Suggestion{
			CreatorID:   userID,
			Title:       c.title,
			Description: c.description,
			Confidence:  clip(c.score),
			PatternID:   c.patternID,
			Reason:      c.reason,
		})
		if err != nil {
			return nil, errors.PersistenceFailure("failed to persist suggestion", err)
		}
		result = append(result, s)
	}

	r.logger.Debug("suggestions ranked", "userID", userID, "candidates", len(candidates), "surfaced", len(result))
	return result, nil
}

// Accept marks a suggestion accepted. Terminal states are immutable and
// mutually exclusive.
func (r *Ranker) Accept(ctx context.Context, userID int32, suggestionID int32) (*store.Suggestion, error) {
	return r.resolve(ctx, userID, suggestionID, true)
}

// Dismiss marks a suggestion dismissed, starting its pattern's cool-down.
func (r *Ranker) Dismiss(ctx context.Context, userID int32, suggestionID int32) (*store.Suggestion, error) {
	return r.resolve(ctx, userID, suggestionID, false)
}

func (r *Ranker) resolve(ctx context.Context, userID int32, suggestionID int32, accept bool) (*store.Suggestion, error) {
	list, err := r.store.ListSuggestions(ctx, &store.FindSuggestion{ID: &suggestionID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to load suggestion", err)
	}
	if len(list) == 0 {
		return nil, errors.NotFound("suggestion %d not found", suggestionID)
	}
	s := list[0]
	if s.CreatorID != userID {
		return nil, errors.NotOwned("suggestion %d belongs to another user", suggestionID)
	}
	if s.IsAccepted || s.IsDismissed {
		return nil, errors.InvalidArguments("suggestion %d is already resolved", suggestionID)
	}

	update := &store.UpdateSuggestion{ID: suggestionID}
	if accept {
		update.IsAccepted = &accept
	} else {
		dismissed := true
		update.IsDismissed = &dismissed
	}
	updated, err := r.store.UpdateSuggestion(ctx, update)
	if err != nil {
		return nil, errors.PersistenceFailure("failed to update suggestion", err)
	}
	return updated, nil
}

func (r *Ranker) normalizedWeights() (w1, w2, w3, w4 float64) {
	sum := r.profile.SuggestWeightPattern + r.profile.SuggestWeightDeadline +
		r.profile.SuggestWeightPriority + r.profile.SuggestWeightBehavior
	if sum == 0 {
		return 0.25, 0.25, 0.25, 0.25
	}
	return r.profile.SuggestWeightPattern / sum,
		r.profile.SuggestWeightDeadline / sum,
		r.profile.SuggestWeightPriority / sum,
		r.profile.SuggestWeightBehavior / sum
}

func (r *Ranker) inCooldown(patternID *int32, existing []*store.Suggestion, now time.Time) bool {
	if patternID == nil {
		return false
	}
	cutoff := now.Add(-r.profile.SuggestCooldown).Unix()
	for _, s := range existing {
		if s.IsDismissed && s.PatternID != nil && *s.PatternID == *patternID && s.CreatedTs >= cutoff {
			return true
		}
	}
	return false
}

// findOpen reuses an unresolved persisted suggestion instead of duplicating it.
func findOpen(c candidate, existing []*store.Suggestion) *store.Suggestion {
	for _, s := range existing {
		if s.IsAccepted || s.IsDismissed {
			continue
		}
		if c.patternID != nil && s.PatternID != nil && *s.PatternID == *c.patternID {
			return s
		}
		if c.patternID == nil && s.PatternID == nil && s.Title == c.title {
			return s
		}
	}
	return nil
}

// urgencyAt scores full urgency for overdue timestamps and decays linearly
// across the horizon.
func urgencyAt(ts int64, now time.Time, horizon time.Duration) float64 {
	until := time.Unix(ts, 0).Sub(now)
	if until <= 0 {
		return 1
	}
	if until >= horizon {
		return 0
	}
	return 1 - float64(until)/float64(horizon)
}

func priorityWeight(p store.TaskPriority) float64 {
	switch p {
	case store.TaskPriorityHigh:
		return 1
	case store.TaskPriorityMedium:
		return 0.6
	case store.TaskPriorityLow:
		return 0.3
	default:
		return 0.6
	}
}

func behaviorRate(patterns []*store.TaskPattern) float64 {
	for _, p := range patterns {
		if p.Type == store.PatternTypeBehavior {
			return p.Confidence
		}
	}
	return 0.5
}

func clip(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
