// Package pattern derives recurring-behavior signals from task history. The
// recognizer is a pure batch transform: it recomputes a user's pattern set
// from source rows and rewrites it wholesale, so a killed sweep can simply be
// re-run.
package pattern

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store"
)

// Store is the slice of the store the recognizer needs.
type Store interface {
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
	DeleteTaskPatterns(ctx context.Context, delete *store.DeleteTaskPattern) error
	CreateTaskPattern(ctx context.Context, create *store.TaskPattern) (*store.TaskPattern, error)
}

// Recognizer computes TaskPatterns for one user at a time.
type Recognizer struct {
	store   Store
	profile *profile.Profile
	logger  *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewRecognizer(st Store, p *profile.Profile, logger *slog.Logger) *Recognizer {
	return &Recognizer{store: st, profile: p, logger: logger, now: time.Now}
}

type candidate struct {
	pattern     *store.TaskPattern
	occurrences int
}

// RecomputeUser rebuilds the pattern set for one user from their task history
// and returns the written patterns. Patterns below the activation confidence
// are written inactive so they can be observed before they drive suggestions.
func (r *Recognizer) RecomputeUser(ctx context.Context, userID int32) ([]*store.TaskPattern, error) {
	now := r.now()
	lookback := now.AddDate(0, 0, -r.profile.PatternLookbackDays).Unix()

	tasks, err := r.store.ListTasks(ctx, &store.FindTask{CreatorID: &userID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to load task history", err)
	}

	buckets := map[string][]*store.Task{}
	var total, completed int
	for _, t := range tasks {
		ts := occurrenceTs(t)
		if ts < lookback {
			continue
		}
		total++
		if t.Completed {
			completed++
		}
		key := NormalizeTitle(t.Title)
		if key == "" {
			continue
		}
		buckets[key] = append(buckets[key], t)
	}

	candidates := make([]candidate, 0)
	for title, group := range buckets {
		if c := r.analyzeBucket(title, userID, group, now); c != nil {
			candidates = append(candidates, *c)
		}
	}

	// Overlapping candidates for the same title keep the stronger one:
	// more occurrences first, then the more recent last occurrence.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].occurrences != candidates[j].occurrences {
			return candidates[i].occurrences > candidates[j].occurrences
		}
		return lastTs(candidates[i].pattern) > lastTs(candidates[j].pattern)
	})
	seen := map[string]bool{}
	patterns := make([]*store.TaskPattern, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.pattern.NormalizedTitle] {
			continue
		}
		seen[c.pattern.NormalizedTitle] = true
		patterns = append(patterns, c.pattern)
	}

	if p := r.behaviorPattern(userID, total, completed, now); p != nil {
		patterns = append(patterns, p)
	}

	// Delete-and-rewrite keeps the recompute safely re-executable.
	if err := r.store.DeleteTaskPatterns(ctx, &store.DeleteTaskPattern{CreatorID: userID}); err != nil {
		return nil, errors.PersistenceFailure("failed to clear previous patterns", err)
	}
	for _, p := range patterns {
		if _, err := r.store.CreateTaskPattern(ctx, p); err != nil {
			return nil, errors.PersistenceFailure("failed to write pattern", err)
		}
	}

	r.logger.Info("pattern recompute finished",
		"userID", userID, "tasks", total, "buckets", len(buckets), "patterns", len(patterns))
	return patterns, nil
}

func (r *Recognizer) analyzeBucket(title string, userID int32, group []*store.Task, now time.Time) *candidate {
	if len(group) < r.profile.PatternMinSupport {
		return nil
	}

	ts := make([]int64, 0, len(group))
	withDue := 0
	for _, t := range group {
		ts = append(ts, occurrenceTs(t))
		if t.DueTs != nil {
			withDue++
		}
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	gaps := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		gaps = append(gaps, float64(ts[i]-ts[i-1]))
	}
	mean, cv := gapStats(gaps)
	if mean <= 0 || cv > r.profile.PatternVarianceTolerance {
		return nil
	}

	meanGapDays := mean / 86400
	occurrences := len(ts)
	spanDays := float64(now.Unix()-ts[0]) / 86400
	expected := spanDays / meanGapDays
	misses := int(math.Max(0, math.Round(expected)-float64(occurrences)))
	confidence := clip(float64(occurrences) / float64(occurrences+misses))

	last := ts[len(ts)-1]
	next := last + int64(mean)

	patternType, attrs := classify(ts, meanGapDays, withDue, occurrences)
	attrs["mean_gap_days"] = round2(meanGapDays)
	attrs["gap_cv"] = round2(cv)
	attrs["occurrences"] = occurrences
	attrs["misses"] = misses
	attrsJSON, _ := json.Marshal(attrs)

	return &candidate{
		occurrences: occurrences,
		pattern: &store.TaskPattern{
			CreatorID:        userID,
			Type:             patternType,
			NormalizedTitle:  title,
			Frequency:        frequencyLabel(meanGapDays),
			Confidence:       confidence,
			Attributes:       string(attrsJSON),
			IsActive:         confidence >= r.profile.PatternActivationConf,
			LastOccurrenceTs: &last,
			NextExpectedTs:   &next,
		},
	}
}

// behaviorPattern records the user's overall completion behavior over the
// lookback window. It feeds the ranker's behavior weight.
func (r *Recognizer) behaviorPattern(userID int32, total, completed int, now time.Time) *store.TaskPattern {
	if total < r.profile.PatternMinSupport {
		return nil
	}
	rate := clip(float64(completed) / float64(total))
	attrs, _ := json.Marshal(map[string]any{
		"total_tasks":     total,
		"completed_tasks": completed,
		"completion_rate": round2(rate),
	})
	last := now.Unix()
	return &store.TaskPattern{
		CreatorID:        userID,
		Type:             store.PatternTypeBehavior,
		NormalizedTitle:  "completion rate",
		Frequency:        "continuous",
		Confidence:       rate,
		Attributes:       string(attrs),
		IsActive:         rate >= r.profile.PatternActivationConf,
		LastOccurrenceTs: &last,
	}
}

// classify picks the pattern type from cadence and occurrence shape.
func classify(ts []int64, meanGapDays float64, withDue, occurrences int) (store.PatternType, map[string]any) {
	attrs := map[string]any{}

	if withDue*2 >= occurrences {
		attrs["with_due"] = withDue
		return store.PatternTypeDeadline, attrs
	}

	// Monthly cadence on a stable day of month reads as seasonal.
	if meanGapDays >= 25 && meanGapDays <= 35 {
		if day, ok := dominant(ts, func(t time.Time) int { return t.Day() }); ok {
			attrs["day_of_month"] = day
			return store.PatternTypeSeasonal, attrs
		}
	}

	// Weekly cadence pinned to a weekday is a time-of-week signal.
	if meanGapDays >= 5 && meanGapDays <= 9 {
		if wd, ok := dominant(ts, func(t time.Time) int { return int(t.Weekday()) }); ok {
			attrs["weekday"] = time.Weekday(wd).String()
			return store.PatternTypeTemporal, attrs
		}
	}

	return store.PatternTypeRecurring, attrs
}

// dominant returns the bucket value covering at least 80% of occurrences.
func dominant(ts []int64, bucket func(time.Time) int) (int, bool) {
	counts := map[int]int{}
	for _, t := range ts {
		counts[bucket(time.Unix(t, 0))]++
	}
	for v, n := range counts {
		if n*5 >= len(ts)*4 {
			return v, true
		}
	}
	return 0, false
}

func gapStats(gaps []float64) (mean, cv float64) {
	if len(gaps) == 0 {
		return 0, 0
	}
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	if mean == 0 {
		return 0, 0
	}
	var variance float64
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))
	return mean, math.Sqrt(variance) / mean
}

func frequencyLabel(meanGapDays float64) string {
	switch {
	case meanGapDays <= 1.5:
		return "daily"
	case meanGapDays <= 9:
		return "weekly"
	case meanGapDays <= 18:
		return "biweekly"
	case meanGapDays <= 45:
		return "monthly"
	default:
		return "occasional"
	}
}

func occurrenceTs(t *store.Task) int64 {
	if t.Completed && t.CompletedTs != nil {
		return *t.CompletedTs
	}
	return t.CreatedTs
}

func lastTs(p *store.TaskPattern) int64 {
	if p.LastOccurrenceTs == nil {
		return 0
	}
	return *p.LastOccurrenceTs
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)
var spaces = regexp.MustCompile(`\s+`)

// NormalizeTitle folds a task title into its bucket key: lowercase, stripped
// of punctuation, whitespace collapsed.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonAlnum.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func clip(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
