package projector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/storage/models"
)

// expansionHorizon bounds recurrence expansion for rules without COUNT or
// UNTIL.
const expansionHorizon = 365 * 24 * time.Hour

// syncRecurringJob replaces the job's whole event series with a fresh
// expansion of its recurrence rule. All occurrences share a new series ID;
// events owned by other sources are untouched.
func (p *Projector) syncRecurringJob(ctx context.Context, j *models.Job) (Outcome, error) {
	var out Outcome

	occurrences, err := p.expandRecurrence(j)
	if err != nil {
		return out, err
	}

	deleted, err := p.events.DeleteBySource(ctx, models.SourceJob, j.ID)
	if err != nil {
		return out, fmt.Errorf("removing prior series: %w", err)
	}
	out.Deleted = deleted

	seriesID := uuid.NewString()
	duration := time.Duration(j.EstimatedDurationMin) * time.Minute

	for _, start := range occurrences {
		ev := deriveJobEvent(j, models.Interval{Start: start, End: start.Add(duration)}, &seriesID)
		if err := p.events.Create(ctx, &ev); err != nil {
			// Each occurrence is independently retryable; the series is
			// eventually consistent. Log and keep deriving the rest.
			p.log.Error("failed to create series occurrence",
				zap.String("job_id", j.ID),
				zap.Time("occurrence", start),
				zap.Error(err))
			continue
		}
		out.Created = append(out.Created, ev)
	}

	return out, nil
}

// expandRecurrence evaluates the job's RRULE into concrete occurrence start
// times, capped at maxOccurrences within a one-year horizon.
func (p *Projector) expandRecurrence(j *models.Job) ([]time.Time, error) {
	raw := strings.TrimSpace(*j.Recurrence)
	raw = strings.TrimPrefix(raw, "RRULE:")

	rule, err := rrule.StrToRRule(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing recurrence rule %q: %w", raw, err)
	}
	rule.DTStart(j.ScheduledStart)

	times := rule.Between(j.ScheduledStart, j.ScheduledStart.Add(expansionHorizon), true)
	if len(times) > p.maxOccurrences {
		p.log.Warn("recurrence expansion capped",
			zap.String("job_id", j.ID),
			zap.Int("cap", p.maxOccurrences),
			zap.Int("expanded", len(times)))
		times = times[:p.maxOccurrences]
	}
	if len(times) == 0 {
		// A rule that yields nothing still projects its own start.
		times = []time.Time{j.ScheduledStart}
	}
	return times, nil
}
