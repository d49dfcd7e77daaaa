// Package scheduler derives each run's planned window from the estimates of
// the runs before it.
//
// A run that has ended keeps the plan it had; every other run starts when
// the previous run is planned to end (the event start for the first run)
// and lasts its estimate. Because each plan depends on the one before, runs
// are always processed in ascending run_index order.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/overlay-core/internal/timeline"
)

// Recompute refreshes one run's planning window from its predecessor and
// persists it. Runs with an actual end are left untouched.
func Recompute(ctx context.Context, repo timeline.Repository, event *timeline.Event, run *timeline.Run) error {
	if run.ActualEnd != nil {
		return nil
	}

	start := event.StartAt
	prev, err := repo.RunBefore(ctx, event.ID, run.Index)
	switch {
	case err == nil:
		start = prev.PlanningEnd
	case errors.Is(err, timeline.ErrRunNotFound):
	default:
		return fmt.Errorf("finding run before %d: %w", run.Index, err)
	}

	run.PlanningStart = start
	run.PlanningEnd = start.Add(run.Estimated)
	if err := repo.UpdatePlanning(ctx, run.ID, run.PlanningStart, run.PlanningEnd); err != nil {
		return fmt.Errorf("saving plan for run %d: %w", run.ID, err)
	}
	return nil
}

// RecomputeAll applies Recompute to every run of the event in order and
// returns the runs as stored afterwards.
func RecomputeAll(ctx context.Context, repo timeline.Repository, event *timeline.Event) ([]*timeline.Run, error) {
	runs, err := repo.ListRuns(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	for _, run := range Plan(event, runs) {
		if err := repo.UpdatePlanning(ctx, run.ID, run.PlanningStart, run.PlanningEnd); err != nil {
			return nil, fmt.Errorf("saving plan for run %d: %w", run.ID, err)
		}
	}
	return runs, nil
}

// Plan rewrites the planning windows of runs in place and returns the runs
// whose window changed. runs must be sorted by run_index.
func Plan(event *timeline.Event, runs []*timeline.Run) []*timeline.Run {
	var changed []*timeline.Run

	prevEnd := event.StartAt
	for _, run := range runs {
		if run.ActualEnd != nil {
			prevEnd = run.PlanningEnd
			continue
		}

		start := prevEnd
		end := start.Add(run.Estimated)
		if !run.PlanningStart.Equal(start) || !run.PlanningEnd.Equal(end) {
			run.PlanningStart = start
			run.PlanningEnd = end
			changed = append(changed, run)
		}
		prevEnd = end
	}
	return changed
}
