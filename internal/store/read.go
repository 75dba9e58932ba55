package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/dining/internal/trace"
)

const runColumns = `id, agents, run_duration_ns, think_max_ns, eat_max_ns, seed,
	started_at, finished_at, status, cause, error, meals, events`

// ReadRun returns the run with the given ID, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the most recently started run, or ErrNotFound if the
// store is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns every recorded run, oldest first.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns all events of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]trace.Event, error) {
	return s.QueryEvents(ctx, EventFilter{RunID: runID})
}

// CountEvents returns how many events are stored for a run.
func (s *Store) CountEvents(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run      Run
		duration int64
		think    int64
		eat      int64
		seed     int64
		started  int64
		finished sql.NullInt64
		status   string
		meals    string
	)
	err := sc.Scan(&run.ID, &run.Agents, &duration, &think, &eat, &seed,
		&started, &finished, &status, &run.Cause, &run.Error, &meals, &run.Events)
	if err != nil {
		return Run{}, err
	}
	run.RunDuration = time.Duration(duration)
	run.ThinkMax = time.Duration(think)
	run.EatMax = time.Duration(eat)
	run.Seed = uint64(seed)
	run.Started = time.Unix(0, started).UTC()
	if finished.Valid {
		run.Finished = time.Unix(0, finished.Int64).UTC()
	}
	run.Status = Status(status)
	if err := json.Unmarshal([]byte(meals), &run.Meals); err != nil {
		return Run{}, fmt.Errorf("scan run %s: meals: %w", run.ID, err)
	}
	return run, nil
}

func scanEvent(sc scanner) (trace.Event, error) {
	var (
		ev             trace.Event
		kind, from, to string
		at             int64
	)
	if err := sc.Scan(&ev.RunID, &ev.Seq, &kind, &ev.Agent, &from, &to, &ev.Resource, &at); err != nil {
		return trace.Event{}, fmt.Errorf("scan event: %w", err)
	}
	k, err := trace.ParseKind(kind)
	if err != nil {
		return trace.Event{}, fmt.Errorf("scan event %d: %w", ev.Seq, err)
	}
	ev.Kind = k
	if k == trace.KindTransition {
		if ev.From, err = trace.ParseState(from); err != nil {
			return trace.Event{}, fmt.Errorf("scan event %d: %w", ev.Seq, err)
		}
		if ev.To, err = trace.ParseState(to); err != nil {
			return trace.Event{}, fmt.Errorf("scan event %d: %w", ev.Seq, err)
		}
	}
	ev.At = time.Unix(0, at).UTC()
	return ev, nil
}
