package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/dining/internal/trace"
)

// CreateRun inserts the header of a run that is about to start.
// Run IDs are never reused: a second run with the same ID is rejected with
// ErrRunExists and the stored run is left untouched.
//
// The seed is stored bit-for-bit as a signed integer; SQLite has no
// unsigned type.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("create run: empty id")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, agents, run_duration_ns, think_max_ns, eat_max_ns, seed, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Agents,
		int64(run.RunDuration),
		int64(run.ThinkMax),
		int64(run.EatMax),
		int64(run.Seed),
		run.Started.UnixNano(),
		string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("create run %s: %w", run.ID, ErrRunExists)
	}
	return nil
}

// FinishRun records the outcome of a run created with CreateRun.
// The seed is updated as well, since a time-derived seed is only known
// once the run has started.
//
// Returns ErrNotFound if no such run exists.
func (s *Store) FinishRun(ctx context.Context, id string, seed uint64, out Outcome) error {
	meals := out.Meals
	if meals == nil {
		meals = []int64{}
	}
	mealsJSON, err := json.Marshal(meals)
	if err != nil {
		return fmt.Errorf("finish run: marshal meals: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET seed = ?, finished_at = ?, status = ?, cause = ?, error = ?, meals = ?, events = ?
		WHERE id = ?
	`,
		int64(seed),
		out.Finished.UnixNano(),
		string(out.Status),
		out.Cause,
		out.Error,
		string(mealsJSON),
		out.Events,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// WriteEvents inserts a batch of events in one transaction.
// Uses ON CONFLICT(run_id, seq) DO NOTHING for idempotency - rewriting an
// event that is already stored is a no-op.
//
// Note: every event's run must exist (foreign key constraint).
func (s *Store) WriteEvents(ctx context.Context, events []trace.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(run_id, seq, kind, agent, from_state, to_state, resource, at_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		from, to := "", ""
		if ev.Kind == trace.KindTransition {
			from, to = ev.From.String(), ev.To.String()
		}
		if _, err := stmt.ExecContext(ctx,
			ev.RunID,
			ev.Seq,
			ev.Kind.String(),
			ev.Agent,
			from,
			to,
			ev.Resource,
			ev.At.UnixNano(),
		); err != nil {
			return fmt.Errorf("write events: seq %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: commit: %w", err)
	}
	return nil
}
