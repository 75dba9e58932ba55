package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dining/internal/trace"
)

const eventColumns = `run_id, seq, kind, agent, from_state, to_state, resource, at_unix_ns`

// EventFilter selects events of one run. Zero-valued fields do not
// constrain the result.
type EventFilter struct {
	RunID   string       // required
	Agents  []int        // only these agents
	Kinds   []trace.Kind // only these kinds
	FromSeq int64        // seq >= FromSeq
	ToSeq   int64        // seq <= ToSeq
	Limit   int          // at most Limit events
}

// compile turns f into a parameterized query. Values are never
// interpolated into the SQL text, and the result is always ordered by seq.
func (f EventFilter) compile() (string, []any, error) {
	if f.RunID == "" {
		return "", nil, errors.New("event filter needs a run id")
	}
	if f.FromSeq < 0 || f.ToSeq < 0 || f.Limit < 0 {
		return "", nil, fmt.Errorf("event filter bounds must not be negative: from=%d to=%d limit=%d",
			f.FromSeq, f.ToSeq, f.Limit)
	}
	if f.ToSeq > 0 && f.FromSeq > f.ToSeq {
		return "", nil, fmt.Errorf("event filter range is empty: from=%d to=%d", f.FromSeq, f.ToSeq)
	}

	where := []string{"run_id = ?"}
	params := []any{f.RunID}

	if len(f.Agents) > 0 {
		where = append(where, "agent IN ("+placeholders(len(f.Agents))+")")
		for _, a := range f.Agents {
			params = append(params, a)
		}
	}
	if len(f.Kinds) > 0 {
		where = append(where, "kind IN ("+placeholders(len(f.Kinds))+")")
		for _, k := range f.Kinds {
			params = append(params, k.String())
		}
	}
	if f.FromSeq > 0 {
		where = append(where, "seq >= ?")
		params = append(params, f.FromSeq)
	}
	if f.ToSeq > 0 {
		where = append(where, "seq <= ?")
		params = append(params, f.ToSeq)
	}

	query := "SELECT " + eventColumns + " FROM events WHERE " +
		strings.Join(where, " AND ") + " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, f.Limit)
	}
	return query, params, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// QueryEvents returns the events matching f ordered by seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryEvents(ctx context.Context, f EventFilter) ([]trace.Event, error) {
	query, params, err := f.compile()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
