// Package usage keeps an append-only ledger of the tokens spent on each
// LLM call. A guest turn costs one decision call and, when a tool ran,
// one synthesis call; both carry the turn's request id.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Turn phases recorded in the ledger.
const (
	PhaseDecision  = "decision"
	PhaseSynthesis = "synthesis"
)

// Record is the token usage of a single LLM call.
type Record struct {
	ID           string
	At           time.Time
	RequestID    string
	JID          string
	Model        string
	Phase        string
	InputTokens  int
	OutputTokens int
}

// Summary aggregates a set of calls.
type Summary struct {
	Calls        int   `json:"calls"`
	Turns        int   `json:"turns"`
	Guests       int   `json:"guests"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Report is the ledger over a time window, in total and broken down by
// phase and by model.
type Report struct {
	Total   Summary            `json:"total"`
	ByPhase map[string]Summary `json:"by_phase"`
	ByModel map[string]Summary `json:"by_model"`
}

// Store is the SQLite-backed ledger.
type Store struct {
	db *sql.DB
}

// NewStore creates the ledger table on db if needed. The caller owns
// the database handle.
func NewStore(db *sql.DB) (*Store, error) {
	const schema = `
	CREATE TABLE IF NOT EXISTS llm_calls (
		id            TEXT PRIMARY KEY,
		at_ms         INTEGER NOT NULL,
		request_id    TEXT NOT NULL,
		jid           TEXT NOT NULL DEFAULT '',
		model         TEXT NOT NULL,
		phase         TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_llm_calls_at ON llm_calls(at_ms);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create usage ledger: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends rec. An empty ID gets a UUIDv7 and a zero At becomes
// now.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("usage record id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_calls (id, at_ms, request_id, jid, model, phase, input_tokens, output_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.At.UnixMilli(), rec.RequestID, rec.JID,
		rec.Model, rec.Phase, rec.InputTokens, rec.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("append usage record %s: %w", rec.RequestID, err)
	}
	return nil
}

// Report aggregates the calls made within [start, end).
func (s *Store) Report(ctx context.Context, start, end time.Time) (*Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT phase, model FROM llm_calls WHERE at_ms >= ? AND at_ms < ?`,
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage groups: %w", err)
	}
	rep := &Report{ByPhase: map[string]Summary{}, ByModel: map[string]Summary{}}
	for rows.Next() {
		var phase, model string
		if err := rows.Scan(&phase, &model); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan usage groups: %w", err)
		}
		rep.ByPhase[phase] = Summary{}
		rep.ByModel[model] = Summary{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read usage groups: %w", err)
	}

	// Turns and guests overlap across groups, so every group is
	// counted on its own rather than summed from finer rows.
	if rep.Total, err = s.window(ctx, start, end, "", ""); err != nil {
		return nil, err
	}
	for phase := range rep.ByPhase {
		if rep.ByPhase[phase], err = s.window(ctx, start, end, "phase", phase); err != nil {
			return nil, err
		}
	}
	for model := range rep.ByModel {
		if rep.ByModel[model], err = s.window(ctx, start, end, "model", model); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// window totals the calls in [start, end) whose column equals value.
// An empty column selects every call. column is always a literal from
// Report.
func (s *Store) window(ctx context.Context, start, end time.Time, column, value string) (Summary, error) {
	query := `SELECT COUNT(*), COUNT(DISTINCT request_id), COUNT(DISTINCT NULLIF(jid, '')),
	                 COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
	          FROM llm_calls
	          WHERE at_ms >= ? AND at_ms < ?`
	args := []any{start.UnixMilli(), end.UnixMilli()}
	if column != "" {
		query += " AND " + column + " = ?"
		args = append(args, value)
	}

	var sum Summary
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&sum.Calls, &sum.Turns, &sum.Guests, &sum.InputTokens, &sum.OutputTokens)
	if err != nil {
		return Summary{}, fmt.Errorf("query usage totals: %w", err)
	}
	return sum, nil
}
