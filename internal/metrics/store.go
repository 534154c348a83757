// Package metrics persists operational metadata of pipeline runs: per-agent
// token usage and per-stage wall clock timings.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"nutriplan/internal/shared"
)

// ExecutionMetric records metadata for a single agent execution.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Timestamp        time.Time
}

// StageTiming records how long one pipeline stage ran within a run.
type StageTiming struct {
	RunID     string
	StageName string
	Duration  time.Duration
	OK        bool
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves an execution metric.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_metrics (agent_name, model, prompt_tokens, completion_tokens, latency_ms, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.AgentName, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, ts)
	return err
}

// RecordMeta records a metric directly from shared.AgentMeta. Executions
// that consumed no tokens, such as the deterministic generator, are
// skipped.
func (s *Store) RecordMeta(ctx context.Context, meta shared.AgentMeta) error {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 {
		return nil
	}
	return s.Record(ctx, MapUsage(meta.AgentName, meta.Usage, meta.Latency))
}

// RecordStage saves a stage timing.
func (s *Store) RecordStage(ctx context.Context, t StageTiming) error {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	ok := 0
	if t.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_timings (run_id, stage_name, duration_ms, ok, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		t.RunID, t.StageName, t.Duration.Milliseconds(), ok, ts)
	return err
}

// StageTimings returns the recorded timings of one run in insertion order.
func (s *Store) StageTimings(ctx context.Context, runID string) ([]StageTiming, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage_name, duration_ms, ok, timestamp FROM stage_timings WHERE run_id = ? ORDER BY id`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageTiming
	for rows.Next() {
		t := StageTiming{RunID: runID}
		var durMS int64
		var ok int
		if err := rows.Scan(&t.StageName, &durMS, &ok, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Duration = time.Duration(durMS) * time.Millisecond
		t.OK = ok == 1
		out = append(out, t)
	}
	return out, rows.Err()
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
}

// GetDailyUsage retrieves usage for the last N days.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(timestamp) AS day, SUM(prompt_tokens), SUM(completion_tokens), COUNT(*)
		 FROM execution_metrics WHERE timestamp >= ? GROUP BY day ORDER BY day DESC`,
		since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		var prompt, completion sql.NullFloat64
		if err := rows.Scan(&u.Date, &prompt, &completion, &u.TotalExecution); err != nil {
			return nil, err
		}
		if prompt.Valid {
			u.TotalPrompt = int(prompt.Float64)
		}
		if completion.Valid {
			u.TotalCompletion = int(completion.Float64)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes execution metrics older than the given number of days and
// returns how many rows were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MapUsage converts token usage to an ExecutionMetric.
func MapUsage(agentName string, usage shared.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}
}
