package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// RecordStep stores the statistics of one join step. Recording the same
// step of a run twice replaces the earlier row.
func (s *SQLiteStore) RecordStep(ctx context.Context, stat StepStat) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	leftKeys, err := json.Marshal(nonNil(stat.LeftKeys))
	if err != nil {
		return err
	}
	rightKeys, err := json.Marshal(nonNil(stat.RightKeys))
	if err != nil {
		return err
	}
	if stat.RecordedAt.IsZero() {
		stat.RecordedAt = time.Now()
	}

	s.logger.Debug("recording step",
		slog.String("run_id", stat.RunID),
		slog.String("step", stat.Step),
		slog.Int("output_rows", stat.OutputRows))

	_, err = s.exec(ctx, `
		INSERT OR REPLACE INTO step_stats (
			run_id, step, join_type, left_keys, right_keys,
			left_rows, right_rows, output_rows, matched_pairs,
			unmatched_left, unmatched_right, distinct_keys, max_fanout,
			duration_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stat.RunID, stat.Step, stat.JoinType, string(leftKeys), string(rightKeys),
		stat.LeftRows, stat.RightRows, stat.OutputRows, stat.MatchedPairs,
		stat.UnmatchedLeft, stat.UnmatchedRight, stat.DistinctKeys, stat.MaxFanout,
		stat.Duration.Milliseconds(), formatTime(stat.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record step %s: %w", stat.Step, err)
	}
	return nil
}

// GetStepStats returns the steps recorded for a run in recording order.
func (s *SQLiteStore) GetStepStats(ctx context.Context, runID string) ([]StepStat, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step, join_type, left_keys, right_keys,
			left_rows, right_rows, output_rows, matched_pairs,
			unmatched_left, unmatched_right, distinct_keys, max_fanout,
			duration_ms, recorded_at
		FROM step_stats
		WHERE run_id = ?
		ORDER BY recorded_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get step stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []StepStat
	for rows.Next() {
		var (
			st                  StepStat
			leftKeys, rightKeys string
			durationMS          int64
			recordedAt          string
		)
		if err := rows.Scan(&st.RunID, &st.Step, &st.JoinType, &leftKeys, &rightKeys,
			&st.LeftRows, &st.RightRows, &st.OutputRows, &st.MatchedPairs,
			&st.UnmatchedLeft, &st.UnmatchedRight, &st.DistinctKeys, &st.MaxFanout,
			&durationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step stats: %w", err)
		}
		if err := json.Unmarshal([]byte(leftKeys), &st.LeftKeys); err != nil {
			return nil, fmt.Errorf("invalid left_keys for step %s: %w", st.Step, err)
		}
		if err := json.Unmarshal([]byte(rightKeys), &st.RightKeys); err != nil {
			return nil, fmt.Errorf("invalid right_keys for step %s: %w", st.Step, err)
		}
		st.Duration = time.Duration(durationMS) * time.Millisecond
		if st.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step stats: %w", err)
	}
	return stats, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
