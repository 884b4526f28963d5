// Package state records pipeline runs and the join statistics of each step
// in a SQLite database.
package state

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one execution of a pipeline file.
type Run struct {
	ID          string
	Pipeline    string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Duration is the wall time of a finished run, zero while running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// StepStat is what one join step reported.
type StepStat struct {
	RunID          string
	Step           string
	JoinType       string
	LeftKeys       []string
	RightKeys      []string
	LeftRows       int
	RightRows      int
	OutputRows     int
	MatchedPairs   int
	UnmatchedLeft  int
	UnmatchedRight int
	DistinctKeys   int
	MaxFanout      int
	Duration       time.Duration
	RecordedAt     time.Time
}

// Growth is output rows over the larger input, 0 for empty inputs.
func (s StepStat) Growth() float64 {
	base := max(s.LeftRows, s.RightRows)
	if base == 0 {
		return 0
	}
	return float64(s.OutputRows) / float64(base)
}

// Store persists runs and step statistics.
type Store interface {
	CreateRun(ctx context.Context, pipeline string) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	RecordStep(ctx context.Context, stat StepStat) error
	GetStepStats(ctx context.Context, runID string) ([]StepStat, error)
	Close() error
}
