package store

import (
	"context"
	"time"
)

// Store persists run history across pipeline invocations.
type Store interface {
	Close() error

	RecordRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	// ListRuns returns runs newest first. An empty dataset matches all
	// datasets; limit <= 0 means no limit.
	ListRuns(ctx context.Context, dataset string, limit int) ([]Run, error)
}

// Run is one recorded dataset run.
type Run struct {
	ID         string
	Dataset    string
	Model      string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Successful int
	Failed     int
	OutputPath string
}
