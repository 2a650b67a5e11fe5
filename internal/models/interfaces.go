package models

import "context"

// Journal persists export runs and per-page outcomes.
type Journal interface {
	StartRun(ctx context.Context, run *ExportRun) error
	RecordPage(ctx context.Context, page *ExportedPage) error
	FinishRun(ctx context.Context, run *ExportRun) error
	LastRuns(ctx context.Context, limit uint64) ([]*ExportRun, error)
}

type Notifier interface {
	Notify(ctx context.Context, summary *Summary) error
}
