package models

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

type PageStatus string

const (
	PageExported PageStatus = "exported"
	PageFailed   PageStatus = "failed"
)

type ExportRun struct {
	ID         string     `db:"id"`
	OutputDir  string     `db:"output_dir"`
	Status     RunStatus  `db:"status"`
	Notebooks  int        `db:"notebooks"`
	Sections   int        `db:"sections"`
	Pages      int        `db:"pages"`
	Failed     int        `db:"failed_pages"`
	Media      int        `db:"media"`
	Error      *string    `db:"error"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

type ExportedPage struct {
	RunID       string     `db:"run_id"`
	PageID      string     `db:"page_id"`
	Notebook    string     `db:"notebook"`
	Section     string     `db:"section"`
	Title       string     `db:"title"`
	FilePath    string     `db:"file_path"`
	Status      PageStatus `db:"status"`
	MediaCount  int        `db:"media_count"`
	MediaFailed int        `db:"media_failed"`
	Error       *string    `db:"error"`
	ExportedAt  time.Time  `db:"exported_at"`
}

type PageFailure struct {
	PageID   string
	Title    string
	Notebook string
	Section  string
	Err      string
}

// BranchFailure is a notebook or section whose listing failed, so none of
// its children were exported.
type BranchFailure struct {
	Kind string
	Name string
	Err  string
}

type Summary struct {
	RunID       string
	OutputDir   string
	Notebooks   int
	Sections    int
	Pages       int
	FailedPages []PageFailure
	Branches    []BranchFailure
	Media       int
	MediaFailed int
	// Error is set when the run ended early.
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Clean reports whether every listed page was exported.
func (s *Summary) Clean() bool {
	return s.Error == "" && len(s.FailedPages) == 0 && len(s.Branches) == 0
}
