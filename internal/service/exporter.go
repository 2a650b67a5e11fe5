package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/romanzh1/onenote-export/internal/markdown"
	"github.com/romanzh1/onenote-export/internal/models"
	"github.com/romanzh1/onenote-export/pkg/onenote"
	"github.com/romanzh1/onenote-export/pkg/utils"
)

const (
	untitledHeading = "Untitled"
	dirPerm         = 0o755
	filePerm        = 0o644
)

type GraphAPI interface {
	Notebooks(ctx context.Context) ([]onenote.Notebook, error)
	Sections(ctx context.Context, notebookID string) ([]onenote.Section, error)
	Pages(ctx context.Context, sectionID string) ([]onenote.Page, error)
	PageContent(ctx context.Context, pageID string) (string, error)
}

type Transformer interface {
	ToMarkdown(ctx context.Context, pageHTML, destDir string) (markdown.Result, error)
}

type Exporter struct {
	api         GraphAPI
	transformer Transformer
	outputDir   string
	journal     models.Journal
	notifier    models.Notifier
	now         func() time.Time
	logger      *zap.Logger
}

type ExporterOption func(*Exporter)

func WithJournal(journal models.Journal) ExporterOption {
	return func(e *Exporter) {
		e.journal = journal
	}
}

func WithNotifier(notifier models.Notifier) ExporterOption {
	return func(e *Exporter) {
		e.notifier = notifier
	}
}

func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

func WithExporterLogger(logger *zap.Logger) ExporterOption {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExporter(api GraphAPI, transformer Transformer, outputDir string, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		api:         api,
		transformer: transformer,
		outputDir:   outputDir,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ExportAll walks notebooks, sections and pages in listing order and writes
// one Markdown file per page. Only a failure to list notebooks, a failure to
// create the output root or a cancelled context ends the run with an error;
// everything below that is logged, counted in the summary and skipped.
func (e *Exporter) ExportAll(ctx context.Context) (*models.Summary, error) {
	summary := &models.Summary{
		RunID:     ulid.Make().String(),
		OutputDir: e.outputDir,
		StartedAt: e.now(),
	}
	logger := e.logger.With(zap.String("run_id", summary.RunID))

	run := &models.ExportRun{
		ID:        summary.RunID,
		OutputDir: e.outputDir,
		Status:    models.RunRunning,
		StartedAt: utils.TruncateToSeconds(summary.StartedAt.UTC()),
	}
	e.startRun(ctx, run)

	err := e.walk(ctx, summary, logger)
	summary.FinishedAt = e.now()
	if err != nil {
		summary.Error = err.Error()
	}

	e.finishRun(ctx, run, summary, err)
	e.notify(ctx, summary)

	if err != nil {
		return summary, err
	}

	logger.Info("export finished",
		zap.Int("notebooks", summary.Notebooks),
		zap.Int("sections", summary.Sections),
		zap.Int("pages", summary.Pages),
		zap.Int("failed_pages", len(summary.FailedPages)),
		zap.Int("media", summary.Media),
		zap.Duration("duration", summary.Duration()))

	return summary, nil
}

func (e *Exporter) walk(ctx context.Context, summary *models.Summary, logger *zap.Logger) error {
	if err := os.MkdirAll(e.outputDir, dirPerm); err != nil {
		return fmt.Errorf("create output dir (path: %s): %w", e.outputDir, err)
	}

	logger.Info("fetching notebooks")
	notebooks, err := e.api.Notebooks(ctx)
	if err != nil {
		return fmt.Errorf("list notebooks: %w", err)
	}
	logger.Info("found notebooks", zap.Int("count", len(notebooks)))

	for _, notebook := range notebooks {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := e.exportNotebook(ctx, summary, notebook, logger); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func (e *Exporter) exportNotebook(ctx context.Context, summary *models.Summary, notebook onenote.Notebook, logger *zap.Logger) error {
	name := utils.SanitizeFileName(notebook.DisplayName, utils.IDPrefix("notebook", notebook.ID))
	logger = logger.With(zap.String("notebook", name))

	notebookDir := filepath.Join(e.outputDir, name)
	if err := os.MkdirAll(notebookDir, dirPerm); err != nil {
		e.branchFailed(summary, logger, "notebook", name, fmt.Errorf("create notebook dir: %w", err))
		return nil
	}
	summary.Notebooks++

	logger.Info("processing notebook")
	sections, err := e.api.Sections(ctx, notebook.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.branchFailed(summary, logger, "notebook", name, err)
		return nil
	}
	logger.Info("found sections", zap.Int("count", len(sections)))

	for _, section := range sections {
		if err := e.exportSection(ctx, summary, name, notebookDir, section, logger); err != nil {
			return err
		}
	}

	return nil
}

func (e *Exporter) exportSection(ctx context.Context, summary *models.Summary, notebook, notebookDir string, section onenote.Section, logger *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := utils.SanitizeFileName(section.DisplayName, utils.IDPrefix("section", section.ID))
	logger = logger.With(zap.String("section", name))

	sectionDir := filepath.Join(notebookDir, name)
	if err := os.MkdirAll(sectionDir, dirPerm); err != nil {
		e.branchFailed(summary, logger, "section", name, fmt.Errorf("create section dir: %w", err))
		return nil
	}
	summary.Sections++

	logger.Info("processing section")
	pages, err := e.api.Pages(ctx, section.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.branchFailed(summary, logger, "section", name, err)
		return nil
	}
	logger.Info("found pages", zap.Int("count", len(pages)))

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		record := e.exportPage(ctx, sectionDir, page)
		record.RunID = summary.RunID
		record.Notebook = notebook
		record.Section = name

		summary.Media += record.MediaCount
		summary.MediaFailed += record.MediaFailed

		if record.Status == models.PageFailed {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.FailedPages = append(summary.FailedPages, models.PageFailure{
				PageID:   page.ID,
				Title:    page.Title,
				Notebook: notebook,
				Section:  name,
				Err:      *record.Error,
			})
			logger.Error("failed to export page",
				zap.String("page_id", page.ID), zap.String("title", page.Title), zap.String("error", *record.Error))
		} else {
			summary.Pages++
			logger.Info("exported page", zap.String("title", page.Title), zap.String("file", record.FilePath))
		}

		e.recordPage(ctx, record, logger)
	}

	return nil
}

// exportPage never returns an error: failures are folded into the record as
// a *PageExportError message.
func (e *Exporter) exportPage(ctx context.Context, sectionDir string, page onenote.Page) *models.ExportedPage {
	record := &models.ExportedPage{
		PageID:     page.ID,
		Title:      page.Title,
		Status:     models.PageExported,
		ExportedAt: e.now(),
	}

	filePath, result, err := e.writePage(ctx, sectionDir, page)
	record.MediaCount = result.Localized()
	record.MediaFailed = result.Failed()
	if err != nil {
		msg := (&PageExportError{PageID: page.ID, Title: page.Title, Err: err}).Error()
		record.Status = models.PageFailed
		record.Error = &msg
		return record
	}
	record.FilePath = filePath

	return record
}

func (e *Exporter) writePage(ctx context.Context, sectionDir string, page onenote.Page) (string, markdown.Result, error) {
	content, err := e.api.PageContent(ctx, page.ID)
	if err != nil {
		return "", markdown.Result{}, err
	}

	result, err := e.transformer.ToMarkdown(ctx, content, sectionDir)
	if err != nil {
		return "", result, fmt.Errorf("transform page: %w", err)
	}

	fileName := utils.SanitizeFileName(page.Title, utils.IDPrefix("page", page.ID)) + ".md"
	filePath := filepath.Join(sectionDir, fileName)

	if err := os.WriteFile(filePath, []byte(RenderPage(page.Title, e.now(), result.Markdown)), filePerm); err != nil {
		return "", result, fmt.Errorf("write page file (path: %s): %w", filePath, err)
	}

	return filePath, result, nil
}

// RenderPage lays out an exported page: raw title heading, export stamp,
// separator, body.
func RenderPage(title string, exportedAt time.Time, body string) string {
	heading := title
	if strings.TrimSpace(heading) == "" {
		heading = untitledHeading
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", heading)
	fmt.Fprintf(&b, "*Exported from OneNote on %s*\n\n", utils.ExportStamp(exportedAt))
	b.WriteString("---\n\n")
	b.WriteString(body)

	return b.String()
}

func (e *Exporter) branchFailed(summary *models.Summary, logger *zap.Logger, kind, name string, err error) {
	summary.Branches = append(summary.Branches, models.BranchFailure{Kind: kind, Name: name, Err: err.Error()})
	logger.Error("skipping "+kind, zap.Error(err))
}

func (e *Exporter) startRun(ctx context.Context, run *models.ExportRun) {
	if e.journal == nil {
		return
	}

	if err := e.journal.StartRun(ctx, run); err != nil {
		e.logger.Error("failed to start journal run, journal disabled", zap.String("run_id", run.ID), zap.Error(err))
		e.journal = nil
	}
}

func (e *Exporter) recordPage(ctx context.Context, page *models.ExportedPage, logger *zap.Logger) {
	if e.journal == nil {
		return
	}

	if err := e.journal.RecordPage(ctx, page); err != nil {
		logger.Warn("failed to record page in journal", zap.String("page_id", page.PageID), zap.Error(err))
	}
}

func (e *Exporter) finishRun(ctx context.Context, run *models.ExportRun, summary *models.Summary, runErr error) {
	if e.journal == nil {
		return
	}

	finishedAt := utils.TruncateToSeconds(summary.FinishedAt.UTC())
	run.FinishedAt = &finishedAt
	run.Notebooks = summary.Notebooks
	run.Sections = summary.Sections
	run.Pages = summary.Pages
	run.Failed = len(summary.FailedPages)
	run.Media = summary.Media
	run.Status = models.RunCompleted
	if runErr != nil {
		msg := runErr.Error()
		run.Status = models.RunFailed
		run.Error = &msg
	}

	// Written even when the run was interrupted.
	if err := e.journal.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Error("failed to finish journal run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (e *Exporter) notify(ctx context.Context, summary *models.Summary) {
	if e.notifier == nil {
		return
	}

	if err := e.notifier.Notify(context.WithoutCancel(ctx), summary); err != nil {
		e.logger.Warn("failed to send export notification", zap.String("run_id", summary.RunID), zap.Error(err))
	}
}

// IsInterrupted reports whether err from ExportAll came from a cancelled
// context rather than from the Graph API or the filesystem.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
