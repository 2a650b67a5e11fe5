package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/romanzh1/onenote-export/internal/models"
)

// RecordPage stores the page outcome and bumps the run counters in one
// transaction. Re-recording a page in the same run overwrites the earlier row.
func (r *Postgres) RecordPage(ctx context.Context, page *models.ExportedPage) error {
	return r.RunInTx(ctx, func(tx *Postgres) error {
		sql, args, err := tx.upsertPageQuery(page).ToSql()
		if err != nil {
			return fmt.Errorf("build SQL query (run_id: %s, page_id: %s): %w", page.RunID, page.PageID, err)
		}

		if _, err = tx.ExecContext(ctx, sql, args...); err != nil {
			return fmt.Errorf("record page (run_id: %s, page_id: %s): %w", page.RunID, page.PageID, err)
		}

		sql, args, err = tx.bumpRunCountersQuery(page).ToSql()
		if err != nil {
			return fmt.Errorf("build SQL query (run_id: %s): %w", page.RunID, err)
		}

		if _, err = tx.ExecContext(ctx, sql, args...); err != nil {
			return fmt.Errorf("update run counters (run_id: %s): %w", page.RunID, err)
		}

		return nil
	})
}

func (r *Postgres) PagesForRun(ctx context.Context, runID string) ([]*models.ExportedPage, error) {
	sql, args, err := r.pagesForRunQuery(runID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (run_id: %s): %w", runID, err)
	}

	var pages []*models.ExportedPage
	if err := r.SelectContext(ctx, &pages, sql, args...); err != nil {
		return nil, fmt.Errorf("get pages for run (run_id: %s): %w", runID, err)
	}

	return pages, nil
}

func (r *Postgres) pagesForRunQuery(runID string) squirrel.SelectBuilder {
	return r.psql.Select(
		"run_id", "page_id", "notebook", "section", "title", "file_path", "status",
		"media_count", "media_failed", "error", "exported_at",
	).
		From("exported_pages").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("exported_at ASC")
}

func (r *Postgres) upsertPageQuery(page *models.ExportedPage) squirrel.InsertBuilder {
	return r.psql.Insert("exported_pages").
		Columns("run_id", "page_id", "notebook", "section", "title", "file_path", "status", "media_count", "media_failed", "error", "exported_at").
		Values(page.RunID, page.PageID, page.Notebook, page.Section, page.Title, page.FilePath, page.Status, page.MediaCount, page.MediaFailed, page.Error, page.ExportedAt).
		Suffix("ON CONFLICT (run_id, page_id) DO UPDATE SET " +
			"file_path = EXCLUDED.file_path, status = EXCLUDED.status, media_count = EXCLUDED.media_count, " +
			"media_failed = EXCLUDED.media_failed, error = EXCLUDED.error, exported_at = EXCLUDED.exported_at")
}

func (r *Postgres) bumpRunCountersQuery(page *models.ExportedPage) squirrel.UpdateBuilder {
	query := r.psql.Update("export_runs").
		Set("media", squirrel.Expr("media + ?", page.MediaCount)).
		Where(squirrel.Eq{"id": page.RunID})

	if page.Status == models.PageFailed {
		return query.Set("failed_pages", squirrel.Expr("failed_pages + 1"))
	}
	return query.Set("pages", squirrel.Expr("pages + 1"))
}
