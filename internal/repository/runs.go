package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/romanzh1/onenote-export/internal/models"
)

var runColumns = []string{
	"id", "output_dir", "status", "notebooks", "sections", "pages", "failed_pages", "media", "error", "started_at", "finished_at",
}

func (r *Postgres) StartRun(ctx context.Context, run *models.ExportRun) error {
	sql, args, err := r.insertRunQuery(run).ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (run_id: %s): %w", run.ID, err)
	}

	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("start run (run_id: %s): %w", run.ID, err)
	}

	return nil
}

func (r *Postgres) FinishRun(ctx context.Context, run *models.ExportRun) error {
	sql, args, err := r.finishRunQuery(run).ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (run_id: %s): %w", run.ID, err)
	}

	res, err := r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("finish run (run_id: %s): %w", run.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run (run_id: %s): run not found", run.ID)
	}

	return nil
}

func (r *Postgres) LastRuns(ctx context.Context, limit uint64) ([]*models.ExportRun, error) {
	sql, args, err := r.lastRunsQuery(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (limit: %d): %w", limit, err)
	}

	var runs []*models.ExportRun
	if err := r.SelectContext(ctx, &runs, sql, args...); err != nil {
		return nil, fmt.Errorf("get last runs (limit: %d): %w", limit, err)
	}

	return runs, nil
}

func (r *Postgres) insertRunQuery(run *models.ExportRun) squirrel.InsertBuilder {
	return r.psql.Insert("export_runs").
		Columns("id", "output_dir", "status", "started_at").
		Values(run.ID, run.OutputDir, run.Status, run.StartedAt)
}

func (r *Postgres) finishRunQuery(run *models.ExportRun) squirrel.UpdateBuilder {
	return r.psql.Update("export_runs").
		Set("status", run.Status).
		Set("notebooks", run.Notebooks).
		Set("sections", run.Sections).
		Set("pages", run.Pages).
		Set("failed_pages", run.Failed).
		Set("media", run.Media).
		Set("error", run.Error).
		Set("finished_at", run.FinishedAt).
		Where(squirrel.Eq{"id": run.ID})
}

func (r *Postgres) lastRunsQuery(limit uint64) squirrel.SelectBuilder {
	return r.psql.Select(runColumns...).
		From("export_runs").
		OrderBy("started_at DESC").
		Limit(limit)
}
