package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/romanzh1/onenote-export/internal/models"
)

type runLister interface {
	LastRuns(ctx context.Context, limit uint64) ([]*models.ExportRun, error)
}

type pageLister interface {
	PagesForRun(ctx context.Context, runID string) ([]*models.ExportedPage, error)
}

type journalResetter interface {
	Reset() error
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit uint64
		runID string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent export runs recorded in the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.JournalEnabled() {
				return errors.New("journal_dsn is not configured")
			}

			repo, err := openJournal(a.cfg.JournalDSN)
			if err != nil {
				return err
			}
			defer repo.Close()

			switch {
			case reset:
				return resetJournal(repo, cmd.OutOrStdout())
			case runID != "":
				return printRunPages(cmd.Context(), repo, runID, cmd.OutOrStdout())
			default:
				return printHistory(cmd.Context(), repo, limit, cmd.OutOrStdout())
			}
		},
	}

	cmd.Flags().Uint64VarP(&limit, "limit", "n", 10, "number of runs to show")
	cmd.Flags().StringVarP(&runID, "run", "r", "", "show the pages exported by one run")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop and recreate the journal tables")
	cmd.MarkFlagsMutuallyExclusive("run", "reset")

	return cmd
}

func printHistory(ctx context.Context, runs runLister, limit uint64, w io.Writer) error {
	list, err := runs.LastRuns(ctx, limit)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Fprintln(w, "no export runs recorded")
		return nil
	}

	for _, run := range list {
		status := color.New(color.FgGreen)
		switch run.Status {
		case models.RunFailed:
			status = color.New(color.FgRed)
		case models.RunRunning:
			status = color.New(color.FgYellow)
		}

		duration := "-"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}

		fmt.Fprintf(w, "%s  %s  ", run.ID, run.StartedAt.Local().Format("2006-01-02 15:04"))
		status.Fprintf(w, "%-9s", run.Status)
		fmt.Fprintf(w, "  pages %d, failed %d, media %d, %s\n", run.Pages, run.Failed, run.Media, duration)
		if run.Error != nil {
			fmt.Fprintf(w, "    %s\n", *run.Error)
		}
	}

	return nil
}

func printRunPages(ctx context.Context, pages pageLister, runID string, w io.Writer) error {
	list, err := pages.PagesForRun(ctx, runID)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Fprintf(w, "no pages recorded for run %s\n", runID)
		return nil
	}

	for _, page := range list {
		status := color.New(color.FgGreen)
		if page.Status == models.PageFailed {
			status = color.New(color.FgRed)
		}

		status.Fprintf(w, "%-8s", page.Status)
		fmt.Fprintf(w, "  %s / %s / %s", page.Notebook, page.Section, page.Title)
		if page.MediaFailed > 0 {
			fmt.Fprintf(w, "  (media %d, failed %d)", page.MediaCount, page.MediaFailed)
		}
		fmt.Fprintln(w)
		if page.Error != nil {
			fmt.Fprintf(w, "    %s\n", *page.Error)
		}
	}

	return nil
}

func resetJournal(journal journalResetter, w io.Writer) error {
	if err := journal.Reset(); err != nil {
		return err
	}

	fmt.Fprintln(w, "journal reset")
	return nil
}
