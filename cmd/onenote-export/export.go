package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/romanzh1/onenote-export/internal/markdown"
	"github.com/romanzh1/onenote-export/internal/notify"
	"github.com/romanzh1/onenote-export/internal/repository"
	"github.com/romanzh1/onenote-export/internal/service"
	"github.com/romanzh1/onenote-export/pkg/onenote"
)

const (
	journalMaxIdle = 2
	journalMaxOpen = 4
)

func (a *app) runExport(cmd *cobra.Command) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()

	client, err := a.graphClient(ctx, cmd)
	if err != nil {
		return err
	}

	opts := []service.ExporterOption{service.WithExporterLogger(a.logger)}

	if a.cfg.JournalEnabled() {
		repo, err := openJournal(a.cfg.JournalDSN)
		if err != nil {
			return err
		}
		defer repo.Close()

		opts = append(opts, service.WithJournal(repo))
	}

	if a.cfg.NotifyEnabled() {
		tg, err := notify.NewTelegram(a.cfg.TelegramToken, a.cfg.TelegramChatID, notify.WithLogger(a.logger))
		if err != nil {
			a.logger.Warn("telegram notifications disabled", zap.Error(err))
		} else {
			opts = append(opts, service.WithNotifier(tg))
		}
	}

	exporter := service.NewExporter(client, markdown.NewTransformer(client, a.logger), a.cfg.OutputDir, opts...)

	summary, err := exporter.ExportAll(ctx)
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary)
	}
	if err != nil {
		if service.IsInterrupted(err) {
			a.logger.Warn("export interrupted by user")
		}
		return fmt.Errorf("export failed: %w", err)
	}

	return nil
}

// graphClient authenticates with the device code flow and returns a Graph
// client bound to the resulting session.
func (a *app) graphClient(ctx context.Context, cmd *cobra.Command) (*onenote.Client, error) {
	auth := onenote.NewAuthService(a.cfg.ClientID, a.cfg.Tenant, a.cfg.Scopes,
		onenote.WithPrompter(devicePrompter(cmd.ErrOrStderr())),
		onenote.WithAuthLogger(a.logger),
	)

	session, err := auth.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	return onenote.NewClient(session.HTTPClient(),
		onenote.WithBaseURL(a.cfg.GraphURL),
		onenote.WithMaxRetries(a.cfg.MaxRetries),
		onenote.WithBaseDelay(a.cfg.BaseDelay.Duration()),
		onenote.WithMediaLimits(a.cfg.MediaMaxBytes, a.cfg.MediaTimeout.Duration()),
		onenote.WithLogger(a.logger),
	), nil
}

func openJournal(dsn string) (*repository.Postgres, error) {
	repo, err := repository.NewDB(dsn, journalMaxIdle, journalMaxOpen)
	if err != nil {
		return nil, fmt.Errorf("open export journal: %w", err)
	}

	if err := repo.Up(); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("migrate export journal: %w", err)
	}

	return repo, nil
}
