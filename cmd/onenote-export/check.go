package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/romanzh1/onenote-export/pkg/onenote"
)

type checkAPI interface {
	Me(ctx context.Context) (*onenote.User, error)
	Notebooks(ctx context.Context) ([]onenote.Notebook, error)
	Sections(ctx context.Context, notebookID string) ([]onenote.Section, error)
	Pages(ctx context.Context, sectionID string) ([]onenote.Page, error)
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Sign in and verify the account can read OneNote content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			client, err := a.graphClient(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			return runChecks(cmd.Context(), client, cmd.OutOrStdout())
		},
	}
}

// runChecks queries the profile, notebooks, then the first notebook's sections
// and the first section's pages, stopping at the first level that fails.
func runChecks(ctx context.Context, api checkAPI, w io.Writer) error {
	ok := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	dim := color.New(color.FgHiBlack)

	report := func(name string, err error, detail string) error {
		if err != nil {
			fail.Fprintf(w, "✗ %s: %v\n", name, err)
			return fmt.Errorf("check %s: %w", name, err)
		}
		ok.Fprintf(w, "✓ %s", name)
		dim.Fprintf(w, " %s\n", detail)
		return nil
	}

	user, err := api.Me(ctx)
	detail := ""
	if err == nil {
		detail = fmt.Sprintf("(%s)", user.DisplayName)
	}
	if err := report("user profile", err, detail); err != nil {
		return err
	}

	notebooks, err := api.Notebooks(ctx)
	if err := report("notebooks", err, fmt.Sprintf("(%d found)", len(notebooks))); err != nil {
		return err
	}
	if len(notebooks) == 0 {
		return nil
	}

	sections, err := api.Sections(ctx, notebooks[0].ID)
	if err := report("sections", err, fmt.Sprintf("(%d in %s)", len(sections), notebooks[0].DisplayName)); err != nil {
		return err
	}
	if len(sections) == 0 {
		return nil
	}

	pages, err := api.Pages(ctx, sections[0].ID)
	return report("pages", err, fmt.Sprintf("(%d in %s)", len(pages), sections[0].DisplayName))
}
