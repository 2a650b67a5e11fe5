package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/romanzh1/onenote-export/internal/models"
	"github.com/romanzh1/onenote-export/pkg/onenote"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true)
	codeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func devicePrompter(w io.Writer) func(onenote.DeviceCode) {
	return func(code onenote.DeviceCode) {
		fmt.Fprintln(w, renderDeviceCode(code))
	}
}

func renderDeviceCode(code onenote.DeviceCode) string {
	lines := []string{
		headingStyle.Render("Sign in to Microsoft"),
		"",
		"Open " + code.VerificationURI,
		"and enter the code " + codeStyle.Render(code.UserCode),
	}
	if code.VerificationURIComplete != "" {
		lines = append(lines, "", dimStyle.Render("or open "+code.VerificationURIComplete))
	}
	if !code.ExpiresAt.IsZero() {
		lines = append(lines, "", dimStyle.Render("The code expires at "+code.ExpiresAt.Local().Format(time.Kitchen)))
	}

	return panelStyle.Render(strings.Join(lines, "\n"))
}

func printSummary(w io.Writer, s *models.Summary) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	switch {
	case s.Error != "":
		red.Fprintf(w, "✗ Export stopped: %s\n", s.Error)
	case s.Clean():
		green.Fprintln(w, "✓ Export completed successfully!")
	default:
		yellow.Fprintln(w, "⚠ Export completed with errors")
	}

	fmt.Fprintf(w, "  Output:    %s\n", s.OutputDir)
	fmt.Fprintf(w, "  Notebooks: %d\n", s.Notebooks)
	fmt.Fprintf(w, "  Sections:  %d\n", s.Sections)
	fmt.Fprintf(w, "  Pages:     %d\n", s.Pages)
	fmt.Fprintf(w, "  Media:     %d\n", s.Media)
	fmt.Fprintf(w, "  Duration:  %s\n", s.Duration().Round(time.Second))

	if s.MediaFailed > 0 {
		yellow.Fprintf(w, "⚠ %d media files could not be downloaded and keep their remote URL\n", s.MediaFailed)
	}
	for _, b := range s.Branches {
		red.Fprintf(w, "✗ skipped %s %s: %s\n", b.Kind, b.Name, b.Err)
	}
	for _, f := range s.FailedPages {
		red.Fprintf(w, "✗ %s / %s / %s: %s\n", f.Notebook, f.Section, f.Title, f.Err)
	}
}
