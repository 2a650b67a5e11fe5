package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/romanzh1/onenote-export/internal/config"
	"github.com/romanzh1/onenote-export/internal/models"
	"github.com/romanzh1/onenote-export/pkg/onenote"
)

func TestRootCommandVersion(t *testing.T) {
	version = "1.2.3"

	cmd := newRootCmd(newApp())
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), "1.2.3") {
		t.Errorf("--version output = %q, want version", buf.String())
	}
}

func TestRootCommandHelp(t *testing.T) {
	cmd := newRootCmd(newApp())
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{"onenote-export", "check", "history", "--client-id", "--base-delay", "--journal-dsn"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("--help output missing %q", want)
		}
	}
}

func TestRootCommandRequiresClientID(t *testing.T) {
	t.Setenv("ONENOTE_CLIENT_ID", "")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("output_dir: "+filepath.Join(dir, "out")+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd(newApp())
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", cfgPath, "--log-file", ""})

	err := cmd.Execute()
	if !errors.Is(err, config.ErrMissingClientID) {
		t.Fatalf("Execute() error = %v, want ErrMissingClientID", err)
	}
}

func TestFinishLogsFailureToFile(t *testing.T) {
	t.Setenv("ONENOTE_CLIENT_ID", "")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("output_dir: "+filepath.Join(dir, "out")+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	logPath := filepath.Join(dir, "export.log")

	a := newApp()
	cmd := newRootCmd(a)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", cfgPath, "--log-file", logPath})

	err := cmd.Execute()
	if !errors.Is(err, config.ErrMissingClientID) {
		t.Fatalf("Execute() error = %v, want ErrMissingClientID", err)
	}
	a.finish(err)
	a.finish(nil)

	data, readErr := os.ReadFile(logPath)
	if readErr != nil {
		t.Fatalf("read log file: %v", readErr)
	}
	if !strings.Contains(string(data), "command failed") || !strings.Contains(string(data), "client id is not configured") {
		t.Errorf("log file = %q, want the command failure", data)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	cmd := &cobra.Command{Use: "onenote-export"}
	a := &app{}
	a.flags.register(cmd)
	if err := cmd.ParseFlags([]string{"--client-id", "abc", "--base-delay", "0.5", "--max-retries", "0", "--output", "dump"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := config.Default()
	cfg.Tenant = "organizations"
	a.flags.apply(cmd, cfg)

	if cfg.ClientID != "abc" || cfg.OutputDir != "dump" || cfg.MaxRetries != 0 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.BaseDelay.Duration() != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", cfg.BaseDelay)
	}
	if cfg.Tenant != "organizations" {
		t.Errorf("Tenant = %q, unset flag must not override", cfg.Tenant)
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "export.log")
	console := new(bytes.Buffer)

	logger, closeLog, err := newLogger("info", logFile, console)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Debug("hidden")
	logger.Info("exported page")
	closeLog()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "exported page") || strings.Contains(string(data), "hidden") {
		t.Errorf("log file = %q", data)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Errorf("log file contains color codes: %q", data)
	}
	if !strings.Contains(console.String(), "exported page") {
		t.Errorf("console = %q", console.String())
	}
}

func TestNewLoggerRejectsLevel(t *testing.T) {
	if _, _, err := newLogger("loud", "", new(bytes.Buffer)); err == nil {
		t.Fatal("newLogger() error = nil, want invalid level")
	}
}

func TestRenderDeviceCode(t *testing.T) {
	out := renderDeviceCode(onenote.DeviceCode{
		UserCode:        "ABCD-1234",
		VerificationURI: "https://microsoft.com/devicelogin",
		ExpiresAt:       time.Now().Add(15 * time.Minute),
	})

	for _, want := range []string{"ABCD-1234", "https://microsoft.com/devicelogin", "expires"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderDeviceCode() missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	buf := new(bytes.Buffer)

	printSummary(buf, &models.Summary{
		OutputDir:   "output",
		Notebooks:   1,
		Sections:    1,
		Pages:       2,
		FailedPages: []models.PageFailure{{Title: "Tuesday", Notebook: "Notes", Section: "Daily", Err: "boom"}},
		StartedAt:   start,
		FinishedAt:  start.Add(5 * time.Second),
	})

	for _, want := range []string{"completed with errors", "Pages:     2", "Notes / Daily / Tuesday: boom", "5s"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("printSummary() missing %q:\n%s", want, buf.String())
		}
	}
}

type fakeCheckAPI struct {
	sectionsErr error
}

func (f fakeCheckAPI) Me(context.Context) (*onenote.User, error) {
	return &onenote.User{DisplayName: "Ann"}, nil
}

func (f fakeCheckAPI) Notebooks(context.Context) ([]onenote.Notebook, error) {
	return []onenote.Notebook{{ID: "nb", DisplayName: "Work"}}, nil
}

func (f fakeCheckAPI) Sections(context.Context, string) ([]onenote.Section, error) {
	if f.sectionsErr != nil {
		return nil, f.sectionsErr
	}
	return []onenote.Section{{ID: "s", DisplayName: "Ideas"}}, nil
}

func (f fakeCheckAPI) Pages(context.Context, string) ([]onenote.Page, error) {
	return []onenote.Page{{ID: "p"}, {ID: "q"}}, nil
}

func TestRunChecks(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := runChecks(context.Background(), fakeCheckAPI{}, buf); err != nil {
		t.Fatalf("runChecks() error = %v", err)
	}

	for _, want := range []string{"user profile (Ann)", "notebooks (1 found)", "sections (1 in Work)", "pages (2 in Ideas)"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("runChecks() output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRunChecksStopsAtFailure(t *testing.T) {
	buf := new(bytes.Buffer)
	denied := &onenote.APICallError{URL: "x", StatusCode: 403}

	err := runChecks(context.Background(), fakeCheckAPI{sectionsErr: denied}, buf)

	var apiErr *onenote.APICallError
	if !errors.As(err, &apiErr) {
		t.Fatalf("runChecks() error = %v, want *APICallError", err)
	}
	if strings.Contains(buf.String(), "pages") {
		t.Errorf("pages checked after sections failed:\n%s", buf.String())
	}
}

type fakeRuns []*models.ExportRun

func (f fakeRuns) LastRuns(_ context.Context, limit uint64) ([]*models.ExportRun, error) {
	if uint64(len(f)) > limit {
		return f[:limit], nil
	}
	return f, nil
}

func TestPrintHistory(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := start.Add(2 * time.Minute)
	msg := "list notebooks: unauthorized"

	runs := fakeRuns{
		{ID: "RUN2", Status: models.RunFailed, StartedAt: start, FinishedAt: &finished, Error: &msg},
		{ID: "RUN1", Status: models.RunCompleted, Pages: 4, StartedAt: start, FinishedAt: &finished},
	}

	buf := new(bytes.Buffer)
	if err := printHistory(context.Background(), runs, 1, buf); err != nil {
		t.Fatalf("printHistory() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "RUN2") || strings.Contains(out, "RUN1") {
		t.Errorf("printHistory() ignored the limit:\n%s", out)
	}
	if !strings.Contains(out, msg) || !strings.Contains(out, "2m0s") {
		t.Errorf("printHistory() output:\n%s", out)
	}
}

func TestPrintHistoryEmpty(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := printHistory(context.Background(), fakeRuns{}, 10, buf); err != nil {
		t.Fatalf("printHistory() error = %v", err)
	}
	if !strings.Contains(buf.String(), "no export runs") {
		t.Errorf("printHistory() = %q", buf.String())
	}
}

type fakePages map[string][]*models.ExportedPage

func (f fakePages) PagesForRun(_ context.Context, runID string) ([]*models.ExportedPage, error) {
	return f[runID], nil
}

func TestPrintRunPages(t *testing.T) {
	msg := "convert page: boom"
	pages := fakePages{
		"RUN1": {
			{RunID: "RUN1", Notebook: "Work", Section: "Ideas", Title: "Q1 Plan", Status: models.PageExported, MediaCount: 2, MediaFailed: 1},
			{RunID: "RUN1", Notebook: "Work", Section: "Ideas", Title: "Broken", Status: models.PageFailed, Error: &msg},
		},
	}

	buf := new(bytes.Buffer)
	if err := printRunPages(context.Background(), pages, "RUN1", buf); err != nil {
		t.Fatalf("printRunPages() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"exported", "Work / Ideas / Q1 Plan", "(media 2, failed 1)", "failed", "Work / Ideas / Broken", msg} {
		if !strings.Contains(out, want) {
			t.Errorf("printRunPages() output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintRunPagesUnknownRun(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := printRunPages(context.Background(), fakePages{}, "NOPE", buf); err != nil {
		t.Fatalf("printRunPages() error = %v", err)
	}
	if !strings.Contains(buf.String(), "no pages recorded for run NOPE") {
		t.Errorf("printRunPages() = %q", buf.String())
	}
}

type fakeResetter struct {
	calls int
	err   error
}

func (f *fakeResetter) Reset() error {
	f.calls++
	return f.err
}

func TestResetJournal(t *testing.T) {
	r := &fakeResetter{}
	buf := new(bytes.Buffer)
	if err := resetJournal(r, buf); err != nil {
		t.Fatalf("resetJournal() error = %v", err)
	}
	if r.calls != 1 || !strings.Contains(buf.String(), "journal reset") {
		t.Errorf("calls = %d, output = %q", r.calls, buf.String())
	}

	failing := &fakeResetter{err: errors.New("permission denied")}
	buf.Reset()
	if err := resetJournal(failing, buf); !errors.Is(err, failing.err) {
		t.Errorf("resetJournal() error = %v, want %v", err, failing.err)
	}
	if buf.Len() != 0 {
		t.Errorf("resetJournal() printed %q on failure", buf.String())
	}
}
