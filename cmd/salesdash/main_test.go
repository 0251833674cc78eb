package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salesdash/internal/api"
	"salesdash/internal/config"
	"salesdash/internal/dashboard"
	"salesdash/internal/server"
	"salesdash/internal/templates"
	"salesdash/internal/testutil"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the root command in isolation: no user config file, a
// temporary data directory and UTC dates
func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	return runCLIIn(t, t.TempDir(), stdin, args...)
}

func runCLIIn(t *testing.T, dataDir, stdin string, args ...string) cliResult {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("SALESDASH_DATA_DIRECTORY", dataDir)
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--timezone", "UTC"}, args...))

	err := root.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func sampleBackend(t *testing.T) *testutil.FakeBackend {
	t.Helper()
	return testutil.NewFakeBackend(t,
		testutil.SampleRecord("jan05", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), 1000000),
		testutil.SampleRecord("jan20", time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC), 1100000),
	)
}

func TestSummary(t *testing.T) {
	fb := sampleBackend(t)

	res := runCLI(t, "", "summary", "--backend-url", fb.URL)
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "=== Sales Summary (calculator1) ===")
	assert.Contains(t, res.stdout, "Period: All periods")
	assert.Contains(t, res.stdout, "₩2,100,000")
	assert.Contains(t, res.stdout, "₩1,995,000")
	assert.Contains(t, res.stdout, "+10.0%")
	assert.Contains(t, res.stdout, "8.0%")
	assert.Equal(t, 1, fb.Calls("get_history"))
}

func TestSummary_Range(t *testing.T) {
	fb := sampleBackend(t)

	res := runCLI(t, "", "summary", "--backend-url", fb.URL, "--from", "2024-01-10")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Period: 2024. 01. 10. ~")
	assert.Contains(t, res.stdout, "₩1,100,000")
	assert.NotContains(t, res.stdout, "₩2,100,000")
}

func TestSummary_InvalidRange(t *testing.T) {
	fb := sampleBackend(t)

	res := runCLI(t, "", "summary", "--backend-url", fb.URL, "--from", "10/01/2024")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid date range")
}

func TestSummary_Empty(t *testing.T) {
	fb := testutil.NewFakeBackend(t)

	res := runCLI(t, "", "summary", "--backend-url", fb.URL)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No analyses found.")
}

func TestSummary_BackendFailure(t *testing.T) {
	fb := sampleBackend(t)
	fb.Fail("get_history", http.StatusInternalServerError, "database unavailable")

	res := runCLI(t, "", "summary", "--backend-url", fb.URL)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to load history")
	assert.Contains(t, res.err.Error(), "database unavailable")
}

func TestHistory(t *testing.T) {
	fb := sampleBackend(t)

	res := runCLI(t, "", "history", "--backend-url", fb.URL)
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "REFUND RATIO")
	assert.Contains(t, res.stdout, "₩1,100,000")
	assert.Contains(t, res.stdout, "5.00%")
	assert.Contains(t, res.stdout, "2 of 2 analyses")
	// newest first
	assert.Less(t, strings.Index(res.stdout, "jan20"), strings.Index(res.stdout, "jan05"))
}

func TestHistory_Limit(t *testing.T) {
	fb := sampleBackend(t)

	res := runCLI(t, "", "history", "--backend-url", fb.URL, "-n", "1")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "jan20")
	assert.NotContains(t, res.stdout, "jan05")
	assert.Contains(t, res.stdout, "1 of 2 analyses")
}

func TestHistory_NegativeLimit(t *testing.T) {
	res := runCLI(t, "", "history", "--limit=-1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--limit")
}

func TestExport_Backend(t *testing.T) {
	fb := sampleBackend(t)
	out := filepath.Join(t.TempDir(), "history.xlsx")

	res := runCLI(t, "", "export", "--backend-url", fb.URL, "-o", out)
	require.NoError(t, res.err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, testutil.ExportBody, string(data))
	assert.Contains(t, res.stdout, "Saved "+out)
	assert.Equal(t, 1, fb.Calls("export_history"))
	assert.Equal(t, 0, fb.Calls("get_history"))
}

func TestExport_BackendFailure(t *testing.T) {
	fb := sampleBackend(t)
	fb.Fail("export_history", http.StatusInternalServerError, "export broke")
	out := filepath.Join(t.TempDir(), "history.xlsx")

	res := runCLI(t, "", "export", "--backend-url", fb.URL, "-o", out)
	require.Error(t, res.err)
	assert.NoFileExists(t, out)
}

func TestExport_Filtered(t *testing.T) {
	fb := sampleBackend(t)
	out := filepath.Join(t.TempDir(), "filtered.xlsx")

	res := runCLI(t, "", "export", "--backend-url", fb.URL, "--filtered", "--to", "2024-01-10", "-o", out)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "(1 analyses)")

	wb, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(dashboard.ExportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "jan05", rows[1][0])
	assert.Equal(t, 0, fb.Calls("export_history"))
}

func TestUpload(t *testing.T) {
	fb := sampleBackend(t)
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("period,sales_amount\n2024-03,100\n2024-04,200\n"), 0o644))

	res := runCLI(t, "", "upload", "--backend-url", fb.URL, path)
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "2 records uploaded successfully.")
	assert.Len(t, fb.Records(), 4)
}

func TestUpload_Rejected(t *testing.T) {
	fb := sampleBackend(t)
	dir := t.TempDir()

	res := runCLI(t, "", "upload", "--backend-url", fb.URL, filepath.Join(dir, "sales.xlsx"))
	require.ErrorIs(t, res.err, dashboard.ErrNotCSV)

	res = runCLI(t, "", "upload", "--backend-url", fb.URL, filepath.Join(dir, "missing.csv"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to open")

	assert.Equal(t, 0, fb.Calls("upload_csv"))
}

func TestUpload_BackendMessage(t *testing.T) {
	fb := sampleBackend(t)
	fb.Fail("upload_csv", http.StatusBadRequest, "missing sales_amount column")
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("period\n2024-03\n"), 0o644))

	res := runCLI(t, "", "upload", "--backend-url", fb.URL, path)
	require.Error(t, res.err)
	assert.Equal(t, "upload failed: missing sales_amount column", res.err.Error())
}

func TestDelete_Force(t *testing.T) {
	fb := sampleBackend(t)

	res := runCLI(t, "", "delete", "--backend-url", fb.URL, "--force", "jan05")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Analysis jan05 deleted.")
	assert.Equal(t, 1, fb.Calls("delete_history"))
	require.Len(t, fb.Records(), 1)
	assert.Equal(t, "jan20", fb.Records()[0].ID)
}

func TestDelete_Prompt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		deleted bool
	}{
		{"yes", "y\n", true},
		{"full yes", "YES\n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"eof", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := sampleBackend(t)

			res := runCLI(t, tt.input, "delete", "--backend-url", fb.URL, "jan20")
			require.NoError(t, res.err)

			assert.Contains(t, res.stdout, "(y/N)")
			if tt.deleted {
				assert.Equal(t, 1, fb.Calls("delete_history"))
				assert.Len(t, fb.Records(), 1)
			} else {
				assert.Contains(t, res.stdout, "Operation canceled.")
				assert.Equal(t, 0, fb.Calls("delete_history"))
				assert.Len(t, fb.Records(), 2)
			}
		})
	}
}

func TestDelete_UnknownRecord(t *testing.T) {
	fb := sampleBackend(t)

	res := runCLI(t, "", "delete", "--backend-url", fb.URL, "--force", "nope")
	require.ErrorIs(t, res.err, dashboard.ErrUnknownRecord)
	assert.Equal(t, 0, fb.Calls("delete_history"))
}

func TestConfirm_RefusesPipedStdin(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	var out bytes.Buffer
	ok, err := confirm(r, &out, "Delete?")
	assert.False(t, ok)
	assert.ErrorIs(t, err, errNotInteractive)
	assert.Empty(t, out.String())
}

func newDashboardServer(t *testing.T, fb *testutil.FakeBackend) *httptest.Server {
	t.Helper()

	logger := zerolog.New(zerolog.NewTestWriter(t))
	ctrl := dashboard.New(api.New(fb.URL), dashboard.Options{
		Module:     "calculator1",
		EditorPath: "/calculator1",
		Location:   time.UTC,
		Logger:     logger,
	})
	t.Cleanup(ctrl.Close)

	renderer, err := templates.New(templates.Options{Logger: logger})
	require.NoError(t, err)

	srv := server.New(logger, server.Config{
		EditorPath: "/calculator1",
		Dependencies: server.Dependencies{
			Controller: ctrl,
			Renderer:   renderer,
			Static:     templates.Static(),
		},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestCheck_Passes(t *testing.T) {
	ts := newDashboardServer(t, sampleBackend(t))

	var out bytes.Buffer
	err := runCheck(context.Background(), ts.Client(), ts.URL, true, &out)
	require.NoError(t, err, out.String())

	assert.Contains(t, out.String(), fmt.Sprintf("Results: %d passed, 0 failed", len(endpoints)))
	assert.Contains(t, out.String(), "PASS GET /api/health 200")
}

func TestCheck_EmptyDashboard(t *testing.T) {
	ts := newDashboardServer(t, testutil.NewFakeBackend(t))

	var out bytes.Buffer
	err := runCheck(context.Background(), ts.Client(), ts.URL, true, &out)
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "PASS GET /dashboard/charts/salesTrendChart 204")
}

func TestCheck_Fails(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)

	var out bytes.Buffer
	err := runCheck(context.Background(), ts.Client(), ts.URL, false, &out)
	require.Error(t, err)

	assert.Contains(t, out.String(), "FAIL GET /dashboard\n")
	assert.Contains(t, out.String(), "status 404 (expected 200)")
	assert.Contains(t, out.String(), fmt.Sprintf("Results: 0 passed, %d failed", len(endpoints)))
}

func TestStorageCommands(t *testing.T) {
	dir := t.TempDir()
	run := func(stdin string, args ...string) cliResult {
		t.Helper()
		return runCLIIn(t, dir, stdin, args...)
	}

	res := run("", "storage", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Directory: "+dir)
	assert.Contains(t, res.stdout, "Encrypted: false")

	res = run("short\n", "storage", "encrypt")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "at least")

	res = run("correct horse battery\n", "storage", "encrypt")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Preferences encrypted.")

	res = run("", "storage", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Encrypted: true")

	res = run("correct horse battery\n", "storage", "encrypt")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already encrypted")

	res = run("wrong passphrase\n", "storage", "decrypt")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "incorrect passphrase")

	res = run("correct horse battery\n", "storage", "decrypt")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Preferences decrypted.")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "salesdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfigFile(t *testing.T) {
	fb := sampleBackend(t)
	cfgPath := writeConfig(t, "backend_url: "+fb.URL+"\nmodule: calculator1\nlogging:\n  level: debug\n  format: json\n")

	res := runCLI(t, "", "--config", cfgPath, "summary")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "₩2,100,000")
	assert.Contains(t, res.stderr, `"message":"loaded config"`)
}

func TestConfig_Invalid(t *testing.T) {
	res := runCLI(t, "", "summary", "--backend-url", "localhost:5000")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "backend_url must be an http(s) URL")

	res = runCLI(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "summary")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to read config")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"level":"warn"`)

	_, err = newLogger(config.LoggingConfig{Level: "loud", Format: "json"}, &buf)
	assert.ErrorContains(t, err, "invalid log level")

	_, err = newLogger(config.LoggingConfig{Level: "info", Format: "xml"}, &buf)
	assert.ErrorContains(t, err, "invalid log format")
}

func TestVersion(t *testing.T) {
	res := runCLI(t, "", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "salesdash dev")

	res = runCLI(t, "", "version", "--json")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"version": "dev"`)
}

func TestServe_StopsOnCancel(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SALESDASH_DATA_DIRECTORY", dataDir)
	t.Setenv("SALESDASH_STORAGE_PASSPHRASE", "correct horse battery")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&stderr)
	root.SetArgs([]string{"serve", "--addr", "127.0.0.1:0", "--log-format", "json"})

	require.NoError(t, root.ExecuteContext(ctx))
	assert.DirExists(t, dataDir)
	assert.FileExists(t, filepath.Join(dataDir, ".encrypted"))
	assert.Contains(t, stderr.String(), `"message":"starting sales dashboard"`)
}
