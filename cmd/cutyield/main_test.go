package main

import (
	"bytes"
	"net/http"
	"os"
	osSignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piwi3910/CutYield/internal/config"
	"github.com/piwi3910/CutYield/internal/model"
	"github.com/piwi3910/CutYield/internal/project"
)

// isolate points HOME at a temp dir and clears CUTYIELD_* variables so the
// user's config and history are never touched.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"CUTYIELD_SHEET_WIDTH", "CUTYIELD_SHEET_HEIGHT", "CUTYIELD_KERF", "CUTYIELD_MIN_OFFCUT",
		"CUTYIELD_HISTORY_DB", "CUTYIELD_PORT", "CUTYIELD_RATE_LIMIT_RPS", "CUTYIELD_RATE_LIMIT_BURST",
		"CUTYIELD_REQUEST_LOGGING",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("CUTYIELD_LOG_LEVEL", "error")
	return home
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunOptimize_PrintsHeadlineAndWritesExports(t *testing.T) {
	home := isolate(t)
	dir := t.TempDir()
	list := writeFile(t, dir, "parts.txt", "1\n1200x900\n45\n150x500\n")
	historyDB := filepath.Join(dir, "history.db")

	var out bytes.Buffer
	err := run([]string{
		"--history-db", historyDB,
		"optimize", "--pieces", list,
		"--pdf", filepath.Join(dir, "out", "layout.pdf"),
		"--png", filepath.Join(dir, "out", "layout.png"),
		"--save-job", filepath.Join(dir, "out", "job.json"),
	}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Yield: 50.91% | Placed: 46/46\n"), text)
	assert.Contains(t, text, "Pc 1")
	assert.NotContains(t, text, "Does not fit")

	for _, name := range []string{"layout.pdf", "layout.png", "job.json"} {
		_, err := os.Stat(filepath.Join(dir, "out", name))
		assert.NoError(t, err, name)
	}

	job, err := project.LoadJob(filepath.Join(dir, "out", "job.json"))
	require.NoError(t, err)
	assert.Equal(t, "parts", job.Name)
	assert.Equal(t, 46, job.TotalQuantity())

	_, err = os.Stat(config.DefaultHistoryPath())
	assert.True(t, os.IsNotExist(err), "default history under %s must not be created", home)

	out.Reset()
	require.NoError(t, run([]string{"--history-db", historyDB, "history", "list"}, &out))
	assert.Contains(t, out.String(), "46/46")
}

func TestRunOptimize_ReportsMissingPieces(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	list := writeFile(t, dir, "parts.txt", "2\n300x50\n1\n80x40\n")

	var out bytes.Buffer
	err := run([]string{
		"--history-db", "none", "--sheet-width", "200", "--sheet-height", "100", "--kerf", "2",
		"optimize", "--pieces", list,
	}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Placed: 1/3")
	assert.Contains(t, out.String(), "Does not fit: 2 pcs of 300x50")
	assert.Contains(t, out.String(), "Estimated sheets for the full list: at least")
}

func TestRunOptimize_InputErrors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.txt", "3\n")
	good := writeFile(t, dir, "good.txt", "1\n10x10\n")

	var out bytes.Buffer
	err := run([]string{"--history-db", "none", "optimize"}, &out)
	assert.ErrorContains(t, err, "exactly one of")

	err = run([]string{"--history-db", "none", "optimize", "--pieces", good, "--csv", good}, &out)
	assert.ErrorContains(t, err, "exactly one of")

	err = run([]string{"--history-db", "none", "optimize", "--pieces", bad}, &out)
	assert.ErrorContains(t, err, "line 1")

	err = run([]string{"--history-db", "none", "--kerf", "1", "--sheet-width", "0", "optimize", "--pieces", good}, &out)
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestRunCompare_WritesChart(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "parts.csv", "Label,Width,Height,Qty\nShelf,600,300,4\n")
	chart := filepath.Join(dir, "kerf.html")

	var out bytes.Buffer
	err := run([]string{"--history-db", "none", "compare", "--csv", csvPath, "--chart", chart}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Current Settings")
	assert.Contains(t, out.String(), "No Kerf")
	data, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Kerf comparison")
}

func TestRunHistory_DisabledIsAnError(t *testing.T) {
	isolate(t)

	var out bytes.Buffer
	err := run([]string{"--history-db", "none", "history", "list"}, &out)
	assert.ErrorContains(t, err, "disabled")
}

func TestRunHistoryExport(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	list := writeFile(t, dir, "parts.txt", "2\n100x100\n")
	historyDB := filepath.Join(dir, "history.db")

	var out bytes.Buffer
	require.NoError(t, run([]string{"--history-db", historyDB, "optimize", "--pieces", list}, &out))

	backup := filepath.Join(dir, "backup.json")
	out.Reset()
	require.NoError(t, run([]string{"--history-db", historyDB, "history", "export", backup}, &out))
	assert.Contains(t, out.String(), "Exported 1 runs")

	restored, err := project.ImportHistory(backup)
	require.NoError(t, err)
	require.Len(t, restored.Runs, 1)
	assert.Equal(t, 2, restored.Runs[0].Placed)
}

func TestRunHistoryImport(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	list := writeFile(t, dir, "parts.txt", "3\n100x100\n")
	sourceDB := filepath.Join(dir, "source.db")
	targetDB := filepath.Join(dir, "target.db")
	backup := filepath.Join(dir, "backup.json")

	var out bytes.Buffer
	require.NoError(t, run([]string{"--history-db", sourceDB, "optimize", "--pieces", list}, &out))
	require.NoError(t, run([]string{"--history-db", sourceDB, "history", "export", backup}, &out))

	out.Reset()
	require.NoError(t, run([]string{"--history-db", targetDB, "history", "import", backup}, &out))
	assert.Contains(t, out.String(), "Imported 1 runs")

	out.Reset()
	require.NoError(t, run([]string{"--history-db", targetDB, "history", "import", backup}, &out))
	assert.Contains(t, out.String(), "Imported 0 runs")
	assert.Contains(t, out.String(), "1 already present")

	out.Reset()
	require.NoError(t, run([]string{"--history-db", targetDB, "history", "list"}, &out))
	assert.Contains(t, out.String(), "3/3")
}

func TestRunOptimize_RejectsHugeQuantity(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	list := writeFile(t, dir, "huge.txt", "9223372036854775807\n10x10\n")

	var out bytes.Buffer
	err := run([]string{"--history-db", "none", "optimize", "--pieces", list}, &out)
	assert.ErrorIs(t, err, model.ErrTooManyPieces)
}

func TestNewServerAddsColonToPort(t *testing.T) {
	cfg := config.Config{Port: "9090", ReadHeaderTimeout: time.Second}
	server := newServer(cfg, http.NotFoundHandler())

	assert.Equal(t, ":9090", server.Addr)
	assert.Equal(t, time.Second, server.ReadHeaderTimeout)

	cfg.Port = "127.0.0.1:9090"
	assert.Equal(t, "127.0.0.1:9090", newServer(cfg, http.NotFoundHandler()).Addr)
}

func TestShutdownSignals(t *testing.T) {
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	signalNotify = func(ch chan<- os.Signal, sig ...os.Signal) {
		go func() {
			ch <- syscall.SIGTERM
		}()
	}

	server := &http.Server{}
	called := make(chan struct{}, 1)
	server.RegisterOnShutdown(func() {
		called <- struct{}{}
	})

	shutdown(server, time.Millisecond, zaptest.NewLogger(t))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("expected server shutdown callback to execute")
	}
}
