package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbimirror/internal/mirror"
	"pbimirror/internal/shared/testutil"
)

// isolate keeps stray config files and PBI_* variables out of the run.
func isolate(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("PBI_PASSWORD", "")
	t.Setenv("PBI_CONFIG_FILE", "")
	t.Setenv("PBI_STORAGE_KIND", "fs")
	t.Setenv("PBI_SERVER_ADDR", "")
	t.Setenv("PBI_SUMMARY_PATH", "")
}

func newCatalog(t *testing.T) *testutil.CatalogServer {
	srv := testutil.NewCatalogServer(t)
	srv.SetRoot("/Bio/RPA TEST",
		testutil.Entry("F1", "Daily", "Folder"),
		testutil.Entry("W1", "SBL_P5_A_B_240115", "ExcelWorkbook"),
		testutil.Entry("W2", "SBL_P5_A_B_231231", "ExcelWorkbook"),
	)
	srv.SetFolder("F1", testutil.Entry("W3", "SBL_P5_A_B_240131", "ExcelWorkbook"))
	srv.SetContent("W1", []byte("mid january"))
	srv.SetContent("W2", []byte("new year's eve"))
	srv.SetContent("W3", []byte("end of january"))
	return srv
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestRun_MirrorsFolderTree(t *testing.T) {
	isolate(t)
	srv := newCatalog(t)
	out := t.TempDir()
	summaryPath := filepath.Join(t.TempDir(), "summary.json")

	res := runCLI(t, "secret\n",
		"-base-url", srv.URL,
		"-user", "alice",
		"-remote", "/Bio/RPA TEST",
		"-out", out,
		"-from", "2024-01-01",
		"-to", "2024-01-31",
		"-summary", summaryPath,
	)
	require.Equal(t, exitOK, res.code, res.stdout+res.stderr)

	assert.Contains(t, res.stdout, "Welcome to the Power BI Server File Downloader!")
	assert.Contains(t, res.stdout, "Successfully authenticated!")
	assert.Contains(t, res.stdout, "| **Process Start**  |")
	assert.Contains(t, res.stdout, "Successfully processed all items! Bye!")

	data, err := os.ReadFile(filepath.Join(out, "SBL_P5_A_B_240115.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "mid january", string(data))

	data, err = os.ReadFile(filepath.Join(out, "Daily", "SBL_P5_A_B_240131.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "end of january", string(data))

	assert.NoFileExists(t, filepath.Join(out, "SBL_P5_A_B_231231.xlsx"))

	raw, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var summary mirror.Summary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.True(t, summary.Finished)
	assert.Equal(t, 2, summary.Counts.Downloaded)
	assert.Equal(t, 1, summary.Counts.OutOfRange)
	assert.Equal(t, 1, summary.Counts.Folders)
}

func TestRun_AnswersFromPrompts(t *testing.T) {
	isolate(t)
	srv := newCatalog(t)
	out := t.TempDir()

	stdin := strings.Join([]string{"alice", "secret", "/Bio/RPA TEST", out, "2024-01-15", "2024-01-15"}, "\n") + "\n"
	res := runCLI(t, stdin, "-base-url", srv.URL)
	require.Equal(t, exitOK, res.code, res.stdout+res.stderr)

	assert.Contains(t, res.stdout, "Enter your username: ")
	assert.Contains(t, res.stdout, "Enter your password: ")
	assert.Contains(t, res.stdout, "Enter the start date (YYYY-MM-DD): ")
	assert.FileExists(t, filepath.Join(out, "SBL_P5_A_B_240115.xlsx"))
	assert.NoFileExists(t, filepath.Join(out, "Daily", "SBL_P5_A_B_240131.xlsx"))
	assert.DirExists(t, filepath.Join(out, "Daily"))
}

func TestRun_PasswordFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("PBI_PASSWORD", "from-env")
	srv := newCatalog(t)

	res := runCLI(t, "",
		"-base-url", srv.URL, "-user", "alice", "-remote", "/Bio/RPA TEST", "-out", t.TempDir(),
		"-from", "2024-01-01", "-to", "2024-01-31")
	assert.Equal(t, exitOK, res.code, res.stdout+res.stderr)
	assert.NotContains(t, res.stdout, "Enter your password: ")
}

func TestRun_MissingLocalPath(t *testing.T) {
	isolate(t)
	srv := newCatalog(t)

	res := runCLI(t, "secret\n",
		"-base-url", srv.URL, "-user", "alice", "-remote", "/Bio/RPA TEST",
		"-out", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, exitFatal, res.code)
	assert.Contains(t, res.stdout, "Local path does not exist. Exiting program...")
	assert.Empty(t, srv.Requests())
}

func TestRun_UnreachableServer(t *testing.T) {
	isolate(t)
	srv := testutil.NewCatalogServer(t)
	url := srv.URL
	srv.Close()

	res := runCLI(t, "secret\n",
		"-base-url", url, "-user", "alice", "-remote", "/Bio", "-out", t.TempDir())
	assert.Equal(t, exitFatal, res.code)
	assert.Contains(t, res.stdout, "------Error------")
	assert.Contains(t, res.stdout, "Error authenticating")
}

func TestRun_EmptyRoot(t *testing.T) {
	isolate(t)
	srv := testutil.NewCatalogServer(t)
	srv.SetRoot("/Empty")

	res := runCLI(t, "secret\n",
		"-base-url", srv.URL, "-user", "alice", "-remote", "/Empty", "-out", t.TempDir())
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "No items retrieved.")
	assert.NotContains(t, res.stdout, "Enter the start date")
}

func TestRun_RootListingRejected(t *testing.T) {
	isolate(t)
	srv := testutil.NewCatalogServer(t)
	srv.FailListing("/Bio", 401)

	res := runCLI(t, "secret\n",
		"-base-url", srv.URL, "-user", "alice", "-remote", "/Bio", "-out", t.TempDir())
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "No items retrieved.")
	assert.Contains(t, res.stdout, "Failed to retrieve folder items")
}

func TestRun_InvalidDate(t *testing.T) {
	isolate(t)
	srv := newCatalog(t)

	res := runCLI(t, "secret\n",
		"-base-url", srv.URL, "-user", "alice", "-remote", "/Bio/RPA TEST", "-out", t.TempDir(),
		"-from", "2024/01/01", "-to", "2024-01-31")
	assert.Equal(t, exitFatal, res.code)
	assert.Contains(t, res.stdout, "Invalid date format. Please enter dates in the format 'YYYY-MM-DD'.")
	assert.Contains(t, res.stdout, "Date range not specified. Exiting program...")
	assert.Zero(t, srv.ContentRequests("W1"))
}

func TestRun_ReversedRangeMatchesNothing(t *testing.T) {
	isolate(t)
	srv := newCatalog(t)
	out := t.TempDir()

	res := runCLI(t, "secret\n",
		"-base-url", srv.URL, "-user", "alice", "-remote", "/Bio/RPA TEST", "-out", out,
		"-from", "2024-01-31", "-to", "2024-01-01")
	require.Equal(t, exitOK, res.code, res.stdout+res.stderr)
	assert.Contains(t, res.stdout, "Start date is after end date")
	assert.NoFileExists(t, filepath.Join(out, "SBL_P5_A_B_240115.xlsx"))
}

func TestRun_WithStatusServer(t *testing.T) {
	isolate(t)
	srv := newCatalog(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	res := runCLI(t, "secret\n",
		"-base-url", srv.URL, "-user", "alice", "-remote", "/Bio/RPA TEST", "-out", t.TempDir(),
		"-from", "2024-01-01", "-to", "2024-01-31", "-serve", addr)
	require.Equal(t, exitOK, res.code, res.stdout+res.stderr)
	assert.Contains(t, res.stdout, "Status server listening")
	assert.Contains(t, res.stdout, "Status server stopped")
}

func TestRun_BadFlagsAndConfig(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "-no-such-flag")
	assert.Equal(t, exitFatal, res.code)

	res = runCLI(t, "", "-summary-format", "yaml")
	assert.Equal(t, exitFatal, res.code)
	assert.Contains(t, res.stderr, "Invalid configuration")
}

func TestPrompter(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("first line\r\nlast line without newline"), &out)

	got, err := p.ask("Q1: ", "")
	require.NoError(t, err)
	assert.Equal(t, "first line", got)

	got, err = p.ask("Q2: ", "preset")
	require.NoError(t, err)
	assert.Equal(t, "preset", got)
	assert.NotContains(t, out.String(), "Q2: ")

	got, err = p.secret("Q3: ", "")
	require.NoError(t, err)
	assert.Equal(t, "last line without newline", got)

	_, err = p.ask("Q4: ", "")
	assert.Error(t, err)
}
