package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citerate/internal/store"
	"github.com/roach88/citerate/internal/tune"
)

func execTune(t *testing.T, rootOpts *RootOptions, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTuneCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTuneWritesReport(t *testing.T) {
	docPath := writeSampleDoc(t)
	outPath := filepath.Join(t.TempDir(), "tune.json")

	buf, err := execTune(t, &RootOptions{Format: "text"},
		"-i", docPath, "-o", outPath, "--n-grid", "3")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Tuned over 1 eligible paper(s)")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var res tune.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, docPath, res.InputFile)
	assert.Equal(t, 3, res.GridSize)
	assert.Equal(t, 1, res.Papers)
	assert.Equal(t, 1, res.Eligible)
	assert.False(t, math.IsNaN(res.Optimal.LogLikelihood))
	assert.False(t, math.IsInf(res.Optimal.LogLikelihood, 0))
	assert.Nil(t, res.Grid)
}

func TestTuneReportToStdout(t *testing.T) {
	docPath := writeSampleDoc(t)

	buf, err := execTune(t, &RootOptions{Format: "text"}, "-i", docPath, "--n-grid", "3")
	require.NoError(t, err)

	var res tune.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, 1, res.Eligible)
}

func TestTuneGridSurfaceFlag(t *testing.T) {
	docPath := writeSampleDoc(t)
	outPath := filepath.Join(t.TempDir(), "tune.json")

	_, err := execTune(t, &RootOptions{Format: "text"},
		"-i", docPath, "-o", outPath, "--n-grid", "3", "--grid")
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var res tune.Result
	require.NoError(t, json.Unmarshal(data, &res))
	require.NotNil(t, res.Grid)
	assert.Len(t, res.Grid.ProcessVar, 3)
	assert.Len(t, res.Grid.Overdispersion, 3)
	require.Len(t, res.Grid.LogLikelihood, 3)
	assert.Len(t, res.Grid.LogLikelihood[0], 3)
}

func TestTuneJSONSummary(t *testing.T) {
	docPath := writeSampleDoc(t)
	outPath := filepath.Join(t.TempDir(), "tune.json")

	buf, err := execTune(t, &RootOptions{Format: "json"},
		"-i", docPath, "-o", outPath, "--n-grid", "3")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["n_papers_with_2plus_years"])
}

func TestTuneWorkerCountDoesNotChangeResult(t *testing.T) {
	docPath := writeSampleDoc(t)
	outA := filepath.Join(t.TempDir(), "a.json")
	outB := filepath.Join(t.TempDir(), "b.json")

	_, err := execTune(t, &RootOptions{Format: "text"},
		"-i", docPath, "-o", outA, "--n-grid", "4", "--grid", "--workers", "1")
	require.NoError(t, err)
	_, err = execTune(t, &RootOptions{Format: "text"},
		"-i", docPath, "-o", outB, "--n-grid", "4", "--grid", "--workers", "8")
	require.NoError(t, err)

	dataA, err := os.ReadFile(outA)
	require.NoError(t, err)
	dataB, err := os.ReadFile(outB)
	require.NoError(t, err)
	assert.Equal(t, dataA, dataB)
}

func TestTuneMissingInputFile(t *testing.T) {
	buf, err := execTune(t, &RootOptions{Format: "text"}, "-i", "/nonexistent/citations.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load document")
	assert.Contains(t, buf.String(), "E005")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTuneStrictRejectsBadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-timestamp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"user_id": "u-123", "papers": []}`), 0644))

	buf, err := execTune(t, &RootOptions{Format: "text"}, "-i", path, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, buf.String(), "scraped_at")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestTuneRecordsRun(t *testing.T) {
	docPath := writeSampleDoc(t)
	outPath := filepath.Join(t.TempDir(), "tune.json")
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	_, err := execTune(t, &RootOptions{Format: "text"},
		"-i", docPath, "-o", outPath, "--n-grid", "3", "--store", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), store.KindTune, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, docPath, runs[0].InputFile)
	assert.Equal(t, json.Number("3"), runs[0].Params["n_grid"])
	assert.Equal(t, json.Number("1"), runs[0].Summary["n_eligible"])
}
