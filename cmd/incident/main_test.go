package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/incident.report/internal/db"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/testutil"
)

// execute runs the root command with args against a scratch database and
// storage directory.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("INCIDENT_DB_PATH", filepath.Join(dir, "incident.db"))
	t.Setenv("INCIDENT_STORAGE_DIR", filepath.Join(dir, "outputs"))
	t.Setenv("INCIDENT_PERCEPTION_URL", "")
	t.Setenv("INCIDENT_OPENAI_API_KEY", "")

	configPath, envFiles, debugFlag = "", nil, false
	analyzeOpts.pdf, analyzeOpts.chart, analyzeOpts.timeline = "", "", ""
	analyzeOpts.save, analyzeOpts.owner = false, db.DefaultOwner

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "incident.yaml")
	require.NoError(t, os.WriteFile(file, []byte("listen_addr: \":9000\"\nworkers: 2\n"), 0o644))
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("INCIDENT_TEST_UNUSED=1\n"), 0o644))
	t.Setenv("INCIDENT_WORKERS", "6")

	configPath, envFiles, debugFlag = file, []string{dotenv}, true
	t.Cleanup(func() { configPath, envFiles, debugFlag = "", nil, false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.GetListenAddr())
	assert.Equal(t, 6, cfg.GetWorkers())
	assert.True(t, cfg.GetDebug())
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	t.Setenv("INCIDENT_WORKERS", "0")
	configPath, envFiles = "", nil
	_, err := loadConfig()
	assert.ErrorContains(t, err, "workers")
}

func TestMigrateStatus(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "migrate", "up")
	require.NoError(t, err, out)

	out, err = execute(t, dir, "migrate", "status")
	require.NoError(t, err, out)
	assert.Contains(t, out, "current:  2")
	assert.Contains(t, out, "pending:  0")

	_, err = execute(t, dir, "migrate", "to", "1")
	require.NoError(t, err)
	out, err = execute(t, dir, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "pending:  1")

	_, err = execute(t, dir, "migrate", "to", "latest")
	assert.Error(t, err)
}

func TestAnalyzeImageOffline(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "crash.jpg")
	require.NoError(t, os.WriteFile(img, testutil.JPEGImage(t, 64, 48, 7), 0o644))
	pdf := filepath.Join(dir, "crash.pdf")

	out, err := execute(t, dir, "analyze-image", img, "--pdf", pdf, "--save", "--owner", "alice")
	require.NoError(t, err, out)

	start := strings.Index(out, "{")
	require.GreaterOrEqual(t, start, 0, out)
	var rep report.CaseReport
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &rep))
	assert.NotEmpty(t, rep.Case.CaseID)
	assert.Empty(t, rep.Entities.Vehicles)
	assert.Equal(t, "crash.jpg", rep.Evidence.OriginalImage)

	data, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	store, err := db.NewDB(filepath.Join(dir, "incident.db"))
	require.NoError(t, err)
	defer store.Close()
	rec, err := store.GetCase(t.Context(), rep.Case.CaseID, "alice")
	require.NoError(t, err)
	assert.Equal(t, report.KindImage, rec.Kind)
}

func TestAnalyzeImageMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "analyze-image", filepath.Join(dir, "absent.jpg"))
	assert.ErrorContains(t, err, "failed to read image")

	_, err = execute(t, dir, "analyze-image")
	assert.Error(t, err)
}
