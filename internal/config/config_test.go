package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	c := &Config{}
	assert.Equal(t, DefaultListenAddr, c.GetListenAddr())
	assert.Equal(t, DefaultGRPCAddr, c.GetGRPCAddr())
	assert.Equal(t, DefaultDBPath, c.GetDBPath())
	assert.Equal(t, DefaultStorageDir, c.GetStorageDir())
	assert.Equal(t, int64(200<<20), c.GetMaxUploadBytes())
	assert.Equal(t, "", c.GetPerceptionURL())
	assert.Equal(t, DefaultModelTimeout, c.GetModelTimeout())
	assert.Equal(t, DefaultOpenAIModel, c.GetOpenAIModel())
	assert.Nil(t, c.GetKafkaBrokers())
	assert.Equal(t, DefaultKafkaTopic, c.GetKafkaTopic())
	assert.Equal(t, "ffmpeg", c.GetFFmpegPath())
	assert.Equal(t, "ffprobe", c.GetFFprobePath())
	assert.Equal(t, 1, c.GetWorkers())
	assert.Equal(t, 3.0, c.GetTargetFPS())
	assert.Equal(t, DefaultCacheSize, c.GetCacheSize())
	assert.Equal(t, "xxhash", c.GetHasher())
	assert.False(t, c.GetDebug())
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "incident.json", `{
		"listen_addr": ":9000",
		"workers": 4,
		"target_fps": 5,
		"kafka_brokers": "k1:9092, k2:9092,",
		"model_timeout": "5s",
		"debug": true
	}`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.GetListenAddr())
	assert.Equal(t, 4, c.GetWorkers())
	assert.Equal(t, 5.0, c.GetTargetFPS())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.GetKafkaBrokers())
	assert.Equal(t, 5*time.Second, c.GetModelTimeout())
	assert.True(t, c.GetDebug())
	// Unset fields keep their defaults.
	assert.Equal(t, DefaultDBPath, c.GetDBPath())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "incident.yml", "db_path: /var/lib/incident/cases.db\nhasher: sha256\nmax_upload_mb: 10\n")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/incident/cases.db", c.GetDBPath())
	assert.Equal(t, "sha256", c.GetHasher())
	assert.Equal(t, int64(10<<20), c.GetMaxUploadBytes())
}

func TestLoadExampleConfig(t *testing.T) {
	c, err := Load("../../config/incident.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, c.GetWorkers())
	assert.Nil(t, c.GetKafkaBrokers())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"extension", "incident.toml", "x = 1", "extension"},
		{"bad json", "bad.json", "{", "failed to parse"},
		{"bad yaml", "bad.yaml", "workers: [", "failed to parse"},
		{"invalid workers", "w.json", `{"workers": 0}`, "workers must be at least 1"},
		{"invalid fps", "f.yaml", "target_fps: -1", "target_fps must be positive"},
		{"invalid hasher", "h.json", `{"hasher": "md5"}`, "hasher must be"},
		{"invalid timeout", "t.json", `{"model_timeout": "soon"}`, "invalid model_timeout"},
		{"invalid upload", "u.json", `{"max_upload_mb": 0}`, "max_upload_mb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingAndOversized(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "failed to stat")

	big := writeFile(t, "big.json", `{"listen_addr": "`+strings.Repeat("x", maxFileSize)+`"}`)
	_, err = Load(big)
	assert.ErrorContains(t, err, "too large")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"INCIDENT_LISTEN_ADDR":    ":7000",
		"INCIDENT_WORKERS":        "3",
		"INCIDENT_TARGET_FPS":     "2.5",
		"INCIDENT_DEBUG":          "true",
		"INCIDENT_OPENAI_API_KEY": "sk-env",
		"UNRELATED":               "ignored",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	c := &Config{ListenAddr: ptrString(":9000"), Workers: ptrInt(8)}
	require.NoError(t, c.ApplyEnv(lookup))
	assert.Equal(t, ":7000", c.GetListenAddr())
	assert.Equal(t, 3, c.GetWorkers())
	assert.Equal(t, 2.5, c.GetTargetFPS())
	assert.True(t, c.GetDebug())
	assert.Equal(t, "sk-env", c.GetOpenAIAPIKey())
}

func TestApplyEnvErrors(t *testing.T) {
	env := map[string]string{
		"INCIDENT_WORKERS":    "many",
		"INCIDENT_TARGET_FPS": "fast",
		"INCIDENT_DEBUG":      "maybe",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	err := (&Config{}).ApplyEnv(lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INCIDENT_WORKERS")
	assert.Contains(t, err.Error(), "INCIDENT_TARGET_FPS")
	assert.Contains(t, err.Error(), "INCIDENT_DEBUG")

	err = (&Config{}).ApplyEnv(func(k string) (string, bool) {
		if k == "INCIDENT_WORKERS" {
			return "0", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "workers must be at least 1")
}

func TestLoadDotEnv(t *testing.T) {
	const key = "INCIDENT_TEST_DOTENV_VALUE"
	path := writeFile(t, ".env", key+"=from-file\n")
	t.Setenv(key, "")
	os.Unsetenv(key)

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv(key))

	// Existing variables are not overwritten.
	t.Setenv(key, "from-shell")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-shell", os.Getenv(key))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "none.env")))
}
