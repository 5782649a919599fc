package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/director"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, director.DefaultThresholds(), cfg.Thresholds)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.LLM.Enabled())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "director.yaml")
	doc := `
log_level: debug
thresholds:
  evaluate_timeout: 5s
  interventions:
    refocus_cooldown: 4
budget:
  per_minute: 10
redis:
  addr: localhost:6379
  ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("DIRECTOR_BUDGET_PER_DAY", "42")
	t.Setenv("DIRECTOR_HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Thresholds.EvaluateTimeout)
	assert.Equal(t, 4, cfg.Thresholds.Interventions.RefocusCooldown)
	assert.Equal(t, director.DefaultThresholds().Rhythm, cfg.Thresholds.Rhythm)
	assert.Equal(t, 10, cfg.Budget.PerMinute)
	assert.Equal(t, 42, cfg.Budget.PerDay)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestReadYAML_RejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := cfg.ReadYAML(strings.NewReader("budgett:\n  per_minute: 1\n"))
	require.Error(t, err)
}

func TestReadYAML_EmptyDocument(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ReadYAML(strings.NewReader("\n")))
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(map[string]string{
		"DIRECTOR_EVALUATE_TIMEOUT":   "3s",
		"DIRECTOR_CALL_TIMEOUT":       "500ms",
		"DIRECTOR_MAX_WORKERS":        "2",
		"DIRECTOR_REFOCUS_COOLDOWN":   "5",
		"DIRECTOR_EXTRACTION":         "heuristic",
		"DIRECTOR_LLM_API_KEY":        "secret",
		"DIRECTOR_EVIDENCE_LANGUAGE":  "en",
		"DIRECTOR_REDIS_SHARED_CACHE": "true",
	})
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Thresholds.EvaluateTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Thresholds.CallTimeout)
	assert.Equal(t, 2, cfg.Thresholds.MaxWorkers)
	assert.Equal(t, 5, cfg.Thresholds.Interventions.RefocusCooldown)
	assert.Equal(t, director.ExtractHeuristic, cfg.Extraction)
	assert.True(t, cfg.LLM.Enabled())
	assert.Equal(t, "en", cfg.Evidence.Language)
	assert.True(t, cfg.Redis.SharedCache)
}

func TestApplyEnv_BadValue(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(map[string]string{"DIRECTOR_BUDGET_PER_MINUTE": "many"})
	require.Error(t, err)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"
	cfg.Extraction = "magic"
	cfg.Budget.PerDay = -1
	cfg.HTTP.Addr = ""
	cfg.Thresholds.MaxWorkers = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"loud", "xml", "magic", "budgets", "http address", "max workers"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_LLMModeNeedsKey(t *testing.T) {
	cfg := Default()
	cfg.Extraction = director.ExtractSupplement
	require.ErrorContains(t, cfg.Validate(), "api_key")

	cfg.LLM.APIKey = "k"
	require.NoError(t, cfg.Validate())
}

func TestDecode(t *testing.T) {
	var b struct {
		Theme   string        `yaml:"theme"`
		Limit   int           `yaml:"limit"`
		Timeout time.Duration `yaml:"timeout"`
	}
	err := Decode(map[string]any{"theme": "travel", "limit": "3", "timeout": "2s"}, &b)
	require.NoError(t, err)
	assert.Equal(t, "travel", b.Theme)
	assert.Equal(t, 3, b.Limit)
	assert.Equal(t, 2*time.Second, b.Timeout)

	err = Decode(map[string]any{"unexpected": true}, &b)
	require.Error(t, err)
}

func TestEncryption(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(map[string]string{
		"DIRECTOR_ENCRYPTION_KEY":           key,
		"DIRECTOR_ENCRYPTION_FALLBACK_KEYS": key + "," + key,
	}))
	require.True(t, cfg.Encryption.Enabled())
	require.NoError(t, cfg.Validate())

	enc, err := cfg.Encryption.Config()
	require.NoError(t, err)
	assert.Len(t, enc.ActiveKey, 32)
	assert.Len(t, enc.FallbackKeys, 2)

	cfg.Encryption.Key = base64.StdEncoding.EncodeToString([]byte("short"))
	assert.ErrorContains(t, cfg.Validate(), "active key")

	cfg.Encryption.Key = "%%%"
	assert.ErrorContains(t, cfg.Validate(), "base64")
}
