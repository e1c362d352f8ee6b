package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airadvisor/airadvisor/internal/config"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "five-tier", cfg.Advisory.DefaultPreset)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Model.Enabled())
	assert.False(t, cfg.AirQuality.Enabled)
	assert.Equal(t, 50000.0, cfg.AirQuality.MaxDistance)
}

func TestLoadWithEnv_File(t *testing.T) {
	path := writeFile(t, `
app:
  env: staging
  port: 9090
database:
  host: db.local
  conn_max_lifetime: 2m
model:
  path: models/w.yaml
advisory:
  default_preset: six-tier
`)

	cfg, err := config.LoadWithEnv(path, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Env)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, 2*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 5432, cfg.Database.Port, "unset keys keep defaults")
	assert.Equal(t, "models/w.yaml", cfg.Model.Path)
	assert.Equal(t, "six-tier", cfg.Advisory.DefaultPreset)
}

func TestLoadWithEnv_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "app:\n  port: 9090\n")

	cfg, err := config.LoadWithEnv(path, envMap(map[string]string{
		"APP_PORT":                "7000",
		"OTEL_ENABLED":            "true",
		"DB_HOST":                 "pg",
		"MODEL_REMOTE_URL":        "http://models:8501",
		"MODEL_POLLUTANT_PATH":    "models/p.yaml",
		"OWM_API_KEY":             "owm-key",
		"AIRQUALITY_ENABLED":      "true",
		"AIRQUALITY_CACHE_TTL":    "5m",
		"JWT_SIGNING_KEY":         "secret",
		"PUBSUB_PROJECT_ID":       "proj",
		"ADVISORY_DEFAULT_PRESET": "six-tier-brief",
	}))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.App.Port)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "pg", cfg.Database.Host)
	assert.Equal(t, "http://models:8501", cfg.Model.RemoteURL)
	assert.Equal(t, "models/p.yaml", cfg.Model.PollutantPath)
	assert.Equal(t, "owm-key", cfg.Weather.OWMAPIKey)
	assert.True(t, cfg.AirQuality.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.AirQuality.CacheTTL)
	assert.Equal(t, "secret", cfg.SigningKey())
	assert.Equal(t, "proj", cfg.PubSub.ProjectID)
	assert.Equal(t, "six-tier-brief", cfg.Advisory.DefaultPreset)
}

func TestModelConfig_ArtifactDir(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ModelConfig
		want string
	}{
		{name: "none", cfg: config.ModelConfig{}, want: ""},
		{name: "weather path", cfg: config.ModelConfig{Path: "models/w.yaml", PollutantPath: "other/p.yaml"}, want: "models"},
		{name: "pollutant path only", cfg: config.ModelConfig{PollutantPath: "other/p.yaml"}, want: "other"},
		{name: "explicit dir", cfg: config.ModelConfig{Dir: "/srv/models", Path: "models/w.yaml"}, want: "/srv/models"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ArtifactDir())
		})
	}
}

func TestLoadWithEnv_ConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "app:\n  port: 8181\n")

	cfg, err := config.LoadWithEnv("", envMap(map[string]string{"CONFIG_PATH": path}))
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.App.Port)
}

func TestLoadWithEnv_MissingExplicitFile(t *testing.T) {
	_, err := config.LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	require.Error(t, err)
}

func TestLoadWithEnv_BadYAML(t *testing.T) {
	path := writeFile(t, "app: [unterminated\n")

	_, err := config.LoadWithEnv(path, envMap(nil))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadWithEnv_BadEnvValue(t *testing.T) {
	path := writeFile(t, "{}\n")

	_, err := config.LoadWithEnv(path, envMap(map[string]string{"APP_PORT": "eighty"}))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "APP_PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad env", func(c *config.Config) { c.App.Env = "prod" }, "app.env"},
		{"bad port", func(c *config.Config) { c.App.Port = 0 }, "app.port"},
		{"bad sample ratio", func(c *config.Config) { c.Telemetry.SampleRatio = 1.5 }, "sample_ratio"},
		{"unknown preset", func(c *config.Config) { c.Advisory.DefaultPreset = "seven-tier" }, "default_preset"},
		{"production without key", func(c *config.Config) { c.App.Env = "production" }, "jwt_signing_key"},
		{"bad db port", func(c *config.Config) {
			c.Database.Host = "pg"
			c.Database.Port = 70000
		}, "database.port"},
		{"negative station distance", func(c *config.Config) { c.AirQuality.MaxDistance = -1 }, "max_distance"},
		{"zero concurrency", func(c *config.Config) { c.PubSub.Concurrency = 0 }, "concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSigningKey(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, config.DevSigningKey, cfg.SigningKey())

	cfg.App.Env = "production"
	assert.Empty(t, cfg.SigningKey())
}
