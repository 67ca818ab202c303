package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"server": {"port": "9000", "debug": true},
		"store": {"backend": "memory"},
		"blobs": {"backend": "memory"},
		"ml": {"type": "local", "text_type": "genai"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "genai", cfg.ML.TextType)
	// untouched sections keep defaults
	assert.Equal(t, "dev", cfg.Auth.Mode)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: "7000"
store:
  backend: postgres
  dsn: postgres://localhost/hairguard
client:
  api_base: https://api.example.com/
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "https://api.example.com", cfg.APIBase())
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("bad backend", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"store": {"backend": "mysql"}}`)
		_, err := LoadConfig(path)
		require.ErrorContains(t, err, "unsupported store backend")
	})

	t.Run("bad text model", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"ml": {"text_type": "gpt"}}`)
		_, err := LoadConfig(path)
		require.ErrorContains(t, err, "unsupported text model")
	})

	t.Run("half a location", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"client": {"latitude": 35.6}}`)
		_, err := LoadConfig(path)
		require.ErrorContains(t, err, "latitude and longitude")
	})
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("DEBUG_AUTH", "TRUE")
	t.Setenv("FIREBASE_PROJECT_ID", "proj-1")
	t.Setenv("GEMINI_ENABLED", "false")
	t.Setenv("HAIRGUARD_LAT", "35.68")
	t.Setenv("HAIRGUARD_LNG", "139.76")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Server.DebugAuth)
	assert.Equal(t, "proj-1", cfg.Auth.ProjectID)
	assert.Equal(t, "proj-1", cfg.Store.ProjectID)
	assert.Equal(t, "none", cfg.ML.TextType)
	require.NotNil(t, cfg.Client.Latitude)
	assert.InDelta(t, 35.68, *cfg.Client.Latitude, 1e-9)
}

func TestAPIBase_SameOriginDefault(t *testing.T) {
	cfg := Default()
	cfg.Client.Origin = "http://localhost:8080/"
	assert.Equal(t, "http://localhost:8080", cfg.APIBase())

	cfg.Client.APIBase = "http://api.test"
	assert.Equal(t, "http://api.test", cfg.APIBase())
}

func TestGetConfigPath_Env(t *testing.T) {
	t.Setenv("HAIRGUARD_CONFIG", "/etc/hairguard.json")
	assert.Equal(t, "/etc/hairguard.json", GetConfigPath())
}

func TestTextModelEnv(t *testing.T) {
	t.Setenv("HAIRGUARD_TEXT_MODEL", "google")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.ML.TextType)

	// GEMINI_ENABLED=false wins over an explicit model choice
	t.Setenv("GEMINI_ENABLED", "false")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.ML.TextType)
}
