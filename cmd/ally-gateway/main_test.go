// ABOUTME: Tests for CLI helpers: config generation, config path resolution and the color log handler
// ABOUTME: Generated configs must round-trip through the config loader

package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ally-gateway/internal/config"
)

func TestRenderConfig_Loads(t *testing.T) {
	secret, err := generateSecret()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(secret), 32)

	out := renderConfig(initAnswers{
		HTTPAddr:     "127.0.0.1:8080",
		PublicURL:    "https://ally.example.com",
		DBPath:       "/var/lib/ally/gateway.db",
		Homeserver:   "https://matrix.example.org",
		MatrixUser:   "@ally:example.org",
		MatrixToken:  "syt_token",
		Encryption:   true,
		ClientID:     "client",
		ClientSecret: "secret",
		StateSecret:  secret,
		AgentURL:     "http://localhost:9000",
		SMTPHost:     "smtp.example.com",
		MailFrom:     "ally@example.com",
		LogLevel:     "info",
		LogFormat:    "text",
	})

	cfg, err := config.Parse([]byte(out), false)
	require.NoError(t, err)
	assert.Equal(t, "https://ally.example.com/oauth/google/callback", cfg.Google.RedirectURL)
	assert.True(t, cfg.Matrix.Encryption)
	assert.Equal(t, "smtp.example.com", cfg.OTP.SMTP.Host)
	assert.Equal(t, secret, cfg.Google.StateSecret)
}

func TestRunInit_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ALLY_CONFIG", filepath.Join(dir, "gateway.yaml"))
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("MATRIX_ACCESS_TOKEN", "syt_token")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	// Every prompt accepts its default.
	require.NoError(t, runInit(strings.NewReader(strings.Repeat("\n", 20))))

	cfg, err := config.Load(filepath.Join(dir, "gateway.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ally", "gateway.db"), cfg.Database.Path)
	assert.Equal(t, "syt_token", cfg.Matrix.AccessToken)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("ALLY_CONFIG", "/etc/ally/custom.yaml")
	assert.Equal(t, "/etc/ally/custom.yaml", getConfigPath())

	t.Setenv("ALLY_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/ally/gateway.yaml", getConfigPath())
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.With("component", "pipeline").WithGroup("turn").Info("update handled", "stage", "identity")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "update handled")
	assert.Contains(t, out, "component=")
	assert.Contains(t, out, "pipeline")
	assert.Contains(t, out, "turn.stage=")
	assert.Contains(t, out, "identity")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
