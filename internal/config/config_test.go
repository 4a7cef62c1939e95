package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
	assert.Equal(t, DefaultHost, cfg.HostSpec())
}

func TestLoad_YML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "esimctl.yml", `
host: http://127.0.0.1:7070/
verification:
  preferred_data: 2s
  switch: 2500ms
callback_timeout: 5s
log_level: debug
log_format: json
metrics_addr: ":9100"
rpc_rate_limit: 2.5
rpc_rate_burst: 3
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:7070/", cfg.HostSpec())
	assert.Equal(t, 2*time.Second, cfg.Verification.PreferredData)
	assert.Equal(t, 2500*time.Millisecond, cfg.Verification.Switch)
	assert.Zero(t, cfg.Verification.Legacy)
	assert.Equal(t, 5*time.Second, cfg.CallbackTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, 2.5, cfg.RPCRateLimit)
	assert.Equal(t, 3, cfg.RPCRateBurst)
	assert.Len(t, cfg.EngineOptions(), 2)
}

func TestLoad_YAMLExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "esimctl.yaml", "host: sim:fixture.yml\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sim:fixture.yml", cfg.Host)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "host: [unclosed", "parse"},
		{"bad duration", "callback_timeout: soon", "parse"},
		{"bad level", "log_level: loud", "log_level"},
		{"bad format", "log_format: xml", "log_format"},
		{"negative rate", "rpc_rate_limit: -1", "rpc_rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "esimctl.yml", tt.content)

			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{Host: "sim:a.yml", LogLevel: "info"}
	env := map[string]string{
		EnvHost:        "http://bridge:7070/",
		EnvMetricsAddr: ":9200",
	}

	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://bridge:7070/", cfg.Host)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9200", cfg.MetricsAddr)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadEnvFile(filepath.Join(dir, ".env")))

	writeFile(t, dir, ".env", "ESIMCTL_TEST_ONLY_VAR=from-file\n")
	t.Setenv("ESIMCTL_TEST_ONLY_VAR", "")
	os.Unsetenv("ESIMCTL_TEST_ONLY_VAR")

	require.NoError(t, LoadEnvFile(filepath.Join(dir, ".env")))
	assert.Equal(t, "from-file", os.Getenv("ESIMCTL_TEST_ONLY_VAR"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := (&Config{LogLevel: "info", LogFormat: "json"}).NewLogger(&buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", "component", "test")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"component":"test"`)
}
