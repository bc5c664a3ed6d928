package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "identity.json", map[string]any{
		"endpoint_addr_grpc":              "www.example:9000",
		"database_dsn":                    "postgres://db",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "10m",
		"refresh_token_validity_duration": "72h",
		"lockout_threshold":               7,
		"lockout_duration":                "1h",
		"reset_token_validity":            "30m",
		"allowed_domains":                 []string{"beesrs.com", "beesrs.vn"},
		"redis_addr":                      "redis:6379",
		"reset_request_window":            "5m",
		"s3_bucket":                       "bucket",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 72*time.Hour, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 7, cfg.LockoutThreshold)
		assert.Equal(t, time.Hour, cfg.LockoutDuration)
		assert.Equal(t, 30*time.Minute, cfg.ResetTokenValidity)
		assert.Equal(t, []string{"beesrs.com", "beesrs.vn"}, cfg.AllowedDomains)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, 5*time.Minute, cfg.ResetRequestWindow)
		assert.Equal(t, "bucket", cfg.S3Bucket)
	})

	t.Run("absent keys keep defaults", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", path}))

		assert.Equal(t, 24*time.Hour, cfg.VerificationTokenValidity)
		assert.Equal(t, 6, cfg.VerificationCodeLength)
		assert.Equal(t, "log", cfg.NotificationBackend)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		cfg := &Config{EndpointAddrGRPC: "defaults:1234", SecretKey: "key"}
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, "key", cfg.SecretKey)
	})

	t.Run("invalid JSON is an error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-config", bad}))
	})

	t.Run("bad duration is an error", func(t *testing.T) {
		p := writeTempJSON(t, dir, "dur.json", map[string]any{"lockout_duration": "forever"})
		require.Error(t, parseJson(&Config{}, []string{"-c", p}))
	})
}
