package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		in     string
		count  int
		period time.Duration
		ok     bool
	}{
		{"60/minute", 60, time.Minute, true},
		{"100/m", 100, time.Minute, true},
		{"5 per second", 5, time.Second, true},
		{"1000/hours", 1000, time.Hour, true},
		{" 10 / Day ", 10, 24 * time.Hour, true},
		{"10/2 minutes", 10, 2 * time.Minute, true},
		{"10 per 30seconds", 10, 30 * time.Second, true},
		{"3/month", 3, 30 * 24 * time.Hour, true},
		{"1000/years", 1000, 360 * 24 * time.Hour, true},
		{"10/0 minutes", 0, 0, false},
		{"10/2", 0, 0, false},
		{"60", 0, 0, false},
		{"0/minute", 0, 0, false},
		{"-1/minute", 0, 0, false},
		{"abc/minute", 0, 0, false},
		{"10/fortnight", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRateLimit(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.count, got.Count)
			assert.Equal(t, tt.period, got.Period)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.CheckValid())
	assert.Equal(t, "0.0.0.0:8000", c.ListenAddr())
	assert.Equal(t, "60/minute", c.RateLimit)
	assert.True(t, c.SpeedTestFallback)
	assert.Empty(t, c.TrustedProxies)
}

func TestLoadEnv(t *testing.T) {
	env := map[string]string{
		"DB_PATH":             "/tmp/x-ui.db",
		"HOST":                "127.0.0.1",
		"PORT":                "9000",
		"RATE_LIMIT":          "100/minute",
		"TELEGRAM_ADMIN_URL":  "https://t.me/admin",
		"CORS_ORIGINS":        "https://a.example, https://b.example,",
		"SPEED_TEST_TIMEOUT":  "30s",
		"SPEED_TEST_FALLBACK": "false",
		"XUI_LOG_LEVEL":       "WARN",
		"TRUSTED_PROXIES":     "10.0.0.1, 172.16.0.0/12",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	c := Default()
	require.NoError(t, c.loadEnv(lookup))
	require.NoError(t, c.CheckValid())

	assert.Equal(t, "/tmp/x-ui.db", c.DBPath)
	assert.Equal(t, "127.0.0.1:9000", c.ListenAddr())
	assert.Equal(t, "100/minute", c.RateLimit)
	assert.Equal(t, "https://t.me/admin", c.TelegramAdminURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	assert.Equal(t, 30*time.Second, c.SpeedTestTimeout)
	assert.False(t, c.SpeedTestFallback)
	assert.Equal(t, Warn, c.LogLevel)
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, c.TrustedProxies)
}

func TestLoadEnvInvalid(t *testing.T) {
	for key, value := range map[string]string{
		"PORT":                "eighty",
		"SPEED_TEST_TIMEOUT":  "soon",
		"SPEED_TEST_FALLBACK": "maybe",
	} {
		lookup := func(k string) (string, bool) {
			if k == key {
				return value, true
			}
			return "", false
		}
		assert.Error(t, Default().loadEnv(lookup), key)
	}
}

func TestCheckValid(t *testing.T) {
	c := Default()
	c.Port = 70000
	assert.Error(t, c.CheckValid())

	c = Default()
	c.RateLimit = "lots"
	assert.Error(t, c.CheckValid())

	c = Default()
	c.LogLevel = "verbose"
	assert.Error(t, c.CheckValid())

	c = Default()
	c.DBPath = ""
	assert.Error(t, c.CheckValid())

	c = Default()
	c.Debug = true
	require.NoError(t, c.CheckValid())
	assert.Equal(t, Debug, c.LogLevel)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.toml")
	content := `
db_path = "/var/lib/x-ui/x-ui.db"
port = 8080
rate_limit = "10/second"
speed_test_timeout = "90s"
cors_origins = ["https://panel.example"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c := Default()
	require.NoError(t, c.loadTOML(path))
	assert.Equal(t, "/var/lib/x-ui/x-ui.db", c.DBPath)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "10/second", c.RateLimit)
	assert.Equal(t, 90*time.Second, c.SpeedTestTimeout)
	assert.Equal(t, []string{"https://panel.example"}, c.CORSOrigins)

	require.NoError(t, os.WriteFile(path, []byte(`speed_test_timeout = "later"`), 0o644))
	assert.Error(t, Default().loadTOML(path))

	assert.Error(t, Default().loadTOML(filepath.Join(t.TempDir(), "missing.toml")))
}

func TestGetNameAndVersion(t *testing.T) {
	assert.Equal(t, "x-ui-usage", GetName())
	assert.NotEmpty(t, GetVersion())
}
