// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, env expansion, validation, and rollout conversion

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abtrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/abtrack.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/abtrack.db", cfg.Database.Path)

	// Defaults
	assert.Equal(t, DefaultCacheTTLDays, cfg.Cache.TTLDays)
	assert.Equal(t, 90*24*time.Hour, cfg.CacheTTL())
	assert.Equal(t, "abid", cfg.Cookie.Name)
	assert.True(t, cfg.Tracking.RequireViewBeforeConvert())
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:9000"
database:
  path: "/data/abtrack.db"
cache:
  path: "/data/cache"
  ttl_days: 30
  key_prefix: "abtest-"
tracking:
  require_view_before_convert: false
cookie:
  name: "visitor"
  max_age: "720h"
experiments:
  checkout-button:
    rollout_percent: 25
  banner:
    variant: "control"
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Cache.TTLDays)
	assert.Equal(t, "abtest-", cfg.Cache.KeyPrefix)
	assert.False(t, cfg.Tracking.RequireViewBeforeConvert())
	assert.Equal(t, "visitor", cfg.Cookie.Name)
	assert.Equal(t, 720*time.Hour, cfg.Cookie.MaxAge)

	rollouts := cfg.Rollouts()
	require.Len(t, rollouts, 2)
	assert.Equal(t, 25, rollouts["checkout-button"].Percent)
	assert.Equal(t, "control", rollouts["banner"].Variant)

	// metrics.path defaults when enabled
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("ABTRACK_TEST_DB", "/env/abtrack.db")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "${ABTRACK_TEST_DB}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/abtrack.db", cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"missing http_addr": `
database:
  path: "/tmp/db"
`,
		"missing database path": `
server:
  http_addr: "localhost:8080"
`,
		"negative ttl": `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/db"
cache:
  ttl_days: -1
`,
		"rollout out of range": `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/db"
experiments:
  exp:
    rollout_percent: 150
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadCookieMaxAge(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/db"
cookie:
  max_age: "not-a-duration"
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "cookie.max_age")
}
