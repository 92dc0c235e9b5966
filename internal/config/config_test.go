package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protogate/protogate/internal/config"
)

const minimalConfig = `
profiles:
  default:
    adapter: http
    target: https://api.example.com
`

// =============================================================================
// LOADING
// =============================================================================

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0o644))

	cfg, err := config.Load(path)

	require.NoError(t, err)
	profile, err := cfg.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "http", profile.Adapter)
	assert.Equal(t, "https://api.example.com", profile.Target)
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := config.Load("")
	assert.Error(t, err)

	_, err = config.Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromBytes_FullConfig(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(`
logging:
  level: debug
  format: json
plugins:
  dirs: [/opt/protogate/plugins]
  watch: true
profiles:
  default:
    adapter: http
    target: https://api.example.com
    auth: bearer
    timeout: 30s
    insecure: true
  reporting:
    adapter: sqlite
    target: /var/db/reports.db
auth:
  bearer:
    token: t0k
fallback:
  enabled: true
  ttl: 2m
`))

	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/protogate/plugins"}, cfg.Plugins.Dirs)
	assert.True(t, cfg.Plugins.Watch)

	profile, err := cfg.Profile("default")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, profile.Timeout.Std())
	assert.True(t, profile.Insecure)

	reporting, err := cfg.Profile("reporting")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", reporting.Adapter)

	require.NotNil(t, cfg.Auth.Bearer)
	assert.Equal(t, "t0k", cfg.Auth.Bearer.Token)
	assert.True(t, cfg.Fallback.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Fallback.TTL.Std())
}

// =============================================================================
// ENV EXPANSION
// =============================================================================

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	t.Setenv("PG_TARGET", "https://real.example.com")
	os.Unsetenv("PG_TOKEN")

	cfg, err := config.LoadFromBytes([]byte(`
profiles:
  default:
    adapter: http
    target: ${PG_TARGET}
auth:
  bearer:
    token: ${PG_TOKEN:-fallback-token}
`))

	require.NoError(t, err)
	profile, err := cfg.Profile("default")
	require.NoError(t, err)
	assert.Equal(t, "https://real.example.com", profile.Target)
	assert.Equal(t, "fallback-token", cfg.Auth.Bearer.Token)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestLoadFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no profiles", `logging: {level: info}`},
		{"profile missing target", `
profiles:
  default:
    adapter: http
`},
		{"profile missing adapter", `
profiles:
  default:
    target: https://x
`},
		{"negative timeout", `
profiles:
  default:
    adapter: http
    target: https://x
    timeout: -5s
`},
		{"bearer without token", `
profiles:
  default:
    adapter: http
    target: https://x
auth:
  bearer: {}
`},
		{"malformed yaml", `profiles: [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestProfile_Unknown(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(minimalConfig))
	require.NoError(t, err)

	_, err = cfg.Profile("ghost")
	assert.Error(t, err)
}
