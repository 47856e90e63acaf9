package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: t.Parallel() is intentionally omitted in this package.
// These tests share process-global environment variables; t.Setenv in
// TestLoad_EnvOverride would race with any concurrent reader.

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "xrboot", cfg.Telemetry.ServiceName)
	assert.Equal(t, 30*time.Second, cfg.Bootstrap.InitTimeout)
	assert.True(t, cfg.Bootstrap.Auto)
	assert.Equal(t, DriverSimulated, cfg.Runtime.Driver)
	assert.Equal(t, "immersive-vr", cfg.Runtime.Session.Mode)
	assert.Equal(t, []string{"bounded-floor"}, cfg.Runtime.Session.OptionalFeatures)
	assert.Equal(t, "bounded-floor", cfg.Runtime.Session.ReferenceSpace)
	assert.True(t, cfg.Runtime.Simulated.Supported)
	assert.False(t, cfg.Report.Redis.Enabled)
	assert.Equal(t, "XR_BOOTSTRAP", cfg.Report.NATS.Stream)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XRBOOT_SERVER_PORT", "9090")
	t.Setenv("XRBOOT_RUNTIME_DRIVER", "remote")
	t.Setenv("XRBOOT_RUNTIME_REMOTE_URL", "http://headset.local:7070")
	t.Setenv("XRBOOT_BOOTSTRAP_INIT_TIMEOUT", "0s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverRemote, cfg.Runtime.Driver)
	assert.Equal(t, "http://headset.local:7070", cfg.Runtime.Remote.URL)
	assert.Zero(t, cfg.Bootstrap.InitTimeout)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xrboot.yaml")
	content := `
runtime:
  session:
    mode: immersive-ar
    reference_space: local-floor
    optional_features: [hand-tracking, anchors]
report:
  redis:
    enabled: true
    ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "immersive-ar", cfg.Runtime.Session.Mode)
	assert.Equal(t, "local-floor", cfg.Runtime.Session.ReferenceSpace)
	assert.Equal(t, []string{"hand-tracking", "anchors"}, cfg.Runtime.Session.OptionalFeatures)
	assert.True(t, cfg.Report.Redis.Enabled)
	assert.Equal(t, time.Hour, cfg.Report.Redis.TTL)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("XRBOOT_RUNTIME_DRIVER", "webgl")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown runtime driver")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Runtime: RuntimeConfig{
				Driver: DriverSimulated,
				Session: SessionConfig{
					Mode:           "immersive-vr",
					ReferenceSpace: "bounded-floor",
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown session mode",
			mutate:  func(c *Config) { c.Runtime.Session.Mode = "immersive-xr" },
			wantErr: "unknown session mode",
		},
		{
			name:    "unknown reference space",
			mutate:  func(c *Config) { c.Runtime.Session.ReferenceSpace = "floor" },
			wantErr: "unknown reference space",
		},
		{
			name: "remote without url",
			mutate: func(c *Config) {
				c.Runtime.Driver = DriverRemote
				c.Runtime.Remote.URL = ""
			},
			wantErr: "runtime.remote.url is required",
		},
		{
			name:    "negative init timeout",
			mutate:  func(c *Config) { c.Bootstrap.InitTimeout = -time.Second },
			wantErr: "must not be negative",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_EnvIsolation(t *testing.T) {
	// Each test uses t.Setenv, which restores the variable via t.Cleanup.
	require.Empty(t, os.Getenv("XRBOOT_SERVER_PORT"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
}
