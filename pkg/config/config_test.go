package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
host_nickname: 5
probe_timeout: 100ms
retry_limit: 1
trace_file: /tmp/capture.vlog
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint8(5), cfg.HostNickname)
	assert.Equal(t, 100*time.Millisecond, cfg.ProbeTimeout.Std())
	assert.Equal(t, 1, cfg.RetryLimit)
	assert.Equal(t, "/tmp/capture.vlog", cfg.TraceFile)

	// Untouched keys keep their defaults.
	assert.Equal(t, Default().ResponseTimeout, cfg.ResponseTimeout)
	assert.Equal(t, Default().QueueCapacity, cfg.QueueCapacity)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeFile(t, "probe_timeout: sometime\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"reserved nickname", func(c *Config) { c.HostNickname = 254 }, ErrBadNickname},
		{"zero capacity", func(c *Config) { c.QueueCapacity = 0 }, ErrBadCapacity},
		{"zero timeout", func(c *Config) { c.ResponseTimeout = 0 }, ErrBadTimeout},
		{"negative retries", func(c *Config) { c.RetryLimit = -1 }, ErrBadRetries},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(Default())
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(out, &cfg))
	assert.Equal(t, Default().ProbeTimeout, cfg.ProbeTimeout)
}
