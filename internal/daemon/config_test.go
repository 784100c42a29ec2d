package daemon

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.SocketPath)
	assert.NotEmpty(t, cfg.PIDPath)
	assert.Equal(t, filepath.Dir(cfg.SocketPath), filepath.Dir(cfg.PIDPath))
	assert.Positive(t, cfg.Timeout)
	assert.Positive(t, cfg.ShutdownGracePeriod)
	assert.False(t, cfg.AutoStart)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", DefaultConfig(), true},
		{"empty socket", Config{SocketPath: "", PIDPath: "x", Timeout: 1, ShutdownGracePeriod: 1}, false},
		{"empty pid", Config{SocketPath: "x", PIDPath: "", Timeout: 1, ShutdownGracePeriod: 1}, false},
		{"zero timeout", Config{SocketPath: "x", PIDPath: "y", Timeout: 0, ShutdownGracePeriod: 1}, false},
		{"zero grace", Config{SocketPath: "x", PIDPath: "y", Timeout: 1, ShutdownGracePeriod: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_EnsureDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		SocketPath: filepath.Join(dir, "sub", "daemon.sock"),
		PIDPath:    filepath.Join(dir, "sub", "daemon.pid"),
	}
	assert.NoError(t, cfg.EnsureDir())
}
