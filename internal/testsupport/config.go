package testsupport

import (
	"path/filepath"
	"testing"

	"offsettweak/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config whose state directory is a unique temp
// directory. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.History.Path = filepath.Join(cfgVal.Paths.StateDir, "history.db")

	for _, opt := range opts {
		opt(&cfgVal)
	}
	return &cfgVal
}

// WithoutHistory disables the history journal.
func WithoutHistory() ConfigOption {
	return func(c *config.Config) {
		c.History.Enabled = false
	}
}

// WithContinueOnError enables per-pack failure isolation.
func WithContinueOnError() ConfigOption {
	return func(c *config.Config) {
		c.Tweak.ContinueOnError = true
	}
}
