package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTweak(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTweak() error {
	if len(c.Tweak.Extensions) == 0 {
		return errors.New("tweak.extensions must list at least one extension")
	}
	switch name := c.Tweak.LedgerName; {
	case name == "", name == ".", name == "..",
		strings.ContainsAny(name, `/\`), name != filepath.Base(name):
		return fmt.Errorf("tweak.ledger_name must be a bare file name, got %q", c.Tweak.LedgerName)
	}
	if c.Tweak.ITGDelta <= 0 {
		return errors.New("tweak.itg_delta must be positive")
	}
	if len(c.Tweak.Encodings) == 0 {
		return errors.New("tweak.encodings must list at least one encoding")
	}
	// Single-byte fallbacks decode anything, so UTF-8 has to be tried first.
	if first := c.Tweak.Encodings[0]; first != "utf-8" && first != "utf8" {
		return fmt.Errorf("tweak.encodings must start with utf-8, got %q", first)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
