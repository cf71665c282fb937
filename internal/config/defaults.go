package config

const (
	defaultConfigPath      = "~/.config/offsettweak/config.toml"
	defaultStateDir        = "~/.local/share/offsettweak"
	defaultLedgerName      = "offset_tweak.csv"
	defaultITGDelta        = 0.009
	defaultHistoryFileName = "history.db"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Tweak: Tweak{
			Extensions: []string{"ssc", "sm"},
			LedgerName: defaultLedgerName,
			ITGDelta:   defaultITGDelta,
			Encodings:  []string{"utf-8", "iso-8859-1"},
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
