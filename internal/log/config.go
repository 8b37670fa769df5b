package log

// Config mirrors config.LogConfig without importing the config package,
// keeping internal/log free of a dependency on internal/config.
type Config struct {
	Level   string
	Format  string
	Pattern string
	Time    string
	Outputs []OutputConfig
}

// OutputConfig configures a single log output destination.
type OutputConfig struct {
	Type       string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}
