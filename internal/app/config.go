package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// SystemConfigPath is read first when no config file is given explicitly.
const SystemConfigPath = "/etc/kanidm/config"

var (
	ErrNoConfig   = errors.New("failed to find config file")
	ErrMissingURI = errors.New("config has no uri")
)

// fileConfig is the on-disk TOML shape. Unknown keys are ignored so the
// same file can be shared with other Kanidm tools.
type fileConfig struct {
	URI            string `toml:"uri"`
	ConnectTimeout int    `toml:"connect_timeout"` // seconds
}

type Config struct {
	URI            string        // Required: base URL of the directory
	ConnectTimeout time.Duration // Optional: per-request timeout (default: 10s)
	Source         string        // File the config was read from, "" if none

	Env       string // Environment (dev, prod) (default: "")
	LogLevel  string // Log level (debug, info, warn, error) (default: warn)
	LogFormat string // Log format (json, text) (default: text)
}

// LoadOptions selects where LoadConfig looks.
type LoadOptions struct {
	// Path, when set, is the only file read.
	Path string

	// SearchPaths are read in order when Path is empty; the last readable
	// one wins. Nil means ConfigPaths().
	SearchPaths []string
}

// ConfigPaths returns the default search order: the system file, then the
// user's file under $HOME.
func ConfigPaths() []string {
	paths := []string{SystemConfigPath}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "kanidm"))
	}
	return paths
}

// DefaultConfig returns the settings that come from the environment alone.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		Env:            os.Getenv("ENV"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// LoadConfig reads the config file and applies environment overrides.
// KANIDM_URL replaces the file's uri, and is enough on its own when no file
// is found.
func LoadConfig(opts LoadOptions, log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}

	cfg := DefaultConfig()

	source, contents := readConfigFile(opts, log)
	if contents != nil {
		var fc fileConfig
		if err := toml.Unmarshal(contents, &fc); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", source, err)
		}
		cfg.Source = source
		cfg.URI = fc.URI
		if fc.ConnectTimeout > 0 {
			cfg.ConnectTimeout = time.Duration(fc.ConnectTimeout) * time.Second
		}
	}

	cfg.URI = getEnvOrDefault("KANIDM_URL", cfg.URI)
	cfg.ConnectTimeout = getEnvDurationOrDefault("KANIDM_CONNECT_TIMEOUT", cfg.ConnectTimeout)

	switch {
	case cfg.URI == "" && contents == nil:
		return Config{}, ErrNoConfig
	case cfg.URI == "":
		return Config{}, fmt.Errorf("%s: %w", source, ErrMissingURI)
	}

	return cfg, nil
}

// readConfigFile returns the path and contents of the winning file, or a
// nil slice when none could be read.
func readConfigFile(opts LoadOptions, log *slog.Logger) (string, []byte) {
	if opts.Path != "" {
		b, err := os.ReadFile(opts.Path)
		if err != nil {
			log.Debug("failed to read config file", "path", opts.Path, "err", err)
			return "", nil
		}
		log.Debug("using config file", "path", opts.Path, "from", "--config only")
		return opts.Path, b
	}

	paths := opts.SearchPaths
	if paths == nil {
		paths = ConfigPaths()
	}

	var (
		source   string
		contents []byte
	)
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			log.Debug("failed to read config file", "path", p, "err", err)
			continue
		}
		log.Debug("using config file", "path", p, "from", paths)
		source, contents = p, b
	}
	return source, contents
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
