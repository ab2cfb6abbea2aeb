package wsecho

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// Config configures the echo server.
type Config struct {
	// Addr is the address the server listens on.
	Addr string
	// Path is the route WebSocket connections are accepted on.
	Path string
	// MessageInterval and Burst bound how fast each connection's
	// messages are echoed.
	MessageInterval time.Duration
	Burst           int
	// Timeout bounds the lifetime of a connection.
	Timeout time.Duration
	// MaxBufferedPayload caps frames that span reads.
	MaxBufferedPayload int64
	// InsecureSkipVerify disables origin checks.
	InsecureSkipVerify bool
	// LogLevel is a zerolog level name.
	LogLevel string
}

// DefaultConfig returns the configuration used for keys a config
// file does not define.
func DefaultConfig() Config {
	return Config{
		Addr:               "localhost:8080",
		Path:               "/echo",
		MessageInterval:    time.Millisecond * 100,
		Burst:              10,
		Timeout:            time.Minute,
		MaxBufferedPayload: 1 << 20,
		LogLevel:           "info",
	}
}

type fileConfig struct {
	Addr               string `toml:"addr"`
	Path               string `toml:"path"`
	MessageInterval    string `toml:"message_interval"`
	Burst              int    `toml:"burst"`
	Timeout            string `toml:"timeout"`
	MaxBufferedPayload int64  `toml:"max_buffered_payload"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	LogLevel           string `toml:"log_level"`
}

// LoadConfig reads a TOML config file. Keys it leaves out keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to load echo config: %w", err)
	}
	return raw.apply(meta, DefaultConfig())
}

// ParseConfig is like LoadConfig but reads the TOML from s.
func ParseConfig(s string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(s, &raw)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to parse echo config: %w", err)
	}
	return raw.apply(meta, DefaultConfig())
}

func (raw fileConfig) apply(meta toml.MetaData, cfg Config) (Config, error) {
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("path") {
		cfg.Path = strings.TrimSpace(raw.Path)
		if !strings.HasPrefix(cfg.Path, "/") {
			return Config{}, xerrors.Errorf("path %q must start with /", cfg.Path)
		}
	}

	if meta.IsDefined("message_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.MessageInterval))
		if err != nil {
			return Config{}, xerrors.Errorf("failed to parse message_interval: %w", err)
		}
		cfg.MessageInterval = d
	}

	if meta.IsDefined("burst") {
		if raw.Burst < 1 {
			return Config{}, xerrors.Errorf("burst %v must be at least 1", raw.Burst)
		}
		cfg.Burst = raw.Burst
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, xerrors.Errorf("failed to parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("max_buffered_payload") {
		cfg.MaxBufferedPayload = raw.MaxBufferedPayload
	}

	if meta.IsDefined("insecure_skip_verify") {
		cfg.InsecureSkipVerify = raw.InsecureSkipVerify
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}
