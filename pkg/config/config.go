// Package config loads the engine configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vscp-protocol/vscp-go/pkg/wire"
)

// Validation errors.
var (
	ErrBadNickname = errors.New("config: host nickname out of range")
	ErrBadCapacity = errors.New("config: queue capacity must be positive")
	ErrBadTimeout  = errors.New("config: timeouts must be positive")
	ErrBadRetries  = errors.New("config: retry limit must not be negative")
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the engine configuration.
type Config struct {
	// HostNickname is the nickname the engine speaks as, 0..253.
	HostNickname uint8 `yaml:"host_nickname"`

	// ProbeTimeout bounds one discovery probe.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// ResponseTimeout bounds one request/response exchange.
	ResponseTimeout Duration `yaml:"response_timeout"`

	// BlockAckTimeout bounds firmware block acknowledgements.
	BlockAckTimeout Duration `yaml:"block_ack_timeout"`

	// RetryLimit is how many times a timed-out exchange is repeated.
	RetryLimit int `yaml:"retry_limit"`

	// QueueCapacity is the per-subscriber event queue depth.
	QueueCapacity int `yaml:"queue_capacity"`

	// TraceFile, when set, appends a capture of all traffic and state
	// changes to this path.
	TraceFile string `yaml:"trace_file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		HostNickname:    0,
		ProbeTimeout:    Duration(250 * time.Millisecond),
		ResponseTimeout: Duration(1500 * time.Millisecond),
		BlockAckTimeout: Duration(5 * time.Second),
		RetryLimit:      3,
		QueueCapacity:   256,
	}
}

// Load reads a YAML file on top of the defaults. Missing keys keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.HostNickname > wire.NicknameMax {
		return ErrBadNickname
	}
	if c.QueueCapacity <= 0 {
		return ErrBadCapacity
	}
	if c.ProbeTimeout <= 0 || c.ResponseTimeout <= 0 || c.BlockAckTimeout <= 0 {
		return ErrBadTimeout
	}
	if c.RetryLimit < 0 {
		return ErrBadRetries
	}
	return nil
}
