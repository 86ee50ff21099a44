package snapkv

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the database options.
//
//	write_policy: timeout
//	write_timeout: 250ms
//	branch_factor: 16
//	retain_versions: 32
//	paranoid: false
//	log_level: info
type Config struct {
	WritePolicy    string        `yaml:"write_policy"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	BranchFactor   uint          `yaml:"branch_factor"`
	RetainVersions int           `yaml:"retain_versions"`
	Paranoid       bool          `yaml:"paranoid"`
	LogLevel       string        `yaml:"log_level"`
}

// ParseConfig decodes YAML. Unknown fields are rejected.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadConfig reads and parses the YAML config file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return ParseConfig(data)
}

// Options converts the config to options for Open. The log level is
// applied to logger.
func (c Config) Options(logger zerolog.Logger) ([]Option, error) {
	policy, err := ParseWritePolicy(c.WritePolicy)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithWritePolicy(policy),
		WithBranchFactor(c.BranchFactor),
		WithRetainVersions(c.RetainVersions),
		WithParanoid(c.Paranoid),
	}
	if c.WriteTimeout != 0 {
		if policy != Timeout {
			return nil, fmt.Errorf("write_timeout requires the timeout write policy, got %v", policy)
		}
		opts = append(opts, WithWriteTimeout(c.WriteTimeout))
	}
	if c.LogLevel != "" {
		level, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		logger = logger.Level(level)
	}
	opts = append(opts, WithLogger(logger))
	return opts, nil
}
