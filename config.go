package facade

import (
	"fmt"
	"os"
	"time"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the file-based configuration of a dispatcher and its standard
// interceptors.
//
// Example YAML:
//
//	aggregation: first
//	log:
//	  level: info
//	  encoding: json
//	timeout: 5s
//	retry:
//	  attempts: 3
//	  delay: 100ms
type Config struct {
	// Aggregation is "collection" or "first". Default is "collection".
	Aggregation string `yaml:"aggregation" validate:"oneof=collection first" default:"collection"`

	Log LogConfig `yaml:"log"`

	// Timeout bounds single-recipient calls. Zero disables it.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	Retry RetryConfig `yaml:"retry"`
}

// LogConfig configures the dispatcher logger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default is "info".
	Level string `yaml:"level" validate:"oneof=debug info warn error" default:"info"`

	// Encoding is "json" or "console". Default is "json".
	Encoding string `yaml:"encoding" validate:"oneof=json console" default:"json"`

	// Disable builds a no-op logger.
	Disable bool `yaml:"disable" default:"false"`
}

// RetryConfig configures the retry interceptor. Attempts of 1 disables
// retrying.
type RetryConfig struct {
	Attempts uint          `yaml:"attempts" validate:"gte=1" default:"1"`
	Delay    time.Duration `yaml:"delay" validate:"gte=0" default:"100ms"`
}

// LoadConfig reads a YAML config file, expanding environment variables.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data. Environment variables are expanded,
// defaults are applied to missing fields, then the result is validated.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("set config defaults: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Build creates the logger described by c.
func (c LogConfig) Build() (*zap.Logger, error) {
	if c.Disable {
		return zap.NewNop(), nil
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, errx.Wrap(err)
	}

	zapConfig := zap.Config{
		Level:            level,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		Encoding:         c.Encoding,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "msg",
			LevelKey:       "level",
			NameKey:        "logger",
			TimeKey:        "time",
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeName:     zapcore.FullNameEncoder,
		},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return logger, nil
}

// Options returns the dispatcher options for the aggregation strategy and
// logger. Timeout and retry are applied by installing the matching
// interceptors.
func (c Config) Options() ([]Option, error) {
	strategy, err := ParseAggregationStrategy(c.Aggregation)
	if err != nil {
		return nil, err
	}

	logger, err := c.Log.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return []Option{
		WithAggregation(strategy),
		WithLogger(logger),
	}, nil
}
