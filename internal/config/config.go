package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/zvukmeta/tagscan/internal/logger"
)

// Config holds the CLI's own flag defaults. tagscan's parsing core takes no
// configuration of its own (see Options); everything here is CLI surface:
// output shaping, verbosity, and the one parser tunable exposed to callers.
type Config struct {
	// OutputFormat selects how Tags are shaped for stdout: json, csv, tsv,
	// or tabularcsv.
	OutputFormat string `mapstructure:"output_format"`
	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// SkipUnsupported turns an UnsupportedFormatError into a logged warning
	// instead of an aborting error.
	SkipUnsupported bool `mapstructure:"skip_unsupported"`
	// SaveImagePathTemplate is the --save-image destination template; empty
	// means images are never written to disk.
	SaveImagePathTemplate string `mapstructure:"save_image_path_template"`
	// MP3EstimationSeconds bounds the MPEG frame-walk duration estimator.
	MP3EstimationSeconds int `mapstructure:"mp3_estimation_seconds"`

	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
}

const (
	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".tagscan.yaml"

	// DefaultOutputFormat is the output shape used when --format is absent.
	DefaultOutputFormat = "json"

	// DefaultMP3EstimationSeconds is the MPEG duration-estimation bound
	// used when no override is configured.
	DefaultMP3EstimationSeconds = 30
)

var validOutputFormats = map[string]struct{}{
	"json": {}, "csv": {}, "tsv": {}, "tabularcsv": {},
}

// Static error definitions for better error handling.
var (
	// ErrInvalidFormat indicates that output_format is not one of the
	// recognized shapes.
	ErrInvalidFormat = errors.New("invalid output_format")
	// ErrUnknownLogLevel indicates that the log level is not recognized.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrInvalidEstimationSeconds indicates mp3_estimation_seconds is not
	// a positive integer.
	ErrInvalidEstimationSeconds = errors.New("mp3_estimation_seconds must be a positive integer")
)

// Default returns a Config populated with the CLI's built-in defaults,
// before any file or flag overrides are layered on.
func Default() *Config {
	return &Config{
		OutputFormat:          DefaultOutputFormat,
		LogLevel:              "info",
		MP3EstimationSeconds:  DefaultMP3EstimationSeconds,
		ParsedLogLevel:        zapcore.InfoLevel,
	}
}

// LoadConfig loads configuration settings from an optional YAML file,
// layering them over the built-in defaults. An empty configFilename selects
// the default path; a config file that does not exist, at whatever path, is
// not an error — the CLI simply runs with its defaults.
func LoadConfig(configFilename string) (*Config, error) {
	cfg := Default()

	if configFilename == "" {
		configFilename = DefaultConfigFilename
	}

	v := viper.New()
	v.SetConfigFile(configFilename)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, fmt.Errorf("failed to read config from file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// ValidateConfig checks the configuration for validity and sets derived
// fields.
func ValidateConfig(cfg *Config) error {
	format := strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
	if _, ok := validOutputFormats[format]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.OutputFormat)
	}

	cfg.OutputFormat = format

	parsedLogLevel, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	if cfg.MP3EstimationSeconds <= 0 {
		return ErrInvalidEstimationSeconds
	}

	return nil
}
