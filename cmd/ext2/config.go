package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "EXT2"
	appName      = "ext2"

	logFormatText = "text"
	logFormatJSON = "json"
)

type Config struct {
	Image     string `envconfig:"EXT2_IMAGE"      yaml:"image"`
	Offset    uint64 `envconfig:"EXT2_OFFSET"     yaml:"offset"`
	LogLevel  string `envconfig:"EXT2_LOG_LEVEL"  yaml:"logLevel"`
	LogFormat string `envconfig:"EXT2_LOG_FORMAT" yaml:"logFormat"`
}

func DefaultConfig() Config {
	return Config{LogLevel: "warn", LogFormat: logFormatText}
}

// LoadConfig layers the optional config file and then the environment over
// the defaults. Flags are applied on top by the caller.
func LoadConfig() (*Config, error) {
	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating config file: %w", err)
		}
		configFile = filepath.Join(home, ".config", appName+".yaml")
	}

	c := DefaultConfig()
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config file: %w", err)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf(
			"missing required configuration: image / %s_IMAGE / --image",
			envVarPrefix,
		)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.LogFormat != logFormatText && c.LogFormat != logFormatJSON {
		return fmt.Errorf(
			"invalid log format `%s`: wanted `%s` or `%s`",
			c.LogFormat,
			logFormatText,
			logFormatJSON,
		)
	}
	return nil
}

// Logger builds the logger described by the config. The config must be
// valid.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == logFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
