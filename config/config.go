// Package config loads ufscat settings from an optional YAML file and the
// environment. Environment variables take precedence over the file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "UFSCAT"
	appName      = "ufscat"
)

type Config struct {
	LogLevel   string `envconfig:"LOG_LEVEL"   yaml:"logLevel"`
	LogFormat  string `envconfig:"LOG_FORMAT"  yaml:"logFormat"`
	MMap       bool   `envconfig:"MMAP"        yaml:"mmap"`
	NBDSocket  string `envconfig:"NBD_SOCKET"  yaml:"nbdSocket"`
	ExportWrap int    `envconfig:"EXPORT_WRAP" yaml:"exportWrap"`
}

// Default returns the settings used when neither the file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		LogLevel:   "info",
		LogFormat:  "text",
		MMap:       true,
		NBDSocket:  "/tmp/ufscat.sock",
		ExportWrap: 70,
	}
}

// File returns the path of the config file: $UFSCAT_CONFIG_FILE, or
// ufscat.yaml in the user's config directory.
func File() string {
	if f := os.Getenv(envVarPrefix + "_CONFIG_FILE"); f != "" {
		return f
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName+".yaml")
}

// Load reads the config file, if there is one, and applies environment
// overrides on top of it.
func Load() (*Config, error) {
	c := Default()
	if file := File(); file != "" {
		data, err := os.ReadFile(file)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, fmt.Errorf("unmarshaling config file %s: %w", file, err)
			}
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid configuration: logLevel / %s_LOG_LEVEL: %w", envVarPrefix, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid configuration: logFormat / %s_LOG_FORMAT: %q is not text or json", envVarPrefix, c.LogFormat)
	}
	if c.ExportWrap <= 0 {
		return fmt.Errorf("invalid configuration: exportWrap / %s_EXPORT_WRAP: must be positive, got %d", envVarPrefix, c.ExportWrap)
	}
	if c.NBDSocket == "" {
		return fmt.Errorf("missing required configuration: nbdSocket / %s_NBD_SOCKET", envVarPrefix)
	}
	return nil
}

// NewLogger returns a logger writing to out at the configured level and
// in the configured format.
func (c *Config) NewLogger(out io.Writer) (*logrus.Logger, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	level, _ := logrus.ParseLevel(c.LogLevel)
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return l, nil
}
