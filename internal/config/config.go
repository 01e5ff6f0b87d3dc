// Package config loads the dashboard service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBorderRouter   = "http://127.0.0.1:8081"
	DefaultListen         = ":8080"
	DefaultPollInterval   = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Config holds the service configuration.
type Config struct {
	// Border router REST endpoint (otbr-agent)
	BorderRouter string `yaml:"border_router" validate:"required,url"`

	// Dashboard HTTP listen address
	Listen string `yaml:"listen" validate:"required"`

	PollInterval   time.Duration `yaml:"poll_interval" validate:"min=1s"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=100ms"`

	// Data directory for SQLite storage
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`

	// Persist a snapshot of every built graph
	Snapshots         bool          `yaml:"snapshots"`
	SnapshotRetention time.Duration `yaml:"snapshot_retention" validate:"min=0"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		BorderRouter:      DefaultBorderRouter,
		Listen:            DefaultListen,
		PollInterval:      DefaultPollInterval,
		RequestTimeout:    DefaultRequestTimeout,
		DataDir:           defaultDataDir(),
		LogLevel:          "INFO",
		Snapshots:         true,
		SnapshotRetention: 24 * time.Hour,
	}
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}
	return filepath.Join(homeDir, ".otbr-web")
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	return cfg, nil
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their YAML key.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks every field and reports the first violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}
	e := validationErrs[0]
	key := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Errorf("config: %s is required", key)
	case "url":
		return fmt.Errorf("config: %s must be a URL, got %q", key, e.Value())
	case "min":
		return fmt.Errorf("config: %s must be at least %s", key, e.Param())
	case "oneof":
		return fmt.Errorf("config: %s must be one of %s", key, e.Param())
	}
	return fmt.Errorf("config: %s is invalid (%s)", key, e.Tag())
}
