// Package config loads the cloudywindow configuration file.
//
// The file is YAML. Every field is optional; missing fields keep their
// defaults and unknown fields are rejected so typos surface immediately.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/picker"
	"github.com/roach88/cloudywindow/internal/store"
)

// DirName is the directory under the user config dir holding all state.
const DirName = "cloudywindow"

// FileName is the config file name inside Dir.
const FileName = "config.yaml"

// DefaultHomeURL is opened by browse when nothing else is configured.
const DefaultHomeURL = "https://www.google.com"

// Config holds user settings. Relative paths resolve against the directory
// containing the config file.
type Config struct {
	Store    string        `yaml:"store"`
	Journal  string        `yaml:"journal"`
	Debounce time.Duration `yaml:"debounce"`
	LogLevel string        `yaml:"log_level"`
	HomeURL  string        `yaml:"home_url"`
	Hint     string        `yaml:"hint"`
}

// Dir returns the default state directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, DirName), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Defaults returns the configuration used when no file exists, with state
// files placed in dir.
func Defaults(dir string) *Config {
	return &Config{
		Store:    filepath.Join(dir, store.DefaultFileName),
		Journal:  filepath.Join(dir, journal.DefaultFileName),
		Debounce: store.DefaultDebounce,
		LogLevel: "info",
		HomeURL:  DefaultHomeURL,
		Hint:     string(picker.ActionTransparent),
	}
}

// Load reads the config at path. A missing file yields Defaults for the
// file's directory.
func Load(path string) (*Config, error) {
	dir := filepath.Dir(path)
	cfg := Defaults(dir)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.Store = resolve(dir, cfg.Store, store.DefaultFileName)
	cfg.Journal = resolve(dir, cfg.Journal, journal.DefaultFileName)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LastURLFile holds the URL browse was showing when it closed.
const LastURLFile = "last-url"

// StartURL returns the URL browse opens without an argument: the last URL
// recorded in dir, else HomeURL.
func (c *Config) StartURL(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, LastURLFile))
	if err == nil {
		if u := strings.TrimSpace(string(data)); u != "" {
			return u
		}
	}
	if c.HomeURL != "" {
		return c.HomeURL
	}
	return DefaultHomeURL
}

// RememberURL records url for the next StartURL.
func RememberURL(dir, url string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, LastURLFile), []byte(url+"\n"), 0o644)
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	a, err := picker.ParseAction(c.Hint)
	if err != nil {
		return fmt.Errorf("hint: %w", err)
	}
	if _, ok := picker.Hints("*").For(a); !ok {
		return fmt.Errorf("hint: %q cannot be staged for a manual pick", a)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// HintAction returns Hint as a picker action. Call after Validate.
func (c *Config) HintAction() picker.Action {
	a, err := picker.ParseAction(c.Hint)
	if err != nil {
		return picker.ActionTransparent
	}
	return a
}

func resolve(dir, p, fallback string) string {
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
