// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/cru/internal/install"
	"github.com/jmylchreest/cru/internal/journal"
	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/target"
	"github.com/jmylchreest/cru/internal/timing"
	"github.com/jmylchreest/cru/internal/validate"
)

// AppName names the config and data directories.
const AppName = "cru"

// Default configuration values.
const (
	DefaultWidth     = 1280
	DefaultHeight    = 1024
	DefaultRefresh   = 165.0
	DefaultRetention = Duration(90 * 24 * time.Hour)
)

// Config represents the cru configuration.
type Config struct {
	Defaults  DefaultsConfig  `toml:"defaults"`
	Paths     PathsConfig     `toml:"paths"`
	Install   InstallConfig   `toml:"install"`
	Generator GeneratorConfig `toml:"generator"`
	History   HistoryConfig   `toml:"history"`
	TUI       TUIConfig       `toml:"tui"`
}

// DefaultsConfig holds the initial form values.
type DefaultsConfig struct {
	Width           int             `toml:"width" validate:"gt=0"`
	Height          int             `toml:"height" validate:"gt=0"`
	Refresh         float64         `toml:"refresh" validate:"gt=0"`
	Algorithm       model.Algorithm `toml:"algorithm" validate:"oneof=reduced-blanking cvt cvt-rb cvt-rbv2 custom"`
	ReducedBlanking bool            `toml:"reduced_blanking"`
	ForceEnable     bool            `toml:"force_enable"`
	Display         string          `toml:"display"` // Empty = first detected output
}

// PathsConfig holds install destinations.
type PathsConfig struct {
	target.Paths

	TemplatesDir string `toml:"templates_dir"` // Overrides for bundled templates
}

// InstallConfig holds privileged installer settings.
type InstallConfig struct {
	Escalators  []string `toml:"escalators" validate:"min=1,dive,required"`
	StagingRoot string   `toml:"staging_root"` // Empty = system temp dir
	Shell       string   `toml:"shell" validate:"required"`
}

// GeneratorConfig holds the external timing generator.
type GeneratorConfig struct {
	CVTPath string `toml:"cvt_path" validate:"required"`
}

// HistoryConfig holds apply journal settings.
type HistoryConfig struct {
	Enabled   bool     `toml:"enabled"`
	Retention Duration `toml:"retention"` // 0 = keep forever
}

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	ShowHelp         bool   `toml:"show_help"`
	ClipboardCommand string `toml:"clipboard_command"` // Empty = auto-detect
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Width:           DefaultWidth,
			Height:          DefaultHeight,
			Refresh:         DefaultRefresh,
			Algorithm:       model.AlgorithmCVT,
			ReducedBlanking: true,
			ForceEnable:     true,
		},
		Paths: PathsConfig{
			Paths: target.DefaultPaths(),
		},
		Install: InstallConfig{
			Escalators: append([]string(nil), install.DefaultEscalators...),
			Shell:      install.DefaultShell,
		},
		Generator: GeneratorConfig{
			CVTPath: timing.DefaultCVTPath,
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: DefaultRetention,
		},
		TUI: TUIConfig{
			ShowHelp: true,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppName, "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppName)
}

// JournalPath returns the path to the apply journal.
func JournalPath() string {
	return filepath.Join(DataPath(), journal.FileName)
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if ff, ok := validate.FirstFailure(err); ok {
			return fmt.Errorf("%s: failed %q constraint (value %v)", ff.Field, ff.Tag, ff.Value)
		}
		return err
	}
	return nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// TimingRequest returns the configured default request.
func (c *Config) TimingRequest() model.TimingRequest {
	return model.TimingRequest{
		Width:           c.Defaults.Width,
		Height:          c.Defaults.Height,
		Refresh:         c.Defaults.Refresh,
		Algorithm:       c.Defaults.Algorithm,
		ReducedBlanking: c.Defaults.ReducedBlanking,
	}
}

// InstallerConfig converts the [install] section.
func (c *Config) InstallerConfig() install.Config {
	return install.Config{
		Escalators:  append([]string(nil), c.Install.Escalators...),
		StagingRoot: c.Install.StagingRoot,
		Shell:       c.Install.Shell,
	}
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}
