package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// BaseDir anchors the daemon layout; log and var directories are
	// derived as siblings of it.
	BaseDir string `toml:"base_dir"`
}

// Daemon contains lifecycle tuning for the managed process.
type Daemon struct {
	Name string `toml:"name"`
	// Umask is an octal string, e.g. "0133".
	Umask          string `toml:"umask"`
	StopAttempts   int    `toml:"stop_attempts"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	StartDelayMS   int    `toml:"start_delay_ms"`
	// KeepResident keeps the detached process alive after postworker
	// completes instead of exiting.
	KeepResident bool `toml:"keep_resident"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Listener contains configuration for the bundled HTTPS listener worker.
type Listener struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	// Port 0 selects a random ephemeral port (49152-65535).
	Port     int    `toml:"port"`
	CertOrg  string `toml:"cert_org"`
	CertDays int    `toml:"cert_days"`
}

// Config encapsulates all configuration values for warden.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Daemon   Daemon   `toml:"daemon"`
	Logging  Logging  `toml:"logging"`
	Listener Listener `toml:"listener"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/warden/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("warden.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		c.Paths.BaseDir = defaultBaseDir
	}
	if c.Paths.BaseDir, err = expandPath(c.Paths.BaseDir); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}

	c.Daemon.Name = strings.TrimSpace(c.Daemon.Name)
	if c.Daemon.Name == "" {
		c.Daemon.Name = defaultDaemonName
	}
	if strings.TrimSpace(c.Daemon.Umask) == "" {
		c.Daemon.Umask = defaultUmask
	}
	if c.Daemon.StopAttempts == 0 {
		c.Daemon.StopAttempts = defaultStopAttempts
	}
	if c.Daemon.PollIntervalMS == 0 {
		c.Daemon.PollIntervalMS = defaultPollIntervalMS
	}
	if c.Daemon.StartDelayMS == 0 {
		c.Daemon.StartDelayMS = defaultStartDelayMS
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}

	if strings.TrimSpace(c.Listener.CertOrg) == "" {
		c.Listener.CertOrg = defaultCertOrg
	}
	if c.Listener.CertDays == 0 {
		c.Listener.CertDays = defaultCertDays
	}
	return nil
}

// UmaskBits parses the configured octal umask string.
func (c *Config) UmaskBits() (int, error) {
	mask, err := parseOctal(c.Daemon.Umask)
	if err != nil {
		return 0, fmt.Errorf("daemon.umask: %w", err)
	}
	return mask, nil
}

// PollInterval returns the sleep between stop/status polling iterations.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Daemon.PollIntervalMS) * time.Millisecond
}

// StartDelay returns how long the original caller lingers after launching
// the detach ladder before handing the shell back.
func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.Daemon.StartDelayMS) * time.Millisecond
}

// EnsureDirectories creates the base, log, and var directories when absent.
func (c *Config) EnsureDirectories() error {
	parent := filepath.Dir(c.Paths.BaseDir)
	for _, dir := range []string{c.Paths.BaseDir, filepath.Join(parent, "log"), filepath.Join(parent, "var")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

func parseOctal(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("value is empty")
	}
	mask := 0
	for _, r := range value {
		if r < '0' || r > '7' {
			return 0, fmt.Errorf("%q is not an octal number", value)
		}
		mask = mask*8 + int(r-'0')
	}
	return mask, nil
}
