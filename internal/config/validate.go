package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateListener()
}

func (c *Config) validateDaemon() error {
	if c.Daemon.Name == "" {
		return errors.New("daemon.name must be set")
	}
	if _, err := c.UmaskBits(); err != nil {
		return err
	}
	if c.Daemon.StopAttempts < 1 {
		return errors.New("daemon.stop_attempts must be positive")
	}
	if c.Daemon.PollIntervalMS < 1 {
		return errors.New("daemon.poll_interval_ms must be positive")
	}
	if c.Daemon.StartDelayMS < 0 {
		return errors.New("daemon.start_delay_ms must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateListener() error {
	if !c.Listener.Enabled {
		return nil
	}
	if c.Listener.Port != 0 && (c.Listener.Port < 49152 || c.Listener.Port > 65535) {
		return errors.New("listener.port must be 0 or within the ephemeral range 49152-65535")
	}
	if c.Listener.CertDays < 1 {
		return errors.New("listener.cert_days must be positive")
	}
	return nil
}
