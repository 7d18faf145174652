package config

const (
	defaultBaseDir          = "~/.local/share/warden/app"
	defaultDaemonName       = "Listener"
	defaultUmask            = "0133"
	defaultStopAttempts     = 10
	defaultPollIntervalMS   = 100
	defaultStartDelayMS     = 100
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
	defaultCertOrg          = "warden"
	defaultCertDays         = 365
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BaseDir: defaultBaseDir,
		},
		Daemon: Daemon{
			Name:           defaultDaemonName,
			Umask:          defaultUmask,
			StopAttempts:   defaultStopAttempts,
			PollIntervalMS: defaultPollIntervalMS,
			StartDelayMS:   defaultStartDelayMS,
		},
		Logging: Logging{
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Listener: Listener{
			Enabled:  true,
			CertOrg:  defaultCertOrg,
			CertDays: defaultCertDays,
		},
	}
}
