package polling

import "time"

// Config contains controller configuration.
type Config struct {
	// PollInterval is the baseline cadence while a task is processing.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// Ceiling is the elapsed time after which a task below the high-progress
	// threshold is flagged timed out.
	Ceiling time.Duration `mapstructure:"ceiling"`
	// RecoveryInterval is the cadence of timed-out tasks.
	RecoveryInterval time.Duration `mapstructure:"recovery_interval"`
	// MaxRecoveryAttempts bounds automatic attempts in timed-out mode.
	MaxRecoveryAttempts int `mapstructure:"max_recovery_attempts"`
	// RequestTimeout bounds a single provider call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Immediate retry of one poll on transport errors.
	RetryMaxTries     uint          `mapstructure:"retry_max_tries"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`

	// MaxConsecutiveErrors is the number of failed polls in a row after which
	// the task is treated as timed out.
	MaxConsecutiveErrors int `mapstructure:"max_consecutive_errors"`
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:         5 * time.Second,
		Ceiling:              30 * time.Minute,
		RecoveryInterval:     15 * time.Second,
		MaxRecoveryAttempts:  40,
		RequestTimeout:       30 * time.Second,
		RetryMaxTries:        3,
		RetryInitialDelay:    500 * time.Millisecond,
		RetryMaxDelay:        4 * time.Second,
		MaxConsecutiveErrors: 6,
	}
}

// withDefaults returns a copy of c with zero fields set to their defaults.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.PollInterval <= 0 {
		out.PollInterval = d.PollInterval
	}
	if out.Ceiling <= 0 {
		out.Ceiling = d.Ceiling
	}
	if out.RecoveryInterval <= 0 {
		out.RecoveryInterval = d.RecoveryInterval
	}
	if out.MaxRecoveryAttempts <= 0 {
		out.MaxRecoveryAttempts = d.MaxRecoveryAttempts
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = d.RequestTimeout
	}
	if out.RetryMaxTries == 0 {
		out.RetryMaxTries = d.RetryMaxTries
	}
	if out.RetryInitialDelay <= 0 {
		out.RetryInitialDelay = d.RetryInitialDelay
	}
	if out.RetryMaxDelay <= 0 {
		out.RetryMaxDelay = d.RetryMaxDelay
	}
	if out.MaxConsecutiveErrors <= 0 {
		out.MaxConsecutiveErrors = d.MaxConsecutiveErrors
	}
	return &out
}
