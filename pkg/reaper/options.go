package reaper

import "time"

// Options tunes the teardown executor. The retry timings are defaults, not
// constants: the right values depend on provider and account load, so they
// are all overridable from flags or a config file.
type Options struct {
	// MaxAttempts bounds delete retries per resource, including the first attempt
	MaxAttempts int `yaml:"maxAttempts"`
	// BaseBackoff is the delay before the first retry, doubled each retry
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	// MaxBackoff caps the doubling
	MaxBackoff time.Duration `yaml:"maxBackoff"`
	// WaitTimeout bounds the wait for asynchronously deleting resources
	// (NAT Gateways, load balancers, instances) to reach a terminal state
	WaitTimeout time.Duration `yaml:"waitTimeout"`
	// Concurrency bounds the worker pool within a single wave
	Concurrency int `yaml:"concurrency"`
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  30 * time.Second,
		WaitTimeout: 10 * time.Minute,
		Concurrency: 8,
	}
}

// withDefaults fills any zero field so a partially specified Options is usable
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaults.MaxAttempts
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = defaults.BaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaults.MaxBackoff
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = defaults.WaitTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaults.Concurrency
	}
	return o
}

// backoff returns the delay to apply after the given attempt number:
// BaseBackoff doubled per attempt, capped at MaxBackoff.
func (o Options) backoff(attempt int) time.Duration {
	delay := o.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= o.MaxBackoff {
			return o.MaxBackoff
		}
	}
	return min(delay, o.MaxBackoff)
}
