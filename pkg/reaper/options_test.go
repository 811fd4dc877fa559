package reaper

import (
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	opts := Options{BaseBackoff: 2 * time.Second, MaxBackoff: 30 * time.Second}
	for _, tc := range []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: 2 * time.Second},
		{attempt: 2, expected: 4 * time.Second},
		{attempt: 3, expected: 8 * time.Second},
		{attempt: 4, expected: 16 * time.Second},
		{attempt: 5, expected: 30 * time.Second},
		{attempt: 10, expected: 30 * time.Second},
	} {
		if delay := opts.backoff(tc.attempt); delay != tc.expected {
			t.Errorf("expected backoff after attempt %d to be %s, got %s", tc.attempt, tc.expected, delay)
		}
	}
}

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	opts := Options{MaxAttempts: 5}.withDefaults()
	if opts.MaxAttempts != 5 {
		t.Errorf("expected explicit MaxAttempts 5 to survive, got %d", opts.MaxAttempts)
	}
	defaults := DefaultOptions()
	if opts.BaseBackoff != defaults.BaseBackoff {
		t.Errorf("expected default BaseBackoff %s, got %s", defaults.BaseBackoff, opts.BaseBackoff)
	}
	if opts.Concurrency != defaults.Concurrency {
		t.Errorf("expected default Concurrency %d, got %d", defaults.Concurrency, opts.Concurrency)
	}
	if opts.WaitTimeout != defaults.WaitTimeout {
		t.Errorf("expected default WaitTimeout %s, got %s", defaults.WaitTimeout, opts.WaitTimeout)
	}
}
