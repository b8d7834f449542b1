package app

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffConfig selects the delay between reconnect attempts.
type BackoffConfig struct {
	Exponential bool
	Delay       time.Duration // constant policy
	Initial     time.Duration // exponential policy
	Max         time.Duration // exponential policy
}

// NewBackoff builds the reconnect policy. The constant policy waits the
// same delay before every attempt.
func NewBackoff(cfg BackoffConfig) backoff.BackOff {
	if !cfg.Exponential {
		return backoff.NewConstantBackOff(cfg.Delay)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Initial
	b.MaxInterval = cfg.Max
	b.Reset()
	return b
}
