// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backoff

import (
	"context"
	"time"

	cbackoff "github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/metrics"
)

// RetryOptions configures Retry. Zero fields fall back to the defaults in pkg/constants,
// except RandomizationFactor where zero means "no jitter".
type RetryOptions struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int `yaml:"maxRetries"`
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration `yaml:"initialDelay"`
	// Multiplier grows the delay between consecutive retries.
	Multiplier float64 `yaml:"multiplier"`
	// MaxDelay caps a single delay.
	MaxDelay time.Duration `yaml:"maxDelay"`
	// RandomizationFactor spreads each delay over [d*(1-f), d*(1+f)].
	// Zero keeps delays deterministic, which makes concurrent callers retry in lockstep.
	RandomizationFactor float64 `yaml:"randomizationFactor"`
	// OnRetry, if set, is called before each wait with the attempt that just failed (1-based).
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// DefaultRetryOptions returns the store's standard retry budget: 3 retries, 2s doubling up to 10s.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:          constants.RetryMaxRetries,
		InitialDelay:        constants.RetryInitialDelay,
		Multiplier:          constants.RetryMultiplier,
		MaxDelay:            constants.RetryMaxDelay,
		RandomizationFactor: constants.RetryRandomizationFactor,
	}
}

// withDefaults fills unset fields.
func (o RetryOptions) withDefaults() RetryOptions {
	def := DefaultRetryOptions()
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 && o.InitialDelay == 0 && o.Multiplier == 0 && o.MaxDelay == 0 {
		// a completely empty struct means "use the defaults"
		o.MaxRetries = def.MaxRetries
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = def.InitialDelay
	}
	if o.Multiplier < 1 {
		o.Multiplier = def.Multiplier
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.InitialDelay > o.MaxDelay {
		o.InitialDelay = o.MaxDelay
	}
	if o.RandomizationFactor < 0 {
		o.RandomizationFactor = 0
	}

	return o
}

// Delay returns the wait before retry n (0-indexed) when no jitter is configured:
// min(InitialDelay * Multiplier^n, MaxDelay).
func (o RetryOptions) Delay(n int) time.Duration {
	o = o.withDefaults()

	d := float64(o.InitialDelay)
	for i := 0; i < n; i++ {
		d *= o.Multiplier
		if d >= float64(o.MaxDelay) {
			return o.MaxDelay
		}
	}

	return time.Duration(d)
}

// newBackOff builds the cenkalti exponential policy matching o.
func (o RetryOptions) newBackOff(ctx context.Context) cbackoff.BackOff {
	exp := cbackoff.NewExponentialBackOff()
	exp.InitialInterval = o.InitialDelay
	exp.Multiplier = o.Multiplier
	exp.MaxInterval = o.MaxDelay
	exp.RandomizationFactor = o.RandomizationFactor
	// the attempt budget is bounded by MaxRetries, not by wall-clock time
	exp.MaxElapsedTime = 0
	exp.Reset()

	return cbackoff.WithContext(cbackoff.WithMaxRetries(exp, uint64(o.MaxRetries)), ctx)
}

// Retry runs fn, retrying it while it fails with a retryable error (see IsRetryable).
// At most opts.MaxRetries retries are made. Non-retryable errors and the last error after
// exhaustion are returned unchanged. Cancelling ctx stops waiting and returns the last error.
func Retry(ctx context.Context, operation string, fn func() error, opts RetryOptions, log *zap.SugaredLogger) error {
	log = logger.OrNop(log)
	opts = opts.withDefaults()

	attempt := 0
	wrapped := func() error {
		attempt++

		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return cbackoff.Permanent(err)
		}

		return err
	}

	notify := func(err error, delay time.Duration) {
		metrics.IncRetry(operation)
		log.Warnw("Remote store call failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"maxRetries", opts.MaxRetries,
			"delay", delay,
			"error", err)

		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, delay)
		}
	}

	// WithMaxRetries treats 0 as "unlimited", so a zero budget is a single plain call.
	if opts.MaxRetries == 0 {
		return fn()
	}

	return cbackoff.RetryNotify(wrapped, opts.newBackOff(ctx), notify)
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, operation string, fn func() (T, error), opts RetryOptions, log *zap.SugaredLogger) (T, error) {
	var result T

	err := Retry(ctx, operation, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		result = v

		return nil
	}, opts, log)

	return result, err
}
