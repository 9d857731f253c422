package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const connectAttempts = 5

var connectBackoff = 500 * time.Millisecond

// retry calls ping until it succeeds, roughly doubling the wait between
// attempts. It gives up after connectAttempts calls or when ctx is done.
func retry(ctx context.Context, log zerolog.Logger, name string, ping func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = connectBackoff
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		return ping(ctx)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).
			Str("target", name).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Connection failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, connectAttempts-1), ctx)
	return backoff.RetryNotify(op, policy, notify)
}
