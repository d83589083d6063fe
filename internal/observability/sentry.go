package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// SetupSentry initializes error reporting when a DSN is configured and hands
// back the flush function to run on shutdown. Without a DSN both the setup
// and the returned flush are no-ops, so local development needs no special
// casing at the call site.
func SetupSentry(dsn, environment string) (flush func(), err error) {
	flush = func() {}
	if dsn == "" {
		return flush, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	}); err != nil {
		return flush, err
	}

	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}
