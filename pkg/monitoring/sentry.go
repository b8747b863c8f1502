// Package monitoring reports unrecoverable failures to Sentry.
package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/activity-feed/config"
)

var enabled bool

// InitSentry 初始化 Sentry；DSN 为空时不上报。
func InitSentry(cfg config.SentryConfig) error {
	if cfg.DSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	}); err != nil {
		return err
	}
	enabled = true
	return nil
}

// CaptureError reports err with the given tags.
func CaptureError(err error, tags map[string]string) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// Recover reports a recovered panic value.
func Recover(v interface{}, tags map[string]string) {
	if !enabled || v == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CurrentHub().Recover(v)
	})
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) {
	if enabled {
		sentry.Flush(timeout)
	}
}
