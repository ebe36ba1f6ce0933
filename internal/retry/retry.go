// Package retry provides a bounded retry combinator with per-error backoff.
package retry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"time"
)

// Policy describes a bounded retry loop. Backoff maps the failed attempt's
// error to the wait before the next attempt.
type Policy struct {
	MaxAttempts int
	Backoff     func(err error) time.Duration
	OnRetry     func(attempt int, err error)
}

// Fixed returns a Policy with a single backoff duration for all errors.
func Fixed(maxAttempts int, wait time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     func(error) time.Duration { return wait },
	}
}

const (
	// DownloadAttempts bounds the download retry loop.
	DownloadAttempts = 3

	// TransportErrorWait is the cooldown after a transport or TLS failure.
	// Slightly longer than the generic wait; connection-level errors tend
	// to need the extra breathing room before the next dial.
	TransportErrorWait = 800 * time.Millisecond

	// GenericErrorWait is the cooldown after any other failure.
	GenericErrorWait = 500 * time.Millisecond
)

// DownloadPolicy returns the retry policy for binary downloads: three
// attempts, with the wait keyed on whether the failure was at the
// transport/TLS layer.
func DownloadPolicy() Policy {
	return Policy{
		MaxAttempts: DownloadAttempts,
		Backoff: func(err error) time.Duration {
			if IsTransportError(err) {
				return TransportErrorWait
			}
			return GenericErrorWait
		},
	}
}

// IsTransportError reports whether err originated at the connection or TLS
// layer rather than in the payload or the remote application.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}

	// net.Error covers dial failures, timeouts, and *url.Error from
	// http.Client, all of which sit below the payload.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &authErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return false
}

// Do executes fn up to p.MaxAttempts times, waiting p.Backoff(err) between
// attempts. The last error is returned after exhaustion.
func Do(ctx context.Context, p Policy, fn func() error) error {
	_, err := DoWithResult(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn with retries and returns its result.
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	return zero, lastErr
}
