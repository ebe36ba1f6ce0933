package retry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"
)

func fastPolicy(maxAttempts int) Policy {
	return Fixed(maxAttempts, time.Millisecond)
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return fmt.Errorf("attempt %d failed", calls)
	})
	if calls != 3 {
		t.Errorf("calls = %d, want exactly 3", calls)
	}
	if err == nil || err.Error() != "attempt 3 failed" {
		t.Errorf("err = %v, want last error", err)
	}
}

func TestDo_RecoversMidway(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoWithResult_ReturnsResult(t *testing.T) {
	got, err := DoWithResult(context.Background(), fastPolicy(3), func() ([]byte, error) {
		return []byte("payload"), nil
	})
	if err != nil {
		t.Fatalf("DoWithResult: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q", got)
	}
}

func TestDo_ContextCancelAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := Fixed(3, time.Hour)
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, func() error {
			calls++
			return errors.New("always fails")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_OnRetryCalledBetweenAttempts(t *testing.T) {
	p := fastPolicy(3)
	var retries []int
	p.OnRetry = func(attempt int, err error) {
		retries = append(retries, attempt)
	}

	Do(context.Background(), p, func() error { return errors.New("nope") })

	// Two retries for three attempts; no callback after the final failure.
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("retries = %v, want [1 2]", retries)
	}
}

func TestDownloadPolicy_TwoTierBackoff(t *testing.T) {
	p := DownloadPolicy()
	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}

	transport := &net.OpError{Op: "read", Err: errors.New("connection reset")}
	if got := p.Backoff(transport); got != TransportErrorWait {
		t.Errorf("transport backoff = %v, want %v", got, TransportErrorWait)
	}

	generic := errors.New("decode failed")
	if got := p.Backoff(generic); got != GenericErrorWait {
		t.Errorf("generic backoff = %v, want %v", got, GenericErrorWait)
	}
}

func TestIsTransportError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"tls record", tls.RecordHeaderError{Msg: "bad record"}, true},
		{"url wrapped", &url.Error{Op: "Get", URL: "https://x", Err: errors.New("tls: handshake failure")}, true},
		{"wrapped transport", fmt.Errorf("download: %w", &net.OpError{Op: "read", Err: errors.New("reset")}), true},
		{"wrapped generic", fmt.Errorf("download: %w", errors.New("bad payload")), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransportError(tc.err); got != tc.want {
				t.Errorf("IsTransportError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
