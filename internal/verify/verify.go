// Package verify performs the pre-flight connection check against a hosted
// project before any mutating work begins.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Reason classifies a failed probe.
type Reason string

const (
	Unauthorized Reason = "unauthorized"
	Unreachable  Reason = "unreachable"
	Timeout      Reason = "timeout"
)

// Error is a classified connection failure.
type Error struct {
	Reason Reason
	Status int // HTTP status when the server answered, 0 otherwise
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("connection %s (status %d)", e.Reason, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("connection %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("connection %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// DefaultTimeout bounds a probe when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Verifier probes a project endpoint with a service key. It is a pure check:
// no state is mutated on either side.
type Verifier struct {
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// New returns a Verifier with the given probe timeout (DefaultTimeout if
// non-positive).
func New(timeout time.Duration, logger zerolog.Logger) *Verifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Verifier{
		client:  &http.Client{},
		timeout: timeout,
		log:     logger.With().Str("component", "verify").Logger(),
	}
}

// Verify probes the project's storage bucket listing. Listing buckets needs
// service-role rights, which makes it a good proxy for "this key can run a
// migration".
func (v *Verifier) Verify(ctx context.Context, projectURL, serviceKey string) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	url := trimSlash(projectURL) + "/storage/v1/bucket"
	start := time.Now()
	v.log.Debug().Str("action", "probe").Str("url", url).Msg("starting probe")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return &Error{Reason: Unreachable, Err: err}
	}
	req.Header.Set("apikey", serviceKey)
	req.Header.Set("Authorization", "Bearer "+serviceKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		v.log.Debug().Str("action", "probe").Int("status", resp.StatusCode).
			Dur("elapsed_ms", time.Since(start)).Msg("probe OK")
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Reason: Unauthorized, Status: resp.StatusCode}
	default:
		return &Error{Reason: Unreachable, Status: resp.StatusCode}
	}
}

func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Reason: Timeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Reason: Timeout, Err: err}
	}
	return &Error{Reason: Unreachable, Err: err}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
