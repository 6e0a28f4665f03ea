// Package tools implements the external operations invoked by migration
// stages: the pg_dump subprocess and the storage/functions/auth HTTP exports.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/EonsofStupid/EzDbMigrate/internal/drivers"
)

// ToolError reports a failed external tool invocation with enough context to
// diagnose it: the exit code and the tail of stderr.
type ToolError struct {
	Tool       string
	ExitCode   int
	StderrTail string
}

func (e *ToolError) Error() string {
	if e.StderrTail != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.StderrTail)
	}
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
}

// Local runs every stage operation on this host against the project's APIs.
// It implements migration.Toolset.
type Local struct {
	drivers *drivers.Manager
	client  *http.Client
	log     zerolog.Logger
}

// NewLocal returns a Local toolset resolving binaries through mgr.
func NewLocal(mgr *drivers.Manager, logger zerolog.Logger) *Local {
	return &Local{
		drivers: mgr,
		client:  &http.Client{Timeout: 2 * time.Minute},
		log:     logger.With().Str("component", "tools").Logger(),
	}
}

// getJSON performs an authenticated GET and decodes the JSON response into out.
func (l *Local) getJSON(ctx context.Context, url, serviceKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	setAuth(req, serviceKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return httpStatusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// postJSON performs an authenticated POST with a JSON body, decoding into out.
func (l *Local) postJSON(ctx context.Context, url, serviceKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	setAuth(req, serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return httpStatusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func setAuth(req *http.Request, serviceKey string) {
	req.Header.Set("apikey", serviceKey)
	req.Header.Set("Authorization", "Bearer "+serviceKey)
}

func httpStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(body) > 0 {
		return fmt.Errorf("%s %s: status %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, body)
	}
	return fmt.Errorf("%s %s: status %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode)
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
