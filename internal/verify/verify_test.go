package verify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v (%T), want *verify.Error", err, err)
	}
	return ve.Reason
}

func TestVerifyOK(t *testing.T) {
	var gotAPIKey, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	v := New(time.Second, zerolog.Nop())
	if err := v.Verify(context.Background(), srv.URL+"/", "svc-key"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if gotPath != "/storage/v1/bucket" {
		t.Fatalf("path = %s, want /storage/v1/bucket", gotPath)
	}
	if gotAPIKey != "svc-key" || gotAuth != "Bearer svc-key" {
		t.Fatalf("auth headers = %q / %q", gotAPIKey, gotAuth)
	}
}

func TestVerifyUnauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		v := New(time.Second, zerolog.Nop())
		err := v.Verify(context.Background(), srv.URL, "bad-key")
		if reasonOf(t, err) != Unauthorized {
			t.Fatalf("status %d: reason = %s, want unauthorized", status, reasonOf(t, err))
		}
		srv.Close()
	}
}

func TestVerifyServerErrorIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := New(time.Second, zerolog.Nop())
	err := v.Verify(context.Background(), srv.URL, "k")
	if reasonOf(t, err) != Unreachable {
		t.Fatalf("reason = %s, want unreachable", reasonOf(t, err))
	}
	var ve *Error
	_ = errors.As(err, &ve)
	if ve.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", ve.Status)
	}
}

func TestVerifyTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	v := New(50*time.Millisecond, zerolog.Nop())
	err := v.Verify(context.Background(), srv.URL, "k")
	if reasonOf(t, err) != Timeout {
		t.Fatalf("reason = %s, want timeout", reasonOf(t, err))
	}
}

func TestVerifyUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	v := New(time.Second, zerolog.Nop())
	err := v.Verify(context.Background(), srv.URL, "k")
	if reasonOf(t, err) != Unreachable {
		t.Fatalf("reason = %s, want unreachable", reasonOf(t, err))
	}
}
