package provider

import (
	"context"
	"strings"
	"testing"
)

type nullProvider struct{}

func (nullProvider) Backup(context.Context, string, string) error { return nil }

func (nullProvider) Restore(context.Context, string, string) error { return nil }

func (nullProvider) Name() string { return "null" }

func TestRegisterAndNew(t *testing.T) {
	Register("null", func(cfg any) (Provider, error) {
		if cfg != "opaque" {
			t.Fatalf("cfg = %v, want factory to receive it untouched", cfg)
		}
		return nullProvider{}, nil
	})
	t.Cleanup(func() { delete(registry, "null") })

	p, err := New("null", "opaque")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "null" {
		t.Fatalf("name = %s", p.Name())
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("s3", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown offsite provider") {
		t.Fatalf("err = %v, want unknown offsite provider", err)
	}
}
