package provider

import "context"

// Provider is the contract for offsite storage backends holding packed backup
// archives. Keys are plain strings so implementations decide their own format.
type Provider interface {
	// Backup uploads a local file (source) to remote storage (target key).
	Backup(ctx context.Context, source, target string) error

	// Restore downloads a remote object (source key) to a local path (target).
	Restore(ctx context.Context, source, target string) error

	// Name returns the provider identifier (e.g. "azure").
	Name() string
}
