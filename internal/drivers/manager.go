// Package drivers tracks and installs the external client binaries (pg_dump,
// pg_restore, psql) required for migration runs. On-disk binary presence is
// the sole source of truth for readiness.
package drivers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EonsofStupid/EzDbMigrate/internal/archive"
	"github.com/EonsofStupid/EzDbMigrate/internal/gate"
	"github.com/EonsofStupid/EzDbMigrate/internal/retry"
	"github.com/EonsofStupid/EzDbMigrate/internal/util"
)

// DefaultPackage is the bundle installed when none is configured.
const DefaultPackage = "postgres-17"

// State is the externally observable driver state. It only flips to
// installed after a fully verified install.
type State struct {
	Installed   bool
	Version     string
	InstallPath string
}

// String renders the state the way front ends display it.
func (s State) String() string {
	if s.Installed {
		return "READY"
	}
	return "MISSING"
}

// Options configures a Manager.
type Options struct {
	// Root is the drivers directory (paths.Layout.Drivers()).
	Root string
	// Package is the bundle id; DefaultPackage when empty.
	Package string
	// ManifestURL is the primary bundle source.
	ManifestURL string
	// Channel selects the manifest channel (default "stable").
	Channel string
	// RepoOwner/RepoName identify the GitHub fallback source.
	RepoOwner string
	RepoName  string
	// Retry bounds the bundle download attempts.
	Retry retry.Options
}

// Manager checks for and installs the driver bundle.
type Manager struct {
	opts   Options
	client *http.Client
	log    zerolog.Logger

	installing gate.Gate

	mu    sync.Mutex
	state State
}

// New returns a Manager rooted at opts.Root.
func New(opts Options, logger zerolog.Logger) *Manager {
	if opts.Package == "" {
		opts.Package = DefaultPackage
	}
	if opts.Channel == "" {
		opts.Channel = "stable"
	}
	return &Manager{
		opts:   opts,
		client: &http.Client{Timeout: 5 * time.Minute},
		log:    logger.With().Str("component", "drivers").Logger(),
	}
}

// requiredBinaries are the client tools a migration run invokes.
func requiredBinaries() []string {
	names := []string{"pg_dump", "pg_restore", "psql"}
	if runtime.GOOS == "windows" {
		for i, n := range names {
			names[i] = n + ".exe"
		}
	}
	return names
}

// Resolve locates a binary inside the installed package. Bundles differ in
// layout, so several well-known locations are probed.
func (m *Manager) Resolve(binary string) (string, error) {
	if runtime.GOOS == "windows" && filepath.Ext(binary) == "" {
		binary += ".exe"
	}
	root := filepath.Join(m.opts.Root, m.opts.Package)
	candidates := []string{
		filepath.Join(root, binary),
		filepath.Join(root, "bin", binary),
		filepath.Join(root, "pgsql", "bin", binary),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("binary %s not found in package %s", binary, m.opts.Package)
}

// CheckStatus probes the disk for all required binaries. Read-only; no side
// effects beyond refreshing the cached state.
func (m *Manager) CheckStatus() State {
	installed := true
	var installPath string
	for _, bin := range requiredBinaries() {
		p, err := m.Resolve(bin)
		if err != nil {
			installed = false
			break
		}
		installPath = filepath.Dir(p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Installed = installed
	if installed {
		m.state.InstallPath = installPath
		if m.state.Version == "" {
			m.state.Version = "detected"
		}
	} else {
		m.state.InstallPath = ""
	}
	return m.state
}

// Install downloads, verifies and installs the driver bundle. Idempotent: an
// already-ready install returns immediately. On any failure the state remains
// MISSING and nothing half-installed is left under the package path. A second
// concurrent caller fails fast with gate.ErrBusy.
func (m *Manager) Install(ctx context.Context) (State, error) {
	release, err := m.installing.Acquire("install")
	if err != nil {
		return m.CheckStatus(), fmt.Errorf("driver install: %w", err)
	}
	defer release()

	if st := m.CheckStatus(); st.Installed {
		m.log.Info().Str("action", "install").Str("path", st.InstallPath).Msg("drivers already installed")
		return st, nil
	}

	version, bundle, err := m.resolveBundle(ctx)
	if err != nil {
		return m.CheckStatus(), err
	}

	if err := m.installBundle(ctx, bundle); err != nil {
		return m.CheckStatus(), err
	}

	st := m.CheckStatus()
	if !st.Installed {
		// Extraction succeeded but the bundle does not contain the tools.
		_ = os.RemoveAll(filepath.Join(m.opts.Root, m.opts.Package))
		return m.CheckStatus(), fmt.Errorf("driver install: bundle is missing required binaries")
	}

	m.mu.Lock()
	m.state.Version = version
	st = m.state
	m.mu.Unlock()

	m.log.Info().Str("action", "install").Str("version", version).
		Str("path", st.InstallPath).Msg("drivers installed")
	return st, nil
}

// resolveBundle picks the platform bundle: manifest first, GitHub fallback.
func (m *Manager) resolveBundle(ctx context.Context) (version string, spec PackageSpec, err error) {
	if m.opts.ManifestURL != "" {
		manifest, merr := fetchManifest(ctx, m.client, m.opts.ManifestURL)
		if merr == nil {
			pkg, ok := manifest.Packages[platformKey()]
			if !ok {
				return "", PackageSpec{}, fmt.Errorf("driver install: no bundle for platform %s", platformKey())
			}
			version = "unknown"
			if ch, ok := manifest.Channels[m.opts.Channel]; ok && ch.Version != "" {
				version = ch.Version
			}
			m.log.Info().Str("action", "resolve_bundle").Str("source", "manifest").
				Str("version", version).Float64("size_mb", pkg.SizeMB).Msg("bundle resolved")
			return version, pkg, nil
		}
		m.log.Warn().Err(merr).Str("action", "resolve_bundle").Msg("manifest unavailable, trying github fallback")
	}

	if m.opts.RepoOwner == "" || m.opts.RepoName == "" {
		return "", PackageSpec{}, fmt.Errorf("driver install: no manifest and no fallback repository configured")
	}
	rel, err := fetchLatestRelease(ctx, m.client, m.opts.RepoOwner, m.opts.RepoName)
	if err != nil {
		return "", PackageSpec{}, fmt.Errorf("driver install: %w", err)
	}
	asset, err := pickAsset(rel.Assets)
	if err != nil {
		return "", PackageSpec{}, fmt.Errorf("driver install: %w", err)
	}
	m.log.Info().Str("action", "resolve_bundle").Str("source", "github").
		Str("release", rel.TagName).Str("asset", asset.Name).Msg("bundle resolved")
	return rel.TagName, PackageSpec{URL: asset.DownloadURL}, nil
}

// installBundle downloads the zip, verifies its checksum when known, extracts
// into a staging directory and renames it into place. The package path only
// ever holds a complete install.
func (m *Manager) installBundle(ctx context.Context, spec PackageSpec) error {
	if err := os.MkdirAll(m.opts.Root, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(m.opts.Root, "bundle-*.zip")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	start := time.Now()
	err = retry.Do(ctx, m.opts.Retry, nil, func(ctx context.Context) error {
		return m.download(ctx, spec.URL, tmpPath)
	})
	if err != nil {
		return fmt.Errorf("driver download: %w", err)
	}
	m.log.Debug().Str("action", "download_bundle").Dur("elapsed_ms", time.Since(start)).Msg("download OK")

	if spec.Checksum != "" {
		if err := util.VerifySHA256File(tmpPath, spec.Checksum); err != nil {
			return fmt.Errorf("driver download: %w", err)
		}
	}

	staging := filepath.Join(m.opts.Root, ".staging-"+m.opts.Package)
	_ = os.RemoveAll(staging)
	if err := archive.Unzip(tmpPath, staging); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("driver extract: %w", err)
	}

	target := filepath.Join(m.opts.Root, m.opts.Package)
	_ = os.RemoveAll(target)
	if err := os.Rename(staging, target); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("driver install: %w", err)
	}
	return nil
}

func (m *Manager) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d fetching bundle", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
