package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Manifest is the published description of available driver bundles.
type Manifest struct {
	Tool     string                 `json:"tool"`
	Channels map[string]Channel     `json:"channels"`
	Packages map[string]PackageSpec `json:"packages"`
	MOTD     string                 `json:"message_of_the_day"`
}

// Channel maps a release channel (stable, insider) to a bundle version.
type Channel struct {
	Version  string `json:"version"`
	Required bool   `json:"required"`
}

// PackageSpec describes one platform's bundle.
type PackageSpec struct {
	URL      string  `json:"url"`
	Checksum string  `json:"checksum"` // sha256, hex
	SizeMB   float64 `json:"size_mb"`
}

// githubRelease and githubAsset mirror the GitHub releases API, used as the
// fallback source when the manifest endpoint is unavailable.
type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
}

// platformKey returns the manifest package key for the running platform,
// e.g. "linux-x64", "darwin-arm64", "win32-x64".
func platformKey() string {
	osName := runtime.GOOS
	switch osName {
	case "windows":
		osName = "win32"
	}
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x64"
	}
	return osName + "-" + arch
}

// fetchManifest downloads and decodes the driver manifest.
func fetchManifest(ctx context.Context, client *http.Client, url string) (Manifest, error) {
	var m Manifest
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return m, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return m, fmt.Errorf("fetch manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return m, fmt.Errorf("fetch manifest: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// fetchLatestRelease queries the GitHub releases API for the fallback bundle.
func fetchLatestRelease(ctx context.Context, client *http.Client, owner, repo string) (githubRelease, error) {
	var rel githubRelease
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return rel, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return rel, fmt.Errorf("github releases: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return rel, fmt.Errorf("github releases: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return rel, fmt.Errorf("decode release: %w", err)
	}
	return rel, nil
}

// pickAsset selects the zip asset built for the running platform.
func pickAsset(assets []githubAsset) (githubAsset, error) {
	key := runtime.GOOS
	if key == "windows" {
		key = "win"
	}
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if strings.Contains(name, key) && strings.HasSuffix(name, ".zip") {
			return a, nil
		}
	}
	return githubAsset{}, fmt.Errorf("no %s zip asset in release", runtime.GOOS)
}
