package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EonsofStupid/EzDbMigrate/internal/migration"
)

const (
	storageDirName     = "storage"
	bucketsFilename    = "buckets.json"
	objectListPageSize = 100
)

type storageBucket struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Public    bool   `json:"public"`
	CreatedAt string `json:"created_at,omitempty"`
}

type storageObject struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type objectListRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// ExportStorage exports every bucket: the bucket manifest plus all objects,
// laid out as storage/<bucket>/<object path>.
func (l *Local) ExportStorage(ctx context.Context, cfg migration.OperationConfig, destDir string) (string, error) {
	base := trimSlash(cfg.Source.URL)
	root := filepath.Join(destDir, storageDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}

	var buckets []storageBucket
	if err := l.getJSON(ctx, base+"/storage/v1/bucket", cfg.Source.ServiceKey, &buckets); err != nil {
		return "", fmt.Errorf("list buckets: %w", err)
	}

	manifest, err := json.MarshalIndent(buckets, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(root, bucketsFilename), manifest, 0o644); err != nil {
		return "", err
	}

	start := time.Now()
	total := 0
	for _, bucket := range buckets {
		n, err := l.exportBucket(ctx, base, cfg.Source.ServiceKey, bucket.Name, root)
		if err != nil {
			return "", fmt.Errorf("bucket %s: %w", bucket.Name, err)
		}
		total += n
	}

	l.log.Info().Str("action", "storage_export").Int("buckets", len(buckets)).
		Int("objects", total).Dur("elapsed_ms", time.Since(start)).Msg("export OK")
	return root, nil
}

// exportBucket pages through the bucket's object listing and downloads each
// object. Returns the number of objects written.
func (l *Local) exportBucket(ctx context.Context, base, serviceKey, bucket, root string) (int, error) {
	bucketDir := filepath.Join(root, bucket)
	if err := os.MkdirAll(bucketDir, 0o755); err != nil {
		return 0, err
	}

	listURL := base + "/storage/v1/object/list/" + url.PathEscape(bucket)
	written := 0
	for offset := 0; ; offset += objectListPageSize {
		var page []storageObject
		req := objectListRequest{Limit: objectListPageSize, Offset: offset}
		if err := l.postJSON(ctx, listURL, serviceKey, req, &page); err != nil {
			return written, fmt.Errorf("list objects: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, obj := range page {
			// Folder placeholders come back without an id; nothing to fetch.
			if obj.ID == "" {
				continue
			}
			if err := l.downloadObject(ctx, base, serviceKey, bucket, obj.Name, bucketDir); err != nil {
				return written, fmt.Errorf("object %s: %w", obj.Name, err)
			}
			written++
		}
		if len(page) < objectListPageSize {
			break
		}
	}
	return written, nil
}

func (l *Local) downloadObject(ctx context.Context, base, serviceKey, bucket, name, bucketDir string) error {
	dest, err := safeObjectPath(bucketDir, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	objURL := base + "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapeObjectName(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, objURL, http.NoBody)
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

// safeObjectPath joins an object name under dir, rejecting names that would
// escape it.
func safeObjectPath(dir, name string) (string, error) {
	dest := filepath.Join(dir, filepath.FromSlash(name))
	if dest != dir && !strings.HasPrefix(dest, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe object name %q", name)
	}
	return dest, nil
}

// escapeObjectName escapes each path segment, keeping the separators.
func escapeObjectName(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
