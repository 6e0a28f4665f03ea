// Package archive packs and unpacks the zip archives used for driver bundles
// and finished backup artifacts.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unzip extracts src into destDir, creating directories as needed.
// Entries that would escape destDir are rejected.
func Unzip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", src, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if err := extractFile(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, destDir string) error {
	target, err := safeJoin(destDir, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// safeJoin joins name under dir and rejects path traversal.
func safeJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal archive path %q", name)
	}
	return target, nil
}

// ZipDir packs the contents of srcDir (not the directory itself) into dest.
func ZipDir(srcDir, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	w := zip.NewWriter(out)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		entry, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		_ = w.Close()
		_ = out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("pack %s: %w", srcDir, err)
	}

	if err := w.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ReadEntry returns the contents of a single named entry of a zip file.
func ReadEntry(zipPath, name string) ([]byte, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", zipPath, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.Name == name {
			in, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer func() { _ = in.Close() }()
			return io.ReadAll(in)
		}
	}
	return nil, fmt.Errorf("entry %q not found in %s", name, zipPath)
}
