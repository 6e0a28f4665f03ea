// Package paths resolves the on-disk layout of the tool: config, backups,
// installed drivers and logs.
package paths

import (
	"os"
	"path/filepath"
)

// Layout is the root directory tree used by the tool.
type Layout struct {
	Root string
}

// Resolve determines the app root.
//   - EZDB_HOME env var wins when set.
//   - Portable mode: a "userdata" directory next to the executable makes the
//     executable's directory the root.
//   - Otherwise the per-user config directory is used.
func Resolve() (Layout, error) {
	if v := os.Getenv("EZDB_HOME"); v != "" {
		return Layout{Root: v}, nil
	}

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		if _, err := os.Stat(filepath.Join(dir, "userdata")); err == nil {
			return Layout{Root: dir}, nil
		}
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return Layout{Root: "."}, nil
	}
	return Layout{Root: filepath.Join(base, "EzDbMigrate")}, nil
}

func (l Layout) Userdata() string { return filepath.Join(l.Root, "userdata") }
func (l Layout) Backups() string  { return filepath.Join(l.Userdata(), "backups") }
func (l Layout) Drivers() string  { return filepath.Join(l.Root, "drivers") }
func (l Layout) Logs() string     { return filepath.Join(l.Root, "logs") }

// Ensure creates the directory tree.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Userdata(), l.Backups(), l.Drivers(), l.Logs()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
