package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveHomeEnvWins(t *testing.T) {
	root := t.TempDir()
	t.Setenv("EZDB_HOME", root)

	l, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if l.Root != root {
		t.Fatalf("root = %s, want %s", l.Root, root)
	}
}

func TestLayoutTree(t *testing.T) {
	l := Layout{Root: filepath.Join("app", "root")}

	if got, want := l.Backups(), filepath.Join("app", "root", "userdata", "backups"); got != want {
		t.Fatalf("Backups() = %s, want %s", got, want)
	}
	if got, want := l.Drivers(), filepath.Join("app", "root", "drivers"); got != want {
		t.Fatalf("Drivers() = %s, want %s", got, want)
	}
	if got, want := l.Logs(), filepath.Join("app", "root", "logs"); got != want {
		t.Fatalf("Logs() = %s, want %s", got, want)
	}
}

func TestEnsureCreatesTree(t *testing.T) {
	l := Layout{Root: filepath.Join(t.TempDir(), "root")}
	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	for _, dir := range []string{l.Userdata(), l.Backups(), l.Drivers(), l.Logs()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("missing directory %s (err=%v)", dir, err)
		}
	}
}
