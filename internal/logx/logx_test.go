package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestAttachFileTeesJSONLines(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "json")
	InitFromEnv()

	path := filepath.Join(t.TempDir(), "migrator.log")
	if err := AttachFile(path); err != nil {
		t.Fatalf("AttachFile: %v", err)
	}

	log.Info().Str("action", "probe").Msg("connection OK")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"connection OK"`) {
		t.Fatalf("log file content = %q", data)
	}
}

func TestAttachFileBadPath(t *testing.T) {
	if err := AttachFile(filepath.Join(t.TempDir(), "missing", "dir", "x.log")); err == nil {
		t.Fatal("AttachFile accepted an uncreatable path")
	}
}
