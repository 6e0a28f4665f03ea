package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/EonsofStupid/EzDbMigrate/internal/migration"
)

const (
	dumpFilename   = "database.dump"
	stderrTailSize = 2048
)

// DumpDatabase runs pg_dump against the source database in custom format.
func (l *Local) DumpDatabase(ctx context.Context, cfg migration.OperationConfig, destDir string) (string, error) {
	bin, err := l.drivers.Resolve("pg_dump")
	if err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, dumpFilename)
	args := []string{
		"--format=custom",
		"--no-owner",
		"--no-privileges",
		"--file=" + dest,
		cfg.Source.DatabaseURL,
	}

	start := time.Now()
	l.log.Info().Str("action", "pg_dump").Str("bin", bin).Msg("dumping database")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return "", &ToolError{
				Tool:       "pg_dump",
				ExitCode:   ee.ExitCode(),
				StderrTail: tail(stderr.Bytes(), stderrTailSize),
			}
		}
		return "", fmt.Errorf("pg_dump: %w", err)
	}

	l.log.Info().Str("action", "pg_dump").Str("file", dest).
		Dur("elapsed_ms", time.Since(start)).Msg("dump OK")
	return dest, nil
}

// tail returns the last max bytes of b as trimmed text.
func tail(b []byte, max int) string {
	if len(b) > max {
		b = b[len(b)-max:]
	}
	return strings.TrimSpace(string(b))
}
