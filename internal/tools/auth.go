package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/EonsofStupid/EzDbMigrate/internal/migration"
)

const authFilename = "auth.json"

// ExportAuth saves the project's auth configuration (provider toggles, email
// settings). User rows live in the database and travel with the dump.
func (l *Local) ExportAuth(ctx context.Context, cfg migration.OperationConfig, destDir string) (string, error) {
	base := trimSlash(cfg.Source.URL)

	var settings json.RawMessage
	if err := l.getJSON(ctx, base+"/auth/v1/settings", cfg.Source.ServiceKey, &settings); err != nil {
		return "", fmt.Errorf("auth settings: %w", err)
	}

	dest := filepath.Join(destDir, authFilename)
	if err := os.WriteFile(dest, settings, 0o644); err != nil {
		return "", err
	}
	l.log.Info().Str("action", "auth_export").Str("file", dest).Msg("export OK")
	return dest, nil
}
