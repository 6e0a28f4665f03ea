package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/EonsofStupid/EzDbMigrate/internal/migration"
)

const functionsFilename = "functions.json"

// ExportFunctions saves the project's edge function metadata. Function bodies
// are not retrievable through the management surface, so the export records
// what is deployed rather than the sources.
func (l *Local) ExportFunctions(ctx context.Context, cfg migration.OperationConfig, destDir string) (string, error) {
	base := trimSlash(cfg.Source.URL)

	var listing json.RawMessage
	if err := l.getJSON(ctx, base+"/functions/v1", cfg.Source.ServiceKey, &listing); err != nil {
		return "", fmt.Errorf("list functions: %w", err)
	}

	dest := filepath.Join(destDir, functionsFilename)
	if err := os.WriteFile(dest, listing, 0o644); err != nil {
		return "", err
	}
	l.log.Info().Str("action", "functions_export").Str("file", dest).Msg("export OK")
	return dest, nil
}
