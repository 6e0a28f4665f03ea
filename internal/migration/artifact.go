package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EonsofStupid/EzDbMigrate/internal/archive"
)

// manifestFormatVersion guards restore compatibility. Bump it whenever the
// artifact layout changes in a way old restores cannot handle.
const manifestFormatVersion = 1

const manifestFilename = "manifest.json"

// ArtifactManifest describes a finished backup artifact.
type ArtifactManifest struct {
	FormatVersion int             `json:"format_version"`
	CreatedAt     time.Time       `json:"created_at"`
	RunID         string          `json:"run_id"`
	Source        string          `json:"source"`
	Stages        []ManifestStage `json:"stages"`
}

// ManifestStage records one stage's outcome inside the manifest.
type ManifestStage struct {
	Name     StageName   `json:"name"`
	Status   StageStatus `json:"status"`
	Artifact string      `json:"artifact,omitempty"`
}

// writeManifest serializes the run's stage outcomes next to their artifacts.
func writeManifest(run *OperationRun, cfg OperationConfig, dir string) error {
	m := ArtifactManifest{
		FormatVersion: manifestFormatVersion,
		CreatedAt:     time.Now().UTC(),
		RunID:         run.ID.String(),
		Source:        cfg.Source.URL,
	}
	for _, st := range run.Stages {
		artifact := st.ArtifactPath
		if rel, err := filepath.Rel(dir, artifact); err == nil && artifact != "" {
			artifact = filepath.ToSlash(rel)
		}
		m.Stages = append(m.Stages, ManifestStage{Name: st.Name, Status: st.Status, Artifact: artifact})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFilename), data, 0o644)
}

// readArtifactManifest loads the manifest from a backup artifact, which may
// be the artifact directory or the packed zip.
func readArtifactManifest(path string) (ArtifactManifest, error) {
	var m ArtifactManifest

	info, err := os.Stat(path)
	if err != nil {
		return m, fmt.Errorf("backup artifact %s: %w", path, err)
	}

	var data []byte
	switch {
	case info.IsDir():
		data, err = os.ReadFile(filepath.Join(path, manifestFilename))
	case strings.EqualFold(filepath.Ext(path), ".zip"):
		data, err = archive.ReadEntry(path, manifestFilename)
	default:
		return m, fmt.Errorf("backup artifact %s: not a directory or zip archive", path)
	}
	if err != nil {
		return m, fmt.Errorf("backup artifact %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("backup artifact %s: bad manifest: %w", path, err)
	}
	return m, nil
}

// checkArtifactCompatible verifies existence and format compatibility of a
// restore source. Pre-flight only: runs before any stage mutation.
func checkArtifactCompatible(path string) error {
	m, err := readArtifactManifest(path)
	if err != nil {
		return err
	}
	if m.FormatVersion != manifestFormatVersion {
		return fmt.Errorf("backup artifact %s: format version %d not supported (want %d)",
			path, m.FormatVersion, manifestFormatVersion)
	}
	return nil
}
