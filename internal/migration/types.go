// Package migration implements the stateful migration orchestration engine:
// operation runs, the fixed stage pipeline, concurrency control and the
// progress/log event stream.
package migration

import (
	"time"

	"github.com/google/uuid"

	"github.com/EonsofStupid/EzDbMigrate/internal/events"
)

// The event vocabulary doubles as the run model's closed status types.
type (
	Kind        = events.Kind
	StageName   = events.Stage
	StageStatus = events.StageStatus
	RunStatus   = events.RunStatus
)

// Endpoint is one side of a migration: the project API plus the direct
// database connection used by the dump/restore tools.
type Endpoint struct {
	URL         string
	ServiceKey  string
	DatabaseURL string
}

// OperationConfig is the immutable input of a run.
type OperationConfig struct {
	Source Endpoint
	Target Endpoint
	// ArtifactPath points at an existing backup artifact (directory or zip);
	// required for restore only.
	ArtifactPath string
}

// Stage is one unit of work inside a run. Status moves
// PENDING -> RUNNING -> {DONE, ERROR}; stages after a failure are SKIPPED and
// never executed.
type Stage struct {
	Name         StageName
	Status       StageStatus
	StartedAt    time.Time
	EndedAt      time.Time
	ErrorDetail  string
	ArtifactPath string
}

// OperationRun is one end-to-end invocation of backup, restore or install.
// The stage set and order are fixed at creation. Runs are retained for
// reporting after they reach a terminal status.
type OperationRun struct {
	ID          uuid.UUID
	Kind        Kind
	Stages      []Stage
	Status      RunStatus
	CreatedAt   time.Time
	EndedAt     time.Time
	ErrorDetail string
	// ArchivePath is the packed artifact of a completed backup.
	ArchivePath string
}

// newRun builds a run with the fixed stage pipeline. Install runs have no
// stage timeline; their progress is log-only.
func newRun(kind Kind) *OperationRun {
	run := &OperationRun{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    events.RunRunning,
		CreatedAt: time.Now().UTC(),
	}
	if kind != events.KindInstall {
		for _, name := range events.Stages() {
			run.Stages = append(run.Stages, Stage{Name: name, Status: events.StatusPending})
		}
	}
	return run
}

// snapshot returns a deep copy safe to hand to callers.
func (r *OperationRun) snapshot() OperationRun {
	cp := *r
	cp.Stages = make([]Stage, len(r.Stages))
	copy(cp.Stages, r.Stages)
	return cp
}

// stage returns the stage entry for name.
func (r *OperationRun) stage(name StageName) *Stage {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}
