package migration

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EonsofStupid/EzDbMigrate/internal/archive"
	"github.com/EonsofStupid/EzDbMigrate/internal/drivers"
	"github.com/EonsofStupid/EzDbMigrate/internal/events"
	"github.com/EonsofStupid/EzDbMigrate/internal/gate"
	"github.com/EonsofStupid/EzDbMigrate/internal/provider"
)

// DriverManager is the orchestrator's view of driver readiness.
type DriverManager interface {
	CheckStatus() drivers.State
	Install(ctx context.Context) (drivers.State, error)
}

// Verifier runs the pre-flight connection probe.
type Verifier interface {
	Verify(ctx context.Context, projectURL, serviceKey string) error
}

// DefaultStageTimeout bounds a single stage when none is configured.
const DefaultStageTimeout = 15 * time.Minute

// DefaultOffsitePrefix is where packed archives land on the offsite provider.
const DefaultOffsitePrefix = "migrations/archives"

// Options tunes the orchestrator.
type Options struct {
	// BackupRoot is the directory backup artifacts are written under.
	BackupRoot string
	// StageTimeout bounds each stage (DefaultStageTimeout if non-positive).
	StageTimeout time.Duration
	// Offsite, when set, receives a copy of each packed backup archive.
	// Replication failure never alters a completed run.
	Offsite       provider.Provider
	OffsitePrefix string
}

// Orchestrator sequences driver checks, connection verification and the
// stage pipeline for one operation at a time, reporting progress solely
// through the event bus. Start calls accept or reject synchronously; the work
// itself runs on a dedicated goroutine.
type Orchestrator struct {
	bus      *events.Bus
	gate     gate.Gate
	drivers  DriverManager
	verifier Verifier
	backup   Toolset
	restore  Toolset
	opts     Options
	log      zerolog.Logger

	mu        sync.Mutex
	runs      map[uuid.UUID]*OperationRun
	done      map[uuid.UUID]chan struct{}
	current   *OperationRun
	cancelRun context.CancelFunc
}

// New wires an orchestrator. Restore stage semantics are not designed yet, so
// restore stages run against NotImplementedToolset until they are.
func New(bus *events.Bus, drv DriverManager, verifier Verifier, backupTools Toolset, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}
	if opts.OffsitePrefix == "" {
		opts.OffsitePrefix = DefaultOffsitePrefix
	}
	return &Orchestrator{
		bus:      bus,
		drivers:  drv,
		verifier: verifier,
		backup:   backupTools,
		restore:  NotImplementedToolset{},
		opts:     opts,
		log:      logger.With().Str("component", "orchestrator").Logger(),
		runs:     map[uuid.UUID]*OperationRun{},
		done:     map[uuid.UUID]chan struct{}{},
	}
}

// StartBackup validates cfg and, if accepted, launches an asynchronous backup
// run. Returns the run ID; progress is delivered on the bus.
func (o *Orchestrator) StartBackup(cfg OperationConfig) (uuid.UUID, error) {
	if err := validateBackup(cfg); err != nil {
		return uuid.Nil, err
	}
	return o.start(events.KindBackup, cfg)
}

// StartRestore validates cfg and launches an asynchronous restore run.
func (o *Orchestrator) StartRestore(cfg OperationConfig) (uuid.UUID, error) {
	if err := validateRestore(cfg); err != nil {
		return uuid.Nil, err
	}
	return o.start(events.KindRestore, cfg)
}

func validateBackup(cfg OperationConfig) error {
	switch {
	case strings.TrimSpace(cfg.Source.URL) == "":
		return &ConfigError{Field: "source URL"}
	case strings.TrimSpace(cfg.Source.ServiceKey) == "":
		return &ConfigError{Field: "source service key"}
	case strings.TrimSpace(cfg.Source.DatabaseURL) == "":
		return &ConfigError{Field: "source database URL"}
	}
	return nil
}

func validateRestore(cfg OperationConfig) error {
	switch {
	case strings.TrimSpace(cfg.Target.URL) == "":
		return &ConfigError{Field: "target URL"}
	case strings.TrimSpace(cfg.Target.ServiceKey) == "":
		return &ConfigError{Field: "target service key"}
	case strings.TrimSpace(cfg.ArtifactPath) == "":
		return &ConfigError{Field: "backup artifact path"}
	}
	return nil
}

// start performs the synchronous acceptance sequence shared by backup and
// restore: driver readiness (read-only, checked before the gate so a missing
// install rejects without gate churn or events), then gate acquisition.
func (o *Orchestrator) start(kind Kind, cfg OperationConfig) (uuid.UUID, error) {
	if st := o.drivers.CheckStatus(); !st.Installed {
		return uuid.Nil, &DriverError{Reason: "required client binaries are not installed"}
	}

	release, err := o.gate.Acquire(string(kind))
	if err != nil {
		return uuid.Nil, err
	}

	run, ctx := o.register(kind)
	go o.executeRun(ctx, run, cfg, release)
	return run.ID, nil
}

// InstallDrivers launches an asynchronous driver install under the gate.
func (o *Orchestrator) InstallDrivers() (uuid.UUID, error) {
	release, err := o.gate.Acquire(string(events.KindInstall))
	if err != nil {
		return uuid.Nil, err
	}

	run, ctx := o.register(events.KindInstall)
	go o.executeInstall(ctx, run, release)
	return run.ID, nil
}

// CheckDriverStatus delegates to the driver manager. Read-only.
func (o *Orchestrator) CheckDriverStatus() drivers.State {
	return o.drivers.CheckStatus()
}

// CancelCurrentOperation requests termination of the in-flight run. The run's
// context is cancelled, which signals any running subprocess or request; the
// running stage becomes ERROR(cancelled), the rest SKIPPED, and the run
// terminates CANCELLED. Returns ErrNoActiveRun when idle.
func (o *Orchestrator) CancelCurrentOperation() error {
	o.mu.Lock()
	cancel := o.cancelRun
	o.mu.Unlock()
	if cancel == nil {
		return ErrNoActiveRun
	}
	cancel()
	return nil
}

// CurrentRun returns a snapshot of the in-flight run, if any.
func (o *Orchestrator) CurrentRun() (OperationRun, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return OperationRun{}, false
	}
	return o.current.snapshot(), true
}

// Run returns a snapshot of any known run, terminal runs included.
func (o *Orchestrator) Run(id uuid.UUID) (OperationRun, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[id]
	if !ok {
		return OperationRun{}, false
	}
	return run.snapshot(), true
}

// Wait blocks until the run reaches a terminal status or ctx is done, then
// returns the run snapshot.
func (o *Orchestrator) Wait(ctx context.Context, id uuid.UUID) (OperationRun, error) {
	o.mu.Lock()
	done, ok := o.done[id]
	o.mu.Unlock()
	if !ok {
		return OperationRun{}, fmt.Errorf("unknown run %s", id)
	}

	select {
	case <-ctx.Done():
		run, _ := o.Run(id)
		return run, ctx.Err()
	case <-done:
		run, _ := o.Run(id)
		return run, nil
	}
}

/* ------------------------------ run execution ----------------------------- */

func (o *Orchestrator) register(kind Kind) (*OperationRun, context.Context) {
	run := newRun(kind)
	ctx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.runs[run.ID] = run
	o.done[run.ID] = make(chan struct{})
	o.current = run
	o.cancelRun = cancel
	o.mu.Unlock()

	return run, ctx
}

// unregister releases everything tied to the active run. Deferred on every
// exit path, so the gate can never leak.
func (o *Orchestrator) unregister(run *OperationRun, release gate.Release) {
	release()
	o.mu.Lock()
	if o.current == run {
		o.current = nil
		if o.cancelRun != nil {
			o.cancelRun()
		}
		o.cancelRun = nil
	}
	done := o.done[run.ID]
	o.mu.Unlock()
	close(done)
}

func (o *Orchestrator) executeRun(ctx context.Context, run *OperationRun, cfg OperationConfig, release gate.Release) {
	defer o.unregister(run, release)

	log := o.log.With().Str("run_id", run.ID.String()).Str("kind", string(run.Kind)).Logger()
	log.Info().Str("action", "run_start").Msg("operation accepted")

	endpoint := cfg.Source
	toolset := o.backup
	if run.Kind == events.KindRestore {
		endpoint = cfg.Target
		toolset = o.restore
	}

	// Pre-flight: must succeed before any stage leaves PENDING.
	if err := o.verifier.Verify(ctx, endpoint.URL, endpoint.ServiceKey); err != nil {
		if ctx.Err() != nil {
			o.finish(run, events.RunCancelled, ErrCancelled)
			return
		}
		log.Error().Err(err).Str("action", "verify").Msg("connection verification failed")
		o.finish(run, events.RunFailed, err)
		return
	}
	log.Info().Str("action", "verify").Str("endpoint", endpoint.URL).Msg("connection verified")

	if run.Kind == events.KindRestore {
		if err := checkArtifactCompatible(cfg.ArtifactPath); err != nil {
			log.Error().Err(err).Str("action", "artifact_check").Msg("restore artifact rejected")
			o.finish(run, events.RunFailed, err)
			return
		}
	}

	destDir, err := o.makeRunDir(run)
	if err != nil {
		o.finish(run, events.RunFailed, err)
		return
	}

	var failed, cancelled bool
	for i := range run.Stages {
		st := &run.Stages[i]

		if failed || cancelled {
			o.setStage(run, st, events.StatusSkipped, "")
			continue
		}
		// Cancellation observed between stages: this stage never started, so
		// it is SKIPPED like everything after it. ERROR(cancelled) is reserved
		// for the stage that was RUNNING when the cancel landed.
		if ctx.Err() != nil {
			cancelled = true
			o.setStage(run, st, events.StatusSkipped, "")
			continue
		}

		o.setStage(run, st, events.StatusRunning, "")
		log.Info().Str("action", "stage_start").Str("stage", string(st.Name)).Msg("capturing stage")

		start := time.Now()
		artifact, err := o.invoke(ctx, toolset, st.Name, cfg, destDir)
		switch {
		case err == nil:
			o.mu.Lock()
			st.ArtifactPath = artifact
			o.mu.Unlock()
			o.setStage(run, st, events.StatusDone, "")
			log.Info().Str("action", "stage_done").Str("stage", string(st.Name)).
				Dur("elapsed_ms", time.Since(start)).Msg("stage secured")
		case ctx.Err() != nil:
			cancelled = true
			o.setStage(run, st, events.StatusError, ErrCancelled.Error())
			log.Warn().Str("action", "stage_cancelled").Str("stage", string(st.Name)).Msg("stage cancelled")
		default:
			failed = true
			serr := &StageError{Stage: st.Name, Err: err}
			o.mu.Lock()
			run.ErrorDetail = serr.Error()
			o.mu.Unlock()
			o.setStage(run, st, events.StatusError, serr.Error())
			log.Error().Err(err).Str("action", "stage_failed").Str("stage", string(st.Name)).
				Dur("elapsed_ms", time.Since(start)).Msg("stage failed")
		}
	}

	switch {
	case cancelled:
		o.finish(run, events.RunCancelled, ErrCancelled)
	case failed:
		// ErrorDetail already carries the failing stage.
		o.finish(run, events.RunFailed, nil)
	default:
		if run.Kind == events.KindBackup {
			if err := o.sealBackup(ctx, run, cfg, destDir); err != nil {
				o.finish(run, events.RunFailed, err)
				return
			}
		}
		o.finish(run, events.RunCompleted, nil)
	}
}

func (o *Orchestrator) executeInstall(ctx context.Context, run *OperationRun, release gate.Release) {
	defer o.unregister(run, release)

	log := o.log.With().Str("run_id", run.ID.String()).Logger()
	log.Info().Str("action", "install_start").Msg("driver install accepted")

	st, err := o.drivers.Install(ctx)
	if err != nil {
		if ctx.Err() != nil {
			o.finish(run, events.RunCancelled, ErrCancelled)
			return
		}
		o.finish(run, events.RunFailed, &DriverError{Reason: "install failed", Err: err})
		return
	}
	log.Info().Str("action", "install_done").Str("version", st.Version).
		Str("path", st.InstallPath).Msg("drivers ready")
	o.finish(run, events.RunCompleted, nil)
}

// invoke dispatches one stage to the toolset under the stage timeout.
func (o *Orchestrator) invoke(ctx context.Context, ts Toolset, name StageName, cfg OperationConfig, destDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()

	switch name {
	case events.StageDatabase:
		return ts.DumpDatabase(ctx, cfg, destDir)
	case events.StageStorage:
		return ts.ExportStorage(ctx, cfg, destDir)
	case events.StageFunctions:
		return ts.ExportFunctions(ctx, cfg, destDir)
	case events.StageAuth:
		return ts.ExportAuth(ctx, cfg, destDir)
	default:
		return "", fmt.Errorf("unknown stage %s", name)
	}
}

// sealBackup writes the manifest, packs the artifact directory into a zip and
// optionally replicates it offsite. Replication failure is reported as a
// warning: the local backup is already complete and retained.
func (o *Orchestrator) sealBackup(ctx context.Context, run *OperationRun, cfg OperationConfig, destDir string) error {
	if err := writeManifest(run, cfg, destDir); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	archivePath := destDir + ".zip"
	if err := archive.ZipDir(destDir, archivePath); err != nil {
		return fmt.Errorf("pack archive: %w", err)
	}
	o.mu.Lock()
	run.ArchivePath = archivePath
	o.mu.Unlock()
	o.log.Info().Str("action", "pack_archive").Str("archive", archivePath).Msg("backup archive packed")

	if o.opts.Offsite != nil {
		key := path.Join(o.opts.OffsitePrefix, filepath.Base(archivePath))
		if err := o.opts.Offsite.Backup(ctx, archivePath, key); err != nil {
			o.log.Warn().Err(err).Str("action", "offsite_replicate").
				Str("provider", o.opts.Offsite.Name()).Str("key", key).
				Msg("offsite replication failed; local backup retained")
		} else {
			o.log.Info().Str("action", "offsite_replicate").
				Str("provider", o.opts.Offsite.Name()).Str("key", key).Msg("archive replicated")
		}
	}
	return nil
}

func (o *Orchestrator) makeRunDir(run *OperationRun) (string, error) {
	name := run.CreatedAt.Format("2006-01-02T15-04-05Z")
	if run.Kind == events.KindRestore {
		name = "restore-" + name
	}
	dir := filepath.Join(o.opts.BackupRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

// setStage transitions a stage and publishes the matching progress event.
// Transitions are monotonic: PENDING -> RUNNING -> {DONE, ERROR}, or
// PENDING -> SKIPPED.
func (o *Orchestrator) setStage(run *OperationRun, st *Stage, status StageStatus, detail string) {
	o.mu.Lock()
	st.Status = status
	switch status {
	case events.StatusRunning:
		st.StartedAt = time.Now().UTC()
	case events.StatusDone, events.StatusError:
		st.EndedAt = time.Now().UTC()
	}
	if detail != "" {
		st.ErrorDetail = detail
	}
	o.mu.Unlock()

	o.bus.Publish(events.ProgressEvent{
		RunID:  run.ID.String(),
		Stage:  st.Name,
		Status: status,
	})
}

// finish records the terminal status and emits the terminal run event.
func (o *Orchestrator) finish(run *OperationRun, status RunStatus, err error) {
	o.mu.Lock()
	run.Status = status
	run.EndedAt = time.Now().UTC()
	if err != nil && run.ErrorDetail == "" {
		run.ErrorDetail = err.Error()
	}
	detail := run.ErrorDetail
	o.mu.Unlock()

	evt := o.log.Info()
	if status != events.RunCompleted {
		evt = o.log.Error()
	}
	evt.Str("action", "run_finish").Str("run_id", run.ID.String()).
		Str("kind", string(run.Kind)).Str("status", string(status)).
		Str("detail", detail).Msg("operation finished")

	o.bus.Publish(events.RunEvent{
		RunID:  run.ID.String(),
		Kind:   run.Kind,
		Status: status,
		Detail: detail,
	})
}
