package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/EonsofStupid/EzDbMigrate/internal/config"
	"github.com/EonsofStupid/EzDbMigrate/internal/drivers"
	"github.com/EonsofStupid/EzDbMigrate/internal/events"
	"github.com/EonsofStupid/EzDbMigrate/internal/logx"
	"github.com/EonsofStupid/EzDbMigrate/internal/migration"
	"github.com/EonsofStupid/EzDbMigrate/internal/paths"
	"github.com/EonsofStupid/EzDbMigrate/internal/provider"
	"github.com/EonsofStupid/EzDbMigrate/internal/tools"
	"github.com/EonsofStupid/EzDbMigrate/internal/verify"
	"github.com/EonsofStupid/EzDbMigrate/internal/version"

	_ "github.com/EonsofStupid/EzDbMigrate/internal/provider/azure"
)

// Test seams — overridden in unit tests. Keep signatures in sync with packages.
var (
	loadConfig   func() (config.Config, error)                         = config.Load
	newProvider  func(name string, cfg any) (provider.Provider, error) = provider.New
	resolvePaths func() (paths.Layout, error)                          = paths.Resolve
	exit         func(int)                                             = os.Exit
)

const usage = `
Usage:
  migrator backup
  migrator restore
  migrator install-drivers
  migrator driver-status
  migrator verify  [source|target]
  migrator version | --version | -v
  migrator help    | --help    | -h

Notes:
  - Endpoints come from env vars (or a .env file):
      SOURCE_URL, SOURCE_SERVICE_KEY, SOURCE_DB_URL
      TARGET_URL, TARGET_SERVICE_KEY, TARGET_DB_URL
      RESTORE_ARTIFACT (restore only)
  - Offsite archive replication is selected with BACKUP_PROVIDER
    (empty: disabled, "azure": Azure Blob Storage).
  - App root: EZDB_HOME, a portable "userdata" directory next to the
    executable, or the per-user config directory.
`

// main wires CLI -> config -> drivers/verifier/toolset -> orchestrator.
// Exit codes: 0 success, 1 runtime error, 2 usage error.
func main() {
	_ = godotenv.Load() // best-effort
	logx.InitFromEnv()

	args := os.Args[1:]
	if len(args) < 1 {
		fmt.Print(usage)
		exit(2)
	}
	action := strings.ToLower(args[0])

	// Handle version command
	if action == "version" || action == "--version" || action == "-v" {
		fmt.Printf("migrator %s\n", version.Info())
		exit(0)
	}

	// Handle help command
	if action == "help" || action == "--help" || action == "-h" {
		fmt.Print(usage)
		exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("config error")
		exit(1)
	}

	layout, err := resolvePaths()
	if err != nil {
		log.Error().Err(err).Msg("path resolution error")
		exit(1)
	}
	if err := layout.Ensure(); err != nil {
		log.Error().Err(err).Str("root", layout.Root).Msg("cannot create app directories")
		exit(1)
	}
	if err := logx.AttachFile(filepath.Join(layout.Logs(), "migrator.log")); err != nil {
		log.Warn().Err(err).Msg("log file unavailable, continuing on stderr only")
	}

	// Every log line is mirrored onto the bus next to progress events.
	bus := events.NewBus()
	logger := logx.WithBus(log.Logger, bus)

	mgr := drivers.New(drivers.Options{
		Root:        layout.Drivers(),
		Package:     cfg.Driver.Package,
		ManifestURL: cfg.Driver.ManifestURL,
		Channel:     cfg.Driver.Channel,
		RepoOwner:   cfg.Driver.RepoOwner,
		RepoName:    cfg.Driver.RepoName,
		Retry:       cfg.RetryOptions(),
	}, logger)

	// Offsite replication is optional; an empty provider disables it.
	var offsite provider.Provider
	if cfg.Provider != "" {
		offsite, err = newProvider(cfg.Provider, cfg)
		if err != nil {
			log.Error().Err(err).Str("provider", cfg.Provider).Msg("provider init error")
			exit(1)
		}
	}

	verifier := verify.New(cfg.VerifyTimeout, logger)
	orch := migration.New(bus, mgr, verifier, tools.NewLocal(mgr, logger), migration.Options{
		BackupRoot:   layout.Backups(),
		StageTimeout: cfg.StageTimeout,
		Offsite:      offsite,
	}, logger)

	// Stage progress and run outcomes go to stdout for the operator.
	bus.Subscribe(func(e events.Event) {
		switch ev := e.(type) {
		case events.ProgressEvent:
			fmt.Printf("%-9s %s\n", ev.Stage, ev.Status)
		case events.RunEvent:
			if ev.Detail != "" {
				fmt.Printf("%s %s: %s\n", ev.Kind, ev.Status, ev.Detail)
			} else {
				fmt.Printf("%s %s\n", ev.Kind, ev.Status)
			}
		}
	})

	ctx := cancelOnSignal(orch)

	switch action {
	case "backup":
		runOperation(func() (migration.OperationRun, error) {
			id, err := orch.StartBackup(cfg.OperationConfig())
			if err != nil {
				return migration.OperationRun{}, err
			}
			return orch.Wait(ctx, id)
		})

	case "restore":
		runOperation(func() (migration.OperationRun, error) {
			id, err := orch.StartRestore(cfg.OperationConfig())
			if err != nil {
				return migration.OperationRun{}, err
			}
			return orch.Wait(ctx, id)
		})

	case "install-drivers":
		runOperation(func() (migration.OperationRun, error) {
			id, err := orch.InstallDrivers()
			if err != nil {
				return migration.OperationRun{}, err
			}
			return orch.Wait(ctx, id)
		})

	case "driver-status":
		st := mgr.CheckStatus()
		if st.Installed {
			fmt.Printf("%s %s (%s)\n", st, st.Version, st.InstallPath)
		} else {
			fmt.Println(st)
		}
		exit(0)

	case "verify":
		endpoint := cfg.Source
		side := "source"
		if len(args) > 1 && strings.EqualFold(args[1], "target") {
			endpoint = cfg.Target
			side = "target"
		}
		start := time.Now()
		if err := verifier.Verify(ctx, endpoint.URL, endpoint.ServiceKey); err != nil {
			log.Error().Err(err).Str("action", "verify").Str("endpoint", side).Msg("verification failed")
			exit(1)
		}
		log.Info().Str("action", "verify").Str("endpoint", side).
			Dur("elapsed_ms", time.Since(start)).Msg("connection OK")
		exit(0)

	default:
		fmt.Print(usage)
		exit(2)
	}
}

// runOperation drives one start-and-wait cycle and maps the terminal run
// status to an exit code.
func runOperation(op func() (migration.OperationRun, error)) {
	start := time.Now()
	run, err := op()
	if err != nil {
		log.Error().Err(err).Msg("operation rejected")
		exit(1)
	}

	elapsed := time.Since(start)
	switch run.Status {
	case events.RunCompleted:
		log.Info().Str("kind", string(run.Kind)).Str("archive", run.ArchivePath).
			Dur("elapsed_ms", elapsed).Msg("operation OK")
		exit(0)
	default:
		log.Error().Str("kind", string(run.Kind)).Str("status", string(run.Status)).
			Str("detail", run.ErrorDetail).Dur("elapsed_ms", elapsed).Msg("operation did not complete")
		exit(1)
	}
}

// cancelOnSignal requests a graceful cancel of the in-flight run on the first
// SIGINT/SIGTERM; a second signal aborts the process.
func cancelOnSignal(orch *migration.Orchestrator) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		log.Warn().Msg("cancellation requested")
		if err := orch.CancelCurrentOperation(); err != nil {
			cancel()
		}
		<-ch
		cancel()
		os.Exit(1)
	}()
	return ctx
}
