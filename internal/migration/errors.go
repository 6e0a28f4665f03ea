package migration

import (
	"errors"
	"fmt"

	"github.com/EonsofStupid/EzDbMigrate/internal/gate"
)

// ErrBusy is returned when another operation holds the gate. It aliases the
// gate sentinel so errors.Is works with either package's name for it.
var ErrBusy = gate.ErrBusy

var (
	// ErrCancelled marks a user-initiated termination.
	ErrCancelled = errors.New("operation cancelled")
	// ErrNotImplemented marks a declared-unsupported operation body. Such
	// bodies fail fast instead of silently no-op'ing.
	ErrNotImplemented = errors.New("operation not implemented")
	// ErrNoActiveRun is returned by CancelCurrentOperation when idle.
	ErrNoActiveRun = errors.New("no operation in progress")
)

// ConfigError rejects an invalid OperationConfig before any state is touched:
// no gate acquisition, no events.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: missing required field %s", e.Field)
}

// DriverError reports a driver readiness or install failure. Driver state
// stays MISSING.
type DriverError struct {
	Reason string
	Err    error
}

func (e *DriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("drivers: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("drivers: %s", e.Reason)
}

func (e *DriverError) Unwrap() error { return e.Err }

// StageError captures a mid-run tool failure. It aborts all remaining stages;
// already-DONE stages keep their artifacts.
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
