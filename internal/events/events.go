// Package events carries the live log/progress stream of a migration run and
// the closed vocabulary of kinds, stages and statuses used on it.
package events

import "time"

// Kind identifies the type of a long-running operation.
type Kind string

const (
	KindBackup  Kind = "BACKUP"
	KindRestore Kind = "RESTORE"
	KindInstall Kind = "INSTALL"
)

// Stage names one unit of backup/restore work.
type Stage string

const (
	StageDatabase  Stage = "DATABASE"
	StageStorage   Stage = "STORAGE"
	StageFunctions Stage = "FUNCTIONS"
	StageAuth      Stage = "AUTH"
)

// Stages returns the fixed execution order. Later stages may depend on state
// established earlier, so the order is never reshuffled.
func Stages() []Stage {
	return []Stage{StageDatabase, StageStorage, StageFunctions, StageAuth}
}

// StageStatus is the lifecycle of a single stage.
// PENDING -> RUNNING -> {DONE, ERROR}; stages after a failure become SKIPPED.
type StageStatus string

const (
	StatusPending StageStatus = "PENDING"
	StatusRunning StageStatus = "RUNNING"
	StatusDone    StageStatus = "DONE"
	StatusError   StageStatus = "ERROR"
	StatusSkipped StageStatus = "SKIPPED"
)

// RunStatus is the overall status of an operation run.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunCancelled RunStatus = "CANCELLED"
)

// Terminal reports whether s is a terminal run status.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// Event is any record published on the Bus.
type Event interface{ event() }

// LogEvent is a single log line of the stream.
type LogEvent struct {
	Time    time.Time
	Level   string
	Message string
}

// ProgressEvent reports a stage status transition.
type ProgressEvent struct {
	RunID  string
	Stage  Stage
	Status StageStatus
}

// RunEvent reports an overall run status transition, including the terminal
// outcome of the run.
type RunEvent struct {
	RunID  string
	Kind   Kind
	Status RunStatus
	Detail string
}

func (LogEvent) event()      {}
func (ProgressEvent) event() {}
func (RunEvent) event()      {}
