package migration

import "context"

// Toolset is the contract for the external operations a stage invokes. Each
// method writes its artifact under destDir and returns the artifact path.
// Implementations live outside the core (subprocess invocation, HTTP exports)
// and must honor ctx for cancellation and timeouts.
type Toolset interface {
	DumpDatabase(ctx context.Context, cfg OperationConfig, destDir string) (string, error)
	ExportStorage(ctx context.Context, cfg OperationConfig, destDir string) (string, error)
	ExportFunctions(ctx context.Context, cfg OperationConfig, destDir string) (string, error)
	ExportAuth(ctx context.Context, cfg OperationConfig, destDir string) (string, error)
}

// NotImplementedToolset fails every stage with ErrNotImplemented. It stands in
// for operation bodies whose semantics are not designed yet (currently the
// restore stages), so they fail fast instead of silently succeeding.
type NotImplementedToolset struct{}

func (NotImplementedToolset) DumpDatabase(context.Context, OperationConfig, string) (string, error) {
	return "", ErrNotImplemented
}

func (NotImplementedToolset) ExportStorage(context.Context, OperationConfig, string) (string, error) {
	return "", ErrNotImplemented
}

func (NotImplementedToolset) ExportFunctions(context.Context, OperationConfig, string) (string, error) {
	return "", ErrNotImplemented
}

func (NotImplementedToolset) ExportAuth(context.Context, OperationConfig, string) (string, error) {
	return "", ErrNotImplemented
}
