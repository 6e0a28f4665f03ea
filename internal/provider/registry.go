package provider

import "fmt"

// Factory creates an offsite archive provider from opaque config; each
// backend decides what config type it accepts (azure takes config.Config).
type Factory func(any) (Provider, error)

// registry maps BACKUP_PROVIDER names to factories. Backends register
// themselves from an init function, so importing a backend package is what
// makes its name selectable.
var registry = map[string]Factory{}

// Register binds a provider name to its factory.
func Register(name string, f Factory) {
	registry[name] = f
}

// New returns the offsite provider selected by name.
func New(name string, cfg any) (Provider, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown offsite provider %q", name)
	}
	return f(cfg)
}
