package plugins

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEntryPoint means a candidate directory has no plugin.yaml.
	ErrNoEntryPoint = errors.New("no plugin.yaml entry point")
	// ErrDuplicatePlugin means an earlier search root already provided the name.
	ErrDuplicatePlugin = errors.New("duplicate plugin name")
	// ErrNotAdmitted means discovery was vetoed, normally because the
	// registry has the extension disabled.
	ErrNotAdmitted = errors.New("plugin disabled in registry")
	// ErrUnknownRuntime means no PackageLoader handles the manifest runtime.
	ErrUnknownRuntime = errors.New("unknown plugin runtime")
	// ErrFactoryNotFound means a builtin manifest names a factory missing
	// from the catalog.
	ErrFactoryNotFound = errors.New("plugin factory not found")
	// ErrPluginNotFound means the manager holds no extension by that name.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrInvalidConfig means settings failed the manifest config schema.
	ErrInvalidConfig = errors.New("invalid plugin config")
)

// DiscoveryError explains why a candidate package was skipped.
type DiscoveryError struct {
	Name   string
	Dir    string
	Reason string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("plugin %s (%s): %s: %v", e.Name, e.Dir, e.Reason, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// HookError is a failure or panic inside an extension hook.
type HookError struct {
	Plugin string
	Hook   string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
