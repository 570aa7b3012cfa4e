package lua

import "errors"

var (
	// ErrStateClosed is returned by hooks called after Unload.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrBadModule is returned when main does not return a usable hook table.
	ErrBadModule = errors.New("lua plugin must return a table")

	// ErrMissingHook is returned when a required hook is not a function.
	ErrMissingHook = errors.New("lua plugin is missing a required hook")
)
