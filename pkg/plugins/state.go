package plugins

import "fmt"

// State is the lifecycle state of a loaded extension.
type State int32

const (
	StateDiscovered State = iota
	StateLoaded
	StateInitialized
	StateEnabled
	StateDisabled
	StateUnloaded
)

var stateNames = [...]string{
	StateDiscovered:  "discovered",
	StateLoaded:      "loaded",
	StateInitialized: "initialized",
	StateEnabled:     "enabled",
	StateDisabled:    "disabled",
	StateUnloaded:    "unloaded",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown plugin state %q", text)
}
