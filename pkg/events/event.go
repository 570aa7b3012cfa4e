package events

import "fmt"

// Kind identifies one of the event types routed between the host and its extensions.
// The set is closed.
type Kind int

const (
	MessageReceived Kind = iota
	MessageSent
	EmotionChanged
	MemoryStored
	VoiceInput
	VoiceOutput
	DashboardUpdate
	PluginLoaded
	PluginUnloaded
)

var kindNames = [...]string{
	MessageReceived: "message_received",
	MessageSent:     "message_sent",
	EmotionChanged:  "emotion_changed",
	MemoryStored:    "memory_stored",
	VoiceInput:      "voice_input",
	VoiceOutput:     "voice_output",
	DashboardUpdate: "dashboard_update",
	PluginLoaded:    "plugin_loaded",
	PluginUnloaded:  "plugin_unloaded",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	return k >= MessageReceived && int(k) < len(kindNames)
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kindNames {
		kinds[i] = Kind(i)
	}
	return kinds
}

// ParseKind resolves a wire name such as "voice_output" to its Kind.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event kind: %s", name)
}
