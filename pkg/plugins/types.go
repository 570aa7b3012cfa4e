package plugins

import (
	"context"
	"errors"
)

// Plugin is the interface every extension implements. Initialize returning a
// non-nil error means the extension is discarded: it receives no further
// calls, not even Unload.
type Plugin interface {
	Initialize(ctx context.Context) error
	Unload(ctx context.Context) error
}

// ErrInitializeDeclined is returned by runtimes whose extension reported a
// plain "false" from its initializer.
var ErrInitializeDeclined = errors.New("plugin declined initialization")

// Loadable is called once after a successful Initialize.
type Loadable interface {
	OnLoad(ctx context.Context) error
}

// Enableable is called on every transition to enabled.
type Enableable interface {
	OnEnable(ctx context.Context) error
}

// Disableable is called on every transition to disabled.
type Disableable interface {
	OnDisable(ctx context.Context) error
}

// HostAware extensions receive their Host before Initialize.
type HostAware interface {
	Attach(h *Host)
}

// MessageReceiver takes part in the message transform chain. Returning
// ok=false leaves the message unchanged.
type MessageReceiver interface {
	OnMessageReceived(ctx context.Context, message string, source Source) (string, bool, error)
}

// MessageSender observes outgoing messages.
type MessageSender interface {
	OnMessageSent(ctx context.Context, message string) error
}

// EmotionObserver observes emotion changes.
type EmotionObserver interface {
	OnEmotionChanged(ctx context.Context, emotion string, intensity float64) error
}

// MemoryObserver observes stored memories.
type MemoryObserver interface {
	OnMemoryStored(ctx context.Context, kind, content string) error
}

// VoiceInputHandler may turn audio into text. ok=false means no result.
type VoiceInputHandler interface {
	OnVoiceInput(ctx context.Context, audio []byte) (string, bool, error)
}

// VoiceOutputHandler may rewrite text before speech. ok=false means no result.
type VoiceOutputHandler interface {
	OnVoiceOutput(ctx context.Context, text string) (string, bool, error)
}

// DashboardReporter contributes metrics to the dashboard. A nil or empty map
// means no result.
type DashboardReporter interface {
	OnDashboardUpdate(ctx context.Context) (Metrics, error)
}

// Metrics is a dashboard contribution.
type Metrics map[string]any

// Source tags where a message came from.
type Source string

const (
	SourceUser    Source = "user"
	SourceSystem  Source = "system"
	SourceDiscord Source = "discord"
	SourceVoice   Source = "voice"
)

// ParseSource returns s as a Source, defaulting to SourceUser.
func ParseSource(s string) Source {
	if s == "" {
		return SourceUser
	}
	return Source(s)
}

// Base can be embedded to receive the Host.
//
//	type counter struct {
//		plugins.Base
//		n int
//	}
type Base struct {
	host *Host
}

// Attach implements HostAware.
func (b *Base) Attach(h *Host) {
	b.host = h
}

// Host returns the attached host, or nil before Attach.
func (b *Base) Host() *Host {
	return b.host
}
