// Package events provides the typed publish/subscribe bus used by the plugin
// manager to route host events to extensions.
//
// # Kinds
//
// The kind set is closed: message_received, message_sent, emotion_changed,
// memory_stored, voice_input, voice_output, dashboard_update, plugin_loaded
// and plugin_unloaded.
//
// # Usage
//
//	bus := events.NewBus(logger)
//	id := bus.Subscribe(events.VoiceOutput, func(ctx context.Context, args ...any) (any, error) {
//		return strings.ToUpper(args[0].(string)), nil
//	})
//	results := bus.Emit(ctx, events.VoiceOutput, "hello")
//	bus.Unsubscribe(events.VoiceOutput, id)
//
// Emit never returns an error: handler failures are logged and the next
// handler runs.
package events
