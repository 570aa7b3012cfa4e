package plugins

import (
	"context"

	"github.com/lumi-ai/lumi/pkg/events"
)

// subscribe wires e's optional hooks into the internal bus. Handlers skip
// entries that are not enabled at call time, so subscriptions live for the
// whole time e is in the table.
func (m *Manager) subscribe(e *entry) {
	add := func(kind events.Kind, h events.Handler) {
		id := m.bus.Subscribe(kind, h)
		e.subs = append(e.subs, subscription{kind: kind, id: id})
	}

	if h, ok := e.plugin.(MessageSender); ok {
		add(events.MessageSent, func(ctx context.Context, args ...any) (any, error) {
			message := argString(args, 0)
			m.invoke(ctx, e, HookOnMessageSent, func(ctx context.Context) error {
				return h.OnMessageSent(ctx, message)
			})
			return nil, nil
		})
	}

	if h, ok := e.plugin.(EmotionObserver); ok {
		add(events.EmotionChanged, func(ctx context.Context, args ...any) (any, error) {
			emotion := argString(args, 0)
			intensity, _ := arg[float64](args, 1)
			m.invoke(ctx, e, HookOnEmotionChanged, func(ctx context.Context) error {
				return h.OnEmotionChanged(ctx, emotion, intensity)
			})
			return nil, nil
		})
	}

	if h, ok := e.plugin.(MemoryObserver); ok {
		add(events.MemoryStored, func(ctx context.Context, args ...any) (any, error) {
			kind, content := argString(args, 0), argString(args, 1)
			m.invoke(ctx, e, HookOnMemoryStored, func(ctx context.Context) error {
				return h.OnMemoryStored(ctx, kind, content)
			})
			return nil, nil
		})
	}

	if h, ok := e.plugin.(VoiceInputHandler); ok {
		add(events.VoiceInput, func(ctx context.Context, args ...any) (any, error) {
			audio, _ := arg[[]byte](args, 0)
			return m.collectString(ctx, e, HookOnVoiceInput, func(ctx context.Context) (string, bool, error) {
				return h.OnVoiceInput(ctx, audio)
			}), nil
		})
	}

	if h, ok := e.plugin.(VoiceOutputHandler); ok {
		add(events.VoiceOutput, func(ctx context.Context, args ...any) (any, error) {
			text := argString(args, 0)
			return m.collectString(ctx, e, HookOnVoiceOutput, func(ctx context.Context) (string, bool, error) {
				return h.OnVoiceOutput(ctx, text)
			}), nil
		})
	}

	if h, ok := e.plugin.(DashboardReporter); ok {
		add(events.DashboardUpdate, func(ctx context.Context, args ...any) (any, error) {
			if !e.active() {
				return nil, nil
			}
			var metrics Metrics
			err := m.call(ctx, e, HookOnDashboardUpdate, func(ctx context.Context) error {
				var err error
				metrics, err = h.OnDashboardUpdate(ctx)
				return err
			})
			if err != nil || len(metrics) == 0 {
				return nil, nil
			}

			tagged := make(Metrics, len(metrics)+1)
			for k, v := range metrics {
				tagged[k] = v
			}
			tagged["plugin"] = e.name
			return tagged, nil
		})
	}
}

// invoke calls a broadcast hook if e is enabled. Errors are logged by call.
func (m *Manager) invoke(ctx context.Context, e *entry, hook string, fn func(context.Context) error) {
	if !e.active() {
		return
	}
	m.call(ctx, e, hook, fn)
}

// collectString calls a collect hook and returns its value, or nil when the
// hook is skipped, fails or has no result.
func (m *Manager) collectString(ctx context.Context, e *entry, hook string, fn func(context.Context) (string, bool, error)) any {
	if !e.active() {
		return nil
	}

	var (
		out string
		ok  bool
	)
	err := m.call(ctx, e, hook, func(ctx context.Context) error {
		var err error
		out, ok, err = fn(ctx)
		return err
	})
	if err != nil || !ok {
		return nil
	}
	return out
}

// DispatchMessageReceived runs the transform chain: each enabled extension
// sees the output of the previous one. The final message is returned.
func (m *Manager) DispatchMessageReceived(ctx context.Context, message string, source Source) string {
	m.metrics.RecordDispatch(events.MessageReceived.String())
	if source == "" {
		source = SourceUser
	}

	current := message
	for _, e := range m.snapshot() {
		h, ok := e.plugin.(MessageReceiver)
		if !ok || !e.active() {
			continue
		}

		var (
			out     string
			changed bool
		)
		err := m.call(ctx, e, HookOnMessageReceived, func(ctx context.Context) error {
			var err error
			out, changed, err = h.OnMessageReceived(ctx, current, source)
			return err
		})
		if err == nil && changed {
			current = out
		}
	}

	return current
}

// DispatchMessageSent notifies enabled extensions of an outgoing message.
func (m *Manager) DispatchMessageSent(ctx context.Context, message string) {
	m.metrics.RecordDispatch(events.MessageSent.String())
	m.bus.Emit(ctx, events.MessageSent, message)
}

// DispatchEmotionChanged notifies enabled extensions of an emotion change.
func (m *Manager) DispatchEmotionChanged(ctx context.Context, emotion string, intensity float64) {
	m.metrics.RecordDispatch(events.EmotionChanged.String())
	m.bus.Emit(ctx, events.EmotionChanged, emotion, intensity)
}

// DispatchMemoryStored notifies enabled extensions of a stored memory.
func (m *Manager) DispatchMemoryStored(ctx context.Context, kind, content string) {
	m.metrics.RecordDispatch(events.MemoryStored.String())
	m.bus.Emit(ctx, events.MemoryStored, kind, content)
}

// DispatchVoiceInput collects text results for audio in registration order.
func (m *Manager) DispatchVoiceInput(ctx context.Context, audio []byte) []string {
	m.metrics.RecordDispatch(events.VoiceInput.String())
	return collectedStrings(m.bus.Emit(ctx, events.VoiceInput, audio))
}

// DispatchVoiceOutput collects rewritten text in registration order. Callers
// that need a single value typically take Last.
func (m *Manager) DispatchVoiceOutput(ctx context.Context, text string) []string {
	m.metrics.RecordDispatch(events.VoiceOutput.String())
	return collectedStrings(m.bus.Emit(ctx, events.VoiceOutput, text))
}

// DispatchDashboardUpdate collects dashboard metrics. Each result is a copy
// tagged with "plugin": <name>; empty results are dropped.
func (m *Manager) DispatchDashboardUpdate(ctx context.Context) []Metrics {
	m.metrics.RecordDispatch(events.DashboardUpdate.String())

	results := m.bus.Emit(ctx, events.DashboardUpdate)
	out := make([]Metrics, 0, len(results))
	for _, r := range results {
		if metrics, ok := r.(Metrics); ok {
			out = append(out, metrics)
		}
	}
	return out
}

// Last returns the final element of results, the usual way a host picks one
// value from a collect dispatch.
func Last[T any](results []T) (T, bool) {
	var zero T
	if len(results) == 0 {
		return zero, false
	}
	return results[len(results)-1], true
}

func collectedStrings(results []any) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func arg[T any](args []any, i int) (T, bool) {
	var zero T
	if i >= len(args) {
		return zero, false
	}
	v, ok := args[i].(T)
	return v, ok
}

func argString(args []any, i int) string {
	s, _ := arg[string](args, i)
	return s
}
