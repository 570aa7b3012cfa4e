package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lumi-ai/lumi/pkg/events"
	"github.com/lumi-ai/lumi/pkg/plugins"
)

func newDispatchCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "dispatch",
		Description: "Send one event through the loaded plugins",
		Usage:       "dispatch [-event kind] [-source s] [-kind k] [-intensity f] <text>",
		env:         env,
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		return runDispatch(ctx, cmd, args)
	}
	return cmd
}

func runDispatch(ctx context.Context, cmd *Command, args []string) error {
	flags := cmd.newFlagSet()
	eventName := flags.String("event", events.MessageReceived.String(), "Event to dispatch")
	source := flags.String("source", string(plugins.SourceUser), "Message source for message_received")
	memoryKind := flags.String("kind", "conversation", "Memory kind for memory_stored")
	intensity := flags.Float64("intensity", 0.5, "Intensity for emotion_changed")
	if err := flags.Parse(args); err != nil {
		return err
	}

	kind, err := events.ParseKind(*eventName)
	if err != nil {
		return err
	}
	text := strings.Join(flags.Args(), " ")

	rt, err := cmd.env.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Manager.Initialize(ctx); err != nil {
		return err
	}
	defer rt.Manager.Shutdown(context.WithoutCancel(ctx))

	return dispatchEvent(ctx, cmd.env, rt.Manager, kind, text, plugins.ParseSource(*source), *memoryKind, *intensity)
}

// dispatchEvent runs one event and prints what the extensions returned.
func dispatchEvent(ctx context.Context, env *Env, m *plugins.Manager, kind events.Kind, text string, source plugins.Source, memoryKind string, intensity float64) error {
	out := env.output()

	switch kind {
	case events.MessageReceived:
		fmt.Fprintln(out, m.DispatchMessageReceived(ctx, text, source))
	case events.MessageSent:
		m.DispatchMessageSent(ctx, text)
	case events.EmotionChanged:
		m.DispatchEmotionChanged(ctx, text, intensity)
	case events.MemoryStored:
		m.DispatchMemoryStored(ctx, memoryKind, text)
	case events.VoiceInput:
		for _, line := range m.DispatchVoiceInput(ctx, []byte(text)) {
			fmt.Fprintln(out, line)
		}
	case events.VoiceOutput:
		for _, line := range m.DispatchVoiceOutput(ctx, text) {
			fmt.Fprintln(out, line)
		}
	case events.DashboardUpdate:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m.DispatchDashboardUpdate(ctx))
	default:
		return fmt.Errorf("event %s cannot be dispatched", kind)
	}

	return nil
}
