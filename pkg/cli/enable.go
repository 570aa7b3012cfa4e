package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumi-ai/lumi/pkg/registry"
)

func newEnableCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "enable",
		Description: "Enable a plugin in the registry",
		Usage:       "enable <name>",
		env:         env,
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		return runSetEnabled(ctx, cmd, args, true)
	}
	return cmd
}

func newDisableCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "disable",
		Description: "Disable a plugin in the registry",
		Usage:       "disable <name>",
		env:         env,
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		return runSetEnabled(ctx, cmd, args, false)
	}
	return cmd
}

// runSetEnabled edits the registry only. A running server picks the change
// up through its registry watcher or POST /api/v1/plugins/sync.
func runSetEnabled(ctx context.Context, cmd *Command, args []string, enable bool) error {
	flags := cmd.newFlagSet()
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("%s requires exactly one plugin name", cmd.Name)
	}
	name := flags.Arg(0)

	reg, closeStore, err := cmd.env.OpenRegistry(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var changed bool
	if enable {
		changed, err = reg.Enable(ctx, name)
	} else {
		changed, err = reg.Disable(ctx, name)
	}
	if errors.Is(err, registry.ErrUnknownPlugin) {
		return fmt.Errorf("plugin %s is not registered; start the runtime once to discover it", name)
	}
	if err != nil {
		return fmt.Errorf("failed to %s plugin %s: %w", cmd.Name, name, err)
	}

	state := "disabled"
	if enable {
		state = "enabled"
	}
	if changed {
		fmt.Fprintf(cmd.env.output(), "Plugin %s %s\n", name, state)
	} else {
		fmt.Fprintf(cmd.env.output(), "Plugin %s already %s\n", name, state)
	}
	return nil
}
