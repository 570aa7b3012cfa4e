package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
)

// stateNotLoaded marks registry entries with no loaded extension.
const stateNotLoaded = "not loaded"

// PluginRow is one line of list output.
type PluginRow struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Runtime string `json:"runtime,omitempty"`
	Enabled bool   `json:"enabled"`
	State   string `json:"state"`
}

func newListCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "list",
		Description: "List plugins and their state",
		Usage:       "list [-json]",
		env:         env,
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		return runList(ctx, cmd, args)
	}
	return cmd
}

func runList(ctx context.Context, cmd *Command, args []string) error {
	flags := cmd.newFlagSet()
	asJSON := flags.Bool("json", false, "Print JSON instead of a table")
	if err := flags.Parse(args); err != nil {
		return err
	}

	rt, err := cmd.env.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Manager.Initialize(ctx); err != nil {
		return err
	}
	defer rt.Manager.Shutdown(context.WithoutCancel(ctx))

	rows := pluginRows(rt)
	out := cmd.env.output()

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tRUNTIME\tENABLED\tSTATE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", row.Name, row.Version, row.Runtime, row.Enabled, row.State)
	}
	return tw.Flush()
}

// pluginRows lists loaded extensions in load order, then registry entries
// that were not loaded.
func pluginRows(rt *Runtime) []PluginRow {
	infos := rt.Manager.PluginInfo()
	rows := make([]PluginRow, 0, len(infos))
	loaded := make(map[string]bool, len(infos))

	for _, info := range infos {
		loaded[info.Name] = true
		rows = append(rows, PluginRow{
			Name:    info.Name,
			Version: info.Version,
			Runtime: info.Runtime,
			Enabled: info.Enabled,
			State:   info.State.String(),
		})
	}

	for _, name := range rt.Registry.Names() {
		if loaded[name] {
			continue
		}
		rows = append(rows, PluginRow{
			Name:    name,
			Enabled: rt.Registry.IsEnabled(name),
			State:   stateNotLoaded,
		})
	}

	return rows
}
