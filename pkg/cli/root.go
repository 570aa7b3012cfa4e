package cli

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	env *Env
}

// NewRootCommand creates the root command
func NewRootCommand(env *Env) *Command {
	root := &Command{
		Name:        "lumi-plugins",
		Description: "Lumi plugin runtime",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("lumi-plugins", flag.ContinueOnError),
		env:         env,
	}

	// Add subcommands
	root.Subcommands["list"] = newListCommand(env)
	root.Subcommands["enable"] = newEnableCommand(env)
	root.Subcommands["disable"] = newDisableCommand(env)
	root.Subcommands["dispatch"] = newDispatchCommand(env)
	root.Subcommands["serve"] = newServeCommand(env)

	return root
}

// Execute runs the subcommand named by args[0].
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.env.output()
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (c *Command) newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.SetOutput(c.env.output())
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lumi-plugins %s\n", c.Usage)
		fs.PrintDefaults()
	}
	return fs
}
