package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lumi-ai/lumi/pkg/cli"
	"github.com/lumi-ai/lumi/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cli.Version = version
	env := cli.NewEnv(cfg)

	rootCmd := cli.NewRootCommand(env)
	if err := rootCmd.Execute(context.Background(), os.Args[1:]); err != nil {
		env.Log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
