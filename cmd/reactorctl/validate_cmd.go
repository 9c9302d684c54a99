package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var configPath string
	cmd.StringVar(&configPath, "config", "", "path to a runtime config YAML file (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if configPath == "" {
		fmt.Fprintln(stderr, "error: --config is required")
		return 2
	}

	cfg, err := reactor.LoadRuntimeConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "invalid runtime config: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "%s: valid (fast_forward=%v keep_alive=%v timeout=%v)\n",
		configPath, cfg.FastForward, cfg.KeepAlive, cfg.Timeout)
	return 0
}
