package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mindburn-labs/reactorcore/examples/pingpong"
	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// exampleGraphs is the set of built-in graphs reactorctl run knows how to
// build, since pkg/builder is intentionally not a DSL: there is no
// generic "load a graph from a data file" path, so run dispatches by
// name to a Go-coded factory the way an embedder's own binary would.
var exampleGraphs = map[string]func(rounds int) (*reactor.Environment, error){
	"pingpong": func(rounds int) (*reactor.Environment, error) {
		env, _, err := pingpong.Build(rounds)
		return env, err
	},
}

func runRunCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		example    string
		rounds     int
	)
	cmd.StringVar(&configPath, "config", "", "path to a runtime config YAML file (REQUIRED)")
	cmd.StringVar(&example, "example", "pingpong", "built-in example graph to run")
	cmd.IntVar(&rounds, "rounds", 5, "parameter passed to the example graph factory")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if configPath == "" {
		fmt.Fprintln(stderr, "error: --config is required")
		return 2
	}

	factory, ok := exampleGraphs[example]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown example %q\n", example)
		return 2
	}

	cfg, err := reactor.LoadRuntimeConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: invalid runtime config: %v\n", err)
		return 1
	}

	env, err := factory(rounds)
	if err != nil {
		fmt.Fprintf(stderr, "error: build graph: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	opts := append(cfg.Options(), reactor.WithLogger(logger))
	sched, err := reactor.NewScheduler(env, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "error: construct scheduler: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "error: run failed: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "run complete: %s\n", example)
	return 0
}
