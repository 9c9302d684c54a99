// Command reactorctl runs, validates, and exports reactor-model programs
// built with pkg/builder, using the same thin entrypoint shape as this
// codebase's other CLI commands: a Run(args, stdout, stderr) int that
// dispatches to one flag.FlagSet per subcommand.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return runRunCmd(args[2:], stdout, stderr)
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "reactorctl - deterministic reactor-model runtime CLI")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  reactorctl run --config <runtime.yaml>")
	fmt.Fprintln(w, "  reactorctl validate --config <runtime.yaml>")
	fmt.Fprintln(w, "  reactorctl export --db <replay.sqlite> --action <key> --bucket <s3-bucket> --key <s3-key>")
}
