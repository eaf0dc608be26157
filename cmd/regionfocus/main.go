package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Output streams, swapped by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(dispatchSubcommand(os.Args[1:]))
}

func dispatchSubcommand(args []string) int {
	if len(args) == 0 {
		printHelp()
		return exitUsage
	}
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return 0
	case "--help", "-h", "help":
		printHelp()
		return 0
	case "run":
		return runCommand(runRunCommand, args[1:])
	case "inspect":
		return runCommand(runInspectCommand, args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			fmt.Fprintf(stderr, "Error: unknown flag: %s\n", args[0])
		} else {
			fmt.Fprintf(stderr, "Error: unknown command: %s\n", args[0])
		}
		fmt.Fprintln(stderr, "Run 'regionfocus --help' for usage.")
		return exitUsage
	}
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return 0
}

func printVersion() {
	fmt.Fprintf(stdout, "regionfocus %s\n", version)
	if commit != "unknown" {
		fmt.Fprintf(stdout, "  Commit:     %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Fprintf(stdout, "  Built:      %s\n", buildDate)
	}
	fmt.Fprintf(stdout, "  Go version: %s\n", runtime.Version())
}

func printHelp() {
	fmt.Fprint(stdout, `regionfocus - replay and inspect focus region scenarios

Usage:
  regionfocus run <file>... [--watch] [--config path] [--quiet] [--changes]
  regionfocus inspect <file> [--watch] [--config path] [--dump] [--steps n]
  regionfocus version

Commands:
  run       Replay scenarios and print each step's outcome. Exits 1 on the
            first failed step. --watch re-runs a scenario when it changes,
            --changes lists every focus move after the steps.
  inspect   Step through a scenario in the terminal: n or space advances,
            r restarts, q quits. --dump prints one frame after --steps steps
            instead of opening the terminal.
  version   Print version information.

Configuration is read from ~/.regionfocus/config.yaml and
./.regionfocus/config.yaml, or from --config, then REGIONFOCUS_* variables.
`)
}
