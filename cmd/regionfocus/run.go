package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/odvcencio/regionfocus/pkg/filewatch"
	"github.com/odvcencio/regionfocus/pkg/focus"
	"github.com/odvcencio/regionfocus/pkg/logging"
	"github.com/odvcencio/regionfocus/pkg/scenario"
	"github.com/odvcencio/regionfocus/pkg/telemetry"
)

// parseInterspersed parses flags that may follow positional arguments and
// returns the positionals.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, withExitCode(err, exitUsage)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRunCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	watch := fs.Bool("watch", false, "re-run scenarios when their files change")
	configPath := fs.String("config", "", "path to config file")
	quiet := fs.Bool("quiet", false, "print only failing scenarios")
	changes := fs.Bool("changes", false, "list the focus moves the engine made")
	files, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return withExitCode(fmt.Errorf("run needs at least one scenario file"), exitUsage)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	d, err := initDependenciesFn(cfg, depsOptions{})
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	defer d.Close(context.Background())

	r := &runner{deps: d, quiet: *quiet, changes: *changes}
	failed := r.runAll(ctx, files)
	if !*watch {
		return failed
	}
	return r.watch(ctx, files)
}

type runner struct {
	deps    *deps
	quiet   bool
	changes bool
}

// runAll replays every file and returns the first failure.
func (r *runner) runAll(ctx context.Context, files []string) error {
	var first error
	for _, file := range files {
		if err := r.runFile(ctx, file); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *runner) runFile(ctx context.Context, file string) error {
	sc, err := scenario.Load(file)
	if err != nil {
		return err
	}
	opts := r.deps.sessionOptions()
	var hub *telemetry.Hub
	if r.changes && !r.quiet {
		hub = telemetry.NewHub()
		defer hub.Close()
		opts = append(opts, scenario.WithManagerOptions(focus.WithObserver(hub)))
	}
	var moves <-chan focus.Change
	if hub != nil {
		var unsubscribe func()
		moves, unsubscribe = hub.Subscribe()
		defer unsubscribe()
	}

	trace, err := scenario.Run(ctx, sc, opts...)
	if trace != nil && (err != nil || !r.quiet) {
		fmt.Fprint(stdout, trace.String())
	}
	if hub != nil {
		printChanges(moves, hub.Dropped())
	}
	if err != nil {
		return err
	}
	if !r.quiet {
		fmt.Fprintf(stdout, "PASS %s (%d steps)\n", file, len(trace.Entries))
	}
	return nil
}

// printChanges drains the moves published during one run.
func printChanges(moves <-chan focus.Change, dropped uint64) {
	for {
		select {
		case c := <-moves:
			to := c.To
			if c.Cleared || to == "" {
				to = "(neutral)"
			}
			from := c.From
			if from == "" {
				from = "(neutral)"
			}
			fmt.Fprintf(stdout, "  move %-9s %s -> %s\n", c.Kind, from, to)
		default:
			if dropped > 0 {
				fmt.Fprintf(stdout, "  (%d moves not shown)\n", dropped)
			}
			return
		}
	}
}

// watch re-runs a file each time it settles after a change, until ctx is
// done. Failures are reported, not returned.
func (r *runner) watch(ctx context.Context, files []string) error {
	fw, err := filewatch.NewFileWatcher(filewatch.WithLogger(r.deps.log))
	if err != nil {
		return err
	}
	defer fw.Close()

	changed := make(chan string, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		if err := fw.Add(abs); err != nil {
			return err
		}
		fw.Subscribe(abs, func(c filewatch.FileChange) {
			if c.Type == filewatch.ChangeDeleted {
				return
			}
			select {
			case changed <- abs:
			default:
			}
		})
	}
	go func() { _ = fw.Run(ctx) }()

	fmt.Fprintln(stdout, "watching for changes, Ctrl-C to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case file := <-changed:
			_ = r.deps.log.Info(logging.CategoryWatch, "rerun", "", file, nil)
			fmt.Fprintf(stdout, "\n--- %s changed\n", file)
			if err := r.runFile(ctx, file); err != nil {
				fmt.Fprintf(stdout, "FAIL %v\n", err)
			}
		}
	}
}
