package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/odvcencio/regionfocus/pkg/filewatch"
	"github.com/odvcencio/regionfocus/pkg/logging"
	"github.com/odvcencio/regionfocus/pkg/scenario"
	"github.com/odvcencio/regionfocus/pkg/ui/backend/sim"
	"github.com/odvcencio/regionfocus/pkg/ui/backend/tcell"
	"github.com/odvcencio/regionfocus/pkg/ui/inspector"
)

func runInspectCommand(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	watch := fs.Bool("watch", false, "reload the scenario when its file changes")
	configPath := fs.String("config", "", "path to config file")
	dump := fs.Bool("dump", false, "print one frame instead of opening the terminal")
	steps := fs.Int("steps", 0, "steps to run before the frame is printed (with --dump)")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return withExitCode(fmt.Errorf("inspect needs exactly one scenario file"), exitUsage)
	}
	file := positional[0]

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	d, err := initDependenciesFn(cfg, depsOptions{quietLog: !*dump})
	if err != nil {
		return err
	}
	defer d.Close(context.Background())

	load := func() (*scenario.Session, error) {
		sc, err := scenario.Load(file)
		if err != nil {
			return nil, err
		}
		return scenario.Start(sc, d.sessionOptions()...)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *dump {
		return dumpFrame(ctx, d, load, *steps)
	}
	return runInspector(ctx, d, load, file, *watch)
}

// dumpFrame renders the inspector headless at the configured size.
func dumpFrame(ctx context.Context, d *deps, load inspector.Loader, steps int) error {
	session, err := load()
	if err != nil {
		return err
	}
	for i := 0; i < steps && !session.Done(); i++ {
		// Failed steps show up in the frame.
		_, _ = session.Next(ctx)
	}

	screen := sim.New(d.cfg.Inspector.Width, d.cfg.Inspector.Height)
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	inspector.NewView(session).Render(screen)
	screen.Show()
	fmt.Fprintln(stdout, screen.Capture())
	return nil
}

func runInspector(ctx context.Context, d *deps, load inspector.Loader, file string, watch bool) error {
	screen, err := tcell.New()
	if err != nil {
		return err
	}
	app, err := inspector.New(inspector.Config{Backend: screen, Load: load, Log: d.log})
	if err != nil {
		return err
	}

	if watch {
		fw, err := filewatch.NewFileWatcher(filewatch.WithLogger(d.log))
		if err != nil {
			return err
		}
		defer fw.Close()
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
			if err := app.Reload(); err != nil {
				_ = d.log.Warn(logging.CategoryWatch, "reload_dropped", "", err.Error(), nil)
			}
		})
		go func() { _ = fw.Run(ctx) }()
	}

	if err := app.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
