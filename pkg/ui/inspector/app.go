package inspector

import (
	"context"
	"fmt"

	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/logging"
	"github.com/odvcencio/regionfocus/pkg/scenario"
	"github.com/odvcencio/regionfocus/pkg/ui/backend"
	"github.com/odvcencio/regionfocus/pkg/ui/terminal"
)

// Loader builds a fresh session, typically by re-reading the scenario file.
type Loader func() (*scenario.Session, error)

// Config configures an App.
type Config struct {
	Backend backend.Backend
	Load    Loader
	Log     *logging.Logger
}

// App steps a scenario session in response to key presses.
type App struct {
	backend backend.Backend
	load    Loader
	log     *logging.Logger

	session *scenario.Session
	view    *View
}

type reloadRequest struct{}

// New validates cfg and returns an App. The session is loaded by Run.
func New(cfg Config) (*App, error) {
	if cfg.Backend == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "inspector needs a backend")
	}
	if cfg.Load == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "inspector needs a loader")
	}
	return &App{backend: cfg.Backend, load: cfg.Load, log: cfg.Log}, nil
}

// Session returns the session on screen, nil before Run.
func (a *App) Session() *scenario.Session {
	return a.session
}

// Reload asks a running App to reload the session. Safe from any goroutine.
func (a *App) Reload() error {
	return a.backend.PostEvent(terminal.InterruptEvent{Data: reloadRequest{}})
}

// Run draws the session and handles input until quit or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.backend.Init(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "initializing terminal")
	}
	defer a.backend.Fini()

	if err := a.restart(); err != nil {
		return err
	}
	a.render()

	done := make(chan struct{})
	defer close(done)
	events := make(chan terminal.Event)
	go a.pollEvents(events, done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			quit, err := a.handle(ctx, ev)
			if quit || err != nil {
				return err
			}
			a.render()
		}
	}
}

func (a *App) pollEvents(events chan<- terminal.Event, done <-chan struct{}) {
	for {
		ev := a.backend.PollEvent()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

// handle applies one event. It reports whether the App should quit.
func (a *App) handle(ctx context.Context, ev terminal.Event) (bool, error) {
	switch e := ev.(type) {
	case terminal.KeyEvent:
		switch {
		case e.IsRune('q'), e.Key == terminal.KeyEscape, e.Key == terminal.KeyCtrlC:
			return true, nil
		case e.IsRune('n'), e.IsRune(' '), e.Key == terminal.KeyEnter:
			a.step(ctx)
		case e.IsRune('r'):
			a.reload("restarted")
		}
	case terminal.ResizeEvent:
		a.backend.Clear()
	case terminal.InterruptEvent:
		if _, ok := e.Data.(reloadRequest); ok {
			a.reload("reloaded")
		}
	}
	return false, nil
}

func (a *App) step(ctx context.Context) {
	if a.session.Done() {
		a.view.SetStatus("scenario finished")
		return
	}
	entry, err := a.session.Next(ctx)
	if err != nil {
		a.view.SetStatus(fmt.Sprintf("step %d failed [%s]", entry.Index, errors.GetCode(err)))
	} else {
		a.view.SetStatus("")
	}
	_ = a.log.Debug(logging.CategoryScenario, "inspect_step", "", entry.Step.String(), map[string]any{
		"index":   entry.Index,
		"outcome": entry.Outcome,
		"active":  entry.Active,
	})
}

// reload swaps in a fresh session. On failure the current one stays.
func (a *App) reload(status string) {
	if err := a.restart(); err != nil {
		a.view.SetStatus("reload failed [" + string(errors.GetCode(err)) + "]")
		_ = a.log.Warn(logging.CategoryScenario, "inspect_reload_failed", "", err.Error(), nil)
		return
	}
	a.view.SetStatus(status)
}

func (a *App) restart() error {
	s, err := a.load()
	if err != nil {
		return err
	}
	a.session = s
	a.view = NewView(s)
	return nil
}

func (a *App) render() {
	a.view.Render(a.backend)
	a.backend.Show()
}
