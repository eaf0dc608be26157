package main

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/odvcencio/regionfocus/pkg/bus"
	"github.com/odvcencio/regionfocus/pkg/config"
	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/focus"
	"github.com/odvcencio/regionfocus/pkg/logging"
	"github.com/odvcencio/regionfocus/pkg/scenario"
	"github.com/odvcencio/regionfocus/pkg/telemetry"
)

const tracerName = "github.com/odvcencio/regionfocus"

// deps holds what a command wires into every focus manager it builds.
type deps struct {
	cfg       *config.Config
	log       *logging.Logger
	metrics   *telemetry.Metrics
	tracing   *telemetry.TracerProvider
	bus       bus.MessageBus
	publisher *bus.FocusPublisher

	metricsAddr string
	closers     []func(context.Context) error
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// depsOptions tweaks initDeps for a command.
type depsOptions struct {
	// quietLog discards log output unless a log path is configured, for
	// commands that own the terminal.
	quietLog bool
}

// initDependenciesFn allows tests to stub dependency initialization.
var initDependenciesFn = initDeps

func initDeps(cfg *config.Config, opts depsOptions) (_ *deps, err error) {
	d := &deps{cfg: cfg}
	defer func() {
		if err != nil {
			_ = d.Close(context.Background())
		}
	}()

	if err := d.initLogger(opts); err != nil {
		return nil, err
	}
	if err := d.initMetrics(); err != nil {
		return nil, err
	}
	if err := d.initTracing(); err != nil {
		return nil, err
	}
	if err := d.initBus(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *deps) initLogger(opts depsOptions) error {
	level, err := logging.ParseLevel(d.cfg.Log.Level)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid log level")
	}
	switch {
	case d.cfg.Log.Path != "":
		l, err := logging.Open(d.cfg.Log.Path)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigLoad, "opening log file").
				WithContext("path", d.cfg.Log.Path)
		}
		d.log = l
		d.closers = append(d.closers, func(context.Context) error { return l.Close() })
	case opts.quietLog:
		d.log = logging.Nop()
	default:
		d.log = logging.New(stderr)
	}
	d.log.SetMinLevel(level)
	return nil
}

func (d *deps) initMetrics() error {
	if !d.cfg.Metrics.Enabled {
		return nil
	}
	d.metrics = telemetry.NewMetrics(d.cfg.Metrics.Namespace)
	if d.cfg.Metrics.Listen == "" {
		return nil
	}

	ln, err := net.Listen("tcp", d.cfg.Metrics.Listen)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "listening for metrics").
			WithContext("addr", d.cfg.Metrics.Listen)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			_ = d.log.Error(logging.CategoryConfig, "metrics_server_failed", "", err.Error(), nil)
		}
	}()
	d.metricsAddr = ln.Addr().String()
	d.closers = append(d.closers, srv.Shutdown)
	_ = d.log.Info(logging.CategoryConfig, "metrics_listening", "", "serving /metrics", map[string]any{
		"addr": d.metricsAddr,
	})
	return nil
}

func (d *deps) initTracing() error {
	if !d.cfg.Tracing.Enabled {
		return nil
	}
	var w io.Writer = os.Stdout
	if d.cfg.Tracing.Path != "" {
		f, err := os.OpenFile(d.cfg.Tracing.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigLoad, "opening trace file").
				WithContext("path", d.cfg.Tracing.Path)
		}
		w = f
		d.closers = append(d.closers, func(context.Context) error { return f.Close() })
	}
	tp, err := telemetry.NewTracerProvider(telemetry.TracingOptions{
		ServiceName: "regionfocus",
		Version:     version,
		Writer:      w,
		Pretty:      d.cfg.Tracing.Pretty,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "starting tracing")
	}
	d.tracing = tp
	d.closers = append(d.closers, tp.Shutdown)
	return nil
}

func (d *deps) initBus() error {
	switch d.cfg.BusDriver() {
	case config.BusDriverMemory:
		d.bus = bus.NewMemoryBus()
	case config.BusDriverNATS:
		b, err := bus.NewNATSBus(bus.Config{
			URL:     d.cfg.Bus.URL,
			Name:    d.cfg.Bus.Name,
			Timeout: d.cfg.Bus.ConnectTimeout,
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "connecting to NATS").
				WithContext("url", d.cfg.Bus.URL)
		}
		d.bus = b
	default:
		return nil
	}
	d.closers = append(d.closers, func(context.Context) error { return d.bus.Close() })
	d.publisher = bus.NewFocusPublisher(d.bus, d.cfg.Bus.Subject, d.log)
	return nil
}

// sessionOptions wires the logger, metrics, tracer and publisher into a
// scenario session's manager.
func (d *deps) sessionOptions() []scenario.Option {
	var managerOpts []focus.Option
	if d.metrics != nil {
		managerOpts = append(managerOpts, focus.WithRecorder(d.metrics))
	}
	if d.tracing != nil {
		managerOpts = append(managerOpts, focus.WithTracer(d.tracing.Tracer(tracerName)))
	}
	if d.publisher != nil {
		managerOpts = append(managerOpts, focus.WithObserver(d.publisher))
	}
	return []scenario.Option{
		scenario.WithLogger(d.log),
		scenario.WithManagerOptions(managerOpts...),
	}
}

// Close releases everything in reverse order of creation.
func (d *deps) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return stderrors.Join(errs...)
}
