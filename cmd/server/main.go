package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/tabletop/internal/config"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/scenario"
	"github.com/zeusync/tabletop/internal/core/state"
	"github.com/zeusync/tabletop/internal/injector"
)

var configPath = flag.String("config", "", "path to a YAML config file")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tabletop:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := injector.InitializeApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := seed(ctx, app); err != nil {
		return err
	}
	if err := app.HTTP.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	app.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.HTTP.Stop(shutdownCtx); err != nil {
		app.Logger.Warn("http shutdown", log.Error(err))
	}
	return nil
}

// seed creates the configured scenario session unless it already exists.
func seed(ctx context.Context, app *injector.App) error {
	sc := app.Config.Scenario
	var (
		s   *scenario.Scenario
		err error
	)
	switch {
	case sc.Path != "":
		s, err = scenario.LoadFile(sc.Path)
	case sc.Builtin != "":
		s, err = scenario.Builtin(sc.Builtin)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	err = s.Seed(ctx, app.Store, app.Locations, sc.SessionID)
	switch {
	case errors.Is(err, state.ErrSessionExists):
		app.Logger.Info("resuming session", log.Session(sc.SessionID))
		return nil
	case err != nil:
		return err
	}
	app.Logger.Info("seeded session", log.Session(sc.SessionID), log.String("scenario", s.Name))
	return nil
}
