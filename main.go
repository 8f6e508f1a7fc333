/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/umbra/engine"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/testbed"
)

func main() {
	var app engine.ApplicationConfig
	flag.StringVar(&app.ConfigPath, "config", "assets/config/engine.toml", "engine config file")
	flag.BoolVar(&app.Headless, "headless", false, "render offscreen without a window")
	flag.Uint64Var(&app.Frames, "frames", 0, "stop after this many frames (0 runs until quit)")
	flag.StringVar(&app.DumpPath, "dump", "", "write the last headless frame to this TIFF file")
	flag.BoolVar(&app.HotReload, "watch", true, "reload the config file when it changes")
	flag.Parse()

	if err := run(app); err != nil {
		core.LogFatal("%+v", err)
		os.Exit(1)
	}
}

func run(app engine.ApplicationConfig) error {
	tb := testbed.NewTestGame()

	e, err := engine.New(tb.Game, app)
	if err != nil {
		return err
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		return err
	}

	// capture sigterm and other system calls here
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
