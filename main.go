package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/FynnleyNeko/DroolonStreamer/cmd"
	"github.com/FynnleyNeko/DroolonStreamer/internal/config"
	"github.com/FynnleyNeko/DroolonStreamer/internal/logging"
	"github.com/FynnleyNeko/DroolonStreamer/internal/version"
)

func main() {
	var cli humacli.CLI
	var settings *config.Settings

	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		flagOpts := *opts

		// Load configuration: CLI flags > environment > TOML file
		if err := config.LoadConfig(opts, cli.Root()); err != nil {
			slog.Error("Failed to load config", "error", err)
			os.Exit(2)
		}

		var err error
		settings, err = config.Validate(opts)
		if err != nil {
			var cfgErr *config.ConfigurationError
			if errors.As(err, &cfgErr) {
				for _, p := range cfgErr.Problems {
					fmt.Fprintln(os.Stderr, "config:", p)
				}
			}
			slog.Error("Invalid configuration", "error", err)
			os.Exit(2)
		}

		logging.Initialize(settings.Logging)
		logger := logging.GetLogger("main")

		hooks.OnStart(func() {
			reload := func() (*config.Settings, error) {
				o := flagOpts
				if err := config.LoadConfig(&o, cli.Root()); err != nil {
					return nil, err
				}
				return config.Validate(&o)
			}

			a, err := newApp(settings, reload)
			if err != nil {
				logger.Error("Failed to initialize", "error", err)
				os.Exit(1)
			}
			ln, err := a.start()
			if err != nil {
				logger.Error("Failed to start HTTP server", "error", err)
				os.Exit(1)
			}
			running <- a
			if err := a.serve(ln); err != nil {
				logger.Error("HTTP server failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			select {
			case a := <-running:
				a.stop()
			default:
			}
		})
	})

	root := cli.Root()
	root.Use = version.Name
	root.Short = "Relay two captured windows as MJPEG streams"
	root.Version = version.String()

	root.AddCommand(cmd.CreateProbeCmd(func() *config.Settings { return settings }))
	root.AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}

// running hands the started app to the stop hook.
var running = make(chan *app, 1)
