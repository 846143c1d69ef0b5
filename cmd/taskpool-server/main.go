// Command taskpool-server serves two static pages over raw TCP, one worker
// pool task per connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxorio/taskpool/pkg/config"
	"github.com/fluxorio/taskpool/pkg/core"
	"github.com/fluxorio/taskpool/pkg/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "taskpool-server: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("taskpool-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML or JSON config file")
	writeConfig := fs.String("write-config", "", "write the effective config to this path and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadApp(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *writeConfig != "" {
		return config.SaveYAML(*writeConfig, cfg)
	}

	logger := core.NewLogger(core.LoggerOptions{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Infof("serving pages from %s on %s", cfg.Pages.Source, cfg.Listener.Addr)
	return srv.Run(ctx)
}
