// Command textsearch prints the lines of each file that contain a query.
//
//	textsearch QUERY FILE...
//
// Set CASE_INSENSITIVE to ignore case. Files are searched in parallel on a
// worker pool; output keeps argument order.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/fluxorio/taskpool/pkg/core"
	"github.com/fluxorio/taskpool/pkg/core/concurrency"
	"github.com/fluxorio/taskpool/pkg/search"
)

func main() {
	cfg, err := search.ParseArgs(os.Args, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Problem parsing arguments: %v\n", err)
		os.Exit(1)
	}

	logger := core.NewNopLogger()
	if level := os.Getenv("TEXTSEARCH_LOG_LEVEL"); level != "" {
		logger = core.NewLogger(core.LoggerOptions{Level: level})
	}

	workers := runtime.NumCPU()
	if len(cfg.Filenames) < workers {
		workers = len(cfg.Filenames)
	}
	pool, err := concurrency.NewWorkerPool(context.Background(), concurrency.WorkerPoolConfig{
		Name:    "textsearch",
		Workers: workers,
	}, concurrency.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}

	runErr := search.RunFiles(context.Background(), pool, cfg, os.Stdout)
	_ = pool.Close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", runErr)
		os.Exit(1)
	}
}
