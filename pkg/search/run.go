package search

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fluxorio/taskpool/pkg/core/concurrency"
)

// Submitter is the part of a worker pool RunFiles needs.
type Submitter interface {
	SubmitContext(ctx context.Context, task concurrency.Task) error
}

// Run searches a single file and writes each matching line to w.
func Run(cfg Config, filename string, w io.Writer) error {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	for _, line := range cfg.Match(string(contents)) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

type fileResult struct {
	lines []string
	err   error
}

// RunFiles searches every file in cfg.Filenames with one pool task per file.
// Output keeps argument order; with more than one file each line is prefixed
// by "<filename>:". The first read error, if any, is returned after all
// submitted tasks have finished.
func RunFiles(ctx context.Context, pool Submitter, cfg Config, w io.Writer) error {
	results := make([]fileResult, len(cfg.Filenames))

	var wg sync.WaitGroup
	var submitErr error
	submitted := len(cfg.Filenames)
	for i, name := range cfg.Filenames {
		i, name := i, name
		wg.Add(1)
		task := concurrency.NewNamedTask("search:"+name, func(context.Context) error {
			defer wg.Done()
			contents, err := os.ReadFile(name)
			if err != nil {
				results[i].err = fmt.Errorf("read %s: %w", name, err)
				return results[i].err
			}
			results[i].lines = cfg.Match(string(contents))
			return nil
		})
		if err := pool.SubmitContext(ctx, task); err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit search of %s: %w", name, err)
			submitted = i
			break
		}
	}
	wg.Wait()

	prefix := len(cfg.Filenames) > 1
	var firstErr error
	for i, r := range results[:submitted] {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		for _, line := range r.lines {
			var err error
			if prefix {
				_, err = fmt.Fprintf(w, "%s:%s\n", cfg.Filenames[i], line)
			} else {
				_, err = fmt.Fprintln(w, line)
			}
			if err != nil {
				return err
			}
		}
	}
	if submitErr != nil {
		return submitErr
	}
	return firstErr
}
