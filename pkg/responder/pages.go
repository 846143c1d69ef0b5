package responder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Pages holds the two bodies the responder can serve.
type Pages struct {
	Index    []byte
	NotFound []byte
}

// PageSource loads page bodies. Load is called once per request so edits to
// the backing store show up without a restart.
type PageSource interface {
	Load(ctx context.Context) (Pages, error)
}

// StaticSource serves fixed bodies.
type StaticSource Pages

// Load implements PageSource.
func (s StaticSource) Load(context.Context) (Pages, error) {
	return Pages(s), nil
}

const (
	DefaultIndexFile    = "index.html"
	DefaultNotFoundFile = "404.html"
)

// FileSource reads pages from a directory.
type FileSource struct {
	Dir          string
	IndexFile    string
	NotFoundFile string
}

// NewFileSource returns a FileSource for dir using index.html and 404.html.
func NewFileSource(dir string) *FileSource {
	return &FileSource{
		Dir:          dir,
		IndexFile:    DefaultIndexFile,
		NotFoundFile: DefaultNotFoundFile,
	}
}

// Load implements PageSource.
func (s *FileSource) Load(context.Context) (Pages, error) {
	index, err := os.ReadFile(filepath.Join(s.Dir, s.IndexFile))
	if err != nil {
		return Pages{}, fmt.Errorf("read index page: %w", err)
	}
	notFound, err := os.ReadFile(filepath.Join(s.Dir, s.NotFoundFile))
	if err != nil {
		return Pages{}, fmt.Errorf("read not-found page: %w", err)
	}
	return Pages{Index: index, NotFound: notFound}, nil
}
