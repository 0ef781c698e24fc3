package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnknownScheme is returned for storage references no loader handles.
var ErrUnknownScheme = errors.New("unknown storage scheme")

// Loader fetches the raw bytes behind a document's storage reference.
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, ref string) ([]byte, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

// Mux dispatches storage references to a Loader by URI scheme.
type Mux struct {
	loaders map[string]Loader
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{loaders: make(map[string]Loader)}
}

// Handle registers l for references starting with scheme + "://".
func (m *Mux) Handle(scheme string, l Loader) {
	m.loaders[scheme] = l
}

// Load resolves ref with the loader registered for its scheme.
func (m *Mux) Load(ctx context.Context, ref string) ([]byte, error) {
	scheme, _, ok := strings.Cut(ref, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, ref)
	}
	l, ok := m.loaders[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return l.Load(ctx, ref)
}

// FileLoader reads file:// references relative to a content root. References
// cannot escape the root.
type FileLoader struct {
	root    string
	maxSize int64
}

// NewFileLoader creates a loader rooted at dir. maxSize <= 0 means no limit.
func NewFileLoader(dir string, maxSize int64) *FileLoader {
	return &FileLoader{root: dir, maxSize: maxSize}
}

// Load reads the file named by ref.
func (f *FileLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, ok := strings.CutPrefix(ref, "file://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, ref)
	}

	root, err := os.OpenRoot(f.root)
	if err != nil {
		return nil, fmt.Errorf("open content root: %w", err)
	}
	defer root.Close()

	file, err := root.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	var r io.Reader = file
	if f.maxSize > 0 {
		r = io.LimitReader(file, f.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if f.maxSize > 0 && int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", name, f.maxSize)
	}
	return data, nil
}

// Put writes data under the content root and returns its file:// reference.
func (f *FileLoader) Put(name string, data []byte) (string, error) {
	if err := os.MkdirAll(f.root, 0o700); err != nil {
		return "", fmt.Errorf("create content root: %w", err)
	}
	root, err := os.OpenRoot(f.root)
	if err != nil {
		return "", fmt.Errorf("open content root: %w", err)
	}
	defer root.Close()

	file, err := root.Create(name)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return "file://" + name, nil
}
