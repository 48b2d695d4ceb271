// Package content resolves the content keys, chosen by the router, into response bodies.
package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"
)

var ErrNotFound = errors.New("content not found")

// Store must be safe for concurrent use, as it's shared by all the connections.
type Store interface {
	Lookup(key string) ([]byte, error)
}

//go:embed bundle
var bundle embed.FS

// FS reads the content from the file system on every lookup, so the changes are picked
// up without restart.
type FS struct {
	fsys fs.FS
	ext  string
}

func NewFS(fsys fs.FS, ext string) *FS {
	return &FS{
		fsys: fsys,
		ext:  ext,
	}
}

// Dir returns a store over the directory. The directory isn't checked for existence.
func Dir(path, ext string) *FS {
	return NewFS(os.DirFS(path), ext)
}

// Embedded returns a store over the bundle compiled into the binary.
func Embedded() *FS {
	sub, err := fs.Sub(bundle, "bundle")
	if err != nil {
		panic(fmt.Errorf("BUG: embedded bundle: %w", err))
	}

	return NewFS(sub, ".html")
}

func (f *FS) Lookup(key string) ([]byte, error) {
	// keys are flat names, never paths
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	data, err := fs.ReadFile(f.fsys, key+f.ext)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	default:
		return nil, err
	}
}

// Map is an in-memory store.
type Map struct {
	entries map[string][]byte
}

// NewMap copies the entries, so modifying the passed map afterward has no effect.
func NewMap(entries map[string][]byte) *Map {
	return &Map{entries: maps.Clone(entries)}
}

// FromStrings is a shorthand for NewMap.
func FromStrings(entries map[string]string) *Map {
	m := make(map[string][]byte, len(entries))
	for key, value := range entries {
		m[key] = []byte(value)
	}

	return &Map{entries: m}
}

func (m *Map) Lookup(key string) ([]byte, error) {
	data, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	return data, nil
}
