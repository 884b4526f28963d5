// Package sink writes joined tables to files and terminals.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// Sink writes a whole table to w.
type Sink interface {
	Write(w io.Writer, t *core.Table) error
}

// Factory builds a sink.
type Factory func() Sink

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a sink factory under a format name.
func Register(format string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[format] = factory
}

// Get retrieves a sink factory by format name.
func Get(format string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[format]
	return f, ok
}

// ListFormats returns all registered format names (sorted).
func ListFormats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownSinkError is returned when an unknown output format is requested.
type UnknownSinkError struct {
	Format    string
	Available []string
}

func (e *UnknownSinkError) Error() string {
	return fmt.Sprintf("unknown output format %q\nAvailable formats: %v", e.Format, e.Available)
}

var extensions = map[string]string{
	".csv":     "csv",
	".json":    "json",
	".md":      "markdown",
	".txt":     "table",
	".parquet": "parquet",
	".arrow":   "arrow",
	".ipc":     "arrow",
	".feather": "arrow",
}

// FormatForPath infers a format from the file extension of path.
func FormatForPath(path string) (string, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Open returns the sink for format, or for the extension of path when format
// is empty.
func Open(path, format string) (Sink, error) {
	if format == "" {
		f, ok := FormatForPath(path)
		if !ok {
			return nil, fmt.Errorf("cannot infer output format from %q, set one explicitly", path)
		}
		format = f
	}
	format = strings.ToLower(format)
	if format == "md" {
		format = "markdown"
	}
	factory, ok := Get(format)
	if !ok {
		return nil, &UnknownSinkError{Format: format, Available: ListFormats()}
	}
	return factory(), nil
}

// WriteFile writes t to path, creating parent directories as needed.
func WriteFile(path, format string, t *core.Table) (err error) {
	s, err := Open(path, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // output path comes from the user's pipeline
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := s.Write(f, t); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func init() {
	Register("csv", func() Sink { return CSV{} })
	Register("json", func() Sink { return JSON{} })
	Register("markdown", func() Sink { return Markdown{} })
	Register("table", func() Sink { return Table{} })
	Register("parquet", func() Sink { return Parquet{} })
	Register("arrow", func() Sink { return Arrow{} })
}
