package source

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// Factory builds a source. A nil logger means discard.
type Factory func(logger *slog.Logger, norm normalize.Normalizer) Source

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a source factory to the registry.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a source factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// NewSource creates the source for spec.Type.
func NewSource(spec Spec, logger *slog.Logger, norm normalize.Normalizer) (Source, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("source type not specified")
	}
	factory, ok := Get(strings.ToLower(spec.Type))
	if !ok {
		return nil, &UnknownSourceError{Type: spec.Type, Available: ListSources()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger, norm), nil
}

// ListSources returns all registered source names (sorted).
func ListSources() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a source type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownSourceError is returned when an unknown source type is requested.
type UnknownSourceError struct {
	Type      string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source type %q\nAvailable sources: %v\nHint: Check the tab's type in your pipeline file", e.Type, e.Available)
}

func init() {
	Register("csv", func(l *slog.Logger, n normalize.Normalizer) Source { return NewCSV(l, n) })
	Register("duckdb", func(l *slog.Logger, n normalize.Normalizer) Source { return NewDuckDB(l, n) })
	Register("sqlite", func(l *slog.Logger, n normalize.Normalizer) Source { return NewSQLite(l, n) })
	Register("postgres", func(l *slog.Logger, n normalize.Normalizer) Source { return NewPostgres(l, n) })
	Register("mysql", func(l *slog.Logger, n normalize.Normalizer) Source { return NewMySQL(l, n) })
	Register("parquet", func(l *slog.Logger, n normalize.Normalizer) Source { return NewParquet(l, n) })
}
