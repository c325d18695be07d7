// Package storage defines the output sinks busser writes converted rows to
// and the registry that selects one by kind.
//
// Sinks live in subpackages (storage/bcp, storage/mssql) and register
// themselves from init, so a command that wants a sink blank-imports it:
//
//	import _ "github.com/bowmanjd/busser/internal/storage/bcp"
package storage

import (
	"fmt"
	"sync"
)

// TableSpec is the SQL Server table the output is meant for.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

// ColumnSpec is one column of a TableSpec. Name is already a cleaned
// identifier; Type is rendered SQL such as "NUMERIC(8, 5)".
type ColumnSpec struct {
	Name string
	Type string
}

// Config is what a sink factory gets.
type Config struct {
	// Kind selects the registered sink ("bcp", "json").
	Kind string
	// Path is the output file. With paging, each page goes to PagePath(Path, n).
	Path string
	// Table names the target table and its columns, in field order.
	Table TableSpec
	// PageSize is the number of rows per page. Zero disables paging.
	PageSize int
	// FieldSeparator and RowSeparator are used by delimited sinks.
	FieldSeparator []byte
	RowSeparator   []byte
}

// Sink receives data rows in order.
type Sink interface {
	// WriteRow writes one record. fields is only valid for the duration of
	// the call.
	WriteRow(fields [][]byte) error

	// Close finishes the current page and releases the open file. It must
	// be called exactly once, also after a WriteRow error.
	Close() error

	// Files lists the files written so far, in page order.
	Files() []string
}

// Factory builds a Sink from cfg.
type Factory func(cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a sink available under kind.
//
// Panics:
//   - If kind is empty or f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New builds the sink registered for cfg.Kind.
func New(cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing sink kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported output kind=%s", cfg.Kind)
	}
	return f(cfg)
}

// Kinds returns the registered kinds, unsorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
