package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Factory opens an introspector for one source.
type Factory func(ctx context.Context, cfg Config, logger *slog.Logger) (Introspector, error)

// Registry maps source kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[core.SourceKind]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[core.SourceKind]Factory)}
}

// DefaultRegistry returns a registry serving postgresql and sqlserver sources.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(core.SourcePostgreSQL, SQLFactory(PostgresDialect, postgresDSN))
	r.Register(core.SourceSQLServer, SQLFactory(SQLServerDialect, sqlserverURL))
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind core.SourceKind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds returns the registered kinds (sorted).
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}

// Open creates an introspector for src. The source's database is used when
// cfg does not name one.
func (r *Registry) Open(ctx context.Context, src core.Source, cfg Config, logger *slog.Logger) (Introspector, error) {
	r.mu.RLock()
	f, ok := r.factories[src.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedError{Kind: src.Kind, Available: r.Kinds()}
	}
	return f(ctx, cfg.expand().withDatabase(src.Database), logger)
}

// SQLFactory returns a factory that opens a database/sql connection with
// dsn and pings it.
func SQLFactory(d Dialect, dsn func(Config) string) Factory {
	return func(ctx context.Context, cfg Config, logger *slog.Logger) (Introspector, error) {
		db, err := sql.Open(d.DriverName, dsn(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s connection: %w", d.Name, err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping %s: %w", d.Name, err)
		}
		in := NewSQLIntrospector(db, d, logger)
		in.Database = cfg.Database
		return in, nil
	}
}
