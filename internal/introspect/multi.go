package introspect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Multi routes discovery to a per-source introspector by source key.
type Multi struct {
	bySource map[string]Introspector
	timeouts map[string]time.Duration
}

// NewMulti opens one introspector per entry of conns, keyed by source key.
// Every connection is attempted; failures are joined.
func NewMulti(ctx context.Context, reg *Registry, sources map[string]core.Source, conns map[string]map[string]any, logger *slog.Logger) (*Multi, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Multi{
		bySource: make(map[string]Introspector, len(conns)),
		timeouts: make(map[string]time.Duration, len(conns)),
	}

	keys := make([]string, 0, len(conns))
	for k := range conns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		src, ok := sources[key]
		if !ok {
			errs = append(errs, errors.New("introspection connection for unknown source "+key))
			continue
		}
		cfg, err := ConfigFromMap(conns[key])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		in, err := reg.Open(ctx, src, cfg, logger.With("source", key))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Add(key, in, cfg.Timeout)
		logger.Debug("introspector ready", "source", key, "kind", src.Kind)
	}
	if len(errs) > 0 {
		_ = m.Close()
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// Add routes src key to in. A zero timeout means no limit.
func (m *Multi) Add(key string, in Introspector, timeout time.Duration) {
	if m.bySource == nil {
		m.bySource = make(map[string]Introspector)
		m.timeouts = make(map[string]time.Duration)
	}
	m.bySource[key] = in
	m.timeouts[key] = timeout
}

// DiscoverColumns implements Introspector.
func (m *Multi) DiscoverColumns(ctx context.Context, src core.Source, nav core.Navigation) ([]string, error) {
	in, ok := m.bySource[src.Key]
	if !ok {
		return nil, &UnsupportedError{Kind: src.Kind, SourceKey: src.Key}
	}
	if d := m.timeouts[src.Key]; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return in.DiscoverColumns(ctx, src, nav)
}

// Len returns the number of routed sources.
func (m *Multi) Len() int {
	return len(m.bySource)
}

// Close closes every introspector that holds a connection.
func (m *Multi) Close() error {
	var errs []error
	for _, in := range m.bySource {
		if c, ok := in.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
