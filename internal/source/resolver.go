// Package source resolves connector templates into the M text that opens a
// source. Each source kind has a standard template (a self-contained let
// expression) and optionally an inline template (a bare expression that can
// be embedded in a partition). When no inline template exists, the inline
// text is lifted out of the standard template's returned binding.
package source

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapbi/internal/mcode"
	starctx "github.com/leapstack-labs/leapbi/internal/starlark"
	"github.com/leapstack-labs/leapbi/internal/template"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

//go:embed templates/*.m.tmpl
var defaultTemplates embed.FS

// Shape selects which form of connector text to produce.
type Shape string

// Template shapes.
const (
	ShapeStandard Shape = "standard"
	ShapeInline   Shape = "inline"
)

const (
	templateExt  = ".m.tmpl"
	inlineSuffix = "_inline"
)

// EmbeddedOrigin prefixes the origin of templates shipped with the binary.
const EmbeddedOrigin = "embedded:"

type catalogKey struct {
	kind  core.SourceKind
	shape Shape
}

type entry struct {
	tmpl   *template.Template
	origin string
}

// cacheKey covers every input a template sees, so two sources only share an
// entry when they would render the same text.
type cacheKey struct {
	source string // JSON encoding of the core.Source
	shape  Shape
}

// Resolver renders connector templates for sources. It is safe for concurrent
// use; results are memoized per source definition and shape.
type Resolver struct {
	catalog map[catalogKey]entry
	pool    *starctx.ThreadPool
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]string
}

// Option configures a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	overrideDir string
	logger      *slog.Logger
}

// WithOverrideDir replaces shipped templates with same-named files from dir.
// A missing directory is ignored.
func WithOverrideDir(dir string) Option {
	return func(c *resolverConfig) { c.overrideDir = dir }
}

// WithLogger sets the logger used to report overrides.
func WithLogger(l *slog.Logger) Option {
	return func(c *resolverConfig) { c.logger = l }
}

// NewResolver loads the shipped templates and any overrides.
func NewResolver(opts ...Option) (*Resolver, error) {
	var cfg resolverConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	r := &Resolver{
		catalog: make(map[catalogKey]entry),
		pool:    starctx.NewThreadPool(0),
		logger:  cfg.logger,
		cache:   make(map[cacheKey]string),
	}

	if err := r.loadFS(defaultTemplates, "templates", EmbeddedOrigin); err != nil {
		return nil, err
	}
	if cfg.overrideDir != "" {
		info, err := os.Stat(cfg.overrideDir)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.logger.Debug("template override directory not found", "dir", cfg.overrideDir)
		case err != nil:
			return nil, fmt.Errorf("template directory %s: %w", cfg.overrideDir, err)
		case !info.IsDir():
			return nil, fmt.Errorf("template path is not a directory: %s", cfg.overrideDir)
		default:
			if err := r.loadFS(os.DirFS(cfg.overrideDir), ".", cfg.overrideDir+string(filepath.Separator)); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// loadFS parses every *.m.tmpl file directly under dir. Later loads replace
// earlier entries with the same kind and shape.
func (r *Resolver) loadFS(fsys fs.FS, dir, originPrefix string) error {
	names, err := fs.Glob(fsys, pathJoin(dir, "*"+templateExt))
	if err != nil {
		return fmt.Errorf("scan templates: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		base := strings.TrimSuffix(pathBase(name), templateExt)
		shape := ShapeStandard
		if strings.HasSuffix(base, inlineSuffix) {
			shape = ShapeInline
			base = strings.TrimSuffix(base, inlineSuffix)
		}
		kind, err := core.ParseSourceKind(base)
		if err != nil || string(kind) != base {
			r.logger.Warn("ignoring template for unknown source kind", "file", originPrefix+pathBase(name))
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read template %s: %w", name, err)
		}
		origin := originPrefix + pathBase(name)
		tmpl, err := template.ParseString(strings.TrimPrefix(string(content), "\ufeff"), origin)
		if err != nil {
			return &TemplateError{Kind: kind, Shape: shape, Origin: origin, Err: err}
		}

		key := catalogKey{kind, shape}
		if prev, ok := r.catalog[key]; ok {
			r.logger.Debug("template overridden", "kind", kind, "shape", shape, "previous", prev.origin, "origin", origin)
		}
		r.catalog[key] = entry{tmpl: tmpl, origin: origin}
		r.logger.Debug("template loaded", "kind", kind, "shape", shape, "origin", origin, "expressions", len(tmpl.Expressions()))
	}
	return nil
}

// Resolve returns the connector text for src in the requested shape.
//
// Standard output has CRLF converted and blank lines removed, and every let
// binding is collapsed onto its own line. Inline output is collapsed onto one
// line. An inline request for a kind without an inline template returns the
// right-hand side of the standard output's returned binding, byte for byte.
func (r *Resolver) Resolve(src core.Source, shape Shape) (string, error) {
	fingerprint, ferr := json.Marshal(src)
	if ferr != nil {
		return r.resolve(src, shape)
	}
	key := cacheKey{string(fingerprint), shape}
	r.mu.Lock()
	if s, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	s, err := r.resolve(src, shape)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[key] = s
	r.mu.Unlock()
	return s, nil
}

func (r *Resolver) resolve(src core.Source, shape Shape) (string, error) {
	switch shape {
	case ShapeStandard:
		e, ok := r.catalog[catalogKey{src.Kind, ShapeStandard}]
		if !ok {
			return "", r.unsupported(src.Kind, shape)
		}
		out, err := r.render(e, src, shape)
		if err != nil {
			return "", err
		}
		return r.canonical(e, src.Kind, mcode.NormalizeLines(out))

	case ShapeInline:
		if e, ok := r.catalog[catalogKey{src.Kind, ShapeInline}]; ok {
			out, err := r.render(e, src, shape)
			if err != nil {
				return "", err
			}
			return r.collapse(e, src.Kind, shape, out)
		}

		e, ok := r.catalog[catalogKey{src.Kind, ShapeStandard}]
		if !ok {
			return "", r.unsupported(src.Kind, shape)
		}
		standard, err := r.Resolve(src, ShapeStandard)
		if err != nil {
			return "", err
		}
		rhs, err := mcode.TerminalExpression(standard)
		if err != nil {
			return "", &TemplateError{Kind: src.Kind, Shape: shape, Origin: e.origin, Err: fmt.Errorf("extract inline expression: %w", err)}
		}
		return rhs, nil
	}
	return "", fmt.Errorf("unknown template shape %q", shape)
}

func (r *Resolver) render(e entry, src core.Source, shape Shape) (string, error) {
	ctx, err := starctx.NewExecutionContext(starctx.SourceInfoFromCore(src), starctx.WithThreadPool(r.pool))
	if err != nil {
		return "", &TemplateError{Kind: src.Kind, Shape: shape, Origin: e.origin, Err: err}
	}
	out, err := template.Render(e.tmpl, ctx)
	if err != nil {
		return "", &TemplateError{Kind: src.Kind, Shape: shape, Origin: e.origin, Err: err}
	}
	return out, nil
}

// canonical puts each binding of a standard let expression on one line.
// Text that is not a let expression is returned unchanged.
func (r *Resolver) canonical(e entry, kind core.SourceKind, s string) (string, error) {
	let, err := mcode.ParseLet(s)
	if err != nil {
		return s, nil //nolint:nilerr // only let expressions are canonicalized
	}
	out, err := let.Canonical()
	if err != nil {
		return "", &TemplateError{Kind: kind, Shape: ShapeStandard, Origin: e.origin, Err: err}
	}
	return out, nil
}

func (r *Resolver) collapse(e entry, kind core.SourceKind, shape Shape, s string) (string, error) {
	out, err := mcode.Collapse(s)
	if err != nil {
		return "", &TemplateError{Kind: kind, Shape: shape, Origin: e.origin, Err: err}
	}
	return out, nil
}

func (r *Resolver) unsupported(kind core.SourceKind, shape Shape) error {
	kinds := r.Kinds()
	available := make([]string, len(kinds))
	for i, k := range kinds {
		available[i] = string(k)
	}
	return &UnsupportedKindError{Kind: kind, Shape: shape, Available: available}
}

// Kinds returns the source kinds that have at least a standard template.
func (r *Resolver) Kinds() []core.SourceKind {
	var kinds []core.SourceKind
	for key := range r.catalog {
		if key.shape == ShapeStandard {
			kinds = append(kinds, key.kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Shapes returns the shapes with a template of their own for kind.
func (r *Resolver) Shapes(kind core.SourceKind) []Shape {
	var shapes []Shape
	for _, s := range []Shape{ShapeStandard, ShapeInline} {
		if _, ok := r.catalog[catalogKey{kind, s}]; ok {
			shapes = append(shapes, s)
		}
	}
	return shapes
}

// Origin reports where the template for kind and shape was loaded from.
func (r *Resolver) Origin(kind core.SourceKind, shape Shape) (string, bool) {
	e, ok := r.catalog[catalogKey{kind, shape}]
	return e.origin, ok
}

// pathJoin and pathBase work on slash-separated fs.FS paths.
func pathJoin(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return dir + "/" + name
}

func pathBase(name string) string {
	return name[strings.LastIndexByte(name, '/')+1:]
}
