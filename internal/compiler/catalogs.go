package compiler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapbi/internal/dax"
	"github.com/leapstack-labs/leapbi/internal/introspect"
	"github.com/leapstack-labs/leapbi/internal/partition"
	"github.com/leapstack-labs/leapbi/internal/source"
	"github.com/leapstack-labs/leapbi/internal/transform"
	"github.com/leapstack-labs/leapbi/internal/typemap"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Catalogs are the frozen inputs of a run, passed explicitly to Run.
type Catalogs struct {
	partition.Catalogs
	DAX *dax.Catalog
}

// CatalogConfig says where to load catalogs from.
type CatalogConfig struct {
	Sources map[string]core.Source
	// TemplatesDir overrides embedded source templates by file name.
	TemplatesDir  string
	TransformDirs []string
	DAXDirs       []string
	// Introspector is optional.
	Introspector introspect.Introspector
	Logger       *slog.Logger
}

// LoadCatalogs loads every catalog once for a run. Transform validation
// problems are returned together as a *partition.TransformValidationError.
func LoadCatalogs(cfg CatalogConfig) (*Catalogs, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := []source.Option{source.WithLogger(logger)}
	if cfg.TemplatesDir != "" {
		opts = append(opts, source.WithOverrideDir(cfg.TemplatesDir))
	}
	templates, err := source.NewResolver(opts...)
	if err != nil {
		return nil, fmt.Errorf("load source templates: %w", err)
	}

	transforms, err := transform.Load(cfg.TransformDirs, logger)
	if err != nil {
		var le *transform.LoadError
		if errors.As(err, &le) {
			return nil, &partition.TransformValidationError{Location: partition.Location{Step: "load"}, Err: err}
		}
		return nil, fmt.Errorf("load transforms: %w", err)
	}

	daxCatalog, err := dax.Load(cfg.DAXDirs, logger)
	if err != nil {
		return nil, fmt.Errorf("load dax templates: %w", err)
	}

	logger.Debug("catalogs loaded",
		"sources", len(cfg.Sources),
		"transforms", transforms.Len(),
		"dax_templates", len(daxCatalog.Names()))

	return &Catalogs{
		Catalogs: partition.Catalogs{
			Sources:      cfg.Sources,
			Templates:    templates,
			Transforms:   transforms,
			Types:        typemap.New(),
			Introspector: cfg.Introspector,
		},
		DAX: daxCatalog,
	}, nil
}
