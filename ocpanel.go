// Package ocpanel explores a firms × years panel of over-confidence
// indicators: filter rows by indicator, year and sector, average a metric per
// group, rank firms by a derived differential, and export the slice.
// This package is the public entry point; the pipeline stages live under internal/.
package ocpanel

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/paveg/ocpanel/internal/aggregate"
	"github.com/paveg/ocpanel/internal/config"
	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/derive"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/export"
	"github.com/paveg/ocpanel/internal/filter"
	ocio "github.com/paveg/ocpanel/internal/io"
	"github.com/paveg/ocpanel/internal/monitoring"
	"github.com/paveg/ocpanel/internal/rank"
	"github.com/paveg/ocpanel/internal/views"
)

// Snapshot is one loaded and derived Dataset. It is never mutated; a reload
// publishes a new Snapshot.
type Snapshot struct {
	Dataset  *dataset.Dataset
	LoadedAt time.Time
	Source   string
}

// Explorer serves pipeline queries over the current Snapshot. It is safe for
// concurrent use: every query reads one Snapshot from start to finish, and
// Reload swaps the whole reference atomically.
type Explorer struct {
	cfg     config.Config
	schema  views.Schema
	rules   []derive.Rule
	loader  *ocio.Loader
	logger  *slog.Logger
	metrics *monitoring.MetricsCollector

	current atomic.Pointer[Snapshot]
}

// Option configures an Explorer
type Option func(*Explorer)

// WithLogger sets the logger for load and query diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(e *Explorer) {
		e.logger = logger
	}
}

// WithMetrics records every pipeline operation in collector
func WithMetrics(collector *monitoring.MetricsCollector) Option {
	return func(e *Explorer) {
		e.metrics = collector
	}
}

// New creates an Explorer without data. Call Reload or Use before querying.
func New(cfg config.Config, opts ...Option) (*Explorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ocerrors.NewInvalidParameterError("Config", err.Error())
	}
	rules, err := derive.ParseAll(cfg.DerivedRules)
	if err != nil {
		return nil, err
	}

	e := &Explorer{
		cfg:    cfg,
		schema: SchemaFromConfig(cfg),
		rules:  rules,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = monitoring.NewMetricsCollector(cfg.MetricsEnabled, monitoring.WithLogLimit(cfg.MetricsLogLimit))
	}
	e.loader = ocio.NewLoader(ocio.WithLogger(e.logger), ocio.WithTimeout(cfg.LoadTimeout.Std()))
	return e, nil
}

// Open creates an Explorer and loads the configured source
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Explorer, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// SchemaFromConfig maps configured column names onto the view schema
func SchemaFromConfig(cfg config.Config) views.Schema {
	return views.Schema{
		Ticker:     cfg.TickerColumn,
		Year:       cfg.YearColumn,
		Sector:     cfg.SectorColumn,
		Indicators: cfg.IndicatorColumns,
		Governance: cfg.GovernanceColumns,
		Metrics:    cfg.MetricColumns,
		Asset:      cfg.AssetColumn,
		Residual:   cfg.ResidualColumn,
		RankMetric: cfg.RankMetric,
	}
}

// Reload reads the configured source, applies the derived rules and
// publishes the result. On failure the previous Snapshot stays current.
func (e *Explorer) Reload(ctx context.Context) error {
	src := ocio.Source{Path: e.cfg.DataPath, Sheet: e.cfg.Sheet}

	var raw *dataset.Dataset
	err := e.metrics.RecordOperation("load", 0, func() error {
		var err error
		raw, err = e.loader.Load(ctx, src)
		return err
	})
	if err != nil {
		e.logger.Warn("reload failed", slog.String("path", src.Path), slog.String("error", err.Error()))
		return err
	}
	defer raw.Release()

	return e.publish(raw, src.Path)
}

// Use derives and publishes ds in place of the configured source. The
// caller keeps ownership of ds.
func (e *Explorer) Use(ds *dataset.Dataset) error {
	return e.publish(ds, "memory")
}

func (e *Explorer) publish(raw *dataset.Dataset, source string) error {
	var derived *dataset.Dataset
	err := e.metrics.RecordOperation("derive", raw.Len(), func() error {
		var err error
		derived, err = derive.Apply(raw, e.rules...)
		return err
	})
	if err != nil {
		return err
	}

	// readers may still hold the previous Snapshot; its memory is reclaimed by the GC
	e.current.Store(&Snapshot{Dataset: derived, LoadedAt: time.Now(), Source: source})
	e.logger.Info("snapshot published",
		slog.String("source", source),
		slog.Int("rows", derived.Len()),
		slog.Int("rules", len(e.rules)))
	return nil
}

// Snapshot returns the current Snapshot
func (e *Explorer) Snapshot() (*Snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, ocerrors.NewSourceNotFoundError("Snapshot", e.cfg.DataPath, nil)
	}
	return snap, nil
}

// Config returns the configuration the Explorer was built with
func (e *Explorer) Config() config.Config {
	return e.cfg
}

// Schema returns the column names the views read
func (e *Explorer) Schema() views.Schema {
	return e.schema
}

// Metrics returns the operation metrics collector
func (e *Explorer) Metrics() *monitoring.MetricsCollector {
	return e.metrics
}

// Spec builds a filter specification bound to the configured year and sector columns
func (e *Explorer) Spec(opts ...filter.Option) filter.Spec {
	base := []filter.Option{filter.WithYearColumn(e.cfg.YearColumn), filter.WithSectorColumn(e.cfg.SectorColumn)}
	return filter.NewSpec(append(base, opts...)...)
}

// Filter returns the rows of the current Snapshot accepted by spec
func (e *Explorer) Filter(spec filter.Spec) (*dataset.Dataset, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	return e.filter(snap.Dataset, spec)
}

func (e *Explorer) filter(ds *dataset.Dataset, spec filter.Spec) (*dataset.Dataset, error) {
	var rows *dataset.Dataset
	err := e.metrics.RecordOperation("compose", ds.Len(), func() error {
		var err error
		rows, err = filter.Rows(ds, spec)
		return err
	})
	return rows, err
}

// Aggregate averages the filter's metric over the filtered rows grouped by keys
func (e *Explorer) Aggregate(spec filter.Spec, keys []string, opts ...aggregate.Option) ([]aggregate.Row, error) {
	if spec.Metric() == "" {
		return nil, ocerrors.NewInvalidParameterError("Aggregate", "a metric is required")
	}
	rows, err := e.Filter(spec)
	if err != nil {
		return nil, err
	}
	defer rows.Release()

	var result []aggregate.Row
	err = e.metrics.RecordOperation("aggregate", rows.Len(), func() error {
		var err error
		result, err = aggregate.Mean(rows, keys, spec.Metric(), opts...)
		return err
	})
	return result, err
}

// Ranked is one ranked list: the entries and the matching rows, led by "#"
type Ranked struct {
	Entries []rank.Entry
	Table   *dataset.Dataset
}

// Release releases the ranked rows
func (r Ranked) Release() {
	if r.Table != nil {
		r.Table.Release()
	}
}

// Rank ranks the filtered rows by the filter's metric (the configured rank
// metric when unset) and materialises the given columns of the top rows.
// topN must be positive.
func (e *Explorer) Rank(spec filter.Spec, dir rank.Direction, topN int, columns ...string) (Ranked, error) {
	rows, err := e.Filter(spec)
	if err != nil {
		return Ranked{}, err
	}
	defer rows.Release()

	var ranked Ranked
	err = e.metrics.RecordOperation("rank", rows.Len(), func() error {
		var err error
		ranked, err = rankRows(rows, e.rankMetric(spec), dir, topN, columns)
		return err
	})
	return ranked, err
}

// RankPair ranks the filtered rows in both directions. Both lists come from
// the same Snapshot and the same filtered rows.
func (e *Explorer) RankPair(spec filter.Spec, topN int, columns ...string) (top, bottom Ranked, err error) {
	rows, err := e.Filter(spec)
	if err != nil {
		return Ranked{}, Ranked{}, err
	}
	defer rows.Release()

	metric := e.rankMetric(spec)
	err = e.metrics.RecordOperation("rank", rows.Len(), func() error {
		var err error
		if top, err = rankRows(rows, metric, rank.Descending, topN, columns); err != nil {
			return err
		}
		if bottom, err = rankRows(rows, metric, rank.Ascending, topN, columns); err != nil {
			top.Release()
			return err
		}
		return nil
	})
	if err != nil {
		return Ranked{}, Ranked{}, err
	}
	return top, bottom, nil
}

func (e *Explorer) rankMetric(spec filter.Spec) string {
	if metric := spec.Metric(); metric != "" {
		return metric
	}
	return e.cfg.RankMetric
}

func rankRows(rows *dataset.Dataset, metric string, dir rank.Direction, topN int, columns []string) (Ranked, error) {
	entries, err := rank.Rank(rows, metric, dir, topN)
	if err != nil {
		return Ranked{}, err
	}
	table, err := rank.Table(rows, entries, columns...)
	if err != nil {
		return Ranked{}, err
	}
	return Ranked{Entries: entries, Table: table}, nil
}

// ExportOptions names the exported columns (all when empty), the file name
// parts, the sheet label and the file format (a workbook when empty)
type ExportOptions struct {
	Columns    []string
	Entity     string
	Descriptor string
	Sheet      string
	Format     ocio.Format
}

// Export serialises the filtered rows as a file named after the entity and
// descriptor.
func (e *Explorer) Export(spec filter.Spec, opts ExportOptions) (export.Blob, error) {
	rows, err := e.Filter(spec)
	if err != nil {
		return export.Blob{}, err
	}
	defer rows.Release()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = ocio.DefaultSheet
	}

	var blob export.Blob
	err = e.metrics.RecordOperation("export", rows.Len(), func() error {
		view, err := export.Rows(rows, opts.Columns)
		if err != nil {
			return err
		}
		defer view.Release()

		blob, err = export.File(view, opts.Format, opts.Entity, opts.Descriptor, sheet)
		return err
	})
	return blob, err
}
