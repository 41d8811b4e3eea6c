package views

import (
	"github.com/paveg/ocpanel/internal/aggregate"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/export"
	"github.com/paveg/ocpanel/internal/filter"
	"github.com/paveg/ocpanel/internal/rank"
	"github.com/paveg/ocpanel/internal/validation"
)

// DefaultSectorIndicator is the indicator the sector page examines
const DefaultSectorIndicator = "oc3"

// SectorIndicatorRequest selects the flagged firms of one year across sectors.
// A nil Sectors leaves the sector unconstrained. TopN must be positive.
type SectorIndicatorRequest struct {
	Sectors   *filter.Selection `json:"sectors,omitempty"`
	Year      any               `json:"year"`
	Indicator string            `json:"indicator,omitempty"`
	TopN      int               `json:"top_n"`
}

// Summary is the headline of the sector page
type Summary struct {
	Year    any `json:"year"`
	Sectors int `json:"sectors"`
	Tickers int `json:"tickers"`
}

// SectorIndicatorResult holds the flagged rows of one year, their count per
// sector, and the most and least over-confident firms.
type SectorIndicatorResult struct {
	Result
	Indicator string            `json:"indicator"`
	Summary   Summary           `json:"summary"`
	Counts    []aggregate.Group `json:"counts"`
	Ranking   Ranking           `json:"ranking"`
}

// SectorIndicator keeps the rows of the selected sectors in one year whose
// indicator is 1, counts them per sector (largest first) and ranks them by
// the schema's rank metric in both directions.
func SectorIndicator(ds *dataset.Dataset, schema Schema, req SectorIndicatorRequest) (*SectorIndicatorResult, error) {
	if req.Year == nil {
		return nil, ocerrors.NewInvalidParameterError("SectorIndicator", "a year is required")
	}
	indicator := req.Indicator
	if indicator == "" {
		indicator = DefaultSectorIndicator
	}

	opts := constrain(nil, req.Sectors, filter.WithSectors)
	spec := schema.spec(append(opts,
		filter.WithYears(filter.Values(req.Year)),
		filter.WithIndicator(indicator, filter.Values(1)),
		filter.WithMetric(schema.RankMetric),
	)...)
	rows, err := filter.Rows(ds, spec)
	if err != nil {
		return nil, err
	}
	defer rows.Release()

	display := concat([]string{schema.Year, schema.Sector, schema.Ticker, indicator}, schema.Metrics)
	if err := validation.ValidateColumns(rows, "SectorIndicator", display...); err != nil {
		return nil, err
	}

	counts, err := aggregate.Count(rows, []string{schema.Sector}, aggregate.BySize())
	if err != nil {
		return nil, err
	}

	selected := filter.All()
	if req.Sectors != nil {
		selected = *req.Sectors
	}
	sectors, err := selected.Resolve(ds, schema.Sector)
	if err != nil {
		return nil, err
	}
	tickers, err := rows.Distinct(schema.Ticker)
	if err != nil {
		return nil, err
	}

	ranked, err := ranking(rows, schema.RankMetric, req.TopN,
		schema.Year, schema.Sector, schema.Ticker, schema.RankMetric)
	if err != nil {
		return nil, err
	}

	shown, err := export.Rows(rows, display, export.WithIndex())
	if err != nil {
		return nil, err
	}
	defer shown.Release()

	download := shown.Drop(rank.PositionColumn)

	return &SectorIndicatorResult{
		Result: Result{
			View:       "sector-indicator",
			Empty:      rows.Len() == 0,
			Rows:       NewTable(shown),
			download:   download,
			entity:     "empresas",
			descriptor: indicator + "_filtradas",
			sheet:      SheetCompanies,
		},
		Indicator: indicator,
		Summary:   Summary{Year: req.Year, Sectors: len(sectors), Tickers: len(tickers)},
		Counts:    counts,
		Ranking:   ranked,
	}, nil
}
