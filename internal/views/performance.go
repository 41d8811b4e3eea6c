package views

import (
	"github.com/paveg/ocpanel/internal/aggregate"
	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/filter"
)

// PerformanceRequest compares a performance metric between indicator groups.
// A nil selection places no constraint; a nil Values accepts every
// indicator value.
type PerformanceRequest struct {
	Indicator string            `json:"indicator"`
	Values    *filter.Selection `json:"values,omitempty"`
	Years     *filter.Selection `json:"years,omitempty"`
	Sectors   *filter.Selection `json:"sectors,omitempty"`
	Metric    string            `json:"metric"`
}

// PerformanceResult holds the filtered rows and the mean metric per
// (year, indicator value), one line per indicator group.
type PerformanceResult struct {
	Result
	Metric string          `json:"metric"`
	Keys   []string        `json:"keys"`
	Series []aggregate.Row `json:"series"`
}

// Performance filters by indicator values, years and sectors, then averages
// the metric per year and indicator value. The export holds every column
// of the filtered rows.
func Performance(ds *dataset.Dataset, schema Schema, req PerformanceRequest) (*PerformanceResult, error) {
	values := filter.All()
	if req.Values != nil {
		values = *req.Values
	}
	opts := []filter.Option{filter.WithIndicator(req.Indicator, values), filter.WithMetric(req.Metric)}
	opts = constrain(opts, req.Years, filter.WithYears)
	opts = constrain(opts, req.Sectors, filter.WithSectors)
	spec := schema.spec(opts...)
	rows, err := filter.Rows(ds, spec)
	if err != nil {
		return nil, err
	}

	keys := []string{schema.Year, req.Indicator}
	series, err := aggregate.Mean(rows, keys, req.Metric)
	if err != nil {
		rows.Release()
		return nil, err
	}

	return &PerformanceResult{
		Result: Result{
			View:       "performance",
			Empty:      rows.Len() == 0,
			Rows:       NewTable(rows),
			download:   rows,
			entity:     "dados",
			descriptor: "filtrados",
			sheet:      SheetFilteredData,
		},
		Metric: req.Metric,
		Keys:   keys,
		Series: series,
	}, nil
}
