// Package aggregate computes grouped means and group sizes over a filtered panel.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/montanaflynn/stats"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/validation"
)

// MaxKeys is the largest number of group keys Mean and Count accept
const MaxKeys = 2

// Row is one group of a Mean result. Count is the number of non-missing
// metric observations; Valid is false when there were none.
type Row struct {
	Keys  []any   `json:"keys"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
	Valid bool    `json:"valid"`
}

// Group is one group of a Count result
type Group struct {
	Keys []any `json:"keys"`
	Size int   `json:"size"`
}

type options struct {
	descending bool
	bySize     bool
}

// Option configures result ordering
type Option func(*options)

// Descending orders groups by the primary key in descending order.
// Secondary keys stay ascending.
func Descending() Option {
	return func(o *options) {
		o.descending = true
	}
}

// BySize orders Count results by group size, largest first, ties by key
func BySize() Option {
	return func(o *options) {
		o.bySize = true
	}
}

// Mean averages metric within each group of keys. Missing metric values are
// excluded from both the mean and the count. Rows whose key is missing are
// not grouped. An empty Dataset yields an empty result.
func Mean(ds *dataset.Dataset, keys []string, metric string, opts ...Option) ([]Row, error) {
	if err := validate(ds, "Aggregate", keys, metric); err != nil {
		return nil, err
	}
	if err := requireNumeric(ds, metric); err != nil {
		return nil, err
	}

	cfg := resolve(opts)
	col, _ := ds.Column(metric)

	groups := partition(ds, keys)
	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		samples := make([]float64, 0, len(g.rows))
		for _, i := range g.rows {
			if v, ok := dataset.Float(col.Interface(i)); ok {
				samples = append(samples, v)
			}
		}

		row := Row{Keys: g.keys, Count: len(samples)}
		if len(samples) > 0 {
			mean, err := stats.Mean(samples)
			if err != nil {
				return nil, ocerrors.NewInternalError("Aggregate", err)
			}
			row.Mean, row.Valid = mean, true
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return compareKeys(rows[i].Keys, rows[j].Keys, cfg.descending) < 0
	})
	return rows, nil
}

// Count returns the number of rows in each group of keys
func Count(ds *dataset.Dataset, keys []string, opts ...Option) ([]Group, error) {
	if err := validate(ds, "Count", keys); err != nil {
		return nil, err
	}

	cfg := resolve(opts)
	groups := partition(ds, keys)
	result := make([]Group, len(groups))
	for i, g := range groups {
		result[i] = Group{Keys: g.keys, Size: len(g.rows)}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if cfg.bySize && result[i].Size != result[j].Size {
			return result[i].Size > result[j].Size
		}
		return compareKeys(result[i].Keys, result[j].Keys, cfg.descending) < 0
	})
	return result, nil
}

func validate(ds *dataset.Dataset, op string, keys []string, metrics ...string) error {
	return validation.NewCompoundValidator(
		validation.NewRangeValidator(len(keys), 1, MaxKeys, "group keys", op),
		validation.NewColumnValidator(ds, op, keys...),
		validation.NewColumnValidator(ds, op, metrics...),
	).Validate()
}

func requireNumeric(ds *dataset.Dataset, metric string) error {
	col, _ := ds.Column(metric)
	switch col.DataType().ID() {
	case arrow.INT64, arrow.FLOAT64, arrow.BOOL:
		return nil
	default:
		return ocerrors.NewInvalidParameterError("Aggregate",
			fmt.Sprintf("metric %s has non-numeric type %s", metric, col.DataType().Name()))
	}
}

func resolve(opts []Option) options {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func compareKeys(a, b []any, descending bool) int {
	for i := range a {
		c := dataset.Compare(a[i], b[i])
		if c == 0 {
			continue
		}
		if i == 0 && descending {
			return -c
		}
		return c
	}
	return 0
}
