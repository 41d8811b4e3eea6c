// Package rank orders the rows of a filtered panel by a metric and keeps the top N.
package rank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/series"
	"github.com/paveg/ocpanel/internal/validation"
)

// PositionColumn is the name of the rank column Table prepends
const PositionColumn = "#"

// Direction selects the sort order of a ranking
type Direction int

const (
	// Descending puts the largest values first
	Descending Direction = iota
	// Ascending puts the smallest values first
	Ascending
)

func (d Direction) String() string {
	switch d {
	case Descending:
		return "desc"
	case Ascending:
		return "asc"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "asc"/"ascending" and "desc"/"descending", ignoring case
func ParseDirection(text string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "desc", "descending":
		return Descending, nil
	case "asc", "ascending":
		return Ascending, nil
	default:
		return 0, ocerrors.NewInvalidParameterError("Rank", fmt.Sprintf("unknown direction %q", text))
	}
}

// Entry is one ranked row. Position is 1-based and contiguous; Row indexes
// the Dataset that was ranked. Valid is false when the metric is missing.
type Entry struct {
	Position int     `json:"position"`
	Row      int     `json:"row"`
	Value    float64 `json:"value"`
	Valid    bool    `json:"valid"`
}

// Rank orders ds by metric and returns the first min(topN, rows) entries.
// Missing values sort last in either direction and ties keep row order.
func Rank(ds *dataset.Dataset, metric string, dir Direction, topN int) ([]Entry, error) {
	if err := validation.NewCompoundValidator(
		validation.NewPositiveValidator(topN, "topN", "Rank"),
		validation.NewColumnValidator(ds, "Rank", metric),
	).Validate(); err != nil {
		return nil, err
	}
	if dir != Descending && dir != Ascending {
		return nil, ocerrors.NewInvalidParameterError("Rank", fmt.Sprintf("unknown direction %s", dir))
	}

	col, _ := ds.Column(metric)
	switch col.DataType().ID() {
	case arrow.INT64, arrow.FLOAT64, arrow.BOOL:
	default:
		return nil, ocerrors.NewInvalidParameterError("Rank",
			fmt.Sprintf("metric %s has non-numeric type %s", metric, col.DataType().Name()))
	}

	entries := make([]Entry, ds.Len())
	for i := range entries {
		v, ok := dataset.Float(col.Interface(i))
		entries[i] = Entry{Row: i, Value: v, Valid: ok}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Valid != b.Valid {
			return a.Valid
		}
		if !a.Valid {
			return false
		}
		if dir == Descending {
			return a.Value > b.Value
		}
		return a.Value < b.Value
	})

	entries = entries[:min(topN, len(entries))]
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries, nil
}

// Pair returns the top N by descending and by ascending metric, the
// "most" and "least" lists shown side by side.
func Pair(ds *dataset.Dataset, metric string, topN int) (top, bottom []Entry, err error) {
	top, err = Rank(ds, metric, Descending, topN)
	if err != nil {
		return nil, nil, err
	}
	bottom, err = Rank(ds, metric, Ascending, topN)
	if err != nil {
		return nil, nil, err
	}
	return top, bottom, nil
}

// Table materialises the ranked rows of ds with the given columns (all when
// none are named), preceded by a "#" column holding each entry's position.
func Table(ds *dataset.Dataset, entries []Entry, columns ...string) (*dataset.Dataset, error) {
	if len(columns) == 0 {
		columns = ds.Columns()
	}
	if err := validation.ValidateColumns(ds, "Rank", columns...); err != nil {
		return nil, err
	}

	indices := make([]int, len(entries))
	positions := make([]int64, len(entries))
	for i, e := range entries {
		indices[i] = e.Row
		positions[i] = int64(e.Position)
	}

	selected := ds.Select(columns...)
	defer selected.Release()

	rows, err := selected.Take(indices)
	if err != nil {
		return nil, err
	}
	defer rows.Release()

	return rows.Prepend(series.New(PositionColumn, positions, memory.NewGoAllocator()))
}
