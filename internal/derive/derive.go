// Package derive computes dataset-wide derived columns, such as a debt-level
// differential against its sector median, once after load.
package derive

import (
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/montanaflynn/stats"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/series"
	"github.com/paveg/ocpanel/internal/validation"
)

const groupKeySeparator = "\x1f"

// Rule computes one derived column from columns already in the Dataset.
// Applying a rule whose output already exists replaces that column in place,
// so repeated application recomputes from the same inputs.
type Rule interface {
	Apply(ds *dataset.Dataset) (*dataset.Dataset, error)
	Output() string
	String() string
}

// Apply runs rules in order, each seeing the columns produced by the ones before it
func Apply(ds *dataset.Dataset, rules ...Rule) (*dataset.Dataset, error) {
	current := ds
	for _, rule := range rules {
		next, err := rule.Apply(current)
		if err != nil {
			if current != ds {
				current.Release()
			}
			return nil, fmt.Errorf("applying rule %s: %w", rule, err)
		}
		if current != ds {
			current.Release()
		}
		current = next
	}
	if current == ds {
		// hand back an independent reference so callers may always Release the result
		return ds.Select(ds.Columns()...), nil
	}
	return current, nil
}

// Difference derives Name = Minuend − Subtrahend. The result is missing
// wherever either operand is missing.
type Difference struct {
	Name       string
	Minuend    string
	Subtrahend string
}

// Output returns the derived column name
func (d Difference) Output() string {
	return d.Name
}

// Apply computes the difference column
func (d Difference) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if d.Name == "" {
		return nil, ocerrors.NewInvalidParameterError("Derive", "derived column name is empty")
	}
	if err := validation.ValidateColumns(ds, "Derive", d.Minuend, d.Subtrahend); err != nil {
		return nil, err
	}

	a, err := numericColumn(ds, d.Minuend)
	if err != nil {
		return nil, err
	}
	b, err := numericColumn(ds, d.Subtrahend)
	if err != nil {
		return nil, err
	}

	values := make([]float64, ds.Len())
	valid := make([]bool, ds.Len())
	for i := range values {
		x, okA := dataset.Float(a.Interface(i))
		y, okB := dataset.Float(b.Interface(i))
		if !okA || !okB {
			continue
		}
		values[i] = x - y
		valid[i] = !math.IsNaN(values[i])
	}

	return withFloatColumn(ds, d.Name, values, valid)
}

// String returns the rule in its declarative form
func (d Difference) String() string {
	return fmt.Sprintf("%s = %s - %s", d.Name, d.Minuend, d.Subtrahend)
}

// GroupMedian derives Name = median(Column) over the rows sharing the By key,
// e.g. the sector-year median a differential is measured against.
type GroupMedian struct {
	Name   string
	Column string
	By     []string
}

// Output returns the derived column name
func (g GroupMedian) Output() string {
	return g.Name
}

// Apply computes the per-group median column
func (g GroupMedian) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if g.Name == "" {
		return nil, ocerrors.NewInvalidParameterError("Derive", "derived column name is empty")
	}
	if err := validation.ValidateColumns(ds, "Derive", append([]string{g.Column}, g.By...)...); err != nil {
		return nil, err
	}
	col, err := numericColumn(ds, g.Column)
	if err != nil {
		return nil, err
	}

	keys := make([]string, ds.Len())
	hasKey := make([]bool, ds.Len())
	samples := make(map[string][]float64)
	for i := range keys {
		key, ok := groupKey(ds, g.By, i)
		if !ok {
			continue
		}
		keys[i], hasKey[i] = key, true
		if v, ok := dataset.Float(col.Interface(i)); ok {
			samples[key] = append(samples[key], v)
		}
	}

	medians := make(map[string]float64, len(samples))
	for key, data := range samples {
		m, err := stats.Median(data)
		if err != nil {
			return nil, ocerrors.NewInternalError("Derive", err)
		}
		medians[key] = m
	}

	values := make([]float64, ds.Len())
	valid := make([]bool, ds.Len())
	for i := range values {
		if !hasKey[i] {
			continue
		}
		if m, ok := medians[keys[i]]; ok {
			values[i], valid[i] = m, true
		}
	}

	return withFloatColumn(ds, g.Name, values, valid)
}

// String returns the rule in its declarative form
func (g GroupMedian) String() string {
	return fmt.Sprintf("%s = median(%s) by %s", g.Name, g.Column, strings.Join(g.By, ", "))
}

// Parse reads a declarative rule:
//
//	divev_dif = divev - mediana_divev
//	mediana_divev = median(divev) by setor, ano
func Parse(text string) (Rule, error) {
	name, body, ok := strings.Cut(text, "=")
	name = strings.TrimSpace(name)
	body = strings.TrimSpace(body)
	if !ok || name == "" || body == "" {
		return nil, ocerrors.NewInvalidParameterError("Derive", fmt.Sprintf("malformed rule %q", text))
	}

	if rest, isMedian := strings.CutPrefix(body, "median("); isMedian {
		column, tail, ok := strings.Cut(rest, ")")
		if !ok {
			return nil, ocerrors.NewInvalidParameterError("Derive", fmt.Sprintf("malformed rule %q", text))
		}
		rule := GroupMedian{Name: name, Column: strings.TrimSpace(column)}
		if by, hasBy := strings.CutPrefix(strings.TrimSpace(tail), "by "); hasBy {
			for _, key := range strings.Split(by, ",") {
				if key = strings.TrimSpace(key); key != "" {
					rule.By = append(rule.By, key)
				}
			}
		}
		return rule, nil
	}

	minuend, subtrahend, ok := strings.Cut(body, " - ")
	if !ok {
		return nil, ocerrors.NewInvalidParameterError("Derive", fmt.Sprintf("unsupported rule %q", text))
	}
	return Difference{
		Name:       name,
		Minuend:    strings.TrimSpace(minuend),
		Subtrahend: strings.TrimSpace(subtrahend),
	}, nil
}

// ParseAll parses every rule, stopping at the first malformed one
func ParseAll(texts []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(texts))
	for _, text := range texts {
		rule, err := Parse(text)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func numericColumn(ds *dataset.Dataset, name string) (dataset.ISeries, error) {
	s, exists := ds.Column(name)
	if !exists {
		return nil, ocerrors.NewMissingColumnError("Derive", name)
	}
	switch s.DataType().ID() {
	case arrow.INT64, arrow.FLOAT64, arrow.BOOL:
		return s, nil
	default:
		return nil, ocerrors.NewInvalidParameterError("Derive",
			fmt.Sprintf("column %s has non-numeric type %s", name, s.DataType().Name()))
	}
}

func groupKey(ds *dataset.Dataset, by []string, row int) (string, bool) {
	parts := make([]string, len(by))
	for i, name := range by {
		s, _ := ds.Column(name)
		key, ok := dataset.Key(s.Interface(row))
		if !ok {
			return "", false
		}
		parts[i] = key
	}
	return strings.Join(parts, groupKeySeparator), true
}

func withFloatColumn(ds *dataset.Dataset, name string, values []float64, valid []bool) (*dataset.Dataset, error) {
	s, err := series.NewNullable(name, values, valid, memory.NewGoAllocator())
	if err != nil {
		return nil, ocerrors.NewInternalError("Derive", err)
	}
	return ds.WithColumn(s)
}
