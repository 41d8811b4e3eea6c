package filter

import (
	"fmt"
	"strings"

	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/validation"
)

// Mask marks the rows a predicate accepts, one entry per row
type Mask []bool

// Count returns the number of accepted rows
func (m Mask) Count() int {
	n := 0
	for _, keep := range m {
		if keep {
			n++
		}
	}
	return n
}

// Indices returns the accepted row indices in ascending order
func (m Mask) Indices() []int {
	indices := make([]int, 0, m.Count())
	for i, keep := range m {
		if keep {
			indices = append(indices, i)
		}
	}
	return indices
}

// Predicate is a row test evaluated over a whole Dataset
type Predicate interface {
	// Columns lists the columns the predicate reads
	Columns() []string
	Eval(ds *dataset.Dataset) (Mask, error)
	String() string
}

// InPredicate accepts rows whose value belongs to a Selection
type InPredicate struct {
	column    string
	selection Selection
}

// In tests membership of column's value in sel. Missing values never match.
func In(column string, sel Selection) *InPredicate {
	return &InPredicate{column: column, selection: sel}
}

func (p *InPredicate) Columns() []string {
	return []string{p.column}
}

func (p *InPredicate) Eval(ds *dataset.Dataset) (Mask, error) {
	col, exists := ds.Column(p.column)
	if !exists {
		return nil, ocerrors.NewMissingColumnError("Filter", p.column)
	}

	mask := make(Mask, ds.Len())
	if p.selection.all {
		// All resolves to the column's distinct values, so only missing cells fail
		for i := range mask {
			mask[i] = !col.IsNull(i)
		}
		return mask, nil
	}

	accepted := p.selection.keySet()
	if len(accepted) == 0 {
		return mask, nil
	}
	for i := range mask {
		key, ok := dataset.Key(col.Interface(i))
		if !ok {
			continue
		}
		_, mask[i] = accepted[key]
	}
	return mask, nil
}

func (p *InPredicate) String() string {
	return fmt.Sprintf("%s in %s", p.column, p.selection)
}

// FlaggedPredicate accepts rows whose indicator equals 1
type FlaggedPredicate struct {
	column string
}

// Flagged tests column == 1; a missing value counts as 0
func Flagged(column string) *FlaggedPredicate {
	return &FlaggedPredicate{column: column}
}

func (p *FlaggedPredicate) Columns() []string {
	return []string{p.column}
}

func (p *FlaggedPredicate) Eval(ds *dataset.Dataset) (Mask, error) {
	col, exists := ds.Column(p.column)
	if !exists {
		return nil, ocerrors.NewMissingColumnError("Filter", p.column)
	}

	mask := make(Mask, ds.Len())
	for i := range mask {
		mask[i] = isFlag(col.Interface(i))
	}
	return mask, nil
}

func (p *FlaggedPredicate) String() string {
	return fmt.Sprintf("%s == 1", p.column)
}

func isFlag(v any) bool {
	if f, ok := dataset.Float(v); ok {
		return f == 1
	}
	key, ok := dataset.Key(v)
	return ok && key == "1"
}

// OrPredicate accepts rows accepted by at least one operand
type OrPredicate struct {
	operands []Predicate
}

// AnyOf combines predicates with logical OR. With no operands nothing matches.
func AnyOf(operands ...Predicate) *OrPredicate {
	return &OrPredicate{operands: operands}
}

// AnyFlagged accepts rows where at least one of columns equals 1
func AnyFlagged(columns ...string) *OrPredicate {
	operands := make([]Predicate, len(columns))
	for i, column := range columns {
		operands[i] = Flagged(column)
	}
	return AnyOf(operands...)
}

func (p *OrPredicate) Columns() []string {
	return collectColumns(p.operands)
}

func (p *OrPredicate) Eval(ds *dataset.Dataset) (Mask, error) {
	result := make(Mask, ds.Len())
	for _, operand := range p.operands {
		mask, err := operand.Eval(ds)
		if err != nil {
			return nil, err
		}
		for i, keep := range mask {
			result[i] = result[i] || keep
		}
	}
	return result, nil
}

func (p *OrPredicate) String() string {
	return join(p.operands, " or ", "false")
}

// AndPredicate accepts rows accepted by every operand
type AndPredicate struct {
	operands []Predicate
}

// AllOf combines predicates with logical AND. With no operands every row matches.
func AllOf(operands ...Predicate) *AndPredicate {
	return &AndPredicate{operands: operands}
}

func (p *AndPredicate) Columns() []string {
	return collectColumns(p.operands)
}

func (p *AndPredicate) Eval(ds *dataset.Dataset) (Mask, error) {
	result := make(Mask, ds.Len())
	for i := range result {
		result[i] = true
	}
	for _, operand := range p.operands {
		mask, err := operand.Eval(ds)
		if err != nil {
			return nil, err
		}
		for i, keep := range mask {
			result[i] = result[i] && keep
		}
	}
	return result, nil
}

func (p *AndPredicate) String() string {
	return join(p.operands, " and ", "true")
}

// Evaluate checks that every referenced column exists, then evaluates p
func Evaluate(ds *dataset.Dataset, p Predicate) (Mask, error) {
	if err := validation.ValidateColumns(ds, "Filter", p.Columns()...); err != nil {
		return nil, err
	}
	return p.Eval(ds)
}

func collectColumns(operands []Predicate) []string {
	var columns []string
	for _, operand := range operands {
		columns = append(columns, operand.Columns()...)
	}
	return columns
}

func join(operands []Predicate, sep, empty string) string {
	if len(operands) == 0 {
		return empty
	}
	parts := make([]string, len(operands))
	for i, operand := range operands {
		parts[i] = operand.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
