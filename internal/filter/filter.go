// Package filter composes per-interaction row predicates over a panel Dataset:
// categorical membership for the indicator, year and sector criteria, plus
// any-of sets of binary flags, all combined with logical AND.
package filter

import (
	"fmt"
	"strings"

	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/validation"
)

// Default schema column names for the year and sector criteria
const (
	DefaultYearColumn   = "ano"
	DefaultSectorColumn = "setor"
)

// Spec is an immutable filter specification. A criterion that was never set
// places no constraint on the rows; a criterion set to an empty Selection
// matches nothing.
type Spec struct {
	indicator    string
	indicatorSel *Selection
	years        *Selection
	sectors      *Selection
	metric       string
	anyOf        [][]string
	yearColumn   string
	sectorColumn string
}

// Option configures a Spec
type Option func(*Spec)

// NewSpec builds a Spec from options
func NewSpec(opts ...Option) Spec {
	spec := Spec{
		yearColumn:   DefaultYearColumn,
		sectorColumn: DefaultSectorColumn,
	}
	for _, opt := range opts {
		opt(&spec)
	}
	return spec
}

// With returns a copy of s with further options applied
func (s Spec) With(opts ...Option) Spec {
	next := s
	next.anyOf = append([][]string(nil), s.anyOf...)
	for _, opt := range opts {
		opt(&next)
	}
	return next
}

// WithIndicator constrains column to the selected values
func WithIndicator(column string, sel Selection) Option {
	return func(s *Spec) {
		s.indicator = column
		s.indicatorSel = &sel
	}
}

// WithYears constrains the year column
func WithYears(sel Selection) Option {
	return func(s *Spec) {
		s.years = &sel
	}
}

// WithSectors constrains the sector column
func WithSectors(sel Selection) Option {
	return func(s *Spec) {
		s.sectors = &sel
	}
}

// WithMetric names the metric column downstream stages operate on.
// It is validated but does not restrict rows.
func WithMetric(column string) Option {
	return func(s *Spec) {
		s.metric = column
	}
}

// WithAnyFlagged adds an any-of criterion: at least one of columns equals 1.
// An empty column list matches nothing.
func WithAnyFlagged(columns ...string) Option {
	return func(s *Spec) {
		s.anyOf = append(s.anyOf, append([]string{}, columns...))
	}
}

// WithYearColumn overrides the column the year criterion reads
func WithYearColumn(column string) Option {
	return func(s *Spec) {
		s.yearColumn = column
	}
}

// WithSectorColumn overrides the column the sector criterion reads
func WithSectorColumn(column string) Option {
	return func(s *Spec) {
		s.sectorColumn = column
	}
}

// Indicator returns the indicator column, empty when unset
func (s Spec) Indicator() string {
	return s.indicator
}

// Metric returns the metric column, empty when unset
func (s Spec) Metric() string {
	return s.metric
}

// YearColumn returns the column the year criterion reads
func (s Spec) YearColumn() string {
	return s.yearColumn
}

// SectorColumn returns the column the sector criterion reads
func (s Spec) SectorColumn() string {
	return s.sectorColumn
}

// Predicate returns the composite predicate: the AND of every set criterion
func (s Spec) Predicate() Predicate {
	var operands []Predicate
	if s.indicatorSel != nil {
		operands = append(operands, In(s.indicator, *s.indicatorSel))
	}
	if s.years != nil {
		operands = append(operands, In(s.yearColumn, *s.years))
	}
	if s.sectors != nil {
		operands = append(operands, In(s.sectorColumn, *s.sectors))
	}
	for _, columns := range s.anyOf {
		operands = append(operands, AnyFlagged(columns...))
	}
	return AllOf(operands...)
}

// Columns lists every column the spec references, including the metric
func (s Spec) Columns() []string {
	columns := s.Predicate().Columns()
	if s.metric != "" {
		columns = append(columns, s.metric)
	}
	return columns
}

func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Predicate().String())
	if s.metric != "" {
		fmt.Fprintf(&b, " metric=%s", s.metric)
	}
	return b.String()
}

// Compose evaluates spec against ds. Every referenced column is checked
// before any row is evaluated.
func Compose(ds *dataset.Dataset, spec Spec) (Mask, error) {
	if err := validation.ValidateColumns(ds, "Filter", spec.Columns()...); err != nil {
		return nil, err
	}
	return spec.Predicate().Eval(ds)
}

// Apply materialises the rows accepted by mask, preserving their order
func Apply(ds *dataset.Dataset, mask Mask) (*dataset.Dataset, error) {
	return ds.Filter(mask)
}

// Rows composes spec and materialises the accepted rows in one step
func Rows(ds *dataset.Dataset, spec Spec) (*dataset.Dataset, error) {
	mask, err := Compose(ds, spec)
	if err != nil {
		return nil, err
	}
	return Apply(ds, mask)
}
