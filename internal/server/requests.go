package server

import (
	"strings"

	"github.com/paveg/ocpanel"
	"github.com/paveg/ocpanel/internal/filter"
	"github.com/paveg/ocpanel/internal/views"
)

// FilterRequest describes a filter specification. A criterion left out of the
// request places no constraint; an empty array matches no rows.
type FilterRequest struct {
	Indicator  string            `json:"indicator,omitempty"`
	Values     *filter.Selection `json:"values,omitempty"`
	Years      *filter.Selection `json:"years,omitempty"`
	Sectors    *filter.Selection `json:"sectors,omitempty"`
	AnyFlagged [][]string        `json:"any_flagged,omitempty"`
	Metric     string            `json:"metric,omitempty"`
}

// Spec converts the request into a filter specification bound to e's schema
func (req FilterRequest) Spec(e *ocpanel.Explorer) filter.Spec {
	var opts []filter.Option
	if req.Indicator != "" {
		values := filter.All()
		if req.Values != nil {
			values = *req.Values
		}
		opts = append(opts, filter.WithIndicator(strings.ToLower(req.Indicator), values))
	}
	if req.Years != nil {
		opts = append(opts, filter.WithYears(*req.Years))
	}
	if req.Sectors != nil {
		opts = append(opts, filter.WithSectors(*req.Sectors))
	}
	for _, columns := range req.AnyFlagged {
		opts = append(opts, filter.WithAnyFlagged(columns...))
	}
	if req.Metric != "" {
		opts = append(opts, filter.WithMetric(req.Metric))
	}
	return e.Spec(opts...)
}

// RowsRequest filters and returns a column subset of the matching rows.
// No columns means the configured display columns.
type RowsRequest struct {
	FilterRequest
	Columns []string `json:"columns,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// RowsResponse is the filtered row-set
type RowsResponse struct {
	Count int         `json:"count"`
	Rows  views.Table `json:"rows"`
}

// AggregateRequest averages the metric over the filtered rows
type AggregateRequest struct {
	FilterRequest
	Keys       []string `json:"keys"`
	Descending bool     `json:"descending,omitempty"`
}

// RankRequest ranks the filtered rows. An empty direction returns both lists.
// An omitted top_n takes the configured default; an explicit one must be
// positive.
type RankRequest struct {
	FilterRequest
	Direction string   `json:"direction,omitempty"`
	TopN      int      `json:"top_n"`
	Columns   []string `json:"columns,omitempty"`
}

// RankResponse carries one or both ranked lists
type RankResponse struct {
	Top    *views.Table `json:"top,omitempty"`
	Bottom *views.Table `json:"bottom,omitempty"`
}

// ExportRequest serialises the filtered rows as a workbook, or as csv or
// parquet when Format says so
type ExportRequest struct {
	FilterRequest
	Columns    []string `json:"columns,omitempty"`
	Entity     string   `json:"entity,omitempty"`
	Descriptor string   `json:"descriptor,omitempty"`
	Sheet      string   `json:"sheet,omitempty"`
	Format     string   `json:"format,omitempty"`
}

// WarningResponse reports a rejected request; the server keeps serving
type WarningResponse struct {
	Warning   string `json:"warning"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse reports an unexpected failure
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
