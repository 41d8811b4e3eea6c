package views

import (
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/filter"
)

// GovernanceRequest selects firms listed in any of the given governance
// levels. A nil Years leaves the year unconstrained.
type GovernanceRequest struct {
	Levels []string          `json:"levels"`
	Years  *filter.Selection `json:"years,omitempty"`
}

// GovernanceResult holds every column of the matching rows
type GovernanceResult struct {
	Result
	Levels []string `json:"levels"`
}

// Governance keeps the rows where at least one selected level is 1
func Governance(ds *dataset.Dataset, schema Schema, req GovernanceRequest) (*GovernanceResult, error) {
	for _, level := range req.Levels {
		if !contains(schema.Governance, level) {
			return nil, ocerrors.NewInvalidParameterError("Governance", "unknown governance level "+level)
		}
	}

	opts := constrain([]filter.Option{filter.WithAnyFlagged(req.Levels...)}, req.Years, filter.WithYears)
	rows, err := filter.Rows(ds, schema.spec(opts...))
	if err != nil {
		return nil, err
	}

	return &GovernanceResult{
		Result: Result{
			View:       "governance",
			Empty:      rows.Len() == 0,
			Rows:       NewTable(rows),
			download:   rows,
			entity:     "empresas",
			descriptor: "filtradas_governanca",
			sheet:      SheetCompanies,
		},
		Levels: append([]string{}, req.Levels...),
	}, nil
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
