package views

import (
	"fmt"
	"math"

	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/filter"
	"github.com/paveg/ocpanel/internal/validation"
)

// AssetResidualRequest picks one sector and one year
type AssetResidualRequest struct {
	Sector any `json:"sector"`
	Year   any `json:"year"`
}

// Point is one labelled (asset growth, residual) observation
type Point struct {
	Ticker   string  `json:"ticker"`
	Asset    float64 `json:"asset"`
	Residual float64 `json:"residual"`
}

// AssetResidualResult holds the scatter points of one sector-year. Empty
// reports that the sector-year has no rows at all; rows without both
// values finite produce no point.
type AssetResidualResult struct {
	Empty  bool    `json:"empty"`
	Rows   int     `json:"rows"`
	Points []Point `json:"points"`
}

// AssetResidual returns asset growth against the regression residual for
// the firms of one sector in one year.
func AssetResidual(ds *dataset.Dataset, schema Schema, req AssetResidualRequest) (*AssetResidualResult, error) {
	if req.Sector == nil || req.Year == nil {
		return nil, ocerrors.NewInvalidParameterError("AssetResidual", "a sector and a year are required")
	}
	if err := validation.ValidateColumns(ds, "AssetResidual", schema.Ticker, schema.Asset, schema.Residual); err != nil {
		return nil, err
	}

	rows, err := filter.Rows(ds, schema.spec(
		filter.WithSectors(filter.Values(req.Sector)),
		filter.WithYears(filter.Values(req.Year)),
	))
	if err != nil {
		return nil, err
	}
	defer rows.Release()

	tickers, _ := rows.Column(schema.Ticker)
	assets, _ := rows.Column(schema.Asset)
	residuals, _ := rows.Column(schema.Residual)

	points := make([]Point, 0, rows.Len())
	for i := range rows.Len() {
		x, okX := dataset.Float(assets.Interface(i))
		y, okY := dataset.Float(residuals.Interface(i))
		if !okX || !okY || !finite(x) || !finite(y) {
			continue
		}
		label := ""
		if v := tickers.Interface(i); v != nil {
			label = fmt.Sprint(v)
		}
		points = append(points, Point{Ticker: label, Asset: x, Residual: y})
	}

	return &AssetResidualResult{Empty: rows.Len() == 0, Rows: rows.Len(), Points: points}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
