package ocpanel

import (
	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/views"
)

// Performance runs the performance comparison view on the current Snapshot
func (e *Explorer) Performance(req views.PerformanceRequest) (*views.PerformanceResult, error) {
	return runView(e, "performance", req, views.Performance)
}

// SectorIndicator runs the per-sector indicator view on the current Snapshot
func (e *Explorer) SectorIndicator(req views.SectorIndicatorRequest) (*views.SectorIndicatorResult, error) {
	return runView(e, "sector-indicator", req, views.SectorIndicator)
}

// IndicatorYear runs the per-year any-of indicator view on the current Snapshot
func (e *Explorer) IndicatorYear(req views.IndicatorYearRequest) (*views.IndicatorYearResult, error) {
	return runView(e, "indicator-year", req, views.IndicatorYear)
}

// Governance runs the governance level view on the current Snapshot
func (e *Explorer) Governance(req views.GovernanceRequest) (*views.GovernanceResult, error) {
	return runView(e, "governance", req, views.Governance)
}

// AssetResidual runs the asset growth against residual view on the current Snapshot
func (e *Explorer) AssetResidual(req views.AssetResidualRequest) (*views.AssetResidualResult, error) {
	return runView(e, "asset-residual", req, views.AssetResidual)
}

func runView[Req, Res any](e *Explorer, name string, req Req,
	view func(*dataset.Dataset, views.Schema, Req) (Res, error),
) (Res, error) {
	var result Res
	snap, err := e.Snapshot()
	if err != nil {
		return result, err
	}
	err = e.metrics.RecordOperation("view:"+name, snap.Dataset.Len(), func() error {
		var err error
		result, err = view(snap.Dataset, e.schema, req)
		return err
	})
	return result, err
}
