package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/paveg/ocpanel"
	"github.com/paveg/ocpanel/internal/aggregate"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/export"
	ocio "github.com/paveg/ocpanel/internal/io"
	"github.com/paveg/ocpanel/internal/rank"
	"github.com/paveg/ocpanel/internal/views"
	"github.com/paveg/ocpanel/internal/version"
)

// HealthResponse reports liveness and whether a snapshot is loaded
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Release bool   `json:"release"`
	Loaded  bool   `json:"loaded"`
}

// SchemaResponse describes the loaded panel
type SchemaResponse struct {
	Source   string          `json:"source"`
	LoadedAt time.Time       `json:"loaded_at"`
	Rows     int             `json:"rows"`
	Fields   []dataset.Field `json:"fields"`
	Schema   views.Schema    `json:"schema"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := s.explorer.Snapshot()
	render.JSON(w, r, HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Release: version.IsRelease(),
		Loaded:  err == nil,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	snap, err := s.explorer.Snapshot()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, SchemaResponse{
		Source:   snap.Source,
		LoadedAt: snap.LoadedAt,
		Rows:     snap.Dataset.Len(),
		Fields:   snap.Dataset.Schema(),
		Schema:   s.explorer.Schema(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.explorer.Metrics().GetSummary())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.explorer.Reload(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.handleSchema(w, r)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Limit < 0 {
		s.respondError(w, r, ocerrors.NewInvalidParameterError("Filter", "limit must not be negative"))
		return
	}

	rows, err := s.explorer.Filter(req.Spec(s.explorer))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rows.Release()

	columns := req.Columns
	if len(columns) == 0 {
		columns = s.explorer.Config().DisplayColumns
	}
	view, err := export.Rows(rows, columns)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer view.Release()

	count := view.Len()
	if req.Limit > 0 && req.Limit < count {
		limited, err := view.Slice(0, req.Limit)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		defer limited.Release()
		view = limited
	}

	render.JSON(w, r, RowsResponse{Count: count, Rows: views.NewTable(view)})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if !s.decode(w, r, &req) {
		return
	}

	var opts []aggregate.Option
	if req.Descending {
		opts = append(opts, aggregate.Descending())
	}
	result, err := s.explorer.Aggregate(req.Spec(s.explorer), req.Keys, opts...)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	req := RankRequest{TopN: s.explorer.Config().DefaultTopN}
	if !s.decode(w, r, &req) {
		return
	}
	spec := req.Spec(s.explorer)

	if req.Direction == "" {
		top, bottom, err := s.explorer.RankPair(spec, req.TopN, req.Columns...)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		defer top.Release()
		defer bottom.Release()
		topTable, bottomTable := views.NewTable(top.Table), views.NewTable(bottom.Table)
		render.JSON(w, r, RankResponse{Top: &topTable, Bottom: &bottomTable})
		return
	}

	dir, err := rank.ParseDirection(req.Direction)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ranked, err := s.explorer.Rank(spec, dir, req.TopN, req.Columns...)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer ranked.Release()

	table := views.NewTable(ranked.Table)
	if dir == rank.Descending {
		render.JSON(w, r, RankResponse{Top: &table})
		return
	}
	render.JSON(w, r, RankResponse{Bottom: &table})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !s.decode(w, r, &req) {
		return
	}
	blob, err := s.explorer.Export(req.Spec(s.explorer), ocpanel.ExportOptions{
		Columns:    req.Columns,
		Entity:     req.Entity,
		Descriptor: req.Descriptor,
		Sheet:      req.Sheet,
		Format:     ocio.Format(strings.ToLower(req.Format)),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeBlob(w, blob)
}

// viewResult is what every view endpoint renders. exportable is nil for
// views without a download.
type viewResult struct {
	body       any
	exportable *views.Result
}

func (s *Server) runView(r *http.Request, name string) (viewResult, error) {
	switch name {
	case "performance":
		var req views.PerformanceRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return viewResult{}, decodeError(err)
		}
		res, err := s.explorer.Performance(req)
		if err != nil {
			return viewResult{}, err
		}
		return viewResult{body: res, exportable: &res.Result}, nil
	case "sector-indicator":
		req := views.SectorIndicatorRequest{TopN: s.explorer.Config().DefaultTopN}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return viewResult{}, decodeError(err)
		}
		res, err := s.explorer.SectorIndicator(req)
		if err != nil {
			return viewResult{}, err
		}
		return viewResult{body: res, exportable: &res.Result}, nil
	case "indicator-year":
		req := views.IndicatorYearRequest{TopN: s.explorer.Config().DefaultTopN}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return viewResult{}, decodeError(err)
		}
		res, err := s.explorer.IndicatorYear(req)
		if err != nil {
			return viewResult{}, err
		}
		return viewResult{body: res, exportable: &res.Result}, nil
	case "governance":
		var req views.GovernanceRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return viewResult{}, decodeError(err)
		}
		res, err := s.explorer.Governance(req)
		if err != nil {
			return viewResult{}, err
		}
		return viewResult{body: res, exportable: &res.Result}, nil
	case "asset-residual":
		var req views.AssetResidualRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return viewResult{}, decodeError(err)
		}
		res, err := s.explorer.AssetResidual(req)
		if err != nil {
			return viewResult{}, err
		}
		return viewResult{body: res}, nil
	default:
		return viewResult{}, ocerrors.NewInvalidParameterError("View", fmt.Sprintf("unknown view %q", name))
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	result, err := s.runView(r, chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if result.exportable != nil {
		defer result.exportable.Release()
	}
	render.JSON(w, r, result.body)
}

func (s *Server) handleViewExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := s.runView(r, name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if result.exportable == nil {
		s.respondError(w, r, ocerrors.NewInvalidParameterError("Export", "view "+name+" has no export"))
		return
	}
	defer result.exportable.Release()

	format := ocio.Format(strings.ToLower(r.URL.Query().Get("format")))
	blob, err := result.exportable.Export(format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeBlob(w, blob)
}

func writeBlob(w http.ResponseWriter, blob export.Blob) {
	w.Header().Set("Content-Type", blob.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

func decodeError(err error) error {
	return ocerrors.NewInvalidParameterError("Decode", err.Error())
}
