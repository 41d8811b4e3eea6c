package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paveg/ocpanel"
	"github.com/paveg/ocpanel/internal/aggregate"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/export"
	"github.com/paveg/ocpanel/internal/filter"
	ocio "github.com/paveg/ocpanel/internal/io"
	"github.com/paveg/ocpanel/internal/rank"
	"github.com/paveg/ocpanel/internal/views"
	"github.com/spf13/cobra"
)

// filterFlags are the criteria every query command accepts. An empty flag
// places no constraint.
type filterFlags struct {
	indicator  string
	values     string
	years      string
	sectors    string
	anyFlagged []string
	metric     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.indicator, "indicator", "", "indicator column to filter on")
	flags.StringVar(&f.values, "values", "all", `indicator values: "all" or a comma-separated list`)
	flags.StringVar(&f.years, "years", "", `years: "all", "none" or a comma-separated list`)
	flags.StringVar(&f.sectors, "sectors", "", `sectors: "all", "none" or a comma-separated list`)
	flags.StringArrayVar(&f.anyFlagged, "any-flagged", nil, "comma-separated columns, at least one must be 1 (repeatable)")
	flags.StringVar(&f.metric, "metric", "", "metric column")
}

func (f *filterFlags) spec(e *ocpanel.Explorer) filter.Spec {
	var opts []filter.Option
	if f.indicator != "" {
		opts = append(opts, filter.WithIndicator(strings.ToLower(f.indicator), parseSelection(f.values)))
	}
	if f.years != "" {
		opts = append(opts, filter.WithYears(parseSelection(f.years)))
	}
	if f.sectors != "" {
		opts = append(opts, filter.WithSectors(parseSelection(f.sectors)))
	}
	for _, columns := range f.anyFlagged {
		opts = append(opts, filter.WithAnyFlagged(splitList(columns)...))
	}
	if f.metric != "" {
		opts = append(opts, filter.WithMetric(f.metric))
	}
	return e.Spec(opts...)
}

// parseSelection reads "all", "none" or a comma-separated list whose
// numeric items become numbers
func parseSelection(text string) filter.Selection {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "all":
		return filter.All()
	case "none", "":
		return filter.Values()
	}
	items := splitList(text)
	values := make([]any, len(items))
	for i, item := range items {
		values[i] = parseScalar(item)
	}
	return filter.Values(values...)
}

func parseScalar(text string) any {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}

func splitList(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newFilterCmd(a *app) *cobra.Command {
	var (
		criteria filterFlags
		columns  []string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Print the rows matching the criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return ocerrors.NewInvalidParameterError("Filter", "limit must not be negative")
			}
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := e.Filter(criteria.spec(e))
			if err != nil {
				return err
			}
			defer rows.Release()

			if len(columns) == 0 {
				columns = e.Config().DisplayColumns
			}
			view, err := export.Rows(rows, columns)
			if err != nil {
				return err
			}
			defer view.Release()

			table := views.NewTable(view)
			total := len(table.Rows)
			if limit > 0 && limit < total {
				table.Rows = table.Rows[:limit]
			}
			renderTable(a.stdout, table)
			fmt.Fprintf(a.stdout, "%d of %d rows\n", len(table.Rows), total)
			return nil
		},
	}

	criteria.register(cmd)
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to print (default the configured display columns)")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many rows (0 = all)")
	return cmd
}

func newAggregateCmd(a *app) *cobra.Command {
	var (
		criteria   filterFlags
		keys       []string
		descending bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Print the mean metric per group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			var opts []aggregate.Option
			if descending {
				opts = append(opts, aggregate.Descending())
			}
			spec := criteria.spec(e)
			rows, err := e.Aggregate(spec, keys, opts...)
			if err != nil {
				return err
			}

			view, err := export.Aggregates(rows, keys, spec.Metric())
			if err != nil {
				return err
			}
			defer view.Release()
			renderTable(a.stdout, views.NewTable(view))
			return nil
		},
	}

	criteria.register(cmd)
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "group key columns (at most two)")
	cmd.Flags().BoolVar(&descending, "descending", false, "order groups by descending key")
	return cmd
}

func newRankCmd(a *app) *cobra.Command {
	var (
		criteria  filterFlags
		direction string
		topN      int
		columns   []string
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the top rows by metric (the configured rank metric by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := rank.ParseDirection(direction)
			if err != nil {
				return err
			}
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			if len(columns) == 0 {
				cfg := e.Config()
				metric := criteria.metric
				if metric == "" {
					metric = cfg.RankMetric
				}
				columns = []string{cfg.YearColumn, cfg.SectorColumn, cfg.TickerColumn, metric}
			}
			if !cmd.Flags().Changed("top") {
				topN = e.Config().DefaultTopN
			}
			ranked, err := e.Rank(criteria.spec(e), dir, topN, columns...)
			if err != nil {
				return err
			}
			defer ranked.Release()

			renderTable(a.stdout, views.NewTable(ranked.Table))
			return nil
		},
	}

	criteria.register(cmd)
	cmd.Flags().StringVar(&direction, "direction", "desc", "desc or asc")
	cmd.Flags().IntVar(&topN, "top", 0, "number of rows, must be positive (default from config)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to print after the rank")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		criteria   filterFlags
		columns    []string
		entity     string
		descriptor string
		sheet      string
		format     string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the matching rows to an xlsx workbook, csv or parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			blob, err := e.Export(criteria.spec(e), ocpanel.ExportOptions{
				Columns:    columns,
				Entity:     entity,
				Descriptor: descriptor,
				Sheet:      sheet,
				Format:     ocio.Format(strings.ToLower(format)),
			})
			if err != nil {
				return err
			}

			path := filepath.Join(outDir, blob.Filename)
			if err := os.WriteFile(path, blob.Data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintln(a.stdout, path)
			return nil
		},
	}

	criteria.register(cmd)
	flags := cmd.Flags()
	flags.StringSliceVar(&columns, "columns", nil, "columns to export (default all)")
	flags.StringVar(&entity, "entity", "dados", "file name entity")
	flags.StringVar(&descriptor, "descriptor", "filtrados", "file name descriptor")
	flags.StringVar(&sheet, "sheet-name", "", "sheet label")
	flags.StringVar(&format, "format", string(ocio.FormatXLSX), "xlsx, csv or parquet")
	flags.StringVar(&outDir, "out", ".", "output directory")
	return cmd
}
