package rank_test

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel/internal/dataset"
	"github.com/paveg/ocpanel/internal/derive"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/filter"
	"github.com/paveg/ocpanel/internal/rank"
	"github.com/paveg/ocpanel/internal/series"
	"github.com/paveg/ocpanel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsOf(entries []rank.Entry) []int {
	rows := make([]int, len(entries))
	for i, e := range entries {
		rows[i] = e.Row
	}
	return rows
}

func TestRank_TopNLargerThanRows(t *testing.T) {
	mem := memory.NewGoAllocator()
	ds := dataset.New(series.New("m", []float64{3, 1, 4, 2}, mem))
	defer ds.Release()

	entries, err := rank.Rank(ds, "m", rank.Descending, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
	}
	assert.Equal(t, []int{2, 0, 3, 1}, rowsOf(entries))
}

func TestRank_MissingLastInBothDirections(t *testing.T) {
	mem := memory.NewGoAllocator()
	ds := dataset.New(testutil.Float64Column("m", []float64{testutil.Missing, 2, 1, testutil.Missing, 3}, mem))
	defer ds.Release()

	desc, err := rank.Rank(ds, "m", rank.Descending, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 2, 0, 3}, rowsOf(desc))
	assert.False(t, desc[3].Valid)
	assert.False(t, desc[4].Valid)

	asc, err := rank.Rank(ds, "m", rank.Ascending, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 4, 0, 3}, rowsOf(asc))
}

func TestRank_NaNSortsLast(t *testing.T) {
	mem := memory.NewGoAllocator()
	ds := dataset.New(series.New("m", []float64{math.NaN(), 2, math.NaN(), 3, 1}, mem))
	defer ds.Release()

	desc, err := rank.Rank(ds, "m", rank.Descending, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 4, 0, 2}, rowsOf(desc))
	assert.False(t, desc[3].Valid)

	asc, err := rank.Rank(ds, "m", rank.Ascending, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 3, 0, 2}, rowsOf(asc))
}

func TestRank_TiesKeepRowOrder(t *testing.T) {
	mem := memory.NewGoAllocator()
	ds := dataset.New(series.New("m", []int64{5, 7, 5, 7, 5}, mem))
	defer ds.Release()

	desc, err := rank.Rank(ds, "m", rank.Descending, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 0, 2, 4}, rowsOf(desc))

	asc, err := rank.Rank(ds, "m", rank.Ascending, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, rowsOf(asc))
}

func TestRank_Errors(t *testing.T) {
	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	tests := []struct {
		name   string
		metric string
		dir    rank.Direction
		topN   int
		want   error
	}{
		{"zero topN", "divev", rank.Descending, 0, ocerrors.ErrInvalidParameter},
		{"negative topN", "divev", rank.Ascending, -1, ocerrors.ErrInvalidParameter},
		{"unknown metric", "divev_x", rank.Descending, 5, ocerrors.ErrMissingColumn},
		{"text metric", "ticker", rank.Descending, 5, ocerrors.ErrInvalidParameter},
		{"unknown direction", "divev", rank.Direction(7), 5, ocerrors.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rank.Rank(ds, tt.metric, tt.dir, tt.topN)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseDirection(t *testing.T) {
	d, err := rank.ParseDirection("ASC")
	require.NoError(t, err)
	assert.Equal(t, rank.Ascending, d)

	d, err = rank.ParseDirection("descending")
	require.NoError(t, err)
	assert.Equal(t, rank.Descending, d)
	assert.Equal(t, "desc", d.String())

	_, err = rank.ParseDirection("up")
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)
}

func TestPairAndTable_EndToEnd(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	ds := testutil.CreatePanelDataset(mem.Allocator)
	defer ds.Release()

	derived, err := derive.Apply(ds, derive.Difference{Name: "divev_dif", Minuend: "divev", Subtrahend: "mediana_divev"})
	require.NoError(t, err)
	defer derived.Release()

	filtered, err := filter.Rows(derived, filter.NewSpec(
		filter.WithSectors(filter.All()),
		filter.WithYears(filter.Values(2020)),
		filter.WithIndicator("oc3", filter.Values(1)),
	))
	require.NoError(t, err)
	defer filtered.Release()

	top, bottom, err := rank.Pair(filtered, "divev_dif", 5)
	require.NoError(t, err)
	require.LessOrEqual(t, len(top), 5)
	require.Len(t, top, 4)

	table, err := rank.Table(filtered, top, "ticker", "setor", "divev_dif")
	require.NoError(t, err)
	defer table.Release()

	assert.Equal(t, []string{"#", "ticker", "setor", "divev_dif"}, table.Columns())
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, testutil.ColumnValues(t, table, "#"))
	// TOTS3 and LWSA3 tie; row order is kept
	assert.Equal(t, []any{"PETR4", "ENBR3", "TOTS3", "LWSA3"}, testutil.ColumnValues(t, table, "ticker"))

	least, err := rank.Table(filtered, bottom, "ticker")
	require.NoError(t, err)
	defer least.Release()
	assert.Equal(t, []any{"TOTS3", "LWSA3", "ENBR3", "PETR4"}, testutil.ColumnValues(t, least, "ticker"))
}

func TestTable_Errors(t *testing.T) {
	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	entries, err := rank.Rank(ds, "wroa", rank.Descending, 3)
	require.NoError(t, err)

	_, err = rank.Table(ds, entries, "ticker", "nope")
	require.ErrorIs(t, err, ocerrors.ErrMissingColumn)

	all, err := rank.Table(ds, entries)
	require.NoError(t, err)
	defer all.Release()
	assert.Equal(t, ds.Width()+1, all.Width())
	assert.Equal(t, 3, all.Len())
}
