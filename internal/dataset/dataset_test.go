package dataset_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/ocpanel/internal/dataset"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/series"
	"github.com/paveg/ocpanel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_Basics(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	ds := testutil.CreatePanelDataset(mem.Allocator)
	defer ds.Release()

	assert.Equal(t, len(testutil.DefaultPanel), ds.Len())
	assert.Equal(t, len(testutil.PanelColumns), ds.Width())
	assert.Equal(t, testutil.PanelColumns, ds.Columns())

	t.Run("lookups ignore case", func(t *testing.T) {
		assert.True(t, ds.HasColumn("SETOR"))
		col, ok := ds.Column(" Ano ")
		require.True(t, ok)
		assert.Equal(t, "ano", col.Name())
	})

	t.Run("schema reports arrow types", func(t *testing.T) {
		schema := ds.Schema()
		require.Len(t, schema, ds.Width())
		assert.Equal(t, dataset.Field{Name: "ticker", Type: "utf8"}, schema[0])
		assert.Equal(t, dataset.Field{Name: "ano", Type: "int64"}, schema[2])
	})
}

func TestDataset_SelectDrop(t *testing.T) {
	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	selected := ds.Select("divev", "ticker", "missing", "TICKER")
	defer selected.Release()
	assert.Equal(t, []string{"divev", "ticker"}, selected.Columns())
	assert.Equal(t, ds.Len(), selected.Len())

	dropped := ds.Drop("oc134", "OC234")
	defer dropped.Release()
	assert.Equal(t, ds.Width()-2, dropped.Width())
	assert.False(t, dropped.HasColumn("oc134"))
}

func TestDataset_WithColumn(t *testing.T) {
	mem := memory.NewGoAllocator()
	ds := testutil.CreatePanelDataset(mem, testutil.DefaultPanel[:2]...)
	defer ds.Release()

	t.Run("appends new column", func(t *testing.T) {
		out, err := ds.WithColumn(series.New("flag", []bool{true, false}, mem))
		require.NoError(t, err)
		defer out.Release()

		cols := out.Columns()
		assert.Equal(t, "flag", cols[len(cols)-1])
		assert.Equal(t, ds.Width()+1, out.Width())
	})

	t.Run("replaces existing column in place", func(t *testing.T) {
		out, err := ds.WithColumn(series.New("ano", []int64{1, 2}, mem))
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, ds.Columns(), out.Columns())
		assert.Equal(t, []any{int64(1), int64(2)}, testutil.ColumnValues(t, out, "ano"))
		// the source is untouched
		assert.Equal(t, []any{int64(2019), int64(2020)}, testutil.ColumnValues(t, ds, "ano"))
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		_, err := ds.WithColumn(series.New("short", []int64{1}, mem))
		require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)
	})

	t.Run("prepend puts column first", func(t *testing.T) {
		out, err := ds.Prepend(series.New("#", []int64{1, 2}, mem))
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, "#", out.Columns()[0])
		assert.Equal(t, ds.Width()+1, out.Width())
	})
}

func TestDataset_FilterPreservesOrderAndNulls(t *testing.T) {
	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	mask := make([]bool, ds.Len())
	mask[1], mask[3], mask[6] = true, true, true

	out, err := ds.Filter(mask)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 3, out.Len())
	assert.Equal(t, []any{"PETR4", "ENBR3", "LWSA3"}, testutil.ColumnValues(t, out, "ticker"))
	assert.Equal(t, []any{0.05, nil, -0.02}, testutil.ColumnValues(t, out, "wroa"))

	_, err = ds.Filter([]bool{true})
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)
}

func TestDataset_FilterAllFalseKeepsSchema(t *testing.T) {
	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	out, err := ds.Filter(make([]bool, ds.Len()))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 0, out.Len())
	assert.Equal(t, ds.Columns(), out.Columns())
}

func TestDataset_TakeAndSlice(t *testing.T) {
	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	taken, err := ds.Take([]int{7, 0})
	require.NoError(t, err)
	defer taken.Release()
	assert.Equal(t, []any{"POSI3", "PETR4"}, testutil.ColumnValues(t, taken, "ticker"))

	_, err = ds.Take([]int{99})
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)

	sliced, err := ds.Slice(6, 100)
	require.NoError(t, err)
	defer sliced.Release()
	assert.Equal(t, 2, sliced.Len())
}

func TestDataset_Distinct(t *testing.T) {
	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	years, err := ds.Distinct("ano")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2019), int64(2020)}, years)

	sectors, err := ds.Distinct("SETOR")
	require.NoError(t, err)
	assert.Equal(t, []any{"Energy", "Tech"}, sectors)

	_, err = ds.Distinct("nope")
	require.ErrorIs(t, err, ocerrors.ErrMissingColumn)
}

func TestDataset_Record(t *testing.T) {
	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	sub := ds.Select("ticker", "ano", "wroa")
	defer sub.Release()

	assert.Equal(t, []any{"ENBR3", int64(2020), nil}, sub.Record(3))
}

func TestDataset_String(t *testing.T) {
	empty := dataset.New()
	assert.Equal(t, "Dataset[empty]", empty.String())
	assert.Equal(t, 0, empty.Len())

	ds := dataset.New(series.New("ano", []int64{2020}, nil))
	assert.Contains(t, ds.String(), "Dataset[1x1]")
	assert.Contains(t, ds.String(), "ano: int64")
}
