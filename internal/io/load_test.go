package io_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/io"
	"github.com/paveg/ocpanel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePanelFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	var xlsx, csv, pq bytes.Buffer
	require.NoError(t, io.NewXLSXWriter(&xlsx, io.DefaultXLSXOptions()).Write(ds))
	require.NoError(t, io.NewCSVWriter(&csv, io.DefaultCSVOptions()).Write(ds))
	require.NoError(t, io.NewParquetWriter(&pq, io.DefaultParquetOptions()).Write(ds))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "panel.xlsx"), xlsx.Bytes(), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "panel.csv"), csv.Bytes(), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "panel.parquet"), pq.Bytes(), 0o600))
	return dir
}

func TestLoader_Formats(t *testing.T) {
	dir := writePanelFiles(t)

	expected := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer expected.Release()

	for _, name := range []string{"panel.xlsx", "panel.csv", "panel.parquet"} {
		t.Run(name, func(t *testing.T) {
			ds, err := io.NewLoader().Load(context.Background(), io.Source{Path: filepath.Join(dir, name)})
			require.NoError(t, err)
			defer ds.Release()

			testutil.AssertDatasetEqual(t, expected, ds)
		})
	}
}

func TestLoader_LowerCasesColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upper.csv")
	require.NoError(t, os.WriteFile(path, []byte("TICKER,Ano, DivEv \nPETR4,2020,0.7\n"), 0o600))

	ds, err := io.Load(context.Background(), io.Source{Path: path})
	require.NoError(t, err)
	defer ds.Release()

	assert.Equal(t, []string{"ticker", "ano", "divev"}, ds.Columns())
	assert.True(t, ds.HasColumn("DIVEV"))
}

func TestLoader_SourceNotFound(t *testing.T) {
	_, err := io.Load(context.Background(), io.Source{Path: filepath.Join(t.TempDir(), "missing.xlsx")})
	require.ErrorIs(t, err, ocerrors.ErrSourceNotFound)
	assert.Equal(t, ocerrors.KindSourceNotFound, ocerrors.KindOf(err))
}

func TestLoader_UnsupportedFormat(t *testing.T) {
	_, err := io.Load(context.Background(), io.Source{Path: "panel.sav"})
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)
}

func TestLoader_ExplicitFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.data")
	require.NoError(t, os.WriteFile(path, []byte("ano\n2019\n"), 0o600))

	ds, err := io.Load(context.Background(), io.Source{Path: path, Format: io.FormatCSV})
	require.NoError(t, err)
	defer ds.Release()
	assert.Equal(t, 1, ds.Len())
}

func TestLoader_Timeout(t *testing.T) {
	dir := writePanelFiles(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := io.NewLoader(io.WithTimeout(time.Second))
	_, err := loader.Load(ctx, io.Source{Path: filepath.Join(dir, "panel.csv")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]io.Format{
		"a.xlsx":    io.FormatXLSX,
		"a.XLSX":    io.FormatXLSX,
		"a.csv":     io.FormatCSV,
		"a.parquet": io.FormatParquet,
	}
	for path, want := range tests {
		got, err := io.DetectFormat(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}
}
