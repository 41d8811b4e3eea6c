package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/filter"
	ocio "github.com/paveg/ocpanel/internal/io"
	"github.com/paveg/ocpanel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePanel(t *testing.T) string {
	t.Helper()

	ds := testutil.CreatePanelDataset(memory.NewGoAllocator())
	defer ds.Release()

	path := filepath.Join(t.TempDir(), "dados.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, ocio.NewCSVWriter(f, ocio.DefaultCSVOptions()).Write(ds))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ocpanel ")
}

func TestFilterCommand(t *testing.T) {
	data := writePanel(t)

	out, err := run(t, "filter", "--data", data, "--sectors", "Tech", "--years", "2020", "--columns", "ticker,wroa")
	require.NoError(t, err)
	assert.Contains(t, out, "TOTS3")
	assert.Contains(t, out, "LWSA3")
	assert.Contains(t, out, "POSI3")
	assert.NotContains(t, out, "PETR4")
	assert.Contains(t, out, "3 of 3 rows")

	out, err = run(t, "filter", "--data", data, "--sectors", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 0 rows")

	// without --columns the configured display columns are printed
	out, err = run(t, "filter", "--data", data, "--years", "2019")
	require.NoError(t, err)
	assert.Contains(t, out, "mediana_divev")
	assert.NotContains(t, out, "wqtobin")
}

func TestAggregateCommand(t *testing.T) {
	data := writePanel(t)

	out, err := run(t, "aggregate", "--data", data,
		"--indicator", "oc3", "--values", "1", "--years", "2020",
		"--metric", "wroa", "--keys", "setor")
	require.NoError(t, err)
	assert.Contains(t, out, "Energy")
	assert.Contains(t, out, "0.0500")
	assert.Contains(t, out, "0.0600")

	_, err = run(t, "aggregate", "--data", data, "--keys", "setor")
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)
}

func TestRankCommand(t *testing.T) {
	data := writePanel(t)

	out, err := run(t, "rank", "--data", data, "--years", "2020", "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "PETR4")
	assert.Contains(t, out, "divev_dif")
	assert.NotContains(t, out, "POSI3")

	out, err = run(t, "rank", "--data", data, "--direction", "asc", "--top", "1", "--columns", "ticker")
	require.NoError(t, err)
	assert.Contains(t, out, "POSI3")

	_, err = run(t, "rank", "--data", data, "--direction", "up")
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)

	_, err = run(t, "rank", "--data", data, "--top", "0")
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter, "an explicit zero is not replaced by the default")
}

func TestExportCommand(t *testing.T) {
	data := writePanel(t)
	out := t.TempDir()

	stdout, err := run(t, "export", "--data", data, "--sectors", "Energy", "--out", out, "--entity", "Energy", "--descriptor", "all years")
	require.NoError(t, err)

	path := filepath.Join(out, "energy_all_years.xlsx")
	assert.Contains(t, stdout, path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	stdout, err = run(t, "export", "--data", data, "--sectors", "Energy", "--columns", "ticker,ano",
		"--out", out, "--format", "csv")
	require.NoError(t, err)
	path = filepath.Join(out, "dados_filtrados.csv")
	assert.Contains(t, stdout, path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "ticker,ano\n"))

	_, err = run(t, "export", "--data", data, "--out", out, "--format", "ods")
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)
}

func TestMissingSource(t *testing.T) {
	_, err := run(t, "filter", "--data", filepath.Join(t.TempDir(), "dados.xlsx"))
	require.ErrorIs(t, err, ocerrors.ErrSourceNotFound)
}

func TestConfigFileAndEnv(t *testing.T) {
	data := writePanel(t)

	cfgPath := filepath.Join(t.TempDir(), "ocpanel.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_path: "+data+"\ndefault_top_n: 2\n"), 0o600))

	out, err := run(t, "--config", cfgPath, "rank", "--columns", "ticker")
	require.NoError(t, err)
	assert.Contains(t, out, "PETR4")

	t.Setenv("OCPANEL_DEFAULT_TOP_N", "-1")
	_, err = run(t, "--config", cfgPath, "rank")
	require.Error(t, err)
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		input    string
		all      bool
		expected []any
	}{
		{"all", true, nil},
		{"ALL", true, nil},
		{"none", false, []any{}},
		{"2019, 2020", false, []any{int64(2019), int64(2020)}},
		{"Energy,Tech", false, []any{"Energy", "Tech"}},
		{"0.5", false, []any{0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sel := parseSelection(tt.input)
			assert.Equal(t, tt.all, sel.IsAll())
			if !tt.all {
				assert.ElementsMatch(t, tt.expected, sel.Items())
			}
		})
	}

	assert.Equal(t, filter.All(), parseSelection("all"))
}
