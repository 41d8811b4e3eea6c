package validation_test

import (
	"testing"

	ocerrors "github.com/paveg/ocpanel/internal/errors"
	"github.com/paveg/ocpanel/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockColumnProvider implements ColumnProvider for testing.
type MockColumnProvider struct {
	columns []string
	length  int
}

func (m *MockColumnProvider) HasColumn(name string) bool {
	for _, col := range m.columns {
		if col == name {
			return true
		}
	}
	return false
}

func (m *MockColumnProvider) Columns() []string {
	return m.columns
}

func (m *MockColumnProvider) Len() int {
	return m.length
}

func (m *MockColumnProvider) Width() int {
	return len(m.columns)
}

func TestColumnValidator(t *testing.T) {
	mockDS := &MockColumnProvider{
		columns: []string{"ano", "setor"},
		length:  3,
	}

	t.Run("Valid columns", func(t *testing.T) {
		err := validation.NewColumnValidator(mockDS, "Aggregate", "ano", "setor").Validate()
		require.NoError(t, err)
	})

	t.Run("Invalid column", func(t *testing.T) {
		err := validation.NewColumnValidator(mockDS, "Aggregate", "wroa").Validate()
		require.Error(t, err)

		var pe *ocerrors.PipelineError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, ocerrors.KindMissingColumn, pe.Kind)
		assert.Equal(t, "Aggregate", pe.Op)
		assert.Equal(t, "wroa", pe.Column)
	})

	t.Run("Empty column name", func(t *testing.T) {
		err := validation.ValidateColumns(mockDS, "Rank", "")
		require.ErrorIs(t, err, ocerrors.ErrMissingColumn)
	})
}

func TestPositiveValidator(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"positive", 10, false},
		{"one", 1, false},
		{"zero", 0, true},
		{"negative", -3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.ValidatePositive(tt.value, "topN", "Rank")
			if tt.wantErr {
				require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)
				assert.Contains(t, err.Error(), "topN must be positive")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRangeValidator(t *testing.T) {
	require.NoError(t, validation.ValidateRange(2, 1, 2, "group keys", "Aggregate"))

	err := validation.ValidateRange(3, 1, 2, "group keys", "Aggregate")
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "group keys must be between 1 and 2, got 3")
}

func TestCompoundValidator(t *testing.T) {
	mockDS := &MockColumnProvider{columns: []string{"wroa"}}

	err := validation.NewCompoundValidator(
		validation.NewPositiveValidator(0, "topN", "Rank"),
		validation.NewColumnValidator(mockDS, "Rank", "missing"),
	).Validate()

	// parameter violations are reported first
	require.ErrorIs(t, err, ocerrors.ErrInvalidParameter)

	require.NoError(t, validation.NewCompoundValidator(
		validation.NewPositiveValidator(5, "topN", "Rank"),
		validation.NewColumnValidator(mockDS, "Rank", "wroa"),
	).Validate())
}
