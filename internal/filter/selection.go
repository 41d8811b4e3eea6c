package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paveg/ocpanel/internal/dataset"
)

// allToken is the JSON spelling of All()
const allToken = "all"

// Selection is the set of accepted values for a categorical criterion:
// either every value present in the column (All) or an explicit set.
// The zero value is an explicit empty set and matches nothing.
type Selection struct {
	all    bool
	values []any
}

// All selects every distinct non-missing value of the column at evaluation time
func All() Selection {
	return Selection{all: true}
}

// Values selects exactly the given values. Values(...) with no arguments matches nothing.
func Values(values ...any) Selection {
	return Selection{values: append([]any(nil), values...)}
}

// IsAll reports whether the selection resolves against the data
func (s Selection) IsAll() bool {
	return s.all
}

// Items returns the explicit values; nil for All()
func (s Selection) Items() []any {
	if s.all {
		return nil
	}
	return append([]any(nil), s.values...)
}

// Resolve returns the concrete accepted values for column in ds
func (s Selection) Resolve(ds *dataset.Dataset, column string) ([]any, error) {
	if s.all {
		return ds.Distinct(column)
	}
	return s.Items(), nil
}

func (s Selection) keySet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.values))
	for _, v := range s.values {
		if key, ok := dataset.Key(v); ok {
			set[key] = struct{}{}
		}
	}
	return set
}

func (s Selection) String() string {
	if s.all {
		return allToken
	}
	parts := make([]string, len(s.values))
	for i, v := range s.values {
		parts[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes All() as "all" and explicit sets as arrays
func (s Selection) MarshalJSON() ([]byte, error) {
	if s.all {
		return json.Marshal(allToken)
	}
	if s.values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.values)
}

// UnmarshalJSON accepts "all" or an array of scalars
func (s *Selection) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		if !strings.EqualFold(token, allToken) {
			return fmt.Errorf("invalid selection %q: expected %q or an array", token, allToken)
		}
		*s = All()
		return nil
	}

	var values []any
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("invalid selection: %w", err)
	}
	*s = Values(values...)
	return nil
}
