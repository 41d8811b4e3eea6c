package aggregate

import (
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/paveg/ocpanel/internal/dataset"
)

const (
	groupMapCapacityFactor = 2
	groupMapLoadFactor     = 0.75
	groupMapGrowthFactor   = 2
	keySeparator           = "\x1f"
)

// group collects the rows sharing one key tuple
type group struct {
	key  string
	keys []any
	rows []int
}

// groupIndex is an xxhash-bucketed map from canonical key tuples to groups.
// Groups are kept in first-seen order.
type groupIndex struct {
	buckets  [][]int // indices into groups
	capacity int
	groups   []*group
}

func newGroupIndex(estimatedSize int) *groupIndex {
	capacity := nextPowerOfTwo(estimatedSize * groupMapCapacityFactor)
	return &groupIndex{
		buckets:  make([][]int, capacity),
		capacity: capacity,
	}
}

// add assigns row to the group identified by keys
func (gi *groupIndex) add(key string, keys []any, row int) {
	bucket := gi.bucket(key)
	for _, idx := range gi.buckets[bucket] {
		if gi.groups[idx].key == key {
			gi.groups[idx].rows = append(gi.groups[idx].rows, row)
			return
		}
	}

	gi.groups = append(gi.groups, &group{key: key, keys: keys, rows: []int{row}})
	gi.buckets[bucket] = append(gi.buckets[bucket], len(gi.groups)-1)

	if float64(len(gi.groups)) > float64(gi.capacity)*groupMapLoadFactor {
		gi.resize()
	}
}

func (gi *groupIndex) bucket(key string) int {
	//nolint:gosec // capacity is always a positive power of two
	return int(xxhash.Sum64String(key) & uint64(gi.capacity-1))
}

func (gi *groupIndex) resize() {
	gi.capacity *= groupMapGrowthFactor
	gi.buckets = make([][]int, gi.capacity)
	for idx, g := range gi.groups {
		bucket := gi.bucket(g.key)
		gi.buckets[bucket] = append(gi.buckets[bucket], idx)
	}
}

// partition groups the rows of ds by the given key columns. Rows with a
// missing key value belong to no group.
func partition(ds *dataset.Dataset, keyColumns []string) []*group {
	columns := make([]dataset.ISeries, len(keyColumns))
	for i, name := range keyColumns {
		columns[i], _ = ds.Column(name)
	}

	index := newGroupIndex(min(ds.Len(), 1024))
	parts := make([]string, len(columns))
	for row := range ds.Len() {
		keys := make([]any, len(columns))
		complete := true
		for i, col := range columns {
			keys[i] = col.Interface(row)
			key, ok := dataset.Key(keys[i])
			if !ok {
				complete = false
				break
			}
			parts[i] = key
		}
		if !complete {
			continue
		}
		index.add(strings.Join(parts, keySeparator), keys, row)
	}
	return index.groups
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
