package plan

import (
	"github.com/cespare/xxhash/v2"

	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/rows"
)

// hashTable is the build side of a hash join: a multi-map from the 64-bit
// hash of a row's join key to every row with that hash.
//
// Rows that leave a join variable unbound cannot be keyed. They go to the
// loose list and are tried against every probe row.
type hashTable struct {
	keyVars []ir.Var
	buckets map[uint64][]rows.Row
	loose   []rows.Row
	size    int
}

func newHashTable(keyVars []ir.Var) *hashTable {
	return &hashTable{keyVars: keyVars, buckets: make(map[uint64][]rows.Row)}
}

func (t *hashTable) insert(r rows.Row) {
	t.size++
	h, ok := joinKey(r, t.keyVars)
	if !ok {
		t.loose = append(t.loose, r)
		return
	}
	t.buckets[h] = append(t.buckets[h], r)
}

// lookup returns the candidates for probe row r. The caller owns the
// returned slice header but must not modify its elements.
func (t *hashTable) lookup(r rows.Row) []rows.Row {
	h, ok := joinKey(r, t.keyVars)
	if !ok {
		// Probe rows come from a scan and bind every pattern variable, so
		// this only happens with a malformed Accessor. Fall back to trying
		// everything rather than dropping matches.
		return t.all()
	}
	bucket := t.buckets[h]
	if len(t.loose) == 0 {
		return bucket
	}
	out := make([]rows.Row, 0, len(bucket)+len(t.loose))
	out = append(out, bucket...)
	return append(out, t.loose...)
}

func (t *hashTable) all() []rows.Row {
	out := make([]rows.Row, 0, t.size)
	for _, b := range t.buckets {
		out = append(out, b...)
	}
	return append(out, t.loose...)
}

// joinKey hashes the projection of r onto vars. With no vars every row
// hashes to the same value, which turns the join into a cross product.
func joinKey(r rows.Row, vars []ir.Var) (uint64, bool) {
	if len(vars) == 0 {
		return 0, true
	}
	d := xxhash.New()
	for _, v := range vars {
		t, ok := r.Get(v)
		if !ok {
			return 0, false
		}
		_, _ = d.WriteString(t.Key())
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64(), true
}
