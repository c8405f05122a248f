package rows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quadmatch/internal/ir"
)

// countingCursor records how often it was opened and closed.
type countingCursor struct {
	rows   []Row
	idx    int
	failAt int // index at which Next fails; -1 never
	closed *int
}

func (c *countingCursor) Next() (Row, bool, error) {
	if c.failAt >= 0 && c.idx == c.failAt {
		return Row{}, false, errors.New("disk on fire")
	}
	if c.idx >= len(c.rows) {
		return Row{}, false, nil
	}
	r := c.rows[c.idx]
	c.idx++
	return r, true, nil
}

func (c *countingCursor) Close() error {
	*c.closed++
	return nil
}

func countingList(rs []Row, failAt int) (*List, *int, *int) {
	opened, closed := new(int), new(int)
	l := New("test", []ir.Var{"s"}, func(context.Context) (Cursor, error) {
		*opened++
		return &countingCursor{rows: rs, failAt: failAt, closed: closed}, nil
	})
	return l, opened, closed
}

func sRows(terms ...ir.Term) []Row {
	out := make([]Row, len(terms))
	for i, t := range terms {
		out[i] = NewBuilder(1).Add("s", t).Build()
	}
	return out
}

func TestIdentity(t *testing.T) {
	got, err := Collect(context.Background(), Identity())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Size())
	assert.Empty(t, Identity().Schema())
}

func TestList_LazyOpen(t *testing.T) {
	l, opened, _ := countingList(sRows(s1), -1)
	it := l.Iterator(context.Background())
	assert.Equal(t, 0, *opened, "no work before the first Next")

	assert.True(t, it.Next())
	assert.Equal(t, 1, *opened)
	require.NoError(t, it.Close())
}

func TestList_SinglePass(t *testing.T) {
	l, opened, closed := countingList(sRows(s1, s2), -1)

	first, err := Collect(context.Background(), l)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, *closed, "cursor released on exhaustion")

	second, err := Collect(context.Background(), l)
	require.NoError(t, err)
	assert.Empty(t, second, "an exhausted list yields nothing")
	assert.Equal(t, 1, *opened, "second iteration must not reopen the source")
}

func TestList_Discard(t *testing.T) {
	l, opened, _ := countingList(sRows(s1), -1)
	l.Discard()

	got, err := Collect(context.Background(), l)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, *opened)
}

func TestList_ErrorPropagates(t *testing.T) {
	l, _, closed := countingList(sRows(s1, s2), 1)
	it := l.Iterator(context.Background())

	require.True(t, it.Next())
	assert.False(t, it.Next())
	assert.EqualError(t, it.Err(), "disk on fire")
	assert.Equal(t, 1, *closed, "cursor released on failure")
	assert.False(t, it.Next(), "iterator stays finished")
}

func TestList_Cancellation(t *testing.T) {
	l, _, closed := countingList(sRows(s1, s2), -1)
	ctx, cancel := context.WithCancel(context.Background())
	it := l.Iterator(ctx)

	require.True(t, it.Next())
	cancel()
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), context.Canceled)
	assert.Equal(t, 1, *closed)
}

func TestList_CloseEarlyReleases(t *testing.T) {
	l, _, closed := countingList(sRows(s1, s2), -1)
	it := l.Iterator(context.Background())

	require.True(t, it.Next())
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
	assert.Equal(t, 1, *closed)
}

func TestList_OpenError(t *testing.T) {
	l := New("broken", nil, func(context.Context) (Cursor, error) {
		return nil, errors.New("no snapshot")
	})
	_, err := Collect(context.Background(), l)
	assert.EqualError(t, err, "open broken: no snapshot")
}

func TestList_SchemaNormalized(t *testing.T) {
	l := Empty("e", []ir.Var{"z", "a", "z"})
	assert.Equal(t, []ir.Var{"a", "z"}, l.Schema())
}

func TestSchemaHelpers(t *testing.T) {
	a := []ir.Var{"s", "o"}
	b := []ir.Var{"o", "z"}

	assert.Equal(t, []ir.Var{"o", "s", "z"}, UnionSchema(a, b))
	assert.Equal(t, []ir.Var{"o"}, SharedVars(a, b))
	assert.Empty(t, SharedVars(a, []ir.Var{"q"}))
}
