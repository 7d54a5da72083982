package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bundle struct {
	Authname string
}

func TestPutLookupRemove(t *testing.T) {
	t.Parallel()

	r := New[*bundle]()
	r.Put(1, &bundle{Authname: "alice"})

	got, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Authname)

	r.Remove(1)
	_, ok = r.Lookup(1)
	assert.False(t, ok)
}

func TestLookupMissingReturnsZeroValue(t *testing.T) {
	t.Parallel()

	r := New[*bundle]()
	got, ok := r.Lookup(99)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCountMatching(t *testing.T) {
	t.Parallel()

	r := New[*bundle]()
	r.Put(1, &bundle{Authname: "bob"})
	r.Put(2, &bundle{Authname: "bob"})
	r.Put(3, &bundle{Authname: "alice"})

	n := r.CountMatching(func(b *bundle) bool { return b.Authname == "bob" })
	assert.Equal(t, 2, n)
}

func TestLen(t *testing.T) {
	t.Parallel()

	r := New[*bundle]()
	assert.Equal(t, 0, r.Len())
	r.Put(1, &bundle{})
	assert.Equal(t, 1, r.Len())
}
