package wire

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func part(t *testing.T, r *Reassembler, raw []byte) ([]byte, bool) {
	t.Helper()
	f, err := ParseFrame(raw)
	require.NoError(t, err)
	h, data, err := f.Ipv4Frag()
	require.NoError(t, err)
	return r.Add(h.SrcV, h, data)
}

func TestReassemblerInOrder(t *testing.T) {
	r := NewReassembler(0)
	src := [4]byte{10, 13, 37, 1}

	_, ok := part(t, r, buildFragRaw(src, src, 1, 0, 2, 3, []byte{0, 1, 2}))
	assert.False(t, ok)

	got, ok := part(t, r, buildFragRaw(src, src, 1, 1, 2, 3, []byte{3, 4}))
	require.True(t, ok)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, got)
}

func TestReassemblerOutOfOrder(t *testing.T) {
	r := NewReassembler(0)
	src := [4]byte{10, 13, 37, 2}

	_, ok := part(t, r, buildFragRaw(src, src, 7, 1, 2, 3, []byte{3, 4}))
	assert.False(t, ok)
	got, ok := part(t, r, buildFragRaw(src, src, 7, 0, 2, 3, []byte{0, 1, 2}))
	require.True(t, ok)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, got)
}

func TestReassemblerDuplicatePartOverwrites(t *testing.T) {
	r := NewReassembler(0)
	src := [4]byte{10, 13, 37, 3}

	part(t, r, buildFragRaw(src, src, 1, 0, 2, 3, []byte{9, 9, 9}))
	part(t, r, buildFragRaw(src, src, 1, 0, 2, 3, []byte{0, 1, 2}))
	got, ok := part(t, r, buildFragRaw(src, src, 1, 1, 2, 3, []byte{3, 4}))
	require.True(t, ok)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, got)
}

func TestReassemblerOutOfRangeIndexDropsGroup(t *testing.T) {
	r := NewReassembler(0)
	src := [4]byte{10, 13, 37, 4}
	_, ok := part(t, r, buildFragRaw(src, src, 1, 5, 2, 3, []byte{0, 1, 2}))
	assert.False(t, ok)
	assert.Equal(t, 0, r.ActiveGroups())
}

func TestReassemblerInterleavedGroups(t *testing.T) {
	r := NewReassembler(0)
	a := [4]byte{10, 13, 37, 5}
	b := [4]byte{10, 13, 37, 6}

	part(t, r, buildFragRaw(a, a, 1, 0, 2, 2, []byte{1, 2}))
	part(t, r, buildFragRaw(b, b, 1, 0, 2, 2, []byte{9, 9}))
	gotA, ok := part(t, r, buildFragRaw(a, a, 1, 1, 2, 2, []byte{3, 4}))
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, gotA)

	gotB, ok := part(t, r, buildFragRaw(b, b, 1, 1, 2, 2, []byte{8, 8}))
	require.True(t, ok)
	assert.Equal(t, []byte{9, 9, 8, 8}, gotB)
}

func TestReassemblerLRUEviction(t *testing.T) {
	r := NewReassembler(2)
	mk := func(id uint16) []byte {
		return buildFragRaw([4]byte{10, 13, 37, byte(id)}, [4]byte{}, id, 0, 2, 2, []byte{1, 2})
	}

	part(t, r, mk(1))
	part(t, r, mk(2))
	assert.Equal(t, 2, r.ActiveGroups())

	part(t, r, mk(3)) // evicts group 1 (least recently touched)
	assert.Equal(t, 2, r.ActiveGroups())

	_, ok := part(t, r, buildFragRaw([4]byte{10, 13, 37, 1}, [4]byte{}, 1, 1, 2, 2, []byte{3, 4}))
	assert.False(t, ok, "evicted group should not complete")
}

func TestReassemblerRandomOrderProperty(t *testing.T) {
	r := NewReassembler(0)
	src := [4]byte{10, 13, 37, 9}
	const n = 10
	const pmtu = 4
	want := make([]byte, 0, n*pmtu)
	parts := make([][]byte, n)
	for i := 0; i < n; i++ {
		d := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3)}
		parts[i] = d
		want = append(want, d...)
	}

	order := rand.Perm(n)
	var final []byte
	var done bool
	for _, i := range order {
		got, ok := part(t, r, buildFragRaw(src, src, 42, uint8(i), n, pmtu, parts[i]))
		if ok {
			final = got
			done = true
		}
	}
	require.True(t, done)
	assert.Equal(t, want, final)
}
