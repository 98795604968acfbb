package enummap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type color string

func table() *Table[int32, color] {
	return New[int32, color](1, "red",
		Pair[int32, color]{Wire: 1, Domain: "red"},
		Pair[int32, color]{Wire: 2, Domain: "green"},
		Pair[int32, color]{Wire: 3, Domain: "blue"},
	)
}

func TestTable_RoundTrip(t *testing.T) {
	tbl := table()

	for _, p := range tbl.Pairs() {
		assert.Equal(t, p.Domain, tbl.ToDomain(p.Wire))
		assert.Equal(t, p.Wire, tbl.ToWire(p.Domain))
	}
	assert.Equal(t, 3, tbl.Len())
}

func TestTable_Defaults(t *testing.T) {
	tbl := table()

	assert.Equal(t, color("red"), tbl.ToDomain(0))
	assert.Equal(t, color("red"), tbl.ToDomain(99))
	assert.Equal(t, int32(1), tbl.ToWire("purple"))

	_, ok := tbl.Lookup(99)
	assert.False(t, ok)
	d, ok := tbl.Lookup(2)
	assert.True(t, ok)
	assert.Equal(t, color("green"), d)
}

func TestNew_Panics(t *testing.T) {
	t.Run("DuplicateWire", func(t *testing.T) {
		assert.Panics(t, func() {
			New[int32, color](1, "red",
				Pair[int32, color]{Wire: 1, Domain: "red"},
				Pair[int32, color]{Wire: 1, Domain: "green"},
			)
		})
	})

	t.Run("DuplicateDomain", func(t *testing.T) {
		assert.Panics(t, func() {
			New[int32, color](1, "red",
				Pair[int32, color]{Wire: 1, Domain: "red"},
				Pair[int32, color]{Wire: 2, Domain: "red"},
			)
		})
	})

	t.Run("UnmappedDefault", func(t *testing.T) {
		assert.Panics(t, func() {
			New[int32, color](7, "red", Pair[int32, color]{Wire: 1, Domain: "red"})
		})
	})
}

func TestTable_PairsIsCopy(t *testing.T) {
	tbl := table()
	pairs := tbl.Pairs()
	pairs[0].Domain = "changed"

	assert.Equal(t, color("red"), tbl.ToDomain(1))
}
