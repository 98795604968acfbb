// Package enummap translates between a transport's wire enumeration and a
// domain enumeration.
package enummap

import "fmt"

// Pair is one wire/domain correspondence.
type Pair[W, D comparable] struct {
	Wire   W
	Domain D
}

// Table is a bidirectional one-to-one mapping. Lookups of values not in the
// table return the configured defaults instead of failing.
type Table[W, D comparable] struct {
	toDomain      map[W]D
	toWire        map[D]W
	pairs         []Pair[W, D]
	defaultWire   W
	defaultDomain D
}

// New builds a table from pairs. It panics if either side repeats a value or
// if a default is not itself mapped, since both indicate a programming error
// in a package-level table.
func New[W, D comparable](defaultWire W, defaultDomain D, pairs ...Pair[W, D]) *Table[W, D] {
	t := &Table[W, D]{
		toDomain:      make(map[W]D, len(pairs)),
		toWire:        make(map[D]W, len(pairs)),
		pairs:         pairs,
		defaultWire:   defaultWire,
		defaultDomain: defaultDomain,
	}
	for _, p := range pairs {
		if _, dup := t.toDomain[p.Wire]; dup {
			panic(fmt.Sprintf("enummap: duplicate wire value %v", p.Wire))
		}
		if _, dup := t.toWire[p.Domain]; dup {
			panic(fmt.Sprintf("enummap: duplicate domain value %v", p.Domain))
		}
		t.toDomain[p.Wire] = p.Domain
		t.toWire[p.Domain] = p.Wire
	}
	if _, ok := t.toDomain[defaultWire]; !ok {
		panic(fmt.Sprintf("enummap: default wire value %v is not mapped", defaultWire))
	}
	if _, ok := t.toWire[defaultDomain]; !ok {
		panic(fmt.Sprintf("enummap: default domain value %v is not mapped", defaultDomain))
	}
	return t
}

// ToDomain maps a wire value, returning the default domain value when w is unknown.
func (t *Table[W, D]) ToDomain(w W) D {
	if d, ok := t.toDomain[w]; ok {
		return d
	}
	return t.defaultDomain
}

// ToWire maps a domain value, returning the default wire value when d is unknown.
func (t *Table[W, D]) ToWire(d D) W {
	if w, ok := t.toWire[d]; ok {
		return w
	}
	return t.defaultWire
}

// Lookup maps a wire value and reports whether it was known.
func (t *Table[W, D]) Lookup(w W) (D, bool) {
	d, ok := t.toDomain[w]
	return d, ok
}

// Pairs returns the mapping in declaration order.
func (t *Table[W, D]) Pairs() []Pair[W, D] {
	out := make([]Pair[W, D], len(t.pairs))
	copy(out, t.pairs)
	return out
}

// Len returns the number of mapped pairs.
func (t *Table[W, D]) Len() int {
	return len(t.pairs)
}
