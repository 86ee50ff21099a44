package pmap

import "bytes"

type frame struct {
	node *node
	i    int
}

// Iterator walks a fixed version of a map in ascending key order. It is not
// safe for concurrent use, but any number of iterators may walk the same map.
type Iterator struct {
	root   *node
	lo, hi []byte
	stack  []frame
	key    []byte
	value  []byte
	done   bool
}

// Rewind restarts the iteration at the lower bound.
func (it *Iterator) Rewind() {
	it.stack = it.stack[:0]
	it.key, it.value = nil, nil
	it.done = false
	it.descend(it.root, it.lo)
}

// descend pushes the path towards the first key >= from, or the leftmost path
// when from is nil.
func (it *Iterator) descend(n *node, from []byte) {
	for n != nil {
		i := 0
		if from != nil {
			var found bool
			i, found = n.search(from)
			if found {
				it.stack = append(it.stack, frame{n, i})
				return
			}
		}
		it.stack = append(it.stack, frame{n, i})
		n = n.links[i]
	}
}

// Next advances to the next entry, returning false once the range is
// exhausted.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	for len(it.stack) > 0 {
		top := len(it.stack) - 1
		f := it.stack[top]
		if f.i >= len(f.node.keys) {
			it.stack = it.stack[:top]
			continue
		}
		key, value := f.node.keys[f.i], f.node.values[f.i]
		it.stack[top].i++
		if it.hi != nil && bytes.Compare(key, it.hi) >= 0 {
			break
		}
		it.descend(f.node.links[f.i+1], nil)
		it.key, it.value = key, value
		return true
	}
	it.done = true
	it.stack = it.stack[:0]
	it.key, it.value = nil, nil
	return false
}

// Key returns the current entry's key. Callers must not modify it.
func (it *Iterator) Key() []byte {
	return it.key
}

// Value returns the current entry's value. Callers must not modify it.
func (it *Iterator) Value() []byte {
	return it.value
}
