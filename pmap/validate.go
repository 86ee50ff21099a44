package pmap

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrCorruption is returned when a tree violates one of its structural
// invariants. It signals a programming error, not a transient condition.
var ErrCorruption = errors.New("pmap: corruption")

// Validate walks the whole tree and checks key order, node shape, the layer
// of every key, the height rule and the entry count.
func (m Map) Validate() error {
	if m.branchFactor < 2 {
		return fmt.Errorf("%w: branch factor %d", ErrCorruption, m.branchFactor)
	}
	if m.root == nil {
		if m.size != 0 || m.height != 0 {
			return fmt.Errorf("%w: tree with empty root but height %d, size %d", ErrCorruption, m.height, m.size)
		}
		return nil
	}
	if m.height > 0 && len(m.root.keys) == 0 {
		return fmt.Errorf("%w: root at height %d has no keys", ErrCorruption, m.height)
	}
	limit := heightLimit(m.size, m.branchFactor)
	if m.height > limit {
		return fmt.Errorf("%w: height %d exceeds %d for size %d", ErrCorruption, m.height, limit, m.size)
	}
	if m.height < limit && m.root.hasKeyAbove(m.height, m.branchFactor) {
		return fmt.Errorf("%w: root at height %d should have grown", ErrCorruption, m.height)
	}
	v := validator{m: m}
	if err := v.check(m.root, m.height, nil, nil); err != nil {
		return err
	}
	if v.count != m.size {
		return fmt.Errorf("%w: counted %d entries, size is %d", ErrCorruption, v.count, m.size)
	}
	return nil
}

type validator struct {
	m     Map
	count int
}

// check validates the subtree at level, whose keys must lie strictly between
// lo and hi (nil bounds are open).
func (v *validator) check(n *node, level uint8, lo, hi []byte) error {
	if len(n.keys) != len(n.values) {
		return fmt.Errorf("%w: node %p has %d keys but %d values", ErrCorruption, n, len(n.keys), len(n.values))
	}
	if len(n.links) != len(n.keys)+1 {
		return fmt.Errorf("%w: node %p has %d links but %d keys", ErrCorruption, n, len(n.links), len(n.keys))
	}
	if n.isEmpty() {
		return fmt.Errorf("%w: empty node %p at level %d", ErrCorruption, n, level)
	}
	for i, key := range n.keys {
		if i > 0 && bytes.Compare(n.keys[i-1], key) >= 0 {
			return fmt.Errorf("%w: keys out of order: %q >= %q", ErrCorruption, n.keys[i-1], key)
		}
		if lo != nil && bytes.Compare(key, lo) <= 0 || hi != nil && bytes.Compare(key, hi) >= 0 {
			return fmt.Errorf("%w: key %q outside of its parent's range", ErrCorruption, key)
		}
		layer := keyLayer(key, v.m.branchFactor)
		if level == v.m.height && layer < level || level < v.m.height && layer != level {
			return fmt.Errorf("%w: key %q with layer %d found at level %d", ErrCorruption, key, layer, level)
		}
	}
	v.count += len(n.keys)
	for i, link := range n.links {
		if link == nil {
			continue
		}
		if level == 0 {
			return fmt.Errorf("%w: node %p at level 0 has children", ErrCorruption, n)
		}
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = n.keys[i-1]
		}
		if i < len(n.keys) {
			childHi = n.keys[i]
		}
		if err := v.check(link, level-1, childLo, childHi); err != nil {
			return err
		}
	}
	return nil
}
