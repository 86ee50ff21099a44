package pmap

// DefaultBranchFactor is how many entries per node a tree will normally have.
const DefaultBranchFactor = 16

// Options sets parameters for a new tree that cannot change once it has data.
type Options struct {
	// BranchFactor, or number of entries per node. 0 means use DefaultBranchFactor.
	BranchFactor uint
}

// Map is an immutable ordered map. The zero Map is not usable; start from New.
// Copying a Map is cheap and yields an independent version.
type Map struct {
	root         *node
	height       uint8
	size         int
	branchFactor uint
}

// New returns an empty map with the default branch factor.
func New() Map {
	return Map{branchFactor: DefaultBranchFactor}
}

// NewWithOptions returns an empty map configured by opts.
func NewWithOptions(opts *Options) Map {
	m := New()
	if opts != nil && opts.BranchFactor > 0 {
		m.branchFactor = opts.BranchFactor
	}
	if m.branchFactor < 2 {
		m.branchFactor = 2
	}
	return m
}

// Get returns the value stored for key. Callers must not modify the returned
// slice, which is shared with every version containing the entry.
func (m Map) Get(key []byte) ([]byte, bool) {
	return m.root.get(key)
}

// Has reports whether the map contains key.
func (m Map) Has(key []byte) bool {
	_, ok := m.root.get(key)
	return ok
}

// Set returns a map in which key is associated with value. The key and value
// are copied. If key already holds an equal value the receiver is returned.
func (m Map) Set(key, value []byte) Map {
	target := keyLayer(key, m.branchFactor)
	if target > m.height {
		target = m.height
	}
	root, added := insert(m.root, m.height, target, clone(key), clone(value))
	if root == m.root {
		return m
	}
	m.root = root
	if added {
		m.size++
	}
	return m.normalize()
}

// Delete returns a map without key, and whether key was present. If it was
// not, the receiver is returned.
func (m Map) Delete(key []byte) (Map, bool) {
	root, removed := remove(m.root, key)
	if !removed {
		return m, false
	}
	m.root = root
	m.size--
	return m.normalize(), true
}

// normalize grows or shrinks the root until the height is
// min(max key layer, floor(log_b size)).
func (m Map) normalize() Map {
	for {
		limit := heightLimit(m.size, m.branchFactor)
		switch {
		case m.height > 0 && (m.height > limit || m.root == nil || len(m.root.keys) == 0):
			m.root = shrink(m.root)
			m.height--
		case m.height < limit && m.root.hasKeyAbove(m.height, m.branchFactor):
			m.root = grow(m.root, m.height, m.branchFactor)
			m.height++
		default:
			return m
		}
	}
}

// Len returns the number of entries in the map.
func (m Map) Len() int {
	return m.size
}

// IsEmpty reports whether the map has no entries.
func (m Map) IsEmpty() bool {
	return m.size == 0
}

// Height returns the number of levels between the leaves and root.
func (m Map) Height() uint8 {
	return m.height
}

// BranchFactor returns the ideal number of entries that are stored per node.
func (m Map) BranchFactor() uint {
	return m.branchFactor
}

// SameRoot reports whether both maps are the same version, i.e. share their
// root node.
func (m Map) SameRoot(other Map) bool {
	return m.root == other.root && m.height == other.height
}

// Iter invokes f for every entry in ascending key order. Iteration stops at
// the first error, which is returned.
func (m Map) Iter(f func(key, value []byte) error) error {
	if m.root == nil {
		return nil
	}
	return m.root.iter(f)
}

// Range returns an iterator over the entries with lo <= key < hi. A nil bound
// is open.
func (m Map) Range(lo, hi []byte) *Iterator {
	it := &Iterator{
		root: m.root,
		lo:   clone(lo),
		hi:   clone(hi),
	}
	it.Rewind()
	return it
}

// nodeCount returns the number of distinct nodes in the tree.
func (m Map) nodeCount() int {
	return m.root.count(map[*node]struct{}{})
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
