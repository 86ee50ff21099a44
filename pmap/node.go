package pmap

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
)

// node is never modified once it is reachable from a Map. Every function in
// this file that "changes" a node returns a freshly allocated one.
type node struct {
	keys   [][]byte
	values [][]byte
	links  []*node
}

func newLeaf(key, value []byte) *node {
	return &node{
		keys:   [][]byte{key},
		values: [][]byte{value},
		links:  []*node{nil, nil},
	}
}

func (n *node) isEmpty() bool {
	return len(n.keys) == 0 && n.links[0] == nil
}

// orNil collapses an empty node into an empty (nil) subtree.
func (n *node) orNil() *node {
	if n.isEmpty() {
		return nil
	}
	return n
}

func (n *node) clone() *node {
	return &node{
		keys:   append(make([][]byte, 0, len(n.keys)), n.keys...),
		values: append(make([][]byte, 0, len(n.values)), n.values...),
		links:  append(make([]*node, 0, len(n.links)), n.links...),
	}
}

// search returns the index of the first key that is not less than key, and
// whether that key is equal to it.
func (n *node) search(key []byte) (int, bool) {
	i := len(n.keys)
	if i > 0 {
		// check max first, optimizing for in-order insertion
		cmp := bytes.Compare(key, n.keys[i-1])
		if cmp > 0 {
			return i, false
		}
		if cmp == 0 {
			return i - 1, true
		}
		i--
	}
	i = sort.Search(i, func(j int) bool {
		return bytes.Compare(n.keys[j], key) >= 0
	})
	return i, i < len(n.keys) && bytes.Equal(n.keys[i], key)
}

func (n *node) get(key []byte) ([]byte, bool) {
	for n != nil {
		i, found := n.search(key)
		if found {
			return n.values[i], true
		}
		n = n.links[i]
	}
	return nil, false
}

// insert places key at targetLevel, rebuilding the path from n (which sits at
// level) down to it. It returns n itself when nothing changed, and whether a
// new entry was added rather than an existing one replaced.
func insert(n *node, level, targetLevel uint8, key, value []byte) (*node, bool) {
	if n == nil {
		if level == targetLevel {
			return newLeaf(key, value), true
		}
		child, _ := insert(nil, level-1, targetLevel, key, value)
		return &node{links: []*node{child}}, true
	}
	i, found := n.search(key)
	if found {
		if bytes.Equal(n.values[i], value) {
			return n, false
		}
		replaced := n.clone()
		replaced.values[i] = value
		return replaced, false
	}
	if level > targetLevel {
		child, added := insert(n.links[i], level-1, targetLevel, key, value)
		if child == n.links[i] {
			return n, added
		}
		updated := n.clone()
		updated.links[i] = child
		return updated, added
	}
	left, right := split(n.links[i], key)
	grown := &node{
		keys:   make([][]byte, 0, len(n.keys)+1),
		values: make([][]byte, 0, len(n.values)+1),
		links:  make([]*node, 0, len(n.links)+1),
	}
	grown.keys = append(append(append(grown.keys, n.keys[:i]...), key), n.keys[i:]...)
	grown.values = append(append(append(grown.values, n.values[:i]...), value), n.values[i:]...)
	grown.links = append(append(append(grown.links, n.links[:i]...), left, right), n.links[i+1:]...)
	return grown, true
}

// split divides the subtree rooted at n into the entries less than key and
// the entries greater than key, both rooted at n's level. The key is not
// expected to be present in the subtree.
func split(n *node, key []byte) (left, right *node) {
	if n == nil {
		return nil, nil
	}
	i, found := n.search(key)
	if found {
		panic("split shouldn't need to handle preservation of already-present key")
	}
	tooSmall, tooBig := split(n.links[i], key)
	l := &node{
		keys:   append(make([][]byte, 0, i), n.keys[:i]...),
		values: append(make([][]byte, 0, i), n.values[:i]...),
		links:  make([]*node, 0, i+1),
	}
	l.links = append(append(l.links, n.links[:i]...), tooSmall)
	r := &node{
		keys:   append(make([][]byte, 0, len(n.keys)-i), n.keys[i:]...),
		values: append(make([][]byte, 0, len(n.keys)-i), n.values[i:]...),
		links:  make([]*node, 0, len(n.links)-i),
	}
	r.links = append(append(r.links, tooBig), n.links[i+1:]...)
	return l.orNil(), r.orNil()
}

// remove deletes key from the subtree rooted at n. It returns n itself when
// the key was not present.
func remove(n *node, key []byte) (*node, bool) {
	if n == nil {
		return nil, false
	}
	i, found := n.search(key)
	if !found {
		child, removed := remove(n.links[i], key)
		if !removed {
			return n, false
		}
		updated := n.clone()
		updated.links[i] = child
		return updated.orNil(), true
	}
	shrunk := &node{
		keys:   make([][]byte, 0, len(n.keys)-1),
		values: make([][]byte, 0, len(n.values)-1),
		links:  make([]*node, 0, len(n.links)-1),
	}
	shrunk.keys = append(append(shrunk.keys, n.keys[:i]...), n.keys[i+1:]...)
	shrunk.values = append(append(shrunk.values, n.values[:i]...), n.values[i+1:]...)
	shrunk.links = append(append(append(shrunk.links, n.links[:i]...), merge(n.links[i], n.links[i+1])), n.links[i+2:]...)
	return shrunk.orNil(), true
}

// merge joins two sibling subtrees of the same level, where every key of left
// is less than every key of right.
func merge(left, right *node) *node {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	last := len(left.links) - 1
	combined := &node{
		keys:   make([][]byte, 0, len(left.keys)+len(right.keys)),
		values: make([][]byte, 0, len(left.values)+len(right.values)),
		links:  make([]*node, 0, len(left.links)+len(right.links)-1),
	}
	combined.keys = append(append(combined.keys, left.keys...), right.keys...)
	combined.values = append(append(combined.values, left.values...), right.values...)
	combined.links = append(combined.links, left.links[:last]...)
	combined.links = append(combined.links, merge(left.links[last], right.links[0]))
	combined.links = append(combined.links, right.links[1:]...)
	return combined
}

// extract copies the entries [from, to) of n, with their surrounding links,
// into a new node one level down.
func (n *node) extract(from, to int) *node {
	child := &node{
		keys:   append([][]byte{}, n.keys[from:to]...),
		values: append([][]byte{}, n.values[from:to]...),
		links:  append([]*node{}, n.links[from:to+1]...),
	}
	return child.orNil()
}

// grow lifts the root's keys whose layer exceeds height into a new root one
// level up; the runs of keys between them become the new root's children.
func grow(root *node, height uint8, branchFactor uint) *node {
	grown := &node{
		keys:   make([][]byte, 0, branchFactor),
		values: make([][]byte, 0, branchFactor),
		links:  make([]*node, 0, branchFactor+1),
	}
	start := 0
	for i, key := range root.keys {
		if keyLayer(key, branchFactor) <= height {
			continue
		}
		grown.links = append(grown.links, root.extract(start, i))
		grown.keys = append(grown.keys, key)
		grown.values = append(grown.values, root.values[i])
		start = i + 1
	}
	grown.links = append(grown.links, root.extract(start, len(root.keys)))
	return grown.orNil()
}

// shrink flattens the root and its children into a single node one level
// down.
func shrink(root *node) *node {
	if root == nil {
		return nil
	}
	flat := &node{}
	for i, link := range root.links {
		if link != nil {
			flat.keys = append(flat.keys, link.keys...)
			flat.values = append(flat.values, link.values...)
			flat.links = append(flat.links, link.links...)
		} else {
			flat.links = append(flat.links, nil)
		}
		if i < len(root.keys) {
			flat.keys = append(flat.keys, root.keys[i])
			flat.values = append(flat.values, root.values[i])
		}
	}
	return flat.orNil()
}

func (n *node) hasKeyAbove(height uint8, branchFactor uint) bool {
	if n == nil {
		return false
	}
	for _, key := range n.keys {
		if keyLayer(key, branchFactor) > height {
			return true
		}
	}
	return false
}

func (n *node) iter(f func(key, value []byte) error) error {
	for i, link := range n.links {
		if link != nil {
			if err := link.iter(f); err != nil {
				return err
			}
		}
		if i < len(n.keys) {
			if err := f(n.keys[i], n.values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// count returns the number of distinct nodes reachable from n.
func (n *node) count(seen map[*node]struct{}) int {
	if n == nil {
		return 0
	}
	if _, ok := seen[n]; ok {
		return 0
	}
	seen[n] = struct{}{}
	total := 1
	for _, link := range n.links {
		total += link.count(seen)
	}
	return total
}

func (n *node) dump(w io.Writer, indent string) {
	for i, link := range n.links {
		label := ">"
		if i < len(n.keys) {
			label = fmt.Sprintf("%q: %q", n.keys[i], n.values[i])
		}
		if link == nil {
			fmt.Fprintf(w, "%s%s {}\n", indent, label)
			continue
		}
		fmt.Fprintf(w, "%s%s {\n", indent, label)
		link.dump(w, indent+"   ")
		fmt.Fprintf(w, "%s}\n", indent)
	}
}

func (m Map) String() string {
	if m.root == nil {
		return "NIL\n"
	}
	var sb strings.Builder
	sb.WriteString("{\n")
	m.root.dump(&sb, "   ")
	sb.WriteString("}\n")
	return sb.String()
}
