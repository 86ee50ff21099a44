package pmap

import (
	"bytes"
	"fmt"
)

type entry struct {
	key   []byte
	value []byte
}

type iterItem struct {
	considerLink *node
	yield        entry
}

// DiffIter invokes f, in ascending key order, for every entry that differs
// between old and m. Subtrees the two versions share are skipped without
// being visited. added && removed signifies an entry whose value changed.
// The iteration stops when f returns keepGoing == false or an error.
func (m Map) DiffIter(
	old Map,
	f func(added, removed bool, key, addedValue, removedValue []byte) (keepGoing bool, err error),
) error {
	oldStack := newIterItemStack(old.root)
	newStack := newIterItemStack(m.root)
	for {
		o := oldStack.pop()
		n := newStack.pop()
		var (
			keepGoing = true
			err       error
		)
		switch {
		case o == nil && n == nil:
			return nil
		case o == nil:
			if n.considerLink != nil {
				newStack.pushNode(n.considerLink)
				continue
			}
			keepGoing, err = f(true, false, n.yield.key, n.yield.value, nil)
		case n == nil:
			if o.considerLink != nil {
				oldStack.pushNode(o.considerLink)
				continue
			}
			keepGoing, err = f(false, true, o.yield.key, nil, o.yield.value)
		case o.considerLink != nil && n.considerLink != nil:
			if o.considerLink == n.considerLink {
				continue
			}
			oldNode, newNode := o.considerLink, n.considerLink
			if len(oldNode.keys) == 0 {
				// descend through empty intermediate
				oldStack.pushLink(oldNode.links[0])
				newStack.push(n)
				continue
			}
			if len(newNode.keys) == 0 {
				oldStack.push(o)
				newStack.pushLink(newNode.links[0])
				continue
			}
			cmp := bytes.Compare(oldNode.keys[0], newNode.keys[0])
			if cmp <= 0 {
				oldStack.pushNode(oldNode)
			} else {
				oldStack.push(o)
			}
			if cmp >= 0 {
				newStack.pushNode(newNode)
			} else {
				newStack.push(n)
			}
			continue
		case o.considerLink != nil:
			oldStack.pushNode(o.considerLink)
			newStack.push(n)
			continue
		case n.considerLink != nil:
			oldStack.push(o)
			newStack.pushNode(n.considerLink)
			continue
		default:
			// both yields
			cmp := bytes.Compare(o.yield.key, n.yield.key)
			switch {
			case cmp < 0:
				newStack.push(n)
				keepGoing, err = f(false, true, o.yield.key, nil, o.yield.value)
			case cmp > 0:
				oldStack.push(o)
				keepGoing, err = f(true, false, n.yield.key, n.yield.value, nil)
			case !bytes.Equal(o.yield.value, n.yield.value):
				keepGoing, err = f(true, true, n.yield.key, n.yield.value, o.yield.value)
			}
		}
		if err != nil {
			return fmt.Errorf("callback: %w", err)
		}
		if !keepGoing {
			return nil
		}
	}
}

type iterItemStack struct {
	things []iterItem
}

func newIterItemStack(root *node) iterItemStack {
	var stack iterItemStack
	stack.pushLink(root)
	return stack
}

func (stack *iterItemStack) pop() *iterItem {
	if len(stack.things) > 0 {
		popped := stack.things[len(stack.things)-1]
		stack.things = stack.things[0 : len(stack.things)-1]
		return &popped
	}
	return nil
}

// pushNode pushes the node's links and entries so that they pop in key order.
func (stack *iterItemStack) pushNode(n *node) {
	for j := range n.keys {
		i := len(n.keys) - j
		stack.pushLink(n.links[i])
		stack.pushYield(n, i-1)
	}
	stack.pushLink(n.links[0])
}

func (stack *iterItemStack) pushLink(link *node) {
	if link != nil {
		stack.push(&iterItem{considerLink: link})
	}
}

func (stack *iterItemStack) pushYield(n *node, i int) {
	stack.push(&iterItem{yield: entry{n.keys[i], n.values[i]}})
}

func (stack *iterItemStack) push(item *iterItem) {
	stack.things = append(stack.things, *item)
}
