package tree

import (
	"github.com/benz9527/xcontainer/lib/infra"
)

// RBIterator is a cursor over one tree. The zero node is the end
// position, one past the last element.
// An iterator stays valid until the node under it is removed. Removing
// other nodes, including two children deletion around it, keeps it
// valid.
type RBIterator[K infra.OrderedKey, V any] struct {
	tree *rbTree[K, V]
	node *rbNode[K, V]
}

func (it RBIterator[K, V]) IsEnd() bool {
	return it.node == nil
}

// Valid reports whether the iterator can be dereferenced.
func (it RBIterator[K, V]) Valid() bool {
	return it.node != nil && it.node.hasKV
}

func (it RBIterator[K, V]) Key() K {
	if !it.Valid() {
		panic(ErrRBTreeIteratorInvalid)
	}
	return it.node.key
}

func (it RBIterator[K, V]) Val() V {
	if !it.Valid() {
		panic(ErrRBTreeIteratorInvalid)
	}
	return it.node.val
}

// SetVal assigns the value in place. The key is immutable.
func (it RBIterator[K, V]) SetVal(val V) error {
	if !it.Valid() {
		return ErrRBTreeIteratorInvalid
	}
	it.node.val = val
	return nil
}

func (it RBIterator[K, V]) Node() (RBNode[K, V], error) {
	if !it.Valid() {
		return nil, ErrRBTreeIteratorInvalid
	}
	return it.node, nil
}

// Next steps to the successor. End stays at end.
func (it RBIterator[K, V]) Next() RBIterator[K, V] {
	if it.node == nil {
		return it
	}
	if !it.node.hasKV {
		panic(ErrRBTreeIteratorInvalid)
	}
	return RBIterator[K, V]{tree: it.tree, node: it.node.succ()}
}

// Prev steps to the predecessor. End steps back to the maximum and the
// first element steps to end.
func (it RBIterator[K, V]) Prev() RBIterator[K, V] {
	if it.node == nil {
		if it.tree == nil {
			return it
		}
		return RBIterator[K, V]{tree: it.tree, node: it.tree.root.maximum()}
	}
	if !it.node.hasKV {
		panic(ErrRBTreeIteratorInvalid)
	}
	return RBIterator[K, V]{tree: it.tree, node: it.node.pred()}
}

// Equal compares element positions by node, so an iterator taken before
// Swap or Move still matches one taken after. End positions are equal
// within one tree only.
func (it RBIterator[K, V]) Equal(other RBIterator[K, V]) bool {
	if it.node != nil || other.node != nil {
		return it.node == other.node
	}
	return it.tree == other.tree
}
