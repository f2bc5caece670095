package tree

import (
	"iter"

	"github.com/benz9527/xcontainer/lib/infra"
)

// go install golang.org/x/tools/cmd/stringer@latest

//go:generate stringer -type=RBColor
type RBColor uint8

const (
	Black RBColor = iota
	Red
)

//go:generate stringer -type=RBDirection
type RBDirection int8

const (
	Left RBDirection = -1 + iota
	Root
	Right
)

// RBNode is a read-only view of a tree vertex.
// The side of parent is derived from the parent's left link,
// so there is no separate flag to keep in sync.
type RBNode[K infra.OrderedKey, V any] interface {
	Key() K
	Val() V
	// HasKeyVal reports whether the node is still linked into a tree.
	// It turns false once the node has been removed or the tree cleared.
	HasKeyVal() bool
	Color() RBColor
	Direction() RBDirection
	Left() RBNode[K, V]
	Right() RBNode[K, V]
	Parent() RBNode[K, V]
}

// RBInsertResult pairs the position of an element with whether
// the insertion actually created it.
type RBInsertResult[K infra.OrderedKey, V any] struct {
	Iter     RBIterator[K, V]
	Inserted bool
}

type RBTree[K infra.OrderedKey, V any] interface {
	Len() int64
	IsEmpty() bool
	MaxLen() int64
	Root() RBNode[K, V]
	// AllowDuplicate reports the key policy of the tree.
	AllowDuplicate() bool

	// Insert adds key and val as a new node.
	// With the unique key policy an existing equal key is left untouched
	// and returned with false.
	Insert(key K, val V) (RBNode[K, V], bool)
	// InsertOrAssign is Insert except that, under the unique key policy,
	// the value of an existing equal key is replaced in place.
	InsertOrAssign(key K, val V) (RBNode[K, V], bool)

	// Remove deletes the first node equal to key. Absent keys are a no-op.
	Remove(key K) (RBNode[K, V], bool)
	// RemoveAll deletes every node equal to key and returns how many were removed.
	RemoveAll(key K) int64
	RemoveNode(node RBNode[K, V]) error
	RemoveMin() (RBNode[K, V], error)
	RemoveMax() (RBNode[K, V], error)
	// Erase removes the element under it and returns the iterator to its successor.
	Erase(it RBIterator[K, V]) RBIterator[K, V]

	// Search returns the first node equal to key or nil.
	Search(key K) RBNode[K, V]
	Minimum(x RBNode[K, V]) RBNode[K, V]
	Maximum(x RBNode[K, V]) RBNode[K, V]
	Count(key K) int64
	Contains(key K) bool

	Begin() RBIterator[K, V]
	End() RBIterator[K, V]
	IteratorAt(node RBNode[K, V]) RBIterator[K, V]
	Find(key K) RBIterator[K, V]
	LowerBound(key K) RBIterator[K, V]
	UpperBound(key K) RBIterator[K, V]
	EqualRange(key K) (RBIterator[K, V], RBIterator[K, V])

	Foreach(action func(idx int64, color RBColor, key K, val V) bool)
	All() iter.Seq2[K, V]
	Backward() iter.Seq2[K, V]
	Keys() iter.Seq[K]
	Values() iter.Seq[V]

	// Clone returns a deep copy with identical shape and colors.
	Clone() RBTree[K, V]
	// Move hands all nodes over to a new tree and leaves the receiver empty.
	Move() RBTree[K, V]
	// Swap exchanges the nodes of both trees. Iterators to elements
	// follow their nodes into the other tree.
	Swap(other RBTree[K, V])
	// Merge drains other into the receiver and leaves other empty.
	Merge(other RBTree[K, V])
	Clear()
}
