package set

import (
	"iter"

	"github.com/samber/lo"

	"github.com/benz9527/xcontainer/lib/infra"
	"github.com/benz9527/xcontainer/lib/tree"
)

type void = struct{}

// keySet holds the operations shared by both key policies.
type keySet[K infra.OrderedKey] struct {
	tree tree.RBTree[K, void]
}

// Tree exposes the backing tree for validation and inspection.
func (s *keySet[K]) Tree() tree.RBTree[K, void] {
	return s.tree
}

func (s *keySet[K]) Len() int64 {
	return s.tree.Len()
}

func (s *keySet[K]) MaxLen() int64 {
	return s.tree.MaxLen()
}

func (s *keySet[K]) IsEmpty() bool {
	return s.tree.IsEmpty()
}

func (s *keySet[K]) Insert(key K) (tree.RBIterator[K, void], bool) {
	node, inserted := s.tree.Insert(key, void{})
	return s.tree.IteratorAt(node), inserted
}

func (s *keySet[K]) InsertMany(keys ...K) []tree.RBInsertResult[K, void] {
	return lo.Map(keys, func(key K, _ int) tree.RBInsertResult[K, void] {
		it, inserted := s.Insert(key)
		return tree.RBInsertResult[K, void]{Iter: it, Inserted: inserted}
	})
}

// Remove deletes one element equal to key.
func (s *keySet[K]) Remove(key K) bool {
	_, ok := s.tree.Remove(key)
	return ok
}

func (s *keySet[K]) Erase(it tree.RBIterator[K, void]) tree.RBIterator[K, void] {
	return s.tree.Erase(it)
}

func (s *keySet[K]) Contains(key K) bool {
	return s.tree.Contains(key)
}

func (s *keySet[K]) Count(key K) int64 {
	return s.tree.Count(key)
}

// Find returns the first element equal to key or end.
func (s *keySet[K]) Find(key K) tree.RBIterator[K, void] {
	return s.tree.Find(key)
}

func (s *keySet[K]) LowerBound(key K) tree.RBIterator[K, void] {
	return s.tree.LowerBound(key)
}

func (s *keySet[K]) UpperBound(key K) tree.RBIterator[K, void] {
	return s.tree.UpperBound(key)
}

func (s *keySet[K]) EqualRange(key K) (tree.RBIterator[K, void], tree.RBIterator[K, void]) {
	return s.tree.EqualRange(key)
}

func (s *keySet[K]) Begin() tree.RBIterator[K, void] {
	return s.tree.Begin()
}

func (s *keySet[K]) End() tree.RBIterator[K, void] {
	return s.tree.End()
}

func (s *keySet[K]) All() iter.Seq[K] {
	return s.tree.Keys()
}

func (s *keySet[K]) Backward() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range s.tree.Backward() {
			if !yield(k) {
				return
			}
		}
	}
}

func (s *keySet[K]) Clear() {
	s.tree.Clear()
}

// Set keeps every key at most once.
type Set[K infra.OrderedKey] struct {
	keySet[K]
}

// NewSet builds an empty set. Duplicate key options are overridden.
func NewSet[K infra.OrderedKey](opts ...tree.RBTreeOpt[K, void]) *Set[K] {
	return &Set[K]{
		keySet: keySet[K]{
			tree: tree.NewRBTree[K, void](append(opts[:len(opts):len(opts)], tree.WithRBTreeUniqueKey[K, void]())...),
		},
	}
}

func (s *Set[K]) Swap(other *Set[K]) {
	s.tree.Swap(other.tree)
}

// Merge moves the keys of other into s, keys already in s are
// dropped, and leaves other empty.
func (s *Set[K]) Merge(other *Set[K]) {
	if other == nil || other == s {
		return
	}
	s.tree.Merge(other.tree)
}

func (s *Set[K]) Clone() *Set[K] {
	return &Set[K]{keySet: keySet[K]{tree: s.tree.Clone()}}
}

func (s *Set[K]) Move() *Set[K] {
	return &Set[K]{keySet: keySet[K]{tree: s.tree.Move()}}
}
