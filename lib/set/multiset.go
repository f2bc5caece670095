package set

import (
	"github.com/benz9527/xcontainer/lib/infra"
	"github.com/benz9527/xcontainer/lib/tree"
)

// MultiSet keeps equal keys side by side in insertion order.
type MultiSet[K infra.OrderedKey] struct {
	keySet[K]
}

// NewMultiSet builds an empty multiset. Unique key options are overridden.
func NewMultiSet[K infra.OrderedKey](opts ...tree.RBTreeOpt[K, void]) *MultiSet[K] {
	return &MultiSet[K]{
		keySet: keySet[K]{
			tree: tree.NewRBTree[K, void](append(opts[:len(opts):len(opts)], tree.WithRBTreeDuplicateKey[K, void]())...),
		},
	}
}

// RemoveAll deletes every element equal to key.
func (s *MultiSet[K]) RemoveAll(key K) int64 {
	return s.tree.RemoveAll(key)
}

func (s *MultiSet[K]) Swap(other *MultiSet[K]) {
	s.tree.Swap(other.tree)
}

// Merge moves every element of other into s and leaves other empty.
func (s *MultiSet[K]) Merge(other *MultiSet[K]) {
	if other == nil || other == s {
		return
	}
	s.tree.Merge(other.tree)
}

func (s *MultiSet[K]) Clone() *MultiSet[K] {
	return &MultiSet[K]{keySet: keySet[K]{tree: s.tree.Clone()}}
}

func (s *MultiSet[K]) Move() *MultiSet[K] {
	return &MultiSet[K]{keySet: keySet[K]{tree: s.tree.Move()}}
}
