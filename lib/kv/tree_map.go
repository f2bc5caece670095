package kv

import (
	"iter"

	"github.com/samber/lo"

	"github.com/benz9527/xcontainer/lib/infra"
	"github.com/benz9527/xcontainer/lib/tree"
)

var (
	_ OrderedMap[uint8, struct{}] = (*TreeMap[uint8, struct{}])(nil)
)

// TreeMap is an ordered map over the rbtree with the unique key policy.
type TreeMap[K infra.OrderedKey, V any] struct {
	tree tree.RBTree[K, V]
}

// NewTreeMap builds an empty map. Duplicate key options are overridden.
func NewTreeMap[K infra.OrderedKey, V any](opts ...tree.RBTreeOpt[K, V]) *TreeMap[K, V] {
	return &TreeMap[K, V]{
		tree: tree.NewRBTree[K, V](append(opts[:len(opts):len(opts)], tree.WithRBTreeUniqueKey[K, V]())...),
	}
}

// Tree exposes the backing tree for validation and inspection.
func (m *TreeMap[K, V]) Tree() tree.RBTree[K, V] {
	return m.tree
}

func (m *TreeMap[K, V]) Len() int64 {
	return m.tree.Len()
}

func (m *TreeMap[K, V]) MaxLen() int64 {
	return m.tree.MaxLen()
}

func (m *TreeMap[K, V]) IsEmpty() bool {
	return m.tree.IsEmpty()
}

func (m *TreeMap[K, V]) At(key K) (V, error) {
	node := m.tree.Search(key)
	if node == nil {
		return *new(V), ErrKeyOutOfRange
	}
	return node.Val(), nil
}

func (m *TreeMap[K, V]) Access(key K) V {
	node, _ := m.tree.Insert(key, *new(V))
	return node.Val()
}

func (m *TreeMap[K, V]) Get(key K) (V, bool) {
	node := m.tree.Search(key)
	if node == nil {
		return *new(V), false
	}
	return node.Val(), true
}

func (m *TreeMap[K, V]) LoadOrStore(key K, val V) (actual V, loaded bool) {
	node, inserted := m.tree.Insert(key, val)
	return node.Val(), !inserted
}

func (m *TreeMap[K, V]) Insert(key K, val V) (tree.RBIterator[K, V], bool) {
	node, inserted := m.tree.Insert(key, val)
	return m.tree.IteratorAt(node), inserted
}

func (m *TreeMap[K, V]) InsertOrAssign(key K, val V) (tree.RBIterator[K, V], bool) {
	node, inserted := m.tree.InsertOrAssign(key, val)
	return m.tree.IteratorAt(node), inserted
}

func (m *TreeMap[K, V]) InsertMany(items ...KeyValue[K, V]) []tree.RBInsertResult[K, V] {
	return lo.Map(items, func(item KeyValue[K, V], _ int) tree.RBInsertResult[K, V] {
		it, inserted := m.Insert(item.Key, item.Val)
		return tree.RBInsertResult[K, V]{Iter: it, Inserted: inserted}
	})
}

func (m *TreeMap[K, V]) Remove(key K) (V, bool) {
	node, ok := m.tree.Remove(key)
	if !ok {
		return *new(V), false
	}
	return node.Val(), true
}

func (m *TreeMap[K, V]) Erase(it tree.RBIterator[K, V]) tree.RBIterator[K, V] {
	return m.tree.Erase(it)
}

func (m *TreeMap[K, V]) Contains(key K) bool {
	return m.tree.Contains(key)
}

func (m *TreeMap[K, V]) Find(key K) tree.RBIterator[K, V] {
	return m.tree.Find(key)
}

func (m *TreeMap[K, V]) LowerBound(key K) tree.RBIterator[K, V] {
	return m.tree.LowerBound(key)
}

func (m *TreeMap[K, V]) UpperBound(key K) tree.RBIterator[K, V] {
	return m.tree.UpperBound(key)
}

func (m *TreeMap[K, V]) Begin() tree.RBIterator[K, V] {
	return m.tree.Begin()
}

func (m *TreeMap[K, V]) End() tree.RBIterator[K, V] {
	return m.tree.End()
}

func (m *TreeMap[K, V]) All() iter.Seq2[K, V] {
	return m.tree.All()
}

func (m *TreeMap[K, V]) Backward() iter.Seq2[K, V] {
	return m.tree.Backward()
}

func (m *TreeMap[K, V]) Keys() iter.Seq[K] {
	return m.tree.Keys()
}

func (m *TreeMap[K, V]) Values() iter.Seq[V] {
	return m.tree.Values()
}

func (m *TreeMap[K, V]) Clear() {
	m.tree.Clear()
}

func (m *TreeMap[K, V]) Swap(other *TreeMap[K, V]) {
	m.tree.Swap(other.tree)
}

// Merge moves every key of other not yet present into m and leaves
// other empty.
func (m *TreeMap[K, V]) Merge(other *TreeMap[K, V]) {
	if other == nil || other == m {
		return
	}
	m.tree.Merge(other.tree)
}

func (m *TreeMap[K, V]) Clone() *TreeMap[K, V] {
	return &TreeMap[K, V]{tree: m.tree.Clone()}
}

func (m *TreeMap[K, V]) Move() *TreeMap[K, V] {
	return &TreeMap[K, V]{tree: m.tree.Move()}
}
