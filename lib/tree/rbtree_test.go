package tree

import (
	"context"
	"errors"
	randv2 "math/rand/v2"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/benz9527/xcontainer/lib/id"
	"github.com/benz9527/xcontainer/lib/infra"
)

type checkData[K infra.OrderedKey] struct {
	color RBColor
	key   K
}

func requireShape[K infra.OrderedKey, V any](t *testing.T, tree RBTree[K, V], expected []checkData[K]) {
	require.Equal(t, int64(len(expected)), tree.Len())
	tree.Foreach(func(idx int64, color RBColor, key K, val V) bool {
		require.Equal(t, expected[idx].color, color, "idx %d", idx)
		require.Equal(t, expected[idx].key, key, "idx %d", idx)
		return true
	})
	require.NoError(t, Validate[K, V](tree))
}

func collectKeys[K infra.OrderedKey, V any](tree RBTree[K, V]) []K {
	return slices.Collect(tree.Keys())
}

func TestNilNode(t *testing.T) {
	var nilNode RBNode[uint64, uint64] = nil
	require.True(t, nilNode == nil)

	var nilNode2 *rbNode[uint64, uint64] = nil
	nilNode = nilNode2
	require.True(t, nilNode != nil)
	require.Nil(t, nilNode)

	tree := NewRBTree[uint64, uint64]()
	require.True(t, tree.Root() == nil)
	require.True(t, tree.Search(1) == nil)
	require.True(t, tree.IsEmpty())
}

func TestRbtreeLeftAndRightRotate_Pred(t *testing.T) {
	tree := NewRBTree[uint64, uint64]()

	tree.Insert(52, 1)
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{{Black, 52}})

	tree.Insert(47, 1)
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{{Red, 47}, {Black, 52}})

	tree.Insert(3, 1)
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{{Red, 3}, {Black, 47}, {Red, 52}})

	tree.Insert(35, 1)
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{
		{Black, 3}, {Red, 35}, {Black, 47}, {Black, 52},
	})

	tree.Insert(24, 1)
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{
		{Red, 3}, {Black, 24}, {Red, 35}, {Black, 47}, {Black, 52},
	})
	require.Equal(t, uint64(47), tree.Root().Key())
	require.Equal(t, uint64(24), tree.Root().Left().Key())

	// remove

	x, ok := tree.Remove(24)
	require.True(t, ok)
	require.Equal(t, uint64(24), x.Key())
	require.False(t, x.HasKeyVal())
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{
		{Black, 3}, {Red, 35}, {Black, 47}, {Black, 52},
	})

	x, ok = tree.Remove(47)
	require.True(t, ok)
	require.Equal(t, uint64(47), x.Key())
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{
		{Black, 3}, {Black, 35}, {Black, 52},
	})
	require.Equal(t, uint64(35), tree.Root().Key())

	x, err := tree.RemoveMin()
	require.NoError(t, err)
	require.Equal(t, uint64(3), x.Key())
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{{Black, 35}, {Red, 52}})

	x, err = tree.RemoveMin()
	require.NoError(t, err)
	require.Equal(t, uint64(35), x.Key())
	requireShape[uint64, uint64](t, tree, []checkData[uint64]{{Black, 52}})

	x, err = tree.RemoveMin()
	require.NoError(t, err)
	require.Equal(t, uint64(52), x.Key())
	require.Equal(t, int64(0), tree.Len())
	require.Nil(t, tree.Root())

	_, err = tree.RemoveMin()
	require.ErrorIs(t, err, ErrRBTreeEmpty)
	_, err = tree.RemoveMax()
	require.ErrorIs(t, err, ErrRBTreeEmpty)
}

func TestRbtree_RemoveTwoChildren(t *testing.T) {
	type testcase struct {
		name       string
		rbRmBySucc bool
		expected   []checkData[int]
		root       int
	}
	testcases := []testcase{
		{
			name: "rm by pred",
			expected: []checkData[int]{
				{Red, 1}, {Black, 3}, {Black, 4}, {Red, 7}, {Black, 8}, {Red, 9},
			},
			root: 4,
		},
		{
			name:       "rm by succ",
			rbRmBySucc: true,
			expected: []checkData[int]{
				{Red, 1}, {Black, 3}, {Red, 4}, {Black, 7}, {Black, 8}, {Red, 9},
			},
			root: 7,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			opts := []RBTreeOpt[int, string]{}
			if tc.rbRmBySucc {
				opts = append(opts, WithRBTreeRemoveBorrowSucc[int, string]())
			}
			tree := NewRBTree[int, string](opts...)
			for _, k := range []int{5, 3, 8, 1, 4, 7, 9} {
				_, ok := tree.Insert(k, "v")
				require.True(tt, ok)
			}
			require.Equal(tt, []int{1, 3, 4, 5, 7, 8, 9}, collectKeys(tree))
			require.Equal(tt, Black, tree.Root().Color())

			_, ok := tree.Remove(5)
			require.True(tt, ok)
			require.Equal(tt, []int{1, 3, 4, 7, 8, 9}, collectKeys(tree))
			require.Equal(tt, int64(6), tree.Len())
			require.Equal(tt, tc.root, tree.Root().Key())
			requireShape[int, string](tt, tree, tc.expected)
		})
	}
}

func TestRbtree_IteratorSurvivesTwoChildrenRemove(t *testing.T) {
	tree := NewRBTree[int, string]()
	for _, k := range []int{5, 3, 8, 1, 4, 7, 9} {
		tree.Insert(k, "v")
	}

	// 4 is the pred of 5, its node is relocated into the root slot.
	movedIt := tree.Find(4)
	removedIt := tree.Find(5)
	require.True(t, movedIt.Valid())
	require.True(t, removedIt.Valid())

	_, ok := tree.Remove(5)
	require.True(t, ok)

	require.True(t, movedIt.Valid())
	require.Equal(t, 4, movedIt.Key())
	require.Equal(t, "v", movedIt.Val())
	node, err := movedIt.Node()
	require.NoError(t, err)
	require.Equal(t, Root, node.Direction())
	require.Equal(t, 7, movedIt.Next().Key())
	require.Equal(t, 3, movedIt.Prev().Key())

	require.False(t, removedIt.Valid())
	require.False(t, removedIt.IsEnd())
	_, err = removedIt.Node()
	require.ErrorIs(t, err, ErrRBTreeIteratorInvalid)
	require.Panics(t, func() { _ = removedIt.Key() })
	require.Panics(t, func() { _ = removedIt.Next() })
	require.ErrorIs(t, removedIt.SetVal("x"), ErrRBTreeIteratorInvalid)
}

func TestRbtree_Iterator(t *testing.T) {
	tree := NewRBTree[int, int]()
	require.True(t, tree.Begin().Equal(tree.End()))
	require.True(t, tree.End().Prev().IsEnd())

	for i := 1; i <= 5; i++ {
		tree.Insert(i*10, i)
	}

	keys := make([]int, 0, 5)
	for it := tree.Begin(); !it.IsEnd(); it = it.Next() {
		keys = append(keys, it.Key())
	}
	require.Equal(t, []int{10, 20, 30, 40, 50}, keys)

	keys = keys[:0]
	for it := tree.End().Prev(); !it.IsEnd(); it = it.Prev() {
		keys = append(keys, it.Key())
	}
	require.Equal(t, []int{50, 40, 30, 20, 10}, keys)

	end := tree.End()
	require.True(t, end.Next().IsEnd())
	require.Panics(t, func() { _ = end.Key() })
	require.Panics(t, func() { _ = end.Val() })
	_, err := end.Node()
	require.ErrorIs(t, err, ErrRBTreeIteratorInvalid)
	require.True(t, tree.Begin().Prev().Equal(end))

	it := tree.Find(30)
	require.NoError(t, it.SetVal(300))
	v := tree.Search(30)
	require.Equal(t, 300, v.Val())
	require.True(t, tree.IteratorAt(v).Equal(it))
	require.True(t, tree.Find(35).IsEnd())

	next := tree.Erase(it)
	require.Equal(t, 40, next.Key())
	require.False(t, it.Valid())
	require.True(t, tree.Erase(it).IsEnd())
	require.True(t, tree.Erase(tree.Find(50)).IsEnd())
	require.Equal(t, []int{10, 20, 40}, collectKeys(tree))

	other := NewRBTree[int, int]()
	other.Insert(10, 1)
	require.True(t, tree.Erase(other.Begin()).IsEnd())
	require.Equal(t, int64(3), tree.Len())
	require.Equal(t, int64(1), other.Len())
}

func TestRbtree_Bounds(t *testing.T) {
	type testcase struct {
		name  string
		opts  []RBTreeOpt[int, struct{}]
		keys  []int
		query int
		lower int
		upper int
		count int64
	}
	const end = -1
	testcases := []testcase{
		{name: "asc hit", keys: []int{10, 20, 30}, query: 20, lower: 20, upper: 30, count: 1},
		{name: "asc miss", keys: []int{10, 20, 30}, query: 21, lower: 30, upper: 30, count: 0},
		{name: "asc before begin", keys: []int{10, 20, 30}, query: 5, lower: 10, upper: 10, count: 0},
		{name: "asc past end", keys: []int{10, 20, 30}, query: 30, lower: 30, upper: end, count: 1},
		{name: "asc empty", query: 30, lower: end, upper: end, count: 0},
		{
			name:  "desc hit",
			opts:  []RBTreeOpt[int, struct{}]{WithRBTreeDesc[int, struct{}]()},
			keys:  []int{10, 20, 30},
			query: 20, lower: 20, upper: 10, count: 1,
		},
		{
			name:  "desc miss",
			opts:  []RBTreeOpt[int, struct{}]{WithRBTreeDesc[int, struct{}]()},
			keys:  []int{10, 20, 30},
			query: 25, lower: 20, upper: 20, count: 0,
		},
		{
			name:  "duplicate range",
			opts:  []RBTreeOpt[int, struct{}]{WithRBTreeDuplicateKey[int, struct{}]()},
			keys:  []int{20, 10, 20, 30, 20},
			query: 20, lower: 20, upper: 30, count: 3,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			tree := NewRBTree[int, struct{}](tc.opts...)
			for _, k := range tc.keys {
				tree.Insert(k, struct{}{})
			}
			require.NoError(tt, Validate[int, struct{}](tree))

			lo, hi := tree.EqualRange(tc.query)
			require.True(tt, lo.Equal(tree.LowerBound(tc.query)))
			require.True(tt, hi.Equal(tree.UpperBound(tc.query)))
			if tc.lower == end {
				require.True(tt, lo.IsEnd())
			} else {
				require.Equal(tt, tc.lower, lo.Key())
			}
			if tc.upper == end {
				require.True(tt, hi.IsEnd())
			} else {
				require.Equal(tt, tc.upper, hi.Key())
			}

			n := int64(0)
			for it := lo; !it.Equal(hi); it = it.Next() {
				n++
			}
			require.Equal(tt, tc.count, n)
			require.Equal(tt, tc.count, tree.Count(tc.query))
			require.Equal(tt, tc.count > 0, tree.Contains(tc.query))
		})
	}
}

func TestRbtree_UniqueInsertIdempotent(t *testing.T) {
	tree := NewRBTree[string, int]()
	n1, ok := tree.Insert("a", 1)
	require.True(t, ok)
	n2, ok := tree.Insert("a", 2)
	require.False(t, ok)
	require.True(t, n1 == n2)
	require.Equal(t, 1, n2.Val())
	require.Equal(t, int64(1), tree.Len())

	n3, ok := tree.InsertOrAssign("a", 3)
	require.False(t, ok)
	require.True(t, n1 == n3)
	require.Equal(t, 3, tree.Search("a").Val())
	require.Equal(t, int64(1), tree.Len())

	_, ok = tree.Remove("b")
	require.False(t, ok)
	require.Equal(t, int64(1), tree.Len())
	require.Equal(t, int64(0), tree.RemoveAll("b"))
	require.Equal(t, int64(1), tree.RemoveAll("a"))
	require.True(t, tree.IsEmpty())
}

func TestRbtree_Duplicate(t *testing.T) {
	tree := NewRBTree[int, int](WithRBTreeDuplicateKey[int, int]())
	require.True(t, tree.AllowDuplicate())
	for i, k := range []int{1, 2, 3, 1, 6, 10, 6, 3, 3, 1} {
		_, ok := tree.Insert(k, i)
		require.True(t, ok)
	}
	require.NoError(t, Validate[int, int](tree))
	require.Equal(t, int64(10), tree.Len())
	require.Equal(t, []int{1, 1, 1, 2, 3, 3, 3, 6, 6, 10}, collectKeys(tree))
	require.Equal(t, int64(3), tree.Count(1))
	require.Equal(t, int64(1), tree.Count(2))
	require.Equal(t, int64(3), tree.Count(3))
	require.Equal(t, int64(2), tree.Count(6))
	require.Equal(t, int64(1), tree.Count(10))
	require.Equal(t, int64(0), tree.Count(4))

	// Equal keys keep insertion order.
	vals := make([]int, 0, 3)
	lo, hi := tree.EqualRange(1)
	for it := lo; !it.Equal(hi); it = it.Next() {
		vals = append(vals, it.Val())
	}
	require.Equal(t, []int{0, 3, 9}, vals)

	x, ok := tree.Remove(1)
	require.True(t, ok)
	require.Equal(t, 0, x.Val())
	require.Equal(t, int64(2), tree.Count(1))

	require.Equal(t, int64(3), tree.RemoveAll(3))
	require.Equal(t, int64(0), tree.Count(3))
	require.Equal(t, []int{1, 1, 2, 6, 6, 10}, collectKeys(tree))
	require.NoError(t, Validate[int, int](tree))
}

func TestRbtree_CloneMoveSwap(t *testing.T) {
	tree := NewRBTree[int, string]()
	for _, k := range []int{8, 4, 12, 2, 6, 10, 14, 1} {
		tree.Insert(k, "v")
	}
	shape := make([]checkData[int], 0, tree.Len())
	tree.Foreach(func(idx int64, color RBColor, key int, val string) bool {
		shape = append(shape, checkData[int]{color, key})
		return true
	})

	cp := tree.Clone()
	requireShape[int, string](t, cp, shape)
	require.Equal(t, tree.Root().Key(), cp.Root().Key())
	require.False(t, tree.Root() == cp.Root())

	tree.Remove(8)
	tree.Insert(100, "w")
	tree.Find(1).SetVal("changed")
	requireShape[int, string](t, cp, shape)
	require.Equal(t, "v", cp.Search(1).Val())

	mv := cp.Move()
	require.True(t, cp.IsEmpty())
	require.Nil(t, cp.Root())
	requireShape[int, string](t, mv, shape)

	tree.Swap(mv)
	requireShape[int, string](t, tree, shape)
	require.Equal(t, []int{1, 2, 4, 6, 10, 12, 14, 100}, collectKeys(mv))
	tree.Swap(tree)
	requireShape[int, string](t, tree, shape)
}

func TestRbtree_IteratorFollowsSwapAndMove(t *testing.T) {
	a := NewRBTree[int, int]()
	b := NewRBTree[int, int]()
	a.Insert(1, 1)
	b.Insert(2, 2)
	b.Insert(3, 3)

	it := a.Find(1)
	a.Swap(b)
	require.Equal(t, int64(2), a.Len())
	require.Equal(t, int64(1), b.Len())
	require.True(t, it.Valid())
	require.True(t, it.Equal(b.Find(1)))

	// Only the tree now holding the node erases it.
	require.True(t, a.Erase(it).IsEnd())
	require.Equal(t, int64(2), a.Len())
	next := b.Erase(it)
	require.True(t, next.Equal(b.End()))
	require.Equal(t, int64(0), b.Len())
	require.False(t, it.Valid())
	require.Equal(t, []int{2, 3}, collectKeys(a))
	require.NoError(t, Validate[int, int](a))
	require.NoError(t, Validate[int, int](b))

	it = a.Find(2)
	mv := a.Move()
	require.True(t, a.Erase(it).IsEnd())
	require.Equal(t, int64(2), mv.Len())
	next = mv.Erase(it)
	require.Equal(t, 3, next.Key())
	require.True(t, next.Equal(mv.Begin()))
	require.Equal(t, int64(1), mv.Len())
	require.True(t, mv.IteratorAt(mv.Search(3)).Equal(next))
	require.NoError(t, Validate[int, int](mv))
}

func TestRbtree_SwapOrdering(t *testing.T) {
	asc := NewRBTree[int, int]()
	desc := NewRBTree[int, int](WithRBTreeDesc[int, int](), WithRBTreeDuplicateKey[int, int]())
	for _, k := range []int{3, 1, 2} {
		asc.Insert(k, k)
		desc.Insert(k, k)
	}
	asc.Swap(desc)
	require.True(t, asc.AllowDuplicate())
	require.False(t, desc.AllowDuplicate())
	asc.Insert(2, 2)
	desc.Insert(0, 0)
	require.Equal(t, []int{3, 2, 2, 1}, collectKeys(asc))
	require.Equal(t, []int{0, 1, 2, 3}, collectKeys(desc))
	require.NoError(t, Validate[int, int](asc))
	require.NoError(t, Validate[int, int](desc))
}

func TestRbtree_MergeTypedNil(t *testing.T) {
	tree := NewRBTree[int, int]()
	tree.Insert(1, 1)
	var other *rbTree[int, int]
	require.NotPanics(t, func() {
		tree.Merge(other)
	})
	require.Equal(t, int64(1), tree.Len())
}

func TestRbtree_Merge(t *testing.T) {
	a := NewRBTree[int, int]()
	b := NewRBTree[int, int]()
	for i := 1; i <= 5; i++ {
		a.Insert(i, i)
	}
	for i := 6; i <= 10; i++ {
		b.Insert(i, i)
	}
	b.Merge(a)
	require.Equal(t, int64(10), b.Len())
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, collectKeys(b))
	require.True(t, a.IsEmpty())
	require.NoError(t, Validate[int, int](b))

	// Unique trees drop the duplicates of other.
	c := NewRBTree[int, int]()
	c.Insert(3, 300)
	c.Insert(11, 11)
	b.Merge(c)
	require.Equal(t, int64(11), b.Len())
	require.Equal(t, 3, b.Search(3).Val())
	require.True(t, c.IsEmpty())

	b.Merge(b)
	require.Equal(t, int64(11), b.Len())
}

func TestRbtree_ClearInvalidatesIterators(t *testing.T) {
	tree := NewRBTree[int, int]()
	for i := 0; i < 32; i++ {
		tree.Insert(i, i)
	}
	its := []RBIterator[int, int]{tree.Begin(), tree.Find(16), tree.End().Prev()}
	root := tree.Root()
	tree.Clear()
	require.True(t, tree.IsEmpty())
	require.Nil(t, tree.Root())
	require.False(t, root.HasKeyVal())
	for _, it := range its {
		require.False(t, it.Valid())
	}
	require.ErrorIs(t, tree.RemoveNode(root), ErrRBTreeNodeInvalid)
}

func TestRbtree_RemoveNode(t *testing.T) {
	tree := NewRBTree[int, int]()
	other := NewRBTree[int, int]()
	for i := 0; i < 10; i++ {
		tree.Insert(i, i)
		other.Insert(i, i)
	}
	require.ErrorIs(t, tree.RemoveNode(nil), ErrRBTreeNodeInvalid)
	require.ErrorIs(t, tree.RemoveNode(other.Search(3)), ErrRBTreeNodeNotFound)

	node := tree.Search(3)
	require.NoError(t, tree.RemoveNode(node))
	require.ErrorIs(t, tree.RemoveNode(node), ErrRBTreeNodeInvalid)
	require.Equal(t, int64(9), tree.Len())
	require.False(t, tree.Contains(3))

	require.Equal(t, 0, tree.Minimum(tree.Root()).Key())
	require.Equal(t, 9, tree.Maximum(tree.Root()).Key())
	require.Nil(t, tree.Minimum(nil))

	x, err := tree.RemoveMax()
	require.NoError(t, err)
	require.Equal(t, 9, x.Key())
	require.NoError(t, Validate[int, int](tree))
}

func TestRbtree_RangeOverFunc(t *testing.T) {
	tree := NewRBTree[int, int]()
	for i := 9; i >= 0; i-- {
		tree.Insert(i, i*i)
	}

	backward := make([]int, 0, 10)
	for k := range tree.Backward() {
		backward = append(backward, k)
	}
	require.Equal(t, []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, backward)
	require.Equal(t, []int{0, 1, 4, 9, 16, 25, 36, 49, 64, 81}, slices.Collect(tree.Values()))

	// Removing the element just yielded is allowed.
	for k := range tree.All() {
		if k%2 == 0 {
			tree.Remove(k)
		}
	}
	require.Equal(t, []int{1, 3, 5, 7, 9}, collectKeys(tree))
	require.NoError(t, Validate[int, int](tree))

	n := 0
	for range tree.All() {
		if n++; n == 2 {
			break
		}
	}
	require.Equal(t, 2, n)

	visited := int64(0)
	tree.Foreach(func(idx int64, color RBColor, key int, val int) bool {
		visited = idx + 1
		return idx < 2
	})
	require.Equal(t, int64(3), visited)
}

func TestRbtree_Comparator(t *testing.T) {
	tree := NewRBTree[string, int](
		WithRBTreeComparator[string, int](infra.ReverseComparator(infra.AscOrderedKeyComparator[string])),
	)
	for i, k := range []string{"b", "a", "d", "c"} {
		tree.Insert(k, i)
	}
	require.Equal(t, []string{"d", "c", "b", "a"}, collectKeys(tree))
	require.NoError(t, Validate[string, int](tree))

	// Desc on top of a reversed comparator restores ascending order.
	tree = NewRBTree[string, int](
		WithRBTreeComparator[string, int](infra.DescOrderedKeyComparator[string]),
		WithRBTreeDesc[string, int](),
	)
	for i, k := range []string{"b", "a", "d", "c"} {
		tree.Insert(k, i)
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, collectKeys(tree))
}

func TestRbtree_Validators(t *testing.T) {
	tree := NewRBTree[int, int]().(*rbTree[int, int])
	for i := 0; i < 8; i++ {
		tree.Insert(i, i)
	}
	require.NoError(t, Validate[int, int](tree))

	tree.root.color = Red
	err := Validate[int, int](tree)
	require.ErrorIs(t, err, ErrRBTreeRootViolation)
	tree.root.color = Black

	leaf := tree.root.maximum()
	require.Equal(t, Red, leaf.color)
	leaf.parent.color = Red
	err = RedViolationValidate[int, int](tree)
	require.ErrorIs(t, err, ErrRBTreeRedViolation)
	leaf.parent.color = Black
	require.NoError(t, BlackViolationValidate[int, int](tree))
	leaf.parent.color = Red
	leaf.color = Black
	require.ErrorIs(t, Validate[int, int](tree), ErrRBTreeBlackViolation)
	leaf.parent.color, leaf.color = Black, Red
	require.NoError(t, Validate[int, int](tree))

	minimum := tree.root.minimum()
	minimum.key = 100
	require.ErrorIs(t, OrderViolationValidate[int, int](tree), ErrRBTreeOrderViolation)
	minimum.key = 0

	tree.count++
	require.ErrorIs(t, SizeViolationValidate[int, int](tree), ErrRBTreeSizeViolation)
	tree.count--

	saved := tree.root.left.parent
	tree.root.left.parent = nil
	require.ErrorIs(t, SizeViolationValidate[int, int](tree), ErrRBTreeLinkViolation)
	tree.root.left.parent = saved
	require.NoError(t, Validate[int, int](tree))
}

func TestRbtree_InvariantCheck(t *testing.T) {
	var violations []error
	tree := NewRBTree[int, int](WithRBTreeInvariantCheck[int, int](func(err error) {
		violations = append(violations, err)
	}))
	rng := randv2.New(randv2.NewPCG(7, 11))
	for i := 0; i < 2000; i++ {
		k := rng.IntN(200)
		if rng.IntN(3) == 0 {
			tree.Remove(k)
		} else {
			tree.Insert(k, i)
		}
	}
	require.Empty(t, violations)

	tree.(*rbTree[int, int]).count++
	tree.Insert(1000, 0)
	require.Len(t, violations, 1)
	require.ErrorIs(t, violations[0], ErrRBTreeSizeViolation)

	panicTree := NewRBTree[int, int](WithRBTreeInvariantCheck[int, int](nil))
	panicTree.Insert(1, 1)
	panicTree.(*rbTree[int, int]).count++
	require.Panics(t, func() {
		panicTree.Insert(2, 2)
	})
}

func collectSum(t *testing.T, reader sdkmetric.Reader, name string, kvs ...attribute.KeyValue) int64 {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	total := int64(0)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
		points:
			for _, dp := range sum.DataPoints {
				for _, kv := range kvs {
					v, ok := dp.Attributes.Value(kv.Key)
					if !ok || v.AsString() != kv.Value.AsString() {
						continue points
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestRbtree_Stats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		require.NoError(t, provider.Shutdown(context.Background()))
	}()

	tree := NewRBTree[int, int](WithRBTreeStats[int, int]("stats-test", provider))
	fixup := func(op, c string) int64 {
		return collectSum(t, reader, "rbtree.fixup.count",
			attribute.String("rbtree.fixup.op", op),
			attribute.String("rbtree.fixup.case", c),
		)
	}
	rotation := func(dir string) int64 {
		return collectSum(t, reader, "rbtree.rotation.count", attribute.String("rbtree.rotation.direction", dir))
	}

	// Inner grandchild, rotate the parent then the grandpa.
	for _, k := range []int{10, 20, 15} {
		tree.Insert(k, k)
	}
	require.Equal(t, int64(1), fixup("insert", "B"))
	require.Equal(t, int64(1), fixup("insert", "C"))
	require.Equal(t, int64(1), rotation("left"))
	require.Equal(t, int64(1), rotation("right"))

	// Red uncle, recolor only.
	tree.Insert(5, 5)
	require.Equal(t, int64(1), fixup("insert", "A"))
	require.Equal(t, int64(4), collectSum(t, reader, "rbtree.size"))

	tree.Insert(5, 50)
	tree.InsertOrAssign(5, 500)
	require.Equal(t, int64(4), collectSum(t, reader, "rbtree.insert.count",
		attribute.String("rbtree.insert.result", "inserted")))
	require.Equal(t, int64(1), collectSum(t, reader, "rbtree.insert.count",
		attribute.String("rbtree.insert.result", "present")))
	require.Equal(t, int64(1), collectSum(t, reader, "rbtree.insert.count",
		attribute.String("rbtree.insert.result", "assigned")))

	tree.Contains(5)
	tree.Contains(6)
	require.Equal(t, int64(1), collectSum(t, reader, "rbtree.search.count",
		attribute.String("rbtree.search.result", "miss")))

	tree.Clear()
	require.Equal(t, int64(0), collectSum(t, reader, "rbtree.size"))

	rng := randv2.New(randv2.NewPCG(1, 2))
	keys := rng.Perm(4096)
	for _, k := range keys {
		tree.Insert(k, k)
	}
	rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
	for _, k := range keys {
		_, ok := tree.Remove(k)
		require.True(t, ok)
	}
	for _, c := range []string{"2", "3", "4", "5", "6"} {
		require.Positive(t, fixup("remove", c), "remove case %s", c)
	}
	require.Equal(t, int64(4096), collectSum(t, reader, "rbtree.remove.count",
		attribute.String("rbtree.remove.result", "removed")))
	require.Equal(t, int64(0), collectSum(t, reader, "rbtree.size"))
}

func rbtreeRandomInsertAndRemoveSequentialNumberRunCore(t *testing.T, rbRmBySucc bool) {
	total := uint64(1000)
	insertTotal := uint64(float64(total) * 0.8)
	removeTotal := uint64(float64(total) * 0.2)

	opts := []RBTreeOpt[uint64, uint64]{}
	if rbRmBySucc {
		opts = append(opts, WithRBTreeRemoveBorrowSucc[uint64, uint64]())
	}
	tree := NewRBTree[uint64, uint64](opts...)

	for i := uint64(0); i < insertTotal; i++ {
		tree.Insert(i, 1)
		require.NoError(t, RedViolationValidate(tree))
		require.NoError(t, BlackViolationValidate(tree))
	}
	tree.Foreach(func(idx int64, color RBColor, key uint64, val uint64) bool {
		require.Equal(t, uint64(idx), key)
		return true
	})

	for i := insertTotal; i < removeTotal+insertTotal; i++ {
		tree.Insert(i, 1)
		require.NoError(t, RedViolationValidate(tree))
		require.NoError(t, BlackViolationValidate(tree))
	}

	for i := insertTotal; i < removeTotal+insertTotal; i++ {
		if i == 92 {
			require.Equal(t, uint64(92), tree.Search(i).Key())
		}
		x, ok := tree.Remove(i)
		require.True(t, ok)
		require.Equal(t, i, x.Key())
		require.NoError(t, Validate(tree))
	}
	tree.Foreach(func(idx int64, color RBColor, key uint64, val uint64) bool {
		require.Equal(t, uint64(idx), key)
		return true
	})
}

func TestRbtreeRandomInsertAndRemove_SequentialNumber(t *testing.T) {
	type testcase struct {
		name       string
		rbRmBySucc bool
	}
	testcases := []testcase{
		{
			name: "rm by pred",
		},
		{
			name:       "rm by succ",
			rbRmBySucc: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			rbtreeRandomInsertAndRemoveSequentialNumberRunCore(tt, tc.rbRmBySucc)
		})
	}
}

func TestRbtreeRandomInsertAndRemove_ReverseSequentialNumber(t *testing.T) {
	total := int64(10000)
	insertTotal := int64(float64(total) * 0.8)
	removeTotal := int64(float64(total) * 0.2)

	tree := NewRBTree[int64, uint64](WithRBTreeDesc[int64, uint64]())

	rand := int64(randv2.Uint32() % 1_000)
	for i := insertTotal - 1; i >= 0; i-- {
		tree.Insert(i, 1)
		if i%1000 == rand {
			require.NoError(t, Validate(tree))
		}
	}
	tree.Foreach(func(idx int64, color RBColor, key int64, val uint64) bool {
		require.Equal(t, insertTotal-1-idx, key)
		return true
	})

	for i := removeTotal + insertTotal - 1; i >= insertTotal; i-- {
		tree.Insert(i, 1)
	}
	tree.Foreach(func(idx int64, color RBColor, key int64, val uint64) bool {
		require.Equal(t, removeTotal+insertTotal-1-idx, key)
		return true
	})

	for i := insertTotal; i < removeTotal+insertTotal; i++ {
		x, ok := tree.Remove(i)
		require.True(t, ok)
		require.Equal(t, i, x.Key())
	}
	require.NoError(t, Validate(tree))
	tree.Foreach(func(idx int64, color RBColor, key int64, val uint64) bool {
		require.Equal(t, insertTotal-1-idx, key)
		return true
	})
}

func rbtreeRandomInsertAndRemove_RandomMonoNumberRunCore(t *testing.T, total uint64, rbRmBySucc bool, violationCheck bool) {
	insertTotal := uint64(float64(total) * 0.8)
	removeTotal := uint64(float64(total) * 0.2)

	idGen, _ := id.MonotonicNonZeroID()
	insertElements := make([]uint64, 0, insertTotal)
	removeElements := make([]uint64, 0, removeTotal)

	ignore := uint32(0)

	for {
		num := idGen.Number()
		if ignore > 0 {
			ignore--
			continue
		}
		ignore = randv2.Uint32() % 100
		if ignore&0x1 == 0 && uint64(len(insertElements)) < insertTotal {
			insertElements = append(insertElements, num)
		} else if ignore&0x1 == 1 && uint64(len(removeElements)) < removeTotal {
			removeElements = append(removeElements, num)
		}
		if uint64(len(insertElements)) == insertTotal && uint64(len(removeElements)) == removeTotal {
			break
		}
	}

	randv2.Shuffle(len(insertElements), func(i, j int) {
		insertElements[i], insertElements[j] = insertElements[j], insertElements[i]
	})
	randv2.Shuffle(len(removeElements), func(i, j int) {
		removeElements[i], removeElements[j] = removeElements[j], removeElements[i]
	})

	opts := []RBTreeOpt[uint64, uint64]{}
	if rbRmBySucc {
		opts = append(opts, WithRBTreeRemoveBorrowSucc[uint64, uint64]())
	}
	tree := NewRBTree[uint64, uint64](opts...)

	for i := uint64(0); i < insertTotal; i++ {
		tree.Insert(insertElements[i], i)
		if violationCheck {
			require.NoError(t, RedViolationValidate(tree))
			require.NoError(t, BlackViolationValidate(tree))
		}
	}
	sort.Slice(insertElements, func(i, j int) bool {
		return insertElements[i] < insertElements[j]
	})
	tree.Foreach(func(idx int64, color RBColor, key uint64, val uint64) bool {
		require.Equal(t, insertElements[idx], key)
		return true
	})

	for i := uint64(0); i < removeTotal; i++ {
		tree.Insert(removeElements[i], 1)
		if violationCheck {
			require.NoError(t, RedViolationValidate(tree))
			require.NoError(t, BlackViolationValidate(tree))
		}
	}
	require.NoError(t, Validate(tree))

	for i := uint64(0); i < removeTotal; i++ {
		x, ok := tree.Remove(removeElements[i])
		require.True(t, ok)
		require.Equalf(t, removeElements[i], x.Key(), "value exp: %d, real: %d\n", removeElements[i], x.Key())
		if violationCheck {
			require.NoError(t, Validate(tree))
		}
	}
	tree.Foreach(func(idx int64, color RBColor, key uint64, val uint64) bool {
		require.Equal(t, insertElements[idx], key)
		return true
	})
	require.Equal(t, int64(insertTotal), tree.Len())
}

func TestRbtreeRandomInsertAndRemove_RandomMonotonicNumber(t *testing.T) {
	type testcase struct {
		name           string
		rbRmBySucc     bool
		total          uint64
		violationCheck bool
	}
	testcases := []testcase{
		{
			name:  "rm by pred 100000",
			total: 100000,
		},
		{
			name:       "rm by succ 100000",
			rbRmBySucc: true,
			total:      100000,
		},
		{
			name:           "violation check rm by pred 5000",
			total:          5000,
			violationCheck: true,
		},
		{
			name:           "violation check rm by succ 5000",
			rbRmBySucc:     true,
			total:          5000,
			violationCheck: true,
		},
	}
	t.Parallel()
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			rbtreeRandomInsertAndRemove_RandomMonoNumberRunCore(tt, tc.total, tc.rbRmBySucc, tc.violationCheck)
		})
	}
}

func TestRbtree_RandomWorkloadAgainstModel(t *testing.T) {
	type testcase struct {
		name      string
		duplicate bool
		succ      bool
	}
	testcases := []testcase{
		{name: "unique pred"},
		{name: "unique succ", succ: true},
		{name: "duplicate pred", duplicate: true},
		{name: "duplicate succ", duplicate: true, succ: true},
	}
	for i, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			opts := []RBTreeOpt[int, int]{}
			if tc.duplicate {
				opts = append(opts, WithRBTreeDuplicateKey[int, int]())
			}
			if tc.succ {
				opts = append(opts, WithRBTreeRemoveBorrowSucc[int, int]())
			}
			tree := NewRBTree[int, int](opts...)
			model := map[int]int{}
			rng := randv2.New(randv2.NewPCG(uint64(i), 42))

			for op := 0; op < 20000; op++ {
				k := rng.IntN(512)
				switch rng.IntN(4) {
				case 0, 1:
					_, ok := tree.Insert(k, op)
					require.Equal(tt, tc.duplicate || model[k] == 0, ok)
					if ok {
						model[k]++
					}
				case 2:
					_, ok := tree.Remove(k)
					require.Equal(tt, model[k] > 0, ok)
					if ok {
						model[k]--
					}
				default:
					require.Equal(tt, int64(model[k]), tree.Count(k))
				}
				if op%1000 == 0 {
					require.NoError(tt, Validate[int, int](tree))
				}
			}

			expected := make([]int, 0, tree.Len())
			for k, n := range model {
				for j := 0; j < n; j++ {
					expected = append(expected, k)
				}
			}
			slices.Sort(expected)
			require.Equal(tt, expected, collectKeys(tree))
			require.NoError(tt, Validate[int, int](tree))

			for _, k := range rng.Perm(512) {
				tree.RemoveAll(k)
			}
			require.True(tt, tree.IsEmpty())
			require.Nil(tt, tree.Root())
		})
	}
}

func TestRbtree_ErrorsAreDistinct(t *testing.T) {
	errs := []error{
		ErrRBTreeEmpty, ErrRBTreeNodeInvalid, ErrRBTreeNodeNotFound, ErrRBTreeIteratorInvalid,
		ErrRBTreeRedViolation, ErrRBTreeBlackViolation, ErrRBTreeRootViolation,
		ErrRBTreeOrderViolation, ErrRBTreeSizeViolation, ErrRBTreeLinkViolation,
	}
	for i := range errs {
		for j := range errs {
			require.Equal(t, i == j, errors.Is(errs[i], errs[j]))
		}
	}
}

func BenchmarkRBTree_Random(b *testing.B) {
	testByBytes := []byte(`abc`)

	b.StopTimer()
	tree := NewRBTree[int, []byte]()

	rngArr := make([]int, 0, b.N)
	for i := 0; i < b.N; i++ {
		rngArr = append(rngArr, randv2.Int())
	}

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		tree.Insert(rngArr[i], testByBytes)
	}
}

func BenchmarkRBTree_Serial(b *testing.B) {
	testByBytes := []byte(`abc`)

	b.StopTimer()
	tree := NewRBTree[int, []byte]()

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		tree.Insert(i, testByBytes)
	}
}
