package tree

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/benz9527/xcontainer/lib/infra"
)

var (
	ErrRBTreeRedViolation   = errors.New("[rbtree] red violation")
	ErrRBTreeBlackViolation = errors.New("[rbtree] black violation")
	ErrRBTreeRootViolation  = errors.New("[rbtree] root violation")
	ErrRBTreeOrderViolation = errors.New("[rbtree] order violation")
	ErrRBTreeSizeViolation  = errors.New("[rbtree] size violation")
	ErrRBTreeLinkViolation  = errors.New("[rbtree] parent link violation")
)

func isBlack[K infra.OrderedKey, V any](node RBNode[K, V]) bool {
	return node == nil || node.Color() == Black
}

func isRed[K infra.OrderedKey, V any](node RBNode[K, V]) bool {
	return node != nil && node.Color() == Red
}

// rbtree rule validation utilities.

// References:
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

// Inorder traversal to validate that no red node has a red child.
func RedViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	var aux = tree.Root()
	if aux == nil {
		return nil
	}

	stack := make([]RBNode[K, V], 0, 32)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.Left() {
		stack = append(stack, aux)
	}
	for size := len(stack); size > 0; size = len(stack) {
		if aux = stack[size-1]; isRed[K, V](aux) {
			if isRed[K, V](aux.Left()) || isRed[K, V](aux.Right()) {
				return fmt.Errorf("%w: red node %v has a red child", ErrRBTreeRedViolation, aux.Key())
			}
		}

		stack = stack[:size-1]
		for aux = aux.Right(); aux != nil; aux = aux.Left() {
			stack = append(stack, aux)
		}
	}
	return nil
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).

	        [13]
			/  \
		 <8>    [15]
		 / \    /  \
	  [6] [11] [14] [17]
	  /              /
	<1>            [16]

2-3-4 tree like:

	       <8> --- [13] --- <15>
		  /  \             /    \
		 /    \           /      \
	  <1>-[6][11]      [14] <16>-[17]

Every path from a node down to its nil leaves passes the same
number of black nodes.
*/
func BlackViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	if _, err := blackHeight[K, V](tree.Root()); err != nil {
		return err
	}
	return nil
}

func blackHeight[K infra.OrderedKey, V any](node RBNode[K, V]) (int, error) {
	if node == nil {
		return 1, nil
	}
	lh, err := blackHeight[K, V](node.Left())
	if err != nil {
		return 0, err
	}
	rh, err := blackHeight[K, V](node.Right())
	if err != nil {
		return 0, err
	}
	if lh != rh {
		return 0, fmt.Errorf("%w: node %v has black heights %d and %d",
			ErrRBTreeBlackViolation, node.Key(), lh, rh)
	}
	if isBlack[K, V](node) {
		lh++
	}
	return lh, nil
}

func RootViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	root := tree.Root()
	if root == nil {
		return nil
	}
	if root.Color() != Black {
		return fmt.Errorf("%w: root %v is red", ErrRBTreeRootViolation, root.Key())
	}
	if root.Parent() != nil {
		return fmt.Errorf("%w: root %v has a parent", ErrRBTreeRootViolation, root.Key())
	}
	return nil
}

type keyComparer[K infra.OrderedKey] interface {
	keyCompare(k1, k2 K) int64
}

// OrderViolationValidate checks the inorder sequence. Unique trees must
// be strictly increasing and duplicate trees non-decreasing, both
// in the tree's own comparator order.
func OrderViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	cmp := infra.AscOrderedKeyComparator[K]
	if kc, ok := tree.(keyComparer[K]); ok {
		cmp = kc.keyCompare
	}

	var (
		prev  K
		first = true
		err   error
	)
	tree.Foreach(func(idx int64, color RBColor, key K, val V) bool {
		if !first {
			res := cmp(prev, key)
			if res > 0 || (res == 0 && !tree.AllowDuplicate()) {
				err = fmt.Errorf("%w: key %v at %d follows %v", ErrRBTreeOrderViolation, key, idx, prev)
				return false
			}
		}
		prev, first = key, false
		return true
	})
	return err
}

// SizeViolationValidate checks the counted nodes against Len and
// every child's parent link.
func SizeViolationValidate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	var aux = tree.Root()
	if aux == nil {
		if tree.Len() != 0 {
			return fmt.Errorf("%w: empty tree reports %d", ErrRBTreeSizeViolation, tree.Len())
		}
		return nil
	}

	count := int64(0)
	stack := make([]RBNode[K, V], 0, 32)
	defer func() {
		clear(stack)
	}()
	for stack = append(stack, aux); len(stack) > 0; {
		aux = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		if !aux.HasKeyVal() {
			return fmt.Errorf("%w: node %v is linked but marked removed", ErrRBTreeLinkViolation, aux.Key())
		}
		for _, child := range []RBNode[K, V]{aux.Left(), aux.Right()} {
			if child == nil {
				continue
			}
			if child.Parent() != aux {
				return fmt.Errorf("%w: node %v does not point back to %v",
					ErrRBTreeLinkViolation, child.Key(), aux.Key())
			}
			stack = append(stack, child)
		}
	}
	if count != tree.Len() {
		return fmt.Errorf("%w: counted %d, reports %d", ErrRBTreeSizeViolation, count, tree.Len())
	}
	return nil
}

// Validate runs every validator and combines the violations.
func Validate[K infra.OrderedKey, V any](tree RBTree[K, V]) error {
	if tree == nil {
		return nil
	}
	return multierr.Combine(
		RootViolationValidate[K, V](tree),
		RedViolationValidate[K, V](tree),
		BlackViolationValidate[K, V](tree),
		OrderViolationValidate[K, V](tree),
		SizeViolationValidate[K, V](tree),
	)
}
