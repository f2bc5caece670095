package tree

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sync/atomic"
	"unsafe"

	"go.opentelemetry.io/otel/metric"

	"github.com/benz9527/xcontainer/lib/infra"
)

var (
	ErrRBTreeEmpty           = errors.New("[rbtree] empty element to remove")
	ErrRBTreeNodeInvalid     = errors.New("[rbtree] node is nil or has been removed")
	ErrRBTreeNodeNotFound    = errors.New("[rbtree] node does not belong to the tree")
	ErrRBTreeIteratorInvalid = errors.New("[rbtree] iterator is at end or over a removed node")
)

type rbNode[K infra.OrderedKey, V any] struct {
	parent *rbNode[K, V]
	left   *rbNode[K, V]
	right  *rbNode[K, V]
	key    K
	val    V
	color  RBColor
	hasKV  bool
}

func (node *rbNode[K, V]) Color() RBColor {
	return node.color
}

func (node *rbNode[K, V]) Key() K {
	return node.key
}

func (node *rbNode[K, V]) Val() V {
	return node.val
}

func (node *rbNode[K, V]) HasKeyVal() bool {
	if node == nil {
		return false
	}
	return node.hasKV
}

func (node *rbNode[K, V]) Left() RBNode[K, V] {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *rbNode[K, V]) Parent() RBNode[K, V] {
	if node == nil || node.parent == nil {
		return nil
	}
	return node.parent
}

func (node *rbNode[K, V]) Right() RBNode[K, V] {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

// Nil leaves are black.
func (node *rbNode[K, V]) isBlack() bool {
	return node == nil || node.color == Black
}

func (node *rbNode[K, V]) isRed() bool {
	return node != nil && node.color == Red
}

func (node *rbNode[K, V]) isRoot() bool {
	return node != nil && node.parent == nil
}

func (node *rbNode[K, V]) Direction() RBDirection {
	if node == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] nil leaf node without direction")
	}

	if node.isRoot() {
		return Root
	}
	if node == node.parent.left {
		return Left
	}
	return Right
}

func (node *rbNode[K, V]) sibling() *rbNode[K, V] {
	switch node.Direction() {
	case Left:
		return node.parent.right
	case Right:
		return node.parent.left
	default:
	}
	return nil
}

func (node *rbNode[K, V]) uncle() *rbNode[K, V] {
	return node.parent.sibling()
}

func (node *rbNode[K, V]) fixLink() {
	if node.left != nil {
		node.left.parent = node
	}
	if node.right != nil {
		node.right.parent = node
	}
}

func (node *rbNode[K, V]) detach() {
	node.parent, node.left, node.right = nil, nil, nil
	node.hasKV = false
}

func (node *rbNode[K, V]) minimum() *rbNode[K, V] {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

func (node *rbNode[K, V]) maximum() *rbNode[K, V] {
	aux := node
	for ; aux != nil && aux.right != nil; aux = aux.right {
	}
	return aux
}

// The pred node of the current node is its previous node in sorted order.
func (node *rbNode[K, V]) pred() *rbNode[K, V] {
	x := node
	if x == nil {
		return nil
	}
	if x.left != nil {
		return x.left.maximum()
	}

	aux := x.parent
	// Backtrack until x is no longer a left child.
	for aux != nil && x == aux.left {
		x = aux
		aux = aux.parent
	}
	return aux
}

// The succ node of the current node is its next node in sorted order.
func (node *rbNode[K, V]) succ() *rbNode[K, V] {
	x := node
	if x == nil {
		return nil
	}
	if x.right != nil {
		return x.right.minimum()
	}

	aux := x.parent
	// Backtrack until x is no longer a right child.
	for aux != nil && x == aux.right {
		x = aux
		aux = aux.parent
	}
	return aux
}

// A typed nil pointer must not leak out as a non-nil interface.
func wrapNode[K infra.OrderedKey, V any](node *rbNode[K, V]) RBNode[K, V] {
	if node == nil {
		return nil
	}
	return node
}

var (
	_ RBTree[uint8, struct{}] = (*rbTree[uint8, struct{}])(nil)
)

type rbTree[K infra.OrderedKey, V any] struct {
	root           *rbNode[K, V]
	count          int64
	cmp            infra.OrderedKeyComparator[K]
	stats          *rbTreeStats
	statsName      string
	statsProvider  metric.MeterProvider
	onViolation    func(err error)
	isDesc         bool
	isDuplicate    bool
	isRmBorrowSucc bool
	isStatsEnabled bool
	isChecked      bool
}

func (tree *rbTree[K, V]) keyCompare(k1, k2 K) int64 {
	res := tree.cmp(k1, k2)
	if tree.isDesc {
		return -res
	}
	return res
}

func (tree *rbTree[K, V]) allowDuplicate() bool {
	return tree.isDuplicate
}

func (tree *rbTree[K, V]) Len() int64 {
	return atomic.LoadInt64(&tree.count)
}

func (tree *rbTree[K, V]) IsEmpty() bool {
	return tree.Len() == 0
}

func (tree *rbTree[K, V]) Root() RBNode[K, V] {
	return wrapNode(tree.root)
}

// MaxLen is the node count bound of the address space, the same for
// every tree with these key and value types.
func (tree *rbTree[K, V]) MaxLen() int64 {
	return math.MaxInt64 / int64(unsafe.Sizeof(rbNode[K, V]{}))
}

func (tree *rbTree[K, V]) AllowDuplicate() bool {
	return tree.isDuplicate
}

// References:
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
// rbtree properties:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// p1. Every node is either red or black.
// p2. All NIL nodes are considered black.
// p3. A red node does not have a red child. (red-violation)
// p4. Every path from a given node to any of its descendant
//   NIL nodes goes through the same number of black nodes. (black-violation)
// p5. The root is black.
// (Conclusion) If a node X has exactly one child, it must be a red child,
//   because if it were black, its NIL descendants would sit at a different
//   black depth than X's NIL child, violating p4.

/*
		 |                         |
		 X                         Y
		/ \     leftRotate(X)     / \
	   L   Y    ============>    X   Yr
		  / \                   / \
		Yl   Yr                L   Yl
*/
func (tree *rbTree[K, V]) leftRotate(x *rbNode[K, V]) {
	if x == nil || x.right == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	p, y := x.parent, x.right
	dir := x.Direction()
	x.right, y.left = y.left, x

	x.fixLink()
	y.fixLink()
	tree.replaceChild(p, dir, y)
	tree.stats.IncreaseRotation(Left)
}

/*
		   |                         |
		   X                         Y
		  / \     rightRotate(X)    / \
	     Y   R    ============>   Yl   X
	    / \                           / \
	  Yl   Yr                       Yr   R
*/
func (tree *rbTree[K, V]) rightRotate(x *rbNode[K, V]) {
	if x == nil || x.left == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	p, y := x.parent, x.left
	dir := x.Direction()
	x.left, y.right = y.right, x

	x.fixLink()
	y.fixLink()
	tree.replaceChild(p, dir, y)
	tree.stats.IncreaseRotation(Right)
}

// replaceChild puts node into the slot dir of parent. A Root slot
// replaces the tree root.
func (tree *rbTree[K, V]) replaceChild(parent *rbNode[K, V], dir RBDirection, node *rbNode[K, V]) {
	switch dir {
	case Root:
		tree.root = node
	case Left:
		parent.left = node
	case Right:
		parent.right = node
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to replace")
	}
	if node != nil {
		node.parent = parent
	}
}

// transplant splices child into the slot held by n. n keeps its own
// stale links until the caller detaches it.
func (tree *rbTree[K, V]) transplant(n, child *rbNode[K, V]) {
	tree.replaceChild(n.parent, n.Direction(), child)
}

func (tree *rbTree[K, V]) Insert(key K, val V) (RBNode[K, V], bool) {
	node, inserted := tree.insert(key, val, false)
	tree.stats.IncreaseInsert(inserted, false)
	tree.audit("insert")
	return node, inserted
}

func (tree *rbTree[K, V]) InsertOrAssign(key K, val V) (RBNode[K, V], bool) {
	node, inserted := tree.insert(key, val, true)
	tree.stats.IncreaseInsert(inserted, !inserted)
	tree.audit("insert or assign")
	return node, inserted
}

// i1: Empty rbtree, the new node becomes the root and is painted black
// by the rebalance.
// i2: Equal key under the unique policy, nothing is linked.
// i3: Equal key under the duplicate policy descends to the right, so the
// new node lands after every existing equal key in sorted order.
func (tree *rbTree[K, V]) insert(key K, val V, assign bool) (*rbNode[K, V], bool) {
	var (
		x, y *rbNode[K, V] = tree.root, nil
		res  int64
	)
	for x != nil {
		y = x
		res = tree.keyCompare(key, x.key)
		if /* i2 */ res == 0 && !tree.isDuplicate {
			if assign {
				x.val = val
			}
			return x, false
		} else /* less */ if res < 0 {
			x = x.left
		} else /* greater or i3 */ {
			x = x.right
		}
	}

	z := &rbNode[K, V]{
		key:    key,
		val:    val,
		color:  Red,
		parent: y,
		hasKV:  true,
	}
	if /* i1 */ y == nil {
		tree.root = z
	} else if res < 0 {
		y.left = z
	} else {
		y.right = z
	}

	atomic.AddInt64(&tree.count, 1)
	tree.stats.RecordSize(1)
	tree.insertRebalance(z)
	return z, true
}

/*
New node X is red by default.

<X> is a RED node.
[X] is a BLACK node (or NIL).

The loop runs while the parent P is red. A red P is never the root,
so the grandpa G always exists and is black.

imA: The uncle U is red. (red-violation)
Repaint P and U into black and G into red, then continue from G
because G may now be red under a red parent.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

imB: The uncle U is black, X is an inner grandchild (opposite direction
to P). Rotate P away from X to turn it into the outer case, then fall
into imC with the roles of X and P exchanged.

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

imC: The uncle U is black, X is an outer grandchild.
Repaint P into black and G into red, rotate G away from X.

	    [G]                 <P>               [P]
	    / \    rotate(G)    / \    repaint    / \
	  <P> [U]  ========>  <X> [G]  ======>  <X> <G>
	  /                         \                 \
	<X>                         [U]               [U]

The root is repainted black unconditionally at the end.
*/
func (tree *rbTree[K, V]) insertRebalance(x *rbNode[K, V]) {
	for x.parent.isRed() {
		p := x.parent
		gp := p.parent
		if gp == nil {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] red parent without grandpa")
		}

		if /* imA */ u := x.uncle(); u.isRed() {
			p.color, u.color, gp.color = Black, Black, Red
			tree.stats.IncreaseFixup(fixupInsertA)
			x = gp
			continue
		}

		if /* imB */ dir := x.Direction(); dir != p.Direction() {
			switch dir {
			case Left:
				tree.rightRotate(p)
			case Right:
				tree.leftRotate(p)
			default:
				// impossible run to here
				panic( /* debug assertion */ "[rbtree] insert violate (imB)")
			}
			tree.stats.IncreaseFixup(fixupInsertB)
			x, p = p, x
		}

		/* imC */
		p.color, gp.color = Black, Red
		switch p.Direction() {
		case Left:
			tree.rightRotate(gp)
		case Right:
			tree.leftRotate(gp)
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] insert violate (imC)")
		}
		tree.stats.IncreaseFixup(fixupInsertC)
	}
	tree.root.color = Black
}

/*
swapNode exchanges the structural slots (links and colors) of x and y.
Each node object keeps its own key and value, so an iterator over y
still sees y's element after y moved up into x's slot.

y must be a descendant of x (the in-order pred or succ of a node
with two children).

	  |                    |
	  X                    Y
	 / \                  / \
	L  ..   swap(X, Y)   L  ..
	    |   =========>       |
	    P                    P
	   / \                  / \
	  Y  ..                X  ..
*/
func (tree *rbTree[K, V]) swapNode(x, y *rbNode[K, V]) {
	xp, xl, xr, xdir := x.parent, x.left, x.right, x.Direction()
	yp, yl, yr, ydir := y.parent, y.left, y.right, y.Direction()
	x.color, y.color = y.color, x.color

	if /* adjacent */ yp == x {
		switch ydir {
		case Left:
			y.left, y.right = x, xr
		case Right:
			y.left, y.right = xl, x
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] swap with a root child")
		}
		x.left, x.right = yl, yr
		tree.replaceChild(xp, xdir, y)
	} else {
		x.left, x.right = yl, yr
		y.left, y.right = xl, xr
		tree.replaceChild(yp, ydir, x)
		tree.replaceChild(xp, xdir, y)
	}
	x.fixLink()
	y.fixLink()
}

/*
r1: Node Z has both children. Borrow the in-order pred (or succ) Y and
swap the node slots of Z and Y (see swapNode). Z now sits where Y
was and has at most one child.

r2: Z has exactly one child C. C must be red (see conclusion), splice
it into Z's slot and repaint it black.

r3: Z is a leaf.
(1) Z is red, unlink it directly.
(2) Z is black and not the root, its removal leaves a black deficit.
Rebalance while Z is still linked, so it can play the deficient node
with a well-defined sibling, then unlink it.

Z is finally detached, the count decreased, and Z is returned.
*/
func (tree *rbTree[K, V]) removeNode(z *rbNode[K, V]) *rbNode[K, V] {
	if /* r1 */ z.left != nil && z.right != nil {
		var y *rbNode[K, V]
		if tree.isRmBorrowSucc {
			y = z.right.minimum()
		} else {
			y = z.left.maximum()
		}
		tree.swapNode(z, y)
	}

	if z.left != nil || z.right != nil /* r2 */ {
		child := z.left
		if child == nil {
			child = z.right
		}
		tree.transplant(z, child)
		if z.isBlack() {
			if child.isRed() {
				child.color = Black
			} else {
				tree.removeRebalance(child)
			}
		}
	} else /* r3 */ {
		if /* r3 (2) */ z.isBlack() && !z.isRoot() {
			tree.removeRebalance(z)
		}
		tree.transplant(z, nil)
	}

	z.detach()
	atomic.AddInt64(&tree.count, -1)
	tree.stats.RecordSize(-1)
	return z
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

X carries a black deficit. S is X's sibling, Sc is the near nephew
(same direction as X) and Sd is the far nephew.
The cases are checked in order, each one assumes the earlier ones
have been ruled out.

rm1: X is the root. Nothing to fix.

rm2: S is red, so P, Sc and Sd are black.
Rotate P toward X, repaint S into black and P into red.
Fall through with the new sibling (old Sc), which is black.

	  [P]                   <S>               [S]
	  / \    l-rotate(P)    / \    repaint    / \
	[X] <S>  ==========>  [P] [Sd]  =====>  <P> [Sd]
	    / \               / \               / \
	 [Sc] [Sd]          [X] [Sc]          [X] [Sc]

rm3: P, S, Sc and Sd are all black.
Repaint S into red, the subtree of P is now uniformly one black short.
Move the deficit up to P.

	  [P]             [P]
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm4: P is red, S, Sc and Sd are black.
Exchange the colors of P and S. Done.

	  <P>             [P]
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm5: S is black, Sc is red and Sd is black.
Rotate S away from X, repaint Sc into black and S into red.
Sc becomes the new sibling and the old S its red far child, enter rm6.

	                        {P}                {P}
	  {P}                   / \                / \
	  / \    r-rotate(S)  [X] <Sc>   repaint  [X] [Sc]
	[X] [S]  ==========>        \    ======>       \
	    / \                     [S]                <S>
	  <Sc> [Sd]                   \                  \
	                              [Sd]               [Sd]

rm6: S is black and Sd is red.
Rotate P toward X, S takes P's color, P and Sd are repainted black.
Done.

	  {P}                   [S]                {S}
	  / \    l-rotate(P)    / \     repaint    / \
	[X] [S]  ==========>  {P} <Sd>  ======>  [P] [Sd]
	    / \               / \                / \
	 {Sc} <Sd>          [X] {Sc}           [X] {Sc}
*/
func (tree *rbTree[K, V]) removeRebalance(x *rbNode[K, V]) {
	for /* rm1 */ !x.isRoot() {
		p := x.parent
		dir := x.Direction()
		s := x.sibling()
		if s == nil {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] black deficit without sibling")
		}

		if /* rm2 */ s.isRed() {
			switch dir {
			case Left:
				tree.leftRotate(p)
			case Right:
				tree.rightRotate(p)
			default:
				// impossible run to here
				panic( /* debug assertion */ "[rbtree] remove violate (rm2)")
			}
			s.color, p.color = Black, Red
			tree.stats.IncreaseFixup(fixupRemove2)
			s = x.sibling()
		}

		var sc, sd *rbNode[K, V]
		switch dir {
		case Left:
			sc, sd = s.left, s.right
		case Right:
			sc, sd = s.right, s.left
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] remove violate (nephews)")
		}

		if sc.isBlack() && sd.isBlack() {
			if /* rm3 */ p.isBlack() {
				s.color = Red
				tree.stats.IncreaseFixup(fixupRemove3)
				x = p
				continue
			}
			/* rm4 */
			s.color, p.color = Red, Black
			tree.stats.IncreaseFixup(fixupRemove4)
			return
		}

		if /* rm5 */ sd.isBlack() {
			switch dir {
			case Left:
				tree.rightRotate(s)
			case Right:
				tree.leftRotate(s)
			default:
				// impossible run to here
				panic( /* debug assertion */ "[rbtree] remove violate (rm5)")
			}
			sc.color, s.color = Black, Red
			tree.stats.IncreaseFixup(fixupRemove5)
			s, sd = sc, s
		}

		/* rm6 */
		switch dir {
		case Left:
			tree.leftRotate(p)
		case Right:
			tree.rightRotate(p)
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] remove violate (rm6)")
		}
		s.color, p.color, sd.color = p.color, Black, Black
		tree.stats.IncreaseFixup(fixupRemove6)
		return
	}
}

func (tree *rbTree[K, V]) Remove(key K) (RBNode[K, V], bool) {
	z := tree.searchNode(key)
	if z == nil {
		tree.stats.IncreaseRemove(false)
		return nil, false
	}
	res := tree.removeNode(z)
	tree.stats.IncreaseRemove(true)
	tree.audit("remove")
	return res, true
}

func (tree *rbTree[K, V]) RemoveAll(key K) int64 {
	removed := int64(0)
	for z := tree.lowerBoundNode(key); z != nil && tree.keyCompare(z.key, key) == 0; removed++ {
		// The succ keeps its identity across the removal.
		next := z.succ()
		tree.removeNode(z)
		tree.stats.IncreaseRemove(true)
		z = next
	}
	if removed > 0 {
		tree.audit("remove all")
	}
	return removed
}

// owns reports whether node is currently linked under the tree root.
func (tree *rbTree[K, V]) owns(node *rbNode[K, V]) bool {
	if node == nil || !node.hasKV {
		return false
	}
	aux := node
	for ; aux.parent != nil; aux = aux.parent {
	}
	return aux == tree.root
}

func (tree *rbTree[K, V]) RemoveNode(node RBNode[K, V]) error {
	z, ok := node.(*rbNode[K, V])
	if !ok || z == nil || !z.hasKV {
		return ErrRBTreeNodeInvalid
	}
	if !tree.owns(z) {
		return ErrRBTreeNodeNotFound
	}
	tree.removeNode(z)
	tree.stats.IncreaseRemove(true)
	tree.audit("remove node")
	return nil
}

func (tree *rbTree[K, V]) RemoveMin() (RBNode[K, V], error) {
	if tree.root == nil {
		return nil, ErrRBTreeEmpty
	}
	res := tree.removeNode(tree.root.minimum())
	tree.stats.IncreaseRemove(true)
	tree.audit("remove min")
	return res, nil
}

func (tree *rbTree[K, V]) RemoveMax() (RBNode[K, V], error) {
	if tree.root == nil {
		return nil, ErrRBTreeEmpty
	}
	res := tree.removeNode(tree.root.maximum())
	tree.stats.IncreaseRemove(true)
	tree.audit("remove max")
	return res, nil
}

func (tree *rbTree[K, V]) Erase(it RBIterator[K, V]) RBIterator[K, V] {
	if !tree.owns(it.node) {
		return tree.End()
	}
	next := it.node.succ()
	tree.removeNode(it.node)
	tree.stats.IncreaseRemove(true)
	tree.audit("erase")
	return RBIterator[K, V]{tree: tree, node: next}
}

func (tree *rbTree[K, V]) searchNode(key K) *rbNode[K, V] {
	if tree.isDuplicate {
		// Any equal node may sit above the first one after rotations.
		if x := tree.lowerBoundNode(key); x != nil && tree.keyCompare(x.key, key) == 0 {
			tree.stats.IncreaseSearch(true)
			return x
		}
		tree.stats.IncreaseSearch(false)
		return nil
	}

	for aux := tree.root; aux != nil; {
		res := tree.keyCompare(key, aux.key)
		if res == 0 {
			tree.stats.IncreaseSearch(true)
			return aux
		} else if res > 0 {
			aux = aux.right
		} else {
			aux = aux.left
		}
	}
	tree.stats.IncreaseSearch(false)
	return nil
}

// First node whose key is not less than key.
func (tree *rbTree[K, V]) lowerBoundNode(key K) *rbNode[K, V] {
	var res *rbNode[K, V]
	for aux := tree.root; aux != nil; {
		if tree.keyCompare(aux.key, key) >= 0 {
			res, aux = aux, aux.left
		} else {
			aux = aux.right
		}
	}
	return res
}

// First node whose key is greater than key.
func (tree *rbTree[K, V]) upperBoundNode(key K) *rbNode[K, V] {
	var res *rbNode[K, V]
	for aux := tree.root; aux != nil; {
		if tree.keyCompare(aux.key, key) > 0 {
			res, aux = aux, aux.left
		} else {
			aux = aux.right
		}
	}
	return res
}

func (tree *rbTree[K, V]) Search(key K) RBNode[K, V] {
	return wrapNode(tree.searchNode(key))
}

func (tree *rbTree[K, V]) Contains(key K) bool {
	return tree.searchNode(key) != nil
}

func (tree *rbTree[K, V]) Minimum(x RBNode[K, V]) RBNode[K, V] {
	n, ok := x.(*rbNode[K, V])
	if !ok || n == nil {
		return nil
	}
	return wrapNode(n.minimum())
}

func (tree *rbTree[K, V]) Maximum(x RBNode[K, V]) RBNode[K, V] {
	n, ok := x.(*rbNode[K, V])
	if !ok || n == nil {
		return nil
	}
	return wrapNode(n.maximum())
}

func (tree *rbTree[K, V]) Count(key K) int64 {
	if !tree.isDuplicate {
		if tree.searchNode(key) != nil {
			return 1
		}
		return 0
	}
	count := int64(0)
	for aux := tree.lowerBoundNode(key); aux != nil && tree.keyCompare(aux.key, key) == 0; aux = aux.succ() {
		count++
	}
	return count
}

func (tree *rbTree[K, V]) Begin() RBIterator[K, V] {
	return RBIterator[K, V]{tree: tree, node: tree.root.minimum()}
}

func (tree *rbTree[K, V]) End() RBIterator[K, V] {
	return RBIterator[K, V]{tree: tree}
}

func (tree *rbTree[K, V]) IteratorAt(node RBNode[K, V]) RBIterator[K, V] {
	n, ok := node.(*rbNode[K, V])
	if !ok || !tree.owns(n) {
		return tree.End()
	}
	return RBIterator[K, V]{tree: tree, node: n}
}

func (tree *rbTree[K, V]) Find(key K) RBIterator[K, V] {
	return RBIterator[K, V]{tree: tree, node: tree.searchNode(key)}
}

func (tree *rbTree[K, V]) LowerBound(key K) RBIterator[K, V] {
	return RBIterator[K, V]{tree: tree, node: tree.lowerBoundNode(key)}
}

func (tree *rbTree[K, V]) UpperBound(key K) RBIterator[K, V] {
	return RBIterator[K, V]{tree: tree, node: tree.upperBoundNode(key)}
}

func (tree *rbTree[K, V]) EqualRange(key K) (RBIterator[K, V], RBIterator[K, V]) {
	return tree.LowerBound(key), tree.UpperBound(key)
}

// Inorder traversal by succ links, no auxiliary stack.
func (tree *rbTree[K, V]) Foreach(action func(idx int64, color RBColor, key K, val V) bool) {
	idx := int64(0)
	for aux := tree.root.minimum(); aux != nil; idx++ {
		next := aux.succ()
		if !action(idx, aux.color, aux.key, aux.val) {
			return
		}
		aux = next
	}
}

// All yields the elements in sorted order. Removing the element just
// yielded is allowed, the walk resumes from its successor.
func (tree *rbTree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for aux := tree.root.minimum(); aux != nil; {
			next := aux.succ()
			if !yield(aux.key, aux.val) {
				return
			}
			aux = next
		}
	}
}

func (tree *rbTree[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for aux := tree.root.maximum(); aux != nil; {
			prev := aux.pred()
			if !yield(aux.key, aux.val) {
				return
			}
			aux = prev
		}
	}
}

func (tree *rbTree[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range tree.All() {
			if !yield(k) {
				return
			}
		}
	}
}

func (tree *rbTree[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range tree.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// cloneEmpty copies the configuration only.
func (tree *rbTree[K, V]) cloneEmpty() *rbTree[K, V] {
	return &rbTree[K, V]{
		cmp:            tree.cmp,
		stats:          tree.stats,
		statsName:      tree.statsName,
		statsProvider:  tree.statsProvider,
		onViolation:    tree.onViolation,
		isDesc:         tree.isDesc,
		isDuplicate:    tree.isDuplicate,
		isRmBorrowSucc: tree.isRmBorrowSucc,
		isStatsEnabled: tree.isStatsEnabled,
		isChecked:      tree.isChecked,
	}
}

func cloneSubtree[K infra.OrderedKey, V any](src, parent *rbNode[K, V]) *rbNode[K, V] {
	if src == nil {
		return nil
	}
	node := &rbNode[K, V]{
		parent: parent,
		key:    src.key,
		val:    src.val,
		color:  src.color,
		hasKV:  true,
	}
	node.left = cloneSubtree(src.left, node)
	node.right = cloneSubtree(src.right, node)
	return node
}

func (tree *rbTree[K, V]) Clone() RBTree[K, V] {
	cp := tree.cloneEmpty()
	cp.root = cloneSubtree[K, V](tree.root, nil)
	cp.count = tree.Len()
	cp.stats.RecordSize(cp.count)
	return cp
}

func (tree *rbTree[K, V]) Move() RBTree[K, V] {
	mv := tree.cloneEmpty()
	mv.root, mv.count = tree.root, tree.Len()
	tree.root = nil
	atomic.StoreInt64(&tree.count, 0)
	return mv
}

func (tree *rbTree[K, V]) Swap(other RBTree[K, V]) {
	o, ok := other.(*rbTree[K, V])
	if !ok || o == nil {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] swap with a foreign tree implementation")
	}
	if o == tree {
		return
	}
	// Nodes and the ordering they were built with change hands. Stats,
	// removal policy and checks stay with each tree.
	size, otherSize := tree.Len(), o.Len()
	tree.root, o.root = o.root, tree.root
	atomic.StoreInt64(&tree.count, otherSize)
	atomic.StoreInt64(&o.count, size)
	tree.cmp, o.cmp = o.cmp, tree.cmp
	tree.isDesc, o.isDesc = o.isDesc, tree.isDesc
	tree.isDuplicate, o.isDuplicate = o.isDuplicate, tree.isDuplicate
	tree.stats.RecordSize(otherSize - size)
	o.stats.RecordSize(size - otherSize)
	tree.audit("swap")
	o.audit("swap")
}

func (tree *rbTree[K, V]) Merge(other RBTree[K, V]) {
	if other == nil {
		return
	}
	if o, ok := other.(*rbTree[K, V]); ok && (o == nil || o == tree) {
		return
	}
	for key, val := range other.All() {
		_, inserted := tree.insert(key, val, false)
		tree.stats.IncreaseInsert(inserted, false)
	}
	other.Clear()
	tree.audit("merge")
}

// Clear unlinks every node so that outstanding iterators observe
// their nodes as removed.
func (tree *rbTree[K, V]) Clear() {
	size := tree.Len()
	aux := tree.root
	tree.root = nil
	atomic.StoreInt64(&tree.count, 0)
	tree.stats.RecordSize(-size)
	if aux == nil {
		return
	}

	stack := make([]*rbNode[K, V], 0, 64)
	defer func() {
		clear(stack)
	}()
	for stack = append(stack, aux); len(stack) > 0; {
		aux = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if aux.left != nil {
			stack = append(stack, aux.left)
		}
		if aux.right != nil {
			stack = append(stack, aux.right)
		}
		aux.detach()
	}
}

func (tree *rbTree[K, V]) audit(op string) {
	if !tree.isChecked {
		return
	}
	if err := Validate[K, V](tree); err != nil {
		tree.onViolation(fmt.Errorf("[rbtree] %s: %w", op, err))
	}
}

type RBTreeOpt[K infra.OrderedKey, V any] func(*rbTree[K, V])

func WithRBTreeDesc[K infra.OrderedKey, V any]() RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.isDesc = true
	}
}

func WithRBTreeComparator[K infra.OrderedKey, V any](cmp infra.OrderedKeyComparator[K]) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.cmp = cmp
	}
}

// WithRBTreeDuplicateKey enables the multi key policy.
func WithRBTreeDuplicateKey[K infra.OrderedKey, V any]() RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.isDuplicate = true
	}
}

// WithRBTreeUniqueKey restores the default unique key policy.
func WithRBTreeUniqueKey[K infra.OrderedKey, V any]() RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.isDuplicate = false
	}
}

func WithRBTreeRemoveBorrowSucc[K infra.OrderedKey, V any]() RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.isRmBorrowSucc = true
	}
}

// WithRBTreeInvariantCheck validates the whole tree after every mutation
// and hands violations to onViolation. A nil onViolation panics.
// It costs O(n) per mutation, keep it for tests and soak runs.
func WithRBTreeInvariantCheck[K infra.OrderedKey, V any](onViolation func(err error)) RBTreeOpt[K, V] {
	return func(tree *rbTree[K, V]) {
		tree.isChecked = true
		tree.onViolation = onViolation
	}
}

func NewRBTree[K infra.OrderedKey, V any](opts ...RBTreeOpt[K, V]) RBTree[K, V] {
	tree := &rbTree[K, V]{
		count:          0,
		isDesc:         false,
		isDuplicate:    false,
		isRmBorrowSucc: false,
	}

	for _, o := range opts {
		if o != nil {
			o(tree)
		}
	}

	if tree.cmp == nil {
		tree.cmp = infra.AscOrderedKeyComparator[K]
	}
	if tree.isChecked && tree.onViolation == nil {
		tree.onViolation = func(err error) {
			panic(err)
		}
	}
	if tree.isStatsEnabled {
		tree.stats = newRBTreeStats(tree.statsName, tree.statsProvider)
	}
	return tree
}
