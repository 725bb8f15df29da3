// Package broadphase finds potentially overlapping pairs of proxies.
//
// A DynamicTree stores fat AABBs in a balanced binary tree. Leaves are only
// re-inserted when the tight AABB leaves its fat AABB, so slow movers rarely
// touch the tree. BroadPhase wraps the tree with a move buffer and produces
// unique (min, max) proxy pairs for the contact manager.
package broadphase

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// NullNode marks the absence of a node.
const NullNode = -1

type treeNode[T any] struct {
	aabb     geom.AABB
	userData T

	// parent for nodes in the tree, next for nodes in the free list
	parent int
	child1 int
	child2 int

	// leaf = 0, free node = -1
	height int
	moved  bool
}

func (n *treeNode[T]) isLeaf() bool {
	return n.child1 == NullNode
}

// DynamicTree is a dynamic AABB tree. Proxies are identified by node index,
// which stays stable for the lifetime of the proxy.
type DynamicTree[T any] struct {
	root     int
	nodes    []treeNode[T]
	freeList int
	count    int
}

// NewDynamicTree returns an empty tree.
func NewDynamicTree[T any]() *DynamicTree[T] {
	t := &DynamicTree[T]{root: NullNode, freeList: NullNode}
	t.grow(16)
	return t
}

// grow links capacity new nodes into the free list.
func (t *DynamicTree[T]) grow(capacity int) {
	start := len(t.nodes)
	t.nodes = append(t.nodes, make([]treeNode[T], capacity)...)
	for i := start; i < len(t.nodes)-1; i++ {
		t.nodes[i].parent = i + 1
		t.nodes[i].height = -1
	}
	t.nodes[len(t.nodes)-1].parent = NullNode
	t.nodes[len(t.nodes)-1].height = -1
	t.freeList = start
}

func (t *DynamicTree[T]) allocateNode() int {
	if t.freeList == NullNode {
		t.grow(len(t.nodes))
	}

	id := t.freeList
	n := &t.nodes[id]
	t.freeList = n.parent
	*n = treeNode[T]{parent: NullNode, child1: NullNode, child2: NullNode}
	t.count++
	return id
}

func (t *DynamicTree[T]) freeNode(id int) {
	var zero T
	t.nodes[id].userData = zero
	t.nodes[id].parent = t.freeList
	t.nodes[id].height = -1
	t.freeList = id
	t.count--
}

// CreateProxy inserts a leaf for the tight aabb, fattened by AABBExtension.
func (t *DynamicTree[T]) CreateProxy(aabb geom.AABB, userData T) int {
	id := t.allocateNode()

	n := &t.nodes[id]
	n.aabb = aabb.Fatten(geom.AABBExtension)
	n.userData = userData
	n.height = 0
	n.moved = true

	t.insertLeaf(id)
	return id
}

// DestroyProxy removes a leaf.
func (t *DynamicTree[T]) DestroyProxy(id int) {
	t.mustLeaf(id)
	t.removeLeaf(id)
	t.freeNode(id)
}

// MoveProxy re-inserts the leaf when aabb escapes its fat AABB, or when the
// fat AABB has grown much larger than needed. The new fat AABB is extended in
// the direction of displacement. It reports whether the leaf was re-inserted.
func (t *DynamicTree[T]) MoveProxy(id int, aabb geom.AABB, displacement mgl64.Vec2) bool {
	t.mustLeaf(id)

	fatAABB := aabb.Fatten(geom.AABBExtension)

	// Predict AABB movement
	d := displacement.Mul(geom.AABBMultiplier)
	if d[0] < 0 {
		fatAABB.LowerBound[0] += d[0]
	} else {
		fatAABB.UpperBound[0] += d[0]
	}
	if d[1] < 0 {
		fatAABB.LowerBound[1] += d[1]
	} else {
		fatAABB.UpperBound[1] += d[1]
	}

	treeAABB := t.nodes[id].aabb
	if treeAABB.Contains(aabb) {
		// The tree AABB still contains the object, but it might be too large.
		// Perhaps the object was moving fast but has since gone to sleep.
		hugeAABB := fatAABB.Fatten(4 * geom.AABBExtension)
		if hugeAABB.Contains(treeAABB) {
			return false
		}
	}

	t.removeLeaf(id)
	t.nodes[id].aabb = fatAABB
	t.insertLeaf(id)
	t.nodes[id].moved = true

	return true
}

// UserData returns the data attached to a proxy.
func (t *DynamicTree[T]) UserData(id int) T {
	return t.nodes[id].userData
}

// FatAABB returns the fat AABB of a proxy.
func (t *DynamicTree[T]) FatAABB(id int) geom.AABB {
	return t.nodes[id].aabb
}

// WasMoved reports whether the proxy was re-inserted since ClearMoved.
func (t *DynamicTree[T]) WasMoved(id int) bool {
	return t.nodes[id].moved
}

// ClearMoved resets the moved flag of a proxy.
func (t *DynamicTree[T]) ClearMoved(id int) {
	t.nodes[id].moved = false
}

func (t *DynamicTree[T]) mustLeaf(id int) {
	if id < 0 || id >= len(t.nodes) || t.nodes[id].height != 0 {
		panic(fmt.Sprintf("broadphase: invalid proxy id %d", id))
	}
}

// Query calls callback for each proxy whose fat AABB overlaps aabb.
// Returning false from callback stops the query.
func (t *DynamicTree[T]) Query(aabb geom.AABB, callback func(id int) bool) {
	var buf [64]int
	stack := append(buf[:0], t.root)

	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodeID == NullNode {
			continue
		}

		n := &t.nodes[nodeID]
		if !n.aabb.Overlaps(aabb) {
			continue
		}

		if n.isLeaf() {
			if !callback(nodeID) {
				return
			}
		} else {
			stack = append(stack, n.child1, n.child2)
		}
	}
}

// RayCastCallback receives a clipped ray input and a proxy id. It returns
// the new max fraction: 0 terminates, a negative value ignores the proxy,
// input.MaxFraction continues unclipped.
type RayCastCallback func(input geom.RayCastInput, id int) float64

// RayCast walks the proxies whose fat AABB the segment crosses.
func (t *DynamicTree[T]) RayCast(input geom.RayCastInput, callback RayCastCallback) {
	p1 := input.P1
	p2 := input.P2
	r, length := geom.Normalize(p2.Sub(p1))
	if length == 0 {
		return
	}

	// v is perpendicular to the segment.
	v := geom.CrossSV(1.0, r)
	absV := geom.Abs(v)

	maxFraction := input.MaxFraction
	segmentAABB := segmentBounds(p1, p2, maxFraction)

	var buf [64]int
	stack := append(buf[:0], t.root)
	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodeID == NullNode {
			continue
		}

		n := &t.nodes[nodeID]
		if !n.aabb.Overlaps(segmentAABB) {
			continue
		}

		// Separating axis for segment (Gino, p80).
		// |dot(v, p1 - c)| > dot(|v|, h)
		c := n.aabb.Center()
		h := n.aabb.Extents()
		if separation := math.Abs(v.Dot(p1.Sub(c))) - absV.Dot(h); separation > 0 {
			continue
		}

		if !n.isLeaf() {
			stack = append(stack, n.child1, n.child2)
			continue
		}

		value := callback(geom.RayCastInput{P1: p1, P2: p2, MaxFraction: maxFraction}, nodeID)
		if value == 0 {
			// The client has terminated the ray cast.
			return
		}
		if value > 0 {
			maxFraction = value
			segmentAABB = segmentBounds(p1, p2, maxFraction)
		}
	}
}

func segmentBounds(p1, p2 mgl64.Vec2, maxFraction float64) geom.AABB {
	end := p1.Add(p2.Sub(p1).Mul(maxFraction))
	return geom.AABB{LowerBound: geom.MinVec(p1, end), UpperBound: geom.MaxVec(p1, end)}
}

func (t *DynamicTree[T]) insertLeaf(leaf int) {
	if t.root == NullNode {
		t.root = leaf
		t.nodes[leaf].parent = NullNode
		return
	}

	// Find the best sibling for this node
	leafAABB := t.nodes[leaf].aabb
	index := t.root
	for !t.nodes[index].isLeaf() {
		n := &t.nodes[index]
		child1 := n.child1
		child2 := n.child2

		area := n.aabb.Perimeter()
		combinedArea := n.aabb.Combine(leafAABB).Perimeter()

		// Cost of creating a new parent for this node and the new leaf
		cost := 2.0 * combinedArea

		// Minimum cost of pushing the leaf further down the tree
		inheritanceCost := 2.0 * (combinedArea - area)

		cost1 := t.descendCost(child1, leafAABB) + inheritanceCost
		cost2 := t.descendCost(child2, leafAABB) + inheritanceCost

		// Descend according to the minimum cost.
		if cost < cost1 && cost < cost2 {
			break
		}
		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index

	// Create a new parent.
	oldParent := t.nodes[sibling].parent
	newParent := t.allocateNode()
	t.nodes[newParent].parent = oldParent
	t.nodes[newParent].aabb = leafAABB.Combine(t.nodes[sibling].aabb)
	t.nodes[newParent].height = t.nodes[sibling].height + 1
	t.nodes[newParent].child1 = sibling
	t.nodes[newParent].child2 = leaf
	t.nodes[sibling].parent = newParent
	t.nodes[leaf].parent = newParent

	if oldParent != NullNode {
		if t.nodes[oldParent].child1 == sibling {
			t.nodes[oldParent].child1 = newParent
		} else {
			t.nodes[oldParent].child2 = newParent
		}
	} else {
		t.root = newParent
	}

	// Walk back up the tree fixing heights and AABBs
	t.refit(t.nodes[leaf].parent)
}

func (t *DynamicTree[T]) descendCost(child int, leafAABB geom.AABB) float64 {
	c := &t.nodes[child]
	combined := leafAABB.Combine(c.aabb).Perimeter()
	if c.isLeaf() {
		return combined
	}
	return combined - c.aabb.Perimeter()
}

func (t *DynamicTree[T]) refit(index int) {
	for index != NullNode {
		index = t.balance(index)

		n := &t.nodes[index]
		c1 := &t.nodes[n.child1]
		c2 := &t.nodes[n.child2]
		n.height = 1 + max(c1.height, c2.height)
		n.aabb = c1.aabb.Combine(c2.aabb)

		index = n.parent
	}
}

func (t *DynamicTree[T]) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = NullNode
		return
	}

	parent := t.nodes[leaf].parent
	grandParent := t.nodes[parent].parent
	sibling := t.nodes[parent].child1
	if sibling == leaf {
		sibling = t.nodes[parent].child2
	}

	if grandParent == NullNode {
		t.root = sibling
		t.nodes[sibling].parent = NullNode
		t.freeNode(parent)
		return
	}

	// Destroy parent and connect sibling to grandParent.
	if t.nodes[grandParent].child1 == parent {
		t.nodes[grandParent].child1 = sibling
	} else {
		t.nodes[grandParent].child2 = sibling
	}
	t.nodes[sibling].parent = grandParent
	t.freeNode(parent)

	// Adjust ancestor bounds.
	t.refit(grandParent)
}

// balance performs a left or right rotation if node iA is imbalanced.
// It returns the new root index of the subtree.
func (t *DynamicTree[T]) balance(iA int) int {
	A := &t.nodes[iA]
	if A.isLeaf() || A.height < 2 {
		return iA
	}

	iB := A.child1
	iC := A.child2
	B := &t.nodes[iB]
	C := &t.nodes[iC]

	balance := C.height - B.height

	// Rotate C up
	if balance > 1 {
		return t.rotateUp(iA, iC, iB, true)
	}

	// Rotate B up
	if balance < -1 {
		return t.rotateUp(iA, iB, iC, false)
	}

	return iA
}

// rotateUp lifts child iUp of iA above it; iOther is the remaining child of
// iA. upIsChild2 tells which slot of iA iUp occupied.
func (t *DynamicTree[T]) rotateUp(iA, iUp, iOther int, upIsChild2 bool) int {
	A := &t.nodes[iA]
	U := &t.nodes[iUp]
	O := &t.nodes[iOther]

	iF := U.child1
	iG := U.child2
	F := &t.nodes[iF]
	G := &t.nodes[iG]

	// Swap A and U
	U.child1 = iA
	U.parent = A.parent
	A.parent = iUp

	// A's old parent should point to U
	if U.parent != NullNode {
		if t.nodes[U.parent].child1 == iA {
			t.nodes[U.parent].child1 = iUp
		} else {
			t.nodes[U.parent].child2 = iUp
		}
	} else {
		t.root = iUp
	}

	// The taller grandchild stays under U, the other moves under A.
	keep, move := iF, iG
	if F.height <= G.height {
		keep, move = iG, iF
	}
	K := &t.nodes[keep]
	M := &t.nodes[move]

	U.child2 = keep
	if upIsChild2 {
		A.child2 = move
	} else {
		A.child1 = move
	}
	M.parent = iA

	A.aabb = O.aabb.Combine(M.aabb)
	U.aabb = A.aabb.Combine(K.aabb)

	A.height = 1 + max(O.height, M.height)
	U.height = 1 + max(A.height, K.height)

	return iUp
}

// Height returns the height of the tree, zero when empty.
func (t *DynamicTree[T]) Height() int {
	if t.root == NullNode {
		return 0
	}
	return t.nodes[t.root].height
}

// ProxyCount returns the number of leaves.
func (t *DynamicTree[T]) ProxyCount() int {
	return (t.count + 1) / 2
}

// MaxBalance returns the largest height difference between two siblings.
func (t *DynamicTree[T]) MaxBalance() int {
	maxBalance := 0
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.height <= 1 {
			continue
		}
		balance := t.nodes[n.child2].height - t.nodes[n.child1].height
		if balance < 0 {
			balance = -balance
		}
		maxBalance = max(maxBalance, balance)
	}
	return maxBalance
}

// AreaRatio is the sum of all node perimeters over the root perimeter.
// Lower is better.
func (t *DynamicTree[T]) AreaRatio() float64 {
	if t.root == NullNode {
		return 0
	}

	rootArea := t.nodes[t.root].aabb.Perimeter()
	totalArea := 0.0
	for i := range t.nodes {
		if t.nodes[i].height < 0 {
			continue
		}
		totalArea += t.nodes[i].aabb.Perimeter()
	}
	return totalArea / rootArea
}

// Validate checks the structure and metrics of the tree and returns the
// first inconsistency found.
func (t *DynamicTree[T]) Validate() error {
	if t.root != NullNode && t.nodes[t.root].parent != NullNode {
		return fmt.Errorf("root %d has parent %d", t.root, t.nodes[t.root].parent)
	}
	if err := t.validate(t.root); err != nil {
		return err
	}

	freeCount := 0
	for i := t.freeList; i != NullNode; i = t.nodes[i].parent {
		freeCount++
	}
	if t.count+freeCount != len(t.nodes) {
		return fmt.Errorf("node count %d + free %d != capacity %d", t.count, freeCount, len(t.nodes))
	}
	if h := t.computeHeight(t.root); h != t.Height() {
		return fmt.Errorf("height %d, computed %d", t.Height(), h)
	}
	return nil
}

func (t *DynamicTree[T]) validate(index int) error {
	if index == NullNode {
		return nil
	}

	n := &t.nodes[index]
	if n.isLeaf() {
		if n.child2 != NullNode || n.height != 0 {
			return fmt.Errorf("leaf %d: child2 %d height %d", index, n.child2, n.height)
		}
		return nil
	}

	c1, c2 := n.child1, n.child2
	if t.nodes[c1].parent != index || t.nodes[c2].parent != index {
		return fmt.Errorf("node %d: children do not point back", index)
	}
	if h := 1 + max(t.nodes[c1].height, t.nodes[c2].height); n.height != h {
		return fmt.Errorf("node %d: height %d, want %d", index, n.height, h)
	}
	if aabb := t.nodes[c1].aabb.Combine(t.nodes[c2].aabb); aabb != n.aabb {
		return fmt.Errorf("node %d: aabb %v, want %v", index, n.aabb, aabb)
	}

	if err := t.validate(c1); err != nil {
		return err
	}
	return t.validate(c2)
}

func (t *DynamicTree[T]) computeHeight(index int) int {
	if index == NullNode {
		return 0
	}
	n := &t.nodes[index]
	if n.isLeaf() {
		return 0
	}
	return 1 + max(t.computeHeight(n.child1), t.computeHeight(n.child2))
}

// RebuildBottomUp rebuilds an optimal tree from the current leaves.
// It is expensive and meant for tools and tests.
func (t *DynamicTree[T]) RebuildBottomUp() {
	leaves := make([]int, 0, t.ProxyCount())

	// Build array of leaves. Free the rest.
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.height < 0 {
			continue
		}
		if n.isLeaf() {
			n.parent = NullNode
			leaves = append(leaves, i)
		} else {
			t.freeNode(i)
		}
	}

	for len(leaves) > 1 {
		minCost := math.MaxFloat64
		iMin, jMin := -1, -1
		for i := range leaves {
			aabbi := t.nodes[leaves[i]].aabb
			for j := i + 1; j < len(leaves); j++ {
				cost := aabbi.Combine(t.nodes[leaves[j]].aabb).Perimeter()
				if cost < minCost {
					iMin, jMin = i, j
					minCost = cost
				}
			}
		}

		index1 := leaves[iMin]
		index2 := leaves[jMin]

		parentIndex := t.allocateNode()
		parent := &t.nodes[parentIndex]
		parent.child1 = index1
		parent.child2 = index2
		parent.height = 1 + max(t.nodes[index1].height, t.nodes[index2].height)
		parent.aabb = t.nodes[index1].aabb.Combine(t.nodes[index2].aabb)
		parent.parent = NullNode

		t.nodes[index1].parent = parentIndex
		t.nodes[index2].parent = parentIndex

		leaves[jMin] = leaves[len(leaves)-1]
		leaves[iMin] = parentIndex
		leaves = leaves[:len(leaves)-1]
	}

	if len(leaves) == 1 {
		t.root = leaves[0]
	} else {
		t.root = NullNode
	}
}

// ShiftOrigin translates every node: newOrigin becomes the new origin.
func (t *DynamicTree[T]) ShiftOrigin(newOrigin mgl64.Vec2) {
	for i := range t.nodes {
		t.nodes[i].aabb.LowerBound = t.nodes[i].aabb.LowerBound.Sub(newOrigin)
		t.nodes[i].aabb.UpperBound = t.nodes[i].aabb.UpperBound.Sub(newOrigin)
	}
}
