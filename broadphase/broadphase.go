package broadphase

import (
	"cmp"
	"slices"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Pair of proxies whose fat AABBs overlap, with ProxyA < ProxyB.
type Pair struct {
	ProxyA int
	ProxyB int
}

// BroadPhase tracks moved proxies and reports new overlapping pairs.
type BroadPhase[T any] struct {
	tree       *DynamicTree[T]
	moveBuffer []int
	pairBuffer []Pair

	queryProxyID int
}

// New returns an empty broad phase.
func New[T any]() *BroadPhase[T] {
	return &BroadPhase[T]{
		tree:       NewDynamicTree[T](),
		moveBuffer: make([]int, 0, 16),
		pairBuffer: make([]Pair, 0, 16),
	}
}

// CreateProxy creates a proxy with an initial AABB. Pairs are not reported
// until UpdatePairs is called.
func (bp *BroadPhase[T]) CreateProxy(aabb geom.AABB, userData T) int {
	id := bp.tree.CreateProxy(aabb, userData)
	bp.bufferMove(id)
	return id
}

// DestroyProxy destroys a proxy. The caller removes any pairs that reference it.
func (bp *BroadPhase[T]) DestroyProxy(id int) {
	bp.unbufferMove(id)
	bp.tree.DestroyProxy(id)
}

// MoveProxy updates the AABB of a proxy. Call it as many times as needed,
// then call UpdatePairs to finalize the pairs.
func (bp *BroadPhase[T]) MoveProxy(id int, aabb geom.AABB, displacement mgl64.Vec2) {
	if bp.tree.MoveProxy(id, aabb, displacement) {
		bp.bufferMove(id)
	}
}

// TouchProxy forces pair updates for a proxy on the next UpdatePairs.
func (bp *BroadPhase[T]) TouchProxy(id int) {
	bp.bufferMove(id)
}

// FatAABB returns the fat AABB of a proxy.
func (bp *BroadPhase[T]) FatAABB(id int) geom.AABB {
	return bp.tree.FatAABB(id)
}

// UserData returns the data attached to a proxy.
func (bp *BroadPhase[T]) UserData(id int) T {
	return bp.tree.UserData(id)
}

// TestOverlap reports whether the fat AABBs of two proxies overlap.
func (bp *BroadPhase[T]) TestOverlap(proxyA, proxyB int) bool {
	return bp.tree.FatAABB(proxyA).Overlaps(bp.tree.FatAABB(proxyB))
}

// ProxyCount returns the number of proxies.
func (bp *BroadPhase[T]) ProxyCount() int {
	return bp.tree.ProxyCount()
}

// TreeHeight returns the height of the embedded tree.
func (bp *BroadPhase[T]) TreeHeight() int {
	return bp.tree.Height()
}

// TreeBalance returns the balance of the embedded tree.
func (bp *BroadPhase[T]) TreeBalance() int {
	return bp.tree.MaxBalance()
}

// TreeQuality returns the quality metric of the embedded tree.
func (bp *BroadPhase[T]) TreeQuality() float64 {
	return bp.tree.AreaRatio()
}

// Tree exposes the embedded tree for validation and tooling.
func (bp *BroadPhase[T]) Tree() *DynamicTree[T] {
	return bp.tree
}

// Query calls callback for each proxy overlapping aabb.
func (bp *BroadPhase[T]) Query(aabb geom.AABB, callback func(id int) bool) {
	bp.tree.Query(aabb, callback)
}

// RayCast casts a ray against the proxies.
func (bp *BroadPhase[T]) RayCast(input geom.RayCastInput, callback RayCastCallback) {
	bp.tree.RayCast(input, callback)
}

// ShiftOrigin translates all proxies.
func (bp *BroadPhase[T]) ShiftOrigin(newOrigin mgl64.Vec2) {
	bp.tree.ShiftOrigin(newOrigin)
}

// UpdatePairs queries the tree with every moved proxy and calls addPair once
// for each new overlapping pair, in (ProxyA, ProxyB) order.
func (bp *BroadPhase[T]) UpdatePairs(addPair func(userDataA, userDataB T)) {
	bp.pairBuffer = bp.pairBuffer[:0]

	// Perform tree queries for all moving proxies.
	for _, id := range bp.moveBuffer {
		bp.queryProxyID = id
		if id == NullNode {
			continue
		}

		// We have to query the tree with the fat AABB so that
		// we don't fail to create a pair that may touch later.
		bp.tree.Query(bp.tree.FatAABB(id), bp.queryCallback)
	}

	slices.SortFunc(bp.pairBuffer, func(a, b Pair) int {
		if c := cmp.Compare(a.ProxyA, b.ProxyA); c != 0 {
			return c
		}
		return cmp.Compare(a.ProxyB, b.ProxyB)
	})
	bp.pairBuffer = slices.Compact(bp.pairBuffer)

	for _, p := range bp.pairBuffer {
		addPair(bp.tree.UserData(p.ProxyA), bp.tree.UserData(p.ProxyB))
	}

	// Clear move flags
	for _, id := range bp.moveBuffer {
		if id != NullNode {
			bp.tree.ClearMoved(id)
		}
	}

	// Reset move buffer
	bp.moveBuffer = bp.moveBuffer[:0]
}

func (bp *BroadPhase[T]) queryCallback(id int) bool {
	// A proxy cannot form a pair with itself.
	if id == bp.queryProxyID {
		return true
	}

	// Both proxies are moving. Avoid duplicate pairs.
	if bp.tree.WasMoved(id) && id > bp.queryProxyID {
		return true
	}

	bp.pairBuffer = append(bp.pairBuffer, Pair{
		ProxyA: min(id, bp.queryProxyID),
		ProxyB: max(id, bp.queryProxyID),
	})
	return true
}

func (bp *BroadPhase[T]) bufferMove(id int) {
	bp.moveBuffer = append(bp.moveBuffer, id)
}

func (bp *BroadPhase[T]) unbufferMove(id int) {
	for i, moved := range bp.moveBuffer {
		if moved == id {
			bp.moveBuffer[i] = NullNode
		}
	}
}
