package broadphase

import (
	"math/rand"
	"testing"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func box(x, y, h float64) geom.AABB {
	return geom.AABB{
		LowerBound: mgl64.Vec2{x - h, y - h},
		UpperBound: mgl64.Vec2{x + h, y + h},
	}
}

func collectPairs(bp *BroadPhase[string]) [][2]string {
	var pairs [][2]string
	bp.UpdatePairs(func(a, b string) {
		pairs = append(pairs, [2]string{a, b})
	})
	return pairs
}

func TestDynamicTreeCreateDestroy(t *testing.T) {
	tree := NewDynamicTree[int]()
	rng := rand.New(rand.NewSource(1))

	ids := make([]int, 0, 200)
	for i := 0; i < 200; i++ {
		ids = append(ids, tree.CreateProxy(box(rng.Float64()*100, rng.Float64()*100, 0.5), i))
	}
	require.NoError(t, tree.Validate())
	if got := tree.ProxyCount(); got != 200 {
		t.Errorf("ProxyCount got %v, want %v", got, 200)
	}
	if tree.Height() >= 200 {
		t.Errorf("Height got %v, want a balanced tree", tree.Height())
	}

	for i, id := range ids {
		if i%2 == 0 {
			tree.DestroyProxy(id)
		}
	}
	require.NoError(t, tree.Validate())
	require.Equal(t, 100, tree.ProxyCount())
}

func TestDynamicTreeFatAABB(t *testing.T) {
	tree := NewDynamicTree[int]()
	id := tree.CreateProxy(box(0, 0, 1), 7)

	fat := tree.FatAABB(id)
	require.InDelta(t, -1-geom.AABBExtension, fat.LowerBound.X(), 1e-12)
	require.InDelta(t, 1+geom.AABBExtension, fat.UpperBound.Y(), 1e-12)
	require.Equal(t, 7, tree.UserData(id))
}

func TestDynamicTreeMoveProxy(t *testing.T) {
	tests := []struct {
		name         string
		aabb         geom.AABB
		displacement mgl64.Vec2
		wantMoved    bool
	}{
		{"inside fat margin", box(0.05, 0, 1), mgl64.Vec2{0.05, 0}, false},
		{"escaped fat margin", box(0.5, 0, 1), mgl64.Vec2{0.5, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewDynamicTree[int]()
			id := tree.CreateProxy(box(0, 0, 1), 0)
			if got := tree.MoveProxy(id, tt.aabb, tt.displacement); got != tt.wantMoved {
				t.Errorf("MoveProxy got %v, want %v", got, tt.wantMoved)
			}
			require.True(t, tree.FatAABB(id).Contains(tt.aabb))
		})
	}
}

func TestDynamicTreeMovePredictsDisplacement(t *testing.T) {
	tree := NewDynamicTree[int]()
	id := tree.CreateProxy(box(0, 0, 1), 0)

	require.True(t, tree.MoveProxy(id, box(1, 0, 1), mgl64.Vec2{1, 0}))
	fat := tree.FatAABB(id)
	require.InDelta(t, 2+geom.AABBExtension+geom.AABBMultiplier, fat.UpperBound.X(), 1e-12)
	require.InDelta(t, -geom.AABBExtension, fat.LowerBound.X(), 1e-12)
}

func TestDynamicTreeQuery(t *testing.T) {
	tree := NewDynamicTree[int]()
	for i := 0; i < 10; i++ {
		tree.CreateProxy(box(float64(i)*3, 0, 1), i)
	}

	var found []int
	tree.Query(box(6, 0, 2), func(id int) bool {
		found = append(found, tree.UserData(id))
		return true
	})
	require.ElementsMatch(t, []int{1, 2, 3}, found)

	count := 0
	tree.Query(box(6, 0, 100), func(int) bool {
		count++
		return false
	})
	require.Equal(t, 1, count)
}

func TestDynamicTreeRayCast(t *testing.T) {
	tree := NewDynamicTree[int]()
	for i := 0; i < 5; i++ {
		tree.CreateProxy(box(float64(i)*3, 0, 0.5), i)
	}
	tree.CreateProxy(box(6, 10, 0.5), 99)

	var hits []int
	tree.RayCast(geom.RayCastInput{P1: mgl64.Vec2{-5, 0}, P2: mgl64.Vec2{20, 0}, MaxFraction: 1}, func(input geom.RayCastInput, id int) float64 {
		hits = append(hits, tree.UserData(id))
		return input.MaxFraction
	})
	require.ElementsMatch(t, []int{0, 1, 2, 3, 4}, hits)

	// Clipping stops the traversal beyond the first hit.
	hits = hits[:0]
	tree.RayCast(geom.RayCastInput{P1: mgl64.Vec2{-5, 0}, P2: mgl64.Vec2{20, 0}, MaxFraction: 1}, func(input geom.RayCastInput, id int) float64 {
		hits = append(hits, tree.UserData(id))
		return 0
	})
	require.Len(t, hits, 1)
}

func TestDynamicTreeRebuildBottomUp(t *testing.T) {
	tree := NewDynamicTree[int]()
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 64; i++ {
		tree.CreateProxy(box(rng.Float64()*50, rng.Float64()*50, 0.5), i)
	}

	tree.RebuildBottomUp()
	require.NoError(t, tree.Validate())
	require.Equal(t, 64, tree.ProxyCount())
	require.GreaterOrEqual(t, tree.AreaRatio(), 1.0)
}

func TestDynamicTreeShiftOrigin(t *testing.T) {
	tree := NewDynamicTree[int]()
	id := tree.CreateProxy(box(10, 10, 1), 0)
	tree.ShiftOrigin(mgl64.Vec2{10, 10})
	require.InDelta(t, 0, tree.FatAABB(id).Center().X(), 1e-12)
	require.NoError(t, tree.Validate())
}

func TestBroadPhaseUpdatePairs(t *testing.T) {
	bp := New[string]()
	a := bp.CreateProxy(box(0, 0, 1), "a")
	b := bp.CreateProxy(box(1.5, 0, 1), "b")
	bp.CreateProxy(box(10, 0, 1), "c")

	pairs := collectPairs(bp)
	require.Len(t, pairs, 1)
	require.ElementsMatch(t, []string{"a", "b"}, pairs[0][:])

	// Nothing moved: no pair is reported again.
	require.Empty(t, collectPairs(bp))

	// Touching a proxy re-reports its pairs exactly once.
	bp.TouchProxy(a)
	bp.TouchProxy(a)
	require.Len(t, collectPairs(bp), 1)

	require.Equal(t, 3, bp.ProxyCount())
	require.True(t, bp.TestOverlap(a, b))
	require.NoError(t, bp.Tree().Validate())
}

func TestBroadPhaseDestroyedProxyInMoveBuffer(t *testing.T) {
	bp := New[string]()
	bp.CreateProxy(box(0, 0, 1), "a")
	b := bp.CreateProxy(box(1, 0, 1), "b")
	bp.DestroyProxy(b)

	require.Empty(t, collectPairs(bp))
	require.Equal(t, 1, bp.ProxyCount())
}

func TestBroadPhaseBothMovingReportsOnce(t *testing.T) {
	bp := New[string]()
	a := bp.CreateProxy(box(0, 0, 1), "a")
	b := bp.CreateProxy(box(5, 0, 1), "b")
	collectPairs(bp)

	bp.MoveProxy(a, box(2, 0, 1), mgl64.Vec2{2, 0})
	bp.MoveProxy(b, box(3, 0, 1), mgl64.Vec2{-2, 0})

	pairs := collectPairs(bp)
	require.Len(t, pairs, 1)
}

func BenchmarkBroadPhaseUpdatePairs(b *testing.B) {
	bp := New[int]()
	rng := rand.New(rand.NewSource(3))
	ids := make([]int, 1000)
	for i := range ids {
		ids[i] = bp.CreateProxy(box(rng.Float64()*200, rng.Float64()*200, 0.5), i)
	}
	bp.UpdatePairs(func(int, int) {})

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		for _, id := range ids {
			d := mgl64.Vec2{rng.Float64() - 0.5, rng.Float64() - 0.5}
			c := bp.FatAABB(id).Center().Add(d)
			bp.MoveProxy(id, box(c.X(), c.Y(), 0.5), d)
		}
		bp.UpdatePairs(func(int, int) {})
	}
}
