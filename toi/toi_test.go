package toi

import (
	"testing"

	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/gjk"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func staticSweep(p mgl64.Vec2) geom.Sweep {
	return geom.Sweep{C0: p, C: p}
}

func bulletInput(t *testing.T, from, to mgl64.Vec2) Input {
	t.Helper()

	wall := shape.NewBox(0.1, 5)
	bullet, err := shape.NewCircle(mgl64.Vec2{}, 0.25)
	require.NoError(t, err)

	return Input{
		ProxyA: gjk.MakeProxy(wall, 0),
		ProxyB: gjk.MakeProxy(bullet, 0),
		SweepA: staticSweep(mgl64.Vec2{}),
		SweepB: geom.Sweep{C0: from, C: to},
		TMax:   1,
	}
}

func TestTimeOfImpact(t *testing.T) {
	tests := []struct {
		name      string
		from, to  mgl64.Vec2
		wantState State
	}{
		{"tunneling bullet", mgl64.Vec2{-10, 0}, mgl64.Vec2{10, 0}, StateTouching},
		{"moving away", mgl64.Vec2{-2, 0}, mgl64.Vec2{-10, 0}, StateSeparated},
		{"passing above", mgl64.Vec2{-10, 8}, mgl64.Vec2{10, 8}, StateSeparated},
		{"starting inside", mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0}, StateOverlapped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := bulletInput(t, tt.from, tt.to)
			out := TimeOfImpact(&input)
			if out.State != tt.wantState {
				t.Errorf("State got %v, want %v", out.State, tt.wantState)
			}
			require.GreaterOrEqual(t, out.T, 0.0)
			require.LessOrEqual(t, out.T, input.TMax)
		})
	}
}

func TestTimeOfImpactSeparationAtImpact(t *testing.T) {
	input := bulletInput(t, mgl64.Vec2{-10, 0}, mgl64.Vec2{10, 0})
	out := TimeOfImpact(&input)
	require.Equal(t, StateTouching, out.State)

	// The wall face is at x = -0.1 and the circle core is its center, so the
	// expected core distance at impact is the target separation.
	target := Target(input.ProxyA.Radius + input.ProxyB.Radius)
	centerX := -10 + 20*out.T
	require.InDelta(t, target, -0.1-centerX, Tolerance)
}

func TestTimeOfImpactMonotonic(t *testing.T) {
	input := bulletInput(t, mgl64.Vec2{-10, 0.3}, mgl64.Vec2{10, -0.2})
	first := TimeOfImpact(&input)
	require.Equal(t, StateTouching, first.State)

	// Re-query from the impact configuration toward the same end pose.
	input.SweepB.Advance(first.T)
	input.SweepB.Alpha0 = 0
	second := TimeOfImpact(&input)

	require.Equal(t, StateTouching, second.State)
	require.InDelta(t, 0.0, second.T, 1e-9)
}

func TestTimeOfImpactRotating(t *testing.T) {
	ground := shape.NewBox(5, 0.1)
	stick := shape.NewBox(1, 0.05)

	input := Input{
		ProxyA: gjk.MakeProxy(ground, 0),
		ProxyB: gjk.MakeProxy(stick, 0),
		SweepA: staticSweep(mgl64.Vec2{}),
		SweepB: geom.Sweep{
			C0: mgl64.Vec2{0, 3},
			C:  mgl64.Vec2{0, -1},
			A0: 0,
			A:  6,
		},
		TMax: 1,
	}

	out := TimeOfImpact(&input)
	require.Contains(t, []State{StateTouching, StateFailed}, out.State)
	require.Less(t, out.T, 1.0)

	// At the reported time the shapes have not crossed.
	xfA := input.SweepA.Transform(out.T)
	xfB := input.SweepB.Transform(out.T)
	distance := gjk.Distance(&gjk.Input{
		ProxyA:     input.ProxyA,
		ProxyB:     input.ProxyB,
		TransformA: xfA,
		TransformB: xfB,
	}, &gjk.SimplexCache{})
	require.Greater(t, distance.Distance, 0.0)
}
