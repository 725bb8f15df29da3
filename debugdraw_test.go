package feather2d

import (
	"image/color"
	"testing"

	"github.com/akmonengine/feather2d/constraint"
	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

// recordingDraw counts the primitives drawn per kind.
type recordingDraw struct {
	polygons, solidPolygons, circles, solidCircles int
	segments, transforms, points                   int
	colors                                         []color.RGBA
}

func (r *recordingDraw) DrawPolygon(_ []mgl64.Vec2, _ color.RGBA) { r.polygons++ }
func (r *recordingDraw) DrawSolidPolygon(v []mgl64.Vec2, c color.RGBA) {
	r.solidPolygons++
	r.colors = append(r.colors, c)
}
func (r *recordingDraw) DrawCircle(_ mgl64.Vec2, _ float64, _ color.RGBA) { r.circles++ }
func (r *recordingDraw) DrawSolidCircle(_ mgl64.Vec2, _ float64, _ mgl64.Vec2, c color.RGBA) {
	r.solidCircles++
	r.colors = append(r.colors, c)
}
func (r *recordingDraw) DrawSegment(_, _ mgl64.Vec2, _ color.RGBA)       { r.segments++ }
func (r *recordingDraw) DrawTransform(_ geom.Transform)                  { r.transforms++ }
func (r *recordingDraw) DrawPoint(_ mgl64.Vec2, _ float64, _ color.RGBA) { r.points++ }

func TestWorld_DrawDebugData(t *testing.T) {
	w := newTestWorld(t)
	ground := createGround(t, w)
	createBox(t, w, mgl64.Vec2{0, 0.45}, 0.5)
	bob := createCircle(t, w, DynamicBody, mgl64.Vec2{3, 2}, 0.25)

	_, err := w.CreateJoint(JointDef{
		BodyA:  ground,
		BodyB:  bob,
		Params: &constraint.DistanceJointDef{LocalAnchorA: mgl64.Vec2{3, 4}, Length: 2},
	})
	require.NoError(t, err)
	stepN(t, w, 1)

	tests := []struct {
		name  string
		flags DrawFlags
		check func(t *testing.T, r *recordingDraw)
	}{
		{"nothing", 0, func(t *testing.T, r *recordingDraw) {
			require.Equal(t, recordingDraw{}, *r)
		}},
		{"shapes", DrawShapes, func(t *testing.T, r *recordingDraw) {
			require.Equal(t, 2, r.solidPolygons)
			require.Equal(t, 1, r.solidCircles)
			require.Contains(t, r.colors, colorStatic)
			require.Contains(t, r.colors, colorAwake)
		}},
		{"joints", DrawJoints, func(t *testing.T, r *recordingDraw) {
			require.Equal(t, 1, r.segments)
		}},
		{"aabbs", DrawAABBs, func(t *testing.T, r *recordingDraw) {
			require.Equal(t, 3, r.polygons)
		}},
		{"centers of mass", DrawCenterOfMass, func(t *testing.T, r *recordingDraw) {
			require.Equal(t, 3, r.transforms)
		}},
		{"contact points", DrawContactPoints, func(t *testing.T, r *recordingDraw) {
			require.Equal(t, 2, r.points)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recordingDraw{}
			w.DrawDebugData(r, tt.flags)
			tt.check(t, r)
		})
	}
}

func TestWorld_DrawDebugDataNilDrawer(t *testing.T) {
	w := newTestWorld(t)
	createGround(t, w)

	// Should not panic
	w.DrawDebugData(nil, DrawShapes|DrawAABBs)
}
