package gjk

import (
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
)

// Proxy is the convex vertex cloud of one shape child, plus its skin radius.
// GJK only ever talks to shapes through proxies.
type Proxy struct {
	vertices []mgl64.Vec2
	buffer   [2]mgl64.Vec2
	Radius   float64
}

// MakeProxy builds the proxy of child index of s. Polygons and chains are
// referenced without copying; the proxy must not outlive the shape.
func MakeProxy(s shape.Shape, index int) Proxy {
	var p Proxy

	switch sh := s.(type) {
	case *shape.Circle:
		p.buffer[0] = sh.Center
		p.vertices = p.buffer[:1]
		p.Radius = sh.Radius()

	case *shape.Polygon:
		p.vertices = sh.Vertices[:sh.Count]
		p.Radius = sh.Radius()

	case *shape.Chain:
		p.buffer[0] = sh.Vertices[index]
		p.buffer[1] = sh.Vertices[index+1]
		p.vertices = p.buffer[:2]
		p.Radius = sh.Radius()

	case *shape.Edge:
		p.buffer[0] = sh.V1
		p.buffer[1] = sh.V2
		p.vertices = p.buffer[:2]
		p.Radius = sh.Radius()
	}

	return p
}

// NewProxy builds a proxy over an arbitrary convex vertex set.
func NewProxy(vertices []mgl64.Vec2, radius float64) Proxy {
	return Proxy{vertices: vertices, Radius: radius}
}

// Count returns the number of vertices.
func (p *Proxy) Count() int {
	return len(p.vertices)
}

// Vertex returns a vertex by index.
func (p *Proxy) Vertex(index int) mgl64.Vec2 {
	return p.vertices[index]
}

// Support returns the index of the vertex furthest along d.
func (p *Proxy) Support(d mgl64.Vec2) int {
	best := 0
	bestValue := p.vertices[0].Dot(d)
	for i := 1; i < len(p.vertices); i++ {
		if value := p.vertices[i].Dot(d); value > bestValue {
			best = i
			bestValue = value
		}
	}
	return best
}

// SupportVertex returns the vertex furthest along d.
func (p *Proxy) SupportVertex(d mgl64.Vec2) mgl64.Vec2 {
	return p.vertices[p.Support(d)]
}
