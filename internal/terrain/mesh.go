// Package terrain turns an elevation grid into the vertex and index data the
// terrain pipeline draws.
package terrain

import (
	"fmt"

	"cogentcore.org/core/math32"

	"terrainviewer/internal/elevation"
	"terrainviewer/internal/logger"
	"terrainviewer/internal/shading"
)

// RestartIndex ends one triangle strip and starts the next.
const RestartIndex = 0xFFFFFFFF

// Vertex matches the vertex buffer layout: float32x3 position at offset 0,
// float32x2 texture coordinate at offset 12.
type Vertex struct {
	Position  [3]float32
	TexCoords [2]float32
}

// Mesh is a grid of vertices drawn as one triangle strip per row pair.
type Mesh struct {
	Width    int
	Height   int
	Vertices []Vertex
	Indices  []uint32
}

// BuildMesh places one vertex per elevation sample at (x, h, y), where h is
// the height above the grid minimum divided by heightScale. Texture
// coordinates are x/W and y/H.
func BuildMesh(g *elevation.Grid, heightScale float64) (*Mesh, error) {
	if g.Width < 2 || g.Height < 2 {
		return nil, fmt.Errorf("terrain: grid %dx%d too small for a mesh", g.Width, g.Height)
	}
	if heightScale <= 0 {
		return nil, fmt.Errorf("terrain: height scale must be positive, got %v", heightScale)
	}
	lo, _ := g.MinMax()

	m := &Mesh{
		Width:    g.Width,
		Height:   g.Height,
		Vertices: make([]Vertex, 0, g.Width*g.Height),
		Indices:  make([]uint32, 0, (g.Height-1)*(2*g.Width+1)),
	}
	w, h := float32(g.Width), float32(g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			m.Vertices = append(m.Vertices, Vertex{
				Position:  [3]float32{float32(x), float32((g.At(x, y) - lo) / heightScale), float32(y)},
				TexCoords: [2]float32{float32(x) / w, float32(y) / h},
			})
		}
	}

	for y := 0; y < g.Height-1; y++ {
		if y > 0 {
			m.Indices = append(m.Indices, RestartIndex)
		}
		for x := 0; x < g.Width; x++ {
			m.Indices = append(m.Indices,
				uint32(y*g.Width+x),
				uint32((y+1)*g.Width+x),
			)
		}
	}

	logger.Logger().Debug("terrain mesh built", "vertices", len(m.Vertices), "indices", len(m.Indices))
	return m, nil
}

// Input converts vertex i into the vertex stage's input record.
func (m *Mesh) Input(i int) shading.VertexInput {
	v := m.Vertices[i]
	return shading.VertexInput{
		Position:  math32.Vec3(v.Position[0], v.Position[1], v.Position[2]),
		TexCoords: math32.Vec2(v.TexCoords[0], v.TexCoords[1]),
	}
}

// Center returns the middle of the mesh footprint at mid height.
func (m *Mesh) Center() math32.Vector3 {
	var top float32
	for _, v := range m.Vertices {
		top = math32.Max(top, v.Position[1])
	}
	return math32.Vec3(float32(m.Width-1)/2, top/2, float32(m.Height-1)/2)
}

// VisibleVertices counts the vertices that land inside the clip volume for
// cam. The renderer logs it when the camera moves.
func (m *Mesh) VisibleVertices(cam shading.Camera) int {
	n := 0
	for i := range m.Vertices {
		if shading.InClipVolume(shading.VertexMain(cam, m.Input(i)).ClipPosition) {
			n++
		}
	}
	return n
}
