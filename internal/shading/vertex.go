package shading

import (
	"cogentcore.org/core/math32"
)

// VertexMain is the vertex stage: the position, extended with w = 1, is
// multiplied by the view-projection matrix and the texture coordinate is
// forwarded untouched. A degenerate matrix yields meaningless clip
// coordinates; it is never reported here.
func VertexMain(cam Camera, in VertexInput) VertexOutput {
	p := math32.Vector4FromVector3(in.Position, 1)
	return VertexOutput{
		ClipPosition: p.MulMatrix4(&cam.ViewProj),
		TexCoords:    in.TexCoords,
	}
}

// InClipVolume reports whether a clip-space position lies inside the
// WebGPU view volume: -w <= x, y <= w and 0 <= z <= w.
func InClipVolume(p math32.Vector4) bool {
	return p.W > 0 &&
		p.X >= -p.W && p.X <= p.W &&
		p.Y >= -p.W && p.Y <= p.W &&
		p.Z >= 0 && p.Z <= p.W
}
