// Package shading is the CPU form of the terrain effect's two shader stages:
// the vertex transform and the fragment compositing stage with its explicit
// bilinear elevation filter. Every function here is pure; per-draw data is
// passed in as read-only values, mirroring the uniforms and bind groups of
// the WGSL version in internal/renderer.
package shading

import (
	"cogentcore.org/core/math32"
)

// Camera matches the camera uniform at group 1, binding 0.
type Camera struct {
	// ViewProj is column-major, as uploaded to the GPU.
	ViewProj math32.Matrix4
}

// IdentityCamera returns a camera whose clip space equals model space.
func IdentityCamera() Camera {
	return Camera{ViewProj: math32.Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

// VertexInput is one element of the vertex buffer: location 0 is the
// position, location 1 the texture coordinate.
type VertexInput struct {
	Position  math32.Vector3
	TexCoords math32.Vector2
}

// VertexOutput is what the vertex stage hands to the rasterizer.
type VertexOutput struct {
	// ClipPosition is homogeneous; the divide by W happens downstream.
	ClipPosition math32.Vector4
	TexCoords    math32.Vector2
}

// Dimensions matches the uniform at group 0, binding 4.
//
// The slot is part of the binding contract and hosts always fill it with
// the elevation texture size, but compositing does not read it: texel grid
// sizes come from the texture itself.
type Dimensions struct {
	Width  float32
	Height float32
}

// Bindings is the complete group 0 resource set for one draw.
type Bindings struct {
	Base             Texture
	BaseSampler      Sampler
	Elevation        Texture
	ElevationSampler Sampler
	Dimensions       Dimensions
}
