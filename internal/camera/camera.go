package camera

import (
	"cogentcore.org/core/math32"

	"terrainviewer/internal/shading"
)

const (
	// SafePitch keeps the view direction away from straight up or down,
	// where the look-to basis degenerates.
	SafePitch = math32.Pi/2 - 0.0001

	DefaultFovY  = 45 * math32.Pi / 180
	DefaultZNear = 0.1
	DefaultZFar  = 1000
)

// openGLToWGPU remaps OpenGL clip depth [-1, 1] onto WebGPU's [0, 1].
var openGLToWGPU = math32.Matrix4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera is a free-flying viewpoint
type Camera struct {
	Position math32.Vector3

	// Yaw and Pitch are in radians. Yaw 0 looks down +X, -Pi/2 down -Z.
	Yaw   float32
	Pitch float32
}

// NewCamera creates a camera at position with the given angles in degrees.
func NewCamera(position math32.Vector3, yawDeg, pitchDeg float32) *Camera {
	return &Camera{
		Position: position,
		Yaw:      math32.DegToRad(yawDeg),
		Pitch:    math32.DegToRad(pitchDeg),
	}
}

// Forward returns the unit view direction.
func (c *Camera) Forward() math32.Vector3 {
	sinPitch, cosPitch := math32.Sincos(c.Pitch)
	sinYaw, cosYaw := math32.Sincos(c.Yaw)
	return math32.Vec3(cosPitch*cosYaw, sinPitch, cosPitch*sinYaw).Normal()
}

// ViewMatrix is a right-handed look-to matrix with +Y up: the inverse of
// the camera's pose.
func (c *Camera) ViewMatrix() math32.Matrix4 {
	target := c.Position.Add(c.Forward())
	var rot math32.Quat
	rot.SetFromRotationMatrix(math32.NewLookAt(c.Position, target, math32.Vec3(0, 1, 0)))

	var pose math32.Matrix4
	pose.SetTransform(c.Position, rot, math32.Vec3(1, 1, 1))
	view, err := pose.Inverse()
	if err != nil {
		var m math32.Matrix4
		m.SetIdentity()
		return m
	}
	return *view
}

// LookAt turns the camera toward target.
func (c *Camera) LookAt(target math32.Vector3) {
	d := target.Sub(c.Position).Normal()
	c.Pitch = math32.Clamp(math32.Asin(d.Y), -SafePitch, SafePitch)
	c.Yaw = math32.Atan2(d.Z, d.X)
}

// Projection is a perspective projection for a viewport.
type Projection struct {
	Aspect float32
	FovY   float32 // radians
	ZNear  float32
	ZFar   float32
}

// NewProjection creates a projection for a width x height viewport.
func NewProjection(width, height int, fovY, zNear, zFar float32) *Projection {
	p := &Projection{FovY: fovY, ZNear: zNear, ZFar: zFar}
	p.Resize(width, height)
	return p
}

// Resize updates the aspect ratio. Zero sizes are ignored.
func (p *Projection) Resize(width, height int) {
	if width > 0 && height > 0 {
		p.Aspect = float32(width) / float32(height)
	}
}

// Matrix returns the perspective matrix with WebGPU depth range.
func (p *Projection) Matrix() math32.Matrix4 {
	var persp math32.Matrix4
	persp.SetPerspective(math32.RadToDeg(p.FovY), p.Aspect, p.ZNear, p.ZFar)

	var m math32.Matrix4
	m.MulMatrices(&openGLToWGPU, &persp)
	return m
}

// ViewProj combines projection and view into the camera uniform.
func ViewProj(c *Camera, p *Projection) shading.Camera {
	proj := p.Matrix()
	view := c.ViewMatrix()
	var vp math32.Matrix4
	vp.MulMatrices(&proj, &view)
	return shading.Camera{ViewProj: vp}
}
