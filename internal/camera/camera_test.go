package camera

import (
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"

	"terrainviewer/internal/shading"
)

const tol = 1e-4

func clip(cam shading.Camera, p math32.Vector3) math32.Vector3 {
	c := shading.VertexMain(cam, shading.VertexInput{Position: p}).ClipPosition
	return math32.Vec3(c.X/c.W, c.Y/c.W, c.Z/c.W)
}

func TestProjectionDepthRange(t *testing.T) {
	cam := NewCamera(math32.Vec3(0, 0, 0), -90, 0) // looking down -Z
	proj := NewProjection(800, 600, DefaultFovY, 1, 100)
	vp := ViewProj(cam, proj)

	near := clip(vp, math32.Vec3(0, 0, -1))
	far := clip(vp, math32.Vec3(0, 0, -100))
	assert.InDelta(t, 0, near.Z, tol)
	assert.InDelta(t, 1, far.Z, tol)

	mid := clip(vp, math32.Vec3(0, 0, -10))
	assert.InDelta(t, 0, mid.X, tol)
	assert.InDelta(t, 0, mid.Y, tol)
	assert.True(t, mid.Z > 0 && mid.Z < 1)
}

func TestViewMatrixOrientation(t *testing.T) {
	cam := NewCamera(math32.Vec3(0, 0, 0), -90, 0)
	vp := ViewProj(cam, NewProjection(100, 100, DefaultFovY, 0.1, 100))

	// right of the view axis maps to +x, above it to +y
	assert.Greater(t, clip(vp, math32.Vec3(1, 0, -5)).X, float32(0))
	assert.Greater(t, clip(vp, math32.Vec3(0, 1, -5)).Y, float32(0))

	// behind the camera has negative w
	behind := shading.VertexMain(vp, shading.VertexInput{Position: math32.Vec3(0, 0, 5)})
	assert.Less(t, behind.ClipPosition.W, float32(0))
}

func TestViewMatrixTranslation(t *testing.T) {
	cam := NewCamera(math32.Vec3(3, 4, 5), 0, 0) // looking down +X
	view := cam.ViewMatrix()
	p := math32.Vector4FromVector3(math32.Vec3(13, 4, 5), 1).MulMatrix4(&view)
	assert.InDelta(t, 0, p.X, tol)
	assert.InDelta(t, 0, p.Y, tol)
	assert.InDelta(t, -10, p.Z, tol)
}

func TestProjectionMatrixScale(t *testing.T) {
	p := NewProjection(200, 100, 90*math32.Pi/180, 1, 10)
	m := p.Matrix()

	// tan(45°) = 1, so x is scaled by 1/aspect and y by 1
	assert.InDelta(t, 0.5, m[0], tol)
	assert.InDelta(t, 1, m[5], tol)
	assert.InDelta(t, -1, m[11], tol)
}

func TestLookAt(t *testing.T) {
	cam := NewCamera(math32.Vec3(0, 10, 0), 0, 0)
	cam.LookAt(math32.Vec3(10, 0, 0))
	f := cam.Forward()
	assert.InDelta(t, math32.Sqrt(0.5), f.X, tol)
	assert.InDelta(t, -math32.Sqrt(0.5), f.Y, tol)
	assert.InDelta(t, 0, f.Z, tol)
}

func TestProjectionResize(t *testing.T) {
	p := NewProjection(800, 400, DefaultFovY, DefaultZNear, DefaultZFar)
	assert.Equal(t, float32(2), p.Aspect)
	p.Resize(0, 300)
	assert.Equal(t, float32(2), p.Aspect)
	p.Resize(300, 300)
	assert.Equal(t, float32(1), p.Aspect)
}

func TestControllerMovesForward(t *testing.T) {
	cam := NewCamera(math32.Vec3(0, 0, 0), 0, 0)
	c := NewController(10, 1)

	assert.False(t, c.Moving())
	c.ProcessKeyboard(Forward, true)
	assert.True(t, c.Moving())

	c.UpdateCamera(cam, 500*time.Millisecond)
	assert.InDelta(t, 5, cam.Position.X, tol)
	assert.InDelta(t, 0, cam.Position.Z, tol)

	c.ProcessKeyboard(Forward, false)
	c.ProcessKeyboard(Up, true)
	c.UpdateCamera(cam, time.Second)
	assert.InDelta(t, 10, cam.Position.Y, tol)
}

func TestControllerClampsPitch(t *testing.T) {
	cam := NewCamera(math32.Vec3(0, 0, 0), 0, 0)
	c := NewController(1, 1)
	c.ProcessMouse(0, -1e6)
	c.UpdateCamera(cam, time.Second)
	assert.Equal(t, float32(SafePitch), cam.Pitch)
	assert.False(t, c.Moving())
}

func TestControllerScroll(t *testing.T) {
	cam := NewCamera(math32.Vec3(0, 0, 0), 0, 0)
	c := NewController(10, 1)
	c.ProcessScroll(1)
	c.UpdateCamera(cam, 0)
	assert.InDelta(t, 11, c.Speed, tol)

	c.ProcessScroll(-50)
	c.UpdateCamera(cam, 0)
	assert.Equal(t, float32(0), c.Speed)
}
