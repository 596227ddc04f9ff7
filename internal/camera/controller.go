package camera

import (
	"time"

	"cogentcore.org/core/math32"
)

// Direction is a movement key the controller tracks.
type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
	Up
	Down
)

// Controller turns held keys, mouse motion and scrolling into camera motion.
type Controller struct {
	// Speed is in world units per second.
	Speed float32
	// Sensitivity is in radians per pixel of mouse motion, per second.
	Sensitivity float32

	amount [6]float32

	rotateHorizontal float32
	rotateVertical   float32
	scroll           float32
}

// NewController creates a controller.
func NewController(speed, sensitivity float32) *Controller {
	return &Controller{Speed: speed, Sensitivity: sensitivity}
}

// ProcessKeyboard records whether a movement key is held.
func (c *Controller) ProcessKeyboard(d Direction, pressed bool) {
	if pressed {
		c.amount[d] = 1
	} else {
		c.amount[d] = 0
	}
}

// ProcessMouse accumulates mouse motion since the last update.
func (c *Controller) ProcessMouse(dx, dy float64) {
	c.rotateHorizontal += float32(dx)
	c.rotateVertical += float32(dy)
}

// ProcessScroll changes the movement speed, never below zero.
func (c *Controller) ProcessScroll(delta float64) {
	c.scroll += float32(delta)
}

// Moving reports whether the next update will change the camera.
func (c *Controller) Moving() bool {
	for _, a := range c.amount {
		if a != 0 {
			return true
		}
	}
	return c.rotateHorizontal != 0 || c.rotateVertical != 0 || c.scroll != 0
}

// UpdateCamera applies accumulated input over dt and resets the mouse and
// scroll accumulators.
func (c *Controller) UpdateCamera(cam *Camera, dt time.Duration) {
	secs := float32(dt.Seconds())

	sinYaw, cosYaw := math32.Sincos(cam.Yaw)
	forward := math32.Vec3(cosYaw, 0, sinYaw)
	right := math32.Vec3(-sinYaw, 0, cosYaw)
	step := c.Speed * secs

	cam.Position = cam.Position.
		Add(forward.MulScalar((c.amount[Forward] - c.amount[Backward]) * step)).
		Add(right.MulScalar((c.amount[Right] - c.amount[Left]) * step))
	cam.Position.Y += (c.amount[Up] - c.amount[Down]) * step

	c.Speed = math32.Max(0, c.Speed*(1+c.scroll*0.1))
	c.scroll = 0

	cam.Yaw += c.rotateHorizontal * c.Sensitivity * secs
	cam.Pitch -= c.rotateVertical * c.Sensitivity * secs
	c.rotateHorizontal = 0
	c.rotateVertical = 0

	cam.Pitch = math32.Clamp(cam.Pitch, -SafePitch, SafePitch)
}
