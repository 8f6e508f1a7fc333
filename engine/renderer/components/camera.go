package components

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/math"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

const (
	DefaultFieldOfView float32 = 60
	DefaultNear        float32 = 0.1
	DefaultFar         float32 = 100
)

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

/**
 * @brief A perspective camera looking at a target. The view matrix is rebuilt
 * lazily when position or target change.
 */
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	/** @brief Vertical field of view in degrees. */
	FieldOfView float32
	Near, Far   float32

	IsDirty    bool
	ViewMatrix mgl32.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

// Reset puts the camera at (3,-3,3) looking at the origin with +Z up.
func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{3, -3, 3}
	c.Target = mgl32.Vec3{}
	c.Up = mgl32.Vec3{0, 0, 1}
	c.FieldOfView = DefaultFieldOfView
	c.Near = DefaultNear
	c.Far = DefaultFar
	c.IsDirty = true
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) SetTarget(target mgl32.Vec3) {
	c.Target = target
	c.IsDirty = true
}

func (c *Camera) GetView() mgl32.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = mgl32.LookAtV(c.Position, c.Target, c.Up)
		c.IsDirty = false
	}
	return c.ViewMatrix
}

// Projection maps view space to Vulkan clip space: Y down, depth in [0,1].
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	proj := mgl32.Perspective(mgl32.DegToRad(c.FieldOfView), aspect, c.Near, c.Far)
	return vulkanClip.Mul4(proj)
}

func (c *Camera) Params(aspect float32) metadata.CameraParams {
	return metadata.CameraParams{View: c.GetView(), Proj: c.Projection(aspect)}
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

// MoveForward moves the camera and its target along the view direction.
func (c *Camera) MoveForward(amount float32) {
	step := c.Forward().Mul(amount)
	c.Position = c.Position.Add(step)
	c.Target = c.Target.Add(step)
	c.IsDirty = true
}

// Orbit rotates the camera position around the target's up axis.
func (c *Camera) Orbit(angle float32) {
	rot := mgl32.QuatRotate(angle, c.Up)
	c.Position = c.Target.Add(rot.Rotate(c.Position.Sub(c.Target)))
	c.IsDirty = true
}

// Zoom narrows or widens the field of view, kept within [10, 120] degrees.
func (c *Camera) Zoom(degrees float32) {
	c.FieldOfView = math.Clamp(c.FieldOfView-degrees, 10, 120)
}

// Flips Y and remaps depth from [-1,1] to [0,1].
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}
