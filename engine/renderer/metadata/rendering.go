package metadata

import "github.com/go-gl/mathgl/mgl32"

/** @brief Per-instance data read by the geometry vertex shader through gl_InstanceIndex. */
type ObjectData struct {
	Model mgl32.Mat4
}

/** @brief The camera uniform block: view first, projection second. */
type CameraParams struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

// ViewProjection returns proj * view, the transform handed to the frame.
func (c CameraParams) ViewProjection() mgl32.Mat4 {
	return c.Proj.Mul4(c.View)
}

func IdentityCamera() CameraParams {
	return CameraParams{View: mgl32.Ident4(), Proj: mgl32.Ident4()}
}
