package lighting

import (
	stdmath "math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type pointPushConstants struct {
	ScreenToWorld mgl32.Mat4
	Color         mgl32.Vec4
	Position      mgl32.Vec4
}

// PointLightingSystem lights surfaces around a world-space position, falling
// off exponentially with distance. World positions are rebuilt from depth.
type PointLightingSystem struct {
	pass *fullscreenPass
}

func NewPointLightingSystem(device gpu.Device, subpass gpu.Subpass, shaders Shaders) (*PointLightingSystem, error) {
	pass, err := newFullscreenPass(device, subpass, "lighting.point", shaders, 3,
		uint32(unsafe.Sizeof(pointPushConstants{})), pointProgram)
	if err != nil {
		return nil, err
	}
	return &PointLightingSystem{pass: pass}, nil
}

// Draw records one point light. screenToWorld is the inverse of the frame's
// world-to-screen transform.
func (s *PointLightingSystem) Draw(pool gpu.DescriptorPool, viewport gpu.Extent, diffuse, normals, depth gpu.Image, screenToWorld mgl32.Mat4, position, color mgl32.Vec3) (gpu.CommandBuffer, error) {
	pc := pointPushConstants{
		ScreenToWorld: screenToWorld,
		Color:         vec4(color, 1),
		Position:      vec4(position, 1),
	}
	return s.pass.record(pool, viewport, []gpu.Image{diffuse, normals, depth}, gpu.ValueBytes(&pc))
}

func (s *PointLightingSystem) Pipeline() gpu.Pipeline {
	return s.pass.pipeline
}

func (s *PointLightingSystem) Shutdown() {
	s.pass.destroy()
}

func pointProgram(in *gpu.FragmentInput, out []mgl32.Vec4) bool {
	depth := in.Inputs[inputDepth].X()
	if depth >= 1 {
		// Background.
		return false
	}
	pc := decode[pointPushConstants](in.Resources.PushConstants())

	world := pc.ScreenToWorld.Mul4x1(mgl32.Vec4{in.ScreenCoord.X(), in.ScreenCoord.Y(), depth, 1})
	pos := world.Vec3().Mul(1 / world.W())

	toLight := pc.Position.Vec3().Sub(pos)
	distance := toLight.Len()
	normal := in.Inputs[inputNormals].Vec3()
	if normal.Len() > 0 {
		normal = normal.Normalize()
	}
	var percent float32
	if distance > 0 {
		percent = max(toLight.Mul(1/distance).Dot(normal), 0)
	}
	percent /= float32(stdmath.Exp(float64(distance)))

	diffuse := in.Inputs[inputDiffuse].Vec3()
	out[0] = vec4(mulRGB(diffuse, pc.Color.Vec3().Mul(percent)), 1)
	return true
}
