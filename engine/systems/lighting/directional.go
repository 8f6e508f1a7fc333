package lighting

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type directionalPushConstants struct {
	Color     mgl32.Vec4
	Direction mgl32.Vec4
}

// DirectionalLightingSystem lights surfaces facing against a direction,
// like sunlight.
type DirectionalLightingSystem struct {
	pass *fullscreenPass
}

func NewDirectionalLightingSystem(device gpu.Device, subpass gpu.Subpass, shaders Shaders) (*DirectionalLightingSystem, error) {
	pass, err := newFullscreenPass(device, subpass, "lighting.directional", shaders, 2,
		uint32(unsafe.Sizeof(directionalPushConstants{})), directionalProgram)
	if err != nil {
		return nil, err
	}
	return &DirectionalLightingSystem{pass: pass}, nil
}

// Draw records one directional light. direction points from the light into
// the scene and is normalised here.
func (s *DirectionalLightingSystem) Draw(pool gpu.DescriptorPool, viewport gpu.Extent, diffuse, normals gpu.Image, direction, color mgl32.Vec3) (gpu.CommandBuffer, error) {
	if direction.Len() > 0 {
		direction = direction.Normalize()
	}
	pc := directionalPushConstants{Color: vec4(color, 1), Direction: vec4(direction, 0)}
	return s.pass.record(pool, viewport, []gpu.Image{diffuse, normals}, gpu.ValueBytes(&pc))
}

func (s *DirectionalLightingSystem) Pipeline() gpu.Pipeline {
	return s.pass.pipeline
}

func (s *DirectionalLightingSystem) Shutdown() {
	s.pass.destroy()
}

func directionalProgram(in *gpu.FragmentInput, out []mgl32.Vec4) bool {
	pc := decode[directionalPushConstants](in.Resources.PushConstants())
	normal := in.Inputs[inputNormals].Vec3()
	if normal.Len() > 0 {
		normal = normal.Normalize()
	}
	percent := max(-pc.Direction.Vec3().Dot(normal), 0)
	diffuse := in.Inputs[inputDiffuse].Vec3()
	out[0] = vec4(mulRGB(diffuse, pc.Color.Vec3().Mul(percent)), 1)
	return true
}
