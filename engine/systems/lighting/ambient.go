package lighting

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type ambientPushConstants struct {
	Color mgl32.Vec4
}

// AmbientLightingSystem lights every covered pixel uniformly.
type AmbientLightingSystem struct {
	pass *fullscreenPass
}

func NewAmbientLightingSystem(device gpu.Device, subpass gpu.Subpass, shaders Shaders) (*AmbientLightingSystem, error) {
	pass, err := newFullscreenPass(device, subpass, "lighting.ambient", shaders, 1,
		uint32(unsafe.Sizeof(ambientPushConstants{})), ambientProgram)
	if err != nil {
		return nil, err
	}
	return &AmbientLightingSystem{pass: pass}, nil
}

func (s *AmbientLightingSystem) Draw(pool gpu.DescriptorPool, viewport gpu.Extent, diffuse gpu.Image, color mgl32.Vec3) (gpu.CommandBuffer, error) {
	pc := ambientPushConstants{Color: vec4(color, 1)}
	return s.pass.record(pool, viewport, []gpu.Image{diffuse}, gpu.ValueBytes(&pc))
}

func (s *AmbientLightingSystem) Pipeline() gpu.Pipeline {
	return s.pass.pipeline
}

func (s *AmbientLightingSystem) Shutdown() {
	s.pass.destroy()
}

func ambientProgram(in *gpu.FragmentInput, out []mgl32.Vec4) bool {
	pc := decode[ambientPushConstants](in.Resources.PushConstants())
	diffuse := in.Inputs[inputDiffuse].Vec3()
	out[0] = vec4(mulRGB(diffuse, pc.Color.Vec3()), 1)
	return true
}
