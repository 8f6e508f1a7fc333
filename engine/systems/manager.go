package systems

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
)

type SystemManagerConfig struct {
	FinalFormat gpu.Format
	// Frames in flight; one arena slot each.
	Slots   int
	Shaders ShaderSet
	Arena   TransientArenaConfig
}

// SystemManager builds the rendering systems in dependency order and tears
// them down in reverse.
type SystemManager struct {
	Arena          *TransientArena
	FrameSystem    *FrameSystem
	GeometrySystem *GeometrySystem
}

func NewSystemManager(device gpu.Device, config SystemManagerConfig) (*SystemManager, error) {
	if config.Arena.BlockSize == 0 {
		config.Arena = DefaultTransientArenaConfig()
	}
	arena, err := NewTransientArena(device, config.Arena, config.Slots)
	if err != nil {
		return nil, err
	}
	fs, err := NewFrameSystem(device, arena, FrameSystemConfig{
		FinalFormat: config.FinalFormat,
		Shaders:     config.Shaders,
	})
	if err != nil {
		arena.Destroy()
		return nil, errors.Wrap(err, "creating frame system")
	}
	gs, err := NewGeometrySystem(device, arena, GeometrySystemConfig{
		Subpass:       fs.DeferredSubpass(),
		VertexSPIRV:   config.Shaders.GeometryVertex,
		FragmentSPIRV: config.Shaders.GeometryFragment,
	})
	if err != nil {
		_ = fs.Shutdown()
		arena.Destroy()
		return nil, errors.Wrap(err, "creating geometry system")
	}
	core.LogDebug("rendering systems initialized with %d frame slots", config.Slots)
	return &SystemManager{
		Arena:          arena,
		FrameSystem:    fs,
		GeometrySystem: gs,
	}, nil
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.GeometrySystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.FrameSystem.Shutdown(); err != nil {
		return err
	}
	sm.Arena.Destroy()
	return nil
}
