package testbed

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/loop"
	"github.com/spaghettifunk/umbra/engine/math"
	"github.com/spaghettifunk/umbra/engine/renderer"
	"github.com/spaghettifunk/umbra/engine/renderer/components"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

// RotationSpeed is how fast the cube turns, in radians per second.
const RotationSpeed float32 = 0.25

type TestGame struct {
	*engine.Game
}

// snapshot is the part of the state that is blended between updates.
type snapshot struct {
	Rotation float32
}

func (s snapshot) Lerp(to snapshot, t float32) snapshot {
	return snapshot{Rotation: math.Lerp(s.Rotation, to.Rotation, t)}
}

type object struct {
	mesh      metadata.MeshHandle
	transform *math.Transform
	spins     bool
}

type gameState struct {
	WorldCamera *components.Camera
	state       *loop.Interpolated[snapshot]
	objects     []object

	width  uint32
	height uint32
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Name: "Umbra Testbed",
			State: &gameState{
				WorldCamera: components.NewCamera(),
				state:       loop.NewInterpolated(snapshot{}),
			},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnOnConfig = tg.OnConfig
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) gs() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(r *renderer.Renderer, config *core.Config) error {
	core.LogInfo("initializing testbed...")
	state := g.gs()

	scene := []struct {
		geometry metadata.GeometryConfig
		at       mgl32.Vec3
		scale    float32
		spins    bool
	}{
		{metadata.CubeConfig(), mgl32.Vec3{0, 0, 0}, 0.5, true},
		{metadata.QuadConfig(), mgl32.Vec3{-1.5, 0.5, -0.5}, 1.5, false},
		{metadata.TriangleConfig(), mgl32.Vec3{1, 1.5, 0.25}, 1, false},
	}
	for _, s := range scene {
		h, err := r.CreateMesh(s.geometry)
		if err != nil {
			return err
		}
		t := math.TransformFromPosition(s.at)
		t.SetScale(mgl32.Vec3{s.scale, s.scale, s.scale})
		state.objects = append(state.objects, object{mesh: h, transform: t, spins: s.spins})
	}

	r.SetLights(metadata.LightsFromScene(config.Scene))
	return nil
}

func (g *TestGame) Update(step time.Duration) error {
	st := g.gs().state
	next := st.Current
	next.Rotation += RotationSpeed * float32(step.Seconds())
	st.Advance(next)
	return nil
}

func (g *TestGame) Render(r *renderer.Renderer, blend float32) error {
	state := g.gs()
	rotation := mgl32.QuatRotate(state.state.Blend(blend).Rotation, mgl32.Vec3{0, 0, 1})

	for _, o := range state.objects {
		if o.spins {
			o.transform.SetRotation(rotation)
		}
		if err := r.EnqueueMesh(o.mesh, o.transform.Model()); err != nil {
			return err
		}
	}
	r.SetCameraParams(state.WorldCamera.Params(r.Extent().Aspect()))
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.gs()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) OnConfig(r *renderer.Renderer, config *core.Config) error {
	r.SetLights(metadata.LightsFromScene(config.Scene))
	core.LogInfo("testbed lights updated: %d", len(r.Lights()))
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed")
	return nil
}
