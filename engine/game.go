package engine

import (
	"time"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer"
)

// Game is the set of callbacks the engine drives. Only FnUpdate and FnRender
// are required.
type Game struct {
	Name         string
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnOnConfig   OnConfig
	FnShutdown   Shutdown
}

type Initialize func(r *renderer.Renderer, config *core.Config) error

// Update advances the simulation by exactly one fixed step.
type Update func(step time.Duration) error

// Render queues the frame's meshes; blend is how far the loop is between the
// last two updates.
type Render func(r *renderer.Renderer, blend float32) error
type OnResize func(width uint32, height uint32) error

// OnConfig is called after the engine config was edited on disk.
type OnConfig func(r *renderer.Renderer, config *core.Config) error
type Shutdown func() error
