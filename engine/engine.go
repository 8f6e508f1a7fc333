package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/assets"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/loop"
	"github.com/spaghettifunk/umbra/engine/platform"
	"github.com/spaghettifunk/umbra/engine/renderer"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/renderer/headless"
	"github.com/spaghettifunk/umbra/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	appConfig    ApplicationConfig
	config       *core.Config

	isRunning   bool
	isSuspended bool

	events       *core.EventBus
	platform     *platform.Platform
	window       renderer.Window
	device       gpu.Device
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	loop         *loop.GameLoop
	clock        core.Clock
	metrics      *core.Metrics
	configs      <-chan *core.Config

	width, height uint32
	frames        uint64
}

func New(g *Game, app ApplicationConfig) (*Engine, error) {
	if g.FnUpdate == nil || g.FnRender == nil {
		return nil, errors.New("game must provide update and render callbacks")
	}
	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		appConfig:    app,
		events:       core.NewEventBus(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}

	cfg := core.DefaultConfig()
	if app.ConfigPath != "" {
		var err error
		if cfg, err = core.LoadConfig(app.ConfigPath); err != nil {
			return nil, err
		}
	}
	if app.Headless {
		cfg.Renderer.Backend = "headless"
	}
	if g.Name != "" {
		cfg.Application.Name = g.Name
	}
	e.config = cfg
	core.SetLogLevel(core.ParseLogLevel(cfg.Log.Level))
	core.SetLogPrefix(cfg.Application.Name)

	e.width, e.height = cfg.Application.Width, cfg.Application.Height
	e.loop = loop.New(e.clock, cfg.Loop.UpdatesPerSecond, cfg.Loop.MaxFrameRate)
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Config() *core.Config {
	return e.config
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

// Device is the active render device. Tests and tools use it to read back
// headless frames.
func (e *Engine) Device() gpu.Device {
	return e.device
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	cfg := e.config
	headlessMode := cfg.Renderer.Backend == "headless"
	if headlessMode {
		e.window = &renderer.FixedWindow{Width: e.width, Height: e.height}
	} else {
		p, err := platform.New(e.events)
		if err != nil {
			return err
		}
		if err := p.Startup(cfg.Application.Name, cfg.Application.PosX, cfg.Application.PosY, e.width, e.height); err != nil {
			return err
		}
		e.platform = p
		e.window = p
	}

	device, err := renderer.CreateDevice(cfg, e.platform)
	if err != nil {
		return err
	}
	e.device = device

	var shaders systems.ShaderSet
	if !headlessMode || e.appConfig.HotReload {
		root := "assets"
		if e.appConfig.ConfigPath != "" {
			root = filepath.Dir(filepath.Dir(e.appConfig.ConfigPath))
		}
		am, err := assets.NewAssetManager(root)
		if err != nil {
			return err
		}
		if err := am.Initialize(); err != nil {
			return err
		}
		e.assetManager = am
	}
	if !headlessMode {
		if shaders, err = e.assetManager.LoadShaderSet(cfg.Renderer.ShaderDir); err != nil {
			return err
		}
	}
	if e.appConfig.HotReload && e.appConfig.ConfigPath != "" {
		if e.configs, err = e.assetManager.WatchConfig(e.appConfig.ConfigPath); err != nil {
			return err
		}
	}

	r, err := renderer.New(device, e.window, renderer.Options{Shaders: shaders})
	if err != nil {
		return err
	}
	e.renderer = r

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(r, cfg); err != nil {
			return errors.Wrap(err, "initializing game")
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.isRunning = true
	e.currentStage = EngineStageInitialized
	return nil
}

// simulation adapts the game callbacks to the fixed-step loop.
type simulation struct {
	e   *Engine
	ctx context.Context
}

func (s simulation) Update(step time.Duration) error {
	return s.e.gameInstance.FnUpdate(step)
}

func (s simulation) Render(blend float32) error {
	e := s.e
	if err := e.gameInstance.FnRender(e.renderer, blend); err != nil {
		return errors.Wrap(err, "game render")
	}
	if err := e.renderer.Draw(s.ctx); err != nil {
		return errors.Wrap(err, "drawing frame")
	}
	e.frames++
	return nil
}

func (e *Engine) Run(ctx context.Context) error {
	e.currentStage = EngineStageRunning
	e.loop.Reset()
	sim := simulation{e: e, ctx: ctx}

	for e.isRunning {
		if err := ctx.Err(); err != nil {
			core.LogInfo("engine stopped: %s", err)
			break
		}
		if e.platform != nil {
			e.platform.PumpMessages()
		}
		e.applyConfigChanges()

		if e.isSuspended {
			// Keep the loop from catching up on the time spent minimized.
			e.loop.Reset()
			time.Sleep(10 * time.Millisecond)
			continue
		}

		frameStart := e.clock.Now()
		stats, err := e.loop.Tick(sim)
		if err != nil {
			core.LogFatal("game loop failed, shutting down: %s", err)
			return err
		}
		e.metrics.Update(e.clock.Now() - frameStart)
		if stats.Updates > 0 && e.frames%240 == 0 {
			fps, ms := e.metrics.Frame()
			core.LogDebug("fps %.0f, frame %.2fms", fps, ms)
		}

		if e.appConfig.Frames > 0 && e.frames >= e.appConfig.Frames {
			core.LogInfo("rendered %d frames, stopping", e.frames)
			e.isRunning = false
		}
	}
	return nil
}

func (e *Engine) applyConfigChanges() {
	if e.configs == nil {
		return
	}
	select {
	case cfg := <-e.configs:
		core.SetLogLevel(core.ParseLogLevel(cfg.Log.Level))
		e.loop = loop.New(e.clock, cfg.Loop.UpdatesPerSecond, cfg.Loop.MaxFrameRate)
		e.config = cfg
		e.events.Fire(core.EVENT_CODE_CONFIG_RELOADED, e, core.EventContext{Payload: cfg})
		if e.gameInstance.FnOnConfig != nil {
			if err := e.gameInstance.FnOnConfig(e.renderer, cfg); err != nil {
				core.LogError("applying reloaded config: %s", err)
			}
		}
	default:
	}
}

// Frames is the number of frames rendered so far.
func (e *Engine) Frames() uint64 {
	return e.frames
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.appConfig.DumpPath != "" {
		if err := e.dumpFrame(e.appConfig.DumpPath); err != nil {
			core.LogError("writing frame dump: %s", err)
		}
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown: %s", err)
		}
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			return err
		}
	}
	if e.device != nil {
		e.device.Destroy()
	}
	if e.assetManager != nil {
		if err := e.assetManager.Shutdown(); err != nil {
			return err
		}
	}
	e.events.Shutdown()
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) dumpFrame(path string) error {
	dev, ok := e.device.(*headless.Device)
	if !ok {
		return errors.Wrap(core.ErrUnsupported, "frame dumps need the headless backend")
	}
	img := dev.LastPresented()
	if img == nil {
		return errors.New("no frame was presented")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	if err := img.WriteTIFF(f); err != nil {
		return err
	}
	core.LogInfo("last frame written to %s", path)
	return nil
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if data.Key == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Width, data.Height
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if fw, ok := e.window.(*renderer.FixedWindow); ok {
		fw.Width, fw.Height = width, height
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.renderer != nil {
		e.renderer.OnResize(width, height)
	}
	return false
}

// Resize injects a window resize, as the platform would on a real window.
func (e *Engine) Resize(width, height uint32) {
	e.events.Fire(core.EVENT_CODE_RESIZED, e, core.EventContext{Width: width, Height: height})
}
