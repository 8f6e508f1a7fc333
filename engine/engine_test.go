package engine

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/renderer"
	"github.com/spaghettifunk/umbra/engine/renderer/metadata"
)

type quadGame struct {
	quad    metadata.MeshHandle
	updates int
}

func (g *quadGame) game() *Game {
	return &Game{
		Name: "engine-test",
		FnInitialize: func(r *renderer.Renderer, cfg *core.Config) error {
			var err error
			g.quad, err = r.CreateMesh(metadata.QuadConfig())
			r.SetCameraParams(metadata.IdentityCamera())
			r.SetLights([]metadata.Light{metadata.AmbientLight(mgl32.Vec3{1, 1, 1})})
			return err
		},
		FnUpdate: func(step time.Duration) error {
			g.updates++
			return nil
		},
		FnRender: func(r *renderer.Renderer, blend float32) error {
			return r.EnqueueMesh(g.quad, mgl32.Ident4())
		},
	}
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "assets", "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "engine.toml")
	doc := "[application]\nwidth = 32\nheight = 24\n\n[log]\nlevel = \"warn\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func startEngine(t *testing.T, app ApplicationConfig) (*Engine, *quadGame) {
	t.Helper()
	g := &quadGame{}
	e, err := New(g.game(), app)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	return e, g
}

func TestHeadlessRunStopsAfterFrames(t *testing.T) {
	e, _ := startEngine(t, ApplicationConfig{ConfigPath: writeConfig(t), Headless: true, Frames: 5})
	defer e.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if e.Frames() != 5 {
		t.Fatalf("frames = %d", e.Frames())
	}
	if got := e.Renderer().Stats().Frames; got != 5 {
		t.Fatalf("presented = %d", got)
	}
	if e.Renderer().Extent().Width != 32 {
		t.Fatalf("extent = %+v", e.Renderer().Extent())
	}
}

func TestNewRequiresCallbacks(t *testing.T) {
	if _, err := New(&Game{}, ApplicationConfig{Headless: true}); err == nil {
		t.Fatal("expected error")
	}
}

func TestResizeEventRecreatesSwapchain(t *testing.T) {
	e, _ := startEngine(t, ApplicationConfig{ConfigPath: writeConfig(t), Headless: true, Frames: 1})
	defer e.Shutdown()
	ctx := context.Background()
	if err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}

	e.Resize(0, 0)
	if !e.isSuspended {
		t.Fatal("minimized window did not suspend the engine")
	}
	e.Resize(64, 48)
	if e.isSuspended {
		t.Fatal("engine still suspended")
	}
	e.appConfig.Frames = 2
	e.isRunning = true
	if err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if got := e.Renderer().Extent(); got.Width != 64 || got.Height != 48 {
		t.Fatalf("extent = %+v", got)
	}
	if e.Renderer().Stats().Recreations != 1 {
		t.Fatalf("recreations = %d", e.Renderer().Stats().Recreations)
	}
}

func TestShutdownDumpsFrame(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.tiff")
	e, _ := startEngine(t, ApplicationConfig{ConfigPath: writeConfig(t), Headless: true, Frames: 2, DumpPath: out})
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Shutdown(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Fatalf("bounds = %v", b)
	}
	if c := color.RGBAModel.Convert(img.At(16, 12)).(color.RGBA); c.R == 0 && c.G == 0 && c.B == 0 {
		t.Fatal("centre pixel is black")
	}
}

func TestEscapeQuits(t *testing.T) {
	e, _ := startEngine(t, ApplicationConfig{ConfigPath: writeConfig(t), Headless: true})
	defer e.Shutdown()
	e.events.Fire(core.EVENT_CODE_KEY_PRESSED, nil, core.EventContext{Key: core.KEY_ESCAPE})
	if e.isRunning {
		t.Fatal("escape did not stop the engine")
	}
}
