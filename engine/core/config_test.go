package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[application]
name = "probe"

[renderer]
backend = "headless"
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Application.Name != "probe" {
		t.Errorf("name = %q", cfg.Application.Name)
	}
	if cfg.Application.Width != 1280 || cfg.Application.Height != 720 {
		t.Errorf("size = %dx%d, want defaults", cfg.Application.Width, cfg.Application.Height)
	}
	if cfg.Loop.UpdatesPerSecond != 240 || cfg.Loop.MaxFrameRate != 60 {
		t.Errorf("loop = %+v, want defaults", cfg.Loop)
	}
	if cfg.Renderer.Backend != "headless" {
		t.Errorf("backend = %q", cfg.Renderer.Backend)
	}
}

func TestParseConfigLights(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[scene]
ambient = [0.5, 0.25, 0.0]

[[scene.point]]
position = [1.0, 2.0, 3.0]
color = [1.0, 1.0, 1.0]
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Scene.Ambient != [3]float32{0.5, 0.25, 0} {
		t.Errorf("ambient = %v", cfg.Scene.Ambient)
	}
	if len(cfg.Scene.Point) != 1 || cfg.Scene.Point[0].Position != [3]float32{1, 2, 3} {
		t.Errorf("point lights = %+v", cfg.Scene.Point)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"zero width", "[application]\nwidth = 0\n"},
		{"zero rate", "[loop]\nupdates_per_second = 0.0\n"},
		{"negative frame rate", "[loop]\nmax_frame_rate = -1.0\n"},
		{"unknown backend", "[renderer]\nbackend = \"metal\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	want := DefaultConfig()
	want.Application.Name = "round"
	data, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Application.Name != "round" || len(got.Scene.Point) != len(want.Scene.Point) {
		t.Errorf("got %+v", got.Application)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
