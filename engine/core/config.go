package core

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Application ApplicationSection `toml:"application"`
	Log         LogSection         `toml:"log"`
	Renderer    RendererSection    `toml:"renderer"`
	Loop        LoopSection        `toml:"loop"`
	Scene       SceneSection       `toml:"scene"`
}

type ApplicationSection struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position, if applicable.
	PosX uint32 `toml:"pos_x"`
	PosY uint32 `toml:"pos_y"`
	// Window starting size, if applicable.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type LogSection struct {
	Level string `toml:"level"`
}

type RendererSection struct {
	// "vulkan" or "headless".
	Backend    string `toml:"backend"`
	Validation bool   `toml:"validation"`
	// Only honoured by the headless backend; Vulkan asks the surface.
	SwapchainImages uint32 `toml:"swapchain_images"`
	ShaderDir       string `toml:"shader_dir"`
}

type LoopSection struct {
	UpdatesPerSecond float64 `toml:"updates_per_second"`
	MaxFrameRate     float64 `toml:"max_frame_rate"`
}

type SceneSection struct {
	Ambient     [3]float32         `toml:"ambient"`
	Directional []DirectionalLight `toml:"directional"`
	Point       []PointLight       `toml:"point"`
}

type DirectionalLight struct {
	Direction [3]float32 `toml:"direction"`
	Color     [3]float32 `toml:"color"`
}

type PointLight struct {
	Position [3]float32 `toml:"position"`
	Color    [3]float32 `toml:"color"`
}

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationSection{
			Name:   "Umbra",
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Log: LogSection{Level: "debug"},
		Renderer: RendererSection{
			Backend:         "vulkan",
			Validation:      true,
			SwapchainImages: 3,
			ShaderDir:       "assets/shaders/deferred",
		},
		Loop: LoopSection{
			UpdatesPerSecond: 240,
			MaxFrameRate:     60,
		},
		Scene: SceneSection{
			Ambient: [3]float32{0.1, 0.1, 0.1},
			Directional: []DirectionalLight{
				{Direction: [3]float32{0.2, -0.1, -0.7}, Color: [3]float32{0.2, 0.2, 0.2}},
			},
			Point: []PointLight{
				{Position: [3]float32{0.5, -0.5, -0.1}, Color: [3]float32{1.0, 0.0, 0.0}},
				{Position: [3]float32{-0.9, 0.2, -0.15}, Color: [3]float32{0.0, 1.0, 0.0}},
				{Position: [3]float32{0.0, 0.5, -0.05}, Color: [3]float32{0.0, 0.0, 1.0}},
			},
		},
	}
}

// LoadConfig reads path on top of DefaultConfig, so omitted keys keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return errors.Wrapf(ErrInvalidConfig, "window size %dx%d", c.Application.Width, c.Application.Height)
	}
	if c.Loop.UpdatesPerSecond <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "updates_per_second must be > 0, got %v", c.Loop.UpdatesPerSecond)
	}
	if c.Loop.MaxFrameRate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_frame_rate must be > 0, got %v", c.Loop.MaxFrameRate)
	}
	switch c.Renderer.Backend {
	case "vulkan", "headless":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown renderer backend %q", c.Renderer.Backend)
	}
	if c.Renderer.Backend == "headless" && c.Renderer.SwapchainImages == 0 {
		return errors.Wrap(ErrInvalidConfig, "swapchain_images must be > 0")
	}
	return nil
}

func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
