package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/platform"
	"github.com/spaghettifunk/umbra/engine/renderer/gpu"
	"github.com/spaghettifunk/umbra/engine/renderer/headless"
	"github.com/spaghettifunk/umbra/engine/renderer/vulkan"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
	Headless
)

func ParseRendererType(name string) (RendererType, error) {
	switch name {
	case "vulkan":
		return Vulkan, nil
	case "headless":
		return Headless, nil
	}
	return 0, errors.Wrapf(core.ErrInvalidConfig, "unknown renderer backend %q", name)
}

func (t RendererType) String() string {
	if t == Headless {
		return "headless"
	}
	return "vulkan"
}

// CreateDevice opens the backend named by the config. The platform is only
// used by Vulkan and may be nil for headless rendering.
func CreateDevice(config *core.Config, p *platform.Platform) (gpu.Device, error) {
	kind, err := ParseRendererType(config.Renderer.Backend)
	if err != nil {
		return nil, err
	}
	core.LogInfo("creating %s render device", kind)
	switch kind {
	case Headless:
		return headless.New(headless.Options{
			SwapchainImages: int(config.Renderer.SwapchainImages),
		}), nil
	default:
		if p == nil || p.Window == nil {
			return nil, errors.New("vulkan backend needs a window")
		}
		dev, err := vulkan.NewDevice(p.Window, vulkan.Options{
			ApplicationName: config.Application.Name,
			Validation:      config.Renderer.Validation,
		})
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}
