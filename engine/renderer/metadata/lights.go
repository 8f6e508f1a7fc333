package metadata

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/umbra/engine/core"
)

type LightKind int

const (
	LightAmbient LightKind = iota
	LightDirectional
	LightPoint
)

func (k LightKind) String() string {
	switch k {
	case LightAmbient:
		return "ambient"
	case LightDirectional:
		return "directional"
	}
	return "point"
}

/** @brief One lighting call. Direction is used by directional lights, Position by point lights. */
type Light struct {
	Kind      LightKind
	Color     mgl32.Vec3
	Direction mgl32.Vec3
	Position  mgl32.Vec3
}

func AmbientLight(color mgl32.Vec3) Light {
	return Light{Kind: LightAmbient, Color: color}
}

func DirectionalLight(direction, color mgl32.Vec3) Light {
	return Light{Kind: LightDirectional, Direction: direction, Color: color}
}

func PointLight(position, color mgl32.Vec3) Light {
	return Light{Kind: LightPoint, Position: position, Color: color}
}

// LightsFromScene converts the [scene] config section into the per-frame light list.
func LightsFromScene(scene core.SceneSection) []Light {
	lights := []Light{AmbientLight(scene.Ambient)}
	for _, d := range scene.Directional {
		lights = append(lights, DirectionalLight(d.Direction, d.Color))
	}
	for _, p := range scene.Point {
		lights = append(lights, PointLight(p.Position, p.Color))
	}
	return lights
}
