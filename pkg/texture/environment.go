package texture

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Environment supplies radiance for rays that leave the scene. With a map it
// performs an equirectangular lookup scaled by Intensity; otherwise it blends
// SkyBottom to SkyTop by the direction's height.
type Environment struct {
	Map       *Image
	Intensity float64
	SkyTop    core.Vec3
	SkyBottom core.Vec3
}

// NewGradientEnvironment returns the default sky
func NewGradientEnvironment(top, bottom core.Vec3) *Environment {
	return &Environment{Intensity: 1, SkyTop: top, SkyBottom: bottom}
}

// NewUniformEnvironment returns a constant background
func NewUniformEnvironment(radiance core.Vec3) *Environment {
	return &Environment{Intensity: 1, SkyTop: radiance, SkyBottom: radiance}
}

// NewMapEnvironment returns an image-based environment
func NewMapEnvironment(img *Image, intensity float64) *Environment {
	return &Environment{Map: img, Intensity: intensity}
}

// EquirectUV maps a unit direction to longitude/latitude texture coordinates
func EquirectUV(dir core.Vec3) core.Vec2 {
	y := math.Max(-1, math.Min(1, dir.Y))
	u := (math.Atan2(dir.X, dir.Z) + math.Pi) / (2 * math.Pi)
	v := (math.Asin(y) + math.Pi/2) / math.Pi
	return core.NewVec2(u, v)
}

// Radiance returns the background radiance seen along dir
func (e *Environment) Radiance(dir core.Vec3) core.Vec3 {
	if e == nil {
		return core.Vec3{}
	}
	d := dir.Normalize()
	if e.Map != nil {
		return e.Map.Sample(EquirectUV(d)).RGB().Multiply(e.Intensity)
	}
	t := 0.5 * (d.Y + 1)
	return e.SkyBottom.Lerp(e.SkyTop, t).Multiply(e.Intensity)
}
