package renderer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// ToneMapper selects the display curve
type ToneMapper int

const (
	ACES ToneMapper = iota
	Reinhard
)

// ParseToneMapper accepts "aces" or "reinhard"
func ParseToneMapper(name string) (ToneMapper, error) {
	switch strings.ToLower(name) {
	case "aces", "":
		return ACES, nil
	case "reinhard":
		return Reinhard, nil
	}
	return ACES, fmt.Errorf("unknown tone mapper %q", name)
}

func (t ToneMapper) String() string {
	if t == Reinhard {
		return "reinhard"
	}
	return "aces"
}

// ToneSettings controls display conversion. They never touch accumulated radiance.
type ToneSettings struct {
	Exposure float64
	Mapper   ToneMapper
	Gamma    float64 // encoding exponent is 1/Gamma
}

// DefaultToneSettings returns exposure 1, ACES and gamma 2.2
func DefaultToneSettings() ToneSettings {
	return ToneSettings{Exposure: 1, Mapper: ACES, Gamma: 2.2}
}

// ACES filmic fit constants
const (
	acesA = 2.51
	acesB = 0.03
	acesC = 2.43
	acesD = 0.59
	acesE = 0.14
)

func acesFilmic(x float64) float64 {
	return (x * (acesA*x + acesB)) / (x*(acesC*x+acesD) + acesE)
}

func reinhard(x float64) float64 {
	return x / (x + 1)
}

// ToneMap converts linear radiance to display values in [0, 1]
func ToneMap(radiance core.Vec3, settings ToneSettings) core.Vec3 {
	curve := acesFilmic
	if settings.Mapper == Reinhard {
		curve = reinhard
	}
	gamma := settings.Gamma
	if gamma <= 0 {
		gamma = 2.2
	}

	mapChannel := func(c float64) float64 {
		if math.IsNaN(c) || c <= 0 {
			return 0
		}
		c *= settings.Exposure
		if math.IsInf(c, 1) {
			return 1
		}
		c = curve(c)
		c = math.Min(math.Max(c, 0), 1)
		return math.Pow(c, 1/gamma)
	}
	return core.NewVec3(mapChannel(radiance.X), mapChannel(radiance.Y), mapChannel(radiance.Z))
}

// ToImage tone maps a row-major radiance buffer into an 8-bit image
func ToImage(buffer []core.Vec3, width, height int, settings ToneSettings) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if i >= len(buffer) {
				return img
			}
			img.SetRGBA(x, y, toRGBA(ToneMap(buffer[i], settings)))
		}
	}
	return img
}

func toRGBA(c core.Vec3) color.RGBA {
	c = c.Clamp(0, 1)
	return color.RGBA{
		R: uint8(255*c.X + 0.5),
		G: uint8(255*c.Y + 0.5),
		B: uint8(255*c.Z + 0.5),
		A: 255,
	}
}
