package texture

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// RGBA is a linear floating-point texel
type RGBA struct {
	R, G, B, A float64
}

// White is returned for unbound or out-of-range texture lookups.
var White = RGBA{1, 1, 1, 1}

// RGB drops the alpha channel
func (c RGBA) RGB() core.Vec3 {
	return core.NewVec3(c.R, c.G, c.B)
}

func (c RGBA) add(o RGBA) RGBA {
	return RGBA{c.R + o.R, c.G + o.G, c.B + o.B, c.A + o.A}
}

func (c RGBA) scale(s float64) RGBA {
	return RGBA{c.R * s, c.G * s, c.B * s, c.A * s}
}

// Image is a row-major texel grid. Row 0 is the top of the picture.
type Image struct {
	Width  int
	Height int
	Texels []RGBA
}

// NewImage allocates a transparent black image
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Texels: make([]RGBA, width*height)}
}

// Set writes the texel at (x, y)
func (img *Image) Set(x, y int, c RGBA) {
	img.Texels[y*img.Width+x] = c
}

// At returns the texel at (x, y) with repeat wrapping
func (img *Image) At(x, y int) RGBA {
	x = wrap(x, img.Width)
	y = wrap(y, img.Height)
	return img.Texels[y*img.Width+x]
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Sample bilinearly filters the image at uv with repeat wrapping.
// v = 0 is the bottom row, matching mesh texture coordinates.
func (img *Image) Sample(uv core.Vec2) RGBA {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return White
	}
	x := uv.X*float64(img.Width) - 0.5
	y := (1-uv.Y)*float64(img.Height) - 0.5
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return White
	}

	x0 := math.Floor(x)
	y0 := math.Floor(y)
	fx := x - x0
	fy := y - y0
	ix, iy := int(x0), int(y0)

	top := img.At(ix, iy).scale(1 - fx).add(img.At(ix+1, iy).scale(fx))
	bottom := img.At(ix, iy+1).scale(1 - fx).add(img.At(ix+1, iy+1).scale(fx))
	return top.scale(1 - fy).add(bottom.scale(fy))
}

// Average returns the mean texel color
func (img *Image) Average() core.Vec3 {
	if img == nil || len(img.Texels) == 0 {
		return core.Vec3{}
	}
	sum := core.Vec3{}
	for _, t := range img.Texels {
		sum = sum.Add(t.RGB())
	}
	return sum.Multiply(1 / float64(len(img.Texels)))
}
