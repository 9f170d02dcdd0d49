package loaders

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/df07/go-mitsuba-pathtracer/pkg/texture"
)

var (
	// ErrUnsupportedFormat is returned for image formats no decoder exists for.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidImage is returned for image files that cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
)

// Texture size limits, checked before texel storage is allocated
const (
	maxImageSide   = 1 << 15
	maxImageTexels = 1 << 26
)

// ColorSpace describes how 8-bit texel values are interpreted
type ColorSpace int

const (
	// SRGB textures (colors) are linearized on load
	SRGB ColorSpace = iota
	// Linear textures (normal maps, roughness) are used as stored
	Linear
)

type codec struct {
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

// Decoders for 8 and 16-bit formats by file extension. TGA has no magic
// number, so formats are never sniffed from content.
var ldrCodecs = map[string]codec{
	".png":  {png.Decode, png.DecodeConfig},
	".jpg":  {jpeg.Decode, jpeg.DecodeConfig},
	".jpeg": {jpeg.Decode, jpeg.DecodeConfig},
	".bmp":  {bmp.Decode, bmp.DecodeConfig},
	".tif":  {tiff.Decode, tiff.DecodeConfig},
	".tiff": {tiff.Decode, tiff.DecodeConfig},
	".webp": {webp.Decode, webp.DecodeConfig},
	".tga": {
		func(r io.Reader) (image.Image, error) { return tga.Decode(r) },
		func(r io.Reader) (image.Config, error) { return tga.DecodeConfig(r) },
	},
}

func checkImageSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("size %dx%d", width, height)
	}
	if width > maxImageSide || height > maxImageSide || width*height > maxImageTexels {
		return fmt.Errorf("size %dx%d exceeds the %d texel side or %d texel limit", width, height, maxImageSide, maxImageTexels)
	}
	return nil
}

// LoadImage loads a PNG, JPEG, BMP, TIFF, WebP, TGA, Radiance HDR or OpenEXR
// image as linear float texels. HDR and EXR data is always linear.
func LoadImage(filename string, space ColorSpace) (*texture.Image, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".hdr", ".pic", ".rgbe":
		return LoadHDR(filename)
	case ".exr":
		return LoadEXR(filename)
	}
	c, ok := ldrCodecs[ext]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	cfg, err := c.decodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filename, ErrInvalidImage, err)
	}
	if err := checkImageSize(cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filename, ErrInvalidImage, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind image file: %w", err)
	}

	img, err := c.decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", filename, ErrInvalidImage, err)
	}
	return FromImage(img, space), nil
}

// FromImage converts a decoded image to float texels
func FromImage(img image.Image, space ColorSpace) *texture.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	out := texture.NewImage(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA returns alpha-premultiplied uint32 in [0, 65535]
			alpha := float64(a) / 65535.0
			c := texture.RGBA{
				R: float64(r) / 65535.0,
				G: float64(g) / 65535.0,
				B: float64(b) / 65535.0,
				A: alpha,
			}
			if alpha > 0 && alpha < 1 {
				c.R, c.G, c.B = c.R/alpha, c.G/alpha, c.B/alpha
			}
			if space == SRGB {
				c.R, c.G, c.B = srgbToLinear(c.R), srgbToLinear(c.G), srgbToLinear(c.B)
			}
			out.Set(x, y, c)
		}
	}
	return out
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}
