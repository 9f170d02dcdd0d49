package loaders

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"

	"github.com/df07/go-mitsuba-pathtracer/pkg/texture"
)

// ErrInvalidHDR is returned for malformed Radiance RGBE files.
var ErrInvalidHDR = fmt.Errorf("%w: radiance hdr", ErrInvalidImage)

// hdrColor is implemented by the float colors of decoded HDR images
type hdrColor interface {
	HDRRGBA() (r, g, b, a float64)
}

// LoadHDR reads a Radiance RGBE (.hdr) image
func LoadHDR(filename string) (*texture.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open HDR file: %w", err)
	}
	defer file.Close()

	img, err := DecodeHDR(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return img, nil
}

// DecodeHDR decodes a Radiance RGBE stream into linear texels. The resolution
// line is checked against the texture size limits before any pixel storage is
// allocated.
func DecodeHDR(r io.Reader) (img *texture.Image, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHDR, err)
	}
	if !bytes.HasPrefix(data, []byte("#?")) {
		return nil, fmt.Errorf("%w: missing #? signature", ErrInvalidHDR)
	}

	// A malformed stream must not take the renderer down
	defer func() {
		if rec := recover(); rec != nil {
			img, err = nil, fmt.Errorf("%w: %v", ErrInvalidHDR, rec)
		}
	}()

	cfg, err := rgbe.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHDR, err)
	}
	if err := checkImageSize(cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHDR, err)
	}

	decoded, err := rgbe.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHDR, err)
	}
	return fromHDRImage(decoded), nil
}

// fromHDRImage copies float texels without any transfer curve. Colors that do
// not expose float channels are read through the 16-bit RGBA path.
func fromHDRImage(img image.Image) *texture.Image {
	bounds := img.Bounds()
	out := texture.NewImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c := img.At(x+bounds.Min.X, y+bounds.Min.Y)
			if hc, ok := c.(hdrColor); ok {
				r, g, b, _ := hc.HDRRGBA()
				out.Set(x, y, texture.RGBA{R: r, G: g, B: b, A: 1})
				continue
			}
			r, g, b, _ := c.RGBA()
			out.Set(x, y, texture.RGBA{
				R: float64(r) / 65535.0,
				G: float64(g) / 65535.0,
				B: float64(b) / 65535.0,
				A: 1,
			})
		}
	}
	return out
}
