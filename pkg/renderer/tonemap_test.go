package renderer

import (
	"math"
	"testing"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

func TestToneMap(t *testing.T) {
	aces := DefaultToneSettings()
	rein := ToneSettings{Exposure: 1, Mapper: Reinhard, Gamma: 2.2}
	linear := ToneSettings{Exposure: 2, Mapper: Reinhard, Gamma: 1}

	tests := []struct {
		name     string
		radiance float64
		settings ToneSettings
		want     float64
	}{
		{"black", 0, aces, 0},
		{"negative", -1, aces, 0},
		{"nan", math.NaN(), aces, 0},
		{"inf saturates", math.Inf(1), aces, 1},
		{"aces midtone", 0.5, aces, math.Pow(0.5*(2.51*0.5+0.03)/(0.5*(2.43*0.5+0.59)+0.14), 1/2.2)},
		{"aces clamps highlights", 100, aces, 1},
		{"reinhard", 1, rein, math.Pow(0.5, 1/2.2)},
		{"exposure before the curve", 0.5, linear, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToneMap(core.Splat(tt.radiance), tt.settings)
			if math.Abs(got.X-tt.want) > 1e-9 || got.X != got.Y || got.Y != got.Z {
				t.Errorf("ToneMap(%v) = %v, want %v", tt.radiance, got, tt.want)
			}
		})
	}
}

func TestToneMap_Monotonic(t *testing.T) {
	for _, mapper := range []ToneMapper{ACES, Reinhard} {
		settings := ToneSettings{Exposure: 1, Mapper: mapper, Gamma: 2.2}
		prev := -1.0
		for x := 0.0; x < 20; x += 0.05 {
			v := ToneMap(core.Splat(x), settings).X
			if v < prev-1e-12 || v > 1 {
				t.Fatalf("%v: ToneMap(%v) = %v after %v", mapper, x, v, prev)
			}
			prev = v
		}
	}
}

func TestParseToneMapper(t *testing.T) {
	tests := []struct {
		name    string
		want    ToneMapper
		wantErr bool
	}{
		{"aces", ACES, false},
		{"ACES", ACES, false},
		{"", ACES, false},
		{"reinhard", Reinhard, false},
		{"filmic", ACES, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToneMapper(tt.name)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseToneMapper(%q) = %v, %v", tt.name, got, err)
			}
		})
	}
}

func TestToImage(t *testing.T) {
	buffer := []core.Vec3{
		core.Splat(0), core.Splat(1e6),
		core.NewVec3(1, 0, 0), core.Splat(0.18),
	}
	img := ToImage(buffer, 2, 2, DefaultToneSettings())

	if got := img.RGBAAt(0, 0); got.R != 0 || got.A != 255 {
		t.Errorf("black pixel = %v", got)
	}
	if got := img.RGBAAt(1, 0); got.R != 255 || got.G != 255 || got.B != 255 {
		t.Errorf("saturated pixel = %v", got)
	}
	if got := img.RGBAAt(0, 1); got.R == 0 || got.G != 0 || got.B != 0 {
		t.Errorf("red pixel = %v", got)
	}
}
