package material

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

func frontSurface(normal core.Vec3) Surface {
	return Surface{Normal: normal.Normalize(), FrontFace: true}
}

func TestDispatcher_UnknownTypeFallsBackToDiffuse(t *testing.T) {
	d := NewDispatcher(nil, DefaultPlasticTuning())
	p := NewDiffuse(core.NewVec3(0.2, 0.4, 0.6))
	p.Type = Type(99)

	s := frontSurface(core.NewVec3(0, 1, 0))
	wo := core.NewVec3(0, 1, 0)
	wi := core.NewVec3(0.6, 0.8, 0)

	f := d.Evaluate(&p, wo, wi, s)
	expected := p.BaseColor.Multiply(1 / math.Pi)
	if f.Subtract(expected).Length() > 1e-9 {
		t.Errorf("expected diffuse value %v, got %v", expected, f)
	}
	if pdf := d.PDF(&p, wo, wi, s); math.Abs(pdf-0.8/math.Pi) > 1e-9 {
		t.Errorf("expected cosine pdf, got %v", pdf)
	}

	sample := d.Sample(&p, wo, s, core.NewVec3(0.3, 0.7, 0.5))
	if sample.PDF <= 0 || sample.Refracted {
		t.Fatalf("expected a valid reflected sample, got %+v", sample)
	}
	if sample.Wi.Dot(s.Normal) <= 0 {
		t.Errorf("sampled direction %v below the world-space normal", sample.Wi)
	}
	if sample.Weight.Subtract(p.BaseColor).Length() > 1e-9 {
		t.Errorf("expected weight equal to albedo, got %v", sample.Weight)
	}
}

func TestDispatcher_WorldSpaceMirror(t *testing.T) {
	d := NewDispatcher(nil, DefaultPlasticTuning())
	p := NewConductor("none", 0)
	p.BaseColor = core.Splat(1)

	normal := core.NewVec3(1, 1, 0).Normalize()
	wo := core.NewVec3(1, 0, 0)
	sample := d.Sample(&p, wo, frontSurface(normal), core.NewVec3(0.5, 0.5, 0.5))

	expected := core.Reflect(wo, normal)
	if sample.Wi.Subtract(expected).Length() > 1e-9 {
		t.Errorf("expected mirror direction %v, got %v", expected, sample.Wi)
	}
}

func TestDispatcher_NullPassesThrough(t *testing.T) {
	d := NewDispatcher(nil, DefaultPlasticTuning())
	p := DefaultParams()
	p.Type = Null

	wo := core.NewVec3(0.3, 0.5, 0.2).Normalize()
	s := frontSurface(core.NewVec3(0, 0, 1))
	sample := d.Sample(&p, wo, s, core.NewVec3(0.1, 0.2, 0.3))

	if sample.PDF != 1 || !sample.Refracted || !sample.Delta {
		t.Fatalf("expected delta pass-through, got %+v", sample)
	}
	if sample.Wi.Add(wo).Length() > 1e-9 {
		t.Errorf("expected unchanged ray direction %v, got %v", wo.Negate(), sample.Wi)
	}
	if sample.Weight != core.Splat(1) {
		t.Errorf("expected unit weight, got %v", sample.Weight)
	}
	if !d.Evaluate(&p, wo, wo.Negate(), s).IsZero() {
		t.Error("null surfaces have no evaluable BSDF")
	}
}

func maskTable(opacity float64) (Table, Params) {
	table := Table{NewDiffuse(core.NewVec3(0.9, 0.1, 0.1))}
	mask := DefaultParams()
	mask.Type = Mask
	mask.Opacity = opacity
	mask.Children[0] = 0
	return table, mask
}

func TestDispatcher_MaskBranchBoundary(t *testing.T) {
	table, mask := maskTable(0.3)
	d := NewDispatcher(table, DefaultPlasticTuning())
	wo := core.NewVec3(0, 0, 1)
	s := frontSurface(core.NewVec3(0, 0, 1))

	tests := []struct {
		name        string
		ux          float64
		passThrough bool
	}{
		{"start of interval", 0.0, true},
		{"inside pass-through range", 0.5, true},
		{"just below boundary", 0.6999, true},
		{"boundary selects wrapped", 0.7, false},
		{"inside wrapped range", 0.85, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := d.Sample(&mask, wo, s, core.NewVec3(tt.ux, 0.4, 0.6))
			if tt.passThrough {
				if !sample.Refracted || sample.Wi.Add(wo).Length() > 1e-9 {
					t.Errorf("u.x=%v: expected pass-through, got %+v", tt.ux, sample)
				}
				return
			}
			if sample.Refracted || sample.Delta {
				t.Fatalf("u.x=%v: expected the wrapped diffuse lobe, got %+v", tt.ux, sample)
			}
			expectedPDF := 0.3 * sample.Wi.Z / math.Pi
			if math.Abs(sample.PDF-expectedPDF) > 1e-9 {
				t.Errorf("u.x=%v: expected pdf scaled by opacity %v, got %v", tt.ux, expectedPDF, sample.PDF)
			}
		})
	}
}

func TestDispatcher_MaskPassThroughFrequency(t *testing.T) {
	table, mask := maskTable(0.3)
	d := NewDispatcher(table, DefaultPlasticTuning())
	random := rand.New(rand.NewSource(42))
	wo := core.NewVec3(0, 0, 1)
	s := frontSurface(core.NewVec3(0, 0, 1))

	const samples = 20000
	passed := 0
	for i := 0; i < samples; i++ {
		sample := d.Sample(&mask, wo, s, randomU(random))
		if sample.Refracted {
			passed++
		}
	}
	got := float64(passed) / samples
	if math.Abs(got-0.7) > 0.02 {
		t.Errorf("pass-through frequency %v, expected 1 - opacity = 0.7", got)
	}
}

func TestDispatcher_MaskEvaluateScalesByOpacity(t *testing.T) {
	table, mask := maskTable(0.3)
	d := NewDispatcher(table, DefaultPlasticTuning())
	wo := core.NewVec3(0, 0, 1)
	wi := core.NewVec3(0, 0.6, 0.8)
	s := frontSurface(core.NewVec3(0, 0, 1))

	f := d.Evaluate(&mask, wo, wi, s)
	expected := table[0].BaseColor.Multiply(0.3 / math.Pi)
	if f.Subtract(expected).Length() > 1e-9 {
		t.Errorf("expected %v, got %v", expected, f)
	}
	if pdf := d.PDF(&mask, wo, wi, s); math.Abs(pdf-0.3*0.8/math.Pi) > 1e-9 {
		t.Errorf("expected pdf scaled by opacity, got %v", pdf)
	}
}

func TestDispatcher_DeltaChildPDFScaledByBranchProbability(t *testing.T) {
	table := Table{NewConductor("none", 0), NewConductor("none", 0)}

	mask := DefaultParams()
	mask.Type = Mask
	mask.Opacity = 0.3
	mask.Children[0] = 0

	blend := DefaultParams()
	blend.Type = Blend
	blend.BlendWeight = 0.3
	blend.Children = [2]int32{0, 1}

	d := NewDispatcher(table, DefaultPlasticTuning())
	wo := core.NewVec3(0, 0.6, 0.8)
	s := frontSurface(core.NewVec3(0, 0, 1))

	tests := []struct {
		name string
		p    Params
		ux   float64
		pdf  float64
	}{
		{"mask wrapped mirror", mask, 0.9, 0.3},
		{"blend first mirror", blend, 0.2, 0.7},
		{"blend second mirror", blend, 0.9, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := d.Sample(&tt.p, wo, s, core.NewVec3(tt.ux, 0.5, 0.5))
			if !sample.Delta || sample.Refracted {
				t.Fatalf("expected the mirror lobe, got %+v", sample)
			}
			if math.Abs(sample.PDF-tt.pdf) > 1e-9 {
				t.Errorf("expected pdf %v, got %v", tt.pdf, sample.PDF)
			}
		})
	}
}

func TestDispatcher_Blend(t *testing.T) {
	red := NewDiffuse(core.NewVec3(1, 0, 0))
	blue := NewDiffuse(core.NewVec3(0, 0, 1))
	table := Table{red, blue}

	blend := DefaultParams()
	blend.Type = Blend
	blend.BlendWeight = 0.3
	blend.Children = [2]int32{0, 1}

	d := NewDispatcher(table, DefaultPlasticTuning())
	wo := core.NewVec3(0, 0, 1)
	s := frontSurface(core.NewVec3(0, 0, 1))

	tests := []struct {
		name   string
		ux     float64
		weight core.Vec3
		prob   float64
	}{
		{"first material", 0.2, red.BaseColor, 0.7},
		{"boundary draws second", 0.7, blue.BaseColor, 0.3},
		{"second material", 0.95, blue.BaseColor, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := d.Sample(&blend, wo, s, core.NewVec3(tt.ux, 0.5, 0.5))
			if sample.Weight.Subtract(tt.weight).Length() > 1e-9 {
				t.Errorf("expected weight %v, got %v", tt.weight, sample.Weight)
			}
			expectedPDF := tt.prob * sample.Wi.Z / math.Pi
			if math.Abs(sample.PDF-expectedPDF) > 1e-9 {
				t.Errorf("expected pdf %v, got %v", expectedPDF, sample.PDF)
			}
		})
	}

	wi := core.NewVec3(0, 0.6, 0.8)
	f := d.Evaluate(&blend, wo, wi, s)
	expected := core.NewVec3(0.7, 0, 0.3).Multiply(1 / math.Pi)
	if f.Subtract(expected).Length() > 1e-9 {
		t.Errorf("expected blended value %v, got %v", expected, f)
	}
}

func TestDispatcher_MissingChildFallsBackToParentColor(t *testing.T) {
	mask := DefaultParams()
	mask.Type = Mask
	mask.Opacity = 1
	mask.BaseColor = core.NewVec3(0.1, 0.2, 0.3)
	mask.Children[0] = 7

	d := NewDispatcher(Table{}, DefaultPlasticTuning())
	wo := core.NewVec3(0, 0, 1)
	sample := d.Sample(&mask, wo, frontSurface(wo), core.NewVec3(0.5, 0.5, 0.5))
	if sample.Weight.Subtract(mask.BaseColor).Length() > 1e-9 {
		t.Errorf("expected diffuse fallback with parent color, got %v", sample.Weight)
	}
}

func TestDispatcher_SelfReferenceTerminates(t *testing.T) {
	blend := DefaultParams()
	blend.Type = Blend
	blend.Children = [2]int32{0, 0}
	table := Table{blend}

	d := NewDispatcher(table, DefaultPlasticTuning())
	wo := core.NewVec3(0, 0, 1)
	sample := d.Sample(&table[0], wo, frontSurface(wo), core.NewVec3(0.5, 0.5, 0.5))
	if sample.PDF <= 0 {
		t.Errorf("expected nesting to bottom out in a diffuse lobe, got %+v", sample)
	}
}

func TestDispatcher_DielectricBackFace(t *testing.T) {
	d := NewDispatcher(nil, DefaultPlasticTuning())
	p := NewDielectric(1.5, 0)

	// Leaving glass at a steep angle: total internal reflection on the back face
	normal := core.NewVec3(0, 0, 1)
	wo := core.NewVec3(0.9, 0, math.Sqrt(1-0.81))
	back := Surface{Normal: normal, FrontFace: false}
	front := Surface{Normal: normal, FrontFace: true}

	for i := 0; i < 10; i++ {
		u := core.NewVec3(float64(i)/10, 0.5, 0.5)
		if d.Sample(&p, wo, back, u).Refracted {
			t.Fatalf("u=%v: expected total internal reflection when exiting", u.X)
		}
	}
	if !d.Sample(&p, wo, front, core.NewVec3(0.99, 0.5, 0.5)).Refracted {
		t.Error("expected refraction when entering")
	}
}

func TestTable_At(t *testing.T) {
	table := Table{NewDiffuse(core.Splat(0.9))}
	if got := table.At(0); got.BaseColor != core.Splat(0.9) {
		t.Errorf("expected stored record, got %+v", got)
	}
	for _, idx := range []int32{-1, 1, 100} {
		if got := table.At(idx); got.Type != Diffuse {
			t.Errorf("index %d: expected diffuse fallback, got %v", idx, got.Type)
		}
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name     string
		expected Type
		ok       bool
	}{
		{"diffuse", Diffuse, true},
		{"roughconductor", RoughConductor, true},
		{"blendbsdf", Blend, true},
		{"ThinDielectric", ThinDielectric, true},
		{"hair", Diffuse, false},
	}
	for _, tt := range tests {
		got, ok := ParseType(tt.name)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("ParseType(%q) = %v, %v; expected %v, %v", tt.name, got, ok, tt.expected, tt.ok)
		}
		if ok && got.String() != "" {
			if back, _ := ParseType(got.String()); back != got {
				t.Errorf("String() of %v does not parse back", got)
			}
		}
	}
}
