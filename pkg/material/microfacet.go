package material

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

const (
	// SmoothThreshold is the roughness below which every material uses its delta branch.
	SmoothThreshold = 0.01
	// MinAlpha keeps the GGX width positive.
	MinAlpha = 0.001

	epsilon = 1e-7
)

// RoughnessToAlpha maps perceptual roughness to the GGX width alpha = roughness²
func RoughnessToAlpha(roughness float64) float64 {
	return max(roughness*roughness, MinAlpha)
}

// DGGX is the Trowbridge-Reitz normal distribution
func DGGX(nDotH, alpha float64) float64 {
	if nDotH <= 0 {
		return 0
	}
	a2 := alpha * alpha
	d := nDotH*nDotH*(a2-1) + 1
	return a2 / (math.Pi*d*d + epsilon)
}

// G1SmithGGX is the single-direction Smith masking term. Sign of nDotV is ignored.
func G1SmithGGX(nDotV, alpha float64) float64 {
	c := math.Abs(nDotV)
	a2 := alpha * alpha
	return 2 * c / (c + math.Sqrt(a2+(1-a2)*c*c) + epsilon)
}

// GSmithGGX is the separable masking-shadowing product G1(V) * G1(L)
func GSmithGGX(nDotV, nDotL, alpha float64) float64 {
	return G1SmithGGX(nDotV, alpha) * G1SmithGGX(nDotL, alpha)
}

// SampleGGX draws a local-space half vector with density DGGX(h.z) * h.z
func SampleGGX(u core.Vec2, alpha float64) core.Vec3 {
	a2 := alpha * alpha
	phi := 2 * math.Pi * u.X
	cosTheta := math.Sqrt(max(0, (1-u.Y)/(1+(a2-1)*u.Y)))
	sinTheta := math.Sqrt(max(0, 1-cosTheta*cosTheta))
	return core.Vec3{X: sinTheta * math.Cos(phi), Y: sinTheta * math.Sin(phi), Z: cosTheta}
}

// GGXReflectionPDF converts the half-vector density to the reflected direction's
// solid-angle density through the 1/(4 V·H) Jacobian.
func GGXReflectionPDF(nDotH, vDotH, alpha float64) float64 {
	return DGGX(nDotH, alpha) * nDotH / (4*math.Abs(vDotH) + epsilon)
}

// DGTR1 is the Berry distribution used by the clearcoat lobe
func DGTR1(nDotH, alpha float64) float64 {
	if nDotH <= 0 {
		return 0
	}
	if alpha >= 1 {
		return 1 / math.Pi
	}
	a2 := alpha * alpha
	t := 1 + (a2-1)*nDotH*nDotH
	return (a2 - 1) / (math.Pi * math.Log(a2) * t)
}

// SampleGTR1 draws a half vector with density DGTR1(h.z) * h.z
func SampleGTR1(u core.Vec2, alpha float64) core.Vec3 {
	a2 := alpha * alpha
	phi := 2 * math.Pi * u.X
	var cosTheta float64
	if alpha < 1 {
		cosTheta = math.Sqrt(max(0, (1-math.Pow(a2, 1-u.Y))/(1-a2)))
	} else {
		cosTheta = math.Sqrt(1 - u.Y)
	}
	sinTheta := math.Sqrt(max(0, 1-cosTheta*cosTheta))
	return core.Vec3{X: sinTheta * math.Cos(phi), Y: sinTheta * math.Sin(phi), Z: cosTheta}
}
