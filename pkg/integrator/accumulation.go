package integrator

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// Accumulation is one pixel's running mean across frames
type Accumulation struct {
	Color core.Vec3
	Count int
}

// Update folds a frame's radiance into the mean. Frame 0 and corrupted state
// (non-finite color or non-positive count) restart the mean from radiance.
func (a *Accumulation) Update(radiance core.Vec3, frameIndex int) {
	if frameIndex == 0 || a.Count <= 0 || !a.Color.IsFinite() {
		a.Color = radiance
		a.Count = 1
		return
	}
	n := float64(a.Count)
	a.Color = a.Color.Add(radiance.Subtract(a.Color).Multiply(1 / (n + 1)))
	a.Count++
}

// Reset clears the cell so the next update starts a new mean
func (a *Accumulation) Reset() {
	*a = Accumulation{}
}

// Sanitize replaces NaN or infinite channels with zero and clamps the rest to
// [0, maxRadiance]. A non-positive maxRadiance only removes negatives.
func Sanitize(radiance core.Vec3, maxRadiance float64) core.Vec3 {
	clean := func(c float64) float64 {
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			return 0
		}
		if maxRadiance > 0 && c > maxRadiance {
			return maxRadiance
		}
		return c
	}
	return core.NewVec3(clean(radiance.X), clean(radiance.Y), clean(radiance.Z))
}
