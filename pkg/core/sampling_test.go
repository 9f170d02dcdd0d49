package core

import (
	"math"
	"math/rand"
	"testing"
)

func TestSampleCosineHemisphereLocal(t *testing.T) {
	random := rand.New(rand.NewSource(42))

	sumCos := 0.0
	const numSamples = 20000
	for i := 0; i < numSamples; i++ {
		dir := SampleCosineHemisphereLocal(NewVec2(random.Float64(), random.Float64()))
		if math.Abs(dir.Length()-1) > 1e-9 {
			t.Fatalf("direction not normalized: %v", dir)
		}
		if dir.Z < 0 {
			t.Fatalf("direction below hemisphere: %v", dir)
		}
		sumCos += dir.Z
	}

	// E[cos] under a cosine-weighted distribution is 2/3
	mean := sumCos / numSamples
	if math.Abs(mean-2.0/3.0) > 0.01 {
		t.Errorf("mean cosine: got %f, expected %f", mean, 2.0/3.0)
	}
}
