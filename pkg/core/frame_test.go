package core

import (
	"math"
	"math/rand"
	"testing"
)

func TestBuildOrthonormalBasis(t *testing.T) {
	normals := []Vec3{
		NewVec3(0, 0, 1),
		NewVec3(0, 0, -1),
		NewVec3(1, 0, 0),
		NewVec3(0, -1, 0),
		NewVec3(1, 1, 1).Normalize(),
		NewVec3(1e-7, 1, -1e-7).Normalize(),
	}

	for _, n := range normals {
		tangent, bitangent := BuildOrthonormalBasis(n)
		if math.Abs(tangent.Length()-1) > 1e-9 || math.Abs(bitangent.Length()-1) > 1e-9 {
			t.Errorf("basis for %v not unit length: |T|=%f |B|=%f", n, tangent.Length(), bitangent.Length())
		}
		if math.Abs(tangent.Dot(n)) > 1e-9 || math.Abs(bitangent.Dot(n)) > 1e-9 || math.Abs(tangent.Dot(bitangent)) > 1e-9 {
			t.Errorf("basis for %v not orthogonal", n)
		}
		// Right-handed: T x B = N
		if tangent.Cross(bitangent).Subtract(n).Length() > 1e-9 {
			t.Errorf("basis for %v is not right-handed", n)
		}
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	random := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		n := NewVec3(random.NormFloat64(), random.NormFloat64(), random.NormFloat64()).Normalize()
		for j := 0; j < 1000; j++ {
			d := NewVec3(random.NormFloat64(), random.NormFloat64(), random.NormFloat64()).Normalize()
			back := WorldToLocal(LocalToWorld(d, n), n)
			if back.Subtract(d).Length() > 1e-5 {
				t.Fatalf("round trip failed for n=%v d=%v: got %v", n, d, back)
			}
		}
	}
}

func TestFrame_NormalMapsToZ(t *testing.T) {
	n := NewVec3(0.3, -0.5, 0.8).Normalize()
	local := NewFrame(n).ToLocal(n)
	if local.Subtract(NewVec3(0, 0, 1)).Length() > 1e-9 {
		t.Errorf("normal should map to +Z, got %v", local)
	}
}
