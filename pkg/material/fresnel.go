package material

import (
	"math"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// SchlickWeight returns (1 - cosTheta)^5
func SchlickWeight(cosTheta float64) float64 {
	m := 1 - math.Min(1, math.Max(0, cosTheta))
	m2 := m * m
	return m2 * m2 * m
}

// FresnelSchlick approximates reflectance for normal-incidence reflectance f0
func FresnelSchlick(cosTheta float64, f0 core.Vec3) core.Vec3 {
	return f0.Lerp(core.Splat(1), SchlickWeight(cosTheta))
}

// FresnelDielectric is the exact unpolarized reflectance of a real-valued interface.
// eta is the ratio of the transmitted side's index over the incident side's.
// Total internal reflection returns exactly 1.
func FresnelDielectric(cosThetaI, eta float64) float64 {
	cosI := math.Min(1, math.Abs(cosThetaI))
	sin2T := (1 - cosI*cosI) / (eta * eta)
	if sin2T >= 1 {
		return 1
	}
	cosT := math.Sqrt(1 - sin2T)

	rs := (cosI - eta*cosT) / (cosI + eta*cosT)
	rp := (eta*cosI - cosT) / (eta*cosI + cosT)
	return 0.5 * (rs*rs + rp*rp)
}

// FresnelConductor is the exact unpolarized reflectance of a complex index eta + i·k,
// evaluated independently per color channel.
func FresnelConductor(cosThetaI float64, eta, k core.Vec3) core.Vec3 {
	cosI := math.Min(1, math.Abs(cosThetaI))
	return core.Vec3{
		X: fresnelConductorChannel(cosI, eta.X, k.X),
		Y: fresnelConductorChannel(cosI, eta.Y, k.Y),
		Z: fresnelConductorChannel(cosI, eta.Z, k.Z),
	}
}

func fresnelConductorChannel(cosI, eta, k float64) float64 {
	cos2 := cosI * cosI
	sin2 := 1 - cos2
	eta2 := eta * eta
	k2 := k * k

	t0 := eta2 - k2 - sin2
	a2b2 := math.Sqrt(t0*t0 + 4*eta2*k2)
	t1 := a2b2 + cos2
	a := math.Sqrt(max(0, 0.5*(a2b2+t0)))
	t2 := 2 * cosI * a
	rs := (t1 - t2) / (t1 + t2 + epsilon)

	t3 := cos2*a2b2 + sin2*sin2
	t4 := t2 * sin2
	rp := rs * (t3 - t4) / (t3 + t4 + epsilon)

	return 0.5 * (rp + rs)
}

// fresnelDiffuseReflectance is a polynomial fit to the hemispherically averaged
// dielectric reflectance, with separate fits below and above eta = 1.
func fresnelDiffuseReflectance(eta float64) float64 {
	if eta < 1 {
		return -1.4399*eta*eta + 0.7099*eta + 0.6681 + 0.0636/eta
	}
	inv := 1 / eta
	inv2 := inv * inv
	inv3 := inv2 * inv
	inv4 := inv3 * inv
	inv5 := inv4 * inv
	return 0.919317 - 3.4793*inv + 6.75335*inv2 - 7.80989*inv3 + 4.98554*inv4 - 1.36881*inv5
}
