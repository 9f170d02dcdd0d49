package material

import (
	"strings"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

type conductorPreset struct {
	eta, k core.Vec3
}

// RGB approximations of measured complex indices of refraction
var conductorPresets = map[string]conductorPreset{
	"none": {core.Vec3{}, core.Vec3{}},
	"Ag":   {core.NewVec3(0.155, 0.117, 0.138), core.NewVec3(4.827, 3.122, 2.147)},
	"Au":   {core.NewVec3(0.143, 0.374, 1.442), core.NewVec3(3.983, 2.387, 1.603)},
	"Cu":   {core.NewVec3(0.200, 0.924, 1.102), core.NewVec3(3.912, 2.452, 2.142)},
	"Al":   {core.NewVec3(1.657, 0.880, 0.521), core.NewVec3(9.224, 6.269, 4.837)},
	"Cr":   {core.NewVec3(3.18, 3.18, 2.01), core.NewVec3(3.3, 3.33, 3.04)},
	"Ni":   {core.NewVec3(1.97, 1.86, 1.67), core.NewVec3(3.74, 3.06, 2.58)},
	"Ti":   {core.NewVec3(2.16, 1.97, 1.81), core.NewVec3(2.93, 2.62, 2.35)},
	"W":    {core.NewVec3(4.35, 3.4, 2.85), core.NewVec3(3.4, 2.7, 2.15)},
	"Fe":   {core.NewVec3(2.95, 2.93, 2.65), core.NewVec3(3.0, 2.95, 2.8)},
}

var conductorAliases = map[string]string{
	"silver":    "Ag",
	"gold":      "Au",
	"copper":    "Cu",
	"aluminium": "Al",
	"aluminum":  "Al",
	"chromium":  "Cr",
	"nickel":    "Ni",
	"titanium":  "Ti",
	"tungsten":  "W",
	"iron":      "Fe",
}

// LookupConductor returns the RGB eta and k of a named metal, by chemical
// symbol or English name. "none" is the generic mirror and reports zero eta and k.
func LookupConductor(name string) (eta, k core.Vec3, ok bool) {
	if symbol, alias := conductorAliases[strings.ToLower(name)]; alias {
		name = symbol
	}
	preset, ok := conductorPresets[name]
	return preset.eta, preset.k, ok
}

var iorPresets = map[string]float64{
	"vacuum":               1.0,
	"helium":               1.00004,
	"hydrogen":             1.00013,
	"air":                  1.000277,
	"carbon dioxide":       1.00045,
	"water":                1.333,
	"acetone":              1.36,
	"ethanol":              1.361,
	"carbon tetrachloride": 1.461,
	"glycerol":             1.4729,
	"benzene":              1.501,
	"silicone oil":         1.52045,
	"bromine":              1.661,
	"water ice":            1.31,
	"fused quartz":         1.458,
	"pyrex":                1.470,
	"acrylic glass":        1.49,
	"polypropylene":        1.49,
	"bk7":                  1.5046,
	"sodium chloride":      1.544,
	"amber":                1.55,
	"pet":                  1.575,
	"diamond":              2.419,
}

// LookupIOR returns the index of refraction of a named medium
func LookupIOR(name string) (float64, bool) {
	ior, ok := iorPresets[strings.ToLower(strings.TrimSpace(name))]
	return ior, ok
}
