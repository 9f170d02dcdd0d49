package loaders

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// parseTransform composes the operations of a <transform> in document order;
// each later operation is applied after the earlier ones.
func (p *MitsubaParser) parseTransform(n *xmlNode) (mgl64.Mat4, error) {
	m := mgl64.Ident4()
	for i := range n.Children {
		child := &n.Children[i]
		var op mgl64.Mat4
		var err error
		switch child.name() {
		case "matrix":
			op, err = parseMatrix(p.attr(child, "value"))
		case "translate":
			var v mgl64.Vec3
			v, err = p.vectorAttrs(child, 0)
			op = mgl64.Translate3D(v[0], v[1], v[2])
		case "scale":
			var v mgl64.Vec3
			v, err = p.vectorAttrs(child, 1)
			op = mgl64.Scale3D(v[0], v[1], v[2])
		case "rotate":
			op, err = p.parseRotate(child)
		case "lookat":
			op, err = p.parseLookAt(child)
		default:
			p.warnf("skipping unsupported transform", zap.String("element", child.name()))
			continue
		}
		if err != nil {
			return mgl64.Ident4(), fmt.Errorf("%s: %w", child.name(), err)
		}
		m = op.Mul4(m)
	}
	return m, nil
}

// parseMatrix reads 16 row-major values
func parseMatrix(s string) (mgl64.Mat4, error) {
	values, err := parseFloatList(s)
	if err != nil {
		return mgl64.Mat4{}, err
	}
	if len(values) != 16 {
		return mgl64.Mat4{}, fmt.Errorf("expected 16 values, got %d", len(values))
	}
	var m mgl64.Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m.Set(row, col, values[row*4+col])
		}
	}
	return m, nil
}

// vectorAttrs reads value="x y z" or individual x/y/z attributes; missing
// components take fill
func (p *MitsubaParser) vectorAttrs(n *xmlNode, fill float64) (mgl64.Vec3, error) {
	if value := p.attr(n, "value"); value != "" {
		values, err := parseFloatList(value)
		if err != nil {
			return mgl64.Vec3{}, err
		}
		switch len(values) {
		case 1:
			return mgl64.Vec3{values[0], values[0], values[0]}, nil
		case 3:
			return mgl64.Vec3{values[0], values[1], values[2]}, nil
		}
		return mgl64.Vec3{}, fmt.Errorf("expected 1 or 3 values, got %d", len(values))
	}

	v := mgl64.Vec3{fill, fill, fill}
	for i, key := range []string{"x", "y", "z"} {
		s := p.attr(n, key)
		if s == "" {
			continue
		}
		values, err := parseFloatList(s)
		if err != nil || len(values) != 1 {
			return mgl64.Vec3{}, fmt.Errorf("invalid %s component %q", key, s)
		}
		v[i] = values[0]
	}
	return v, nil
}

func (p *MitsubaParser) parseRotate(n *xmlNode) (mgl64.Mat4, error) {
	axis, err := p.vectorAttrs(n, 0)
	if err != nil {
		return mgl64.Mat4{}, err
	}
	if axis.Len() == 0 {
		return mgl64.Mat4{}, fmt.Errorf("rotation axis is zero")
	}
	values, err := parseFloatList(p.attr(n, "angle"))
	if err != nil || len(values) != 1 {
		return mgl64.Mat4{}, fmt.Errorf("invalid angle %q", p.attr(n, "angle"))
	}
	return mgl64.HomogRotate3D(mgl64.DegToRad(values[0]), axis.Normalize()), nil
}

// parseLookAt builds a camera-to-world matrix looking down +Z with +X to the left
func (p *MitsubaParser) parseLookAt(n *xmlNode) (mgl64.Mat4, error) {
	var pts [3]mgl64.Vec3
	for i, key := range []string{"origin", "target", "up"} {
		c, err := parseColor(p.attr(n, key))
		if err != nil {
			if key == "up" && p.attr(n, key) == "" {
				pts[i] = mgl64.Vec3{0, 1, 0}
				continue
			}
			return mgl64.Mat4{}, fmt.Errorf("%s: %w", key, err)
		}
		pts[i] = mgl64.Vec3{c.X, c.Y, c.Z}
	}
	origin, target, up := pts[0], pts[1], pts[2]

	dir := target.Sub(origin)
	if dir.Len() == 0 {
		return mgl64.Mat4{}, fmt.Errorf("origin and target coincide")
	}
	dir = dir.Normalize()
	left := up.Normalize().Cross(dir)
	if left.Len() < 1e-9 {
		return mgl64.Mat4{}, fmt.Errorf("up is parallel to the view direction")
	}
	left = left.Normalize()
	newUp := dir.Cross(left)

	return mgl64.Mat4FromCols(left.Vec4(0), newUp.Vec4(0), dir.Vec4(0), origin.Vec4(1)), nil
}

func transformPoint(m mgl64.Mat4, v core.Vec3) core.Vec3 {
	r := m.Mul4x1(mgl64.Vec4{v.X, v.Y, v.Z, 1})
	if r[3] != 0 && r[3] != 1 {
		return core.NewVec3(r[0]/r[3], r[1]/r[3], r[2]/r[3])
	}
	return core.NewVec3(r[0], r[1], r[2])
}

func transformDirection(m mgl64.Mat4, v core.Vec3) core.Vec3 {
	r := m.Mul4x1(mgl64.Vec4{v.X, v.Y, v.Z, 0})
	return core.NewVec3(r[0], r[1], r[2])
}

// applyTransform moves a mesh into world space; normals use the inverse transpose
func applyTransform(mesh *MeshData, m mgl64.Mat4) {
	normalMatrix := m.Inv().Transpose()
	mesh.Transform(
		func(v core.Vec3) core.Vec3 { return transformPoint(m, v) },
		func(n core.Vec3) core.Vec3 { return transformDirection(normalMatrix, n) },
	)
	// A mirroring transform reverses the winding
	if m.Det() < 0 {
		for i := 0; i+2 < len(mesh.Indices); i += 3 {
			mesh.Indices[i+1], mesh.Indices[i+2] = mesh.Indices[i+2], mesh.Indices[i+1]
		}
	}
}

// NewRectangleMesh returns the unit quad spanning [-1, 1] in XY facing +Z
func NewRectangleMesh() *MeshData {
	n := core.NewVec3(0, 0, 1)
	return &MeshData{
		Positions: []core.Vec3{
			core.NewVec3(-1, -1, 0), core.NewVec3(1, -1, 0), core.NewVec3(1, 1, 0), core.NewVec3(-1, 1, 0),
		},
		Normals: []core.Vec3{n, n, n, n},
		UVs: []core.Vec2{
			core.NewVec2(0, 0), core.NewVec2(1, 0), core.NewVec2(1, 1), core.NewVec2(0, 1),
		},
		Indices: []int{0, 1, 2, 0, 2, 3},
	}
}

// NewCubeMesh returns the cube spanning [-1, 1] with outward face normals
func NewCubeMesh() *MeshData {
	mesh := &MeshData{}
	faces := []struct{ n, u, v core.Vec3 }{
		{core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), core.NewVec3(0, 0, 1)},
		{core.NewVec3(-1, 0, 0), core.NewVec3(0, 0, 1), core.NewVec3(0, 1, 0)},
		{core.NewVec3(0, 1, 0), core.NewVec3(0, 0, 1), core.NewVec3(1, 0, 0)},
		{core.NewVec3(0, -1, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 0, 1)},
		{core.NewVec3(0, 0, 1), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0)},
		{core.NewVec3(0, 0, -1), core.NewVec3(0, 1, 0), core.NewVec3(1, 0, 0)},
	}
	corners := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range faces {
		base := len(mesh.Positions)
		for _, c := range corners {
			p := f.n.Add(f.u.Multiply(c[0])).Add(f.v.Multiply(c[1]))
			mesh.Positions = append(mesh.Positions, p)
			mesh.Normals = append(mesh.Normals, f.n)
			mesh.UVs = append(mesh.UVs, core.NewVec2((c[0]+1)/2, (c[1]+1)/2))
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}
