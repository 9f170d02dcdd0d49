package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// ErrInvalidOBJ is returned for malformed Wavefront OBJ files.
var ErrInvalidOBJ = errors.New("invalid OBJ file")

// LoadOBJ loads a Wavefront OBJ mesh. Vertices are deduplicated on their
// (position, normal, texcoord) triple and polygons are fan-triangulated.
func LoadOBJ(filename string) (*MeshData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer file.Close()

	mesh, err := DecodeOBJ(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return mesh, nil
}

type objCorner struct {
	v, vt, vn int // zero-based; -1 when absent
}

// key packs a corner into the dedup key (v<<40)|(vn<<20)|vt, offset by one
// so that absent attributes are distinct from index zero.
func (c objCorner) key() uint64 {
	return uint64(c.v+1)<<40 | uint64(c.vn+1)<<20 | uint64(c.vt+1)
}

// DecodeOBJ parses OBJ geometry statements and ignores everything else
func DecodeOBJ(r io.Reader) (*MeshData, error) {
	var positions, normals []core.Vec3
	var uvs []core.Vec2

	mesh := &MeshData{}
	remap := make(map[uint64]int)
	anyNormals, anyUVs := false, false

	corners := make([]objCorner, 0, 4)
	polygon := make([]int, 0, 4)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
			}
			positions = append(positions, core.NewVec3(v[0], v[1], v[2]))
		case "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
			}
			normals = append(normals, core.NewVec3(v[0], v[1], v[2]))
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
			}
			uvs = append(uvs, core.NewVec2(v[0], v[1]))
		case "f":
			corners = corners[:0]
			for _, f := range fields[1:] {
				c, err := parseOBJCorner(f, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, lineNo, err)
				}
				corners = append(corners, c)
			}
			if len(corners) < 3 {
				continue
			}

			polygon = polygon[:0]
			for _, c := range corners {
				idx, ok := remap[c.key()]
				if !ok {
					idx = len(mesh.Positions)
					remap[c.key()] = idx
					mesh.Positions = append(mesh.Positions, positions[c.v])
					n := core.Vec3{}
					if c.vn >= 0 {
						n = normals[c.vn]
						anyNormals = true
					}
					mesh.Normals = append(mesh.Normals, n)
					uv := core.Vec2{}
					if c.vt >= 0 {
						uv = uvs[c.vt]
						anyUVs = true
					}
					mesh.UVs = append(mesh.UVs, uv)
				}
				polygon = append(polygon, idx)
			}
			mesh.appendFan(polygon)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading OBJ: %w", err)
	}

	if !anyNormals {
		mesh.Normals = nil
	}
	if !anyUVs {
		mesh.UVs = nil
	}
	if err := mesh.validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// parseOBJCorner parses v, v/vt, v//vn or v/vt/vn with 1-based or negative indices
func parseOBJCorner(field string, nv, nvt, nvn int) (objCorner, error) {
	parts := strings.Split(field, "/")
	c := objCorner{v: -1, vt: -1, vn: -1}

	resolve := func(s string, count int) (int, error) {
		if s == "" {
			return -1, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return -1, err
		}
		if i < 0 {
			i = count + i
		} else {
			i--
		}
		if i < 0 || i >= count {
			return -1, fmt.Errorf("index %s out of range", s)
		}
		return i, nil
	}

	var err error
	if c.v, err = resolve(parts[0], nv); err != nil {
		return c, err
	}
	if c.v < 0 {
		return c, errors.New("face corner without position")
	}
	if len(parts) > 1 {
		if c.vt, err = resolve(parts[1], nvt); err != nil {
			return c, err
		}
	}
	if len(parts) > 2 {
		if c.vn, err = resolve(parts[2], nvn); err != nil {
			return c, err
		}
	}
	return c, nil
}
