package loaders

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// ErrInvalidPLY is returned for malformed PLY files.
var ErrInvalidPLY = errors.New("invalid PLY file")

// PLYHeader represents the parsed header information from a PLY file
type PLYHeader struct {
	Format   string // "binary_little_endian", "binary_big_endian", or "ascii"
	Version  string
	Elements []PLYElement
}

// PLYElement is one element block (vertex, face, or anything else to skip)
type PLYElement struct {
	Name       string
	Count      int
	Properties []PLYProperty
}

// PLYProperty represents a property definition in the PLY header
type PLYProperty struct {
	Name     string
	Type     string
	IsList   bool
	ListType string // For list properties, the type of the count
}

// LoadPLY loads a PLY mesh with optional normals and texture coordinates.
// Polygonal faces are fan-triangulated.
func LoadPLY(filename string) (*MeshData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open PLY file: %w", err)
	}
	defer file.Close()

	mesh, err := DecodePLY(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return mesh, nil
}

// DecodePLY reads a PLY stream
func DecodePLY(r *bufio.Reader) (*MeshData, error) {
	header, err := parsePLYHeader(r)
	if err != nil {
		return nil, err
	}

	var reader plyValueReader
	switch header.Format {
	case "ascii":
		reader = &plyASCIIReader{r: r}
	case "binary_little_endian":
		reader = &plyBinaryReader{r: r, order: binary.LittleEndian}
	case "binary_big_endian":
		reader = &plyBinaryReader{r: r, order: binary.BigEndian}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidPLY, header.Format)
	}

	mesh := &MeshData{}
	for _, element := range header.Elements {
		switch element.Name {
		case "vertex":
			err = readPLYVertices(reader, element, mesh)
		case "face":
			err = readPLYFaces(reader, element, mesh)
		default:
			err = skipPLYElement(reader, element)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: element %s: %v", ErrInvalidPLY, element.Name, err)
		}
	}

	if err := mesh.validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// parsePLYHeader consumes the header up to and including end_header
func parsePLYHeader(r *bufio.Reader) (*PLYHeader, error) {
	magic, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("%w: missing magic number", ErrInvalidPLY)
	}

	header := &PLYHeader{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated header", ErrInvalidPLY)
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "end_header":
			if header.Format == "" {
				return nil, fmt.Errorf("%w: missing format line", ErrInvalidPLY)
			}
			return header, nil
		case "format":
			if len(parts) >= 3 {
				header.Format = parts[1]
				header.Version = parts[2]
			}
		case "element":
			if len(parts) < 3 {
				return nil, fmt.Errorf("%w: bad element line %q", ErrInvalidPLY, strings.TrimSpace(line))
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: invalid element count %s", ErrInvalidPLY, parts[2])
			}
			header.Elements = append(header.Elements, PLYElement{Name: parts[1], Count: count})
		case "property":
			if len(header.Elements) == 0 {
				return nil, fmt.Errorf("%w: property before element", ErrInvalidPLY)
			}
			prop, err := parsePLYProperty(parts[1:])
			if err != nil {
				return nil, err
			}
			current := &header.Elements[len(header.Elements)-1]
			current.Properties = append(current.Properties, prop)
		}
	}
}

// parsePLYProperty parses a property line from the PLY header
func parsePLYProperty(parts []string) (PLYProperty, error) {
	if len(parts) < 2 {
		return PLYProperty{}, fmt.Errorf("%w: invalid property definition", ErrInvalidPLY)
	}
	if parts[0] == "list" {
		if len(parts) < 4 {
			return PLYProperty{}, fmt.Errorf("%w: invalid list property definition", ErrInvalidPLY)
		}
		return PLYProperty{IsList: true, ListType: parts[1], Type: parts[2], Name: parts[3]}, nil
	}
	return PLYProperty{Type: parts[0], Name: parts[1]}, nil
}

func readPLYVertices(reader plyValueReader, element PLYElement, mesh *MeshData) error {
	index := func(names ...string) int {
		for i, prop := range element.Properties {
			for _, name := range names {
				if prop.Name == name {
					return i
				}
			}
		}
		return -1
	}
	px, py, pz := index("x"), index("y"), index("z")
	nx, ny, nz := index("nx"), index("ny"), index("nz")
	tu, tv := index("u", "s", "texture_u"), index("v", "t", "texture_v")
	if px < 0 || py < 0 || pz < 0 {
		return errors.New("vertex element lacks x/y/z")
	}
	hasNormals := nx >= 0 && ny >= 0 && nz >= 0
	hasUVs := tu >= 0 && tv >= 0

	values := make([]float64, len(element.Properties))
	for i := 0; i < element.Count; i++ {
		for j, prop := range element.Properties {
			if prop.IsList {
				if err := skipPLYList(reader, prop); err != nil {
					return err
				}
				continue
			}
			v, err := reader.read(prop.Type)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", i, err)
			}
			values[j] = v
		}

		mesh.Positions = append(mesh.Positions, core.NewVec3(values[px], values[py], values[pz]))
		if hasNormals {
			mesh.Normals = append(mesh.Normals, core.NewVec3(values[nx], values[ny], values[nz]))
		}
		if hasUVs {
			mesh.UVs = append(mesh.UVs, core.NewVec2(values[tu], values[tv]))
		}
	}
	return nil
}

func readPLYFaces(reader plyValueReader, element PLYElement, mesh *MeshData) error {
	polygon := make([]int, 0, 4)
	for i := 0; i < element.Count; i++ {
		for _, prop := range element.Properties {
			if !prop.IsList || (prop.Name != "vertex_indices" && prop.Name != "vertex_index") {
				if err := skipPLYProperty(reader, prop); err != nil {
					return err
				}
				continue
			}

			count, err := reader.read(prop.ListType)
			if err != nil {
				return fmt.Errorf("face %d: %w", i, err)
			}
			polygon = polygon[:0]
			for k := 0; k < int(count); k++ {
				v, err := reader.read(prop.Type)
				if err != nil {
					return fmt.Errorf("face %d: %w", i, err)
				}
				polygon = append(polygon, int(v))
			}
			mesh.appendFan(polygon)
		}
	}
	return nil
}

func skipPLYElement(reader plyValueReader, element PLYElement) error {
	for i := 0; i < element.Count; i++ {
		for _, prop := range element.Properties {
			if err := skipPLYProperty(reader, prop); err != nil {
				return err
			}
		}
	}
	return nil
}

func skipPLYProperty(reader plyValueReader, prop PLYProperty) error {
	if prop.IsList {
		return skipPLYList(reader, prop)
	}
	_, err := reader.read(prop.Type)
	return err
}

func skipPLYList(reader plyValueReader, prop PLYProperty) error {
	count, err := reader.read(prop.ListType)
	if err != nil {
		return err
	}
	for k := 0; k < int(count); k++ {
		if _, err := reader.read(prop.Type); err != nil {
			return err
		}
	}
	return nil
}

// plyValueReader yields scalar values of a named PLY type
type plyValueReader interface {
	read(dataType string) (float64, error)
}

type plyASCIIReader struct {
	r      *bufio.Reader
	fields []string
}

func (a *plyASCIIReader) read(dataType string) (float64, error) {
	for len(a.fields) == 0 {
		line, err := a.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return 0, err
		}
		a.fields = strings.Fields(line)
	}
	field := a.fields[0]
	a.fields = a.fields[1:]
	return strconv.ParseFloat(field, 64)
}

type plyBinaryReader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	buf   [8]byte
}

// getTypeSize returns the size in bytes of a PLY data type
func getTypeSize(dataType string) int {
	switch dataType {
	case "float", "float32", "int", "int32", "uint", "uint32":
		return 4
	case "double", "float64":
		return 8
	case "short", "int16", "ushort", "uint16":
		return 2
	case "char", "int8", "uchar", "uint8":
		return 1
	default:
		return 0
	}
}

func (b *plyBinaryReader) read(dataType string) (float64, error) {
	size := getTypeSize(dataType)
	if size == 0 {
		return 0, fmt.Errorf("unsupported data type: %s", dataType)
	}
	data := b.buf[:size]
	if _, err := io.ReadFull(b.r, data); err != nil {
		return 0, err
	}

	switch dataType {
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(data))), nil
	case "double", "float64":
		return math.Float64frombits(b.order.Uint64(data)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(data))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(data)), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(data))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(data)), nil
	case "char", "int8":
		return float64(int8(data[0])), nil
	default:
		return float64(data[0]), nil
	}
}
