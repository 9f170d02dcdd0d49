package loaders

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
)

// ErrNotMitsubaScene is returned when the document root is not <scene>.
var ErrNotMitsubaScene = errors.New("root element is not <scene>")

// TextureRef identifies an image file and how its texels are interpreted
type TextureRef struct {
	Path  string
	Space ColorSpace
}

// ShapeDesc is one shape of the scene with its geometry already in world space
type ShapeDesc struct {
	Type     string
	ID       string
	Mesh     *MeshData
	Material int32 // index into SceneDescription.Materials
	Emitter  bool
	Emission core.Vec3 // zero unless Emitter
}

// SensorDesc is the camera as described by the scene file
type SensorDesc struct {
	Position    core.Vec3
	Target      core.Vec3
	Up          core.Vec3
	FOV         float64 // degrees, measured along FOVAxis
	FOVAxis     string  // "x" or "y"
	Width       int
	Height      int
	SampleCount int // sampler sample_count, 0 when unset
}

// EnvironmentKind says which background the scene uses
type EnvironmentKind int

const (
	NoEnvironment EnvironmentKind = iota
	EnvironmentMap
	ConstantEnvironment
)

// EnvironmentDesc describes the global emitter
type EnvironmentDesc struct {
	Kind      EnvironmentKind
	Filename  string // resolved path of the equirectangular map
	Intensity float64
	Radiance  core.Vec3 // constant emitters only
}

// SceneDescription is everything read from a Mitsuba scene file. Material
// index 0 is always a default diffuse.
type SceneDescription struct {
	Path        string
	Materials   material.Table
	MaterialIDs map[string]int32
	Textures    []TextureRef
	Shapes      []ShapeDesc
	Sensor      SensorDesc
	Environment EnvironmentDesc
	MaxDepth    int   // integrator max_depth, 0 when unset
	Report      error // non-fatal problems, combined with multierr
}

// MitsubaOptions configures scene loading
type MitsubaOptions struct {
	Logger *zap.Logger
}

// xmlNode is a generic element; Mitsuba plugins are distinguished by
// attributes rather than element names so a typed schema does not fit.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
}

func (n *xmlNode) name() string {
	return n.XMLName.Local
}

func (n *xmlNode) rawAttr(key string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == key {
			return a.Value
		}
	}
	return ""
}

// MitsubaParser holds the state of one scene load
type MitsubaParser struct {
	dir        string
	log        *zap.Logger
	defaults   map[string]string
	defaultKey []string // longest first so $ab is replaced before $a
	scene      *SceneDescription
	textureIDs map[string]*xmlNode
	textureIdx map[TextureRef]int32
}

// NewMitsubaParser creates a parser resolving relative paths against dir
func NewMitsubaParser(dir string, log *zap.Logger) *MitsubaParser {
	if log == nil {
		log = zap.NewNop()
	}
	return &MitsubaParser{
		dir:        dir,
		log:        log,
		defaults:   make(map[string]string),
		textureIDs: make(map[string]*xmlNode),
		textureIdx: make(map[TextureRef]int32),
		scene: &SceneDescription{
			Materials:   material.Table{material.NewDiffuse(core.Splat(0.5))},
			MaterialIDs: make(map[string]int32),
			Sensor:      defaultSensor(),
		},
	}
}

func defaultSensor() SensorDesc {
	return SensorDesc{
		Target:  core.NewVec3(0, 0, 1),
		Up:      core.NewVec3(0, 1, 0),
		FOV:     45,
		FOVAxis: "x",
		Width:   1280,
		Height:  720,
	}
}

// LoadMitsuba loads and parses a Mitsuba XML scene file
func LoadMitsuba(filename string, opts MitsubaOptions) (*SceneDescription, error) {
	if err := validateFilePath(filename); err != nil {
		return nil, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer file.Close()

	parser := NewMitsubaParser(filepath.Dir(filename), opts.Logger)
	scene, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	scene.Path = filename
	return scene, nil
}

// validateFilePath rejects names that cannot be a scene file
func validateFilePath(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.Contains(filename, "\x00") {
		return fmt.Errorf("invalid file path: null bytes not allowed")
	}
	if len(filename) > 512 {
		return fmt.Errorf("file path too long: maximum 512 characters allowed")
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".xml") {
		return fmt.Errorf("invalid file type: only .xml scene files are allowed")
	}
	return nil
}

// Parse reads a scene document
func (p *MitsubaParser) Parse(r io.Reader) (*SceneDescription, error) {
	var root xmlNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("malformed scene XML: %w", err)
	}
	if root.name() != "scene" {
		return nil, ErrNotMitsubaScene
	}

	// Defaults and named textures may be referenced before their position
	for i := range root.Children {
		child := &root.Children[i]
		switch child.name() {
		case "default":
			p.defaults[child.rawAttr("name")] = child.rawAttr("value")
		case "texture":
			if id := child.rawAttr("id"); id != "" {
				p.textureIDs[id] = child
			}
		}
	}
	for key := range p.defaults {
		p.defaultKey = append(p.defaultKey, key)
	}
	sort.Slice(p.defaultKey, func(i, j int) bool { return len(p.defaultKey[i]) > len(p.defaultKey[j]) })

	for i := range root.Children {
		child := &root.Children[i]
		switch child.name() {
		case "default", "texture":
		case "bsdf":
			idx := p.parseBSDF(child)
			if id := p.attr(child, "id"); id != "" {
				p.scene.MaterialIDs[id] = idx
			}
		case "shape":
			p.parseShape(child)
		case "sensor":
			p.parseSensor(child)
		case "emitter":
			p.parseEmitter(child)
		case "integrator":
			p.parseIntegrator(child)
		default:
			p.warnf("skipping unsupported element", zap.String("element", child.name()))
		}
	}

	p.log.Info("Parsed Mitsuba scene",
		zap.Int("materials", len(p.scene.Materials)),
		zap.Int("shapes", len(p.scene.Shapes)),
		zap.Int("textures", len(p.scene.Textures)))
	return p.scene, nil
}

// attr returns an attribute value with $name references replaced by defaults
func (p *MitsubaParser) attr(n *xmlNode, key string) string {
	v := n.rawAttr(key)
	if !strings.Contains(v, "$") {
		return v
	}
	for _, name := range p.defaultKey {
		v = strings.ReplaceAll(v, "$"+name, p.defaults[name])
	}
	return v
}

// warnf logs an unsupported or invalid input that is skipped
func (p *MitsubaParser) warnf(msg string, fields ...zap.Field) {
	p.log.Warn(msg, fields...)
}

// fail records a load problem in the report and logs it
func (p *MitsubaParser) fail(err error) {
	p.log.Warn("scene load problem", zap.Error(err))
	p.scene.Report = multierr.Append(p.scene.Report, err)
}

func (p *MitsubaParser) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.dir, filepath.FromSlash(path))
}

func (p *MitsubaParser) addMaterial(params material.Params) int32 {
	p.scene.Materials = append(p.scene.Materials, params)
	return int32(len(p.scene.Materials) - 1)
}

// lookupMaterial resolves a <ref id>; unknown ids bind the default diffuse
func (p *MitsubaParser) lookupMaterial(id string) int32 {
	if idx, ok := p.scene.MaterialIDs[id]; ok {
		return idx
	}
	p.fail(fmt.Errorf("unknown material reference %q", id))
	return 0
}

func (p *MitsubaParser) parseShape(n *xmlNode) {
	shapeType := p.attr(n, "type")
	shape := ShapeDesc{Type: shapeType, ID: p.attr(n, "id")}

	var mesh *MeshData
	var err error
	switch shapeType {
	case "obj":
		mesh, err = LoadOBJ(p.resolve(p.stringProp(n, "filename")))
	case "ply":
		mesh, err = LoadPLY(p.resolve(p.stringProp(n, "filename")))
	case "rectangle":
		mesh = NewRectangleMesh()
	case "cube":
		mesh = NewCubeMesh()
	default:
		p.warnf("skipping unsupported shape", zap.String("type", shapeType))
		return
	}
	if err != nil {
		p.fail(fmt.Errorf("shape %q: %w", shapeType, err))
		return
	}

	for i := range n.Children {
		child := &n.Children[i]
		switch child.name() {
		case "transform":
			if p.attr(child, "name") == "to_world" || p.attr(child, "name") == "toWorld" {
				m, err := p.parseTransform(child)
				if err != nil {
					p.fail(fmt.Errorf("shape %q transform: %w", shapeType, err))
					continue
				}
				applyTransform(mesh, m)
			}
		case "ref":
			shape.Material = p.lookupMaterial(p.attr(child, "id"))
		case "bsdf":
			shape.Material = p.parseBSDF(child)
		case "emitter":
			if p.attr(child, "type") != "area" {
				p.warnf("skipping unsupported shape emitter", zap.String("type", p.attr(child, "type")))
				continue
			}
			shape.Emitter = true
			shape.Emission = core.Splat(1)
			if v, ok := p.colorProp(child, "radiance"); ok {
				shape.Emission = v
			}
		}
	}

	shape.Mesh = mesh
	p.scene.Shapes = append(p.scene.Shapes, shape)
}

func (p *MitsubaParser) parseSensor(n *xmlNode) {
	sensorType := p.attr(n, "type")
	if sensorType != "perspective" {
		p.warnf("treating sensor as perspective", zap.String("type", sensorType))
	}

	s := defaultSensor()
	if v, ok := p.floatProp(n, "fov"); ok {
		s.FOV = v
	}
	if axis := p.stringProp(n, "fov_axis"); axis != "" {
		switch axis {
		case "x", "y":
			s.FOVAxis = axis
		default:
			p.warnf("unsupported fov_axis, using x", zap.String("fov_axis", axis))
		}
	}

	for i := range n.Children {
		child := &n.Children[i]
		switch child.name() {
		case "transform":
			m, err := p.parseTransform(child)
			if err != nil {
				p.fail(fmt.Errorf("sensor transform: %w", err))
				continue
			}
			s.Position = transformPoint(m, core.Vec3{})
			s.Target = transformPoint(m, core.NewVec3(0, 0, 1))
			s.Up = transformDirection(m, core.NewVec3(0, 1, 0)).Normalize()
		case "film":
			if v, ok := p.intProp(child, "width"); ok && v > 0 {
				s.Width = v
			}
			if v, ok := p.intProp(child, "height"); ok && v > 0 {
				s.Height = v
			}
		case "sampler":
			if v, ok := p.intProp(child, "sample_count"); ok && v > 0 {
				s.SampleCount = v
			}
		}
	}
	p.scene.Sensor = s
}

func (p *MitsubaParser) parseEmitter(n *xmlNode) {
	switch emitterType := p.attr(n, "type"); emitterType {
	case "envmap":
		env := EnvironmentDesc{Kind: EnvironmentMap, Intensity: 1}
		env.Filename = p.resolve(p.stringProp(n, "filename"))
		if v, ok := p.floatProp(n, "scale"); ok {
			env.Intensity = v
		} else if c, ok := p.colorProp(n, "scale"); ok {
			env.Intensity = c.Average()
		}
		if env.Filename == "" {
			p.fail(errors.New("envmap without filename"))
			return
		}
		p.scene.Environment = env
	case "constant":
		env := EnvironmentDesc{Kind: ConstantEnvironment, Intensity: 1, Radiance: core.Splat(1)}
		if c, ok := p.colorProp(n, "radiance"); ok {
			env.Radiance = c
		}
		p.scene.Environment = env
	default:
		p.warnf("skipping unsupported emitter", zap.String("type", emitterType))
	}
}

func (p *MitsubaParser) parseIntegrator(n *xmlNode) {
	if v, ok := p.intProp(n, "max_depth"); ok && v > 0 {
		p.scene.MaxDepth = v
	}
}

// property returns the first direct child element carrying the given name attribute
func (p *MitsubaParser) property(n *xmlNode, element, name string) *xmlNode {
	for i := range n.Children {
		child := &n.Children[i]
		if child.name() == element && p.attr(child, "name") == name {
			return child
		}
	}
	return nil
}

func (p *MitsubaParser) stringProp(n *xmlNode, name string) string {
	if c := p.property(n, "string", name); c != nil {
		return p.attr(c, "value")
	}
	return ""
}

func (p *MitsubaParser) floatProp(n *xmlNode, name string) (float64, bool) {
	c := p.property(n, "float", name)
	if c == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.attr(c, "value")), 64)
	if err != nil {
		p.fail(fmt.Errorf("float %q: %w", name, err))
		return 0, false
	}
	return v, true
}

func (p *MitsubaParser) intProp(n *xmlNode, name string) (int, bool) {
	c := p.property(n, "integer", name)
	if c == nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(p.attr(c, "value")))
	if err != nil {
		p.fail(fmt.Errorf("integer %q: %w", name, err))
		return 0, false
	}
	return v, true
}

// colorProp reads an rgb or spectrum property
func (p *MitsubaParser) colorProp(n *xmlNode, name string) (core.Vec3, bool) {
	c := p.property(n, "rgb", name)
	if c == nil {
		c = p.property(n, "spectrum", name)
	}
	if c == nil {
		return core.Vec3{}, false
	}
	v, err := parseColor(p.attr(c, "value"))
	if err != nil {
		p.fail(fmt.Errorf("color %q: %w", name, err))
		return core.Vec3{}, false
	}
	return v, true
}

// parseColor accepts "r g b", "r, g, b" or a single grey value
func parseColor(s string) (core.Vec3, error) {
	values, err := parseFloatList(s)
	if err != nil {
		return core.Vec3{}, err
	}
	switch len(values) {
	case 1:
		return core.Splat(values[0]), nil
	case 3:
		return core.NewVec3(values[0], values[1], values[2]), nil
	}
	return core.Vec3{}, fmt.Errorf("expected 1 or 3 values, got %d", len(values))
}

func parseFloatList(s string) ([]float64, error) {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
