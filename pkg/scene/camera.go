package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

const (
	cameraNear = 0.1
	cameraFar  = 1000.0
)

// CameraConfig contains all camera configuration parameters
type CameraConfig struct {
	Center core.Vec3 // Camera position
	LookAt core.Vec3 // Point the camera is looking at
	Up     core.Vec3 // Up direction (usually (0,1,0))
	Width  int       // Image width in pixels
	Height int       // Image height in pixels
	VFov   float64   // Vertical field of view in degrees
}

// Camera generates primary rays through the inverse projection and view matrices
type Camera struct {
	config      CameraConfig
	view        mgl64.Mat4
	projection  mgl64.Mat4
	viewInverse mgl64.Mat4
	projInverse mgl64.Mat4
}

// NewCamera creates a perspective camera
func NewCamera(config CameraConfig) *Camera {
	if config.Width <= 0 {
		config.Width = 1
	}
	if config.Height <= 0 {
		config.Height = 1
	}
	if config.Up.IsZero() {
		config.Up = core.NewVec3(0, 1, 0)
	}
	// LookAt is undefined when up is parallel to the view direction
	if config.LookAt.Subtract(config.Center).Cross(config.Up).LengthSquared() < 1e-12 {
		config.Up = core.NewVec3(0, 0, 1)
		if config.LookAt.Subtract(config.Center).Cross(config.Up).LengthSquared() < 1e-12 {
			config.Up = core.NewVec3(1, 0, 0)
		}
	}

	aspect := float64(config.Width) / float64(config.Height)
	view := mgl64.LookAtV(toMgl(config.Center), toMgl(config.LookAt), toMgl(config.Up))
	projection := mgl64.Perspective(mgl64.DegToRad(config.VFov), aspect, cameraNear, cameraFar)

	return &Camera{
		config:      config,
		view:        view,
		projection:  projection,
		viewInverse: view.Inv(),
		projInverse: projection.Inv(),
	}
}

// VerticalFOV converts a field of view measured along axis ("x" or "y") to
// the vertical field of view for the given width/height aspect
func VerticalFOV(fovDegrees float64, axis string, aspect float64) float64 {
	if axis != "x" || aspect <= 0 {
		return fovDegrees
	}
	half := mgl64.DegToRad(fovDegrees) / 2
	return mgl64.RadToDeg(2 * math.Atan(math.Tan(half)/aspect))
}

// GenerateRay returns the primary ray through pixel (x, y) offset by jitter
// in [0,1)². Row 0 is the top of the image.
func (c *Camera) GenerateRay(x, y int, jitter core.Vec2) core.Ray {
	ndcX := (float64(x)+jitter.X)/float64(c.config.Width)*2 - 1
	ndcY := 1 - (float64(y)+jitter.Y)/float64(c.config.Height)*2

	target := c.projInverse.Mul4x1(mgl64.Vec4{ndcX, ndcY, 1, 1})
	dirView := mgl64.Vec3{target[0], target[1], target[2]}.Normalize()
	dirWorld := c.viewInverse.Mul4x1(dirView.Vec4(0))

	direction := core.NewVec3(dirWorld[0], dirWorld[1], dirWorld[2]).Normalize()
	return core.NewRay(c.config.Center, direction)
}

// Position returns the camera center
func (c *Camera) Position() core.Vec3 {
	return c.config.Center
}

// Forward returns the unit view direction
func (c *Camera) Forward() core.Vec3 {
	return c.config.LookAt.Subtract(c.config.Center).Normalize()
}

// Config returns the configuration the camera was built from
func (c *Camera) Config() CameraConfig {
	return c.config
}

// Resize returns a camera with the same view and field of view for a new image size
func (c *Camera) Resize(width, height int) *Camera {
	config := c.config
	config.Width, config.Height = width, height
	return NewCamera(config)
}

func toMgl(v core.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
