package texture

import "github.com/df07/go-mitsuba-pathtracer/pkg/core"

// Store is the scene's index-addressable texture table. It is read-only while
// frames are rendering.
type Store struct {
	images []*Image
	names  []string
}

// NewStore creates an empty texture table
func NewStore() *Store {
	return &Store{}
}

// Add appends an image and returns its index
func (s *Store) Add(name string, img *Image) int32 {
	s.images = append(s.images, img)
	s.names = append(s.names, name)
	return int32(len(s.images) - 1)
}

// Len returns the number of stored textures
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.images)
}

// Name returns the source name of texture i
func (s *Store) Name(i int) string {
	return s.names[i]
}

// Get returns the image at index, or nil when the index is unbound
func (s *Store) Get(index int32) *Image {
	if s == nil || index < 0 || int(index) >= len(s.images) {
		return nil
	}
	return s.images[index]
}

// Sample looks up texture index at uv. Absent or out-of-range indices return opaque white.
func (s *Store) Sample(index int32, uv core.Vec2) RGBA {
	img := s.Get(index)
	if img == nil {
		return White
	}
	return img.Sample(uv)
}
