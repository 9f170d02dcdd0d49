package core

// HashSampler is a stateless counter-based generator: every value is a hash of
// (seed, counter), so two samplers built from the same pixel, frame and sample
// index produce identical sequences and no state is shared between pixels.
type HashSampler struct {
	seed    uint32
	counter uint32
}

// NewHashSampler seeds a sampler from pixel coordinates, frame index and the
// sample index within the frame.
func NewHashSampler(x, y int, frame, sample uint32) *HashSampler {
	seed := pcgHash(uint32(x) ^ pcgHash(uint32(y)^pcgHash(frame^pcgHash(sample))))
	return &HashSampler{seed: seed}
}

// pcgHash is the PCG-RXS-M-XS output permutation used as an integer hash
func pcgHash(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

func (h *HashSampler) next() float64 {
	h.counter++
	v := pcgHash(h.seed + pcgHash(h.counter))
	// 24 high-quality bits keep the result strictly below 1
	return float64(v>>8) / float64(1<<24)
}

// Get1D returns a value in [0, 1)
func (h *HashSampler) Get1D() float64 {
	return h.next()
}

// Get2D returns two values in [0, 1)
func (h *HashSampler) Get2D() Vec2 {
	return Vec2{h.next(), h.next()}
}

// Get3D returns three values in [0, 1)
func (h *HashSampler) Get3D() Vec3 {
	return Vec3{h.next(), h.next(), h.next()}
}
