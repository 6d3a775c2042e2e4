package device

// RNG is a splitmix64 stream. The job seed is the only source of
// non-determinism in the pipeline, so the generator must be fully
// reproducible across runs and independent of math/rand internals.
type RNG struct {
	state uint64
}

// NewRNG seeds a new stream.
func NewRNG(seed uint64) *RNG { return &RNG{state: seed} }

// Uint64 advances the stream.
func (r *RNG) Uint64() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Float32 returns a uniform value in [-1, 1).
func (r *RNG) Float32() float32 {
	// 24 mantissa bits, mapped to [0,1) then shifted.
	u := r.Uint64() >> 40
	return float32(u)/float32(1<<24)*2 - 1
}

// Normal returns an approximately standard-normal value using the sum of
// uniforms (Irwin-Hall with k=12), which is branch-free and bit-stable.
func (r *RNG) Normal() float32 {
	var s float32
	for i := 0; i < 12; i++ {
		u := r.Uint64() >> 40
		s += float32(u) / float32(1<<24)
	}
	return s - 6
}

// Mix64 hashes x with the same finalizer the stream uses. Deterministic
// coefficient derivation for the reference backend kernels.
func Mix64(x uint64) uint64 {
	z := x + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// MixUnit maps x to a deterministic value in [-1, 1).
func MixUnit(x uint64) float32 {
	return float32(Mix64(x)>>40)/float32(1<<24)*2 - 1
}
