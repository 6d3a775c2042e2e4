// Package backend abstracts the numeric runtime executing the model kernels.
// The pipeline owns sequencing, admission, and error policy; a Backend only
// performs individual stage computations against resident weights.
package backend

import (
	"context"

	"videod/internal/device"
)

// Latent tensor geometry shared by every backend implementation.
const (
	// EmbedDim is the width of one conditioning embedding row.
	EmbedDim = 128
	// LatentChannels is the channel count of video latents.
	LatentChannels = 8
	// CellPixels is the pixel footprint of one decoded latent cell per axis.
	CellPixels = 32
	// TemporalFactor is the pixel-frame span of one latent frame interval.
	TemporalFactor = 8
)

// Backend is the model runtime used by the pipeline stages. Implementations
// must be deterministic for identical weights and inputs; the job seed is the
// only permitted source of randomness and it is injected by the caller through
// the initial latent. A single step is atomic: implementations do not need to
// observe ctx mid-kernel, the pipeline cancels between steps.
type Backend interface {
	// EncodeTokens maps token ids to a [len(tokens), EmbedDim] conditioning
	// tensor allocated from the job arena.
	EncodeTokens(ctx context.Context, enc *device.Weights, tokens []int, arena *device.Arena) (*device.Tensor, error)

	// DenoiseStep advances latent one Euler step from sigma to sigmaNext using
	// classifier-free guidance between cond and uncond. Mutates latent in place.
	DenoiseStep(ctx context.Context, bb *device.Weights, latent, cond, uncond *device.Tensor, sigma, sigmaNext, guidance float64) error

	// UpscaleStep advances a high-resolution latent one Euler step conditioned
	// on the low-resolution prior as structural guidance. Mutates latent.
	UpscaleStep(ctx context.Context, up *device.Weights, latent, prior *device.Tensor, sigma, sigmaNext float64) error

	// DecodeFrames renders the final latent into frames RGB images of
	// width x height pixels. Purely deterministic.
	DecodeFrames(ctx context.Context, latent *device.Tensor, width, height, frames int) ([][]byte, error)
}
