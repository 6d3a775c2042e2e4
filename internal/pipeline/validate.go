package pipeline

import (
	"fmt"
	"math/rand"
	"os"

	"videod/internal/backend"
	"videod/pkg/types"
)

// Request defaults matching the distilled backbone's serving profile.
const (
	DefaultWidth          = 1216
	DefaultHeight         = 704
	DefaultNumFrames      = 121
	DefaultFrameRate      = 30
	DefaultSamplerSteps   = 8
	DefaultUpscaleSteps   = 4
	DefaultGuidanceScale  = 3.0
	DefaultNegativePrompt = "worst quality, inconsistent motion, blurry, jittery, distorted"
)

// spatialFactor is the request-level divisibility constraint on width and
// height: one decoded latent cell spans backend.CellPixels pixels and the
// upscaler doubles latent resolution, so pixel dimensions must tile both.
const spatialFactor = backend.CellPixels * 2

// applyDefaults fills unset request fields in place and resolves the seed.
// A zero seed means "server chooses"; the resolved value is reported back in
// the JobResult so callers can reproduce the output.
func applyDefaults(req *types.GenerationRequest) {
	if req.Width == 0 {
		req.Width = DefaultWidth
	}
	if req.Height == 0 {
		req.Height = DefaultHeight
	}
	if req.NumFrames == 0 {
		req.NumFrames = DefaultNumFrames
	}
	if req.FrameRate == 0 {
		req.FrameRate = DefaultFrameRate
	}
	if req.SamplerSteps == 0 {
		req.SamplerSteps = DefaultSamplerSteps
	}
	if req.UpscaleSteps == 0 {
		req.UpscaleSteps = DefaultUpscaleSteps
	}
	if req.GuidanceScale == 0 {
		req.GuidanceScale = DefaultGuidanceScale
	}
	if req.NegativePrompt == "" {
		req.NegativePrompt = DefaultNegativePrompt
	}
	if req.Seed == 0 {
		req.Seed = rand.Int63()
	}
}

// validate rejects malformed requests before any device allocation happens.
func validate(req *types.GenerationRequest) error {
	if req.Prompt == "" {
		return ErrInvalidRequest("prompt is required")
	}
	if req.Width <= 0 || req.Height <= 0 {
		return ErrInvalidRequest("width and height must be positive")
	}
	if req.Width%spatialFactor != 0 || req.Height%spatialFactor != 0 {
		return ErrInvalidRequest(fmt.Sprintf(
			"width and height must be divisible by %d, have %dx%d",
			spatialFactor, req.Width, req.Height))
	}
	if req.NumFrames < 1 {
		return ErrInvalidRequest("num_frames must be >= 1")
	}
	if (req.NumFrames-1)%backend.TemporalFactor != 0 {
		return ErrInvalidRequest(fmt.Sprintf(
			"(num_frames-1) must be divisible by %d, have %d frames",
			backend.TemporalFactor, req.NumFrames))
	}
	if req.FrameRate <= 0 {
		return ErrInvalidRequest("frame_rate must be positive")
	}
	if req.SamplerSteps < 1 || req.UpscaleSteps < 1 {
		return ErrInvalidRequest("step counts must be >= 1")
	}
	if req.GuidanceScale < 0 {
		return ErrInvalidRequest("guidance_scale must be >= 0")
	}
	for i, c := range req.Conditioning {
		if c.Strength < 0 || c.Strength > 1 {
			return ErrInvalidRequest(fmt.Sprintf("conditioning[%d]: strength must be in [0,1]", i))
		}
		if c.StartFrame < 0 || c.StartFrame >= req.NumFrames {
			return ErrInvalidRequest(fmt.Sprintf("conditioning[%d]: start_frame out of range", i))
		}
		if c.Path == "" {
			return ErrInvalidRequest(fmt.Sprintf("conditioning[%d]: path is required", i))
		}
		if fi, err := os.Stat(c.Path); err != nil || fi.IsDir() {
			return ErrInvalidRequest(fmt.Sprintf("conditioning[%d]: media not readable: %s", i, c.Path))
		}
	}
	return nil
}
