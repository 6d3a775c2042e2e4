package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"os"

	"videod/internal/backend"
	"videod/internal/device"
	"videod/pkg/types"
)

// geometry captures the latent tiling for one request. The sampler works at
// half the target latent resolution; the upscaler doubles it; the decoder
// expands each latent cell to CellPixels pixels.
type geometry struct {
	latentFrames int
	lowH, lowW   int
	hiH, hiW     int
}

func geometryFor(req *types.GenerationRequest) geometry {
	return geometry{
		latentFrames: (req.NumFrames-1)/backend.TemporalFactor + 1,
		lowH:         req.Height / spatialFactor,
		lowW:         req.Width / spatialFactor,
		hiH:          req.Height / backend.CellPixels,
		hiW:          req.Width / backend.CellPixels,
	}
}

// sigmaSchedule returns the fixed noise schedule for a step count: steps+1
// linearly descending values from 1 to 0.
func sigmaSchedule(steps int) []float64 {
	s := make([]float64, steps+1)
	for i := range s {
		s[i] = 1 - float64(i)/float64(steps)
	}
	return s
}

// initialLatent draws the seed noise for the sampler. The seed is the only
// source of non-determinism in the whole pipeline.
func (p *Pipeline) initialLatent(g geometry, seed int64, arena *device.Arena) (*device.Tensor, *device.RNG) {
	rng := device.NewRNG(uint64(seed))
	t := arena.NewTensor(g.latentFrames, backend.LatentChannels, g.lowH, g.lowW)
	for i := range t.Data {
		t.Data[i] = rng.Normal()
	}
	return t, rng
}

// blendMedia folds conditioning media into the seed noise before the loop
// starts: the media-derived latent is blended by strength rather than
// replacing the frame outright, with the configured conditioning noise scale
// applied on the media side.
func (p *Pipeline) blendMedia(latent *device.Tensor, g geometry, media []types.ConditioningMedia, rng *device.RNG) error {
	frameElems := backend.LatentChannels * g.lowH * g.lowW
	for i, m := range media {
		digest, err := digestFile(m.Path)
		if err != nil {
			return errSampling(string(JobStateSampling), fmt.Sprintf("conditioning[%d]: %v", i, err))
		}
		fi := m.StartFrame / backend.TemporalFactor
		if fi >= g.latentFrames {
			fi = g.latentFrames - 1
		}
		s := float32(m.Strength)
		noise := float32(p.cfg.MediaNoiseScale)
		frame := latent.Data[fi*frameElems : (fi+1)*frameElems]
		for k := range frame {
			mv := device.MixUnit(digest ^ uint64(k))
			frame[k] = s*(mv+noise*rng.Normal()) + (1-s)*frame[k]
		}
	}
	return nil
}

func digestFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()
	h := fnv.New64a()
	if _, err := io.Copy(h, bufio.NewReader(f)); err != nil {
		return 0, fmt.Errorf("read media: %w", err)
	}
	return h.Sum64(), nil
}

// checkFinite scans a latent for NaN/Inf after a denoising step so numeric
// overflow aborts the job instead of propagating downstream.
func checkFinite(t *device.Tensor) bool {
	for _, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// runSampler executes exactly req.SamplerSteps denoising steps with
// classifier-free guidance. Cancellation is observed once per step, never
// mid-step: an individual step is atomic with respect to device memory.
func (p *Pipeline) runSampler(ctx context.Context, j *job, bb *device.Weights, req *types.GenerationRequest, cond *conditioning, arena *device.Arena) (*device.Tensor, error) {
	g := geometryFor(req)
	latent, rng := p.initialLatent(g, req.Seed, arena)
	if len(req.Conditioning) > 0 {
		if err := p.blendMedia(latent, g, req.Conditioning, rng); err != nil {
			return nil, err
		}
	}
	sigmas := sigmaSchedule(req.SamplerSteps)
	for i := 0; i < req.SamplerSteps; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := p.backend.DenoiseStep(ctx, bb, latent, cond.cond, cond.uncond, sigmas[i], sigmas[i+1], req.GuidanceScale); err != nil {
			return nil, errSampling(string(JobStateSampling), err.Error())
		}
		if !checkFinite(latent) {
			return nil, errSampling(string(JobStateSampling), fmt.Sprintf("non-finite latent after step %d/%d", i+1, req.SamplerSteps))
		}
	}
	return latent, nil
}
