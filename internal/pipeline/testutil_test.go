package pipeline

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"videod/internal/backend"
	"videod/internal/device"
	"videod/internal/registry"
	"videod/pkg/types"
)

// createAssetDir materializes a minimal three-role asset directory with
// deterministic content so weight digests are stable across test runs.
func createAssetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"text_encoder.safetensors": bytes.Repeat([]byte("enc0"), 256),
		"backbone.safetensors":     bytes.Repeat([]byte("bbn1"), 256),
		"upscaler.safetensors":     bytes.Repeat([]byte("ups2"), 256),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write asset %s: %v", name, err)
		}
	}
	return dir
}

// loadTestAssets resolves a fresh asset directory into a bundle.
func loadTestAssets(t *testing.T) (registry.Bundle, error) {
	t.Helper()
	return registry.LoadDir(createAssetDir(t))
}

// newTestPipeline builds and warms a pipeline over a fresh asset directory.
// mutate may adjust the config before construction; pass nil for defaults.
func newTestPipeline(t *testing.T, mutate func(*Config)) *Pipeline {
	t.Helper()
	assets, err := registry.LoadDir(createAssetDir(t))
	if err != nil {
		t.Fatalf("load assets: %v", err)
	}
	cfg := Config{
		Assets:    assets,
		OutputDir: t.TempDir(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p := New(cfg)
	if err := p.WarmUp(); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	t.Cleanup(p.Shutdown)
	return p
}

// smallRequest is the cheap valid request used across the suite:
// 128x64 pixels, 9 frames, reduced step counts, fixed seed.
func smallRequest() types.GenerationRequest {
	return types.GenerationRequest{
		Prompt:        "a red fox running through snow",
		Width:         128,
		Height:        64,
		NumFrames:     9,
		FrameRate:     24,
		SamplerSteps:  4,
		UpscaleSteps:  2,
		GuidanceScale: 3,
		Seed:          42,
	}
}

// poisonBackend corrupts the latent with NaN after the given denoising step,
// simulating numeric overflow inside a kernel.
type poisonBackend struct {
	backend.Backend
	poisonAt int
	step     int32
}

func (b *poisonBackend) DenoiseStep(ctx context.Context, bb *device.Weights, latent, cond, uncond *device.Tensor, sigma, sigmaNext, guidance float64) error {
	if err := b.Backend.DenoiseStep(ctx, bb, latent, cond, uncond, sigma, sigmaNext, guidance); err != nil {
		return err
	}
	if int(atomic.AddInt32(&b.step, 1)) == b.poisonAt {
		latent.Data[0] = float32(math.NaN())
	}
	return nil
}

// pacedBackend slows each denoising step down and reports step boundaries,
// for cancellation, timeout, and sequencing tests.
type pacedBackend struct {
	backend.Backend
	delay  time.Duration
	onStep func(step int)
	step   int32
}

func (b *pacedBackend) DenoiseStep(ctx context.Context, bb *device.Weights, latent, cond, uncond *device.Tensor, sigma, sigmaNext, guidance float64) error {
	n := int(atomic.AddInt32(&b.step, 1))
	if b.onStep != nil {
		b.onStep(n)
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return b.Backend.DenoiseStep(ctx, bb, latent, cond, uncond, sigma, sigmaNext, guidance)
}
