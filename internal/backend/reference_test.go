package backend

import (
	"context"
	"testing"

	"videod/internal/device"
	"videod/pkg/types"
)

func testWeights(digest uint64) *device.Weights {
	return &device.Weights{Role: types.RoleBackbone, Path: "mem", SizeMB: 1, Digest: digest}
}

func TestEncodeTokensDeterministic(t *testing.T) {
	b := NewReference()
	enc := testWeights(0xabc123)
	a1 := device.NewArena()
	defer a1.Release()
	a2 := device.NewArena()
	defer a2.Release()

	t1, err := b.EncodeTokens(context.Background(), enc, []int{104, 105}, a1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	t2, err := b.EncodeTokens(context.Background(), enc, []int{104, 105}, a2)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !t1.ShapeEquals(2, EmbedDim) {
		t.Fatalf("unexpected shape %v", t1.Shape)
	}
	for i := range t1.Data {
		if t1.Data[i] != t2.Data[i] {
			t.Fatalf("encodings diverged at %d", i)
		}
	}
}

func TestEncodeTokensDigestSensitivity(t *testing.T) {
	b := NewReference()
	a := device.NewArena()
	defer a.Release()
	t1, _ := b.EncodeTokens(context.Background(), testWeights(1), []int{104}, a)
	t2, _ := b.EncodeTokens(context.Background(), testWeights(2), []int{104}, a)
	same := true
	for i := range t1.Data {
		if t1.Data[i] != t2.Data[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different weights must encode differently")
	}
}

func TestEncodeTokensEmpty(t *testing.T) {
	b := NewReference()
	a := device.NewArena()
	defer a.Release()
	if _, err := b.EncodeTokens(context.Background(), testWeights(1), nil, a); err == nil {
		t.Fatalf("expected error for empty token sequence")
	}
}

func TestDenoiseStepStaysFinite(t *testing.T) {
	b := NewReference()
	a := device.NewArena()
	defer a.Release()
	latent := a.NewTensor(2, LatentChannels, 2, 2)
	rng := device.NewRNG(7)
	for i := range latent.Data {
		latent.Data[i] = rng.Normal()
	}
	cond, _ := b.EncodeTokens(context.Background(), testWeights(3), []int{104, 105}, a)
	uncond, _ := b.EncodeTokens(context.Background(), testWeights(3), []int{32}, a)
	for i := 0; i < 8; i++ {
		sigma := 1 - float64(i)/8
		if err := b.DenoiseStep(context.Background(), testWeights(9), latent, cond, uncond, sigma, sigma-1.0/8, 3.0); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	for i, v := range latent.Data {
		if v != v { // NaN
			t.Fatalf("non-finite value at %d", i)
		}
	}
}

func TestUpscaleStepShapeMismatch(t *testing.T) {
	b := NewReference()
	a := device.NewArena()
	defer a.Release()
	hi := a.NewTensor(1, LatentChannels, 4, 4)
	prior := a.NewTensor(1, LatentChannels, 3, 3) // does not tile 4x4
	if err := b.UpscaleStep(context.Background(), testWeights(1), hi, prior, 1, 0.5); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}

func TestDecodeFramesGeometry(t *testing.T) {
	b := NewReference()
	a := device.NewArena()
	defer a.Release()
	// 2 latent frames -> up to 9 pixel frames; 2x2 cells -> 64x64 pixels.
	latent := a.NewTensor(2, LatentChannels, 2, 2)
	frames, err := b.DecodeFrames(context.Background(), latent, 64, 64, 9)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(frames) != 9 {
		t.Fatalf("decoded %d frames, want 9", len(frames))
	}
	for i, f := range frames {
		if len(f) != 64*64*3 {
			t.Fatalf("frame %d has %d bytes", i, len(f))
		}
	}
}

func TestDecodeFramesRankCheck(t *testing.T) {
	b := NewReference()
	a := device.NewArena()
	defer a.Release()
	latent := a.NewTensor(4, 4)
	if _, err := b.DecodeFrames(context.Background(), latent, 64, 64, 1); err == nil {
		t.Fatalf("expected rank error")
	}
}
