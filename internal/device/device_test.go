package device

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"videod/pkg/types"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestArenaTracksAndReleases(t *testing.T) {
	a := NewArena()
	tt := a.NewTensor(2, 3)
	if !tt.ShapeEquals(2, 3) || len(tt.Data) != 6 {
		t.Fatalf("unexpected tensor %v len=%d", tt.Shape, len(tt.Data))
	}
	// 512x512 floats = 1MB
	a.NewTensor(512, 512)
	if a.UsedMB() < 1 {
		t.Fatalf("expected >=1MB used, got %d", a.UsedMB())
	}
	a.Release()
	if a.UsedMB() != 0 || !a.Released() {
		t.Fatalf("expected empty released arena")
	}
	// Release is idempotent
	a.Release()
}

func TestArenaAllocAfterReleasePanics(t *testing.T) {
	a := NewArena()
	a.Release()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on alloc from released arena")
		}
	}()
	a.NewTensor(1)
}

func TestRNGDeterministic(t *testing.T) {
	r1 := NewRNG(42)
	r2 := NewRNG(42)
	for i := 0; i < 100; i++ {
		if r1.Normal() != r2.Normal() {
			t.Fatalf("streams diverged at %d", i)
		}
	}
	r3 := NewRNG(43)
	if NewRNG(42).Uint64() == r3.Uint64() {
		t.Fatalf("different seeds produced the same first value")
	}
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "backbone.safetensors", []byte("weights-payload"))
	w, err := LoadWeights(types.RoleBackbone, p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if w.SizeMB < 1 || w.Digest == 0 {
		t.Fatalf("unexpected weights %+v", w)
	}
	w2, err := LoadWeights(types.RoleBackbone, p)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if w2.Digest != w.Digest {
		t.Fatalf("digest not stable across loads")
	}
}

func TestLoadWeightsMissing(t *testing.T) {
	if _, err := LoadWeights(types.RoleBackbone, filepath.Join(t.TempDir(), "nope.safetensors")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadWeightsEmpty(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "empty.safetensors", nil)
	if _, err := LoadWeights(types.RoleBackbone, p); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestChecksumSidecar(t *testing.T) {
	dir := t.TempDir()
	data := []byte("upscaler-weights")
	p := writeFile(t, dir, "upscaler.safetensors", data)

	sum := sha256.Sum256(data)
	writeFile(t, dir, "upscaler.safetensors.sha256", []byte(hex.EncodeToString(sum[:])+"  upscaler.safetensors\n"))
	if _, err := LoadWeights(types.RoleUpscaler, p); err != nil {
		t.Fatalf("valid checksum rejected: %v", err)
	}

	writeFile(t, dir, "upscaler.safetensors.sha256", []byte("deadbeef"))
	if _, err := LoadWeights(types.RoleUpscaler, p); err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
}
