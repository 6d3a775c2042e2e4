package registry

import (
	"os"
	"path/filepath"
	"testing"

	"videod/pkg/types"
)

func writeAsset(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("w"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDirResolvesRoles(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "t5-xxl-encoder.safetensors")
	writeAsset(t, dir, "ltxv-13b-distilled.safetensors")
	writeAsset(t, dir, "ltxv-spatial-upscaler.safetensors")
	writeAsset(t, dir, "notes.txt") // ignored

	b, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.TextEncoder.Role != types.RoleTextEncoder || filepath.Base(b.TextEncoder.Path) != "t5-xxl-encoder.safetensors" {
		t.Fatalf("bad text encoder: %+v", b.TextEncoder)
	}
	if b.Backbone.Role != types.RoleBackbone || filepath.Base(b.Backbone.Path) != "ltxv-13b-distilled.safetensors" {
		t.Fatalf("bad backbone: %+v", b.Backbone)
	}
	if b.Upscaler.Role != types.RoleUpscaler || filepath.Base(b.Upscaler.Path) != "ltxv-spatial-upscaler.safetensors" {
		t.Fatalf("bad upscaler: %+v", b.Upscaler)
	}
	if got := len(b.All()); got != 3 {
		t.Fatalf("All() returned %d assets", got)
	}
}

func TestLoadDirMissingRole(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "t5-xxl-encoder.safetensors")
	writeAsset(t, dir, "ltxv-13b-distilled.safetensors")
	if _, err := LoadDir(dir); err == nil {
		t.Fatalf("expected error for missing upscaler")
	}
}

func TestLoadDirAmbiguousRole(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "t5-xxl-encoder.safetensors")
	writeAsset(t, dir, "backbone-a.safetensors")
	writeAsset(t, dir, "backbone-b.safetensors")
	writeAsset(t, dir, "ltxv-spatial-upscaler.safetensors")
	if _, err := LoadDir(dir); err == nil {
		t.Fatalf("expected error for two backbone candidates")
	}
}

func TestLoadDirMissingDir(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
