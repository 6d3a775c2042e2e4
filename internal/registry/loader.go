package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videod/internal/common/fsutil"
	"videod/pkg/types"
)

// Bundle is the resolved set of model assets the pipeline needs resident.
type Bundle struct {
	TextEncoder types.Asset
	Backbone    types.Asset
	Upscaler    types.Asset
}

// All returns the assets in pipeline order.
func (b Bundle) All() []types.Asset {
	return []types.Asset{b.TextEncoder, b.Backbone, b.Upscaler}
}

// LoadDir scans a directory of already-materialized *.safetensors files and
// resolves one file per role by filename. The daemon never fetches assets;
// a missing role here is fatal at warm-up.
func LoadDir(dir string) (Bundle, error) {
	var b Bundle
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return b, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return b, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return b, fmt.Errorf("read dir: %w", err)
	}
	found := map[types.AssetRole]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".safetensors") {
			continue
		}
		role := classify(name)
		if prev, dup := found[role]; dup {
			return b, fmt.Errorf("ambiguous %s assets: %s and %s", role, prev, name)
		}
		found[role] = name
	}
	for _, role := range []types.AssetRole{types.RoleTextEncoder, types.RoleBackbone, types.RoleUpscaler} {
		name, ok := found[role]
		if !ok {
			return b, fmt.Errorf("no %s asset in %s", role, abs)
		}
		p := filepath.Join(abs, name)
		a := types.Asset{Role: role, Path: p, SizeMB: sizeMB(p)}
		switch role {
		case types.RoleTextEncoder:
			b.TextEncoder = a
		case types.RoleBackbone:
			b.Backbone = a
		case types.RoleUpscaler:
			b.Upscaler = a
		}
	}
	return b, nil
}

// classify infers the role from the filename. Anything that is neither a text
// encoder nor an upscaler is taken to be the diffusion backbone.
func classify(name string) types.AssetRole {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "text_encoder"), strings.Contains(n, "text-encoder"), strings.Contains(n, "t5"):
		return types.RoleTextEncoder
	case strings.Contains(n, "upscaler"), strings.Contains(n, "upsampler"), strings.Contains(n, "spatial"):
		return types.RoleUpscaler
	default:
		return types.RoleBackbone
	}
}

// sizeMB stats the file; unknown sizes get a conservative 1MB floor so the
// budget math never sees zero.
func sizeMB(path string) int {
	fi, err := os.Stat(path)
	if err != nil {
		return 1
	}
	mb := int(fi.Size() / (1024 * 1024))
	if mb <= 0 {
		mb = 1
	}
	return mb
}
