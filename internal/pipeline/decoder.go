package pipeline

import (
	"context"
	"fmt"

	"videod/internal/backend"
	"videod/internal/device"
	"videod/pkg/types"
)

// runDecoder maps the final latent to pixel frames. Deterministic. A latent
// whose shape does not match the expected tiling is a stage contract
// violation (an upstream bug), surfaced with a full diagnostic and never
// silently coerced.
func (p *Pipeline) runDecoder(ctx context.Context, j *job, req *types.GenerationRequest, latent *device.Tensor) (*types.FrameSequence, error) {
	g := geometryFor(req)
	if !latent.ShapeEquals(g.latentFrames, backend.LatentChannels, g.hiH, g.hiW) {
		return nil, ErrDecode(fmt.Sprintf(
			"latent shape %s does not match decoder tiling [%d %d %d %d] for %dx%d/%d frames",
			latent.ShapeString(), g.latentFrames, backend.LatentChannels, g.hiH, g.hiW,
			req.Width, req.Height, req.NumFrames))
	}
	frames, err := p.backend.DecodeFrames(ctx, latent, req.Width, req.Height, req.NumFrames)
	if err != nil {
		return nil, ErrDecode(err.Error())
	}
	if len(frames) != req.NumFrames {
		return nil, ErrDecode(fmt.Sprintf("decoded %d frames, want %d", len(frames), req.NumFrames))
	}
	return &types.FrameSequence{
		Width:     req.Width,
		Height:    req.Height,
		FrameRate: req.FrameRate,
		Frames:    frames,
	}, nil
}
