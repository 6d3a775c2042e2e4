package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"videod/internal/device"
	"videod/pkg/types"
)

// Generate runs one job through the full stage sequence and always resolves
// it to exactly one JobResult. The returned error is nil iff the result is
// Completed; on failure it carries the originating kind for boundary mapping.
func (p *Pipeline) Generate(ctx context.Context, req types.GenerationRequest) (types.JobResult, error) {
	j := newJob(uuid.NewString())
	applyDefaults(&req)

	// Reject before any admission or device allocation.
	if err := validate(&req); err != nil {
		return p.failJob(j, &req, err)
	}
	textEnc, backboneW, upscalerW, ok := p.weights()
	if !ok {
		return p.failJob(j, &req, ErrAssetLoad("pipeline is not warmed up"))
	}

	release, err := p.beginJob(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = errCancelled("queue")
		} else if errors.Is(err, context.DeadlineExceeded) {
			err = errTimeout("queue")
		}
		return p.failJob(j, &req, err)
	}
	defer release()

	// All job tensors come from one arena; releasing it on every exit path is
	// what guarantees a failed job cannot poison the next one.
	arena := device.NewArena()
	defer arena.Release()
	p.attachArena(arena)
	defer p.detachArena()

	p.log.Info().Str("job_id", j.id).Str("prompt", req.Prompt).
		Int("width", req.Width).Int("height", req.Height).
		Int("frames", req.NumFrames).Int64("seed", req.Seed).Msg("job start")
	p.publisher.Publish(Event{Name: "job_start", JobID: j.id, Fields: map[string]any{
		"width": req.Width, "height": req.Height, "frames": req.NumFrames, "seed": req.Seed,
	}})

	var cond *conditioning
	err = p.runStage(ctx, j, JobStateConditioning, p.stageBudget(0), func(sctx context.Context) error {
		var serr error
		cond, serr = p.runConditioning(sctx, j, textEnc, req.Prompt, req.NegativePrompt, arena)
		return serr
	})
	if err != nil {
		return p.failJob(j, &req, err)
	}

	var low *device.Tensor
	err = p.runStage(ctx, j, JobStateSampling, p.stageBudget(req.SamplerSteps), func(sctx context.Context) error {
		var serr error
		low, serr = p.runSampler(sctx, j, backboneW, &req, cond, arena)
		return serr
	})
	if err != nil {
		return p.failJob(j, &req, err)
	}

	var hi *device.Tensor
	err = p.runStage(ctx, j, JobStateUpscaling, p.stageBudget(req.UpscaleSteps), func(sctx context.Context) error {
		var serr error
		hi, serr = p.runUpscaler(sctx, j, upscalerW, &req, low, arena)
		return serr
	})
	if err != nil {
		return p.failJob(j, &req, err)
	}

	var frames *types.FrameSequence
	err = p.runStage(ctx, j, JobStateDecoding, p.stageBudget(0), func(sctx context.Context) error {
		var serr error
		frames, serr = p.runDecoder(sctx, j, &req, hi)
		return serr
	})
	if err != nil {
		return p.failJob(j, &req, err)
	}

	// Hand off to the external encoder collaborator.
	outPath, err := p.encodeOutput(ctx, frames)
	if err != nil {
		return p.failJob(j, &req, err)
	}

	if err := j.advance(JobStateCompleted); err != nil {
		return p.failJob(j, &req, err)
	}
	dur := time.Since(j.started)
	p.mu.Lock()
	p.jobsCompleted++
	p.mu.Unlock()
	jobsTotal.WithLabelValues("completed").Inc()
	jobDuration.Observe(dur.Seconds())
	p.log.Info().Str("job_id", j.id).Dur("dur", dur).Str("output", outPath).Msg("job completed")
	p.publisher.Publish(Event{Name: "job_completed", JobID: j.id, Fields: map[string]any{
		"output": outPath, "dur_ms": dur.Milliseconds(),
	}})
	return types.JobResult{
		JobID:  j.id,
		Status: types.JobCompleted,
		Output: &types.Output{
			Path:      outPath,
			Width:     req.Width,
			Height:    req.Height,
			Frames:    frames.FrameCount(),
			FrameRate: req.FrameRate,
		},
		Warnings:         j.warnings,
		Seed:             req.Seed,
		DurationMS:       dur.Milliseconds(),
		StageDurationsMS: j.durations,
	}, nil
}

// stageBudget derives a stage's wall-clock ceiling from its step count.
func (p *Pipeline) stageBudget(steps int) time.Duration {
	return p.cfg.StageBaseBudget + time.Duration(steps)*p.cfg.StageStepBudget
}

// runStage advances the state machine, executes fn under the stage's
// wall-clock ceiling, and normalizes context errors into the timeout kind.
func (p *Pipeline) runStage(ctx context.Context, j *job, st JobState, budget time.Duration, fn func(context.Context) error) error {
	if err := j.advance(st); err != nil {
		return err
	}
	p.setActiveStage(st)
	defer p.setActiveStage("")
	p.publisher.Publish(Event{Name: "stage_start", JobID: j.id, Fields: map[string]any{"stage": string(st)}})

	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	err := fn(sctx)
	dur := time.Since(start)
	j.durations[string(st)] = dur.Milliseconds()
	stageDuration.WithLabelValues(string(st)).Observe(dur.Seconds())

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			switch {
			case ctx.Err() == nil:
				// The stage ceiling fired, not the caller.
				err = errTimeout(string(st))
			case errors.Is(ctx.Err(), context.Canceled):
				err = errCancelled(string(st))
			default:
				err = errTimeout(string(st))
			}
		}
		p.publisher.Publish(Event{Name: "stage_error", JobID: j.id, Fields: map[string]any{
			"stage": string(st), "error": err.Error(), "dur_ms": dur.Milliseconds(),
		}})
		return err
	}
	p.publisher.Publish(Event{Name: "stage_done", JobID: j.id, Fields: map[string]any{
		"stage": string(st), "dur_ms": dur.Milliseconds(),
	}})
	return nil
}

// encodeOutput writes the frame sequence through the encoder collaborator
// into a fresh per-job output directory.
func (p *Pipeline) encodeOutput(ctx context.Context, fs *types.FrameSequence) (string, error) {
	dir, err := os.MkdirTemp(p.cfg.OutputDir, "videod-out-")
	if err != nil {
		return "", errOutput(err.Error())
	}
	path, err := p.encoder.Encode(ctx, fs, dir)
	if err != nil {
		return "", errOutput(err.Error())
	}
	return path, nil
}

// failJob resolves a job to its single Failed result, preserving the
// originating error kind. Never retries; retry policy belongs to the caller.
func (p *Pipeline) failJob(j *job, req *types.GenerationRequest, err error) (types.JobResult, error) {
	_ = j.advance(JobStateFailed)
	dur := time.Since(j.started)
	p.mu.Lock()
	p.jobsFailed++
	p.lastErr = err.Error()
	p.mu.Unlock()
	kind := ErrorKind(err)
	jobsTotal.WithLabelValues("failed").Inc()
	jobFailures.WithLabelValues(kind).Inc()
	p.log.Error().Str("job_id", j.id).Str("kind", kind).Err(err).Msg("job failed")
	p.publisher.Publish(Event{Name: "job_failed", JobID: j.id, Fields: map[string]any{
		"kind": kind, "error": err.Error(),
	}})
	return types.JobResult{
		JobID:            j.id,
		Status:           types.JobFailed,
		ErrorKind:        kind,
		Error:            err.Error(),
		Warnings:         j.warnings,
		Seed:             req.Seed,
		DurationMS:       dur.Milliseconds(),
		StageDurationsMS: j.durations,
	}, err
}

func (p *Pipeline) setActiveStage(st JobState) {
	p.mu.Lock()
	p.activeStage = st
	p.mu.Unlock()
}

func (p *Pipeline) attachArena(a *device.Arena) {
	p.mu.Lock()
	p.activeArena = a
	p.mu.Unlock()
}

func (p *Pipeline) detachArena() {
	p.mu.Lock()
	p.activeArena = nil
	p.mu.Unlock()
}
