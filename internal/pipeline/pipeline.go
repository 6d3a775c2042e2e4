// Package pipeline implements the inference orchestrator and model-lifecycle
// manager: it keeps the three heavyweight assets resident across jobs,
// sequences the per-job stages (conditioning, sampling, upscaling, decoding),
// and enforces admission and device-memory discipline between jobs.
package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"videod/internal/backend"
	"videod/internal/device"
	"videod/internal/encoder"
	"videod/internal/registry"
)

// State represents the lifecycle state of the pipeline.
type State string

const (
	StateCold     State = "cold"
	StateWarming  State = "warming"
	StateReady    State = "ready"
	StateDraining State = "draining"
	StateError    State = "error"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth   = 16
	defaultMaxWait         = 30 * time.Second
	defaultConcurrentJobs  = 1
	defaultStageBaseBudget = 30 * time.Second
	defaultStageStepBudget = 10 * time.Second
	defaultMediaNoiseScale = 0.15
	defaultDrainTimeout    = 10 * time.Second
)

// Config encapsulates all tunables for Pipeline construction.
type Config struct {
	Assets         registry.Bundle
	DeviceBudgetMB int
	DeviceMarginMB int
	// MaxConcurrentJobs is the safe concurrent job count for the device.
	// It is explicit configuration, never probed at runtime; almost always 1.
	MaxConcurrentJobs int
	MaxQueueDepth     int
	MaxWait           time.Duration
	// Stage wall-clock ceilings: base allowance plus per-denoising-step
	// allowance. A stage exceeding base + steps*step is cancelled.
	StageBaseBudget time.Duration
	StageStepBudget time.Duration
	// MediaNoiseScale is the extra noise folded into media-conditioned latents.
	MediaNoiseScale float64
	OutputDir       string
	DrainTimeout    time.Duration

	Backend   backend.Backend
	Encoder   encoder.Encoder
	Publisher EventPublisher
	Logger    *zerolog.Logger
}

// Pipeline owns model residency and runs jobs to completion one at a time
// (or up to the configured safe-concurrency count).
type Pipeline struct {
	mu    sync.RWMutex
	state State

	cfg    Config
	assets registry.Bundle

	// Resident model assets; immutable between WarmUp and Shutdown,
	// shared read-only by all jobs.
	textEnc  *device.Weights
	backbone *device.Weights
	upscaler *device.Weights

	residentMB  int
	activeArena *device.Arena
	activeStage JobState
	lastErr     string

	jobsCompleted uint64
	jobsFailed    uint64
	startTime     time.Time

	// Admission primitives: bounded queue slots, then in-flight slots.
	genCh   chan struct{}
	queueCh chan struct{}
	maxWait time.Duration

	warmMu sync.Mutex

	backend   backend.Backend
	encoder   encoder.Encoder
	publisher EventPublisher
	log       zerolog.Logger
}

// New constructs a Pipeline from Config, applying package defaults for
// unset fields.
func New(cfg Config) *Pipeline {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = defaultConcurrentJobs
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.StageBaseBudget <= 0 {
		cfg.StageBaseBudget = defaultStageBaseBudget
	}
	if cfg.StageStepBudget <= 0 {
		cfg.StageStepBudget = defaultStageStepBudget
	}
	if cfg.MediaNoiseScale <= 0 {
		cfg.MediaNoiseScale = defaultMediaNoiseScale
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.Backend == nil {
		cfg.Backend = backend.NewReference()
	}
	if cfg.Encoder == nil {
		cfg.Encoder = encoder.NewRawSink()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	p := &Pipeline{
		state:     StateCold,
		cfg:       cfg,
		assets:    cfg.Assets,
		genCh:     make(chan struct{}, cfg.MaxConcurrentJobs),
		queueCh:   make(chan struct{}, cfg.MaxQueueDepth),
		maxWait:   cfg.MaxWait,
		backend:   cfg.Backend,
		encoder:   cfg.Encoder,
		publisher: cfg.Publisher,
		startTime: time.Now(),
	}
	if cfg.Logger != nil {
		p.log = *cfg.Logger
	} else {
		p.log = zerolog.Nop()
	}
	return p
}

// WarmUp loads all three model assets onto the device exactly once.
// Idempotent: a second call is a no-op; concurrent callers coalesce.
// Any missing or corrupt asset is fatal (asset_load) and leaves the
// pipeline unable to serve.
func (p *Pipeline) WarmUp() error {
	p.warmMu.Lock()
	defer p.warmMu.Unlock()

	p.mu.Lock()
	if p.state == StateReady {
		p.mu.Unlock()
		return nil
	}
	p.state = StateWarming
	p.mu.Unlock()

	start := time.Now()
	p.publisher.Publish(Event{Name: "warmup_start"})

	var (
		loaded     [3]*device.Weights
		residentMB int
	)
	for i, a := range p.assets.All() {
		w, err := device.LoadWeights(a.Role, a.Path)
		if err != nil {
			p.setError(err.Error())
			p.publisher.Publish(Event{Name: "warmup_error", Fields: map[string]any{"role": string(a.Role), "error": err.Error()}})
			return ErrAssetLoad(err.Error())
		}
		loaded[i] = w
		residentMB += w.SizeMB
	}
	if p.cfg.DeviceBudgetMB > 0 && residentMB+p.cfg.DeviceMarginMB > p.cfg.DeviceBudgetMB {
		msg := "resident models exceed device budget"
		p.setError(msg)
		p.publisher.Publish(Event{Name: "warmup_error", Fields: map[string]any{"error": msg}})
		return ErrAssetLoad(msg)
	}

	p.mu.Lock()
	p.textEnc, p.backbone, p.upscaler = loaded[0], loaded[1], loaded[2]
	p.residentMB = residentMB
	p.state = StateReady
	p.lastErr = ""
	p.mu.Unlock()

	p.log.Info().Int("resident_mb", residentMB).
		Dur("dur", time.Since(start)).Msg("warmup complete")
	p.publisher.Publish(Event{Name: "warmup_ready", Fields: map[string]any{"resident_mb": residentMB}})
	return nil
}

// Shutdown drains in-flight work and releases the resident models.
// Idempotent; after Shutdown the pipeline rejects new jobs until warmed again.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	if p.state == StateCold {
		p.mu.Unlock()
		return
	}
	p.state = StateDraining
	p.mu.Unlock()
	p.publisher.Publish(Event{Name: "shutdown_start"})

	deadline := time.Now().Add(p.cfg.DrainTimeout)
	for {
		if len(p.genCh) == 0 && len(p.queueCh) == 0 {
			break
		}
		if time.Now().After(deadline) {
			p.publisher.Publish(Event{Name: "shutdown_drain_timeout", Fields: map[string]any{
				"inflight": len(p.genCh), "queue": len(p.queueCh),
			}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	p.textEnc, p.backbone, p.upscaler = nil, nil, nil
	p.residentMB = 0
	p.state = StateCold
	p.mu.Unlock()
	p.log.Info().Msg("pipeline shut down")
	p.publisher.Publish(Event{Name: "shutdown_done"})
}

// Ready reports whether the pipeline can accept jobs.
func (p *Pipeline) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateReady
}

func (p *Pipeline) setError(msg string) {
	p.mu.Lock()
	p.state = StateError
	p.lastErr = msg
	p.mu.Unlock()
}

// weights returns the resident asset set, or false when not warmed.
func (p *Pipeline) weights() (textEnc, backbone, upscaler *device.Weights, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state != StateReady || p.textEnc == nil {
		return nil, nil, nil, false
	}
	return p.textEnc, p.backbone, p.upscaler, true
}
