package types

// ConditioningMedia references an already-materialized image (or short video)
// whose content seeds the initial latent for media-conditioned generation.
type ConditioningMedia struct {
	// Local path to the media file.
	// example: /tmp/job123/first_frame.png
	Path string `json:"path" example:"/tmp/job123/first_frame.png"`
	// Index of the output frame this media conditions.
	// example: 0
	StartFrame int `json:"start_frame" example:"0"`
	// Blend strength in [0,1]; 1 pins the latent to the media, 0 ignores it.
	// example: 0.9
	Strength float64 `json:"strength" example:"0.9"`
}

// GenerationRequest represents one video generation job payload.
type GenerationRequest struct {
	// Required prompt text.
	// example: a cat walking
	Prompt string `json:"prompt" example:"a cat walking"`
	// Optional negative prompt; the server default is used when empty.
	// example: worst quality, inconsistent motion, blurry, jittery, distorted
	NegativePrompt string `json:"negative_prompt,omitempty" example:"worst quality, inconsistent motion, blurry, jittery, distorted"`
	// Output width in pixels. Must be divisible by 64.
	// example: 1216
	Width int `json:"width,omitempty" example:"1216"`
	// Output height in pixels. Must be divisible by 64.
	// example: 704
	Height int `json:"height,omitempty" example:"704"`
	// Number of output frames. (frames-1) must be divisible by 8.
	// example: 121
	NumFrames int `json:"num_frames,omitempty" example:"121"`
	// Output frame rate.
	// example: 30
	FrameRate int `json:"frame_rate,omitempty" example:"30"`
	// Denoising steps for the latent sampler.
	// example: 8
	SamplerSteps int `json:"sampler_steps,omitempty" example:"8"`
	// Denoising steps for the spatial upscaler.
	// example: 4
	UpscaleSteps int `json:"upscale_steps,omitempty" example:"4"`
	// Classifier-free guidance scale.
	// example: 3.0
	GuidanceScale float64 `json:"guidance_scale,omitempty" example:"3.0"`
	// Random seed; 0 or omitted lets the server choose one.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
	// Optional conditioning media for image/video-to-video generation.
	Conditioning []ConditioningMedia `json:"conditioning,omitempty"`
}

// Output describes where and what a completed job produced.
type Output struct {
	// Location of the encoded output on disk.
	// example: /tmp/videod-out-123/video.rgbseq
	Path string `json:"path" example:"/tmp/videod-out-123/video.rgbseq"`
	// Output width in pixels.
	// example: 1216
	Width int `json:"width" example:"1216"`
	// Output height in pixels.
	// example: 704
	Height int `json:"height" example:"704"`
	// Number of frames rendered.
	// example: 121
	Frames int `json:"frames" example:"121"`
	// Frame rate of the output.
	// example: 30
	FrameRate int `json:"frame_rate" example:"30"`
}

// Job status values carried by JobResult.
const (
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobResult is the single structured outcome every job resolves to.
type JobResult struct {
	// Server-assigned job identifier.
	// example: 3f1e9c6a-6f4e-4b62-9f3b-2a52f1a1d9d0
	JobID string `json:"job_id" example:"3f1e9c6a-6f4e-4b62-9f3b-2a52f1a1d9d0"`
	// Terminal status: completed or failed.
	// example: completed
	Status string `json:"status" example:"completed"`
	// Output metadata, present only on completion.
	Output *Output `json:"output,omitempty"`
	// Error kind, present only on failure (asset_load, invalid_request,
	// encoding, sampling, decode, timeout, cancelled, too_busy).
	// example: sampling
	ErrorKind string `json:"error_kind,omitempty" example:"sampling"`
	// Human-readable error message, present only on failure.
	Error string `json:"error,omitempty"`
	// Non-fatal warnings (e.g., prompt truncation).
	Warnings []string `json:"warnings,omitempty"`
	// Seed actually used (resolved when the request omitted one).
	// example: 42
	Seed int64 `json:"seed" example:"42"`
	// Total wall-clock duration in milliseconds.
	// example: 1530
	DurationMS int64 `json:"duration_ms" example:"1530"`
	// Per-stage wall-clock durations in milliseconds, keyed by stage name.
	StageDurationsMS map[string]int64 `json:"stage_durations_ms,omitempty"`
}

// AssetsResponse wraps the resolved assets returned by GET /assets.
type AssetsResponse struct {
	// Resolved model assets.
	Assets []Asset `json:"assets"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall pipeline state (cold, warming, ready, draining, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Resolved model assets, populated after warm-up.
	Assets []Asset `json:"assets,omitempty"`
	// Estimated resident model memory in MB.
	// example: 6144
	ResidentMB int `json:"resident_mb" example:"6144"`
	// Device memory budget in MB (0 = unlimited).
	// example: 24576
	BudgetMB int `json:"budget_mb" example:"24576"`
	// Reserved device memory margin in MB.
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// Estimated device memory in use in MB (resident + active job arena).
	// example: 8192
	UsedMB int `json:"used_est_mb" example:"8192"`
	// Current queue length of admitted-but-waiting jobs.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of jobs currently executing stages.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued jobs before backpressure triggers.
	// example: 16
	MaxQueueDepth int `json:"max_queue_depth" example:"16"`
	// Stage of the currently executing job, empty when idle.
	// example: sampling
	ActiveStage string `json:"active_stage,omitempty" example:"sampling"`
	// Total jobs completed since start.
	// example: 12
	JobsCompleted uint64 `json:"jobs_completed" example:"12"`
	// Total jobs failed since start.
	// example: 1
	JobsFailed uint64 `json:"jobs_failed" example:"1"`
	// Last error observed by the pipeline (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
