package pipeline

import (
	"fmt"
	"time"
)

// JobState is one node of the per-job state machine:
// idle -> conditioning -> sampling -> upscaling -> decoding -> completed|failed.
type JobState string

const (
	JobStateIdle         JobState = "idle"
	JobStateConditioning JobState = "conditioning"
	JobStateSampling     JobState = "sampling"
	JobStateUpscaling    JobState = "upscaling"
	JobStateDecoding     JobState = "decoding"
	JobStateCompleted    JobState = "completed"
	JobStateFailed       JobState = "failed"
)

// next encodes the legal forward transition for each non-terminal state.
// Any state may additionally transition to failed.
var next = map[JobState]JobState{
	JobStateIdle:         JobStateConditioning,
	JobStateConditioning: JobStateSampling,
	JobStateSampling:     JobStateUpscaling,
	JobStateUpscaling:    JobStateDecoding,
	JobStateDecoding:     JobStateCompleted,
}

// job tracks one generation through the state machine.
type job struct {
	id        string
	state     JobState
	warnings  []string
	started   time.Time
	durations map[string]int64
}

func newJob(id string) *job {
	return &job{
		id:        id,
		state:     JobStateIdle,
		started:   time.Now(),
		durations: make(map[string]int64),
	}
}

// advance moves the job to the given state, enforcing strict sequencing.
// A skipped or reordered stage is an orchestrator bug and is reported as
// such rather than executed.
func (j *job) advance(to JobState) error {
	if j.state == JobStateCompleted || j.state == JobStateFailed {
		return fmt.Errorf("job %s: transition from terminal state %s", j.id, j.state)
	}
	if to == JobStateFailed {
		j.state = to
		return nil
	}
	if want := next[j.state]; want != to {
		return fmt.Errorf("job %s: illegal transition %s -> %s (want %s)", j.id, j.state, to, want)
	}
	j.state = to
	return nil
}

func (j *job) warn(msg string) {
	j.warnings = append(j.warnings, msg)
}

func (j *job) terminal() bool {
	return j.state == JobStateCompleted || j.state == JobStateFailed
}
