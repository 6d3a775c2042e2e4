package pipeline

import "testing"

func TestJobAdvancesInOrder(t *testing.T) {
	j := newJob("j1")
	seq := []JobState{
		JobStateConditioning, JobStateSampling,
		JobStateUpscaling, JobStateDecoding, JobStateCompleted,
	}
	for _, st := range seq {
		if err := j.advance(st); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}
	if !j.terminal() {
		t.Fatalf("completed job must be terminal")
	}
}

func TestJobRejectsSkippedStage(t *testing.T) {
	j := newJob("j2")
	if err := j.advance(JobStateSampling); err == nil {
		t.Fatalf("idle -> sampling must be rejected")
	}
	if err := j.advance(JobStateConditioning); err != nil {
		t.Fatalf("legal transition after rejection: %v", err)
	}
	if err := j.advance(JobStateDecoding); err == nil {
		t.Fatalf("conditioning -> decoding must be rejected")
	}
}

func TestJobFailsFromAnyState(t *testing.T) {
	for _, pre := range []JobState{JobStateIdle, JobStateConditioning, JobStateSampling} {
		j := newJob("j3")
		for st := JobStateIdle; st != pre; st = next[st] {
			if err := j.advance(next[st]); err != nil {
				t.Fatalf("setup advance: %v", err)
			}
		}
		if err := j.advance(JobStateFailed); err != nil {
			t.Fatalf("fail from %s: %v", pre, err)
		}
	}
}

func TestJobTerminalStatesAreFinal(t *testing.T) {
	j := newJob("j4")
	if err := j.advance(JobStateFailed); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := j.advance(JobStateConditioning); err == nil {
		t.Fatalf("transition out of failed must be rejected")
	}
	if err := j.advance(JobStateFailed); err == nil {
		t.Fatalf("re-failing a terminal job must be rejected")
	}
}
