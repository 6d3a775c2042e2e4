package pipeline

import (
	"time"

	"videod/pkg/types"
)

// Status builds a detailed status response for /status.
func (p *Pipeline) Status() types.StatusResponse {
	p.mu.RLock()
	defer p.mu.RUnlock()
	resp := types.StatusResponse{
		State:          string(p.state),
		ResidentMB:     p.residentMB,
		BudgetMB:       p.cfg.DeviceBudgetMB,
		MarginMB:       p.cfg.DeviceMarginMB,
		UsedMB:         p.residentMB,
		QueueLen:       len(p.queueCh) - len(p.genCh),
		Inflight:       len(p.genCh),
		MaxQueueDepth:  cap(p.queueCh),
		ActiveStage:    string(p.activeStage),
		JobsCompleted:  p.jobsCompleted,
		JobsFailed:     p.jobsFailed,
		LastError:      p.lastErr,
		UptimeSeconds:  int64(time.Since(p.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	if resp.QueueLen < 0 {
		resp.QueueLen = 0
	}
	if p.activeArena != nil {
		resp.UsedMB += p.activeArena.UsedMB()
	}
	if p.state == StateReady {
		resp.Assets = p.assets.All()
	}
	return resp
}

// Assets returns the configured asset bundle (resolved at construction,
// resident only after warm-up).
func (p *Pipeline) Assets() []types.Asset {
	return p.assets.All()
}
