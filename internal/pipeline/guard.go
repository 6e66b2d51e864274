package pipeline

import (
	"context"
	"errors"
	"fmt"

	"axial/internal/runlock"
)

// ErrStageBusy is returned when a run of the same stage is already in progress
var ErrStageBusy = errors.New("pipeline stage already running")

// acquire claims the stage for this process and, when configured, across
// processes. The returned release must be called exactly once.
func (p *Pipeline) acquire(ctx context.Context, stage Stage) (func(), error) {
	p.guardMu.Lock()
	if p.running[stage] {
		p.guardMu.Unlock()
		p.recorder.RecordBusy(stage)
		return nil, fmt.Errorf("%s: %w", stage, ErrStageBusy)
	}
	p.running[stage] = true
	p.guardMu.Unlock()

	local := func() {
		p.guardMu.Lock()
		delete(p.running, stage)
		p.guardMu.Unlock()
	}

	if p.locker == nil {
		return local, nil
	}

	unlock, err := p.locker.Acquire(ctx, "axial-"+string(stage))
	if err != nil {
		local()
		if errors.Is(err, runlock.ErrLockNotAcquired) {
			p.recorder.RecordBusy(stage)
			return nil, fmt.Errorf("%s: %w", stage, ErrStageBusy)
		}
		return nil, fmt.Errorf("failed to acquire %s lock: %w", stage, err)
	}

	return func() {
		unlock()
		local()
	}, nil
}

// Running reports the stages currently executing in this process
func (p *Pipeline) Running() []Stage {
	p.guardMu.Lock()
	defer p.guardMu.Unlock()

	var out []Stage
	for _, stage := range Stages() {
		if p.running[stage] {
			out = append(out, stage)
		}
	}
	return out
}
