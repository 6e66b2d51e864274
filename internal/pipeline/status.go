package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"axial/internal/persistence"
)

// ScheduleEntry describes one scheduled job
type ScheduleEntry struct {
	Name    string     `json:"name"`
	Spec    string     `json:"spec"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

// DigestInfo identifies the most recent digest
type DigestInfo struct {
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// Status is the operational snapshot of the pipeline
type Status struct {
	persistence.StatusCounts
	AIAvailable bool            `json:"aiAvailable"`
	LastDigest  *DigestInfo     `json:"lastDigest,omitempty"`
	Schedules   []ScheduleEntry `json:"schedules,omitempty"`
	Running     []Stage         `json:"running"`
}

// Status reports store counters, the latest digest and schedule information
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	counts, err := p.status.Counts(ctx, p.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count pipeline status: %w", err)
	}

	st := &Status{
		StatusCounts: counts,
		AIAvailable:  p.AIAvailable(),
		Running:      p.Running(),
	}
	if st.Running == nil {
		st.Running = []Stage{}
	}

	latest, err := p.digests.Latest(ctx)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load latest digest: %w", err)
	default:
		st.LastDigest = &DigestInfo{Date: latest.DigestDate, CreatedAt: latest.CreatedAt}
	}

	if p.schedules != nil {
		st.Schedules = p.schedules.Schedules()
	}
	return st, nil
}
