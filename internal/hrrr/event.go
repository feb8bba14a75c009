package hrrr

import "time"

// RunEvent announces that a model run became readable in the archive.
// Events are keyed by the run ID so replays of the same run land in the
// same partition.
type RunEvent struct {
	ID           string    `json:"id"`
	RunTime      time.Time `json:"run_time"`
	Kind         Kind      `json:"kind"`
	Source       string    `json:"source"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// NewRunEvent builds the event published when a run is first seen.
// Source records the bucket the run was discovered in.
func NewRunEvent(run Run, source string) RunEvent {
	return RunEvent{
		ID:           run.ID(),
		RunTime:      run.Time,
		Kind:         run.Kind,
		Source:       source,
		DiscoveredAt: clock.Now().UTC(),
	}
}
