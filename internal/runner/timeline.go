package runner

import (
	"sort"

	"github.com/tracksim/tracksim/internal/config"
)

// Timeline releases scenario steps as simulated time passes them.
type Timeline struct {
	steps []config.ScenarioStep
	next  int
}

// NewTimeline sorts a copy of steps by time. Steps at the same time keep
// their order.
func NewTimeline(steps []config.ScenarioStep) *Timeline {
	sorted := append([]config.ScenarioStep(nil), steps...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })
	return &Timeline{steps: sorted}
}

// Due returns the steps with At <= simTime not returned before.
func (t *Timeline) Due(simTime float64) []config.ScenarioStep {
	start := t.next
	for t.next < len(t.steps) && t.steps[t.next].At <= simTime+1e-9 {
		t.next++
	}
	return t.steps[start:t.next]
}

// Done reports whether every step was released.
func (t *Timeline) Done() bool { return t.next >= len(t.steps) }
