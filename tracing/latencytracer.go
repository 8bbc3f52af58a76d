package tracing

import (
	"sync"

	"github.com/sarchlab/hyperbus/sim/timing"
)

// LatencyStats summarizes the latency of a group of finished tasks.
type LatencyStats struct {
	Count    uint64
	Total    timing.VTimeInSec
	Min, Max timing.VTimeInSec
}

// Average returns the mean latency, or 0 when nothing was counted.
func (s LatencyStats) Average() timing.VTimeInSec {
	if s.Count == 0 {
		return 0
	}

	return s.Total / timing.VTimeInSec(s.Count)
}

func (s *LatencyStats) add(latency timing.VTimeInSec) {
	if s.Count == 0 || latency < s.Min {
		s.Min = latency
	}

	if latency > s.Max {
		s.Max = latency
	}

	s.Count++
	s.Total += latency
}

type openTask struct {
	start timing.VTimeInSec
	steps map[string]bool
}

// LatencyTracer measures the tasks that pass its filter from start to end.
// Every finished task counts in the overall statistics and once in the
// statistics of each distinct step it reached, so a step that names the path
// a read took gives the latency of that path.
type LatencyTracer struct {
	clock  timing.TimeTeller
	filter TaskFilter

	mu        sync.Mutex
	open      map[string]*openTask
	overall   LatencyStats
	byStep    map[string]*LatencyStats
	stepHits  map[string]uint64
	stepOrder []string
}

// NewLatencyTracer creates a LatencyTracer.
func NewLatencyTracer(
	clock timing.TimeTeller,
	filter TaskFilter,
) *LatencyTracer {
	return &LatencyTracer{
		clock:    clock,
		filter:   filter,
		open:     make(map[string]*openTask),
		byStep:   make(map[string]*LatencyStats),
		stepHits: make(map[string]uint64),
	}
}

// StartTask opens a task if it passes the filter.
func (t *LatencyTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.open[task.ID] = &openTask{start: now, steps: make(map[string]bool)}
}

// StepTask counts the step of an open task.
func (t *LatencyTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	open, ok := t.open[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		if _, seen := t.stepHits[step.What]; !seen {
			t.stepOrder = append(t.stepOrder, step.What)
		}

		t.stepHits[step.What]++
		open.steps[step.What] = true
	}
}

// EndTask closes a task and adds its latency.
func (t *LatencyTracer) EndTask(task Task) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	open, ok := t.open[task.ID]
	if !ok {
		return
	}

	delete(t.open, task.ID)

	latency := now - open.start
	t.overall.add(latency)

	for step := range open.steps {
		s, ok := t.byStep[step]
		if !ok {
			s = &LatencyStats{}
			t.byStep[step] = s
		}

		s.add(latency)
	}
}

// Overall returns the statistics of all the finished tasks. Total is the
// busy time, counting overlapping tasks twice.
func (t *LatencyTracer) Overall() LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.overall
}

// Step returns the statistics of the finished tasks that reached a step.
func (t *LatencyTracer) Step(what string) LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.byStep[what]; ok {
		return *s
	}

	return LatencyStats{}
}

// StepHits returns how many times a step was reached, by open and finished
// tasks, repeats included.
func (t *LatencyTracer) StepHits(what string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stepHits[what]
}

// Steps returns the step names in the order they were first reached.
func (t *LatencyTracer) Steps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.stepOrder...)
}

// InFlight returns the number of tasks started but not finished.
func (t *LatencyTracer) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.open)
}
