package tracing

import "github.com/sarchlab/hyperbus/sim/timing"

// A TaskStep is a milestone a task reached, such as the path a read took.
type TaskStep struct {
	Time timing.VTimeInSec `json:"time"`
	What string            `json:"what"`
}

// A Task is a unit of work followed across a component: the handling of a
// request from its arrival to its response.
type Task struct {
	ID        string            `json:"id"`
	ParentID  string            `json:"parent_id"`
	Kind      string            `json:"kind"`
	What      string            `json:"what"`
	Location  string            `json:"location"`
	StartTime timing.VTimeInSec `json:"start_time"`
	EndTime   timing.VTimeInSec `json:"end_time"`
	Steps     []TaskStep        `json:"steps"`
	Detail    any               `json:"-"`
}

// TaskFilter selects the tasks a tracer keeps.
type TaskFilter func(t Task) bool

// A Tracer receives the start, the steps and the end of tasks. Step and end
// notifications only carry the task ID and, for steps, the new step.
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}
