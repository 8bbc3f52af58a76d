package tracing

import (
	"strings"
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/hyperbus/datarecording"
	"github.com/sarchlab/hyperbus/sim/timing"
)

// Tables written by a DBTracer.
const (
	TaskTable = "trace"
	StepTable = "trace_steps"
)

// taskRow is one traced task. Path lists its steps in order, separated by
// ">", such as "full_restart>stalled".
type taskRow struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
	Path      string
}

type stepRow struct {
	TaskID string
	What   string
	Time   float64
}

type tracedTask struct {
	Task
	steps []stepRow
}

// DBTracer records tasks into a DataRecorder. A task and its steps are
// written when the task ends, and only if it overlaps the time window.
type DBTracer struct {
	clock   timing.TimeTeller
	backend datarecording.DataRecorder

	mu       sync.Mutex
	from, to timing.VTimeInSec
	open     map[string]*tracedTask
}

// NewDBTracer creates the trace tables and a DBTracer that fills them. Tasks
// still open when the program exits through atexit are written as ending at
// that time.
func NewDBTracer(
	clock timing.TimeTeller,
	backend datarecording.DataRecorder,
) *DBTracer {
	backend.CreateTable(TaskTable, taskRow{})
	backend.CreateTable(StepTable, stepRow{})

	t := &DBTracer{
		clock:   clock,
		backend: backend,
		open:    make(map[string]*tracedTask),
	}

	atexit.Register(t.Terminate)

	return t
}

// Window keeps only the tasks that overlap [from, to]. A zero bound leaves
// that side open.
func (t *DBTracer) Window(from, to timing.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.from, t.to = from, to
}

// StartTask opens a task unless it starts after the window.
func (t *DBTracer) StartTask(task Task) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.to > 0 && now > t.to {
		return
	}

	task.StartTime = now
	t.open[task.ID] = &tracedTask{Task: task}
}

// StepTask keeps the steps of an open task until it ends.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	open, ok := t.open[task.ID]
	if !ok {
		return
	}

	now := t.clock.Now()
	for _, s := range task.Steps {
		open.steps = append(open.steps,
			stepRow{TaskID: task.ID, What: s.What, Time: float64(now)})
	}
}

// EndTask writes a task that ends inside the window and drops the others.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	open, ok := t.open[task.ID]
	if !ok {
		return
	}

	delete(t.open, task.ID)

	open.EndTime = t.clock.Now()
	if t.from > 0 && open.EndTime < t.from {
		return
	}

	t.write(open)
}

// Terminate writes the open tasks as ending now and flushes the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	for id, open := range t.open {
		open.EndTime = now
		t.write(open)
		delete(t.open, id)
	}

	t.backend.Flush()
}

func (t *DBTracer) write(task *tracedTask) {
	path := make([]string, 0, len(task.steps))
	for _, s := range task.steps {
		path = append(path, s.What)
		t.backend.InsertData(StepTable, s)
	}

	t.backend.InsertData(TaskTable, taskRow{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Location,
		StartTime: float64(task.StartTime),
		EndTime:   float64(task.EndTime),
		Path:      strings.Join(path, ">"),
	})
}
