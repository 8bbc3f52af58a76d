package monitoring

import (
	"sync/atomic"
	"time"
)

// Progress follows a job of a known number of items, such as the reads of a
// run. It is safe for concurrent use.
type Progress struct {
	id    string
	name  string
	start time.Time
	total uint64

	started  atomic.Uint64
	finished atomic.Uint64
}

// Begin counts n items that have started.
func (p *Progress) Begin(n uint64) {
	p.started.Add(n)
}

// Done counts n started items that have finished.
func (p *Progress) Done(n uint64) {
	p.finished.Add(n)
}

// ProgressReport is a snapshot of a Progress.
type ProgressReport struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	InProgress uint64    `json:"in_progress"`
	Finished   uint64    `json:"finished"`
	Percent    float64   `json:"percent"`
}

// Report takes a snapshot of the progress.
func (p *Progress) Report() ProgressReport {
	// Finished is loaded first, so it never exceeds the started count.
	finished := p.finished.Load()
	started := p.started.Load()

	r := ProgressReport{
		ID:         p.id,
		Name:       p.name,
		StartTime:  p.start,
		Total:      p.total,
		InProgress: started - finished,
		Finished:   finished,
	}

	if p.total > 0 {
		r.Percent = 100 * float64(finished) / float64(p.total)
	}

	return r
}
