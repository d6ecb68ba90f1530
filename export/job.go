package export

import (
	"fmt"
	"sync"
)

// State 是导出任务的状态。
type State string

const (
	StateIdle      State = "idle"
	StateRendering State = "rendering"
	StateCaptured  State = "captured"
	StateArchiving State = "archiving"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Progress 是任务状态的一次快照。Index 只在 Rendering/Captured 状态下有意义。
type Progress struct {
	JobID     string  `json:"jobId"`
	State     State   `json:"state"`
	Index     int     `json:"index"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

func (p Progress) String() string {
	switch p.State {
	case StateRendering, StateCaptured:
		return fmt.Sprintf("%s(%d) %.0f%%", p.State, p.Index, p.Percent)
	default:
		return fmt.Sprintf("%s %.0f%%", p.State, p.Percent)
	}
}

// Failure 记录单个条目的失败原因。
type Failure struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Report 是批量导出的汇总。
type Report struct {
	JobID     string    `json:"jobId"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Job 是一次批量导出。状态按
// Idle → Rendering(i) → Captured(i) → {Rendering(i+1) | Archiving} → Done | Failed 推进。
type Job struct {
	ID string

	mu        sync.Mutex
	state     State
	index     int
	completed int
	report    Report
	archive   []byte
	err       error
	notify    func(Progress)
}

func newJob(id string, total int, notify func(Progress)) *Job {
	return &Job{
		ID:     id,
		state:  StateIdle,
		report: Report{JobID: id, Total: total},
		notify: notify,
	}
}

// Progress 返回任务当前的状态快照。
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progressLocked()
}

// Report 返回汇总的副本。
func (j *Job) Report() Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.report
	out.Failures = append([]Failure(nil), j.report.Failures...)
	return out
}

// Archive 返回 Done 状态下生成的 zip 数据。
func (j *Job) Archive() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.archive
}

// Err 返回任务失败的原因。
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) progressLocked() Progress {
	p := Progress{
		JobID:     j.ID,
		State:     j.state,
		Index:     j.index,
		Completed: j.completed,
		Total:     j.report.Total,
	}
	switch {
	case j.report.Total > 0:
		p.Percent = float64(j.completed) / float64(j.report.Total) * 100
	case j.state == StateDone:
		p.Percent = 100
	}
	return p
}

func (j *Job) transition(state State, index int) {
	j.mu.Lock()
	j.state = state
	j.index = index
	p := j.progressLocked()
	j.mu.Unlock()
	if j.notify != nil {
		j.notify(p)
	}
}

// record 记录一个条目的结果并推进到 Captured(i)。
func (j *Job) record(index int, name string, err error) {
	j.mu.Lock()
	j.completed++
	if err != nil {
		j.report.Failed++
		j.report.Failures = append(j.report.Failures, Failure{Index: index, Name: name, Error: err.Error()})
	} else {
		j.report.Succeeded++
	}
	j.mu.Unlock()
	j.transition(StateCaptured, index)
}

func (j *Job) finish(archive []byte) {
	j.mu.Lock()
	j.archive = archive
	j.mu.Unlock()
	j.transition(StateDone, 0)
}

func (j *Job) fail(err error) error {
	j.mu.Lock()
	j.err = err
	index := j.index
	j.mu.Unlock()
	j.transition(StateFailed, index)
	return err
}
