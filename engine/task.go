package engine

import "github.com/ffbk-dev/autolog-controller/record"

// TaskKind distinguishes a footage task from a frame task.
type TaskKind int

const (
	KindFootage TaskKind = iota
	KindFrame
)

// Task is one discovered record's work item for the current cycle. It may
// chain multiple step executions before returning to the outer loop.
type Task struct {
	Kind          TaskKind
	Footage       record.Footage
	Frame         record.Frame
	CorrelationID string
}

func (t Task) kindLabel() string {
	if t.Kind == KindFrame {
		return "frame"
	}
	return "footage"
}

func (t Task) statusLabel() string {
	if t.Kind == KindFrame {
		return string(t.Frame.Status)
	}
	return string(t.Footage.Status)
}
