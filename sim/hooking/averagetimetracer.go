package hooking

import (
	"sync"
)

// TotalAvgTimeTracer can collect the total and average latency, in cycles,
// of a certain type of task. Overlapping tasks simply add up.
type TotalAvgTimeTracer struct {
	filter        TaskFilter
	lock          sync.Mutex
	inflightTasks map[string]Task
	totalCycles   uint64
	taskCount     uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer
func NewAverageTimeTracer(filter TaskFilter) *TotalAvgTimeTracer {
	if filter == nil {
		filter = AllTasks
	}

	t := &TotalAvgTimeTracer{
		filter:        filter,
		inflightTasks: make(map[string]Task),
	}

	return t
}

// Func records the start end of a task.
func (t *TotalAvgTimeTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// AverageTime returns the average number of cycles spent on a task. It
// returns 0 before any task completes.
func (t *TotalAvgTimeTracer) AverageTime() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.taskCount == 0 {
		return 0
	}

	return float64(t.totalCycles) / float64(t.taskCount)
}

// TotalTime returns the total number of cycles spent on the tasks.
func (t *TotalAvgTimeTracer) TotalTime() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalCycles
}

// TotalCount returns the total number of tasks.
func (t *TotalAvgTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// StartTask records the task start cycle.
func (t *TotalAvgTimeTracer) StartTask(taskStart TaskStart) {
	if !t.filter(taskStart) {
		return
	}

	currTask := Task{
		ID:         taskStart.ID,
		StartCycle: taskStart.Cycle,
	}

	t.lock.Lock()
	t.inflightTasks[currTask.ID] = currTask
	t.lock.Unlock()
}

// EndTask records the end of the task.
func (t *TotalAvgTimeTracer) EndTask(taskEnd TaskEnd) {
	t.lock.Lock()
	defer t.lock.Unlock()

	currTask, ok := t.inflightTasks[taskEnd.ID]
	if !ok {
		return
	}

	t.totalCycles += taskEnd.Cycle - currTask.StartCycle
	t.taskCount++

	delete(t.inflightTasks, currTask.ID)
}
