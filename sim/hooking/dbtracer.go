package hooking

import (
	"sync"

	"github.com/tebeka/atexit"
)

// TracerBackend is a backend that can store tasks.
type TracerBackend interface {
	// Write writes a task to the storage.
	Write(t Task)

	// Flush flushes the tasks to the storage, in case if the backend buffers
	// the tasks.
	Flush()
}

// DBTracer is a tracer that can store tasks into a database.
type DBTracer struct {
	backend              TracerBackend
	startCycle, endCycle uint64
	lock                 sync.Mutex
	tracingTasks         map[string]Task
	lastCycle            uint64
}

// NewDBTracer creates a new DBTracer. The tracer flushes the backend at
// exit.
func NewDBTracer(backend TracerBackend) *DBTracer {
	t := &DBTracer{
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() { t.Terminate() })

	return t
}

// SetCycleRange limits the tracer to tasks that start before endCycle and
// end after startCycle. Zero means unlimited.
func (t *DBTracer) SetCycleRange(startCycle, endCycle uint64) {
	t.startCycle = startCycle
	t.endCycle = endCycle
}

// Func records the start end of a task.
func (t *DBTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskStep:
		t.StepTask(ctx.Item.(TaskStep))
	case HookPosTaskTag:
		t.TagTask(ctx.Item.(TaskTag))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(taskStart TaskStart) {
	t.startingTaskMustBeValid(taskStart)

	if t.endCycle > 0 && taskStart.Cycle > t.endCycle {
		return
	}

	currTask := Task{
		ID:         taskStart.ID,
		ParentID:   taskStart.ParentID,
		Kind:       taskStart.Kind,
		What:       taskStart.What,
		Where:      taskStart.Where,
		StartCycle: taskStart.Cycle,
	}

	t.lock.Lock()
	t.tracingTasks[currTask.ID] = currTask
	t.lastCycle = max(t.lastCycle, taskStart.Cycle)
	t.lock.Unlock()
}

func (t *DBTracer) startingTaskMustBeValid(task TaskStart) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Where == "" {
		panic("task where must be set")
	}
}

// StepTask marks a step of a task.
func (t *DBTracer) StepTask(ts TaskStep) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[ts.TaskID]
	if !ok {
		return
	}

	originalTask.Steps = append(originalTask.Steps, Step{
		ID:     ts.StepID,
		Cycle:  ts.Cycle,
		Kind:   ts.Kind,
		What:   ts.What,
		Detail: ts.Detail,
	})

	t.tracingTasks[ts.TaskID] = originalTask
}

// TagTask marks a tag of a task.
func (t *DBTracer) TagTask(tt TaskTag) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[tt.TaskID]
	if !ok {
		return
	}

	originalTask.Tags = append(originalTask.Tags, Tag{
		What:   tt.What,
		Detail: tt.Detail,
	})

	t.tracingTasks[tt.TaskID] = originalTask
}

// EndTask marks the end of a task.
func (t *DBTracer) EndTask(taskEnd TaskEnd) {
	t.lock.Lock()

	originalTask, ok := t.tracingTasks[taskEnd.ID]
	if !ok {
		t.lock.Unlock()
		return
	}

	delete(t.tracingTasks, taskEnd.ID)
	t.lastCycle = max(t.lastCycle, taskEnd.Cycle)
	t.lock.Unlock()

	if t.startCycle > 0 && taskEnd.Cycle < t.startCycle {
		return
	}

	originalTask.EndCycle = taskEnd.Cycle

	t.backend.Write(originalTask)
}

// Terminate writes the unfinished tasks, ending them at the last cycle the
// tracer has seen, and flushes the backend.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, task := range t.tracingTasks {
		task.EndCycle = t.lastCycle
		t.backend.Write(task)
	}

	t.tracingTasks = make(map[string]Task)

	t.backend.Flush()
}
