package hooking

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// taskPrinter can print tasks with a format.
type taskPrinter interface {
	Print(task Task)
}

type defaultTaskPrinter struct {
	w io.Writer
}

func (p *defaultTaskPrinter) Print(task Task) {
	fmt.Fprintf(p.w, "%s-%s@%s since cycle %d\n",
		task.Kind, task.What, task.Where, task.StartCycle)
}

// BackTraceTracer keeps the tasks that have started but not finished. When a
// protocol violation aborts the simulation, the chain of nested accesses
// that led to it can be dumped.
type BackTraceTracer struct {
	printer      taskPrinter
	tracingTasks map[string]Task
	lock         sync.Mutex
}

// NewBackTraceTracer creates a new BackTraceTracer. A nil printer prints to
// stderr.
func NewBackTraceTracer(printer taskPrinter) *BackTraceTracer {
	t := &BackTraceTracer{
		printer:      printer,
		tracingTasks: make(map[string]Task),
	}

	if t.printer == nil {
		t.printer = &defaultTaskPrinter{w: os.Stderr}
	}

	return t
}

// Func dispatches the hook positions.
func (t *BackTraceTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// StartTask records an in-flight task.
func (t *BackTraceTracer) StartTask(taskStart TaskStart) {
	t.lock.Lock()
	defer t.lock.Unlock()

	currTask := Task{
		ID:         taskStart.ID,
		Kind:       taskStart.Kind,
		What:       taskStart.What,
		Where:      taskStart.Where,
		ParentID:   taskStart.ParentID,
		StartCycle: taskStart.Cycle,
	}

	t.tracingTasks[taskStart.ID] = currTask
}

// EndTask forgets a finished task.
func (t *BackTraceTracer) EndTask(taskEnd TaskEnd) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.tracingTasks, taskEnd.ID)
}

// NumInflight returns the number of tasks that have not finished.
func (t *BackTraceTracer) NumInflight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.tracingTasks)
}

// DumpBackTrace prints a task and all its in-flight ancestors.
func (t *BackTraceTracer) DumpBackTrace(taskID string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	currTask, ok := t.tracingTasks[taskID]

	for ok {
		t.printer.Print(currTask)

		taskID = currTask.ParentID
		currTask, ok = t.tracingTasks[taskID]
	}
}

// DumpAll prints every in-flight task, oldest first.
func (t *BackTraceTracer) DumpAll() {
	t.lock.Lock()
	defer t.lock.Unlock()

	tasks := make([]Task, 0, len(t.tracingTasks))
	for _, task := range t.tracingTasks {
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].StartCycle != tasks[j].StartCycle {
			return tasks[i].StartCycle < tasks[j].StartCycle
		}

		return tasks[i].ID < tasks[j].ID
	})

	for _, task := range tasks {
		t.printer.Print(task)
	}
}
