package hooking

// A list of hook poses for the hooks to apply to
var (
	HookPosTaskStart = &HookPos{Name: "HookPosTaskStart"}
	HookPosTaskTag   = &HookPos{Name: "HookPosTaskTag"}
	HookPosTaskStep  = &HookPos{Name: "HookPosTaskStep"}
	HookPosTaskEnd   = &HookPos{Name: "HookPosTaskEnd"}
)

// TaskStart is data that is passed to the hook when a task starts. Tasks
// are accesses and invalidations served by a level. Cycle is the arrival
// cycle of the request.
type TaskStart struct {
	ID       string
	ParentID string
	Kind     string
	What     string
	Where    string
	Cycle    uint64
}

// TaskTag is data attached to a task to provide more information about the
// task, for example whether the access hit.
type TaskTag struct {
	TaskID string
	What   string
	Detail string
}

// TaskStep is data that is passed to the hook when a task takes a step.
type TaskStep struct {
	TaskID string
	StepID string
	Kind   string
	What   string
	Detail string
	Cycle  uint64
}

// TaskEnd is data that is passed to the hook when a task ends. Cycle is the
// completion cycle returned to the requester.
type TaskEnd struct {
	ID    string
	Cycle uint64
}

// Step is a recorded step of a Task.
type Step struct {
	ID     string `json:"id"`
	Cycle  uint64 `json:"cycle"`
	Kind   string `json:"kind"`
	What   string `json:"what"`
	Detail string `json:"detail"`
}

// Tag is a recorded tag of a Task.
type Tag struct {
	What   string `json:"what"`
	Detail string `json:"detail"`
}

// Task is a completed task as stored by a tracer backend.
type Task struct {
	ID         string `json:"id"`
	ParentID   string `json:"parent_id"`
	Kind       string `json:"kind"`
	What       string `json:"what"`
	Where      string `json:"where"`
	StartCycle uint64 `json:"start_cycle"`
	EndCycle   uint64 `json:"end_cycle"`
	Steps      []Step `json:"steps"`
	Tags       []Tag  `json:"tags"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t TaskStart) bool

// AllTasks is a filter that accepts every task.
func AllTasks(TaskStart) bool {
	return true
}

// KindIs returns a filter that accepts the tasks of one kind.
func KindIs(kind string) TaskFilter {
	return func(t TaskStart) bool {
		return t.Kind == kind
	}
}
