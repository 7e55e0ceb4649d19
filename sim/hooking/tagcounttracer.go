package hooking

import (
	"sync"
)

// TagCountTracer counts how many times each tag is attached to the tasks
// that pass the filter. Levels tag their accesses with hit, miss, eviction
// and writeback, so this is the hit/miss counter of a level.
type TagCountTracer struct {
	filter TaskFilter
	lock   sync.Mutex

	inflightTasks map[string]bool
	tagNames      []string
	tagCount      map[string]uint64
}

// NewTagCountTracer creates a new TagCountTracer. A nil filter accepts all
// the tasks.
func NewTagCountTracer(filter TaskFilter) *TagCountTracer {
	if filter == nil {
		filter = AllTasks
	}

	t := &TagCountTracer{
		filter:        filter,
		inflightTasks: make(map[string]bool),
		tagCount:      make(map[string]uint64),
	}

	return t
}

// Func dispatches the hook positions.
func (t *TagCountTracer) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.StartTask(ctx.Item.(TaskStart))
	case HookPosTaskTag:
		t.TagTask(ctx.Item.(TaskTag))
	case HookPosTaskEnd:
		t.EndTask(ctx.Item.(TaskEnd))
	}
}

// GetTagNames returns all the tag names collected, in the order they are
// first seen.
func (t *TagCountTracer) GetTagNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.tagNames...)
}

// GetTagCount returns the number of times a tag is recorded.
func (t *TagCountTracer) GetTagCount(tagName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.tagCount[tagName]
}

// Counts returns a copy of all the counters.
func (t *TagCountTracer) Counts() map[string]uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	res := make(map[string]uint64, len(t.tagCount))
	for k, v := range t.tagCount {
		res[k] = v
	}

	return res
}

// StartTask starts tracking a task if it passes the filter.
func (t *TagCountTracer) StartTask(taskStart TaskStart) {
	if !t.filter(taskStart) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[taskStart.ID] = true
	t.lock.Unlock()
}

// TagTask tags a task with a certain tag.
func (t *TagCountTracer) TagTask(taskTag TaskTag) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !t.inflightTasks[taskTag.TaskID] {
		return
	}

	t.countTag(taskTag)
}

// EndTask stops tracking a task.
func (t *TagCountTracer) EndTask(taskEnd TaskEnd) {
	t.lock.Lock()
	delete(t.inflightTasks, taskEnd.ID)
	t.lock.Unlock()
}

func (t *TagCountTracer) countTag(taskTag TaskTag) {
	_, ok := t.tagCount[taskTag.What]
	if !ok {
		t.tagNames = append(t.tagNames, taskTag.What)
	}

	t.tagCount[taskTag.What]++
}
