// Package trace stores the tasks of the cache levels into a database.
package trace

import (
	"github.com/sarchlab/compcache/datarecording"
	"github.com/sarchlab/compcache/sim/hooking"
)

const (
	taskTable = "memory_tasks"
	tagTable  = "memory_tags"
)

// taskEntry represents an access or an invalidation in the database
type taskEntry struct {
	ID         string
	ParentID   string
	Kind       string
	What       string
	Location   string
	StartCycle uint64
	EndCycle   uint64
}

// tagEntry represents a tag of a task in the database
type tagEntry struct {
	TaskID string
	What   string
	Detail string
}

// A Backend writes the tasks that a DBTracer completes into a data
// recorder.
type Backend struct {
	dataRecorder datarecording.DataRecorder
}

// NewBackend creates a Backend and the tables it writes.
func NewBackend(dataRecorder datarecording.DataRecorder) *Backend {
	b := &Backend{
		dataRecorder: dataRecorder,
	}

	b.dataRecorder.CreateTable(taskTable, taskEntry{})
	b.dataRecorder.CreateTable(tagTable, tagEntry{})

	return b
}

// Write records a completed task and its tags.
func (b *Backend) Write(t hooking.Task) {
	b.dataRecorder.InsertData(taskTable, taskEntry{
		ID:         t.ID,
		ParentID:   t.ParentID,
		Kind:       t.Kind,
		What:       t.What,
		Location:   t.Where,
		StartCycle: t.StartCycle,
		EndCycle:   t.EndCycle,
	})

	for _, tag := range t.Tags {
		b.dataRecorder.InsertData(tagTable, tagEntry{
			TaskID: t.ID,
			What:   tag.What,
			Detail: tag.Detail,
		})
	}
}

// Flush flushes the data recorder.
func (b *Backend) Flush() {
	b.dataRecorder.Flush()
}

// NewDBTracer creates a tracer that records the tasks of the levels it is
// attached to into the data recorder.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *hooking.DBTracer {
	return hooking.NewDBTracer(NewBackend(dataRecorder))
}
