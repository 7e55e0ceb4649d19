package datarecording

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const execTableName = "exec_info"

// execInfo is a property of the execution that produced a database.
type execInfo struct {
	Property string
	Value    string
}

// execRecorder records when and how the program ran.
type execRecorder struct {
	recorder DataRecorder
	entries  []execInfo
}

func newExecRecorder(recorder DataRecorder) *execRecorder {
	e := &execRecorder{
		recorder: recorder,
	}

	recorder.CreateTable(execTableName, execInfo{})

	return e
}

// Start collects the properties known when the program starts.
func (e *execRecorder) Start() {
	startTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.entries = append(e.entries, execInfo{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	e.entries = append(e.entries, execInfo{"Command", cmd})

	cwd, err := os.Getwd()
	if err != nil {
		cwd = filepath.Dir(os.Args[0])
	}

	e.entries = append(e.entries, execInfo{"Working Directory", cwd})
}

// End writes the properties along with the exit time.
func (e *execRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(execTableName, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	e.recorder.InsertData(execTableName, execInfo{"End Time", endTime})

	e.entries = nil
}
