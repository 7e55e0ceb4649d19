package cache

import (
	"github.com/sarchlab/compcache/sim/hooking"
)

// startTask returns the id of a new task, or an empty id if nothing hooks
// the level.
func (c *Comp) startTask(what, kind string, cycle uint64) string {
	if c.NumHooks() == 0 {
		return ""
	}

	taskID := c.idGen.Generate()

	ctx := hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosTaskStart,
		Item: hooking.TaskStart{
			ID:    taskID,
			Kind:  kind,
			What:  what,
			Where: c.Name(),
			Cycle: cycle,
		},
	}

	c.InvokeHook(ctx)

	return taskID
}

func (c *Comp) tagTask(taskID, what, detail string) {
	if taskID == "" {
		return
	}

	ctx := hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosTaskTag,
		Item: hooking.TaskTag{
			TaskID: taskID,
			What:   what,
			Detail: detail,
		},
	}

	c.InvokeHook(ctx)
}

func (c *Comp) endTask(taskID string, cycle uint64) {
	if taskID == "" {
		return
	}

	ctx := hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosTaskEnd,
		Item: hooking.TaskEnd{
			ID:    taskID,
			Cycle: cycle,
		},
	}

	c.InvokeHook(ctx)
}
