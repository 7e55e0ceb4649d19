// Package idealmemory provides the main memory at the root of a cache
// hierarchy. It serves every access with a fixed latency and never
// invalidates.
package idealmemory

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/compcache/mem/mem"
	"github.com/sarchlab/compcache/sim/hooking"
	"github.com/sarchlab/compcache/sim/id"
)

// Comp is an ideal memory. A GETS is granted E unless the requester forbids
// it, a GETX is granted M and a writeback leaves the requester in I.
type Comp struct {
	hooking.HookableBase

	name    string
	latency uint64
	storage *mem.Storage
	idGen   id.IDGenerator
	logger  *slog.Logger
}

// Name returns the name of the memory.
func (c *Comp) Name() string {
	return c.name
}

// Latency returns the number of cycles an access takes.
func (c *Comp) Latency() uint64 {
	return c.latency
}

// Storage returns the data of the memory. The compression oracles read the
// lines from it.
func (c *Comp) Storage() *mem.Storage {
	return c.storage
}

// Access serves an access from a child.
func (c *Comp) Access(req *mem.AccessReq) uint64 {
	taskID := c.startTask(req)

	if req.State == nil {
		panic(fmt.Sprintf("%s: %s without a state", c.name, req))
	}

	switch req.Type {
	case mem.GETS:
		if req.Is(mem.FlagNoExcl) {
			*req.State = mem.S
		} else {
			*req.State = mem.E
		}
	case mem.GETX:
		*req.State = mem.M
	case mem.PUTS, mem.PUTX:
		*req.State = mem.I

		if req.Type == mem.PUTX {
			c.tagTask(taskID, "writeback")

			// The writer keeps the line, now clean.
			if req.Is(mem.FlagPutXKeepExcl) {
				*req.State = mem.E
			}
		}
	default:
		panic(fmt.Sprintf("%s: unknown access type %s", c.name, req.Type))
	}

	respCycle := req.Cycle + c.latency

	c.logger.Debug("memory access",
		"level", c.name,
		"type", req.Type.String(),
		"line", fmt.Sprintf("0x%x", req.LineAddr))

	c.endTask(taskID, respCycle)

	return respCycle
}

func (c *Comp) startTask(req *mem.AccessReq) string {
	if c.NumHooks() == 0 {
		return ""
	}

	taskID := c.idGen.Generate()

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosTaskStart,
		Item: hooking.TaskStart{
			ID:    taskID,
			Kind:  "access",
			What:  req.Type.String(),
			Where: c.name,
			Cycle: req.Cycle,
		},
	})

	return taskID
}

func (c *Comp) tagTask(taskID, what string) {
	if taskID == "" {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosTaskTag,
		Item:   hooking.TaskTag{TaskID: taskID, What: what},
	})
}

func (c *Comp) endTask(taskID string, cycle uint64) {
	if taskID == "" {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    hooking.HookPosTaskEnd,
		Item:   hooking.TaskEnd{ID: taskID, Cycle: cycle},
	})
}
