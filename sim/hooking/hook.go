// Package hooking lets observers attach to the levels of the hierarchy
// without the levels owning any statistics.
//
// A level calls its hooks when it starts serving an access or an
// invalidation, when it tags the task with what happened to the line (a hit,
// a miss, an eviction, a resize, a writeback) and when the task completes.
package hooking

// HookPos names the point in the life of a task at which a level calls its
// hooks.
type HookPos struct {
	Name string
}

// Named is anything that has a name.
type Named interface {
	Name() string
}

// HookCtx is what a level hands to its hooks. Domain is the level, and Item
// is the TaskStart, TaskTag, TaskStep or TaskEnd that matches Pos.
type HookCtx struct {
	Domain Named
	Pos    *HookPos
	Item   any
}

// Hookable is a level that observers can attach to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// Hook observes the tasks of the levels it is attached to. Levels serve many
// cores at the same time, so Func must be safe for concurrent use.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase keeps the hooks of a level. Attach every hook before the
// level serves its first access.
type HookableBase struct {
	hooks []Hook
}

// NumHooks returns the number of attached hooks. Levels skip building the
// task items when it is zero.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// AcceptHook attaches a hook. A hook attached twice would see every task
// twice, so that panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc {
		for _, attached := range h.hooks {
			if attached == hook {
				panic("hook attached twice")
			}
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook calls the hooks in the order they were attached.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
