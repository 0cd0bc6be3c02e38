// Package port is the boundary between the scheduler and a concrete core.
//
// The scheduler never looks inside a Context. It only asks the port to build
// one for a new task, to save the live machine state into one and to restore
// one when a task is dispatched.
package port

import "ticksched/internal/stack"

// Entry is a task body. It is invoked once, on the task's first dispatch,
// with the parameter given at creation.
type Entry func(param any)

// Context is the saved, resumable state of a task that is not running.
// SP points at the top of the register image pushed into Region.
type Context struct {
	SP     uint16
	Region stack.Region
}

// Port is the architecture interface used by the dispatcher.
type Port interface {
	// FrameSize is the number of stack bytes a synthetic frame occupies.
	FrameSize() int

	// BuildFrame writes the initial register image of a task into region so
	// that restoring the returned context starts entry(param).
	BuildFrame(entry Entry, param any, region stack.Region) (Context, error)

	// SaveContext pushes the live register file onto the running task's
	// stack and records the resulting stack pointer in ctx.
	SaveContext(ctx *Context)

	// RestoreContext pops a register image and hands the core to it.
	RestoreContext(ctx Context)

	// Release drops any per-context state kept by the port. The task owning
	// ctx must not be running.
	Release(ctx Context)

	// DisableInterrupts and EnableInterrupts bracket a critical section in
	// which the tick cannot fire.
	DisableInterrupts()
	EnableInterrupts()

	// Interrupt delivers one tick: it waits for the running task to reach a
	// preemption point, then runs handler with interrupts disabled.
	Interrupt(handler func())

	// Halt parks the calling task until the next tick preempts it.
	Halt()
}
