package sched

import (
	"ticksched/internal/port"
	"ticksched/internal/stack"
)

// Handle identifies a live task. 0 is never a live task.
type Handle uint8

// IdlePriority is the lowest priority. Higher numbers win.
const IdlePriority uint8 = 0

// TaskState is the scheduling state of a task.
type TaskState uint8

const (
	StateReady TaskState = iota
	StateRunning
	StateBlocked // reserved
	StateSuspended
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateBlocked:
		return "BLOCKED"
	case StateSuspended:
		return "SUSPENDED"
	default:
		return "UNKNOWN"
	}
}

// Task is the task control block.
type Task struct {
	Handle     Handle
	Name       string
	Priority   uint8
	State      TaskState
	Context    port.Context // valid only while the task is not running
	DelayTicks uint32       // remaining countdown while suspended
	Entry      port.Entry
	Param      any
	Region     stack.Region
}

// TaskInfo is a read-only snapshot of a task.
type TaskInfo struct {
	Handle     Handle
	Name       string
	Priority   uint8
	State      TaskState
	DelayTicks uint32
	Region     stack.Region
}

func (t *Task) info() TaskInfo {
	return TaskInfo{
		Handle:     t.Handle,
		Name:       t.Name,
		Priority:   t.Priority,
		State:      t.State,
		DelayTicks: t.DelayTicks,
		Region:     t.Region,
	}
}

// boundedName cuts name to at most n bytes without splitting a rune.
func boundedName(name string, n int) string {
	if n <= 0 || len(name) <= n {
		return name
	}
	cut := 0
	for i := range name {
		if i > n {
			break
		}
		cut = i
	}
	return name[:cut]
}
