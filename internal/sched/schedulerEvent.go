// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusTick StatusKind = iota
	StatusCreate
	StatusDelete
	StatusDispatch
	StatusPreempt
	StatusSuspend
	StatusWake
)

// StatusEvent is emitted every tick or on key actions
type StatusEvent struct {
	Time       time.Time
	Tick       uint64
	Kind       StatusKind
	Handle     Handle
	Name       string
	Priority   uint8
	DelayTicks uint32
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusTick:
		return "Tick"
	case StatusCreate:
		return "Create"
	case StatusDelete:
		return "Delete"
	case StatusDispatch:
		return "Dispatch"
	case StatusPreempt:
		return "Preempt"
	case StatusSuspend:
		return "Suspend"
	case StatusWake:
		return "Wake"
	default:
		return "Unknown"
	}
}

// emit queues an event without blocking; the tick path must never wait on a
// slow consumer. Dropped events are counted.
func (s *Scheduler) emit(kind StatusKind, t *Task) {
	ev := StatusEvent{
		Time: time.Now(),
		Tick: s.ticks.Load(),
		Kind: kind,
	}
	if t != nil {
		ev.Handle = t.Handle
		ev.Name = t.Name
		ev.Priority = t.Priority
		ev.DelayTicks = t.DelayTicks
	}

	select {
	case s.statusCh <- ev:
	default:
		s.dropped.Add(1)
	}
}
