package sched

import "fmt"

// Tick delivers one timer tick through the port. It is the compare-match
// handler registered with the tick source.
func (s *Scheduler) Tick() error {
	var err error
	s.port.Interrupt(func() {
		err = s.dispatch()
	})
	return err
}

// dispatch is the save/select/restore sequence. It runs with interrupts
// disabled and is the only place a task changes to or from RUNNING.
func (s *Scheduler) dispatch() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	tick := s.ticks.Add(1)
	s.emit(StatusTick, nil)

	// save
	prev := s.current
	if prev != nil {
		s.port.SaveContext(&prev.Context)
		if prev.State == StateRunning {
			prev.State = StateReady
		}
	}

	// select
	s.expireDelays()
	next := s.selectNext()
	if next == nil {
		s.current = nil
		return fmt.Errorf("tick %d: %w", tick, ErrNoReadyTask)
	}

	// restore
	if prev != nil && prev != next && prev.State == StateReady {
		s.emit(StatusPreempt, prev)
	}
	next.State = StateRunning
	s.current = next
	if prev != next {
		s.emit(StatusDispatch, next)
	}
	s.port.RestoreContext(next.Context)
	return nil
}

// selectNext returns the READY task with the highest priority. Ties go to the
// task that was inserted first. Priorities are never cached between passes.
func (s *Scheduler) selectNext() *Task {
	var best *Task
	for t := range s.ready.All() {
		if t.State != StateReady {
			continue
		}
		if best == nil || t.Priority > best.Priority {
			best = t
		}
	}
	return best
}
