package sched

// DelayTask suspends the calling task for the given number of ticks. The
// countdown and the state change are written with interrupts disabled, so a
// tick never sees one without the other. The task then sleeps until a later
// tick wakes it and it wins a selection pass. DelayTask(0) gives up the rest
// of the current period.
//
// It must be called from the body of the running task.
func (s *Scheduler) DelayTask(ticks uint32) error {
	s.port.DisableInterrupts()
	t := s.current
	if t == nil || t.State != StateRunning {
		s.port.EnableInterrupts()
		return ErrNotRunning
	}
	t.DelayTicks = ticks
	t.State = StateSuspended
	s.emit(StatusSuspend, t)
	s.port.EnableInterrupts()

	s.port.Halt()
	return nil
}

// expireDelays is the first phase of a selection pass: every suspended
// countdown moves by one tick and the tasks reaching zero become READY in
// time to be selected by this same pass.
func (s *Scheduler) expireDelays() {
	for t := range s.ready.All() {
		if t.State != StateSuspended {
			continue
		}
		if t.DelayTicks > 0 {
			t.DelayTicks--
		}
		if t.DelayTicks == 0 {
			t.State = StateReady
			s.emit(StatusWake, t)
		}
	}
}
