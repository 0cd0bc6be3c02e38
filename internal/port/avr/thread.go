package avr

import (
	"runtime"

	"ticksched/internal/port"
)

// thread is the host execution behind one task context.
type thread struct {
	m       *Machine
	vector  uint16
	entry   port.Entry
	param   any
	started bool
	resume  chan struct{}
	kill    chan struct{}
}

func (m *Machine) newThread(entry port.Entry, param any) *thread {
	t := &thread{
		m:      m,
		vector: m.nextVector,
		entry:  entry,
		param:  param,
		resume: make(chan struct{}),
		kill:   make(chan struct{}),
	}
	m.nextVector += 2
	m.vectors[t.vector] = t
	return t
}

// start runs the entry on a fresh goroutine. A task whose entry returns keeps
// sleeping through every dispatch instead of running off into the void.
func (t *thread) start() {
	t.started = true
	go func() {
		t.entry(t.param)
		for {
			t.m.Halt()
		}
	}()
}

func (m *Machine) exit() {
	runtime.Goexit()
}

// Release implements port.Port.
func (m *Machine) Release(ctx port.Context) {
	t, ok := m.byRegion[ctx.Region.Base]
	if !ok {
		return
	}
	delete(m.byRegion, ctx.Region.Base)
	delete(m.vectors, t.vector)
	if t == m.current {
		m.current = nil
	}
	close(t.kill)
}
