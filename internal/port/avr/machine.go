// Package avr is a host-side model of an ATmega328P-class core: 2 KiB of SRAM,
// a 32 byte register file, SREG and a 16-bit program counter.
//
// Task bodies are Go functions. Each one runs on its own goroutine, but only
// the goroutine holding the core makes progress; the others are parked until a
// RestoreContext hands the core back to them. A tick can only be taken when the
// running task reaches a preemption point (Checkpoint, Halt or returning from
// its entry), which is the host equivalent of an instruction boundary.
package avr

import (
	"fmt"
	"sync"
	"sync/atomic"

	"ticksched/internal/port"
	"ticksched/internal/stack"
)

// Memory map of the modelled part.
const (
	RAMStart = 0x0100
	RAMEnd   = 0x08FF

	// VectorBase is the first flash word after the interrupt vector table.
	VectorBase = 0x0034

	// SREGInterruptEnable is the I bit of the status register.
	SREGInterruptEnable = 0x80

	// NumRegisters is the size of the general purpose register file.
	NumRegisters = 32

	// FrameSize is PC (2) + R0 + SREG + R1..R31.
	FrameSize = 2 + 1 + 1 + (NumRegisters - 1)
)

// Machine is the simulated core. It implements port.Port.
type Machine struct {
	ram  [RAMEnd + 1]byte
	sp   uint16
	pc   uint16
	sreg byte
	regs [NumRegisters]byte

	mu sync.Mutex // interrupt mask; held means interrupts are disabled

	vectors    map[uint16]*thread // entry vector -> task thread
	byRegion   map[uint16]*thread // region base -> task thread
	nextVector uint16
	current    *thread

	pending atomic.Bool
	kick    chan struct{}
	parked  chan struct{}
	done    chan struct{}
	stopped atomic.Bool
}

var _ port.Port = (*Machine)(nil)

// NewMachine powers up a core with cleared RAM and registers.
func NewMachine() *Machine {
	return &Machine{
		vectors:    make(map[uint16]*thread),
		byRegion:   make(map[uint16]*thread),
		nextVector: VectorBase,
		sp:         RAMEnd,
		kick:       make(chan struct{}, 1),
		parked:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// StackPool returns the pool task stacks are carved from: poolBytes directly
// below a reserved main stack at the top of RAM.
func StackPool(poolBytes, mainStack uint16) (stack.Region, error) {
	top := uint32(RAMEnd) + 1 - uint32(mainStack)
	if uint32(mainStack) > RAMEnd+1-RAMStart || uint32(poolBytes) > top-RAMStart {
		return stack.Region{}, fmt.Errorf("stack pool of %d bytes below a %d byte main stack does not fit in SRAM", poolBytes, mainStack)
	}
	return stack.Region{Base: uint16(top - uint32(poolBytes)), Size: poolBytes}, nil
}

// FrameSize implements port.Port.
func (m *Machine) FrameSize() int { return FrameSize }

// DisableInterrupts implements port.Port (cli).
func (m *Machine) DisableInterrupts() {
	m.mu.Lock()
	m.sreg &^= SREGInterruptEnable
}

// EnableInterrupts implements port.Port (sei).
func (m *Machine) EnableInterrupts() {
	m.sreg |= SREGInterruptEnable
	m.mu.Unlock()
}

// Peek reads one byte of RAM.
func (m *Machine) Peek(addr uint16) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ram[addr]
}

// SP returns the stack pointer register.
func (m *Machine) SP() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sp
}

// PC returns the program counter register.
func (m *Machine) PC() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pc
}

// Interrupt implements port.Port. It is the timer compare-match vector: wait
// for the running task to reach a preemption point, then run handler with
// interrupts disabled. Interrupt must only be called from the tick source.
func (m *Machine) Interrupt(handler func()) {
	if m.stopped.Load() {
		return
	}

	if m.current != nil {
		m.pending.Store(true)
		select {
		case m.kick <- struct{}{}:
		default:
		}
		select {
		case <-m.parked:
		case <-m.done:
			return
		}
		m.pending.Store(false)
	}

	m.DisableInterrupts()
	handler()
	m.EnableInterrupts()
}

// Checkpoint is a preemption point. Task bodies that loop without calling
// into the scheduler must call it.
func (m *Machine) Checkpoint() {
	if m.stopped.Load() {
		m.exit()
	}
	if m.pending.Load() {
		m.park()
	}
}

// Halt implements port.Port: the calling task sleeps until the next tick
// takes the core away from it.
func (m *Machine) Halt() {
	for !m.pending.Load() {
		select {
		case <-m.kick:
		case <-m.done:
			m.exit()
		}
	}
	m.park()
}

// Shutdown stops the core. Parked tasks exit, the running task exits at its
// next preemption point and further interrupts are ignored.
func (m *Machine) Shutdown() {
	if m.stopped.Swap(true) {
		return
	}
	close(m.done)
}

// park hands the core to the interrupt handler and blocks until some later
// RestoreContext resumes the calling task.
func (m *Machine) park() {
	t := m.current
	if t == nil {
		return
	}
	select {
	case m.parked <- struct{}{}:
	case <-m.done:
		m.exit()
	}
	select {
	case <-t.resume:
	case <-t.kill:
		m.exit()
	case <-m.done:
		m.exit()
	}
}
