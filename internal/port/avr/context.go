package avr

import (
	"errors"
	"fmt"

	"ticksched/internal/port"
	"ticksched/internal/stack"
)

var (
	errNilEntry   = errors.New("nil entry")
	errSmallStack = errors.New("region smaller than a context frame")
)

// BuildFrame implements port.Port. It pushes, from the top of region down,
// the image portSAVE_CONTEXT would leave behind for a task interrupted right
// at its first instruction: return address (low byte first), R0, SREG with
// interrupts enabled, then R1..R31 cleared.
func (m *Machine) BuildFrame(entry port.Entry, param any, region stack.Region) (port.Context, error) {
	if entry == nil {
		return port.Context{}, errNilEntry
	}
	if int(region.Size) < FrameSize {
		return port.Context{}, fmt.Errorf("%s: %w", region, errSmallStack)
	}
	if uint32(region.Base) < RAMStart || region.End() > RAMEnd+1 {
		return port.Context{}, fmt.Errorf("region %s outside SRAM", region)
	}
	if _, taken := m.byRegion[region.Base]; taken {
		return port.Context{}, fmt.Errorf("region %s already holds a context", region)
	}

	t := m.newThread(entry, param)
	m.byRegion[region.Base] = t

	var regs [NumRegisters]byte
	sp := m.pushFrame(region.Top(), t.vector, SREGInterruptEnable, &regs)
	return port.Context{SP: sp, Region: region}, nil
}

// SaveContext implements port.Port.
func (m *Machine) SaveContext(ctx *port.Context) {
	ctx.SP = m.pushFrame(m.sp, m.pc, m.sreg|SREGInterruptEnable, &m.regs)
}

// RestoreContext implements port.Port. The popped program counter decides
// where the task resumes: a task that never ran must resume at its entry
// vector, anything else continues where it was parked.
func (m *Machine) RestoreContext(ctx port.Context) {
	t, ok := m.byRegion[ctx.Region.Base]
	if !ok {
		panic(fmt.Sprintf("avr: restore of unknown context %s", ctx.Region))
	}

	sp := ctx.SP
	for i := NumRegisters - 1; i >= 1; i-- {
		sp++
		m.regs[i] = m.ram[sp]
	}
	sp++
	m.sreg = m.ram[sp]
	sp++
	m.regs[0] = m.ram[sp]
	sp++
	hi := m.ram[sp]
	sp++
	lo := m.ram[sp]
	m.sp = sp
	m.pc = uint16(hi)<<8 | uint16(lo)

	m.current = t
	if !t.started {
		if m.pc != t.vector {
			panic(fmt.Sprintf("avr: corrupt frame in %s: pc 0x%04x, entry 0x%04x", ctx.Region, m.pc, t.vector))
		}
		t.start()
		return
	}
	t.resume <- struct{}{}
}

// pushFrame writes one register image below sp with post-decrement push
// semantics and returns the new stack pointer.
func (m *Machine) pushFrame(sp, pc uint16, sreg byte, regs *[NumRegisters]byte) uint16 {
	push := func(b byte) {
		m.ram[sp] = b
		sp--
	}

	push(byte(pc))
	push(byte(pc >> 8))
	push(regs[0])
	push(sreg)
	for i := 1; i < NumRegisters; i++ {
		push(regs[i])
	}
	return sp
}
