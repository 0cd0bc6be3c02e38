package sched

import "fmt"

// slot is one entry of the task arena. live is the allocation flag; it is
// independent of the task's handle and of ready list membership.
type slot struct {
	live bool
	gen  uint32 // bumped on every release
	task Task
}

// TaskPool is the fixed-capacity TCB arena. It never grows.
type TaskPool struct {
	slots []slot
	live  int
}

func newTaskPool(capacity int) *TaskPool {
	return &TaskPool{slots: make([]slot, capacity)}
}

// Allocate claims the first free slot.
func (p *TaskPool) Allocate() (int, error) {
	for i := range p.slots {
		if !p.slots[i].live {
			p.slots[i].live = true
			p.live++
			return i, nil
		}
	}
	return -1, fmt.Errorf("task pool full (%d slots): %w", len(p.slots), ErrNoCapacity)
}

// Release clears a slot and makes it free again.
func (p *TaskPool) Release(idx int) {
	s := &p.slots[idx]
	if !s.live {
		return
	}
	s.task = Task{}
	s.live = false
	s.gen++
	p.live--
}

// At returns the task stored in a slot.
func (p *TaskPool) At(idx int) *Task { return &p.slots[idx].task }

// Live reports whether a slot is allocated.
func (p *TaskPool) Live(idx int) bool { return p.slots[idx].live }

// Generation returns how many times a slot has been released.
func (p *TaskPool) Generation(idx int) uint32 { return p.slots[idx].gen }

// Len returns the number of allocated slots.
func (p *TaskPool) Len() int { return p.live }

// Cap returns the arena size.
func (p *TaskPool) Cap() int { return len(p.slots) }

// reset frees every slot.
func (p *TaskPool) reset() {
	for i := range p.slots {
		p.Release(i)
	}
}
