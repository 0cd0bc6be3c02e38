package sched

import (
	"fmt"
	"iter"
	"math"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
)

// ReadyList holds every live task, whatever its state, in creation order.
// It owns slot indices into the pool, not pointers.
type ReadyList struct {
	pool  *TaskPool
	order *arraylist.List // of int slot indices
}

func newReadyList(pool *TaskPool) *ReadyList {
	return &ReadyList{pool: pool, order: arraylist.New()}
}

// Insert appends the task in slot idx and assigns its handle: the smallest
// positive value not held by a current member.
func (l *ReadyList) Insert(idx int) (Handle, error) {
	used := treeset.NewWith(utils.UInt8Comparator)
	for t := range l.All() {
		used.Add(uint8(t.Handle))
	}

	next := 1
	for _, v := range used.Values() {
		if int(v.(uint8)) != next {
			break
		}
		next++
	}
	if next > math.MaxUint8 {
		return 0, fmt.Errorf("all handles in use: %w", ErrNoCapacity)
	}

	h := Handle(next)
	l.pool.At(idx).Handle = h
	l.order.Add(idx)
	return h, nil
}

// Remove unlinks the task with handle h, releases its slot and returns the
// control block as it was before release.
func (l *ReadyList) Remove(h Handle) (Task, error) {
	pos, idx := l.find(h)
	if pos < 0 {
		return Task{}, fmt.Errorf("handle %d: %w", h, ErrUnknownTask)
	}

	t := *l.pool.At(idx)
	l.order.Remove(pos)
	l.pool.Release(idx)
	return t, nil
}

// Lookup returns the live task with handle h.
func (l *ReadyList) Lookup(h Handle) (*Task, bool) {
	_, idx := l.find(h)
	if idx < 0 {
		return nil, false
	}
	return l.pool.At(idx), true
}

// All yields the members in list order. The sequence can be ranged over any
// number of times.
func (l *ReadyList) All() iter.Seq[*Task] {
	return func(yield func(*Task) bool) {
		it := l.order.Iterator()
		for it.Next() {
			if !yield(l.pool.At(it.Value().(int))) {
				return
			}
		}
	}
}

// Len returns the number of members.
func (l *ReadyList) Len() int { return l.order.Size() }

func (l *ReadyList) clear() { l.order.Clear() }

func (l *ReadyList) find(h Handle) (pos, idx int) {
	if h == 0 {
		return -1, -1
	}
	it := l.order.Iterator()
	for it.Next() {
		i := it.Value().(int)
		if l.pool.At(i).Handle == h {
			return it.Index(), i
		}
	}
	return -1, -1
}
