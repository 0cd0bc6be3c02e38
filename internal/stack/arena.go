// Package stack carves per-task stack regions out of a fixed memory pool.
package stack

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// ErrExhausted is returned when no free run is large enough.
var ErrExhausted = errors.New("stack pool exhausted")

// Region is a byte range [Base, Base+Size) of the core's RAM.
type Region struct {
	Base uint16
	Size uint16
}

// Top returns the highest address inside the region. Stacks grow down from it.
func (r Region) Top() uint16 { return r.Base + r.Size - 1 }

// End returns the first address past the region.
func (r Region) End() uint32 { return uint32(r.Base) + uint32(r.Size) }

// Overlaps reports whether r and o share at least one byte.
func (r Region) Overlaps(o Region) bool {
	if r.Size == 0 || o.Size == 0 {
		return false
	}
	return uint32(r.Base) < o.End() && uint32(o.Base) < r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%04x,0x%04x)", r.Base, r.End())
}

// Arena hands out disjoint regions from one pool, highest addresses first, and
// takes them back on task deletion.
//
// Free runs are kept in a red-black tree keyed by base address so that a
// reclaimed region can be merged with its free neighbours.
type Arena struct {
	pool Region
	free *redblacktree.Tree // base(int) -> size(int)
	used int
}

// NewArena creates an arena over the given pool.
func NewArena(pool Region) *Arena {
	a := &Arena{pool: pool, free: redblacktree.NewWith(utils.IntComparator)}
	a.Reset()
	return a
}

// Reset forgets every carved region.
func (a *Arena) Reset() {
	a.free.Clear()
	a.used = 0
	if a.pool.Size > 0 {
		a.free.Put(int(a.pool.Base), int(a.pool.Size))
	}
}

// Pool returns the region the arena manages.
func (a *Arena) Pool() Region { return a.pool }

// Used returns the number of bytes currently carved.
func (a *Arena) Used() int { return a.used }

// Free returns the number of bytes available, possibly fragmented.
func (a *Arena) Free() int { return int(a.pool.Size) - a.used }

// Carve reserves size bytes. It picks the highest free run that fits and takes
// the top of it, so stacks are laid out downward from RAMEND.
func (a *Arena) Carve(size uint16) (Region, error) {
	if size == 0 {
		return Region{}, fmt.Errorf("carve 0 bytes: %w", ErrExhausted)
	}

	it := a.free.Iterator()
	for it.End(); it.Prev(); {
		base, runSize := it.Key().(int), it.Value().(int)
		if runSize < int(size) {
			continue
		}

		r := Region{Base: uint16(base + runSize - int(size)), Size: size}
		if runSize == int(size) {
			a.free.Remove(base)
		} else {
			a.free.Put(base, runSize-int(size))
		}
		a.used += int(size)
		return r, nil
	}

	return Region{}, fmt.Errorf("carve %d bytes (%d free): %w", size, a.Free(), ErrExhausted)
}

// Reclaim returns a region previously carved from this arena.
func (a *Arena) Reclaim(r Region) error {
	if r.Size == 0 {
		return nil
	}
	if uint32(r.Base) < uint32(a.pool.Base) || r.End() > a.pool.End() {
		return fmt.Errorf("reclaim %s outside pool %s", r, a.pool)
	}

	base, size := int(r.Base), int(r.Size)

	// The region must not intersect a run that is already free.
	if node, ok := a.free.Floor(base + size - 1); ok {
		if node.Key.(int)+node.Value.(int) > base {
			return fmt.Errorf("reclaim %s: already free", r)
		}
	}

	// merge with the left neighbour
	if node, ok := a.free.Floor(base - 1); ok && base > 0 {
		lb, ls := node.Key.(int), node.Value.(int)
		if lb+ls == base {
			a.free.Remove(lb)
			base, size = lb, size+ls
		}
	}
	// merge with the right neighbour
	if v, ok := a.free.Get(base + size); ok {
		a.free.Remove(base + size)
		size += v.(int)
	}

	a.free.Put(base, size)
	a.used -= int(r.Size)
	return nil
}
