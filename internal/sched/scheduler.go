// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ticksched/internal/port"
	"ticksched/internal/stack"
)

// Scheduler owns every piece of scheduler state: the TCB arena, the ready
// list, the stack arena and the current task. All of it is touched only with
// the port's interrupts disabled.
type Scheduler struct {
	cfg    Config
	port   port.Port
	log    *zap.Logger
	pool   *TaskPool
	ready  *ReadyList
	stacks *stack.Arena

	current     *Task // nil before the first tick
	idle        Handle
	initialized bool
	ticks       atomic.Uint64

	statusCh chan StatusEvent // channel for status events
	dropped  atomic.Int64

	// trace-related
	csvFile   *os.File
	csvWriter *csv.Writer
}

// New creates a scheduler bound to a port. Task stacks are carved from pool.
func New(cfg Config, p port.Port, pool stack.Region, log *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	tasks := newTaskPool(cfg.MaxTasks)
	return &Scheduler{
		cfg:      cfg,
		port:     p,
		log:      log.Named("sched"),
		pool:     tasks,
		ready:    newReadyList(tasks),
		stacks:   stack.NewArena(pool),
		statusCh: make(chan StatusEvent, 256),
	}, nil
}

// Init clears the task pool and, if configured, creates the idle task. After
// Init the scheduler accepts ticks. It is meant to run once at cold start.
func (s *Scheduler) Init() error {
	s.port.DisableInterrupts()
	s.resetLocked()
	s.initialized = true
	s.port.EnableInterrupts()

	if s.cfg.IdleTask {
		h, err := s.CreateTask(s.idleLoop, "IDLE", s.cfg.IdleStackSize, IdlePriority, nil)
		if err != nil {
			return fmt.Errorf("create idle task: %w", err)
		}
		s.idle = h
	}

	s.log.Info("scheduler initialized",
		zap.Int("max_tasks", s.cfg.MaxTasks),
		zap.Uint16("max_stack_size", s.cfg.MaxStackSize),
		zap.Stringer("stack_pool", s.stacks.Pool()),
		zap.Int("tick_ms", s.cfg.TickMS),
	)
	return nil
}

// Teardown releases every task and leaves the scheduler uninitialized.
func (s *Scheduler) Teardown() {
	s.port.DisableInterrupts()
	defer s.port.EnableInterrupts()

	s.resetLocked()
	s.initialized = false
}

func (s *Scheduler) resetLocked() {
	for t := range s.ready.All() {
		s.port.Release(t.Context)
	}
	s.ready.clear()
	s.pool.reset()
	s.stacks.Reset()
	s.current = nil
	s.idle = 0
}

// idleLoop sleeps through every dispatch it wins.
func (s *Scheduler) idleLoop(any) {
	for {
		s.port.Halt()
	}
}

// CreateTask validates the request, claims a slot and a stack region, builds
// the task's initial context and links it in READY state.
func (s *Scheduler) CreateTask(entry port.Entry, name string, stackSize uint16, priority uint8, param any) (Handle, error) {
	if entry == nil {
		return 0, fmt.Errorf("create %q: %w", name, ErrInvalidEntry)
	}
	if stackSize > s.cfg.MaxStackSize {
		return 0, fmt.Errorf("create %q: %d bytes over the %d byte cap: %w", name, stackSize, s.cfg.MaxStackSize, ErrInvalidStack)
	}
	if int(stackSize) < s.port.FrameSize() {
		return 0, fmt.Errorf("create %q: %d bytes cannot hold a %d byte frame: %w", name, stackSize, s.port.FrameSize(), ErrInvalidStack)
	}

	s.port.DisableInterrupts()
	t, err := s.createLocked(entry, name, stackSize, priority, param)
	s.port.EnableInterrupts()
	if err != nil {
		return 0, err
	}

	s.log.Debug("task created",
		zap.Uint8("handle", uint8(t.Handle)),
		zap.String("name", t.Name),
		zap.Uint8("priority", t.Priority),
		zap.Stringer("stack", t.Region),
	)
	s.emit(StatusCreate, t)
	return t.Handle, nil
}

func (s *Scheduler) createLocked(entry port.Entry, name string, stackSize uint16, priority uint8, param any) (*Task, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	idx, err := s.pool.Allocate()
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}

	region, err := s.stacks.Carve(stackSize)
	if err != nil {
		s.pool.Release(idx)
		return nil, fmt.Errorf("create %q: %v: %w", name, err, ErrNoCapacity)
	}

	ctx, err := s.port.BuildFrame(entry, param, region)
	if err != nil {
		_ = s.stacks.Reclaim(region)
		s.pool.Release(idx)
		return nil, fmt.Errorf("create %q: %v: %w", name, err, ErrInvalidStack)
	}

	t := s.pool.At(idx)
	*t = Task{
		Name:     boundedName(name, s.cfg.NameLen),
		Priority: priority,
		State:    StateReady,
		Context:  ctx,
		Entry:    entry,
		Param:    param,
		Region:   region,
	}
	if _, err := s.ready.Insert(idx); err != nil {
		s.port.Release(ctx)
		_ = s.stacks.Reclaim(region)
		s.pool.Release(idx)
		return nil, fmt.Errorf("create %q: %w", name, err)
	}
	return t, nil
}

// DeleteTask unlinks a task, frees its slot and returns its stack region to
// the pool. A task cannot delete itself.
func (s *Scheduler) DeleteTask(h Handle) error {
	s.port.DisableInterrupts()
	t, err := s.deleteLocked(h)
	s.port.EnableInterrupts()
	if err != nil {
		return err
	}

	s.log.Debug("task deleted", zap.Uint8("handle", uint8(h)), zap.String("name", t.Name))
	s.emit(StatusDelete, &t)
	return nil
}

func (s *Scheduler) deleteLocked(h Handle) (Task, error) {
	if !s.initialized {
		return Task{}, ErrNotInitialized
	}
	if h != 0 && h == s.idle {
		return Task{}, fmt.Errorf("delete %d: %w", h, ErrIdleTask)
	}
	if s.current != nil && s.current.Handle == h {
		return Task{}, fmt.Errorf("delete %d: %w", h, ErrDeleteRunning)
	}

	t, err := s.ready.Remove(h)
	if err != nil {
		return Task{}, fmt.Errorf("delete: %w", err)
	}
	s.port.Release(t.Context)
	if err := s.stacks.Reclaim(t.Region); err != nil {
		s.log.Error("stack region not reclaimed", zap.Uint8("handle", uint8(h)), zap.Error(err))
	}
	return t, nil
}

// Lookup returns a snapshot of a live task.
func (s *Scheduler) Lookup(h Handle) (TaskInfo, bool) {
	s.port.DisableInterrupts()
	defer s.port.EnableInterrupts()

	t, ok := s.ready.Lookup(h)
	if !ok {
		return TaskInfo{}, false
	}
	return t.info(), true
}

// Tasks returns snapshots of every live task in list order.
func (s *Scheduler) Tasks() []TaskInfo {
	s.port.DisableInterrupts()
	defer s.port.EnableInterrupts()

	out := make([]TaskInfo, 0, s.ready.Len())
	for t := range s.ready.All() {
		out = append(out, t.info())
	}
	return out
}

// Current returns the task that owns the core, if any.
func (s *Scheduler) Current() (TaskInfo, bool) {
	s.port.DisableInterrupts()
	defer s.port.EnableInterrupts()

	if s.current == nil {
		return TaskInfo{}, false
	}
	return s.current.info(), true
}

// Ticks returns the number of ticks dispatched since Init.
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

// StackUsage returns carved and total stack pool bytes.
func (s *Scheduler) StackUsage() (used, total int) {
	s.port.DisableInterrupts()
	defer s.port.EnableInterrupts()
	return s.stacks.Used(), int(s.stacks.Pool().Size)
}

// StatusChannel exposes read‑only stream (optional consumers).
func (s *Scheduler) StatusChannel() <-chan StatusEvent { return s.statusCh }

// Dropped returns how many events were lost because nobody drained them.
func (s *Scheduler) Dropped() int64 { return s.dropped.Load() }

// Run arms the tick source at the configured period and delivers ticks until
// ctx is done or a dispatch fails. Events are logged (and traced to CSV when
// enabled) while it runs.
func (s *Scheduler) Run(ctx context.Context) error {
	clock := NewTickClock(16)
	clock.Start(time.Duration(s.cfg.TickMS) * time.Millisecond)
	defer clock.Stop()

	evCtx, stopEvents := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.consume(evCtx)
	}()
	defer func() {
		stopEvents()
		wg.Wait()
		s.closeTrace()
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped",
				zap.Uint64("ticks", s.ticks.Load()),
				zap.Int64("overruns", clock.Overruns()),
				zap.Int64("dropped_events", s.dropped.Load()),
			)
			return nil
		case <-clock.Ch:
			if err := s.Tick(); err != nil {
				s.log.Error("dispatch failed", zap.Uint64("tick", s.ticks.Load()), zap.Error(err))
				return err
			}
		}
	}
}
