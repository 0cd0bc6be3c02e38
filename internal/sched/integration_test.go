package sched_test

import (
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"ticksched/internal/port/avr"
	"ticksched/internal/sched"
)

func bootMachine(t *testing.T) (*sched.Scheduler, *avr.Machine) {
	t.Helper()
	cfg := sched.DefaultConfig()

	m := avr.NewMachine()
	t.Cleanup(m.Shutdown)

	pool, err := avr.StackPool(cfg.StackPoolBytes, cfg.MainStackBytes)
	if err != nil {
		t.Fatalf("StackPool() err = %v", err)
	}
	s, err := sched.New(cfg, m, pool, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Init() err = %v", err)
	}
	return s, m
}

func TestPreemptionOnSimulatedCore(t *testing.T) {
	s, m := bootMachine(t)

	var hiRuns, loRuns atomic.Int64
	var errs atomic.Int64

	_, err := s.CreateTask(func(any) {
		for {
			hiRuns.Add(1)
			if err := s.DelayTask(2); err != nil {
				errs.Add(1)
			}
		}
	}, "hi", 64, 5, nil)
	if err != nil {
		t.Fatalf("CreateTask(hi) err = %v", err)
	}

	_, err = s.CreateTask(func(any) {
		for {
			loRuns.Add(1)
			m.Checkpoint()
		}
	}, "lo", 64, 1, nil)
	if err != nil {
		t.Fatalf("CreateTask(lo) err = %v", err)
	}

	// hi runs on ticks 1, 3, 5, 7 and 9; tick 10 waits for the fifth run
	// to suspend itself
	for i := 0; i < 10; i++ {
		if err := s.Tick(); err != nil {
			t.Fatalf("Tick() #%d err = %v", i+1, err)
		}
	}

	if got := hiRuns.Load(); got != 5 {
		t.Fatalf("hi ran %d times, want 5", got)
	}
	if loRuns.Load() == 0 {
		t.Fatalf("lo never ran while hi was delayed")
	}
	if errs.Load() != 0 {
		t.Fatalf("DelayTask failed %d times", errs.Load())
	}
	if cur, _ := s.Current(); cur.Name != "lo" {
		t.Fatalf("current after tick 10 = %q, want lo", cur.Name)
	}
}

func TestIdleRunsWhenEverythingSleeps(t *testing.T) {
	s, _ := bootMachine(t)

	var runs atomic.Int64
	h, err := s.CreateTask(func(any) {
		for {
			runs.Add(1)
			_ = s.DelayTask(3)
		}
	}, "sleepy", 64, 2, nil)
	if err != nil {
		t.Fatalf("CreateTask() err = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Tick(); err != nil {
			t.Fatalf("Tick() err = %v", err)
		}
	}
	cur, _ := s.Current()
	if cur.Name != "IDLE" {
		t.Fatalf("current = %q, want IDLE while the only task sleeps", cur.Name)
	}
	if info, _ := s.Lookup(h); info.State != sched.StateSuspended || info.DelayTicks != 2 {
		t.Fatalf("sleepy = %v/%d, want SUSPENDED/2", info.State, info.DelayTicks)
	}
}

func TestDeleteParkedTaskOnSimulatedCore(t *testing.T) {
	s, m := bootMachine(t)

	var victimRuns atomic.Int64
	victim, err := s.CreateTask(func(any) {
		for {
			victimRuns.Add(1)
			m.Checkpoint()
		}
	}, "victim", 64, 3, nil)
	if err != nil {
		t.Fatalf("CreateTask() err = %v", err)
	}

	if err := s.Tick(); err != nil {
		t.Fatalf("Tick() err = %v", err)
	}
	if err := s.DeleteTask(victim); err == nil {
		t.Fatalf("DeleteTask(running) err = nil")
	}

	// put a higher priority task in front so the victim gets parked
	killer, err := s.CreateTask(func(any) {
		for {
			m.Checkpoint()
		}
	}, "killer", 64, 9, nil)
	if err != nil {
		t.Fatalf("CreateTask() err = %v", err)
	}
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick() err = %v", err)
	}
	if err := s.DeleteTask(victim); err != nil {
		t.Fatalf("DeleteTask(parked) err = %v", err)
	}
	if err := s.DeleteTask(killer); err == nil {
		t.Fatalf("DeleteTask(running killer) err = nil")
	}

	before := victimRuns.Load()
	for i := 0; i < 5; i++ {
		if err := s.Tick(); err != nil {
			t.Fatalf("Tick() err = %v", err)
		}
	}
	if victimRuns.Load() != before {
		t.Fatalf("deleted task kept running")
	}
	if _, ok := s.Lookup(victim); ok {
		t.Fatalf("deleted task still listed")
	}
}
