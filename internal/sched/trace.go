package sched

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (s *Scheduler) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"timestamp", "tick", "event", "handle", "name", "priority", "delay_ticks"}); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	s.csvFile = f
	s.csvWriter = w
	return nil
}

// consume drains the event channel until ctx is done, then empties whatever
// is still buffered.
func (s *Scheduler) consume(ctx context.Context) {
	for {
		select {
		case ev := <-s.statusCh:
			s.handleEvent(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-s.statusCh:
					s.handleEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *Scheduler) handleEvent(ev StatusEvent) {
	// Tick events are only traced; logging each one would drown everything else.
	if ev.Kind != StatusTick {
		s.log.Debug(ev.Kind.String(),
			zap.Uint64("tick", ev.Tick),
			zap.Uint8("handle", uint8(ev.Handle)),
			zap.String("name", ev.Name),
			zap.Uint8("priority", ev.Priority),
			zap.Uint32("delay_ticks", ev.DelayTicks),
		)
	}

	// CSV output
	if s.csvWriter != nil {
		rec := []string{
			ev.Time.Format(time.RFC3339Nano),
			strconv.FormatUint(ev.Tick, 10),
			ev.Kind.String(),
			strconv.FormatUint(uint64(ev.Handle), 10),
			ev.Name,
			strconv.FormatUint(uint64(ev.Priority), 10),
			strconv.FormatUint(uint64(ev.DelayTicks), 10),
		}
		if err := s.csvWriter.Write(rec); err != nil {
			s.log.Warn("trace write failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) closeTrace() {
	if s.csvFile == nil {
		return
	}
	s.csvWriter.Flush()
	if err := s.csvWriter.Error(); err != nil {
		s.log.Warn("trace flush failed", zap.Error(err))
	}
	s.csvFile.Close()
	s.csvFile, s.csvWriter = nil, nil
}
