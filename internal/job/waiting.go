// Package job holds ready-made task bodies used by the demo firmware.
package job

import (
	"sync/atomic"

	"ticksched/internal/port"
	"ticksched/internal/serial"
)

// Delayer is the part of the scheduler a task body needs.
type Delayer interface {
	DelayTask(ticks uint32) error
}

// SleepWork returns an entry that runs work and then sleeps for the given
// number of ticks, forever. A failing delay ends the task body.
func SleepWork(d Delayer, ticks uint32, work func()) port.Entry {
	return func(any) {
		for {
			if work != nil {
				work()
			}
			if err := d.DelayTask(ticks); err != nil {
				return
			}
		}
	}
}

// Blink toggles led every period ticks.
func Blink(d Delayer, period uint32, led *atomic.Bool) port.Entry {
	return SleepWork(d, period, func() {
		led.Store(!led.Load())
	})
}

// Printer writes the task parameter (a string) followed by a newline to the
// serial port every period ticks.
func Printer(d Delayer, u *serial.USART, period uint32) port.Entry {
	return func(param any) {
		msg, _ := param.(string)
		SleepWork(d, period, func() {
			_ = u.Print([]byte(msg))
			_ = u.Send('\n')
		})(param)
	}
}

// Spin busy-counts and only gives up the core when preempted at checkpoint.
func Spin(checkpoint func(), counter *atomic.Uint64) port.Entry {
	return func(any) {
		for {
			counter.Add(1)
			checkpoint()
		}
	}
}
