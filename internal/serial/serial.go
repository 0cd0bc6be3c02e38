// Package serial is a polling USART driver used by application tasks. The
// scheduler never calls it.
package serial

import (
	"errors"
	"io"
	"sync"
)

// CPUClock is the core clock the baud prescaler is derived from.
const CPUClock = 16_000_000

// DefaultBaud is the board's console rate.
const DefaultBaud = 9600

var (
	ErrNotStarted = errors.New("usart not started")
	ErrBadBaud    = errors.New("baud rate out of range")
)

// USART is one serial port backed by host byte streams.
type USART struct {
	mu      sync.Mutex
	r       io.Reader
	w       io.Writer
	ubrr    uint16
	started bool
}

// New wires a port to the given streams. Either may be nil.
func New(r io.Reader, w io.Writer) *USART {
	return &USART{r: r, w: w}
}

// Prescale returns the UBRR value for a baud rate in normal speed mode.
func Prescale(baud uint32) (uint16, error) {
	if baud == 0 || baud > CPUClock/16 {
		return 0, ErrBadBaud
	}
	v := CPUClock/(16*baud) - 1
	if v > 0x0FFF {
		return 0, ErrBadBaud
	}
	return uint16(v), nil
}

// Start programs the baud prescaler and enables receiver and transmitter.
func (u *USART) Start(baud uint32) error {
	ubrr, err := Prescale(baud)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ubrr = ubrr
	u.started = true
	return nil
}

// UBRR returns the programmed prescaler.
func (u *USART) UBRR() uint16 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ubrr
}

// Send transmits one byte, waiting until the data register is free.
func (u *USART) Send(b byte) error {
	return u.Print([]byte{b})
}

// Print transmits p byte by byte.
func (u *USART) Print(p []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.started {
		return ErrNotStarted
	}
	if u.w == nil {
		return io.ErrClosedPipe
	}
	for i := range p {
		if _, err := u.w.Write(p[i : i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Recv waits for one byte to arrive.
func (u *USART) Recv() (byte, error) {
	u.mu.Lock()
	r, started := u.r, u.started
	u.mu.Unlock()
	if !started {
		return 0, ErrNotStarted
	}
	if r == nil {
		return 0, io.EOF
	}

	var buf [1]byte
	for {
		n, err := r.Read(buf[:])
		if n == 1 {
			return buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
