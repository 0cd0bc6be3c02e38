package serial

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestPrescale(t *testing.T) {
	tests := []struct {
		baud uint32
		want uint16
		err  bool
	}{
		{9600, 103, false},
		{115200, 7, false},
		{0, 0, true},
		{2_000_000, 0, true},
		{100, 0, true},
	}
	for _, tt := range tests {
		got, err := Prescale(tt.baud)
		if (err != nil) != tt.err {
			t.Errorf("Prescale(%d) err = %v, want error %v", tt.baud, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("Prescale(%d) = %d, want %d", tt.baud, got, tt.want)
		}
	}
}

func TestSendBeforeStart(t *testing.T) {
	u := New(nil, &bytes.Buffer{})
	if err := u.Send('x'); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Send() err = %v, want ErrNotStarted", err)
	}
	if _, err := u.Recv(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Recv() err = %v, want ErrNotStarted", err)
	}
}

func TestPrintAndRecv(t *testing.T) {
	var out bytes.Buffer
	u := New(strings.NewReader("ok"), &out)
	if err := u.Start(DefaultBaud); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
	if u.UBRR() != 103 {
		t.Fatalf("UBRR() = %d, want 103", u.UBRR())
	}

	if err := u.Print([]byte("hello")); err != nil {
		t.Fatalf("Print() err = %v", err)
	}
	if err := u.Send('\n'); err != nil {
		t.Fatalf("Send() err = %v", err)
	}
	if out.String() != "hello\n" {
		t.Fatalf("wire = %q, want %q", out.String(), "hello\n")
	}

	for _, want := range []byte("ok") {
		got, err := u.Recv()
		if err != nil || got != want {
			t.Fatalf("Recv() = %q, %v, want %q", got, err, want)
		}
	}
	if _, err := u.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("Recv() at end err = %v, want EOF", err)
	}
}
