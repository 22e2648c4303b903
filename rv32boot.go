// Package rv32boot implements the boot-time firmware manager for the RV32IMZ
// inverter controller SoC.
//
// The package contains three main components: Session, which runs one firmware
// transfer over a serial link and commits the result to the application region,
// Header, which describes the 20-byte firmware image header and its validation
// rules, and Bootloader, which drives the top-level boot decision: offer an
// update window, verify the resident application, and fall back to recovery
// mode when no valid image exists.
//
// All hardware access goes through the Port and Clock interfaces, so the same
// state machines run against a real UART (see OpenSerialPort) or against fakes
// in tests. Two command line tools are included: cmd/rv32bootd, which runs the
// bootloader against a serial port and a file-backed application region, and
// cmd/rv32upload, which wraps a firmware binary in a header and uploads it.
package rv32boot

import "time"

// Port is the byte-level serial capability the bootloader runs against.
// TryRecvByte must not block; it reports whether a byte was available.
type Port interface {
	SendByte(b byte)
	TryRecvByte() (byte, bool)
}

// Clock provides the bootloader's notion of time. Now is a monotonic reading
// with at least millisecond resolution. Idle is called once per poll iteration
// in which no progress was made; a real clock should yield briefly, a fake
// clock advances virtual time.
type Clock interface {
	Now() time.Duration
	Idle()
}

type systemClock struct {
	start time.Time
}

// SystemClock returns a Clock backed by the host monotonic clock.
// Idle sleeps for one millisecond.
func SystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() time.Duration { return time.Since(c.start) }

func (c *systemClock) Idle() { time.Sleep(time.Millisecond) }

// link bundles a Port and Clock and implements the byte accumulation and
// diagnostic output primitives shared by Session and Bootloader.
type link struct {
	port  Port
	clock Clock
}

// receive accumulates exactly n bytes from the port, polling for readiness.
// The timeout window starts at the call, not cumulatively across calls. On
// timeout the partial bytes are discarded and a TimeoutError tagged with
// phase is returned; a short read is never handed to callers as complete.
func (l link) receive(n int, timeout time.Duration, phase string) ([]byte, error) {
	buf := make([]byte, 0, n)
	start := l.clock.Now()
	for len(buf) < n {
		if l.clock.Now()-start > timeout {
			return nil, &TimeoutError{Phase: phase, Want: n, Got: len(buf)}
		}
		if b, ok := l.port.TryRecvByte(); ok {
			buf = append(buf, b)
		} else {
			l.clock.Idle()
		}
	}
	return buf, nil
}

// print emits diagnostic text over the link. The text is informational only
// and not part of the protocol's success or failure signal.
func (l link) print(s string) {
	for i := 0; i < len(s); i++ {
		l.port.SendByte(s[i])
	}
}

// sleep busy-polls the clock for the given duration, yielding via Idle.
func (l link) sleep(d time.Duration) {
	start := l.clock.Now()
	for l.clock.Now()-start < d {
		l.clock.Idle()
	}
}

// Options holds the tunable protocol parameters. The defaults reproduce the
// reference bootloader's behavior.
type Options struct {
	// UpdateKey is the byte an operator sends during the boot window to
	// request update mode. Matched case-insensitively for letters.
	UpdateKey byte

	// OfferWindow is how long the boot prompt waits for an operator key.
	OfferWindow time.Duration

	// HeaderTimeout bounds the wait for the 20-byte image header. It is
	// long because a human operator initiates the transfer.
	HeaderTimeout time.Duration

	// ChunkTimeout bounds the wait for each payload chunk, so a stalled
	// link is detected mid-transfer rather than only at the end.
	ChunkTimeout time.Duration

	// ChunkSize is the payload receive granularity in bytes.
	ChunkSize int

	// RetryDelay spaces update attempts in recovery mode.
	RetryDelay time.Duration

	// RebootDelay is the pause after a successful update before the
	// bootloader restarts, letting the operator read the final status.
	RebootDelay time.Duration

	// StatusReply enables the single ACK/NAK status byte sent after the
	// verification phase, so automated tooling does not have to parse
	// diagnostic text. Off reproduces the reference protocol exactly.
	StatusReply bool
}

// DefaultOptions returns the reference timing parameters, with the status
// reply enabled.
func DefaultOptions() Options {
	return Options{
		UpdateKey:     'U',
		OfferWindow:   3 * time.Second,
		HeaderTimeout: 30 * time.Second,
		ChunkTimeout:  5 * time.Second,
		ChunkSize:     128,
		RetryDelay:    time.Second,
		RebootDelay:   2 * time.Second,
		StatusReply:   true,
	}
}
