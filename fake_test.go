package rv32boot

import (
	"bytes"
	"time"
)

// fakeClock is a virtual millisecond clock. Time only advances when the code
// under test yields via Idle, so tests with multi-second protocol timeouts
// still run instantly.
type fakeClock struct {
	now  time.Duration
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{step: time.Millisecond}
}

func (c *fakeClock) Now() time.Duration { return c.now }

func (c *fakeClock) Idle() { c.now += c.step }

type portEvent struct {
	at time.Duration
	b  byte
}

// fakePort is a scripted serial channel. Bytes become available at their
// scheduled virtual time; everything the code under test sends is captured
// for assertions.
type fakePort struct {
	clock  *fakeClock
	script []portEvent
	next   int
	sent   bytes.Buffer
}

func newFakePort(clock *fakeClock) *fakePort {
	return &fakePort{clock: clock}
}

func (p *fakePort) SendByte(b byte) { p.sent.WriteByte(b) }

func (p *fakePort) TryRecvByte() (byte, bool) {
	if p.next < len(p.script) && p.script[p.next].at <= p.clock.now {
		b := p.script[p.next].b
		p.next++
		return b, true
	}
	return 0, false
}

// feed schedules data to arrive at virtual time at. Calls must be made in
// chronological order.
func (p *fakePort) feed(at time.Duration, data []byte) {
	for _, b := range data {
		p.script = append(p.script, portEvent{at: at, b: b})
	}
}

func (p *fakePort) output() string { return p.sent.String() }

// statusBytes extracts the ACK/NAK reply bytes from the captured output.
// They cannot collide with the diagnostic text, which is printable ASCII.
func (p *fakePort) statusBytes() []byte {
	var out []byte
	for _, b := range p.sent.Bytes() {
		if b == statusAck || b == statusNak {
			out = append(out, b)
		}
	}
	return out
}

// testOptions returns protocol options scaled down so virtual timeouts take
// a few hundred Idle ticks instead of tens of seconds.
func testOptions() Options {
	return Options{
		UpdateKey:     'U',
		OfferWindow:   50 * time.Millisecond,
		HeaderTimeout: 200 * time.Millisecond,
		ChunkTimeout:  100 * time.Millisecond,
		ChunkSize:     128,
		RetryDelay:    20 * time.Millisecond,
		RebootDelay:   10 * time.Millisecond,
		StatusReply:   true,
	}
}

// buildImage assembles a complete firmware image with a correct header for
// the given payload.
func buildImage(payload []byte, version uint32) []byte {
	header := Header{
		Magic:   Magic,
		Version: version,
		Size:    uint32(len(payload) + HeaderSize),
		CRC32:   Checksum(payload),
	}
	return append(header.Encode(), payload...)
}
