package rv32boot

import "fmt"

// SessionState identifies where an update session is in its protocol state
// machine. A session moves strictly forward; StateFailed is terminal and
// reachable from every non-terminal state.
type SessionState int

const (
	StateAwaitHeader SessionState = iota
	StateHeaderReceived
	StateReceivingPayload
	StateVerified
	StateCommitted
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitHeader:
		return "await-header"
	case StateHeaderReceived:
		return "header-received"
	case StateReceivingPayload:
		return "receiving-payload"
	case StateVerified:
		return "verified"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Status reply bytes, following the XMODEM convention.
const (
	statusAck = 0x06
	statusNak = 0x15
)

// Session runs one firmware transfer attempt: receive a header, stream the
// payload while accumulating its CRC, verify, and commit to the application
// region. Session state is transient; construct a fresh Session per attempt.
type Session struct {
	link   link
	region Region
	opts   Options

	state  SessionState
	header Header
}

// NewSession creates a session over the given port and clock, committing to
// region on success.
func NewSession(port Port, clock Clock, region Region, opts Options) *Session {
	return &Session{
		link:   link{port: port, clock: clock},
		region: region,
		opts:   opts,
		state:  StateAwaitHeader,
	}
}

// State returns the session's current protocol state.
func (s *Session) State() SessionState { return s.state }

// Header returns the image header received so far. Zero until the session
// has left StateAwaitHeader.
func (s *Session) Header() Header { return s.header }

// Run drives the session to StateCommitted or StateFailed and returns nil or
// the error that caused the failure: a TimeoutError, MagicError, SizeError or
// CRCError. The application region is only mutated on the Verified to
// Committed transition, so any failure leaves it untouched.
func (s *Session) Run() error {
	err := s.run()
	if err != nil {
		from := s.state
		s.state = StateFailed
		s.report(from, err)
	}
	return err
}

func (s *Session) run() error {
	s.link.print(fmt.Sprintf("Waiting for firmware header (%ds timeout)...\r\n",
		int(s.opts.HeaderTimeout.Seconds())))

	raw, err := s.link.receive(HeaderSize, s.opts.HeaderTimeout, "header")
	if err != nil {
		return err
	}
	header, err := ParseHeader(raw)
	if err != nil {
		return err
	}
	// Structural rejection is cheap and happens before any payload byte is
	// accepted.
	if err := header.CheckStructure(s.region.Capacity()); err != nil {
		return err
	}
	s.header = header
	s.state = StateHeaderReceived
	pkgLog.Debugf("header accepted: version %s, size %d", FormatVersion(header.Version), header.Size)

	s.link.print(fmt.Sprintf("Firmware version: %s\r\nSize: %d bytes\r\n",
		FormatVersion(header.Version), header.Size))
	s.link.print("Programming")

	s.state = StateReceivingPayload
	digest := NewDigest()
	payload := make([]byte, 0, header.PayloadSize())
	for remaining := header.PayloadSize(); remaining > 0; {
		n := s.opts.ChunkSize
		if remaining < n {
			n = remaining
		}
		chunk, err := s.link.receive(n, s.opts.ChunkTimeout, "payload")
		if err != nil {
			return err
		}
		digest.Write(chunk)
		payload = append(payload, chunk...)
		remaining -= n
		s.link.port.SendByte('.')
	}
	s.link.print(" done\r\n")

	if computed := digest.Sum32(); computed != header.CRC32 {
		s.sendStatus(statusNak)
		return &CRCError{Expected: header.CRC32, Computed: computed}
	}
	s.state = StateVerified
	s.sendStatus(statusAck)

	image := make([]byte, 0, header.Size)
	image = append(image, header.Encode()...)
	image = append(image, payload...)
	if err := s.region.Commit(image); err != nil {
		return err
	}
	s.state = StateCommitted
	s.link.print("Firmware update successful!\r\n")
	pkgLog.Infof("committed image version %s, %d bytes", FormatVersion(header.Version), header.Size)
	return nil
}

func (s *Session) sendStatus(b byte) {
	if s.opts.StatusReply {
		s.link.port.SendByte(b)
	}
}

// report surfaces which check failed, over the link for the operator and on
// the package logger. CRC mismatches include both values so a bad cable can
// be told apart from a corrupt image file without extra tooling.
func (s *Session) report(from SessionState, err error) {
	switch e := err.(type) {
	case *TimeoutError:
		s.link.print(fmt.Sprintf("\r\nERROR: %s timeout (%d of %d bytes)\r\n", e.Phase, e.Got, e.Want))
	case *MagicError:
		s.link.print(fmt.Sprintf("ERROR: Invalid magic - 0x%08X\r\n", e.Got))
	case *SizeError:
		s.link.print(fmt.Sprintf("ERROR: Firmware too large (%d bytes, max %d)\r\n", e.Size, e.Capacity))
	case *CRCError:
		s.link.print(fmt.Sprintf("ERROR: CRC mismatch! Expected: 0x%08X, Calculated: 0x%08X\r\n",
			e.Expected, e.Computed))
	default:
		s.link.print(fmt.Sprintf("ERROR: %v\r\n", err))
	}
	pkgLog.Errorf("update session failed in state %s: %v", from, err)
}
