package rv32boot

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// SerialPort adapts a serial device to the Port interface. Reads use a short
// driver timeout so TryRecvByte stays non-blocking from the state machines'
// point of view.
type SerialPort struct {
	port *serial.Port
}

// OpenSerialPort opens the named serial device at the given baud rate.
func OpenSerialPort(name string, baud int) (*SerialPort, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	// On Linux with USB serial ports, flushing immediately after open can
	// miss data still working its way up the driver stack. Delay a little
	// before discarding whatever is buffered.
	time.Sleep(100 * time.Millisecond)
	port.Flush()
	return &SerialPort{port: port}, nil
}

func (p *SerialPort) SendByte(b byte) {
	p.port.Write([]byte{b})
}

func (p *SerialPort) TryRecvByte() (byte, bool) {
	var buf [1]byte
	n, err := p.port.Read(buf[:])
	if err != nil || n == 0 {
		return 0, false
	}
	return buf[0], true
}

// Close releases the underlying device.
func (p *SerialPort) Close() error {
	return p.port.Close()
}
