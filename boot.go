package rv32boot

import "fmt"

// Handoff transfers control to a validated application image. On real
// hardware this is a one-way jump to the entry point just past the header
// and never returns; the simulator's handoff records the image and returns,
// which makes Bootloader.Run return.
type Handoff func(header Header, payload []byte)

// Bootloader is the top-level boot decision state machine: offer a short
// update window, otherwise verify and boot the resident application, and
// fall back to an unattended recovery loop when no valid application exists.
type Bootloader struct {
	link    link
	region  Region
	opts    Options
	handoff Handoff
	banner  string
}

// NewBootloader creates a boot controller over the given hardware
// capabilities. The handoff must not be nil.
func NewBootloader(port Port, clock Clock, region Region, opts Options, handoff Handoff) *Bootloader {
	return &Bootloader{
		link:    link{port: port, clock: clock},
		region:  region,
		opts:    opts,
		handoff: handoff,
		banner: "\r\n===========================================\r\n" +
			"  RV32IMZ Bootloader\r\n" +
			"  5-Level CHB Inverter Controller\r\n" +
			"===========================================\r\n\r\n",
	}
}

// Run executes the boot state machine. Each pass of the outer loop is one
// power-on: a successful update "reboots" by starting the next pass, so the
// freshly committed image is the one inspected. Run returns only after the
// handoff has been invoked for a valid resident image.
func (b *Bootloader) Run() error {
	for {
		b.link.print(b.banner)

		if b.offerUpdate() {
			b.link.print("\r\n>>> UPDATE MODE <<<\r\n")
			if err := b.runSession(); err == nil {
				b.reboot()
				continue
			}
			b.link.print("Update failed! Attempting to boot existing app...\r\n")
		}

		header, payload, err := b.verifyResident()
		if err == nil {
			b.link.print("Application verified OK!\r\n")
			b.link.print(fmt.Sprintf("App version: %s\r\nApp size: %d bytes\r\n",
				FormatVersion(header.Version), header.Size))
			b.link.print("Jumping to application...\r\n")
			pkgLog.Infof("booting application version %s", FormatVersion(header.Version))
			b.handoff(header, payload)
			return nil
		}
		b.reportResident(err)

		// No valid application to fall back to: accept firmware
		// unattended until an upload succeeds.
		b.link.print("Entering recovery mode...\r\nSend firmware via UART to recover.\r\n")
		for {
			if err := b.runSession(); err == nil {
				break
			}
			b.link.sleep(b.opts.RetryDelay)
		}
		b.reboot()
	}
}

// offerUpdate presents the boot window. It returns true only if the operator
// sends the update key; any other byte, or the window elapsing, declines.
// The window is bounded so unattended systems never hang here.
func (b *Bootloader) offerUpdate() bool {
	b.link.print(fmt.Sprintf("Press '%c' for update mode (%ds timeout)...\r\n",
		b.opts.UpdateKey, int(b.opts.OfferWindow.Seconds())))

	start := b.link.clock.Now()
	dots := 0
	for b.link.clock.Now()-start < b.opts.OfferWindow {
		if c, ok := b.link.port.TryRecvByte(); ok {
			b.link.print("\r\n")
			return c|0x20 == b.opts.UpdateKey|0x20
		}
		// Visual countdown for the operator.
		if elapsed := b.link.clock.Now() - start; int(elapsed/(b.opts.OfferWindow/6)) > dots {
			b.link.port.SendByte('.')
			dots++
		}
		b.link.clock.Idle()
	}
	b.link.print("\r\n")
	return false
}

func (b *Bootloader) runSession() error {
	b.link.print("Waiting for firmware upload...\r\n")
	return NewSession(b.link.port, b.link.clock, b.region, b.opts).Run()
}

// verifyResident validates the image currently in the application region:
// magic, size bound, then CRC over the stored payload.
func (b *Bootloader) verifyResident() (Header, []byte, error) {
	b.link.print("Verifying application...\r\n")
	contents, err := b.region.Read()
	if err != nil {
		return Header{}, nil, err
	}
	header, err := ParseHeader(contents)
	if err != nil {
		return Header{}, nil, err
	}
	if err := header.CheckStructure(b.region.Capacity()); err != nil {
		return Header{}, nil, err
	}
	payload := contents[HeaderSize:header.Size]
	if err := header.Validate(Checksum(payload), b.region.Capacity()); err != nil {
		return Header{}, nil, err
	}
	return header, payload, nil
}

// reportResident names the failed check. An invalid resident image is not an
// error to propagate anywhere; it triggers the recovery policy.
func (b *Bootloader) reportResident(err error) {
	switch e := err.(type) {
	case *MagicError:
		b.link.print("No valid application (bad magic)\r\n")
	case *SizeError:
		b.link.print("Application too large\r\n")
	case *CRCError:
		b.link.print(fmt.Sprintf("CRC check failed - Expected: 0x%08X, Calculated: 0x%08X\r\n",
			e.Expected, e.Computed))
	default:
		b.link.print(fmt.Sprintf("Application check failed: %v\r\n", err))
	}
	b.link.print("\r\nERROR: No valid application found!\r\n")
	pkgLog.Errorf("resident image invalid: %v", err)
}

func (b *Bootloader) reboot() {
	b.link.print(fmt.Sprintf("Update completed successfully!\r\nRebooting in %ds...\r\n",
		int(b.opts.RebootDelay.Seconds())))
	b.link.sleep(b.opts.RebootDelay)
}
