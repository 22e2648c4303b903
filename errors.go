package rv32boot

import "fmt"

// MagicError indicates that the image header does not carry the magic
// sentinel, i.e. the bytes are not a firmware image at all.
type MagicError struct {
	Got uint32
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("bad magic 0x%08X, want 0x%08X", e.Got, uint32(Magic))
}

// SizeError indicates that the declared image size does not fit the
// application region.
type SizeError struct {
	Size     uint32
	Capacity uint32
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("image size %d outside valid range %d-%d", e.Size, HeaderSize, e.Capacity)
}

// CRCError indicates that the CRC computed over the payload does not match
// the header. Both values are carried for field diagnosis: a stored-vs-
// computed pair distinguishes a corrupt transfer from a corrupt image file.
type CRCError struct {
	Expected uint32
	Computed uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("crc mismatch: expected 0x%08X, computed 0x%08X", e.Expected, e.Computed)
}

// TimeoutError indicates that a receive phase did not complete in time.
// Bytes consumed before the timeout are discarded, so a timeout is fatal to
// the phase that hit it.
type TimeoutError struct {
	// Phase names the transfer phase that timed out ("header" or "payload").
	Phase string
	Want  int
	Got   int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for %s: received %d of %d bytes", e.Phase, e.Got, e.Want)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	_, ok := err.(*TimeoutError)
	return ok
}
