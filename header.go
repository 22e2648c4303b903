package rv32boot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Image header constants.
const (
	// Magic is the sentinel identifying a valid firmware image.
	Magic = 0xB007ABCD

	// HeaderSize is the encoded size of Header in bytes.
	HeaderSize = 20
)

// Header is the fixed-layout firmware image header. On the wire and in the
// application region it is packed little-endian with no padding:
// magic(4) version(4) size(4) crc32(4) reserved(4).
type Header struct {
	Magic   uint32
	Version uint32
	// Size is the total image size in bytes, header included.
	Size uint32
	// CRC32 covers only the payload bytes following the header.
	CRC32 uint32
	// Reserved is preserved but never validated.
	Reserved uint32
}

// ParseHeader decodes the first HeaderSize bytes of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errors.Errorf("header needs %d bytes, have %d", HeaderSize, len(data))
	}
	return Header{
		Magic:    binary.LittleEndian.Uint32(data[0:]),
		Version:  binary.LittleEndian.Uint32(data[4:]),
		Size:     binary.LittleEndian.Uint32(data[8:]),
		CRC32:    binary.LittleEndian.Uint32(data[12:]),
		Reserved: binary.LittleEndian.Uint32(data[16:]),
	}, nil
}

// Encode returns the packed little-endian representation of the header.
func (h Header) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// PayloadSize returns the number of payload bytes the header declares.
// Only meaningful after CheckStructure has passed.
func (h Header) PayloadSize() int {
	return int(h.Size) - HeaderSize
}

// CheckStructure performs the cheap structural checks that do not require
// the payload: the magic sentinel and the declared size against the region
// capacity. A size of exactly HeaderSize (empty payload) is legal.
func (h Header) CheckStructure(capacity int) error {
	if h.Magic != Magic {
		return &MagicError{Got: h.Magic}
	}
	if h.Size < HeaderSize || h.Size > uint32(capacity) {
		return &SizeError{Size: h.Size, Capacity: uint32(capacity)}
	}
	return nil
}

// Validate classifies the image as valid or invalid given the CRC computed
// over its payload. The checks run short-circuit in order magic, size, crc;
// nil means valid. Validate reads nothing itself: callers supply the bytes
// and compute payloadCRC, typically with Checksum or a Digest.
func (h Header) Validate(payloadCRC uint32, capacity int) error {
	if err := h.CheckStructure(capacity); err != nil {
		return err
	}
	if h.CRC32 != payloadCRC {
		return &CRCError{Expected: h.CRC32, Computed: payloadCRC}
	}
	return nil
}

// EncodeVersion packs a major.minor.patch triple the way the build tools do.
func EncodeVersion(major, minor, patch int) uint32 {
	return uint32(major)<<16 | uint32(minor&0xFF)<<8 | uint32(patch&0xFF)
}

// FormatVersion renders a packed version field as "major.minor.patch".
func FormatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>16, (v>>8)&0xFF, v&0xFF)
}
