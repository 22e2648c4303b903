package rv32boot

import (
	"bytes"
	"testing"
)

func TestHeaderEncodeParse(t *testing.T) {
	h := Header{
		Magic:    Magic,
		Version:  EncodeVersion(1, 2, 3),
		Size:     1234,
		CRC32:    0xCAFEF00D,
		Reserved: 42,
	}
	raw := h.Encode()
	if len(raw) != HeaderSize {
		t.Fatalf("encoded header is %d bytes, want %d", len(raw), HeaderSize)
	}
	// Little-endian on the wire: 0xB007ABCD starts with 0xCD.
	if !bytes.Equal(raw[:4], []byte{0xCD, 0xAB, 0x07, 0xB0}) {
		t.Errorf("magic bytes = % X, want CD AB 07 B0", raw[:4])
	}

	parsed, err := ParseHeader(raw)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if parsed != h {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, h)
	}
}

func TestParseHeaderShortInput(t *testing.T) {
	if _, err := ParseHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Error("ParseHeader accepted a short buffer")
	}
}

func TestValidate(t *testing.T) {
	const capacity = 16 * 1024
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	crc := Checksum(payload)
	valid := Header{Magic: Magic, Size: HeaderSize + 4, CRC32: crc}

	tests := []struct {
		name    string
		header  Header
		crc     uint32
		wantErr func(error) bool
	}{
		{
			name:    "valid image",
			header:  valid,
			crc:     crc,
			wantErr: nil,
		},
		{
			name:   "wrong magic",
			header: Header{Magic: 0xDEADBEEF, Size: HeaderSize + 4, CRC32: crc},
			crc:    crc,
			wantErr: func(err error) bool {
				_, ok := err.(*MagicError)
				return ok
			},
		},
		{
			name:   "one byte over capacity",
			header: Header{Magic: Magic, Size: capacity + 1, CRC32: crc},
			crc:    crc,
			wantErr: func(err error) bool {
				_, ok := err.(*SizeError)
				return ok
			},
		},
		{
			name:   "size below header length",
			header: Header{Magic: Magic, Size: HeaderSize - 1},
			crc:    0,
			wantErr: func(err error) bool {
				_, ok := err.(*SizeError)
				return ok
			},
		},
		{
			name:   "crc mismatch",
			header: valid,
			crc:    crc ^ 1,
			wantErr: func(err error) bool {
				e, ok := err.(*CRCError)
				return ok && e.Expected == crc && e.Computed == crc^1
			},
		},
		{
			name:    "zero length payload",
			header:  Header{Magic: Magic, Size: HeaderSize, CRC32: Checksum(nil)},
			crc:     Checksum(nil),
			wantErr: nil,
		},
		{
			// Magic is the cheapest and most decisive check, so it
			// must win over the also-wrong CRC.
			name:   "magic checked before crc",
			header: Header{Magic: 0, Size: HeaderSize + 4, CRC32: crc},
			crc:    crc ^ 1,
			wantErr: func(err error) bool {
				_, ok := err.(*MagicError)
				return ok
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.header.Validate(tt.crc, capacity)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
			} else if !tt.wantErr(err) {
				t.Errorf("Validate() = %v, wrong classification", err)
			}
		})
	}
}

// Flipping any single validated field of a well-formed image must make it
// invalid.
func TestValidateFieldFlips(t *testing.T) {
	const capacity = 1024
	payload := []byte("inverter control loop")
	base := Header{Magic: Magic, Size: uint32(HeaderSize + len(payload)), CRC32: Checksum(payload)}

	if err := base.Validate(Checksum(payload), capacity); err != nil {
		t.Fatalf("base image invalid: %v", err)
	}

	flips := map[string]Header{
		"magic": {Magic: base.Magic ^ 1, Size: base.Size, CRC32: base.CRC32},
		"size":  {Magic: base.Magic, Size: base.Size ^ 0x80000000, CRC32: base.CRC32},
		"crc":   {Magic: base.Magic, Size: base.Size, CRC32: base.CRC32 ^ 1},
	}
	for name, h := range flips {
		if err := h.Validate(Checksum(payload), capacity); err == nil {
			t.Errorf("flipped %s field still validates", name)
		}
	}

	// Reserved is preserved but never validated.
	reserved := base
	reserved.Reserved = 0xFFFFFFFF
	if err := reserved.Validate(Checksum(payload), capacity); err != nil {
		t.Errorf("reserved field affected validation: %v", err)
	}
}

func TestVersionFormat(t *testing.T) {
	v := EncodeVersion(1, 2, 3)
	if v != 0x00010203 {
		t.Errorf("EncodeVersion(1,2,3) = 0x%08X, want 0x00010203", v)
	}
	if got := FormatVersion(v); got != "1.2.3" {
		t.Errorf("FormatVersion = %q, want 1.2.3", got)
	}
}
