package rv32boot

import (
	"hash/crc32"
	"testing"
)

func TestChecksumVectors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint32
	}{
		{
			name:     "empty input",
			data:     nil,
			expected: 0x00000000,
		},
		{
			name:     "check string",
			data:     []byte("123456789"),
			expected: 0xCBF43926,
		},
		{
			name:     "quick brown fox",
			data:     []byte("The quick brown fox jumps over the lazy dog"),
			expected: 0x414FA339,
		},
		{
			name:     "single zero byte",
			data:     []byte{0x00},
			expected: 0xD202EF8D,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.expected {
				t.Errorf("Checksum() = 0x%08X, want 0x%08X", got, tt.expected)
			}
		})
	}
}

// The table must match the one generated by the standard reflected CRC32
// algorithm for polynomial 0xEDB88320, which is exactly what hash/crc32
// implements as IEEE.
func TestChecksumMatchesIEEE(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}

	for _, n := range []int{0, 1, 19, 20, 128, 1024} {
		if got, want := Checksum(data[:n]), crc32.ChecksumIEEE(data[:n]); got != want {
			t.Errorf("Checksum(%d bytes) = 0x%08X, want 0x%08X", n, got, want)
		}
	}
}

func TestDigestIncrementalMatchesBulk(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i * 31)
	}
	want := Checksum(data)

	for _, chunk := range []int{1, 3, 7, 128, 333, len(data)} {
		d := NewDigest()
		for off := 0; off < len(data); off += chunk {
			end := off + chunk
			if end > len(data) {
				end = len(data)
			}
			d.Write(data[off:end])
		}
		if got := d.Sum32(); got != want {
			t.Errorf("chunk size %d: Sum32() = 0x%08X, want 0x%08X", chunk, got, want)
		}
	}
}

func TestDigestIntermediateReads(t *testing.T) {
	d := NewDigest()
	d.Write([]byte("1234"))
	// Reading the running value must not disturb the accumulator.
	_ = d.Sum32()
	d.Write([]byte("56789"))
	if got := d.Sum32(); got != 0xCBF43926 {
		t.Errorf("Sum32() after intermediate read = 0x%08X, want 0xCBF43926", got)
	}
}
