package rv32boot

import "sync"

// crcPoly is the reflected CRC32 polynomial shared by the bootloader, the
// host tools and the image header format.
const crcPoly = 0xEDB88320

var (
	crcTable [256]uint32
	crcOnce  sync.Once
)

func crcInit() {
	for i := uint32(0); i < 256; i++ {
		crc := i
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcPoly
			} else {
				crc >>= 1
			}
		}
		crcTable[i] = crc
	}
}

// Digest is an incremental CRC32 accumulator (polynomial 0xEDB88320,
// reflected, initial value 0xFFFFFFFF, final complement). Feeding bytes in
// any chunking produces the same result as a single bulk computation, which
// is what lets Session checksum a firmware payload as it streams in.
type Digest struct {
	crc uint32
}

// NewDigest returns a Digest ready to accept bytes.
func NewDigest() *Digest {
	crcOnce.Do(crcInit)
	return &Digest{crc: 0xFFFFFFFF}
}

// Write folds p into the accumulator. It never fails; the error return
// satisfies io.Writer.
func (d *Digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, b := range p {
		crc = crcTable[byte(crc)^b] ^ (crc >> 8)
	}
	d.crc = crc
	return len(p), nil
}

// Sum32 returns the CRC of the bytes written so far. It does not reset the
// accumulator, so intermediate readings are allowed.
func (d *Digest) Sum32() uint32 {
	return ^d.crc
}

// Checksum computes the CRC32 of data in one call. Empty input is accepted
// and yields 0.
func Checksum(data []byte) uint32 {
	d := NewDigest()
	d.Write(data)
	return d.Sum32()
}
