package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/feaksel/rv32boot"
	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// loadFirmware reads a firmware file. Intel HEX input (.hex/.ihex) is
// flattened to a contiguous binary; anything else is taken as raw bytes.
func loadFirmware(fileName string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".hex", ".ihex":
		file, err := os.Open(fileName)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		mem := gohex.NewMemory()
		if err := mem.ParseIntelHex(file); err != nil {
			return nil, errors.Wrap(err, "parse hex file")
		}
		return flatten(mem)
	default:
		return os.ReadFile(fileName)
	}
}

// flatten lays the hex segments out as one contiguous image starting at the
// lowest address, with gaps filled with 0xFF like erased flash.
func flatten(mem *gohex.Memory) ([]byte, error) {
	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, errors.New("hex file contains no data")
	}

	base := segments[0].Address
	end := base
	for _, segment := range segments {
		if segment.Address < base {
			base = segment.Address
		}
		if top := segment.Address + uint32(len(segment.Data)); top > end {
			end = top
		}
	}

	image := make([]byte, end-base)
	for i := range image {
		image[i] = 0xFF
	}
	for _, segment := range segments {
		copy(image[segment.Address-base:], segment.Data)
		log.Debugf("loaded segment at %X length %v", segment.Address, len(segment.Data))
	}
	return image, nil
}

// wrapImage prepends the 20-byte bootloader header unless the data already
// starts with one (detected by the magic sentinel).
func wrapImage(data []byte, version uint32) []byte {
	if len(data) >= rv32boot.HeaderSize &&
		binary.LittleEndian.Uint32(data) == rv32boot.Magic {
		log.Infof("firmware already has bootloader header")
		return data
	}

	crc := rv32boot.Checksum(data)
	header := rv32boot.Header{
		Magic:   rv32boot.Magic,
		Version: version,
		Size:    uint32(len(data) + rv32boot.HeaderSize),
		CRC32:   crc,
	}
	log.Infof("adding header: version %s, size %d, crc 0x%08X",
		rv32boot.FormatVersion(version), header.Size, crc)
	return append(header.Encode(), data...)
}
