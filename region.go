package rv32boot

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Region is the application region: a fixed-capacity range of persistent
// storage holding exactly one firmware image. Read returns the full region
// contents (capacity bytes, erased areas read as 0xFF). Commit replaces the
// stored image atomically: after an interrupted commit a subsequent Read must
// observe either the old image or the new one, never a blend. Commit does not
// judge image validity beyond the capacity bound; callers commit only images
// that already passed validation in memory.
type Region interface {
	Capacity() int
	Read() ([]byte, error)
	Commit(image []byte) error
}

const erasedByte = 0xFF

type memRegion struct {
	capacity int
	contents []byte
}

// NewMemoryRegion returns an in-memory Region of the given capacity,
// initially erased. This is the "simulated flash" of the reference
// bootloader and the backing used by tests.
func NewMemoryRegion(capacity int) Region {
	return &memRegion{capacity: capacity, contents: erased(capacity)}
}

func erased(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = erasedByte
	}
	return buf
}

func (r *memRegion) Capacity() int { return r.capacity }

func (r *memRegion) Read() ([]byte, error) {
	out := make([]byte, r.capacity)
	copy(out, r.contents)
	return out, nil
}

func (r *memRegion) Commit(image []byte) error {
	if len(image) > r.capacity {
		return &SizeError{Size: uint32(len(image)), Capacity: uint32(r.capacity)}
	}
	// Stage a full replacement buffer, then swap in a single assignment.
	staged := erased(r.capacity)
	copy(staged, image)
	r.contents = staged
	return nil
}

type fileRegion struct {
	path     string
	capacity int
}

// NewFileRegion returns a Region persisted to a file, standing in for the
// SoC's application flash. Commit writes a staging file and renames it over
// the region, so a crash mid-commit leaves the previous image intact. A
// missing file reads as fully erased.
func NewFileRegion(path string, capacity int) (Region, error) {
	if existing, err := os.Stat(path); err == nil && existing.Size() > int64(capacity) {
		return nil, errors.Errorf("region file %s is %d bytes, capacity is %d", path, existing.Size(), capacity)
	}
	return &fileRegion{path: path, capacity: capacity}, nil
}

func (r *fileRegion) Capacity() int { return r.capacity }

func (r *fileRegion) Read() ([]byte, error) {
	buf := erased(r.capacity)
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return buf, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read region file")
	}
	copy(buf, data)
	return buf, nil
}

func (r *fileRegion) Commit(image []byte) error {
	if len(image) > r.capacity {
		return &SizeError{Size: uint32(len(image)), Capacity: uint32(r.capacity)}
	}
	staged := erased(r.capacity)
	copy(staged, image)

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".region-staging-*")
	if err != nil {
		return errors.Wrap(err, "create staging file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(staged); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write staging file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync staging file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close staging file")
	}
	// The rename is the single commit point.
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Wrap(err, "commit region file")
	}
	return nil
}
