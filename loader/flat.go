package loader

import (
	"fmt"
	"os"
)

// LoadFlat reads a raw machine-code image and produces a Program with a
// single read-write-execute segment at base. Execution starts at base.
func LoadFlat(path string, base uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", path)
	}

	return &Program{
		EntryPoint: base,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     data,
			MemSize:  uint32(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}},
	}, nil
}

// IsELF reports whether the file at path starts with the ELF magic bytes.
func IsELF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return false, nil
	}
	return magic == [4]byte{0x7f, 'E', 'L', 'F'}, nil
}
