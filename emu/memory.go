package emu

import "encoding/binary"

// pageSize is the granularity of sparse memory allocation.
const pageSize = 4096

// Memory is a sparse, byte-addressable, little-endian memory. Pages are
// allocated on first touch; reads from untouched pages return zero, matching
// the reset-value policy of the memory arrays it models.
type Memory struct {
	pages map[uint32]*[pageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{
		pages: make(map[uint32]*[pageSize]byte),
	}
}

func (m *Memory) page(addr uint32, allocate bool) *[pageSize]byte {
	base := addr / pageSize
	p := m.pages[base]
	if p == nil && allocate {
		p = &[pageSize]byte{}
		m.pages[base] = p
	}
	return p
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) uint8 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr%pageSize]
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value uint8) {
	m.page(addr, true)[addr%pageSize] = value
}

// Read16 reads a little-endian half-word.
func (m *Memory) Read16(addr uint32) uint16 {
	var buf [2]byte
	m.readBytes(addr, buf[:])
	return binary.LittleEndian.Uint16(buf[:])
}

// Write16 writes a little-endian half-word.
func (m *Memory) Write16(addr uint32, value uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	m.writeBytes(addr, buf[:])
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) uint32 {
	var buf [4]byte
	m.readBytes(addr, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	m.writeBytes(addr, buf[:])
}

func (m *Memory) readBytes(addr uint32, buf []byte) {
	for i := range buf {
		buf[i] = m.Read8(addr + uint32(i))
	}
}

func (m *Memory) writeBytes(addr uint32, buf []byte) {
	for i, b := range buf {
		m.Write8(addr+uint32(i), b)
	}
}

// LoadImage copies a raw byte image into memory at the given base address.
// This is the contract the bootloader uses to program instruction and data
// memory: a flat sequence of machine-code words, no framing.
func (m *Memory) LoadImage(base uint32, image []byte) {
	m.writeBytes(base, image)
}

// LoadWords copies a sequence of 32-bit words into memory at the given base
// address, one word every four bytes.
func (m *Memory) LoadWords(base uint32, words []uint32) {
	for i, w := range words {
		m.Write32(base+uint32(i)*4, w)
	}
}
