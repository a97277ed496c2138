// machine_bus.go - Machine bus for the GameStation

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

/*
machine_bus.go - Machine Bus for the GameStation

This module implements the 32-bit bus the simulated CPU drives. It provides a
contiguous RAM segment and a memory-mapped I/O table, and forwards every
access that falls inside a mapped region to the owning device with its exact
address and width.

Core Features:

    One RAM segment at a configurable base (default 0x10000000, 4MB), the
    data segment the CPU keeps texture sources in.
    Memory-mapped I/O regions registered with MapIO, looked up through a page
    table keyed by addr &^ (PAGE_SIZE-1).
    Little-endian Read8/16/32 and Write8/16/32.
    Unmapped accesses outside RAM read as zero and are otherwise ignored.

Technical Details:

    I/O reads are word-granular: the device returns the aligned word and the
    bus extracts the requested byte lanes.
    I/O writes keep their width: onWrite receives the byte address, the value
    and the size in bytes. Writes that straddle a word boundary are split into
    byte writes so a device never sees lane+size > 4.
    Mappings are sealed once the CPU starts so the page table can be read
    without locking.
*/

package main

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	BUS_RAM_BASE = 0x10000000
	BUS_RAM_SIZE = 4 * 1024 * 1024
	PAGE_SIZE    = 0x100
	PAGE_MASK    = ^uint32(PAGE_SIZE - 1)
)

type Bus32 interface {
	/*
		Bus32 defines the interface for memory operations seen by a
		CPU. Implementations must be safe for concurrent use and support
		memory-mapped I/O.
	*/

	Read8(addr uint32) uint8
	Write8(addr uint32, value uint8)
	Read16(addr uint32) uint16
	Write16(addr uint32, value uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, value uint32)
	Reset()
	GetMemory() []byte
}

type MachineBus struct {
	/*
		MachineBus implements Bus32 over one RAM segment plus the I/O
		mapping table.
	*/

	memMutex sync.RWMutex
	base     uint32
	memory   []byte
	mapping  map[uint32][]IORegion

	// Sealed state to prevent I/O mapping after execution has started
	sealed atomic.Bool
}

type IORegion struct {
	/*
		IORegion represents a memory-mapped I/O region. onRead is called
		with a word-aligned address; onWrite with the byte address, the
		value in the low size*8 bits, and the size.
	*/
	start   uint32
	end     uint32
	onRead  func(addr uint32) uint32
	onWrite func(addr uint32, value uint32, size int)
}

// NewMachineBus creates a bus with the default RAM segment.
func NewMachineBus() *MachineBus {
	return NewMachineBusWithMemory(BUS_RAM_BASE, BUS_RAM_SIZE)
}

// NewMachineBusWithMemory creates a bus with size bytes of RAM at base.
func NewMachineBusWithMemory(base uint32, size int) *MachineBus {
	return &MachineBus{
		base:    base,
		memory:  make([]byte, size),
		mapping: make(map[uint32][]IORegion),
	}
}

func (bus *MachineBus) GetMemory() []byte {
	/*
		GetMemory returns a direct reference to RAM. Index 0 is the
		segment base address.
	*/
	return bus.memory
}

// MemoryBase returns the address of the first RAM byte.
func (bus *MachineBus) MemoryBase() uint32 {
	return bus.base
}

// SealMappings prevents further MapIO calls.
func (bus *MachineBus) SealMappings() {
	bus.sealed.CompareAndSwap(false, true)
}

func (bus *MachineBus) MapIO(start, end uint32, onRead func(addr uint32) uint32, onWrite func(addr uint32, value uint32, size int)) {
	if bus.sealed.Load() {
		panic(fmt.Sprintf("MapIO called after execution started (mapping range $%08X-$%08X)", start, end))
	}
	region := IORegion{
		start:   start,
		end:     end,
		onRead:  onRead,
		onWrite: onWrite,
	}

	firstPage := start & PAGE_MASK
	lastPage := end & PAGE_MASK
	for page := firstPage; ; page += PAGE_SIZE {
		bus.mapping[page] = append(bus.mapping[page], region)
		if page == lastPage {
			break // lastPage may be the top page of the address space
		}
	}
}

// findIORegion looks up the I/O region for the given address.
func (bus *MachineBus) findIORegion(addr uint32) *IORegion {
	if regions, exists := bus.mapping[addr&PAGE_MASK]; exists {
		for i := range regions {
			if addr >= regions[i].start && addr <= regions[i].end {
				return &regions[i]
			}
		}
	}
	return nil
}

// ramOffset translates addr into RAM, reporting whether n bytes fit.
func (bus *MachineBus) ramOffset(addr uint32, n int) (int, bool) {
	if addr < bus.base {
		return 0, false
	}
	off := uint64(addr - bus.base)
	if off+uint64(n) > uint64(len(bus.memory)) {
		return 0, false
	}
	return int(off), true
}

// ioReadByte returns the byte at addr from a mapped region.
func (bus *MachineBus) ioReadByte(region *IORegion, addr uint32) uint8 {
	if region.onRead == nil {
		return 0
	}
	word := region.onRead(addr &^ 3)
	return uint8(word >> ((addr & 3) * 8))
}

func (bus *MachineBus) Read8(addr uint32) uint8 {
	if region := bus.findIORegion(addr); region != nil {
		return bus.ioReadByte(region, addr)
	}
	off, ok := bus.ramOffset(addr, 1)
	if !ok {
		return 0
	}
	bus.memMutex.RLock()
	defer bus.memMutex.RUnlock()
	return bus.memory[off]
}

func (bus *MachineBus) Read16(addr uint32) uint16 {
	if region := bus.findIORegion(addr); region != nil {
		if addr&3 <= 2 && region.onRead != nil {
			return uint16(region.onRead(addr&^3) >> ((addr & 3) * 8))
		}
		return uint16(bus.Read8(addr)) | uint16(bus.Read8(addr+1))<<8
	}
	off, ok := bus.ramOffset(addr, 2)
	if !ok {
		return 0
	}
	bus.memMutex.RLock()
	defer bus.memMutex.RUnlock()
	return binary.LittleEndian.Uint16(bus.memory[off : off+2])
}

func (bus *MachineBus) Read32(addr uint32) uint32 {
	if region := bus.findIORegion(addr); region != nil {
		if addr&3 == 0 && region.onRead != nil {
			return region.onRead(addr)
		}
		return uint32(bus.Read16(addr)) | uint32(bus.Read16(addr+2))<<16
	}
	off, ok := bus.ramOffset(addr, 4)
	if !ok {
		return 0
	}
	bus.memMutex.RLock()
	defer bus.memMutex.RUnlock()
	return binary.LittleEndian.Uint32(bus.memory[off : off+4])
}

// ioWrite forwards a write that fits in one word, splitting otherwise.
func (bus *MachineBus) ioWrite(region *IORegion, addr uint32, value uint32, size int) {
	if region.onWrite == nil {
		return
	}
	if int(addr&3)+size <= 4 {
		region.onWrite(addr, value, size)
		return
	}
	for i := 0; i < size; i++ {
		bus.Write8(addr+uint32(i), uint8(value>>(i*8)))
	}
}

func (bus *MachineBus) Write8(addr uint32, value uint8) {
	if region := bus.findIORegion(addr); region != nil {
		bus.ioWrite(region, addr, uint32(value), 1)
		return
	}
	off, ok := bus.ramOffset(addr, 1)
	if !ok {
		return
	}
	bus.memMutex.Lock()
	bus.memory[off] = value
	bus.memMutex.Unlock()
}

func (bus *MachineBus) Write16(addr uint32, value uint16) {
	if region := bus.findIORegion(addr); region != nil {
		bus.ioWrite(region, addr, uint32(value), 2)
		return
	}
	off, ok := bus.ramOffset(addr, 2)
	if !ok {
		return
	}
	bus.memMutex.Lock()
	binary.LittleEndian.PutUint16(bus.memory[off:off+2], value)
	bus.memMutex.Unlock()
}

func (bus *MachineBus) Write32(addr uint32, value uint32) {
	if region := bus.findIORegion(addr); region != nil {
		bus.ioWrite(region, addr, value, 4)
		return
	}
	off, ok := bus.ramOffset(addr, 4)
	if !ok {
		return
	}
	bus.memMutex.Lock()
	binary.LittleEndian.PutUint32(bus.memory[off:off+4], value)
	bus.memMutex.Unlock()
}

// Write performs a write of 1, 2 or 4 bytes.
func (bus *MachineBus) Write(addr uint32, value uint32, size int) {
	switch size {
	case 1:
		bus.Write8(addr, uint8(value))
	case 2:
		bus.Write16(addr, uint16(value))
	default:
		bus.Write32(addr, value)
	}
}

// Read performs a read of 1, 2 or 4 bytes, zero-extended.
func (bus *MachineBus) Read(addr uint32, size int) uint32 {
	switch size {
	case 1:
		return uint32(bus.Read8(addr))
	case 2:
		return uint32(bus.Read16(addr))
	default:
		return bus.Read32(addr)
	}
}

// LoadBytes copies data into RAM at addr, bypassing I/O.
func (bus *MachineBus) LoadBytes(addr uint32, data []byte) error {
	off, ok := bus.ramOffset(addr, len(data))
	if !ok {
		return fmt.Errorf("load of %d bytes at 0x%08X outside RAM", len(data), addr)
	}
	bus.memMutex.Lock()
	copy(bus.memory[off:], data)
	bus.memMutex.Unlock()
	return nil
}

func (bus *MachineBus) Reset() {
	/*
		Reset clears RAM. I/O mappings are kept; devices reset
		themselves.
	*/
	bus.memMutex.Lock()
	clear(bus.memory)
	bus.memMutex.Unlock()
}
