// machine_bus_test.go - Machine bus tests

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

package main

import "testing"

type busAccess struct {
	addr  uint32
	value uint32
	size  int
}

// recordingRegion maps a device that records writes and serves reads from a
// fixed word pattern.
func recordingRegion(bus *MachineBus, start, end uint32) *[]busAccess {
	var writes []busAccess
	bus.MapIO(start, end,
		func(addr uint32) uint32 { return 0x44332211 ^ addr },
		func(addr uint32, value uint32, size int) {
			writes = append(writes, busAccess{addr, value, size})
		})
	return &writes
}

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic, got none")
		}
	}()
	fn()
}

func TestMachineBus_SealPanicsOnLateMapIO(t *testing.T) {
	bus := NewMachineBus()
	bus.SealMappings()

	expectPanic(t, func() {
		bus.MapIO(0x1000, 0x10FF, nil, nil)
	})
}

func TestMachineBus_RAMReadWrite(t *testing.T) {
	bus := NewMachineBus()
	bus.Write32(BUS_RAM_BASE+0x100, 0xDEADBEEF)
	if got := bus.Read32(BUS_RAM_BASE + 0x100); got != 0xDEADBEEF {
		t.Fatalf("Read32: got 0x%08X", got)
	}
	if got := bus.Read8(BUS_RAM_BASE + 0x100); got != 0xEF {
		t.Fatalf("little-endian low byte: got 0x%02X", got)
	}
	if got := bus.Read16(BUS_RAM_BASE + 0x102); got != 0xDEAD {
		t.Fatalf("Read16: got 0x%04X", got)
	}
	bus.Write8(BUS_RAM_BASE+0x101, 0x00)
	if got := bus.Read32(BUS_RAM_BASE + 0x100); got != 0xDEAD00EF {
		t.Fatalf("after Write8: got 0x%08X", got)
	}
}

func TestMachineBus_UnmappedIgnored(t *testing.T) {
	bus := NewMachineBus()
	bus.Write32(0x00001000, 0x12345678)
	if got := bus.Read32(0x00001000); got != 0 {
		t.Fatalf("below RAM: got 0x%08X", got)
	}
	bus.Write32(BUS_RAM_BASE+BUS_RAM_SIZE-2, 0xFFFFFFFF)
	if got := bus.Read32(BUS_RAM_BASE + BUS_RAM_SIZE - 2); got != 0 {
		t.Fatalf("straddling RAM end: got 0x%08X", got)
	}
}

func TestMachineBus_IOWriteKeepsSize(t *testing.T) {
	bus := NewMachineBus()
	writes := recordingRegion(bus, 0x10080000, 0x10083FFF)

	bus.Write8(0x10080003, 0xAB)
	bus.Write16(0x10080006, 0x1234)
	bus.Write32(0x10080010, 0xCAFEBABE)

	want := []busAccess{
		{0x10080003, 0xAB, 1},
		{0x10080006, 0x1234, 2},
		{0x10080010, 0xCAFEBABE, 4},
	}
	if len(*writes) != len(want) {
		t.Fatalf("writes: got %v", *writes)
	}
	for i, w := range want {
		if (*writes)[i] != w {
			t.Fatalf("write %d: got %+v, want %+v", i, (*writes)[i], w)
		}
	}
	// I/O writes do not leak into RAM
	if got := bus.GetMemory()[0x80010]; got != 0 {
		t.Fatalf("I/O write stored in RAM: 0x%02X", got)
	}
}

func TestMachineBus_IOStraddlingWriteSplit(t *testing.T) {
	bus := NewMachineBus()
	writes := recordingRegion(bus, 0x10080000, 0x10083FFF)

	bus.Write16(0x10080003, 0xBBAA)
	if len(*writes) != 2 {
		t.Fatalf("expected 2 byte writes, got %v", *writes)
	}
	if (*writes)[0] != (busAccess{0x10080003, 0xAA, 1}) || (*writes)[1] != (busAccess{0x10080004, 0xBB, 1}) {
		t.Fatalf("split writes: %v", *writes)
	}
}

func TestMachineBus_IOReadLanes(t *testing.T) {
	bus := NewMachineBus()
	recordingRegion(bus, 0xFFFF0000, 0xFFFF002F)

	// onRead returns 0x44332211 ^ alignedAddr
	word := uint32(0x44332211 ^ 0xFFFF0010)
	if got := bus.Read32(0xFFFF0010); got != word {
		t.Fatalf("Read32: got 0x%08X, want 0x%08X", got, word)
	}
	if got := bus.Read8(0xFFFF0012); got != uint8(word>>16) {
		t.Fatalf("Read8 lane 2: got 0x%02X", got)
	}
	if got := bus.Read16(0xFFFF0012); got != uint16(word>>16) {
		t.Fatalf("Read16 upper half: got 0x%04X", got)
	}
}

func TestMachineBus_TopPageMapping(t *testing.T) {
	bus := NewMachineBus()
	writes := recordingRegion(bus, 0xFFFFFF00, 0xFFFFFFFF)
	bus.Write8(0xFFFFFFFF, 1)
	if len(*writes) != 1 {
		t.Fatalf("top-of-address-space write not routed")
	}
}

func TestMachineBus_LoadBytesAndReset(t *testing.T) {
	bus := NewMachineBus()
	if err := bus.LoadBytes(BUS_RAM_BASE+4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if got := bus.Read32(BUS_RAM_BASE + 4); got != 0x04030201 {
		t.Fatalf("loaded word: got 0x%08X", got)
	}
	if err := bus.LoadBytes(0x100, []byte{1}); err == nil {
		t.Fatalf("expected error loading outside RAM")
	}
	bus.Reset()
	if got := bus.Read32(BUS_RAM_BASE + 4); got != 0 {
		t.Fatalf("Reset left 0x%08X", got)
	}
	if got := bus.Read(BUS_RAM_BASE+4, 1); got != 0 {
		t.Fatalf("Read size 1 after reset: %d", got)
	}
}
