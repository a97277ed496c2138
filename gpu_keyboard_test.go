package main

import (
	"testing"
)

func readKeyBytes(k *KeyRegisters, base uint32) []uint8 {
	out := make([]uint8, GPU_KEY_REG_SIZE)
	for off := uint32(0); off < GPU_KEY_REG_SIZE; off += 4 {
		w := k.HandleRead(base + off)
		for i := uint32(0); i < 4; i++ {
			out[off+i] = uint8(w >> (i * 8))
		}
	}
	return out
}

// =============================================================================
// Delivery
// =============================================================================

func TestKeys_PressAndRelease(t *testing.T) {
	k := NewKeyRegisters()
	k.OnKeyEvent('A', true)
	k.OnKeyEvent('B', true)
	k.OnKeyEvent('A', false)

	press := readKeyBytes(k, GPU_KEY_PRESS)
	if press[0] != 2 || press[1] != 'A' || press[2] != 'B' {
		t.Fatalf("press register: %v", press[:4])
	}
	release := readKeyBytes(k, GPU_KEY_RELEASE)
	if release[0] != 1 || release[1] != 'A' {
		t.Fatalf("release register: %v", release[:4])
	}
}

func TestKeys_AutoRepeatFiltered(t *testing.T) {
	k := NewKeyRegisters()
	k.OnKeyEvent(0x20, true)
	k.OnKeyEvent(0x20, true)
	k.OnKeyEvent(0x20, true)
	k.OnKeyEvent(0x21, false) // never pressed
	if got := k.Count(false); got != 1 {
		t.Fatalf("repeated press delivered %d times", got)
	}
	if got := k.Count(true); got != 0 {
		t.Fatalf("stray release delivered")
	}
}

func TestKeys_CapacityPlusOne(t *testing.T) {
	k := NewKeyRegisters()
	for i := 0; i < GPU_KEY_CAPACITY+1; i++ {
		k.OnKeyEvent(uint8(0x41+i), true)
	}
	press := readKeyBytes(k, GPU_KEY_PRESS)
	if press[0] != GPU_KEY_CAPACITY {
		t.Fatalf("count: got %d, want %d", press[0], GPU_KEY_CAPACITY)
	}
	for i := 0; i < GPU_KEY_CAPACITY; i++ {
		if press[1+i] != uint8(0x41+i) {
			t.Fatalf("slot %d: got 0x%02X", i, press[1+i])
		}
	}
	if k.Dropped() != 1 {
		t.Fatalf("16th press should be dropped, dropped=%d", k.Dropped())
	}
}

// =============================================================================
// Lock / clear handshake
// =============================================================================

func TestKeys_LockedRegisterReplay(t *testing.T) {
	k := NewKeyRegisters()
	k.OnKeyEvent('A', true)

	// CPU reads: register locks
	if w := k.HandleRead(GPU_KEY_PRESS); w&0xFF != 1 {
		t.Fatalf("count: got %d", w&0xFF)
	}
	k.OnKeyEvent('B', true)
	k.OnKeyEvent('C', true)
	press := readKeyBytes(k, GPU_KEY_PRESS)
	if press[0] != 1 || press[1] != 'A' || press[2] != 0 {
		t.Fatalf("locked register changed: %v", press[:4])
	}

	// CPU acknowledges: pending events replay in order
	k.HandleWrite(GPU_KEY_PRESS, 0, 1)
	press = readKeyBytes(k, GPU_KEY_PRESS)
	if press[0] != 2 || press[1] != 'B' || press[2] != 'C' {
		t.Fatalf("after clear: %v", press[:4])
	}
}

func TestKeys_EmptyReadDoesNotLock(t *testing.T) {
	k := NewKeyRegisters()
	k.HandleRead(GPU_KEY_PRESS)
	k.OnKeyEvent('Z', true)
	if k.Count(false) != 1 {
		t.Fatalf("empty read locked the register")
	}
}

func TestKeys_ClearNeedsZeroCountByte(t *testing.T) {
	k := NewKeyRegisters()
	k.OnKeyEvent('A', true)
	k.HandleRead(GPU_KEY_PRESS)

	k.HandleWrite(GPU_KEY_PRESS, 5, 1)   // non-zero count
	k.HandleWrite(GPU_KEY_PRESS+1, 0, 1) // slot byte
	k.HandleWrite(GPU_KEY_PRESS+4, 0, 4) // slot word
	if k.Count(false) != 1 {
		t.Fatalf("register cleared by a non-count write")
	}

	k.HandleWrite(GPU_KEY_PRESS, 0xABCD0000, 4) // count byte zero in a word write
	if k.Count(false) != 0 {
		t.Fatalf("word write with zero count byte did not clear")
	}
}

func TestKeys_RegistersIndependent(t *testing.T) {
	k := NewKeyRegisters()
	k.OnKeyEvent('Q', true)
	k.OnKeyEvent('Q', false)
	k.HandleRead(GPU_KEY_PRESS)
	k.HandleWrite(GPU_KEY_RELEASE, 0, 1)
	if k.Count(false) != 1 {
		t.Fatalf("release clear touched the press register")
	}
	if k.Count(true) != 0 {
		t.Fatalf("release register not cleared")
	}
}

func TestKeys_PendingBounded(t *testing.T) {
	k := NewKeyRegisters()
	k.OnKeyEvent(1, true)
	k.HandleRead(GPU_KEY_PRESS)
	for i := 0; i < GPU_KEY_PENDING_MAX+10; i++ {
		code := uint8(2 + i%100)
		k.OnKeyEvent(code, true)
		k.OnKeyEvent(code, false)
	}
	if k.Dropped() == 0 {
		t.Fatalf("pending queue unbounded")
	}
}

// =============================================================================
// Focus and reset
// =============================================================================

func TestKeys_FocusGating(t *testing.T) {
	k := NewKeyRegisters()
	k.OnKeyEvent('A', true)
	k.SetFocused(false)
	k.OnKeyEvent('B', true)
	if k.Count(false) != 1 {
		t.Fatalf("event accepted while unfocused")
	}
	if k.Count(true) != 0 {
		t.Fatalf("focus loss reported a release")
	}
	k.SetFocused(true)
	// 'A' is no longer held, so its press is delivered again
	k.OnKeyEvent('A', true)
	if k.Count(false) != 2 {
		t.Fatalf("press after refocus: count %d", k.Count(false))
	}
}

func TestKeys_Reset(t *testing.T) {
	k := NewKeyRegisters()
	k.OnKeyEvent('A', true)
	k.HandleRead(GPU_KEY_PRESS)
	k.OnKeyEvent('B', true)
	k.Reset()
	if k.Count(false) != 0 || k.Count(true) != 0 {
		t.Fatalf("Reset left codes")
	}
	k.OnKeyEvent('C', true)
	if k.Count(false) != 1 {
		t.Fatalf("register still locked after Reset")
	}
	k.OnKeyEvent('A', true)
	if k.Count(false) != 2 {
		t.Fatalf("held set not cleared by Reset")
	}
}
