package main

import (
	"math/rand"
	"sync"
	"testing"
)

// =============================================================================
// Byte-lane merge
// =============================================================================

func TestShadow_WordWrite(t *testing.T) {
	s := NewShadowRegisterFile(GPU_SCENE_WORDS)
	s.Write(0x10, 0xDEADBEEF, 4)
	if got := s.Read(0x10); got != 0xDEADBEEF {
		t.Fatalf("word write: got 0x%08X, want 0xDEADBEEF", got)
	}
	if got := s.Word(4); got != 0xDEADBEEF {
		t.Fatalf("Word(4): got 0x%08X", got)
	}
}

func TestShadow_ByteLanes(t *testing.T) {
	s := NewShadowRegisterFile(4)
	s.Write(0, 0x11, 1)
	s.Write(1, 0x22, 1)
	s.Write(2, 0x33, 1)
	s.Write(3, 0x44, 1)
	if got := s.Word(0); got != 0x44332211 {
		t.Fatalf("byte lanes: got 0x%08X, want 0x44332211", got)
	}
}

func TestShadow_HalfwordLanes(t *testing.T) {
	s := NewShadowRegisterFile(4)
	s.Write(4, 0xFFFFFFFF, 4)
	s.Write(6, 0x1234, 2)
	if got := s.Word(1); got != 0x1234FFFF {
		t.Fatalf("upper half: got 0x%08X, want 0x1234FFFF", got)
	}
	s.Write(4, 0xABCD, 2)
	if got := s.Word(1); got != 0x1234ABCD {
		t.Fatalf("lower half: got 0x%08X, want 0x1234ABCD", got)
	}
}

func TestShadow_ByteWriteIgnoresHighValueBits(t *testing.T) {
	s := NewShadowRegisterFile(1)
	s.Write(0, 0x12345678, 4)
	s.Write(1, 0xFFFFFFAA, 1)
	if got := s.Word(0); got != 0x1234AA78 {
		t.Fatalf("got 0x%08X, want 0x1234AA78", got)
	}
}

func TestShadow_DisjointWritesAnyOrder(t *testing.T) {
	type write struct {
		off   uint32
		value uint32
		size  int
	}
	// Covers every byte of word 0 exactly once
	writes := []write{
		{0, 0x0D, 1},
		{1, 0x0C, 1},
		{2, 0x0A0B, 2},
	}
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		s := NewShadowRegisterFile(1)
		s.Write(0, 0xFFFFFFFF, 4)
		order := rng.Perm(len(writes))
		for _, i := range order {
			w := writes[i]
			s.Write(w.off, w.value, w.size)
		}
		if got := s.Word(0); got != 0x0A0B0C0D {
			t.Fatalf("order %v: got 0x%08X, want 0x0A0B0C0D", order, got)
		}
	}
}

func TestShadow_OutOfRangeIgnored(t *testing.T) {
	s := NewShadowRegisterFile(2)
	s.Write(8, 0x1, 4)
	if got := s.Read(8); got != 0 {
		t.Fatalf("out of range read: got 0x%X", got)
	}
	if got := s.Word(-1); got != 0 {
		t.Fatalf("negative index: got 0x%X", got)
	}
}

// =============================================================================
// Snapshot / Clear
// =============================================================================

func TestShadow_SnapshotIsCopy(t *testing.T) {
	s := NewShadowRegisterFile(8)
	for i := uint32(0); i < 8; i++ {
		s.Write(i*4, i+1, 4)
	}
	snap := s.Snapshot(4)
	if len(snap) != 4 {
		t.Fatalf("snapshot length: got %d, want 4", len(snap))
	}
	s.Write(0, 0x99, 4)
	if snap[0] != 1 {
		t.Fatalf("snapshot aliased the store: snap[0]=0x%X", snap[0])
	}
	if got := len(s.Snapshot(100)); got != 8 {
		t.Fatalf("oversized snapshot: got %d words, want 8", got)
	}
	if got := len(s.Snapshot(-3)); got != 0 {
		t.Fatalf("negative snapshot: got %d words", got)
	}
}

func TestShadow_Clear(t *testing.T) {
	s := NewShadowRegisterFile(4)
	s.Write(0, 0xFFFFFFFF, 4)
	s.Write(12, 0xFFFFFFFF, 4)
	s.Clear()
	for i := 0; i < 4; i++ {
		if s.Word(i) != 0 {
			t.Fatalf("word %d not cleared", i)
		}
	}
}

func TestShadow_ConcurrentDisjointLanes(t *testing.T) {
	s := NewShadowRegisterFile(GPU_SCENE_WORDS)
	var wg sync.WaitGroup
	for lane := uint32(0); lane < 4; lane++ {
		wg.Add(1)
		go func(lane uint32) {
			defer wg.Done()
			for w := uint32(0); w < GPU_SCENE_WORDS; w++ {
				s.Write(w*4+lane, 0x10+lane, 1)
			}
		}(lane)
	}
	wg.Wait()
	for i := 0; i < GPU_SCENE_WORDS; i++ {
		if got := s.Word(i); got != 0x13121110 {
			t.Fatalf("word %d: got 0x%08X, want 0x13121110", i, got)
		}
	}
}
