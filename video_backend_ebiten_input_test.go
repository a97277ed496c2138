//go:build !headless && !gl

package main

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestClipboardPaste_Normalize(t *testing.T) {
	in := []byte("a\r\nb\rc\n")
	got := normalizePasteText(in)
	want := "a\nb\nc\n"
	if string(got) != want {
		t.Fatalf("expected %q, got %q", want, string(got))
	}
}

func TestClipboardPaste_Cap(t *testing.T) {
	in := make([]byte, 5000)
	got := capPasteText(in, 4096)
	if len(got) != 4096 {
		t.Fatalf("expected capped length 4096, got %d", len(got))
	}
}

func TestHostKeys_Letters(t *testing.T) {
	if hostKeys[ebiten.KeyA] != 'A' || hostKeys[ebiten.KeyZ] != 'Z' {
		t.Fatalf("letters: A=%#x Z=%#x", hostKeys[ebiten.KeyA], hostKeys[ebiten.KeyZ])
	}
	if hostKeys[ebiten.KeyDigit7] != '7' {
		t.Fatalf("digit 7: %#x", hostKeys[ebiten.KeyDigit7])
	}
}

func TestHostKeys_Specials(t *testing.T) {
	cases := map[ebiten.Key]uint8{
		ebiten.KeyEnter:       KEY_ENTER,
		ebiten.KeyNumpadEnter: KEY_ENTER,
		ebiten.KeyArrowLeft:   KEY_LEFT,
		ebiten.KeyShiftRight:  KEY_SHIFT,
		ebiten.KeyQuote:       KEY_APOSTROPHE,
		ebiten.KeyF9:          KEY_F1 + 8,
	}
	for key, want := range cases {
		if got, ok := hostKeys[key]; !ok || got != want {
			t.Errorf("%v: got %#x %v, want %#x", key, got, ok, want)
		}
	}
}

func TestHostKeys_HostFunctionKeysReserved(t *testing.T) {
	for _, key := range []ebiten.Key{ebiten.KeyF10, ebiten.KeyF11, ebiten.KeyF12} {
		if _, ok := hostKeys[key]; ok {
			t.Errorf("%v should stay with the host", key)
		}
	}
}

func TestEbitenOutput_Implements(t *testing.T) {
	var _ VideoOutput = (*EbitenOutput)(nil)
	var _ QuadBackend = (*EbitenBackend)(nil)
}

func TestEbitenOutput_RequiresEbitenBackend(t *testing.T) {
	g, _, _ := newTestGPU(t, DefaultDeviceConfig())
	if _, err := NewEbitenOutput(g); err == nil {
		t.Fatalf("expected error for a software-backed device")
	}
}
