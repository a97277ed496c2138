package main

import (
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

// TerminalHost reads raw stdin and turns it into key press/release pairs
// for the device. Only instantiated in main.go for interactive use; the
// byte decoding is exercised through terminalDecoder.
type TerminalHost struct {
	sink        func(code uint8, pressed bool)
	onInterrupt func()

	decoder      terminalDecoder
	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	running      atomic.Bool
	fd           int
	nonblockSet  bool
	oldTermState *term.State
}

// NewTerminalHost creates a host adapter that types stdin into sink.
// onInterrupt runs when Ctrl+C arrives, since raw mode swallows SIGINT.
func NewTerminalHost(sink func(code uint8, pressed bool), onInterrupt func()) *TerminalHost {
	return &TerminalHost{
		sink:        sink,
		onInterrupt: onInterrupt,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// IsRunning reports whether stdin is being read.
func (h *TerminalHost) IsRunning() bool {
	return h.running.Load()
}

func (h *TerminalHost) feed(data []byte) {
	if h.decoder.feed(data, h.sink) && h.onInterrupt != nil {
		h.onInterrupt()
	}
}

// =============================================================================
// Byte decoding
// =============================================================================

// terminalDecoder turns raw-mode terminal bytes into key taps. Escape
// sequences may be split across reads; a lone Escape is only reported by
// flush once the input goes quiet.
type terminalDecoder struct {
	pending []byte
}

var csiKeys = map[string]uint8{
	"A":  KEY_UP,
	"B":  KEY_DOWN,
	"C":  KEY_RIGHT,
	"D":  KEY_LEFT,
	"3~": KEY_DELETE,
}

func tapKey(sink func(uint8, bool), code uint8) {
	sink(code, true)
	sink(code, false)
}

// feed decodes data and reports whether Ctrl+C was seen.
func (d *terminalDecoder) feed(data []byte, sink func(uint8, bool)) bool {
	interrupt := false
	buf := append(d.pending, data...)
	d.pending = nil

	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if b == 0x1B {
			n, complete := d.escape(buf[i:], sink)
			if !complete {
				d.pending = append([]byte(nil), buf[i:]...)
				return interrupt
			}
			i += n - 1
			continue
		}
		switch {
		case b == 0x03:
			interrupt = true
		case b == '\r' || b == '\n':
			tapKey(sink, KEY_ENTER)
		case b == 0x7F || b == 0x08:
			tapKey(sink, KEY_BACKSPACE)
		case b == '\t':
			tapKey(sink, KEY_TAB)
		case b >= 0x20 && b < 0x7F:
			typeText(string(rune(b)), sink)
		}
	}
	return interrupt
}

// escape decodes one sequence starting at seq[0] == ESC. It returns the
// bytes consumed, or complete=false when more input is needed.
func (d *terminalDecoder) escape(seq []byte, sink func(uint8, bool)) (int, bool) {
	if len(seq) < 2 {
		return 0, false
	}
	if seq[1] != '[' && seq[1] != 'O' {
		tapKey(sink, KEY_ESCAPE)
		return 1, true
	}
	// parameters then one final byte in 0x40..0x7E
	for j := 2; j < len(seq); j++ {
		if seq[j] >= 0x40 && seq[j] <= 0x7E {
			if code, ok := csiKeys[string(seq[2:j+1])]; ok {
				tapKey(sink, code)
			}
			return j + 1, true
		}
	}
	return 0, false
}

// flush reports a held lone Escape and drops any partial sequence.
func (d *terminalDecoder) flush(sink func(uint8, bool)) {
	if len(d.pending) == 1 && d.pending[0] == 0x1B {
		tapKey(sink, KEY_ESCAPE)
	}
	d.pending = nil
}
