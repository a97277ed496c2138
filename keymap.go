// keymap.go - GameStation key codes and host key translation

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
keymap.go - GameStation Key Codes

Key codes written into the key registers. Letters and digits use their
upper-case ASCII values; everything else follows the virtual-key numbering
CPU programs for this device expect (Enter is 0x0A).

Text input (clipboard paste, terminal bytes, scripts) is turned into press
and release pairs with a US keyboard layout, wrapping shifted characters in
Shift press/release.
*/

package main

// Key codes
const (
	KEY_BACKSPACE = 0x08
	KEY_TAB       = 0x09
	KEY_ENTER     = 0x0A
	KEY_SHIFT     = 0x10
	KEY_CONTROL   = 0x11
	KEY_ALT       = 0x12
	KEY_ESCAPE    = 0x1B
	KEY_SPACE     = 0x20
	KEY_LEFT      = 0x25
	KEY_UP        = 0x26
	KEY_RIGHT     = 0x27
	KEY_DOWN      = 0x28
	KEY_DELETE    = 0x2E
	KEY_0         = 0x30
	KEY_A         = 0x41
	KEY_F1        = 0x70

	KEY_SEMICOLON    = 0xBA
	KEY_EQUAL        = 0xBB
	KEY_COMMA        = 0xBC
	KEY_MINUS        = 0xBD
	KEY_PERIOD       = 0xBE
	KEY_SLASH        = 0xBF
	KEY_GRAVE        = 0xC0
	KEY_BRACKET_L    = 0xDB
	KEY_BACKSLASH    = 0xDC
	KEY_BRACKET_R    = 0xDD
	KEY_APOSTROPHE   = 0xDE
	KEY_FUNCTION_MAX = 12
)

// keyStroke is one character's worth of key activity.
type keyStroke struct {
	code  uint8
	shift bool
}

var punctuationKeys = map[rune]keyStroke{
	';': {KEY_SEMICOLON, false}, ':': {KEY_SEMICOLON, true},
	'=': {KEY_EQUAL, false}, '+': {KEY_EQUAL, true},
	',': {KEY_COMMA, false}, '<': {KEY_COMMA, true},
	'-': {KEY_MINUS, false}, '_': {KEY_MINUS, true},
	'.': {KEY_PERIOD, false}, '>': {KEY_PERIOD, true},
	'/': {KEY_SLASH, false}, '?': {KEY_SLASH, true},
	'`': {KEY_GRAVE, false}, '~': {KEY_GRAVE, true},
	'[': {KEY_BRACKET_L, false}, '{': {KEY_BRACKET_L, true},
	'\\': {KEY_BACKSLASH, false}, '|': {KEY_BACKSLASH, true},
	']': {KEY_BRACKET_R, false}, '}': {KEY_BRACKET_R, true},
	'\'': {KEY_APOSTROPHE, false}, '"': {KEY_APOSTROPHE, true},
}

// shifted digits on a US layout, indexed by digit
var shiftedDigits = []rune(")!@#$%^&*(")

// charToKey maps a character to the key that types it.
func charToKey(r rune) (keyStroke, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return keyStroke{uint8(r - 'a' + KEY_A), false}, true
	case r >= 'A' && r <= 'Z':
		return keyStroke{uint8(r), true}, true
	case r >= '0' && r <= '9':
		return keyStroke{uint8(r), false}, true
	case r == ' ':
		return keyStroke{KEY_SPACE, false}, true
	case r == '\n' || r == '\r':
		return keyStroke{KEY_ENTER, false}, true
	case r == '\t':
		return keyStroke{KEY_TAB, false}, true
	case r == 0x08 || r == 0x7F:
		return keyStroke{KEY_BACKSPACE, false}, true
	case r == 0x1B:
		return keyStroke{KEY_ESCAPE, false}, true
	}
	for i, s := range shiftedDigits {
		if s == r {
			return keyStroke{uint8(KEY_0 + i), true}, true
		}
	}
	if ks, ok := punctuationKeys[r]; ok {
		return ks, true
	}
	return keyStroke{}, false
}

// typeText feeds s to sink as key presses and releases. Characters with no
// key are skipped; the number of characters typed is returned.
func typeText(s string, sink func(code uint8, pressed bool)) int {
	typed := 0
	var prev rune
	for _, r := range s {
		// CRLF is one Enter
		if r == '\n' && prev == '\r' {
			prev = r
			continue
		}
		prev = r
		ks, ok := charToKey(r)
		if !ok {
			continue
		}
		if ks.shift {
			sink(KEY_SHIFT, true)
		}
		sink(ks.code, true)
		sink(ks.code, false)
		if ks.shift {
			sink(KEY_SHIFT, false)
		}
		typed++
	}
	return typed
}

// normalizePasteText folds CRLF and lone CR line endings into LF.
func normalizePasteText(raw []byte) []byte {
	norm := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\r' {
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			norm = append(norm, '\n')
			continue
		}
		norm = append(norm, raw[i])
	}
	return norm
}

func capPasteText(raw []byte, max int) []byte {
	if len(raw) <= max {
		return raw
	}
	return raw[:max]
}
