// gpu_keyboard.go - GameStation key press/release registers

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
gpu_keyboard.go - Key Press/Release Registers for the GameStation GPU

Two 16-byte counting registers, one for presses and one for releases:

	byte 0      number of codes waiting (0..15)
	bytes 1-15  key codes in arrival order

Handshake with the CPU:
- A read of a register while its count is non-zero locks it. Events that
  arrive while locked wait in a bounded pending queue.
- The CPU writes 0 to the count byte when it has consumed the codes. The
  register is emptied, unlocked, and the pending queue is replayed.

Host auto-repeat is filtered: a press of a key already held and a release
of a key not held are both dropped.
*/

package main

import (
	"sync"
)

type keyRegister struct {
	count   int
	slots   [GPU_KEY_CAPACITY]uint8
	locked  bool
	pending []uint8
	dropped uint64
}

// deliver stores code or queues it while the CPU holds the register.
func (r *keyRegister) deliver(code uint8) {
	if r.locked {
		if len(r.pending) >= GPU_KEY_PENDING_MAX {
			r.dropped++
			return
		}
		r.pending = append(r.pending, code)
		return
	}
	if r.count >= GPU_KEY_CAPACITY {
		r.dropped++
		return
	}
	r.slots[r.count] = code
	r.count++
}

func (r *keyRegister) byteAt(offset uint32) uint8 {
	if offset == GPU_KEY_COUNT_OFF {
		return uint8(r.count)
	}
	return r.slots[offset-GPU_KEY_SLOT_OFF]
}

// release empties the register and replays what queued up while locked.
func (r *keyRegister) release() {
	r.count = 0
	r.slots = [GPU_KEY_CAPACITY]uint8{}
	r.locked = false
	queued := r.pending
	r.pending = nil
	for _, code := range queued {
		r.deliver(code)
	}
}

func (r *keyRegister) reset() {
	*r = keyRegister{}
}

// KeyRegisters is the input half of the device.
type KeyRegisters struct {
	mutex   sync.Mutex
	press   keyRegister
	release keyRegister
	held    [256]bool
	focused bool
}

// NewKeyRegisters creates empty registers. Input is accepted from the start;
// hosts that track focus call SetFocused.
func NewKeyRegisters() *KeyRegisters {
	return &KeyRegisters{focused: true}
}

// OnKeyEvent takes a key transition from the host.
func (k *KeyRegisters) OnKeyEvent(code uint8, pressed bool) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	if !k.focused {
		return
	}
	if pressed == k.held[code] {
		return // auto-repeat press or stray release
	}
	k.held[code] = pressed
	if pressed {
		k.press.deliver(code)
	} else {
		k.release.deliver(code)
	}
}

// SetFocused gates input. Losing focus forgets held keys without reporting
// releases.
func (k *KeyRegisters) SetFocused(focused bool) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	if k.focused && !focused {
		k.held = [256]bool{}
	}
	k.focused = focused
}

// Focused reports whether input is accepted.
func (k *KeyRegisters) Focused() bool {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return k.focused
}

func (k *KeyRegisters) register(addr uint32) (*keyRegister, uint32, bool) {
	switch {
	case addr >= GPU_KEY_PRESS && addr < GPU_KEY_PRESS+GPU_KEY_REG_SIZE:
		return &k.press, addr - GPU_KEY_PRESS, true
	case addr >= GPU_KEY_RELEASE && addr < GPU_KEY_RELEASE+GPU_KEY_REG_SIZE:
		return &k.release, addr - GPU_KEY_RELEASE, true
	}
	return nil, 0, false
}

// HandleRead returns the little-endian word containing addr. Reading a
// register that holds codes locks it.
func (k *KeyRegisters) HandleRead(addr uint32) uint32 {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	reg, offset, ok := k.register(addr)
	if !ok {
		return 0
	}
	if reg.count > 0 {
		reg.locked = true
	}
	base := offset &^ 3
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v |= uint32(reg.byteAt(base+i)) << (i * 8)
	}
	return v
}

// HandleWrite acknowledges a register. Only a zero written to the count
// byte has an effect; the slots are read-only.
func (k *KeyRegisters) HandleWrite(addr uint32, value uint32, size int) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	reg, offset, ok := k.register(addr)
	if !ok {
		return
	}
	// The count byte is lane 0 of the register's first word
	if offset&^3 != GPU_KEY_COUNT_OFF || offset&3 != 0 {
		return
	}
	if size <= 0 || value&0xFF != 0 {
		return
	}
	reg.release()
}

// Count returns the number of codes in the press or release register.
func (k *KeyRegisters) Count(release bool) int {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	if release {
		return k.release.count
	}
	return k.press.count
}

// Dropped returns the events lost to full registers or pending queues.
func (k *KeyRegisters) Dropped() uint64 {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return k.press.dropped + k.release.dropped
}

// Reset empties both registers, the pending queues and the held set.
func (k *KeyRegisters) Reset() {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.press.reset()
	k.release.reset()
	k.held = [256]bool{}
}
