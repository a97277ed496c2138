// gpu_shadow.go - GameStation GPU scene-data shadow store

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

import (
	"sync"
)

// ShadowRegisterFile mirrors the write-only scene-data window as 32-bit words.
// The bus delivers 1, 2 or 4 byte writes at any byte offset; each write is
// merged into its word without disturbing the other byte lanes.
type ShadowRegisterFile struct {
	mutex sync.Mutex
	words []uint32
}

// NewShadowRegisterFile creates a store of the given number of words.
func NewShadowRegisterFile(words int) *ShadowRegisterFile {
	return &ShadowRegisterFile{
		words: make([]uint32, words),
	}
}

// laneMask returns the mask of bytes NOT touched by a write of size bytes at
// byte lane lane. The caller guarantees lane+size <= 4.
func laneMask(lane uint32, size int) uint32 {
	var touched uint32
	switch size {
	case 1:
		touched = 0x000000FF
	case 2:
		touched = 0x0000FFFF
	default:
		touched = 0xFFFFFFFF
	}
	return ^(touched << (lane * 8))
}

// mergeWord folds size bytes of value into old at byte lane lane.
func mergeWord(old uint32, lane uint32, value uint32, size int) uint32 {
	mask := laneMask(lane, size)
	return (old & mask) | ((value << (lane * 8)) & ^mask)
}

// Write merges size bytes of value into the word containing offset.
// offset is relative to the start of the window.
func (s *ShadowRegisterFile) Write(offset uint32, value uint32, size int) {
	index := offset >> 2
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if index >= uint32(len(s.words)) {
		return
	}
	s.words[index] = mergeWord(s.words[index], offset&3, value, size)
}

// Read returns the word containing offset.
func (s *ShadowRegisterFile) Read(offset uint32) uint32 {
	return s.Word(int(offset >> 2))
}

// Word returns word i of the store.
func (s *ShadowRegisterFile) Word(i int) uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if i < 0 || i >= len(s.words) {
		return 0
	}
	return s.words[i]
}

// Snapshot copies the first n words under the lock so the decoder never sees
// a half-applied write.
func (s *ShadowRegisterFile) Snapshot(n int) []uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n = max(0, min(n, len(s.words)))
	snap := make([]uint32, n)
	copy(snap, s.words[:n])
	return snap
}

// Len returns the number of words in the store.
func (s *ShadowRegisterFile) Len() int {
	return len(s.words)
}

// Clear zeroes the whole store.
func (s *ShadowRegisterFile) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	clear(s.words)
}
