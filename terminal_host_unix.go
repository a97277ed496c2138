//go:build !windows

// terminal_host_unix.go - Raw terminal key source (unix)

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
	"os"
	"syscall"
	"time"

	"golang.org/x/term"
)

// Start puts stdin in raw non-blocking mode and begins reading in a
// goroutine. Call Stop to restore stdin.
func (h *TerminalHost) Start() {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		logf(LOG_TAG_HOST, "terminal: failed to set raw mode: %v", err)
		close(h.done)
		return
	}
	h.oldTermState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		logf(LOG_TAG_HOST, "terminal: failed to set nonblocking stdin: %v", err)
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
		close(h.done)
		return
	}
	h.nonblockSet = true
	h.running.Store(true)

	go func() {
		defer close(h.done)
		defer h.running.Store(false)
		buf := make([]byte, 64)

		for {
			select {
			case <-h.stopCh:
				return
			default:
			}

			n, err := syscall.Read(h.fd, buf)
			if n > 0 {
				h.feed(buf[:n])
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				h.decoder.flush(h.sink)
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()
}

// Stop terminates the reading goroutine and restores stdin to blocking mode.
func (h *TerminalHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}
