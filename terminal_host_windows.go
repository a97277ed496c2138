//go:build windows

package main

import (
	"os"
	"time"

	"golang.org/x/term"
)

// escapeIdle is how long a lone ESC waits for the rest of a sequence.
const escapeIdle = 30 * time.Millisecond

// Start puts the console in raw mode. Console reads cannot be made
// non-blocking, so a reader goroutine hands chunks to the decode loop and
// Stop does not wait for a read in flight.
func (h *TerminalHost) Start() {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		logf(LOG_TAG_HOST, "terminal: raw console unavailable: %v", err)
		close(h.done)
		return
	}
	h.oldTermState = oldState
	h.running.Store(true)

	chunks := make(chan []byte, 8)
	go func() {
		for {
			buf := make([]byte, 64)
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-h.stopCh:
					return
				}
			}
			if err != nil {
				close(chunks)
				return
			}
		}
	}()

	go func() {
		defer close(h.done)
		defer h.running.Store(false)
		idle := time.NewTimer(escapeIdle)
		defer idle.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case data, ok := <-chunks:
				if !ok {
					return
				}
				h.feed(data)
				idle.Reset(escapeIdle)
			case <-idle.C:
				h.decoder.flush(h.sink)
			}
		}
	}()
}

// Stop ends the decode loop and restores the console mode.
func (h *TerminalHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}
