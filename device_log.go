// device_log.go - Tagged ring-buffer device log

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
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Log tags
const (
	LOG_TAG_GPU      = "gpu"
	LOG_TAG_TEXTURE  = "texture"
	LOG_TAG_PIPELINE = "pipeline"
	LOG_TAG_KEYS     = "keys"
	LOG_TAG_HOST     = "host"
	LOG_TAG_SCRIPT   = "script"
	LOG_TAG_BRIDGE   = "bridge"
)

const deviceLogMaxEntries = 256

// LogEntry is one line in the device log. Consecutive identical lines are
// collapsed into a single entry with a repeat count.
type LogEntry struct {
	Timestamp time.Time
	Tag       string
	Detail    string
	Repeated  int
}

func (e LogEntry) String() string {
	var s strings.Builder
	fmt.Fprintf(&s, "%s: %s", e.Tag, e.Detail)
	if e.Repeated > 0 {
		fmt.Fprintf(&s, " (repeat x%d)", e.Repeated+1)
	}
	s.WriteString("\n")
	return s.String()
}

// DeviceLog is a bounded, tagged log shared by every component of the
// device. Hosts read the tail for their status overlays.
type DeviceLog struct {
	mutex      sync.Mutex
	maxEntries int
	entries    []LogEntry
	echo       io.Writer
}

// NewDeviceLog creates a log holding at most maxEntries lines.
func NewDeviceLog(maxEntries int) *DeviceLog {
	return &DeviceLog{
		maxEntries: maxEntries,
		entries:    make([]LogEntry, 0, maxEntries),
	}
}

// deviceLog is the process-wide log
var deviceLog = NewDeviceLog(deviceLogMaxEntries)

// logf writes a formatted entry to the process-wide log.
func logf(tag, format string, args ...any) {
	deviceLog.Logf(tag, format, args...)
}

// Log appends detail under tag.
func (l *DeviceLog) Log(tag, detail string) {
	tag = strings.ReplaceAll(tag, "\n", "")
	detail = strings.ReplaceAll(detail, "\n", "")

	l.mutex.Lock()
	var e *LogEntry
	if n := len(l.entries); n > 0 && l.entries[n-1].Tag == tag && l.entries[n-1].Detail == detail {
		e = &l.entries[n-1]
		e.Repeated++
		e.Timestamp = time.Now()
	} else {
		l.entries = append(l.entries, LogEntry{Timestamp: time.Now(), Tag: tag, Detail: detail})
		if len(l.entries) > l.maxEntries {
			l.entries = append(l.entries[:0], l.entries[len(l.entries)-l.maxEntries:]...)
		}
		e = &l.entries[len(l.entries)-1]
	}
	line := e.String()
	echo := l.echo
	l.mutex.Unlock()

	if echo != nil {
		io.WriteString(echo, line)
	}
}

// Logf is Log with formatting.
func (l *DeviceLog) Logf(tag, format string, args ...any) {
	l.Log(tag, fmt.Sprintf(format, args...))
}

// SetEcho mirrors every new entry to output. nil disables echoing.
func (l *DeviceLog) SetEcho(output io.Writer) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.echo = output
}

// Tail returns copies of the most recent n entries, oldest first.
func (l *DeviceLog) Tail(n int) []LogEntry {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	n = max(0, min(n, len(l.entries)))
	out := make([]LogEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Write dumps the whole log to output.
func (l *DeviceLog) Write(output io.Writer) {
	for _, e := range l.Tail(l.maxEntries) {
		io.WriteString(output, e.String())
	}
}

// Clear drops every entry.
func (l *DeviceLog) Clear() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.entries = l.entries[:0]
}
