// video_interface.go - Display host interface for GameStation

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
	"time"
)

// VideoError provides detailed error context for video operations
type VideoError struct {
	Operation string // What operation was being attempted
	Details   string // Additional error context
	Err       error  // Underlying error if any
}

func (e *VideoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("video %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("video %s failed: %s", e.Operation, e.Details)
}

func (e *VideoError) Unwrap() error {
	return e.Err
}

// DisplayConfig contains hardware-independent configuration
type DisplayConfig struct {
	Width       int
	Height      int
	Scale       int // Integer scaling factor for output
	RefreshRate int // Target refresh rate in Hz
	VSync       bool
	Title       string
}

// displayConfigFrom derives the host window settings from the device.
func displayConfigFrom(c DeviceConfig) DisplayConfig {
	return DisplayConfig{
		Width:       c.Width,
		Height:      c.Height,
		Scale:       c.Scale,
		RefreshRate: c.RefreshRate,
		VSync:       true,
		Title:       "GameStation",
	}
}

// VideoOutput is a display host. It owns the render domain: once started it
// calls the device's RenderFrame once per refresh and feeds it key events.
type VideoOutput interface {
	// Lifecycle management
	Start() error
	Stop() error
	Close() error
	IsStarted() bool

	SetDisplayConfig(config DisplayConfig) error
	GetDisplayConfig() DisplayConfig

	// Timing and synchronization
	WaitForVSync() error
	GetFrameCount() uint64
	GetRefreshRate() int

	// Done is closed when the host shuts down (window closed, Stop called)
	Done() <-chan struct{}
}

// renderBackoff is how long a host loop waits after a failed frame. A lost
// context gets longer while the driver recovers; other failures wait one
// refresh so the loop keeps the display rate instead of spinning.
func renderBackoff(contextLost bool) time.Duration {
	if contextLost {
		return 100 * time.Millisecond
	}
	return time.Second / GPU_REFRESH_RATE
}

// Predefined video backend types
const (
	VIDEO_BACKEND_EBITEN   = iota // Pure Go Ebiten window
	VIDEO_BACKEND_OPENGL          // SDL window with an OpenGL 3.3 context, cgo
	VIDEO_BACKEND_HEADLESS        // No window, fixed-rate ticker
)

// videoBackendNames maps CLI names to backend types
var videoBackendNames = map[string]int{
	"ebiten":   VIDEO_BACKEND_EBITEN,
	"gl":       VIDEO_BACKEND_OPENGL,
	"headless": VIDEO_BACKEND_HEADLESS,
}

// NewVideoOutput creates a display host of the given type for gpu. Hosts not
// compiled into this binary return an error.
func NewVideoOutput(backend int, gpu *GameStationGPU) (VideoOutput, error) {
	switch backend {
	case VIDEO_BACKEND_EBITEN:
		return NewEbitenOutput(gpu)
	case VIDEO_BACKEND_OPENGL:
		return NewGLOutput(gpu)
	case VIDEO_BACKEND_HEADLESS:
		return NewHeadlessOutput(gpu)
	}
	return nil, &VideoError{
		Operation: "backend creation",
		Details:   fmt.Sprintf("unknown backend type: %d", backend),
	}
}

// NewQuadBackend returns the render backend that matches a host type. The
// GL and ebiten hosts need their own backend; everything else renders in
// software.
func NewQuadBackend(backend int) QuadBackend {
	switch backend {
	case VIDEO_BACKEND_EBITEN:
		if b := newEbitenQuadBackend(); b != nil {
			return b
		}
	case VIDEO_BACKEND_OPENGL:
		if b := newGLQuadBackend(); b != nil {
			return b
		}
	}
	return NewSoftwareBackend()
}
