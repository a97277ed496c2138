// video_backend_headless.go - Headless display host for GameStation

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
	"image/png"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// HeadlessVideoOutput drives the render domain from a ticker with no window.
// The device should use the software backend; the last frame can be written
// to a PNG file when the host stops.
type HeadlessVideoOutput struct {
	gpu *GameStationGPU

	mutex      sync.Mutex
	started    bool
	config     DisplayConfig
	frameCount atomic.Uint64
	vsyncChan  chan struct{}
	stop       chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
	dumpPath   string
}

func NewHeadlessOutput(gpu *GameStationGPU) (VideoOutput, error) {
	if gpu == nil {
		return nil, &VideoError{Operation: "headless creation", Details: "no device"}
	}
	return &HeadlessVideoOutput{
		gpu:       gpu,
		config:    displayConfigFrom(gpu.Config()),
		vsyncChan: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// SetFrameDump asks Stop to write the last frame to path.
func (h *HeadlessVideoOutput) SetFrameDump(path string) {
	h.mutex.Lock()
	h.dumpPath = path
	h.mutex.Unlock()
}

func (h *HeadlessVideoOutput) Start() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.started {
		return nil
	}
	rate := h.config.RefreshRate
	if rate <= 0 {
		rate = GPU_REFRESH_RATE
	}
	h.started = true
	h.stop = make(chan struct{})
	h.wg.Add(1)
	go h.refreshLoop(time.Second/time.Duration(rate), h.stop)
	logf(LOG_TAG_HOST, "headless host running at %d Hz", rate)
	return nil
}

// refreshLoop is the render domain.
func (h *HeadlessVideoOutput) refreshLoop(interval time.Duration, stop <-chan struct{}) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *HeadlessVideoOutput) tick() {
	if err := h.gpu.RenderFrame(); err != nil {
		return
	}
	h.frameCount.Add(1)
	select {
	case h.vsyncChan <- struct{}{}:
	default:
	}
}

func (h *HeadlessVideoOutput) Stop() error {
	h.mutex.Lock()
	if !h.started {
		h.mutex.Unlock()
		return nil
	}
	h.started = false
	close(h.stop)
	path := h.dumpPath
	h.mutex.Unlock()

	h.wg.Wait()
	if path != "" {
		if err := h.dumpFrame(path); err != nil {
			return err
		}
	}
	return nil
}

func (h *HeadlessVideoOutput) dumpFrame(path string) error {
	frame := h.gpu.Pipeline().Frame()
	if frame == nil {
		return &VideoError{Operation: "frame dump", Details: "backend has no readable frame"}
	}
	f, err := os.Create(path)
	if err != nil {
		return &VideoError{Operation: "frame dump", Details: path, Err: err}
	}
	defer f.Close()
	if err := png.Encode(f, frame); err != nil {
		return &VideoError{Operation: "frame dump", Details: path, Err: err}
	}
	logf(LOG_TAG_HOST, "frame written to %s", path)
	return nil
}

func (h *HeadlessVideoOutput) Close() error {
	err := h.Stop()
	h.mutex.Lock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	h.mutex.Unlock()
	h.gpu.Destroy()
	return err
}

func (h *HeadlessVideoOutput) IsStarted() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.started
}

func (h *HeadlessVideoOutput) SetDisplayConfig(config DisplayConfig) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.started {
		return &VideoError{Operation: "headless config", Details: "host already running"}
	}
	if config.Width <= 0 || config.Height <= 0 {
		return &VideoError{Operation: "headless config", Details: fmt.Sprintf("invalid size %dx%d", config.Width, config.Height)}
	}
	h.config = config
	return nil
}

func (h *HeadlessVideoOutput) GetDisplayConfig() DisplayConfig {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.config
}

func (h *HeadlessVideoOutput) WaitForVSync() error {
	select {
	case <-h.vsyncChan:
		return nil
	case <-h.done:
		return &VideoError{Operation: "vsync", Details: "host closed"}
	}
}

func (h *HeadlessVideoOutput) GetFrameCount() uint64 {
	return h.frameCount.Load()
}

func (h *HeadlessVideoOutput) GetRefreshRate() int {
	if h.config.RefreshRate == 0 {
		return GPU_REFRESH_RATE
	}
	return h.config.RefreshRate
}

func (h *HeadlessVideoOutput) Done() <-chan struct{} {
	return h.done
}
