//go:build gl && !headless

// video_backend_gl.go - SDL2/OpenGL display host for GameStation

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
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

const defaultVideoBackend = VIDEO_BACKEND_OPENGL

func init() {
	compiledFeatures = append(compiledFeatures, "video:gl")
}

// GLOutput is an SDL window with an OpenGL 3.3 core context. The render
// loop owns the context on a locked OS thread and is the render domain.
type GLOutput struct {
	gpu *GameStationGPU

	mutex      sync.Mutex
	config     DisplayConfig
	running    atomic.Bool
	frameCount atomic.Uint64
	vsyncChan  chan struct{}
	done       chan struct{}
	stop       chan struct{}

	fullscreen       bool
	hardResetHandler func()
	resetInProgress  atomic.Bool
}

func NewGLOutput(gpu *GameStationGPU) (VideoOutput, error) {
	if gpu == nil {
		return nil, &VideoError{Operation: "gl creation", Details: "no device"}
	}
	if _, ok := gpu.Pipeline().Backend().(*GLBackend); !ok {
		return nil, &VideoError{Operation: "gl creation", Details: "device is not using the gl backend"}
	}
	return &GLOutput{
		gpu:       gpu,
		config:    displayConfigFrom(gpu.Config()),
		vsyncChan: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

func (o *GLOutput) Start() error {
	if o.running.Load() {
		return nil
	}
	o.mutex.Lock()
	o.stop = make(chan struct{})
	config := o.config
	stop := o.stop
	o.mutex.Unlock()

	ready := make(chan error, 1)
	o.running.Store(true)
	go o.renderLoop(config, stop, ready)
	if err := <-ready; err != nil {
		o.running.Store(false)
		return err
	}
	logf(LOG_TAG_HOST, "gl host running")
	return nil
}

func (o *GLOutput) openWindow(config DisplayConfig) (*sdl.Window, sdl.GLContext, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, nil, &VideoError{Operation: "sdl init", Details: "video subsystem", Err: err}
	}
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 3)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 3)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_FLAGS, sdl.GL_CONTEXT_FORWARD_COMPATIBLE_FLAG)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)
	sdl.GLSetAttribute(sdl.GL_DOUBLEBUFFER, 1)

	scale := max(1, config.Scale)
	window, err := sdl.CreateWindow(config.Title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(config.Width*scale), int32(config.Height*scale),
		sdl.WINDOW_OPENGL|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, nil, &VideoError{Operation: "sdl window", Details: "create", Err: err}
	}
	context, err := window.GLCreateContext()
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, nil, &VideoError{Operation: "sdl window", Details: "gl context", Err: ErrContextLost}
	}
	if config.VSync {
		if err := sdl.GLSetSwapInterval(1); err != nil {
			logf(LOG_TAG_HOST, "vsync unavailable: %v", err)
		}
	}
	return window, context, nil
}

// SetHardResetHandler replaces the F10 action, which defaults to a device
// reset.
func (o *GLOutput) SetHardResetHandler(fn func()) {
	o.mutex.Lock()
	o.hardResetHandler = fn
	o.mutex.Unlock()
}

// renderLoop runs on one OS thread for the life of the window.
func (o *GLOutput) renderLoop(config DisplayConfig, stop <-chan struct{}, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	window, context, err := o.openWindow(config)
	if err != nil {
		ready <- err
		return
	}
	defer func() {
		o.gpu.Destroy()
		sdl.GLDeleteContext(context)
		window.Destroy()
		sdl.Quit()
		o.running.Store(false)
		o.mutex.Lock()
		select {
		case <-o.done:
		default:
			close(o.done)
		}
		o.mutex.Unlock()
	}()

	w, h := window.GLGetDrawableSize()
	o.gpu.Resize(int(w), int(h))
	ready <- nil

	titleStamp := time.Now()
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !o.pollEvents(window) {
			return
		}

		if err := o.gpu.RenderFrame(); err == nil {
			window.GLSwap()
			o.frameCount.Add(1)
			select {
			case o.vsyncChan <- struct{}{}:
			default:
			}
		} else if o.gpu.Pipeline().ContextLost() {
			// driver reset: rebuild and replay textures next frame
			if err := o.gpu.Reinit(); err != nil {
				time.Sleep(renderBackoff(true))
			}
		} else {
			time.Sleep(renderBackoff(false))
		}

		if time.Since(titleStamp) >= time.Second {
			titleStamp = time.Now()
			stats := o.gpu.Stats()
			window.SetTitle(fmt.Sprintf("%s - %.1f FPS, %d quads", config.Title, stats.FPS, stats.LastInstances))
		}
	}
}

// pollEvents drains the SDL queue. It returns false when the window closes.
func (o *GLOutput) pollEvents(window *sdl.Window) bool {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch ev := ev.(type) {
		case *sdl.QuitEvent:
			return false

		case *sdl.WindowEvent:
			switch ev.Event {
			case sdl.WINDOWEVENT_FOCUS_GAINED:
				o.gpu.SetFocused(true)
			case sdl.WINDOWEVENT_FOCUS_LOST:
				o.gpu.SetFocused(false)
			case sdl.WINDOWEVENT_SIZE_CHANGED:
				w, h := window.GLGetDrawableSize()
				o.gpu.Resize(int(w), int(h))
			}

		case *sdl.KeyboardEvent:
			o.handleKey(window, ev)
		}
	}
	return true
}

// sdlKeys maps SDL scancodes to device key codes. F10 to F12 are kept for
// the host.
var sdlKeys = func() map[sdl.Scancode]uint8 {
	m := map[sdl.Scancode]uint8{
		sdl.SCANCODE_BACKSPACE:    KEY_BACKSPACE,
		sdl.SCANCODE_TAB:          KEY_TAB,
		sdl.SCANCODE_RETURN:       KEY_ENTER,
		sdl.SCANCODE_KP_ENTER:     KEY_ENTER,
		sdl.SCANCODE_LSHIFT:       KEY_SHIFT,
		sdl.SCANCODE_RSHIFT:       KEY_SHIFT,
		sdl.SCANCODE_LCTRL:        KEY_CONTROL,
		sdl.SCANCODE_RCTRL:        KEY_CONTROL,
		sdl.SCANCODE_LALT:         KEY_ALT,
		sdl.SCANCODE_RALT:         KEY_ALT,
		sdl.SCANCODE_ESCAPE:       KEY_ESCAPE,
		sdl.SCANCODE_SPACE:        KEY_SPACE,
		sdl.SCANCODE_LEFT:         KEY_LEFT,
		sdl.SCANCODE_UP:           KEY_UP,
		sdl.SCANCODE_RIGHT:        KEY_RIGHT,
		sdl.SCANCODE_DOWN:         KEY_DOWN,
		sdl.SCANCODE_DELETE:       KEY_DELETE,
		sdl.SCANCODE_0:            KEY_0,
		sdl.SCANCODE_SEMICOLON:    KEY_SEMICOLON,
		sdl.SCANCODE_EQUALS:       KEY_EQUAL,
		sdl.SCANCODE_COMMA:        KEY_COMMA,
		sdl.SCANCODE_MINUS:        KEY_MINUS,
		sdl.SCANCODE_PERIOD:       KEY_PERIOD,
		sdl.SCANCODE_SLASH:        KEY_SLASH,
		sdl.SCANCODE_GRAVE:        KEY_GRAVE,
		sdl.SCANCODE_LEFTBRACKET:  KEY_BRACKET_L,
		sdl.SCANCODE_BACKSLASH:    KEY_BACKSLASH,
		sdl.SCANCODE_RIGHTBRACKET: KEY_BRACKET_R,
		sdl.SCANCODE_APOSTROPHE:   KEY_APOSTROPHE,
	}
	for i := 0; i < 26; i++ {
		m[sdl.SCANCODE_A+sdl.Scancode(i)] = uint8(KEY_A + i)
	}
	// SDL orders the digit row 1..9 then 0
	for i := 0; i < 9; i++ {
		m[sdl.SCANCODE_1+sdl.Scancode(i)] = uint8(KEY_0 + 1 + i)
	}
	for i := 0; i < 9; i++ {
		m[sdl.SCANCODE_F1+sdl.Scancode(i)] = uint8(KEY_F1 + i)
	}
	return m
}()

func (o *GLOutput) handleKey(window *sdl.Window, ev *sdl.KeyboardEvent) {
	pressed := ev.Type == sdl.KEYDOWN
	if pressed && ev.Repeat != 0 {
		return
	}
	code := ev.Keysym.Scancode

	if pressed {
		switch code {
		case sdl.SCANCODE_F10:
			if o.resetInProgress.CompareAndSwap(false, true) {
				o.mutex.Lock()
				handler := o.hardResetHandler
				o.mutex.Unlock()
				if handler == nil {
					handler = o.gpu.Reset
				}
				go func() {
					defer o.resetInProgress.Store(false)
					handler()
				}()
			}
			return
		case sdl.SCANCODE_F11:
			o.fullscreen = !o.fullscreen
			var flags uint32
			if o.fullscreen {
				flags = sdl.WINDOW_FULLSCREEN_DESKTOP
			}
			window.SetFullscreen(flags)
			return
		case sdl.SCANCODE_V:
			mod := sdl.GetModState()
			if mod&sdl.KMOD_CTRL != 0 && mod&sdl.KMOD_SHIFT != 0 {
				if text, err := sdl.GetClipboardText(); err == nil && text != "" {
					data := capPasteText(normalizePasteText([]byte(text)), 4096)
					typeText(string(data), o.gpu.OnKeyEvent)
				}
				return
			}
		}
	}
	if key, ok := sdlKeys[code]; ok {
		o.gpu.OnKeyEvent(key, pressed)
	}
}

func (o *GLOutput) Stop() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.stop != nil {
		select {
		case <-o.stop:
		default:
			close(o.stop)
		}
	}
	return nil
}

func (o *GLOutput) Close() error {
	err := o.Stop()
	if o.running.Load() {
		<-o.done
	}
	return err
}

func (o *GLOutput) IsStarted() bool {
	return o.running.Load()
}

func (o *GLOutput) SetDisplayConfig(config DisplayConfig) error {
	if config.Width <= 0 || config.Height <= 0 {
		return &VideoError{Operation: "gl config", Details: fmt.Sprintf("invalid size %dx%d", config.Width, config.Height)}
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.running.Load() {
		return &VideoError{Operation: "gl config", Details: "window already open"}
	}
	o.config = config
	return nil
}

func (o *GLOutput) GetDisplayConfig() DisplayConfig {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.config
}

func (o *GLOutput) WaitForVSync() error {
	select {
	case <-o.vsyncChan:
		return nil
	case <-o.done:
		return &VideoError{Operation: "vsync", Details: "window closed"}
	}
}

func (o *GLOutput) GetFrameCount() uint64 {
	return o.frameCount.Load()
}

func (o *GLOutput) GetRefreshRate() int {
	if o.config.RefreshRate <= 0 {
		return GPU_REFRESH_RATE
	}
	return o.config.RefreshRate
}

func (o *GLOutput) Done() <-chan struct{} {
	return o.done
}
