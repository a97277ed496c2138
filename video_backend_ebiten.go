//go:build !headless && !gl

// video_backend_ebiten.go - Ebiten display host for GameStation

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
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const defaultVideoBackend = VIDEO_BACKEND_EBITEN

func init() {
	compiledFeatures = append(compiledFeatures, "video:ebiten")
}

// EbitenOutput is the windowed host. Ebiten's Draw callback is the render
// domain: every call renders one device frame and scales it to the window.
type EbitenOutput struct {
	gpu *GameStationGPU

	running     atomic.Bool
	config      DisplayConfig
	fullscreen  bool
	windowedW   int
	windowedH   int
	surfaceW    int
	surfaceH    int
	frameCount  atomic.Uint64
	vsyncChan   chan struct{}
	done        chan struct{}
	configMutex sync.RWMutex

	focused       bool
	clipboardOnce sync.Once
	clipboardOK   bool
	showStatusBar bool

	hardResetHandler func()
	resetInProgress  atomic.Bool
}

func NewEbitenOutput(gpu *GameStationGPU) (VideoOutput, error) {
	if gpu == nil {
		return nil, &VideoError{Operation: "ebiten creation", Details: "no device"}
	}
	if _, ok := gpu.Pipeline().Backend().(*EbitenBackend); !ok {
		return nil, &VideoError{Operation: "ebiten creation", Details: "device is not using the ebiten backend"}
	}
	config := displayConfigFrom(gpu.Config())
	return &EbitenOutput{
		gpu:           gpu,
		config:        config,
		windowedW:     config.Width * config.Scale,
		windowedH:     config.Height * config.Scale,
		vsyncChan:     make(chan struct{}, 1),
		done:          make(chan struct{}),
		focused:       true,
		showStatusBar: true,
	}, nil
}

func (eo *EbitenOutput) Start() error {
	if eo.running.Load() {
		return nil
	}
	eo.configMutex.Lock()
	eo.done = make(chan struct{})
	title := eo.config.Title
	eo.configMutex.Unlock()

	eo.running.Store(true)
	ebiten.SetWindowSize(eo.windowedW, eo.windowedH)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(eo.config.VSync)
	ebiten.SetTPS(eo.GetRefreshRate())

	go func() {
		defer func() {
			eo.running.Store(false)
			done := eo.Done()
			select {
			case <-done:
			default:
				close(done)
			}
		}()
		if err := ebiten.RunGame(eo); err != nil {
			logf(LOG_TAG_HOST, "ebiten: %v", err)
		}
	}()

	// Wait for the first Draw so the window exists
	<-eo.vsyncChan
	logf(LOG_TAG_HOST, "ebiten host running")
	return nil
}

func (eo *EbitenOutput) Stop() error {
	eo.running.Store(false)
	return nil
}

func (eo *EbitenOutput) Close() error {
	return eo.Stop()
}

func (eo *EbitenOutput) IsStarted() bool {
	return eo.running.Load()
}

func (eo *EbitenOutput) Done() <-chan struct{} {
	eo.configMutex.RLock()
	done := eo.done
	eo.configMutex.RUnlock()
	return done
}

func (eo *EbitenOutput) SetDisplayConfig(config DisplayConfig) error {
	if config.Width <= 0 || config.Height <= 0 {
		return &VideoError{Operation: "ebiten config", Details: fmt.Sprintf("invalid size %dx%d", config.Width, config.Height)}
	}
	eo.configMutex.Lock()
	defer eo.configMutex.Unlock()

	config.Scale = max(1, config.Scale)
	eo.config = config
	eo.windowedW = config.Width * config.Scale
	eo.windowedH = config.Height * config.Scale
	if eo.running.Load() {
		ebiten.SetWindowTitle(config.Title)
		if !eo.fullscreen {
			ebiten.SetWindowSize(eo.windowedW, eo.windowedH)
		}
	}
	return nil
}

func (eo *EbitenOutput) GetDisplayConfig() DisplayConfig {
	eo.configMutex.RLock()
	defer eo.configMutex.RUnlock()
	return eo.config
}

func (eo *EbitenOutput) WaitForVSync() error {
	select {
	case <-eo.vsyncChan:
		return nil
	case <-eo.Done():
		return &VideoError{Operation: "vsync", Details: "window closed"}
	}
}

func (eo *EbitenOutput) GetFrameCount() uint64 {
	return eo.frameCount.Load()
}

func (eo *EbitenOutput) GetRefreshRate() int {
	eo.configMutex.RLock()
	defer eo.configMutex.RUnlock()
	if eo.config.RefreshRate <= 0 {
		return GPU_REFRESH_RATE
	}
	return eo.config.RefreshRate
}

func (eo *EbitenOutput) Update() error {
	if ebiten.IsWindowBeingClosed() || !eo.running.Load() {
		return ebiten.Termination
	}

	if focused := ebiten.IsFocused(); focused != eo.focused {
		eo.focused = focused
		eo.gpu.SetFocused(focused)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		eo.fullscreen = !eo.fullscreen
		ebiten.SetFullscreen(eo.fullscreen)
		if !eo.fullscreen {
			ebiten.SetWindowSize(eo.windowedW, eo.windowedH)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF10) {
		if eo.resetInProgress.CompareAndSwap(false, true) {
			eo.configMutex.RLock()
			handler := eo.hardResetHandler
			eo.configMutex.RUnlock()
			if handler == nil {
				handler = eo.gpu.Reset
			}
			go func() {
				defer eo.resetInProgress.Store(false)
				handler()
			}()
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		eo.showStatusBar = !eo.showStatusBar
	}
	eo.handleKeyboardInput()
	return nil
}

// SetHardResetHandler replaces the F10 action, which defaults to a device
// reset.
func (eo *EbitenOutput) SetHardResetHandler(fn func()) {
	eo.configMutex.Lock()
	eo.hardResetHandler = fn
	eo.configMutex.Unlock()
}

// hostKeys maps Ebiten keys to device key codes. F10 to F12 are kept for
// the host.
var hostKeys = func() map[ebiten.Key]uint8 {
	m := map[ebiten.Key]uint8{
		ebiten.KeyBackspace:    KEY_BACKSPACE,
		ebiten.KeyTab:          KEY_TAB,
		ebiten.KeyEnter:        KEY_ENTER,
		ebiten.KeyNumpadEnter:  KEY_ENTER,
		ebiten.KeyShiftLeft:    KEY_SHIFT,
		ebiten.KeyShiftRight:   KEY_SHIFT,
		ebiten.KeyControlLeft:  KEY_CONTROL,
		ebiten.KeyControlRight: KEY_CONTROL,
		ebiten.KeyAltLeft:      KEY_ALT,
		ebiten.KeyAltRight:     KEY_ALT,
		ebiten.KeyEscape:       KEY_ESCAPE,
		ebiten.KeySpace:        KEY_SPACE,
		ebiten.KeyArrowLeft:    KEY_LEFT,
		ebiten.KeyArrowUp:      KEY_UP,
		ebiten.KeyArrowRight:   KEY_RIGHT,
		ebiten.KeyArrowDown:    KEY_DOWN,
		ebiten.KeyDelete:       KEY_DELETE,
		ebiten.KeySemicolon:    KEY_SEMICOLON,
		ebiten.KeyEqual:        KEY_EQUAL,
		ebiten.KeyComma:        KEY_COMMA,
		ebiten.KeyMinus:        KEY_MINUS,
		ebiten.KeyPeriod:       KEY_PERIOD,
		ebiten.KeySlash:        KEY_SLASH,
		ebiten.KeyBackquote:    KEY_GRAVE,
		ebiten.KeyBracketLeft:  KEY_BRACKET_L,
		ebiten.KeyBackslash:    KEY_BACKSLASH,
		ebiten.KeyBracketRight: KEY_BRACKET_R,
		ebiten.KeyQuote:        KEY_APOSTROPHE,
	}
	for i := 0; i < 26; i++ {
		m[ebiten.KeyA+ebiten.Key(i)] = uint8(KEY_A + i)
	}
	for i := 0; i < 10; i++ {
		m[ebiten.KeyDigit0+ebiten.Key(i)] = uint8(KEY_0 + i)
	}
	for i := 0; i < 9; i++ {
		m[ebiten.KeyF1+ebiten.Key(i)] = uint8(KEY_F1 + i)
	}
	return m
}()

func (eo *EbitenOutput) handleKeyboardInput() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	// Clipboard paste: Ctrl+Shift+V
	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		eo.handleClipboardPaste()
		return
	}

	for _, key := range inpututil.AppendJustPressedKeys(nil) {
		if code, ok := hostKeys[key]; ok {
			eo.gpu.OnKeyEvent(code, true)
		}
	}
	for _, key := range inpututil.AppendJustReleasedKeys(nil) {
		if code, ok := hostKeys[key]; ok {
			eo.gpu.OnKeyEvent(code, false)
		}
	}
}

func (eo *EbitenOutput) handleClipboardPaste() {
	eo.clipboardOnce.Do(func() {
		eo.clipboardOK = clipboard.Init() == nil
	})
	if !eo.clipboardOK {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	data = capPasteText(normalizePasteText(data), 4096)
	n := typeText(string(data), eo.gpu.OnKeyEvent)
	logf(LOG_TAG_HOST, "pasted %d characters", n)
}

func (eo *EbitenOutput) Draw(screen *ebiten.Image) {
	eo.gpu.RenderFrame()

	if b, ok := eo.gpu.Pipeline().Backend().(*EbitenBackend); ok && b.Target() != nil {
		target := b.Target()
		sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
		tw, th := target.Bounds().Dx(), target.Bounds().Dy()
		opts := &ebiten.DrawImageOptions{}
		opts.GeoM.Scale(float64(sw)/float64(tw), float64(sh)/float64(th))
		screen.DrawImage(target, opts)
	}
	if eo.showStatusBar {
		eo.drawRuntimeStatusBar(screen)
	}

	eo.frameCount.Add(1)
	select {
	case eo.vsyncChan <- struct{}{}:
	default:
	}
}

// Layout follows the window; the device renders at the window's size.
func (eo *EbitenOutput) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth <= 0 || outsideHeight <= 0 {
		return eo.config.Width, eo.config.Height
	}
	if outsideWidth != eo.surfaceW || outsideHeight != eo.surfaceH {
		eo.surfaceW, eo.surfaceH = outsideWidth, outsideHeight
		eo.gpu.Resize(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

type statusToken struct {
	name    string
	enabled bool
}

func drawStatusLine(screen *ebiten.Image, x, baselineY int, label string, tokens []statusToken) {
	face := basicfont.Face7x13
	labelColor := color.RGBA{190, 190, 190, 255}
	offColor := color.RGBA{120, 120, 120, 255}
	onColor := color.RGBA{0, 220, 90, 255}

	text.Draw(screen, label, face, x, baselineY, labelColor)
	cursorX := x + text.BoundString(face, label).Dx() + 6

	for _, token := range tokens {
		c := offColor
		if token.enabled {
			c = onColor
		}
		text.Draw(screen, token.name, face, cursorX, baselineY, c)
		cursorX += text.BoundString(face, token.name).Dx() + 8
	}
}

func (eo *EbitenOutput) drawRuntimeStatusBar(screen *ebiten.Image) {
	s := runtimeStatus.snapshot()
	scriptOn, bridgeOn, terminalOn := s.driverFlags()
	stats := eo.gpu.Stats()
	keys := eo.gpu.Keys()

	width, height := screen.Bounds().Dx(), screen.Bounds().Dy()
	barHeight := 44
	if barHeight >= height {
		return
	}
	y := height - barHeight
	ebitenutil.DrawRect(screen, 0, float64(y), float64(width), float64(barHeight), color.RGBA{0, 0, 0, 180})

	drawStatusLine(screen, 6, y+13, "GPU  ", []statusToken{
		{name: fmt.Sprintf("%5.1f FPS", stats.FPS), enabled: !stats.ContextLost},
		{name: "|", enabled: false},
		{name: fmt.Sprintf("%d QUADS", stats.LastInstances), enabled: stats.LastInstances > 0},
		{name: "|", enabled: false},
		{name: fmt.Sprintf("%d TEX", stats.Textures), enabled: stats.Textures > 0},
		{name: "|", enabled: false},
		{name: fmt.Sprintf("%d DROP", stats.DroppedScenes), enabled: stats.DroppedScenes > 0},
		{name: "|", enabled: false},
		{name: "LOST", enabled: stats.ContextLost},
	})
	drawStatusLine(screen, 6, y+26, "INPUT", []statusToken{
		{name: "SCRIPT", enabled: scriptOn},
		{name: "|", enabled: false},
		{name: "BRIDGE", enabled: bridgeOn},
		{name: "|", enabled: false},
		{name: "TERM", enabled: terminalOn},
		{name: "|", enabled: false},
		{name: "FOCUS", enabled: keys.Focused()},
		{name: "|", enabled: false},
		{name: fmt.Sprintf("%d/%d KEYS", keys.Count(false), keys.Count(true)), enabled: keys.Count(false) > 0},
	})
	if tail := deviceLog.Tail(1); len(tail) > 0 {
		text.Draw(screen, tail[0].String(), basicfont.Face7x13, 6, y+39, color.RGBA{160, 160, 160, 255})
	}

	legendColor := color.RGBA{160, 160, 160, 255}
	legend := "F10 Reset  F11 Fullscreen  F12 Status Bar"
	legendW := text.BoundString(basicfont.Face7x13, legend).Dx()
	legendX := max(width-legendW-6, 6)
	legendOpts := &ebiten.DrawImageOptions{}
	legendOpts.GeoM.Translate(float64(legendX), float64(y+13))
	legendOpts.ColorScale.ScaleWithColor(legendColor)
	text.DrawWithOptions(screen, legend, basicfont.Face7x13, legendOpts)
}
