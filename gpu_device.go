// gpu_device.go - GameStation GPU MMIO device

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
gpu_device.go - GameStation GPU Device

Bus glue for the GPU. Routes CPU accesses to the key registers, the control
and status registers and the scene-data window, and runs the draw call:

	draw-call write -> shadow snapshot -> SceneDecoder -> RenderPipeline.Submit

Everything here runs on the bus goroutine. The render domain only touches
the pipeline through RenderFrame, Resize and Reinit.
*/

package main

import (
	"sync"
	"sync/atomic"
)

// GameStationGPU is the memory-mapped device.
type GameStationGPU struct {
	config DeviceConfig

	shadow   *ShadowRegisterFile
	textures *TextureCache
	decoder  *SceneDecoder
	pipeline *RenderPipeline
	keys     *KeyRegisters

	// drawMutex orders draw calls against Reset, so a scene is never decoded
	// against one texture cache and submitted after it was cleared.
	drawMutex sync.Mutex

	drawCalls     atomic.Uint64
	lastDrawCount atomic.Uint32
}

// NewGameStationGPU builds the device. memory is where texture sources are
// read from and may be nil until Attach; backend nil selects the software
// renderer.
func NewGameStationGPU(memory MemoryReader, backend QuadBackend, config DeviceConfig) (*GameStationGPU, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = NewSoftwareBackend()
	}

	g := &GameStationGPU{
		config: config,
		shadow: NewShadowRegisterFile(GPU_SCENE_WORDS),
		keys:   NewKeyRegisters(),
	}
	g.textures = NewTextureCache(memory, config)
	g.decoder = NewSceneDecoder(config.Width, config.Height, g.textures)
	g.pipeline = NewRenderPipeline(backend, g.textures, config)
	return g, nil
}

// Attach maps the key registers, the control registers and the scene-data
// window onto bus. The bus also becomes the texture source reader.
func (g *GameStationGPU) Attach(bus *MachineBus) {
	bus.MapIO(GPU_KEY_PRESS, GPU_KEY_REG_END, g.HandleRead, g.HandleWrite)
	bus.MapIO(GPU_DRAW_CALL, GPU_CTRL_END, g.HandleRead, g.HandleWrite)
	bus.MapIO(GPU_SCENE_BASE, GPU_SCENE_END, g.HandleRead, g.HandleWrite)
	g.textures.SetMemory(bus)
}

// HandleRead serves CPU reads. Write-only registers read as zero.
func (g *GameStationGPU) HandleRead(addr uint32) uint32 {
	switch {
	case addr >= GPU_KEY_PRESS && addr <= GPU_KEY_REG_END:
		return g.keys.HandleRead(addr)
	case addr&^3 == GPU_STATUS:
		return g.status()
	}
	return 0
}

// HandleWrite serves CPU writes of size 1, 2 or 4 bytes.
func (g *GameStationGPU) HandleWrite(addr uint32, value uint32, size int) {
	switch {
	case addr >= GPU_SCENE_BASE && addr <= GPU_SCENE_END:
		g.shadow.Write(addr-GPU_SCENE_BASE, value, size)
	case addr >= GPU_KEY_PRESS && addr <= GPU_KEY_REG_END:
		g.keys.HandleWrite(addr, value, size)
	case addr == GPU_DRAW_CALL:
		g.DrawCall(int(value))
	}
}

// DrawCall renders the first count records of the scene window.
func (g *GameStationGPU) DrawCall(count int) {
	g.drawMutex.Lock()
	defer g.drawMutex.Unlock()
	count = max(0, min(count, GPU_MAX_INSTANCES))
	words := g.shadow.Snapshot(count * GPU_RECORD_WORDS)
	records := g.decoder.Decode(words, count)
	g.pipeline.Submit(records)
	g.drawCalls.Add(1)
	g.lastDrawCount.Store(uint32(len(records)))
}

func (g *GameStationGPU) status() uint32 {
	v := uint32(g.pipeline.FrameCount()) & GPU_STATUS_FRAMES
	if g.pipeline.ContextLost() {
		v |= GPU_STATUS_CONTEXT_LOST
	}
	if g.pipeline.Pending() {
		v |= GPU_STATUS_PENDING
	}
	return v
}

// OnKeyEvent forwards a host key transition to the key registers.
func (g *GameStationGPU) OnKeyEvent(code uint8, pressed bool) {
	g.keys.OnKeyEvent(code, pressed)
}

// SetFocused gates key input on window focus.
func (g *GameStationGPU) SetFocused(focused bool) {
	g.keys.SetFocused(focused)
}

// RenderFrame runs one render tick. Render domain only.
func (g *GameStationGPU) RenderFrame() error {
	return g.pipeline.RenderFrame()
}

// Resize changes the render target size. Render domain only.
func (g *GameStationGPU) Resize(width, height int) error {
	return g.pipeline.Resize(width, height)
}

// Reinit rebuilds the backend after a context loss. Render domain only.
func (g *GameStationGPU) Reinit() error {
	return g.pipeline.Reinit()
}

// Destroy releases the backend. Render domain only.
func (g *GameStationGPU) Destroy() {
	g.pipeline.Destroy()
}

// Stats returns the pipeline counters.
func (g *GameStationGPU) Stats() PipelineStats {
	return g.pipeline.Stats()
}

// DrawCalls returns the number of draw-call register writes.
func (g *GameStationGPU) DrawCalls() uint64 {
	return g.drawCalls.Load()
}

// Config returns the device configuration.
func (g *GameStationGPU) Config() DeviceConfig {
	return g.config
}

// Pipeline exposes the render pipeline to hosts.
func (g *GameStationGPU) Pipeline() *RenderPipeline {
	return g.pipeline
}

// Textures exposes the texture cache to hosts.
func (g *GameStationGPU) Textures() *TextureCache {
	return g.textures
}

// Keys exposes the key registers to hosts.
func (g *GameStationGPU) Keys() *KeyRegisters {
	return g.keys
}
