package main

import (
	"sync"
	"testing"
)

// newTestGPU builds a device with a software backend on a fresh bus.
func newTestGPU(t *testing.T, config DeviceConfig) (*GameStationGPU, *MachineBus, *SoftwareBackend) {
	t.Helper()
	config.FrameLogEvery = 0
	sw := NewSoftwareBackend()
	g, err := NewGameStationGPU(nil, sw, config)
	if err != nil {
		t.Fatalf("NewGameStationGPU: %v", err)
	}
	bus := NewMachineBus()
	g.Attach(bus)
	return g, bus, sw
}

// writeRecordBytes stores one record through byte-sized bus writes.
func writeRecordBytes(bus *MachineBus, index int, raw RawInstance) {
	words := packInstance(raw)
	base := uint32(GPU_SCENE_BASE + index*GPU_RECORD_SIZE)
	for w, v := range words {
		for b := uint32(0); b < 4; b++ {
			bus.Write8(base+uint32(w)*4+b, uint8(v>>(b*8)))
		}
	}
}

// writeRecordHalves stores one record through halfword bus writes.
func writeRecordHalves(bus *MachineBus, index int, raw RawInstance) {
	words := packInstance(raw)
	base := uint32(GPU_SCENE_BASE + index*GPU_RECORD_SIZE)
	for w, v := range words {
		bus.Write16(base+uint32(w)*4, uint16(v))
		bus.Write16(base+uint32(w)*4+2, uint16(v>>16))
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestGPU_New(t *testing.T) {
	g, err := NewGameStationGPU(nil, nil, DefaultDeviceConfig())
	if err != nil {
		t.Fatalf("NewGameStationGPU: %v", err)
	}
	defer g.Destroy()
	if _, ok := g.Pipeline().Backend().(*SoftwareBackend); !ok {
		t.Fatalf("nil backend should select the software renderer")
	}
}

func TestGPU_NewRejectsBadConfig(t *testing.T) {
	cfg := DefaultDeviceConfig()
	cfg.Width = -1
	if _, err := NewGameStationGPU(nil, nil, cfg); err == nil {
		t.Fatalf("expected config error")
	}
}

// =============================================================================
// Scene path
// =============================================================================

func TestGPU_TwoSolidInstancesThroughBus(t *testing.T) {
	g, bus, sw := newTestGPU(t, DefaultDeviceConfig())

	// Left half red via byte writes, right half blue via halfword writes
	writeRecordBytes(bus, 0, RawInstance{X: 0, Y: 0, W: 256, H: 256, Data: 0xFF0000FF})
	writeRecordHalves(bus, 1, RawInstance{X: 256, Y: 0, W: 256, H: 256, Data: 0x0000FFFF})
	bus.Write32(GPU_DRAW_CALL, 2)

	if g.HandleRead(GPU_STATUS)&GPU_STATUS_PENDING == 0 {
		t.Fatalf("status pending bit not set after draw call")
	}
	if err := g.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if g.Stats().LastInstances != 2 {
		t.Fatalf("instances drawn: %d", g.Stats().LastInstances)
	}
	frame := sw.Frame()
	if c := frame.RGBAAt(10, 10); c.R != 0xFF || c.B != 0 {
		t.Fatalf("left half: %+v", c)
	}
	if c := frame.RGBAAt(500, 200); c.B != 0xFF || c.R != 0 {
		t.Fatalf("right half: %+v", c)
	}
	status := bus.Read32(GPU_STATUS)
	if status&GPU_STATUS_FRAMES != 1 || status&GPU_STATUS_PENDING != 0 {
		t.Fatalf("status after one frame: 0x%08X", status)
	}
}

func TestGPU_DrawCallCountClamped(t *testing.T) {
	g, bus, _ := newTestGPU(t, DefaultDeviceConfig())
	bus.Write32(GPU_DRAW_CALL, 0xFFFFFFFF)
	g.RenderFrame()
	if got := g.Stats().LastInstances; got != GPU_MAX_INSTANCES {
		t.Fatalf("clamped count: got %d, want %d", got, GPU_MAX_INSTANCES)
	}
	if g.DrawCalls() != 1 {
		t.Fatalf("draw calls: %d", g.DrawCalls())
	}
}

func TestGPU_TexturedFromBusMemory(t *testing.T) {
	g, bus, sw := newTestGPU(t, DefaultDeviceConfig())

	// 2x2 green texture in RAM
	tex := uint32(BUS_RAM_BASE + 0x1000)
	bus.Write32(tex, 2<<16|2)
	for i := uint32(0); i < 4; i++ {
		bus.Write32(tex+4+i*4, 0x00FF00FF)
	}
	writeRecordBytes(bus, 0, RawInstance{X: 0, Y: 0, W: 64, H: 64, Kind: GPU_KIND_TEXTURED, Data: tex})
	bus.Write32(GPU_DRAW_CALL, 1)

	layer, ok := g.Textures().Layer(tex)
	if !ok || layer != 0 {
		t.Fatalf("texture not reserved at draw time: %d %v", layer, ok)
	}
	if g.Textures().Loaded() != 0 {
		t.Fatalf("texture uploaded on the bus goroutine")
	}

	g.RenderFrame()
	if g.Textures().Loaded() != 1 {
		t.Fatalf("texture not uploaded by the render tick")
	}
	// Bottom-left anchored 2x2 in a 64x64 tile covering a 64x64 quad
	if c := sw.Frame().RGBAAt(0, 63); c.G != 0xFF || c.R != 0 {
		t.Fatalf("textured pixel: %+v", c)
	}
}

func TestGPU_WriteOnlyRegistersReadZero(t *testing.T) {
	_, bus, _ := newTestGPU(t, DefaultDeviceConfig())
	bus.Write32(GPU_SCENE_BASE, 0x12345678)
	if got := bus.Read32(GPU_SCENE_BASE); got != 0 {
		t.Fatalf("scene window read: 0x%08X", got)
	}
	if got := bus.Read32(GPU_DRAW_CALL); got != 0 {
		t.Fatalf("draw-call read: 0x%08X", got)
	}
}

// =============================================================================
// Keys through the bus
// =============================================================================

func TestGPU_KeyHandshakeThroughBus(t *testing.T) {
	g, bus, _ := newTestGPU(t, DefaultDeviceConfig())
	g.OnKeyEvent(KEY_ENTER, true)

	if n := bus.Read8(GPU_KEY_PRESS); n != 1 {
		t.Fatalf("count: %d", n)
	}
	if code := bus.Read8(GPU_KEY_PRESS + 1); code != KEY_ENTER {
		t.Fatalf("code: 0x%02X", code)
	}
	g.OnKeyEvent(KEY_ENTER, false)
	g.OnKeyEvent(KEY_ESCAPE, true)
	if n := bus.Read8(GPU_KEY_PRESS); n != 1 {
		t.Fatalf("locked register grew to %d", n)
	}
	bus.Write8(GPU_KEY_PRESS, 0)
	if code := bus.Read8(GPU_KEY_PRESS + 1); code != KEY_ESCAPE {
		t.Fatalf("replayed code: 0x%02X", code)
	}
	if n := bus.Read8(GPU_KEY_RELEASE); n != 1 {
		t.Fatalf("release count: %d", n)
	}
}

// =============================================================================
// Reset
// =============================================================================

func TestGPU_ResetKeepsTexturesByDefault(t *testing.T) {
	g, bus, _ := newTestGPU(t, DefaultDeviceConfig())
	tex := uint32(BUS_RAM_BASE + 0x2000)
	bus.Write32(tex, 1<<16|1)
	writeRecordBytes(bus, 0, RawInstance{W: 4, H: 4, Kind: GPU_KIND_TEXTURED, Data: tex})
	bus.Write32(GPU_DRAW_CALL, 1)
	g.OnKeyEvent('A', true)

	g.Reset()
	if g.Textures().Len() != 1 {
		t.Fatalf("texture cache cleared by reset")
	}
	if g.Keys().Count(false) != 0 {
		t.Fatalf("keys not reset")
	}
	if g.Pipeline().Pending() {
		t.Fatalf("pending scene survived reset")
	}
	if w := g.shadow.Word(0); w != 0 {
		t.Fatalf("shadow not cleared: 0x%08X", w)
	}
}

func TestGPU_ResetClearsTexturesWhenConfigured(t *testing.T) {
	cfg := DefaultDeviceConfig()
	cfg.ResetClearsTextures = true
	g, bus, _ := newTestGPU(t, cfg)
	tex := uint32(BUS_RAM_BASE + 0x2000)
	bus.Write32(tex, 1<<16|1)
	writeRecordBytes(bus, 0, RawInstance{W: 4, H: 4, Kind: GPU_KIND_TEXTURED, Data: tex})
	bus.Write32(GPU_DRAW_CALL, 1)

	resetMachine(bus, g)
	if g.Textures().Len() != 0 {
		t.Fatalf("texture cache survived reset")
	}
	if bus.Read32(tex) != 0 {
		t.Fatalf("RAM survived machine reset")
	}
}

// =============================================================================
// Reset against concurrent draw calls
// =============================================================================

func TestGPU_ResetDuringDrawCallsLeavesNoStaleLayers(t *testing.T) {
	cfg := DefaultDeviceConfig()
	cfg.ResetClearsTextures = true
	g, bus, _ := newTestGPU(t, cfg)
	texA := uint32(BUS_RAM_BASE + 0x2000)
	texB := uint32(BUS_RAM_BASE + 0x3000)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			bus.Write32(texA, 1<<16|1)
			bus.Write32(texB, 1<<16|1)
			writeRecordBytes(bus, 0, RawInstance{W: 4, H: 4, Kind: GPU_KIND_TEXTURED, Data: texA})
			writeRecordBytes(bus, 1, RawInstance{W: 4, H: 4, Kind: GPU_KIND_TEXTURED, Data: texB})
			bus.Write32(GPU_DRAW_CALL, 2)
		}
	}()

	for i := 0; i < 200; i++ {
		g.Reset()
	}
	close(stop)
	wg.Wait()

	// Every queued scene must reference layers of the current cache.
	p := g.Pipeline()
	p.queueMutex.Lock()
	defer p.queueMutex.Unlock()
	live := g.Textures().Len()
	for si, scene := range p.queue {
		for ri, r := range scene {
			if fill, ok := r.Fill.(TexturedFill); ok && fill.Layer >= live {
				t.Fatalf("scene %d record %d: layer %d with %d live layers", si, ri, fill.Layer, live)
			}
		}
	}
}
