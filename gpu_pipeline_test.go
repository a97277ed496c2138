package main

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
)

// recordingBackend remembers every call the pipeline makes.
type recordingBackend struct {
	mutex     sync.Mutex
	inits     int
	destroys  int
	layers    map[int]*image.RGBA
	uploads   []int // layer order
	instances [instanceBuffers][]InstancePayload
	draws     [][2]int // buffer, count
	resizes   [][2]int
	failDraw  error
	failInit  error
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{layers: make(map[int]*image.RGBA)}
}

func (b *recordingBackend) Init(BackendConfig) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.inits++
	return b.failInit
}

func (b *recordingBackend) UploadLayer(layer int, tile *image.RGBA) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.layers[layer] = tile
	b.uploads = append(b.uploads, layer)
	return nil
}

func (b *recordingBackend) UploadInstances(buffer int, instances []InstancePayload) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.instances[buffer] = append([]InstancePayload(nil), instances...)
	return nil
}

func (b *recordingBackend) DrawInstanced(buffer, count int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.failDraw != nil {
		return b.failDraw
	}
	b.draws = append(b.draws, [2]int{buffer, count})
	return nil
}

func (b *recordingBackend) Resize(w, h int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.resizes = append(b.resizes, [2]int{w, h})
	return nil
}

func (b *recordingBackend) Destroy() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.destroys++
}

func (b *recordingBackend) lastDraw() [2]int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if len(b.draws) == 0 {
		return [2]int{-1, -1}
	}
	return b.draws[len(b.draws)-1]
}

func solidRecords(n int) []InstanceRecord {
	recs := make([]InstanceRecord, n)
	for i := range recs {
		recs[i] = InstanceRecord{W: 0.1, H: 0.1, Fill: SolidFill{R: 1, A: 1}}
	}
	return recs
}

func newTestPipeline(backend QuadBackend) (*RenderPipeline, *TextureCache, *testMemory) {
	mem := newTestMemory()
	cfg := DefaultDeviceConfig()
	cfg.FrameLogEvery = 0
	cache := NewTextureCache(mem, cfg)
	return NewRenderPipeline(backend, cache, cfg), cache, mem
}

// =============================================================================
// Submit / RenderFrame
// =============================================================================

func TestPipeline_SubmitThenRender(t *testing.T) {
	b := newRecordingBackend()
	p, _, _ := newTestPipeline(b)

	if err := p.RenderFrame(); err != nil {
		t.Fatalf("empty frame: %v", err)
	}
	if b.inits != 1 {
		t.Fatalf("backend not initialised on first frame")
	}
	if d := b.lastDraw(); d[1] != 0 {
		t.Fatalf("empty frame drew %d instances", d[1])
	}

	p.Submit(solidRecords(2))
	if !p.Pending() {
		t.Fatalf("pending flag not raised by Submit")
	}
	if err := p.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if p.Pending() {
		t.Fatalf("pending flag not cleared after render")
	}
	d := b.lastDraw()
	if d[1] != 2 {
		t.Fatalf("expected 2 instances drawn, got %d", d[1])
	}
	if got := len(b.instances[d[0]]); got != 2 {
		t.Fatalf("drawn buffer holds %d payloads", got)
	}

	// The same scene keeps drawing until a new one arrives
	p.RenderFrame()
	if d2 := b.lastDraw(); d2 != d {
		t.Fatalf("redraw changed buffer/count: %v -> %v", d, d2)
	}
}

func TestPipeline_BuffersAlternate(t *testing.T) {
	b := newRecordingBackend()
	p, _, _ := newTestPipeline(b)

	p.Submit(solidRecords(1))
	p.RenderFrame()
	first := b.lastDraw()[0]
	p.Submit(solidRecords(3))
	p.RenderFrame()
	second := b.lastDraw()
	if second[0] == first {
		t.Fatalf("new scene drawn from the same buffer %d", first)
	}
	if second[1] != 3 {
		t.Fatalf("expected 3 instances, got %d", second[1])
	}
	if len(b.instances[first]) != 1 {
		t.Fatalf("previous buffer overwritten")
	}
}

func TestPipeline_QueueDropsOldest(t *testing.T) {
	b := newRecordingBackend()
	p, _, _ := newTestPipeline(b)

	for n := 1; n <= GPU_SCENE_QUEUE_MAX+2; n++ {
		p.Submit(solidRecords(n))
	}
	if got := p.Stats().DroppedScenes; got != 2 {
		t.Fatalf("expected 2 dropped scenes, got %d", got)
	}

	// Remaining scenes come out oldest first: 3, 4, 5 instances
	for want := 3; want <= GPU_SCENE_QUEUE_MAX+2; want++ {
		p.RenderFrame()
		if got := b.lastDraw()[1]; got != want {
			t.Fatalf("expected scene of %d instances, got %d", want, got)
		}
	}
	if p.Pending() {
		t.Fatalf("queue should be drained")
	}
}

func TestPipeline_TexturesFlushedBeforeDraw(t *testing.T) {
	b := newRecordingBackend()
	p, cache, mem := newTestPipeline(b)
	mem.putTexture(0x100, 2, 2, solidPixel(0xFFFFFFFF))
	mem.putTexture(0x200, 2, 2, solidPixel(0xFFFFFFFF))
	d := NewSceneDecoder(512, 256, cache)

	recs := d.Decode(sceneWords(
		RawInstance{W: 4, H: 4, Kind: GPU_KIND_TEXTURED, Data: 0x200},
		RawInstance{W: 4, H: 4, Kind: GPU_KIND_TEXTURED, Data: 0x100},
	), 2)
	p.Submit(recs)
	p.RenderFrame()

	if len(b.uploads) != 2 || b.uploads[0] != 0 || b.uploads[1] != 1 {
		t.Fatalf("uploads in order [0 1], got %v", b.uploads)
	}
	buf := b.instances[b.lastDraw()[0]]
	if buf[0].Layer != 0 || buf[1].Layer != 1 {
		t.Fatalf("payload layers: %d %d", buf[0].Layer, buf[1].Layer)
	}
}

// =============================================================================
// Errors and reinit
// =============================================================================

func TestPipeline_DrawErrorSkipsFrame(t *testing.T) {
	b := newRecordingBackend()
	p, _, _ := newTestPipeline(b)
	b.failDraw = fmt.Errorf("transient")

	if err := p.RenderFrame(); err == nil {
		t.Fatalf("expected draw error")
	}
	if p.ContextLost() {
		t.Fatalf("plain error should not mark context lost")
	}
	if p.FrameCount() != 0 {
		t.Fatalf("skipped frame counted")
	}
	b.failDraw = nil
	if err := p.RenderFrame(); err != nil {
		t.Fatalf("recovery frame: %v", err)
	}
	if p.FrameCount() != 1 {
		t.Fatalf("frame count: %d", p.FrameCount())
	}
}

func TestPipeline_ContextLostIsSticky(t *testing.T) {
	b := newRecordingBackend()
	p, cache, mem := newTestPipeline(b)
	mem.putTexture(0x100, 1, 1, solidPixel(1))
	cache.Push(0x100)
	p.Submit(solidRecords(4))
	p.RenderFrame()

	b.failDraw = &VideoError{Operation: "draw", Details: "device removed", Err: ErrContextLost}
	p.RenderFrame()
	if !p.ContextLost() {
		t.Fatalf("context loss not detected")
	}
	b.failDraw = nil
	draws := len(b.draws)
	if err := p.RenderFrame(); !errors.Is(err, ErrContextLost) {
		t.Fatalf("expected ErrContextLost while lost, got %v", err)
	}
	if len(b.draws) != draws {
		t.Fatalf("drew while context lost")
	}

	b.uploads = nil
	if err := p.Reinit(); err != nil {
		t.Fatalf("Reinit: %v", err)
	}
	if p.ContextLost() {
		t.Fatalf("Reinit did not clear context lost")
	}
	if b.destroys != 1 || b.inits != 2 {
		t.Fatalf("Reinit: destroys=%d inits=%d", b.destroys, b.inits)
	}
	if len(b.uploads) != 1 || b.uploads[0] != 0 {
		t.Fatalf("texture replay uploaded %v", b.uploads)
	}
	if err := p.RenderFrame(); err != nil {
		t.Fatalf("frame after Reinit: %v", err)
	}
	if got := b.lastDraw()[1]; got != 4 {
		t.Fatalf("active scene not restored: %d instances", got)
	}
}

func TestPipeline_InitFailureSuspends(t *testing.T) {
	b := newRecordingBackend()
	b.failInit = fmt.Errorf("compile: %w", ErrShaderBuild)
	p, _, _ := newTestPipeline(b)

	if err := p.RenderFrame(); !errors.Is(err, ErrShaderBuild) {
		t.Fatalf("expected ErrShaderBuild, got %v", err)
	}
	if !p.Stats().ContextLost {
		t.Fatalf("init failure should suspend rendering")
	}
}

func TestPipeline_ResetAndResize(t *testing.T) {
	b := newRecordingBackend()
	p, _, _ := newTestPipeline(b)

	p.Resize(100, 100) // before init: ignored
	p.Submit(solidRecords(5))
	p.RenderFrame()
	p.Submit(solidRecords(6))

	p.Reset()
	if p.Pending() {
		t.Fatalf("Reset left a pending scene")
	}
	p.RenderFrame()
	if got := b.lastDraw()[1]; got != 0 {
		t.Fatalf("Reset did not clear the active scene: %d", got)
	}

	p.Resize(1024, 512)
	if len(b.resizes) != 1 || b.resizes[0] != [2]int{1024, 512} {
		t.Fatalf("resizes: %v", b.resizes)
	}
}

// =============================================================================
// Software backend end to end
// =============================================================================

func TestPipeline_SoftwareFullSurfaceSolid(t *testing.T) {
	sw := NewSoftwareBackend()
	p, _, _ := newTestPipeline(sw)
	d := NewSceneDecoder(512, 256, nil)

	p.Submit(d.Decode(sceneWords(RawInstance{W: 512, H: 256, Data: 0x00FF00FF}), 1))
	if err := p.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	frame := p.Frame()
	for _, pt := range []image.Point{{0, 0}, {511, 0}, {0, 255}, {511, 255}, {256, 128}} {
		c := frame.RGBAAt(pt.X, pt.Y)
		if c.R != 0 || c.G != 0xFF || c.B != 0 {
			t.Fatalf("pixel %v: got %+v, want green", pt, c)
		}
	}
}

func TestPipeline_SoftwareClearColour(t *testing.T) {
	sw := NewSoftwareBackend()
	p, _, _ := newTestPipeline(sw)
	p.RenderFrame()
	c := p.Frame().RGBAAt(10, 10)
	if c.R != 0x33 || c.G != 0x33 || c.B != 0x33 || c.A != 0xFF {
		t.Fatalf("clear colour: got %+v", c)
	}
}

func TestPipeline_SoftwareTexturedQuad(t *testing.T) {
	sw := NewSoftwareBackend()
	p, cache, mem := newTestPipeline(sw)
	// 64x64 texture: left half red, right half blue, fills the tile exactly
	mem.putTexture(0x1000, 64, 64, func(x, y int) uint32 {
		if x < 32 {
			return 0xFF0000FF
		}
		return 0x0000FFFF
	})
	d := NewSceneDecoder(512, 256, cache)
	p.Submit(d.Decode(sceneWords(RawInstance{X: 0, Y: 0, W: 64, H: 64, Kind: GPU_KIND_TEXTURED, Data: 0x1000}), 1))
	p.RenderFrame()

	frame := p.Frame()
	if c := frame.RGBAAt(5, 5); c.R != 0xFF || c.B != 0 {
		t.Fatalf("left half: %+v", c)
	}
	if c := frame.RGBAAt(60, 5); c.B != 0xFF || c.R != 0 {
		t.Fatalf("right half: %+v", c)
	}
	if c := frame.RGBAAt(100, 5); c.R != 0x33 {
		t.Fatalf("outside quad: %+v", c)
	}
}

func TestPipeline_SoftwareRotation(t *testing.T) {
	sw := NewSoftwareBackend()
	p, _, _ := newTestPipeline(sw)
	d := NewSceneDecoder(512, 256, nil)
	// 100x10 bar at the centre rotated 90 degrees becomes 10x100
	p.Submit(d.Decode(sceneWords(RawInstance{X: 206, Y: 123, W: 100, H: 10, Rotation: 90, Data: 0xFFFFFFFF}), 1))
	p.RenderFrame()

	frame := p.Frame()
	if c := frame.RGBAAt(256, 128-40); c.R != 0xFF {
		t.Fatalf("rotated bar missing above centre: %+v", c)
	}
	if c := frame.RGBAAt(256+40, 128); c.R != 0x33 {
		t.Fatalf("rotated bar still horizontal: %+v", c)
	}
}

func TestPipeline_SoftwareLoseContextAndReinit(t *testing.T) {
	sw := NewSoftwareBackend()
	p, _, _ := newTestPipeline(sw)
	p.RenderFrame()
	sw.LoseContext()
	if err := p.RenderFrame(); !errors.Is(err, ErrContextLost) {
		t.Fatalf("expected ErrContextLost, got %v", err)
	}
	if err := p.Reinit(); err != nil {
		t.Fatalf("Reinit: %v", err)
	}
	if err := p.RenderFrame(); err != nil {
		t.Fatalf("frame after Reinit: %v", err)
	}
}

// =============================================================================
// Domains
// =============================================================================

func TestPipeline_ConcurrentSubmitAndRender(t *testing.T) {
	sw := NewSoftwareBackend()
	p, _, _ := newTestPipeline(sw)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			p.Submit(solidRecords(i % 8))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := p.RenderFrame(); err != nil {
				t.Errorf("RenderFrame: %v", err)
				return
			}
		}
	}()
	wg.Wait()
	if p.FrameCount() != 50 {
		t.Fatalf("frames: %d", p.FrameCount())
	}
}

func TestSoftwareBackend_TexturedIgnoresPayloadColor(t *testing.T) {
	sw := NewSoftwareBackend()
	if err := sw.Init(BackendConfig{Width: 4, Height: 4, TileSize: 2, Layers: 1, MaxInstances: 4, ClearColor: 0x000000FF}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tile := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(tile.Pix); i += 4 {
		tile.Pix[i+1], tile.Pix[i+3] = 0xFF, 0xFF
	}
	if err := sw.UploadLayer(0, tile); err != nil {
		t.Fatalf("UploadLayer: %v", err)
	}

	// Textured payloads carry a zero colour; the texel is drawn as is.
	quad := InstancePayload{X: 0, Y: 0, W: 2, H: 2, Layer: 0}
	if err := sw.UploadInstances(InstanceBufferA, []InstancePayload{quad}); err != nil {
		t.Fatalf("UploadInstances: %v", err)
	}
	if err := sw.DrawInstanced(InstanceBufferA, 1); err != nil {
		t.Fatalf("DrawInstanced: %v", err)
	}
	if c := sw.Frame().RGBAAt(1, 1); c.R != 0 || c.G != 0xFF || c.B != 0 {
		t.Fatalf("textured pixel: got %+v, want opaque green", c)
	}
}
