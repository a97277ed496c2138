// gpu_pipeline.go - GameStation GPU render pipeline

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
gpu_pipeline.go - Render Pipeline for the GameStation GPU

The pipeline sits between the two timing domains:
- Bus domain: Submit queues decoded scenes and raises the pending flag
- Render domain: RenderFrame flushes texture uploads, packs the oldest
  pending scene into the idle instance buffer, flips, and draws

Scenes are kept in a short FIFO so a burst of draw calls between two render
ticks does not block the CPU. When the FIFO is full the oldest scene is
dropped and counted.
*/

package main

import (
	"errors"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// PipelineStats is a point-in-time view of the pipeline counters.
type PipelineStats struct {
	Frames        uint64
	FPS           float64
	DroppedScenes uint64
	LastInstances int
	Pending       bool
	ContextLost   bool
	Textures      int
}

// RenderPipeline drives a QuadBackend at the render domain's pace.
type RenderPipeline struct {
	backend  QuadBackend
	textures *TextureCache
	config   DeviceConfig

	// Bus domain
	queueMutex sync.Mutex
	queue      [][]InstanceRecord
	pending    atomic.Bool
	dropped    atomic.Uint64

	// Render domain
	renderMutex sync.Mutex
	initialized bool
	payloads    [instanceBuffers][]InstancePayload
	active      int
	activeCount int
	fpsFrames   int
	fpsStamp    time.Time

	contextLost atomic.Bool
	frames      atomic.Uint64
	lastCount   atomic.Int32
	fpsBits     atomic.Uint64
}

// NewRenderPipeline creates a pipeline. The backend is initialised lazily on
// the first RenderFrame so that it happens on the render domain.
func NewRenderPipeline(backend QuadBackend, textures *TextureCache, config DeviceConfig) *RenderPipeline {
	p := &RenderPipeline{
		backend:  backend,
		textures: textures,
		config:   config,
	}
	for i := range p.payloads {
		p.payloads[i] = make([]InstancePayload, 0, GPU_MAX_INSTANCES)
	}
	return p
}

// Backend returns the backend in use.
func (p *RenderPipeline) Backend() QuadBackend {
	return p.backend
}

// Submit queues a decoded scene for the next render tick. Bus domain.
func (p *RenderPipeline) Submit(records []InstanceRecord) {
	p.queueMutex.Lock()
	if len(p.queue) >= GPU_SCENE_QUEUE_MAX {
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.dropped.Add(1)
	}
	p.queue = append(p.queue, records)
	p.pending.Store(true)
	p.queueMutex.Unlock()
}

// takeScene pops the oldest pending scene.
func (p *RenderPipeline) takeScene() ([]InstanceRecord, bool) {
	p.queueMutex.Lock()
	defer p.queueMutex.Unlock()

	if len(p.queue) == 0 {
		p.pending.Store(false)
		return nil, false
	}
	scene := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.pending.Store(len(p.queue) > 0)
	return scene, true
}

// RenderFrame runs one render tick. Render domain only.
func (p *RenderPipeline) RenderFrame() error {
	p.renderMutex.Lock()
	defer p.renderMutex.Unlock()

	if p.contextLost.Load() {
		return ErrContextLost
	}
	if !p.initialized {
		if err := p.backend.Init(backendConfigFrom(p.config)); err != nil {
			return p.fail("init", err, true)
		}
		p.initialized = true
		p.fpsStamp = time.Now()
	}

	if err := p.textures.FlushUploads(p.backend.UploadLayer); err != nil {
		return p.fail("texture upload", err, false)
	}

	if p.pending.Load() {
		if scene, ok := p.takeScene(); ok {
			write := 1 - p.active
			buf := p.payloads[write][:0]
			for _, rec := range scene {
				buf = append(buf, rec.Payload())
			}
			p.payloads[write] = buf
			if err := p.backend.UploadInstances(write, buf); err != nil {
				return p.fail("instance upload", err, false)
			}
			p.active = write
			p.activeCount = len(buf)
			p.lastCount.Store(int32(len(buf)))
		}
	}

	if err := p.backend.DrawInstanced(p.active, p.activeCount); err != nil {
		return p.fail("draw", err, false)
	}

	frames := p.frames.Add(1)
	if every := p.config.FrameLogEvery; every > 0 && frames%uint64(every) == 0 {
		logf(LOG_TAG_PIPELINE, "frame %d: %d instances, %d textures", frames, p.activeCount, p.textures.Loaded())
	}
	p.tickFPS()
	return nil
}

// fail logs a backend error and decides whether the context is gone.
// Init failures are always sticky, the backend has nothing to draw with.
func (p *RenderPipeline) fail(op string, err error, sticky bool) error {
	if sticky || errors.Is(err, ErrContextLost) || errors.Is(err, ErrShaderBuild) {
		if !p.contextLost.Swap(true) {
			logf(LOG_TAG_PIPELINE, "%s: %v (rendering suspended)", op, err)
		}
	} else {
		logf(LOG_TAG_PIPELINE, "%s: %v (frame skipped)", op, err)
	}
	return err
}

func (p *RenderPipeline) tickFPS() {
	p.fpsFrames++
	elapsed := time.Since(p.fpsStamp)
	if elapsed < time.Second {
		return
	}
	fps := float64(p.fpsFrames) / elapsed.Seconds()
	p.fpsBits.Store(math.Float64bits(fps))
	p.fpsFrames = 0
	p.fpsStamp = time.Now()
	logf(LOG_TAG_PIPELINE, "%.1f fps", fps)
}

// Reinit rebuilds the backend after a context loss: init, replay every
// loaded texture layer, re-upload the active scene. Render domain only.
func (p *RenderPipeline) Reinit() error {
	p.renderMutex.Lock()
	defer p.renderMutex.Unlock()

	if p.initialized {
		p.backend.Destroy()
		p.initialized = false
	}
	if err := p.backend.Init(backendConfigFrom(p.config)); err != nil {
		return p.fail("reinit", err, true)
	}
	p.initialized = true
	p.fpsStamp = time.Now()
	p.fpsFrames = 0

	if err := p.textures.Replay(p.backend.UploadLayer); err != nil {
		return p.fail("texture replay", err, true)
	}
	if err := p.backend.UploadInstances(p.active, p.payloads[p.active][:p.activeCount]); err != nil {
		return p.fail("instance replay", err, true)
	}
	p.contextLost.Store(false)
	logf(LOG_TAG_PIPELINE, "backend reinitialised, %d textures restored", p.textures.Loaded())
	return nil
}

// Resize forwards a new target size to the backend. Render domain only.
func (p *RenderPipeline) Resize(width, height int) error {
	p.renderMutex.Lock()
	defer p.renderMutex.Unlock()

	if !p.initialized || p.contextLost.Load() {
		return nil
	}
	if err := p.backend.Resize(width, height); err != nil {
		return p.fail("resize", err, false)
	}
	return nil
}

// Reset drops pending scenes and stops drawing the active one.
func (p *RenderPipeline) Reset() {
	p.queueMutex.Lock()
	clear(p.queue)
	p.queue = p.queue[:0]
	p.pending.Store(false)
	p.queueMutex.Unlock()

	p.renderMutex.Lock()
	p.activeCount = 0
	p.lastCount.Store(0)
	p.renderMutex.Unlock()
}

// Destroy releases the backend. Render domain only.
func (p *RenderPipeline) Destroy() {
	p.renderMutex.Lock()
	defer p.renderMutex.Unlock()
	if p.initialized {
		p.backend.Destroy()
		p.initialized = false
	}
}

// Frame reads back the last frame when the backend supports it.
func (p *RenderPipeline) Frame() *image.RGBA {
	if fs, ok := p.backend.(FrameSource); ok {
		return fs.Frame()
	}
	return nil
}

// Pending reports whether a scene is waiting for the render domain.
func (p *RenderPipeline) Pending() bool {
	return p.pending.Load()
}

// ContextLost reports whether rendering is suspended until Reinit.
func (p *RenderPipeline) ContextLost() bool {
	return p.contextLost.Load()
}

// FrameCount returns the number of frames drawn.
func (p *RenderPipeline) FrameCount() uint64 {
	return p.frames.Load()
}

// Stats returns the current counters.
func (p *RenderPipeline) Stats() PipelineStats {
	return PipelineStats{
		Frames:        p.frames.Load(),
		FPS:           math.Float64frombits(p.fpsBits.Load()),
		DroppedScenes: p.dropped.Load(),
		LastInstances: int(p.lastCount.Load()),
		Pending:       p.pending.Load(),
		ContextLost:   p.contextLost.Load(),
		Textures:      p.textures.Loaded(),
	}
}
