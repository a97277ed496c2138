// gpu_backend_software.go - Software quad rasterizer for the GameStation GPU

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
gpu_backend_software.go - Software Quad Backend for the GameStation GPU

Pure-Go reference implementation of QuadBackend:
- Texture array held as one RGBA tile per layer
- Two instance buffers, written and drawn independently
- Rotated quads rasterised in pixel space by inverse mapping
- Straight-alpha source-over blending onto an opaque frame
- Frame readback for the headless host and tests
*/

package main

import (
	"fmt"
	"image"
	"math"
	"sync"
)

// =============================================================================
// Software Quad Backend
// =============================================================================

// SoftwareBackend renders instanced quads into an *image.RGBA.
type SoftwareBackend struct {
	mutex sync.Mutex

	config        BackendConfig
	width, height int // Render target, may differ from the surface after Resize
	frame         *image.RGBA
	layers        []*image.RGBA
	buffers       [instanceBuffers][]InstancePayload
	initialized   bool
	lost          bool

	draws int // DrawInstanced calls since Init
}

// NewSoftwareBackend creates an uninitialised software backend.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{}
}

// Init allocates the frame and the texture array.
func (b *SoftwareBackend) Init(config BackendConfig) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if config.Width <= 0 || config.Height <= 0 {
		return &VideoError{Operation: "software init", Details: fmt.Sprintf("invalid surface %dx%d", config.Width, config.Height)}
	}
	b.config = config
	b.width, b.height = config.Width, config.Height
	b.frame = image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	b.layers = make([]*image.RGBA, config.Layers)
	for i := range b.buffers {
		b.buffers[i] = make([]InstancePayload, 0, config.MaxInstances)
	}
	b.initialized = true
	b.lost = false
	b.draws = 0
	return nil
}

func (b *SoftwareBackend) ready(op string) error {
	if !b.initialized || b.lost {
		return &VideoError{Operation: op, Details: "backend not initialised", Err: ErrContextLost}
	}
	return nil
}

// UploadLayer copies tile into the given layer.
func (b *SoftwareBackend) UploadLayer(layer int, tile *image.RGBA) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.ready("software upload layer"); err != nil {
		return err
	}
	if layer < 0 || layer >= len(b.layers) {
		return &VideoError{Operation: "software upload layer", Details: fmt.Sprintf("layer %d out of range", layer)}
	}
	dst := image.NewRGBA(tile.Bounds())
	copy(dst.Pix, tile.Pix)
	b.layers[layer] = dst
	return nil
}

// UploadInstances replaces the contents of an instance buffer.
func (b *SoftwareBackend) UploadInstances(buffer int, instances []InstancePayload) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.ready("software upload instances"); err != nil {
		return err
	}
	if buffer < 0 || buffer >= instanceBuffers {
		return &VideoError{Operation: "software upload instances", Details: fmt.Sprintf("buffer %d out of range", buffer)}
	}
	b.buffers[buffer] = append(b.buffers[buffer][:0], instances...)
	return nil
}

// DrawInstanced clears the frame and draws the first count instances of
// buffer.
func (b *SoftwareBackend) DrawInstanced(buffer int, count int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.ready("software draw"); err != nil {
		return err
	}
	if buffer < 0 || buffer >= instanceBuffers {
		return &VideoError{Operation: "software draw", Details: fmt.Sprintf("buffer %d out of range", buffer)}
	}

	b.clear()
	instances := b.buffers[buffer]
	count = min(count, len(instances))
	for i := 0; i < count; i++ {
		b.drawQuad(instances[i])
	}
	b.draws++
	return nil
}

func (b *SoftwareBackend) clear() {
	c := b.config.ClearColor
	r, g, bl, a := uint8(c>>24), uint8(c>>16), uint8(c>>8), uint8(c)
	pix := b.frame.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, bl, a
	}
}

// drawQuad rasterises one instance. Each pixel centre inside the bounding
// box is mapped back into the unrotated quad to find its tile coordinate.
func (b *SoftwareBackend) drawQuad(p InstancePayload) {
	tw, th := float32(b.width), float32(b.height)
	corners := quadCorners(p, tw, th)

	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, v := range corners[1:] {
		minX, maxX = min(minX, v.X), max(maxX, v.X)
		minY, maxY = min(minY, v.Y), max(maxY, v.Y)
	}
	x0 := max(0, int(math.Floor(float64(minX))))
	y0 := max(0, int(math.Floor(float64(minY))))
	x1 := min(b.width, int(math.Ceil(float64(maxX))))
	y1 := min(b.height, int(math.Ceil(float64(maxY))))

	pw := p.W / 2 * tw
	ph := p.H / 2 * th
	if pw <= 0 || ph <= 0 {
		return
	}
	cx := (p.X + 1) / 2 * tw
	cy := (1 - p.Y) / 2 * th
	sin, cos := math.Sincos(float64(p.Rot))
	s, c := float32(sin), float32(cos)

	var tile *image.RGBA
	if p.Layer != NoTexture {
		if int(p.Layer) < len(b.layers) {
			tile = b.layers[p.Layer]
		}
		if tile == nil {
			return // layer reserved but not uploaded yet
		}
	}

	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			dx := float32(px) + 0.5 - cx
			dy := cy - (float32(py) + 0.5)
			lx := dx*c + dy*s
			ly := -dx*s + dy*c
			if lx < -pw/2 || lx >= pw/2 || ly <= -ph/2 || ly > ph/2 {
				continue
			}

			sr, sg, sb, sa := p.R, p.G, p.B, p.A
			if tile != nil {
				u := lx/pw + 0.5
				v := 0.5 - ly/ph
				ts := tile.Bounds().Dx()
				tx := min(ts-1, max(0, int(u*float32(ts))))
				ty := min(ts-1, max(0, int(v*float32(ts))))
				o := tile.PixOffset(tx, ty)
				sr = float32(tile.Pix[o]) / 255
				sg = float32(tile.Pix[o+1]) / 255
				sb = float32(tile.Pix[o+2]) / 255
				sa = float32(tile.Pix[o+3]) / 255
			}
			if sa <= 0 {
				continue
			}
			o := b.frame.PixOffset(px, py)
			d := b.frame.Pix[o : o+4 : o+4]
			d[0] = blendChannel(d[0], sr, sa)
			d[1] = blendChannel(d[1], sg, sa)
			d[2] = blendChannel(d[2], sb, sa)
			d[3] = 0xFF
		}
	}
}

func blendChannel(dst uint8, src, alpha float32) uint8 {
	v := src*alpha + float32(dst)/255*(1-alpha)
	return uint8(min(255, max(0, v*255+0.5)))
}

// Resize reallocates the render target.
func (b *SoftwareBackend) Resize(width, height int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.ready("software resize"); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return &VideoError{Operation: "software resize", Details: fmt.Sprintf("invalid size %dx%d", width, height)}
	}
	b.width, b.height = width, height
	b.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	return nil
}

// Destroy releases everything. The backend must be re-initialised before
// further use.
func (b *SoftwareBackend) Destroy() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.initialized = false
	b.frame = nil
	b.layers = nil
	for i := range b.buffers {
		b.buffers[i] = nil
	}
}

// LoseContext makes every call fail with ErrContextLost until Init runs
// again, the way a GPU driver reset would.
func (b *SoftwareBackend) LoseContext() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.lost = true
}

// Frame returns a copy of the last drawn frame, or nil before Init.
func (b *SoftwareBackend) Frame() *image.RGBA {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.frame == nil {
		return nil
	}
	out := image.NewRGBA(b.frame.Bounds())
	copy(out.Pix, b.frame.Pix)
	return out
}

// DrawCount returns the number of draws since Init.
func (b *SoftwareBackend) DrawCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.draws
}
