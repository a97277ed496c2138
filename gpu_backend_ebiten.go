//go:build !headless && !gl

// gpu_backend_ebiten.go - Ebiten quad backend for the GameStation GPU

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
gpu_backend_ebiten.go - Ebiten Quad Backend for the GameStation GPU

QuadBackend on top of Ebiten's triangle batcher:
- One ebiten.Image per texture layer, uploaded premultiplied
- Solid instances sample a one-pixel white sub-image
- Each instance becomes two triangles built from quadCorners
- Runs of instances sharing a layer go out in one DrawTriangles call
*/

package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// EbitenBackend renders into an offscreen ebiten.Image that the Ebiten host
// scales onto the window.
type EbitenBackend struct {
	config        BackendConfig
	width, height int
	target        *ebiten.Image
	layers        []*ebiten.Image
	white         *ebiten.Image
	whiteSrc      *ebiten.Image
	buffers       [instanceBuffers][]InstancePayload
	initialized   bool

	vertices []ebiten.Vertex
	indices  []uint16
	premul   []byte
}

// NewEbitenBackend creates an uninitialised Ebiten backend.
func NewEbitenBackend() *EbitenBackend {
	return &EbitenBackend{}
}

func newEbitenQuadBackend() QuadBackend {
	return NewEbitenBackend()
}

func (b *EbitenBackend) Init(config BackendConfig) error {
	if config.Width <= 0 || config.Height <= 0 {
		return &VideoError{Operation: "ebiten init", Details: fmt.Sprintf("invalid surface %dx%d", config.Width, config.Height)}
	}
	b.release()
	b.config = config
	b.width, b.height = config.Width, config.Height
	b.target = ebiten.NewImage(b.width, b.height)
	b.layers = make([]*ebiten.Image, config.Layers)

	b.white = ebiten.NewImage(3, 3)
	b.white.Fill(color.White)
	b.whiteSrc = b.white.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)

	for i := range b.buffers {
		b.buffers[i] = make([]InstancePayload, 0, config.MaxInstances)
	}
	b.initialized = true
	return nil
}

func (b *EbitenBackend) ready(op string) error {
	if !b.initialized {
		return &VideoError{Operation: op, Details: "backend not initialised", Err: ErrContextLost}
	}
	return nil
}

// UploadLayer converts a straight-alpha tile to Ebiten's premultiplied form.
func (b *EbitenBackend) UploadLayer(layer int, tile *image.RGBA) error {
	if err := b.ready("ebiten upload layer"); err != nil {
		return err
	}
	if layer < 0 || layer >= len(b.layers) {
		return &VideoError{Operation: "ebiten upload layer", Details: fmt.Sprintf("layer %d out of range", layer)}
	}
	size := tile.Bounds().Size()
	img := b.layers[layer]
	if img == nil || img.Bounds().Size() != size {
		if img != nil {
			img.Deallocate()
		}
		img = ebiten.NewImage(size.X, size.Y)
		b.layers[layer] = img
	}

	if cap(b.premul) < len(tile.Pix) {
		b.premul = make([]byte, len(tile.Pix))
	}
	pix := b.premul[:len(tile.Pix)]
	for i := 0; i < len(pix); i += 4 {
		a := uint32(tile.Pix[i+3])
		pix[i] = uint8((uint32(tile.Pix[i])*a + 127) / 255)
		pix[i+1] = uint8((uint32(tile.Pix[i+1])*a + 127) / 255)
		pix[i+2] = uint8((uint32(tile.Pix[i+2])*a + 127) / 255)
		pix[i+3] = uint8(a)
	}
	img.WritePixels(pix)
	return nil
}

func (b *EbitenBackend) UploadInstances(buffer int, instances []InstancePayload) error {
	if err := b.ready("ebiten upload instances"); err != nil {
		return err
	}
	if buffer < 0 || buffer >= instanceBuffers {
		return &VideoError{Operation: "ebiten upload instances", Details: fmt.Sprintf("buffer %d out of range", buffer)}
	}
	b.buffers[buffer] = append(b.buffers[buffer][:0], instances...)
	return nil
}

// source returns the image an instance samples and its size in texels.
func (b *EbitenBackend) source(p InstancePayload) (*ebiten.Image, float32, bool) {
	if p.Layer == NoTexture {
		return b.whiteSrc, 0, true
	}
	if int(p.Layer) >= len(b.layers) || b.layers[p.Layer] == nil {
		return nil, 0, false
	}
	return b.layers[p.Layer], float32(b.layers[p.Layer].Bounds().Dx()), true
}

func (b *EbitenBackend) DrawInstanced(buffer int, count int) error {
	if err := b.ready("ebiten draw"); err != nil {
		return err
	}
	if buffer < 0 || buffer >= instanceBuffers {
		return &VideoError{Operation: "ebiten draw", Details: fmt.Sprintf("buffer %d out of range", buffer)}
	}

	c := b.config.ClearColor
	b.target.Fill(color.RGBA{uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)})

	instances := b.buffers[buffer]
	count = min(count, len(instances))
	tw, th := float32(b.width), float32(b.height)

	var batch *ebiten.Image
	for i := 0; i < count; i++ {
		p := instances[i]
		src, size, ok := b.source(p)
		if !ok {
			continue
		}
		// uint16 indices cap a batch at 16384 quads
		if src != batch || len(b.vertices) >= 0xFFFF-4 {
			b.flush(batch)
			batch = src
		}
		base := uint16(len(b.vertices))
		cr, cg, cb, ca := p.R, p.G, p.B, p.A
		if p.Layer >= 0 {
			cr, cg, cb, ca = 1, 1, 1, 1
		}
		for _, v := range quadCorners(p, tw, th) {
			sx, sy := float32(1.5), float32(1.5)
			if size > 0 {
				sx, sy = v.U*size, v.V*size
			}
			b.vertices = append(b.vertices, ebiten.Vertex{
				DstX: v.X, DstY: v.Y,
				SrcX: sx, SrcY: sy,
				ColorR: cr, ColorG: cg, ColorB: cb, ColorA: ca,
			})
		}
		b.indices = append(b.indices, base, base+1, base+2, base+1, base+3, base+2)
	}
	b.flush(batch)
	return nil
}

func (b *EbitenBackend) flush(src *ebiten.Image) {
	if src == nil || len(b.indices) == 0 {
		b.vertices, b.indices = b.vertices[:0], b.indices[:0]
		return
	}
	opts := &ebiten.DrawTrianglesOptions{
		ColorScaleMode: ebiten.ColorScaleModeStraightAlpha,
		Filter:         ebiten.FilterNearest,
		Address:        ebiten.AddressClampToZero,
	}
	b.target.DrawTriangles(b.vertices, b.indices, src, opts)
	b.vertices, b.indices = b.vertices[:0], b.indices[:0]
}

func (b *EbitenBackend) Resize(width, height int) error {
	if err := b.ready("ebiten resize"); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return &VideoError{Operation: "ebiten resize", Details: fmt.Sprintf("invalid size %dx%d", width, height)}
	}
	if width == b.width && height == b.height {
		return nil
	}
	b.target.Deallocate()
	b.width, b.height = width, height
	b.target = ebiten.NewImage(width, height)
	return nil
}

func (b *EbitenBackend) release() {
	if b.target != nil {
		b.target.Deallocate()
	}
	for _, l := range b.layers {
		if l != nil {
			l.Deallocate()
		}
	}
	if b.white != nil {
		b.white.Deallocate()
	}
	b.target, b.layers, b.white, b.whiteSrc = nil, nil, nil, nil
}

func (b *EbitenBackend) Destroy() {
	b.release()
	b.initialized = false
	for i := range b.buffers {
		b.buffers[i] = nil
	}
}

// Target is the offscreen image the last frame was drawn into.
func (b *EbitenBackend) Target() *ebiten.Image {
	return b.target
}
