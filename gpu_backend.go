// gpu_backend.go - Quad backend interface for the GameStation GPU

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
	"errors"
	"image"
	"math"
)

// Backend error classes. Backends wrap these so the pipeline can tell a
// lost context from a broken build with errors.Is.
var (
	ErrContextLost = errors.New("graphics context lost")
	ErrShaderBuild = errors.New("shader build failed")
)

// Instance buffers. The pipeline writes one while the other is drawn.
const (
	InstanceBufferA = 0
	InstanceBufferB = 1
	instanceBuffers = 2
)

// BackendConfig is handed to QuadBackend.Init.
type BackendConfig struct {
	Width, Height int // Surface size in pixels
	TileSize      int
	Layers        int
	MaxInstances  int
	ClearColor    uint32 // 0xRRGGBBAA
}

func backendConfigFrom(c DeviceConfig) BackendConfig {
	return BackendConfig{
		Width:        c.Width,
		Height:       c.Height,
		TileSize:     c.TileSize,
		Layers:       c.TextureLayers,
		MaxInstances: GPU_MAX_INSTANCES,
		ClearColor:   c.ClearColor,
	}
}

// QuadBackend is the graphics API behind the render pipeline. Every method
// is called from the render domain only.
type QuadBackend interface {
	Init(config BackendConfig) error
	UploadLayer(layer int, tile *image.RGBA) error
	UploadInstances(buffer int, instances []InstancePayload) error
	DrawInstanced(buffer int, count int) error
	Resize(width, height int) error
	Destroy()
}

// FrameSource is implemented by backends that can read the last frame back.
type FrameSource interface {
	Frame() *image.RGBA
}

// quadVertex is one corner of an instance in target pixel space.
type quadVertex struct {
	X, Y float32 // Pixels, origin top-left
	U, V float32 // Tile coordinates, origin top-left, in [0,1]
}

// quadCorners places an instance on a targetW x targetH pixel target and
// returns its corners in top-left, top-right, bottom-left, bottom-right
// order. Rotation is applied in pixel space, counter-clockwise on screen.
func quadCorners(p InstancePayload, targetW, targetH float32) [4]quadVertex {
	cx := (p.X + 1) / 2 * targetW
	cy := (1 - p.Y) / 2 * targetH
	hw := p.W / 2 * targetW / 2
	hh := p.H / 2 * targetH / 2
	sin, cos := math.Sincos(float64(p.Rot))
	s, c := float32(sin), float32(cos)

	local := [4][4]float32{
		// x, y (y up), u, v
		{-hw, hh, 0, 0},
		{hw, hh, 1, 0},
		{-hw, -hh, 0, 1},
		{hw, -hh, 1, 1},
	}
	var out [4]quadVertex
	for i, l := range local {
		rx := l[0]*c - l[1]*s
		ry := l[0]*s + l[1]*c
		out[i] = quadVertex{X: cx + rx, Y: cy - ry, U: l[2], V: l[3]}
	}
	return out
}
