// gpu_texture_cache.go - GameStation GPU texture cache

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
	"sync"

	"golang.org/x/image/draw"
)

// ErrTextureCacheFull is returned by Push once every layer is reserved.
var ErrTextureCacheFull = errors.New("texture cache full")

// MemoryReader gives the device read access to CPU memory for texture
// sources.
type MemoryReader interface {
	Read32(addr uint32) uint32
}

// TextureCache maps texture source addresses to layers of the backend's
// texture array. Layers are reserved in the bus domain and uploaded in the
// render domain by FlushUploads, in reservation order.
//
// Every reserved tile is kept, so tiles[loaded:] is the upload queue and the
// next layer handed out is always len(tiles).
type TextureCache struct {
	mutex    sync.Mutex
	memory   MemoryReader
	tileSize int
	capacity int
	anchor   TileAnchor

	layers     map[uint32]int
	tiles      []*image.RGBA
	loaded     int
	generation uint64 // bumped by Clear so an in-flight flush can tell
	fullLogged bool
}

// NewTextureCache creates an empty cache reading sources from memory.
func NewTextureCache(memory MemoryReader, config DeviceConfig) *TextureCache {
	return &TextureCache{
		memory:   memory,
		tileSize: config.TileSize,
		capacity: config.TextureLayers,
		anchor:   config.TileAnchor,
		layers:   make(map[uint32]int),
	}
}

// SetMemory replaces the texture source reader.
func (c *TextureCache) SetMemory(memory MemoryReader) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.memory = memory
}

// Push returns the layer for the texture at addr, reserving one and queueing
// its tile for upload on first sight. Repeated pushes of the same address
// return the same layer without touching memory.
func (c *TextureCache) Push(addr uint32) (int, error) {
	c.mutex.Lock()
	if layer, ok := c.layers[addr]; ok {
		c.mutex.Unlock()
		return layer, nil
	}
	if len(c.tiles) >= c.capacity {
		first := !c.fullLogged
		c.fullLogged = true
		c.mutex.Unlock()
		if first {
			logf(LOG_TAG_TEXTURE, "all %d layers in use, texture at 0x%08X dropped", c.capacity, addr)
		}
		return NoTexture, ErrTextureCacheFull
	}
	memory := c.memory
	c.mutex.Unlock()

	// Source decode runs unlocked; the render domain may be flushing.
	tile := c.buildTile(memory, addr)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if layer, ok := c.layers[addr]; ok {
		return layer, nil
	}
	if len(c.tiles) >= c.capacity {
		return NoTexture, ErrTextureCacheFull
	}
	c.tiles = append(c.tiles, tile)
	layer := c.loaded + (len(c.tiles) - c.loaded) - 1
	c.layers[addr] = layer
	return layer, nil
}

// buildTile reads the texture at addr and fits it into a square tile.
// A corrupt header yields a fully transparent tile.
func (c *TextureCache) buildTile(memory MemoryReader, addr uint32) *image.RGBA {
	tile := image.NewRGBA(image.Rect(0, 0, c.tileSize, c.tileSize))
	if memory == nil {
		return tile
	}

	header := memory.Read32(addr)
	w := int(header & 0xFFFF)
	h := int(header >> 16)
	if w == 0 || h == 0 || w > GPU_TEX_MAX_DIM || h > GPU_TEX_MAX_DIM {
		logf(LOG_TAG_TEXTURE, "bad texture header 0x%08X at 0x%08X", header, addr)
		return tile
	}

	src := image.NewRGBA(image.Rect(0, 0, w, h))
	p := addr + 4
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			v := memory.Read32(p)
			row[x*4+0] = uint8(v >> 24)
			row[x*4+1] = uint8(v >> 16)
			row[x*4+2] = uint8(v >> 8)
			row[x*4+3] = uint8(v)
			p += 4
		}
	}

	dw, dh := w, h
	if w > c.tileSize || h > c.tileSize {
		if w >= h {
			dw, dh = c.tileSize, max(1, h*c.tileSize/w)
		} else {
			dw, dh = max(1, w*c.tileSize/h), c.tileSize
		}
	}

	var dst image.Rectangle
	switch c.anchor {
	case AnchorTopLeft:
		dst = image.Rect(0, 0, dw, dh)
	default:
		dst = image.Rect(0, c.tileSize-dh, dw, c.tileSize)
	}

	if dw == w && dh == h {
		draw.Copy(tile, dst.Min, src, src.Bounds(), draw.Src, nil)
	} else {
		draw.NearestNeighbor.Scale(tile, dst, src, src.Bounds(), draw.Src, nil)
	}
	return tile
}

// FlushUploads drains the upload queue in order, handing each tile to upload
// with its reserved layer. Render domain only. An upload error stops the
// flush and leaves the failed tile and everything after it queued.
func (c *TextureCache) FlushUploads(upload func(layer int, tile *image.RGBA) error) error {
	for {
		c.mutex.Lock()
		if c.loaded >= len(c.tiles) {
			c.mutex.Unlock()
			return nil
		}
		layer := c.loaded
		tile := c.tiles[layer]
		gen := c.generation
		c.mutex.Unlock()

		if err := upload(layer, tile); err != nil {
			return err
		}

		c.mutex.Lock()
		if c.generation == gen {
			c.loaded++
		}
		c.mutex.Unlock()
	}
}

// Replay uploads every already-loaded tile again, used after the backend
// lost its texture storage.
func (c *TextureCache) Replay(upload func(layer int, tile *image.RGBA) error) error {
	c.mutex.Lock()
	loaded := make([]*image.RGBA, c.loaded)
	copy(loaded, c.tiles[:c.loaded])
	c.mutex.Unlock()

	for layer, tile := range loaded {
		if err := upload(layer, tile); err != nil {
			return err
		}
	}
	return nil
}

// Clear forgets every texture. Layers are handed out from 0 again.
func (c *TextureCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	clear(c.layers)
	c.tiles = nil
	c.loaded = 0
	c.generation++
	c.fullLogged = false
}

// Len returns the number of reserved layers.
func (c *TextureCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.tiles)
}

// Loaded returns the number of layers uploaded to the backend.
func (c *TextureCache) Loaded() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.loaded
}

// Pending returns the number of tiles waiting for upload.
func (c *TextureCache) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.tiles) - c.loaded
}

// Layer reports the layer reserved for addr, if any.
func (c *TextureCache) Layer(addr uint32) (int, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	layer, ok := c.layers[addr]
	return layer, ok
}
