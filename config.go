// config.go - GameStation device configuration

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
)

// TileAnchor selects where a smaller texture sits inside its padded tile.
type TileAnchor int

const (
	AnchorBottomLeft TileAnchor = iota // Texture coordinate origin at the bottom-left
	AnchorTopLeft
)

func (a TileAnchor) String() string {
	switch a {
	case AnchorBottomLeft:
		return "bottom-left"
	case AnchorTopLeft:
		return "top-left"
	}
	return fmt.Sprintf("TileAnchor(%d)", int(a))
}

// ParseTileAnchor maps a CLI value to a TileAnchor.
func ParseTileAnchor(s string) (TileAnchor, error) {
	switch s {
	case "bottom-left", "bl":
		return AnchorBottomLeft, nil
	case "top-left", "tl":
		return AnchorTopLeft, nil
	}
	return 0, fmt.Errorf("unknown tile anchor %q", s)
}

// DeviceConfig holds everything the device needs at construction time.
type DeviceConfig struct {
	Width, Height       int // Device surface in pixels
	Scale               int // Window scale factor for windowed hosts
	TileSize            int
	TextureLayers       int
	TileAnchor          TileAnchor
	ResetClearsTextures bool
	ClearColor          uint32 // 0xRRGGBBAA
	RefreshRate         int
	FrameLogEvery       int // Debug frame log cadence, 0 disables
}

// DefaultDeviceConfig returns the power-on configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Width:         GPU_DEFAULT_WIDTH,
		Height:        GPU_DEFAULT_HEIGHT,
		Scale:         GPU_DEFAULT_SCALE,
		TileSize:      GPU_TILE_SIZE,
		TextureLayers: GPU_TEXTURE_LAYERS,
		TileAnchor:    AnchorBottomLeft,
		ClearColor:    GPU_CLEAR_COLOR,
		RefreshRate:   GPU_REFRESH_RATE,
		FrameLogEvery: GPU_FRAME_LOG_EVERY,
	}
}

// Validate reports the first out-of-range field.
func (c DeviceConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return &VideoError{Operation: "config", Details: fmt.Sprintf("invalid surface %dx%d", c.Width, c.Height)}
	}
	if c.Scale < 1 {
		return &VideoError{Operation: "config", Details: fmt.Sprintf("invalid scale %d", c.Scale)}
	}
	if c.TileSize <= 0 || c.TileSize > GPU_TEX_MAX_DIM {
		return &VideoError{Operation: "config", Details: fmt.Sprintf("invalid tile size %d", c.TileSize)}
	}
	if c.TextureLayers <= 0 {
		return &VideoError{Operation: "config", Details: fmt.Sprintf("invalid texture layer count %d", c.TextureLayers)}
	}
	if c.TileAnchor != AnchorBottomLeft && c.TileAnchor != AnchorTopLeft {
		return &VideoError{Operation: "config", Details: "invalid tile anchor " + c.TileAnchor.String()}
	}
	if c.RefreshRate <= 0 {
		return &VideoError{Operation: "config", Details: fmt.Sprintf("invalid refresh rate %d", c.RefreshRate)}
	}
	if c.FrameLogEvery < 0 {
		return &VideoError{Operation: "config", Details: fmt.Sprintf("invalid frame log cadence %d", c.FrameLogEvery)}
	}
	return nil
}

// clearRGBA splits ClearColor into normalised channels.
func (c DeviceConfig) clearRGBA() (r, g, b, a float32) {
	return unpackRGBA(c.ClearColor)
}

// unpackRGBA splits a 0xRRGGBBAA word into channels in [0,1].
func unpackRGBA(v uint32) (r, g, b, a float32) {
	return float32(v>>24&0xFF) / 255, float32(v>>16&0xFF) / 255,
		float32(v>>8&0xFF) / 255, float32(v&0xFF) / 255
}
