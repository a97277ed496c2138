package main

import (
	"errors"
	"testing"
)

func TestDeviceConfig_DefaultsValid(t *testing.T) {
	c := DefaultDeviceConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.Width != 512 || c.Height != 256 {
		t.Fatalf("default surface: got %dx%d, want 512x256", c.Width, c.Height)
	}
	if c.ResetClearsTextures {
		t.Fatalf("ResetClearsTextures should default to false")
	}
	if c.TileAnchor != AnchorBottomLeft {
		t.Fatalf("default anchor: got %v", c.TileAnchor)
	}
	r, g, b, a := c.clearRGBA()
	if r != 0.2 || g != 0.2 || b != 0.2 || a != 1 {
		t.Fatalf("clear colour: got %v %v %v %v", r, g, b, a)
	}
}

func TestDeviceConfig_Invalid(t *testing.T) {
	cases := []func(*DeviceConfig){
		func(c *DeviceConfig) { c.Width = 0 },
		func(c *DeviceConfig) { c.Scale = 0 },
		func(c *DeviceConfig) { c.TileSize = 4096 },
		func(c *DeviceConfig) { c.TextureLayers = 0 },
		func(c *DeviceConfig) { c.TileAnchor = 7 },
		func(c *DeviceConfig) { c.RefreshRate = -1 },
		func(c *DeviceConfig) { c.FrameLogEvery = -1 },
	}
	for i, mutate := range cases {
		c := DefaultDeviceConfig()
		mutate(&c)
		err := c.Validate()
		var ve *VideoError
		if !errors.As(err, &ve) {
			t.Errorf("case %d: expected *VideoError, got %v", i, err)
		}
	}
}

func TestParseTileAnchor(t *testing.T) {
	for in, want := range map[string]TileAnchor{
		"bottom-left": AnchorBottomLeft,
		"bl":          AnchorBottomLeft,
		"top-left":    AnchorTopLeft,
		"tl":          AnchorTopLeft,
	} {
		got, err := ParseTileAnchor(in)
		if err != nil || got != want {
			t.Errorf("ParseTileAnchor(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseTileAnchor("centre"); err == nil {
		t.Errorf("expected error for unknown anchor")
	}
}
