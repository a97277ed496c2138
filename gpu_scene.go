// gpu_scene.go - GameStation scene record decoder

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
	"math"
)

// Fill is the per-instance shading: SolidFill or TexturedFill.
type Fill interface {
	isFill()
}

// SolidFill paints the quad with a flat colour, channels in [0,1].
type SolidFill struct {
	R, G, B, A float32
}

// TexturedFill samples a layer of the texture array. Layer is NoTexture when
// the cache had no room, in which case the quad draws nothing.
type TexturedFill struct {
	Layer  int
	Source uint32
}

func (SolidFill) isFill()    {}
func (TexturedFill) isFill() {}

// InstanceRecord is one decoded quad in normalised device coordinates.
// X, Y is the centre, W, H the full extent, Rot radians counter-clockwise.
type InstanceRecord struct {
	X, Y, W, H float32
	Rot        float32
	Fill       Fill
}

// InstancePayload is the flat per-instance layout handed to a backend.
type InstancePayload struct {
	X, Y, W, H float32
	Rot        float32
	R, G, B, A float32
	Layer      int32
}

// Payload flattens the record for upload.
func (r InstanceRecord) Payload() InstancePayload {
	p := InstancePayload{X: r.X, Y: r.Y, W: r.W, H: r.H, Rot: r.Rot, Layer: NoTexture}
	switch f := r.Fill.(type) {
	case SolidFill:
		p.R, p.G, p.B, p.A = f.R, f.G, f.B, f.A
	case TexturedFill:
		// Colour stays zero; the layer alone selects the texel.
		if f.Layer != NoTexture {
			p.Layer = int32(f.Layer)
		}
	}
	return p
}

// RawInstance is an instance record as packed in the scene window.
type RawInstance struct {
	X, Y     int16
	W, H     uint16
	Kind     uint16
	Rotation uint16 // degrees
	Data     uint32
}

// unpackInstance splits four record words. The first-named field of each
// word is in the low half.
func unpackInstance(words []uint32) RawInstance {
	return RawInstance{
		X:        int16(words[0]),
		Y:        int16(words[0] >> 16),
		W:        uint16(words[1]),
		H:        uint16(words[1] >> 16),
		Kind:     uint16(words[2]),
		Rotation: uint16(words[2] >> 16),
		Data:     words[3],
	}
}

// packInstance is the inverse of unpackInstance, used by drivers and tests.
func packInstance(r RawInstance) [GPU_RECORD_WORDS]uint32 {
	return [GPU_RECORD_WORDS]uint32{
		uint32(uint16(r.X)) | uint32(uint16(r.Y))<<16,
		uint32(r.W) | uint32(r.H)<<16,
		uint32(r.Kind) | uint32(r.Rotation)<<16,
		r.Data,
	}
}

// TextureResolver hands out texture layers for source addresses.
type TextureResolver interface {
	Push(addr uint32) (int, error)
}

// SceneDecoder turns a shadow snapshot into instance records.
type SceneDecoder struct {
	width, height float32
	textures      TextureResolver
}

// NewSceneDecoder creates a decoder for a width x height surface.
func NewSceneDecoder(width, height int, textures TextureResolver) *SceneDecoder {
	return &SceneDecoder{
		width:    float32(width),
		height:   float32(height),
		textures: textures,
	}
}

// Decode converts the first count records in words. count is clamped to the
// window capacity and to the records words actually holds.
func (d *SceneDecoder) Decode(words []uint32, count int) []InstanceRecord {
	count = max(0, min(count, GPU_MAX_INSTANCES, len(words)/GPU_RECORD_WORDS))
	records := make([]InstanceRecord, count)
	for i := range records {
		raw := unpackInstance(words[i*GPU_RECORD_WORDS : (i+1)*GPU_RECORD_WORDS])
		records[i] = d.decodeOne(raw)
	}
	return records
}

func (d *SceneDecoder) decodeOne(raw RawInstance) InstanceRecord {
	x, y := float32(raw.X), float32(raw.Y)
	w, h := float32(raw.W), float32(raw.H)

	deg := int(raw.Rotation) % 360

	rec := InstanceRecord{
		X:   (x*2+w)/d.width - 1,
		Y:   -(y*2+h)/d.height + 1,
		W:   w * 2 / d.width,
		H:   h * 2 / d.height,
		Rot: float32(math.Pi * (float64(deg) / 180)),
	}

	if raw.Kind != GPU_KIND_TEXTURED {
		r, g, b, a := unpackRGBA(raw.Data)
		rec.Fill = SolidFill{R: r, G: g, B: b, A: a}
		return rec
	}

	fill := TexturedFill{Layer: NoTexture, Source: raw.Data}
	if d.textures != nil {
		layer, err := d.textures.Push(raw.Data)
		if err == nil {
			fill.Layer = layer
		} else if !errors.Is(err, ErrTextureCacheFull) {
			logf(LOG_TAG_GPU, "texture 0x%08X: %v", raw.Data, err)
		}
	}
	rec.Fill = fill
	return rec
}
