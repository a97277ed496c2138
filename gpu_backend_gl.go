//go:build gl && !headless

// gpu_backend_gl.go - OpenGL 3.3 instanced quad backend for the GameStation GPU

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
gpu_backend_gl.go - OpenGL 3.3 Quad Backend for the GameStation GPU

Hardware QuadBackend:
- Texture layers live in one GL_TEXTURE_2D_ARRAY, RGBA8, nearest filtering
- A shared four-vertex strip describes the unit quad
- Two instance VBOs, each with its own VAO and per-instance attributes
- One glDrawArraysInstanced call per frame
- Instance placement and rotation happen in the vertex shader
*/

package main

import (
	"fmt"
	"image"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"
)

// GL_CONTEXT_LOST is not part of the 3.3 core headers.
const glContextLost = 0x0507

const quadVertexShader = `#version 330 core
layout(location = 0) in vec2 aCorner;
layout(location = 1) in vec4 aRect;
layout(location = 2) in float aRot;
layout(location = 3) in vec4 aColor;
layout(location = 4) in int aLayer;

uniform vec2 uTarget;

out vec2 vUV;
out vec4 vColor;
flat out int vLayer;

void main() {
	vec2 centre = vec2((aRect.x + 1.0) * 0.5, (1.0 - aRect.y) * 0.5) * uTarget;
	vec2 extent = aRect.zw * 0.25 * uTarget;
	vec2 local = aCorner * 2.0 * extent;
	float s = sin(aRot);
	float c = cos(aRot);
	vec2 r = vec2(local.x * c - local.y * s, local.x * s + local.y * c);
	vec2 pixel = vec2(centre.x + r.x, centre.y - r.y);
	gl_Position = vec4(pixel.x / uTarget.x * 2.0 - 1.0, 1.0 - pixel.y / uTarget.y * 2.0, 0.0, 1.0);
	vUV = vec2(aCorner.x + 0.5, 0.5 - aCorner.y);
	vColor = aColor;
	vLayer = aLayer;
}
` + "\x00"

const quadFragmentShader = `#version 330 core
in vec2 vUV;
in vec4 vColor;
flat in int vLayer;

uniform sampler2DArray uTiles;

out vec4 fragColor;

void main() {
	if (vLayer < 0) {
		fragColor = vColor;
	} else {
		fragColor = texture(uTiles, vec3(vUV, float(vLayer)));
	}
}
` + "\x00"

// GLBackend renders into the current GL context's default framebuffer. All
// calls must come from the thread that owns the context.
type GLBackend struct {
	config        BackendConfig
	width, height int
	initialized   bool

	program   uint32
	uTarget   int32
	uTiles    int32
	tiles     uint32
	cornerVBO uint32
	vbos      [instanceBuffers]uint32
	vaos      [instanceBuffers]uint32
}

// NewGLBackend creates an uninitialised GL backend.
func NewGLBackend() *GLBackend {
	return &GLBackend{}
}

func newGLQuadBackend() QuadBackend {
	return NewGLBackend()
}

func (b *GLBackend) Init(config BackendConfig) error {
	if config.Width <= 0 || config.Height <= 0 {
		return &VideoError{Operation: "gl init", Details: fmt.Sprintf("invalid surface %dx%d", config.Width, config.Height)}
	}
	if err := gl.Init(); err != nil {
		return &VideoError{Operation: "gl init", Details: "loading GL entry points", Err: ErrContextLost}
	}
	b.Destroy()
	b.config = config
	b.width, b.height = config.Width, config.Height

	program, err := buildQuadProgram()
	if err != nil {
		return err
	}
	b.program = program
	b.uTarget = gl.GetUniformLocation(program, gl.Str("uTarget\x00"))
	b.uTiles = gl.GetUniformLocation(program, gl.Str("uTiles\x00"))

	gl.GenTextures(1, &b.tiles)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, b.tiles)
	gl.TexImage3D(gl.TEXTURE_2D_ARRAY, 0, gl.RGBA8, int32(config.TileSize), int32(config.TileSize), int32(max(1, config.Layers)), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D_ARRAY, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	// triangle strip: top-left, top-right, bottom-left, bottom-right (y up)
	corners := []float32{-0.5, 0.5, 0.5, 0.5, -0.5, -0.5, 0.5, -0.5}
	gl.GenBuffers(1, &b.cornerVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.cornerVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(corners)*4, gl.Ptr(corners), gl.STATIC_DRAW)

	stride := int32(unsafe.Sizeof(InstancePayload{}))
	gl.GenBuffers(instanceBuffers, &b.vbos[0])
	gl.GenVertexArrays(instanceBuffers, &b.vaos[0])
	for i := 0; i < instanceBuffers; i++ {
		gl.BindVertexArray(b.vaos[i])

		gl.BindBuffer(gl.ARRAY_BUFFER, b.cornerVBO)
		gl.EnableVertexAttribArray(0)
		gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 8, 0)

		gl.BindBuffer(gl.ARRAY_BUFFER, b.vbos[i])
		gl.BufferData(gl.ARRAY_BUFFER, config.MaxInstances*int(stride), nil, gl.DYNAMIC_DRAW)
		gl.EnableVertexAttribArray(1)
		gl.VertexAttribPointerWithOffset(1, 4, gl.FLOAT, false, stride, 0)
		gl.EnableVertexAttribArray(2)
		gl.VertexAttribPointerWithOffset(2, 1, gl.FLOAT, false, stride, 16)
		gl.EnableVertexAttribArray(3)
		gl.VertexAttribPointerWithOffset(3, 4, gl.FLOAT, false, stride, 20)
		gl.EnableVertexAttribArray(4)
		gl.VertexAttribIPointerWithOffset(4, 1, gl.INT, stride, 36)
		for a := uint32(1); a <= 4; a++ {
			gl.VertexAttribDivisor(a, 1)
		}
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Disable(gl.DEPTH_TEST)
	gl.Viewport(0, 0, int32(b.width), int32(b.height))

	b.initialized = true
	return b.check("gl init")
}

func buildQuadProgram() (uint32, error) {
	vert, err := compileShader(quadVertexShader, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)
	frag, err := compileShader(quadFragmentShader, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	program := gl.CreateProgram()
	gl.AttachShader(program, vert)
	gl.AttachShader(program, frag)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, &VideoError{Operation: "gl link", Details: strings.TrimRight(log, "\x00"), Err: ErrShaderBuild}
	}
	return program, nil
}

func compileShader(source string, kind uint32) (uint32, error) {
	shader := gl.CreateShader(kind)
	csource, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, &VideoError{Operation: "gl compile", Details: strings.TrimRight(log, "\x00"), Err: ErrShaderBuild}
	}
	return shader, nil
}

func (b *GLBackend) ready(op string) error {
	if !b.initialized {
		return &VideoError{Operation: op, Details: "backend not initialised", Err: ErrContextLost}
	}
	return nil
}

// check drains the GL error queue. A lost context or an out-of-memory
// driver is reported as ErrContextLost.
func (b *GLBackend) check(op string) error {
	var first uint32
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		if first == 0 {
			first = code
		}
		if code == glContextLost {
			break
		}
	}
	switch first {
	case gl.NO_ERROR:
		return nil
	case glContextLost, gl.OUT_OF_MEMORY:
		b.initialized = false
		return &VideoError{Operation: op, Details: fmt.Sprintf("GL error 0x%04x", first), Err: ErrContextLost}
	}
	return &VideoError{Operation: op, Details: fmt.Sprintf("GL error 0x%04x", first)}
}

func (b *GLBackend) UploadLayer(layer int, tile *image.RGBA) error {
	if err := b.ready("gl upload layer"); err != nil {
		return err
	}
	if layer < 0 || layer >= b.config.Layers {
		return &VideoError{Operation: "gl upload layer", Details: fmt.Sprintf("layer %d out of range", layer)}
	}
	size := tile.Bounds().Size()
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, b.tiles)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(tile.Stride/4))
	gl.TexSubImage3D(gl.TEXTURE_2D_ARRAY, 0, 0, 0, int32(layer), int32(size.X), int32(size.Y), 1, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(tile.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	return b.check("gl upload layer")
}

func (b *GLBackend) UploadInstances(buffer int, instances []InstancePayload) error {
	if err := b.ready("gl upload instances"); err != nil {
		return err
	}
	if buffer < 0 || buffer >= instanceBuffers {
		return &VideoError{Operation: "gl upload instances", Details: fmt.Sprintf("buffer %d out of range", buffer)}
	}
	n := min(len(instances), b.config.MaxInstances)
	if n == 0 {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbos[buffer])
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, n*int(unsafe.Sizeof(InstancePayload{})), gl.Ptr(&instances[0]))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return b.check("gl upload instances")
}

func (b *GLBackend) DrawInstanced(buffer int, count int) error {
	if err := b.ready("gl draw"); err != nil {
		return err
	}
	if buffer < 0 || buffer >= instanceBuffers {
		return &VideoError{Operation: "gl draw", Details: fmt.Sprintf("buffer %d out of range", buffer)}
	}
	r, g, bl, a := unpackRGBA(b.config.ClearColor)
	gl.ClearColor(r, g, bl, a)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	count = min(count, b.config.MaxInstances)
	if count > 0 {
		gl.UseProgram(b.program)
		gl.Uniform2f(b.uTarget, float32(b.width), float32(b.height))
		gl.Uniform1i(b.uTiles, 0)
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D_ARRAY, b.tiles)
		gl.BindVertexArray(b.vaos[buffer])
		gl.DrawArraysInstanced(gl.TRIANGLE_STRIP, 0, 4, int32(count))
		gl.BindVertexArray(0)
	}
	return b.check("gl draw")
}

func (b *GLBackend) Resize(width, height int) error {
	if err := b.ready("gl resize"); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return &VideoError{Operation: "gl resize", Details: fmt.Sprintf("invalid size %dx%d", width, height)}
	}
	b.width, b.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
	return b.check("gl resize")
}

func (b *GLBackend) Destroy() {
	if b.program != 0 {
		gl.DeleteProgram(b.program)
		b.program = 0
	}
	if b.tiles != 0 {
		gl.DeleteTextures(1, &b.tiles)
		b.tiles = 0
	}
	if b.cornerVBO != 0 {
		gl.DeleteBuffers(1, &b.cornerVBO)
		b.cornerVBO = 0
	}
	if b.vbos[0] != 0 {
		gl.DeleteBuffers(instanceBuffers, &b.vbos[0])
		b.vbos = [instanceBuffers]uint32{}
	}
	if b.vaos[0] != 0 {
		gl.DeleteVertexArrays(instanceBuffers, &b.vaos[0])
		b.vaos = [instanceBuffers]uint32{}
	}
	b.initialized = false
}
