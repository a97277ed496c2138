// gpu_constants.go - GameStation GPU register definitions

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
gpu_constants.go - GameStation GPU Register Definitions

The GameStation GPU is a memory-mapped 2D quad renderer. The CPU describes a
scene by writing instance records into the scene-data window, then triggers a
draw call by writing the instance count to the draw-call register. Keyboard
input is returned through two counting registers (press and release).

Memory map:

	0xFFFF0000  key press register    count byte + 15 slot bytes
	0xFFFF0010  key release register  count byte + 15 slot bytes
	0xFFFF0020  draw-call register    write: instance count
	0xFFFF0024  status register       read-only
	0x10080000  scene-data window     16 KiB, 1024 records of 4 words

Instance record (little-endian halfwords, first field in the low half):

	word0  x:int16   | y:int16
	word1  w:uint16  | h:uint16
	word2  kind:16   | rotation degrees:16
	word3  0xRRGGBBAA colour (solid) or texture source address (textured)

Texture source format:

	word0  width:16 | height:16
	word1+ width*height pixels, 0xRRGGBBAA, row-major, top row first
*/

package main

// Key registers
const (
	GPU_KEY_PRESS     = 0xFFFF0000
	GPU_KEY_RELEASE   = 0xFFFF0010
	GPU_KEY_REG_SIZE  = 0x10
	GPU_KEY_REG_END   = GPU_KEY_RELEASE + GPU_KEY_REG_SIZE - 1
	GPU_KEY_CAPACITY  = GPU_KEY_REG_SIZE - 1 // slots after the count byte
	GPU_KEY_COUNT_OFF = 0x00
	GPU_KEY_SLOT_OFF  = 0x01

	// Events buffered while a register is locked
	GPU_KEY_PENDING_MAX = 64
)

// Control registers
const (
	GPU_DRAW_CALL = 0xFFFF0020 // Write: number of instances to render
	GPU_STATUS    = 0xFFFF0024 // Read: frame counter and state bits
	GPU_CTRL_END  = GPU_STATUS + 3
)

// Status register bits
const (
	GPU_STATUS_FRAMES       = 0xFFFF  // Frames presented (wrapping)
	GPU_STATUS_CONTEXT_LOST = 1 << 30 // Backend lost its context
	GPU_STATUS_PENDING      = 1 << 31 // Scene snapshot waiting for the render thread
)

// Scene-data window
const (
	GPU_SCENE_BASE      = 0x10080000
	GPU_SCENE_SIZE      = 0x4000
	GPU_SCENE_END       = GPU_SCENE_BASE + GPU_SCENE_SIZE - 1
	GPU_RECORD_WORDS    = 4
	GPU_RECORD_SIZE     = GPU_RECORD_WORDS * 4
	GPU_SCENE_WORDS     = GPU_SCENE_SIZE / 4
	GPU_MAX_INSTANCES   = GPU_SCENE_SIZE / GPU_RECORD_SIZE
	GPU_SCENE_QUEUE_MAX = 3 // Pending scenes held between render ticks
)

// Instance kinds (low half of word2)
const (
	GPU_KIND_SOLID    = 0
	GPU_KIND_TEXTURED = 1
)

// Texture array
const (
	GPU_TILE_SIZE      = 64
	GPU_TEXTURE_LAYERS = 256
	GPU_TEX_MAX_DIM    = 1024 // Larger source headers are treated as corrupt
)

// NoTexture marks a solid instance in the render payload.
const NoTexture = -1

// Display defaults
const (
	GPU_DEFAULT_WIDTH   = 512
	GPU_DEFAULT_HEIGHT  = 256
	GPU_DEFAULT_SCALE   = 2
	GPU_REFRESH_RATE    = 60
	GPU_CLEAR_COLOR     = 0x333333FF // 0.2 grey, opaque
	GPU_FRAME_LOG_EVERY = 600        // Debug frame log cadence
)
