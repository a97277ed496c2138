// script_driver.go - Lua bus driver

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
script_driver.go - Lua Bus Driver

Stands in for the CPU: a Lua script issues loads and stores on the machine
bus, so scenes can be built and key registers polled without an emulated
processor.

Globals:
	sb(addr, v)  sh(addr, v)  sw(addr, v)    byte/half/word stores
	lbu(addr)    lhu(addr)    lw(addr)       zero-extended loads
	draw(n)                                  write n to the draw-call register
	keys([release])                          drain a key register, returns codes
	frames()                                 frames presented so far
	vsync([n])                               wait for n more frames (default 1)
	sleep(ms)
	print(...)                               goes to the device log
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ScriptDriver runs Lua programs against a bus.
type ScriptDriver struct {
	bus    Bus32
	frames func() uint64

	running atomic.Bool
	mutex   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewScriptDriver binds a driver to bus. frames reports the presented frame
// count for vsync() and frames(); it may be nil.
func NewScriptDriver(bus Bus32, frames func() uint64) *ScriptDriver {
	if frames == nil {
		frames = func() uint64 { return 0 }
	}
	return &ScriptDriver{bus: bus, frames: frames}
}

// IsRunning reports whether a script started with Start is executing.
func (d *ScriptDriver) IsRunning() bool {
	return d.running.Load()
}

func luaAddr(L *lua.LState, n int) uint32 {
	return uint32(int64(L.CheckNumber(n)))
}

func (d *ScriptDriver) newState(ctx context.Context) *lua.LState {
	L := lua.NewState()
	L.SetContext(ctx)

	store := func(size int) lua.LGFunction {
		return func(L *lua.LState) int {
			addr, value := luaAddr(L, 1), luaAddr(L, 2)
			switch size {
			case 1:
				d.bus.Write8(addr, uint8(value))
			case 2:
				d.bus.Write16(addr, uint16(value))
			default:
				d.bus.Write32(addr, value)
			}
			return 0
		}
	}
	load := func(size int) lua.LGFunction {
		return func(L *lua.LState) int {
			addr := luaAddr(L, 1)
			var v uint32
			switch size {
			case 1:
				v = uint32(d.bus.Read8(addr))
			case 2:
				v = uint32(d.bus.Read16(addr))
			default:
				v = d.bus.Read32(addr)
			}
			L.Push(lua.LNumber(v))
			return 1
		}
	}

	L.SetGlobal("sb", L.NewFunction(store(1)))
	L.SetGlobal("sh", L.NewFunction(store(2)))
	L.SetGlobal("sw", L.NewFunction(store(4)))
	L.SetGlobal("lbu", L.NewFunction(load(1)))
	L.SetGlobal("lhu", L.NewFunction(load(2)))
	L.SetGlobal("lw", L.NewFunction(load(4)))

	L.SetGlobal("draw", L.NewFunction(func(L *lua.LState) int {
		d.bus.Write32(GPU_DRAW_CALL, luaAddr(L, 1))
		return 0
	}))

	L.SetGlobal("keys", L.NewFunction(func(L *lua.LState) int {
		base := uint32(GPU_KEY_PRESS)
		if L.OptBool(1, false) {
			base = GPU_KEY_RELEASE
		}
		codes := L.NewTable()
		n := d.bus.Read8(base + GPU_KEY_COUNT_OFF)
		for i := uint32(0); i < uint32(n); i++ {
			codes.Append(lua.LNumber(d.bus.Read8(base + GPU_KEY_SLOT_OFF + i)))
		}
		if n > 0 {
			d.bus.Write8(base+GPU_KEY_COUNT_OFF, 0)
		}
		L.Push(codes)
		return 1
	}))

	L.SetGlobal("frames", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(d.frames()))
		return 1
	}))

	L.SetGlobal("vsync", L.NewFunction(func(L *lua.LState) int {
		target := d.frames() + uint64(L.OptInt(1, 1))
		for d.frames() < target {
			if !sleepContext(ctx, time.Millisecond) {
				L.RaiseError("vsync interrupted")
			}
		}
		return 0
	}))

	L.SetGlobal("sleep", L.NewFunction(func(L *lua.LState) int {
		ms := L.CheckInt(1)
		if !sleepContext(ctx, time.Duration(ms)*time.Millisecond) {
			L.RaiseError("sleep interrupted")
		}
		return 0
	}))

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		logf(LOG_TAG_SCRIPT, "%s", strings.Join(parts, "\t"))
		return 0
	}))

	return L
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RunString executes src to completion.
func (d *ScriptDriver) RunString(ctx context.Context, name, src string) error {
	L := d.newState(ctx)
	defer L.Close()

	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("script %s: %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("script %s: %w", name, err)
	}
	return nil
}

// RunFile executes the script at path to completion.
func (d *ScriptDriver) RunFile(ctx context.Context, path string) error {
	L := d.newState(ctx)
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// Start runs the script at path in the background. Stop cancels it.
func (d *ScriptDriver) Start(parent context.Context, path string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.running.Load() {
		return errors.New("script already running")
	}

	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.err = nil
	d.running.Store(true)

	go func(done chan struct{}) {
		defer close(done)
		err := d.RunFile(ctx, path)
		d.running.Store(false)
		if err != nil && !errors.Is(err, context.Canceled) {
			logf(LOG_TAG_SCRIPT, "%v", err)
		} else {
			logf(LOG_TAG_SCRIPT, "%s finished", path)
		}
		d.mutex.Lock()
		d.err = err
		d.mutex.Unlock()
	}(d.done)

	logf(LOG_TAG_SCRIPT, "running %s", path)
	return nil
}

// Wait blocks until a started script ends and returns its error.
func (d *ScriptDriver) Wait() error {
	d.mutex.Lock()
	done := d.done
	d.mutex.Unlock()
	if done == nil {
		return nil
	}
	<-done
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.err
}

// Stop cancels a started script and waits for it to end.
func (d *ScriptDriver) Stop() {
	d.mutex.Lock()
	cancel := d.cancel
	d.mutex.Unlock()
	if cancel != nil {
		cancel()
	}
	d.Wait()
}
