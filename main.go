// main.go - Main entry point for the GameStation GPU device host

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
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
)

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147m  ___                   ___ _        _   _\033[0m\n\033[38;2;255;80;147m / __|__ _ _ __  ___   / __| |_ __ _| |_(_)___ _ _\033[0m\n\033[38;2;255;140;147m| (_ / _` | '  \\/ -_)  \\__ \\  _/ _` |  _| / _ \\ ' \\\033[0m\n\033[38;2;255;200;147m \\___\\__,_|_|_|_\\___|  |___/\\__\\__,_|\\__|_\\___/_||_|\033[0m")
	fmt.Println("\nMemory-mapped 2D quad GPU with scene records, texture tiles and key registers.")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/IntuitionEngine")
	fmt.Println("License: GPLv3 or later")
}

// hostOptions collects the command line.
type hostOptions struct {
	backend      string
	width        int
	height       int
	scale        int
	anchor       string
	clearColor   string
	resetClears  bool
	logEcho      bool
	script       string
	bridgeAddr   string
	terminal     bool
	features     bool
	statsview    bool
	browse       bool
	dumpPath     string
	frames       uint64
	frameLogTick int
}

func main() {
	var opts hostOptions

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.backend, "backend", backendName(defaultVideoBackend), "Display host: ebiten, gl or headless")
	flagSet.IntVar(&opts.width, "width", 0, "Device surface width (needs -height)")
	flagSet.IntVar(&opts.height, "height", 0, "Device surface height (needs -width)")
	flagSet.IntVar(&opts.scale, "scale", GPU_DEFAULT_SCALE, "Window scale factor")
	flagSet.StringVar(&opts.anchor, "anchor", AnchorBottomLeft.String(), "Texture placement in its tile: bottom-left or top-left")
	flagSet.StringVar(&opts.clearColor, "clear-color", fmt.Sprintf("0x%08X", uint32(GPU_CLEAR_COLOR)), "Frame clear colour as 0xRRGGBBAA")
	flagSet.BoolVar(&opts.resetClears, "reset-clears-textures", false, "Drop cached textures on reset")
	flagSet.BoolVar(&opts.logEcho, "log", false, "Echo the device log to stderr")
	flagSet.StringVar(&opts.script, "script", "", "Lua program that drives the bus")
	flagSet.StringVar(&opts.bridgeAddr, "bridge", "", "Serve the bus over WebSocket on host:port")
	flagSet.BoolVar(&opts.terminal, "terminal", false, "Read keys from the controlling terminal")
	flagSet.BoolVar(&opts.features, "features", false, "Print compiled features and exit")
	flagSet.BoolVar(&opts.statsview, "statsview", false, "Serve runtime statistics on localhost:12600")
	flagSet.BoolVar(&opts.browse, "browse", false, "Open the statsview page in a browser")
	flagSet.StringVar(&opts.dumpPath, "dump", "", "Headless: write the last frame as PNG on exit")
	flagSet.Uint64Var(&opts.frames, "frames", 0, "Headless: stop after this many frames, 0 runs until interrupted")
	flagSet.IntVar(&opts.frameLogTick, "frame-log", GPU_FRAME_LOG_EVERY, "Log pipeline statistics every n frames, 0 disables")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./gamestation [-backend ebiten|gl|headless] [-script program.lua] [-bridge 127.0.0.1:6464] [-terminal]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if opts.features {
		printFeatures()
		return
	}

	boilerPlate()

	if opts.logEcho {
		deviceLog.SetEcho(os.Stderr)
	}

	backend, err := parseBackendName(opts.backend)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	config, err := buildDeviceConfig(opts)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Device and bus
	gpu, err := NewGameStationGPU(nil, NewQuadBackend(backend), config)
	if err != nil {
		fmt.Printf("Failed to initialize GPU: %v\n", err)
		os.Exit(1)
	}
	bus := NewMachineBus()
	gpu.Attach(bus)
	bus.SealMappings()

	video, err := NewVideoOutput(backend, gpu)
	if err != nil {
		fmt.Printf("Failed to initialize video: %v\n", err)
		os.Exit(1)
	}
	if err := video.SetDisplayConfig(displayConfigFrom(config)); err != nil {
		fmt.Printf("Failed to configure video: %v\n", err)
		os.Exit(1)
	}
	if r, ok := video.(interface{ SetHardResetHandler(func()) }); ok {
		r.SetHardResetHandler(func() { resetMachine(bus, gpu) })
	}
	if h, ok := video.(*HeadlessVideoOutput); ok && opts.dumpPath != "" {
		h.SetFrameDump(opts.dumpPath)
	}
	runtimeStatus.setDevice(opts.backend, gpu)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := video.Start(); err != nil {
		fmt.Printf("Failed to start video: %v\n", err)
		os.Exit(1)
	}

	// CPU stand-ins
	var (
		script   *ScriptDriver
		bridge   *BusBridge
		terminal *TerminalHost
	)
	if opts.bridgeAddr != "" {
		bridge = NewBusBridge(bus, gpu.OnKeyEvent)
		if err := bridge.Start(opts.bridgeAddr); err != nil {
			fmt.Printf("Failed to start bus bridge: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Bus bridge on ws://%s%s\n", bridge.Addr(), BRIDGE_PATH)
	}
	if opts.terminal {
		terminal = NewTerminalHost(gpu.OnKeyEvent, cancel)
		terminal.Start()
	}
	var scriptDone <-chan struct{}
	if opts.script != "" {
		script = NewScriptDriver(bus, video.GetFrameCount)
		if err := script.Start(ctx, opts.script); err != nil {
			fmt.Printf("Failed to start script: %v\n", err)
			os.Exit(1)
		}
		scriptDone = waitChan(script.Wait)
	}
	runtimeStatus.setDrivers(script, bridge, terminal)

	if opts.statsview {
		launchStatsview(opts.browse)
	}

	// Headless runs end with their script or frame budget; windowed hosts
	// end when the window closes.
	if backend != VIDEO_BACKEND_HEADLESS {
		scriptDone = nil
	}
	var framesDone <-chan struct{}
	if backend == VIDEO_BACKEND_HEADLESS && opts.frames > 0 {
		framesDone = waitChan(func() error {
			for video.GetFrameCount() < opts.frames {
				if err := video.WaitForVSync(); err != nil {
					return err
				}
			}
			return nil
		})
	}

	select {
	case <-ctx.Done():
	case <-video.Done():
	case <-scriptDone:
	case <-framesDone:
	}

	if script != nil {
		script.Stop()
	}
	if terminal != nil {
		terminal.Stop()
	}
	if bridge != nil {
		bridge.Stop()
	}
	if err := video.Stop(); err != nil {
		fmt.Printf("Error stopping video: %v\n", err)
	}
	stats := gpu.Stats()
	fmt.Printf("%d frames, %d draw calls, %d scenes dropped\n", video.GetFrameCount(), gpu.DrawCalls(), stats.DroppedScenes)
	video.Close()
}

// waitChan runs fn in a goroutine and returns a channel closed when it
// returns.
func waitChan(fn func() error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func backendName(backend int) string {
	for name, b := range videoBackendNames {
		if b == backend {
			return name
		}
	}
	return "unknown"
}

func parseBackendName(name string) (int, error) {
	if b, ok := videoBackendNames[strings.ToLower(name)]; ok {
		return b, nil
	}
	return 0, fmt.Errorf("unknown backend %q", name)
}

// validateResolutionOverride accepts a surface override only when both
// dimensions are given.
func validateResolutionOverride(width, height int) (int, int, bool) {
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

func parseClearColor(value string) (uint32, error) {
	parsed, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid clear colour %q: %w", value, err)
	}
	return uint32(parsed), nil
}

// buildDeviceConfig applies the command line to the power-on configuration.
func buildDeviceConfig(opts hostOptions) (DeviceConfig, error) {
	config := DefaultDeviceConfig()
	if w, h, ok := validateResolutionOverride(opts.width, opts.height); ok {
		config.Width, config.Height = w, h
	} else if opts.width != 0 || opts.height != 0 {
		return config, fmt.Errorf("-width and -height must be given together")
	}
	if opts.scale != 0 {
		config.Scale = opts.scale
	}
	if opts.anchor != "" {
		anchor, err := ParseTileAnchor(opts.anchor)
		if err != nil {
			return config, err
		}
		config.TileAnchor = anchor
	}
	if opts.clearColor != "" {
		color, err := parseClearColor(opts.clearColor)
		if err != nil {
			return config, err
		}
		config.ClearColor = color
	}
	config.ResetClearsTextures = opts.resetClears
	config.FrameLogEvery = opts.frameLogTick
	return config, config.Validate()
}
