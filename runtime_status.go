package main

import "sync"

type runtimeStatusSnapshot struct {
	hostName string
	gpu      *GameStationGPU

	script   *ScriptDriver
	bridge   *BusBridge
	terminal *TerminalHost
}

type runtimeStatusStore struct {
	mu sync.RWMutex
	runtimeStatusSnapshot
}

func (s *runtimeStatusStore) setDevice(hostName string, gpu *GameStationGPU) {
	s.mu.Lock()
	s.hostName = hostName
	s.gpu = gpu
	s.mu.Unlock()
}

func (s *runtimeStatusStore) setDrivers(script *ScriptDriver, bridge *BusBridge, terminal *TerminalHost) {
	s.mu.Lock()
	s.script = script
	s.bridge = bridge
	s.terminal = terminal
	s.mu.Unlock()
}

func (s *runtimeStatusStore) snapshot() runtimeStatusSnapshot {
	s.mu.RLock()
	snap := s.runtimeStatusSnapshot
	s.mu.RUnlock()
	return snap
}

// driverFlags reports which CPU stand-ins are active.
func (s runtimeStatusSnapshot) driverFlags() (script, bridge, terminal bool) {
	script = s.script != nil && s.script.IsRunning()
	bridge = s.bridge != nil && s.bridge.Clients() > 0
	terminal = s.terminal != nil && s.terminal.IsRunning()
	return
}

var runtimeStatus = &runtimeStatusStore{}
