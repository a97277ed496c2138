package main

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

func startTestBridge(t *testing.T) (*GameStationGPU, *MachineBus, *BusBridge, net.Conn) {
	t.Helper()
	g, bus, _ := newTestGPU(t, DefaultDeviceConfig())
	b := NewBusBridge(bus, g.OnKeyEvent)
	if err := b.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { b.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws://"+b.Addr().String()+BRIDGE_PATH)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return g, bus, b, conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBridge_WriteThenRead(t *testing.T) {
	_, bus, b, conn := startTestBridge(t)
	waitFor(t, "client registration", func() bool { return b.Clients() == 1 })

	msg := append(EncodeBridgeCommand(BRIDGE_OP_WRITE, 0x10000200, 0xCAFEF00D, 4),
		EncodeBridgeCommand(BRIDGE_OP_READ, 0x10000200, 0, 2)...)
	msg = append(msg, EncodeBridgeCommand(BRIDGE_OP_READ, 0x10000203, 0, 1)...)
	if err := wsutil.WriteClientBinary(conn, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, op, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if op != ws.OpBinary || len(reply) != 8 {
		t.Fatalf("reply op=%v len=%d", op, len(reply))
	}
	if v := binary.LittleEndian.Uint32(reply[0:4]); v != 0xF00D {
		t.Fatalf("half read: 0x%X", v)
	}
	if v := binary.LittleEndian.Uint32(reply[4:8]); v != 0xCA {
		t.Fatalf("byte read: 0x%X", v)
	}
	if v := bus.Read32(0x10000200); v != 0xCAFEF00D {
		t.Fatalf("bus: 0x%08X", v)
	}
}

func TestBridge_DrivesDevice(t *testing.T) {
	g, _, _, conn := startTestBridge(t)

	words := packInstance(RawInstance{W: 64, H: 64, Data: 0x00FF00FF})
	var msg []byte
	for i, w := range words {
		msg = append(msg, EncodeBridgeCommand(BRIDGE_OP_WRITE, GPU_SCENE_BASE+uint32(i*4), w, 4)...)
	}
	msg = append(msg, EncodeBridgeCommand(BRIDGE_OP_WRITE, GPU_DRAW_CALL, 1, 4)...)
	msg = append(msg, EncodeBridgeCommand(BRIDGE_OP_KEY, KEY_SPACE, 1, 0)...)
	msg = append(msg, EncodeBridgeCommand(BRIDGE_OP_READ, GPU_KEY_PRESS+1, 0, 1)...)
	if err := wsutil.WriteClientBinary(conn, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, _, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(reply) != 4 || reply[0] != KEY_SPACE {
		t.Fatalf("key slot reply: %v", reply)
	}
	if g.DrawCalls() != 1 {
		t.Fatalf("draw calls: %d", g.DrawCalls())
	}
}

func TestBridge_BadMessageDropsClient(t *testing.T) {
	_, _, b, conn := startTestBridge(t)
	waitFor(t, "client registration", func() bool { return b.Clients() == 1 })

	if err := wsutil.WriteClientBinary(conn, []byte{BRIDGE_OP_READ, 1, 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, "client drop", func() bool { return b.Clients() == 0 })
}

func TestBridge_Execute(t *testing.T) {
	_, bus, _ := newTestGPU(t, DefaultDeviceConfig())
	b := NewBusBridge(bus, nil)

	if _, err := b.execute(EncodeBridgeCommand(0x7F, 0, 0, 4)); err == nil {
		t.Fatalf("unknown op accepted")
	}
	if _, err := b.execute(EncodeBridgeCommand(BRIDGE_OP_WRITE, 0x10000000, 0, 3)); err == nil {
		t.Fatalf("bad size accepted")
	}
	// key events without a sink are ignored
	if _, err := b.execute(EncodeBridgeCommand(BRIDGE_OP_KEY, 'A', 1, 0)); err != nil {
		t.Fatalf("key without sink: %v", err)
	}
}
