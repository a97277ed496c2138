// bus_bridge.go - WebSocket bridge onto the machine bus

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
bus_bridge.go - WebSocket Bus Bridge

Lets an external program drive the machine bus over a WebSocket at /bus.
Each binary message carries one or more 10-byte commands:

	byte 0      op
	bytes 1-4   address, little-endian
	bytes 5-8   value, little-endian
	byte 9      access size (1, 2 or 4)

Ops:
	BRIDGE_OP_READ   reply with the 4-byte little-endian value
	BRIDGE_OP_WRITE  store value
	BRIDGE_OP_KEY    host key event: address is the code, value non-zero for press

Replies for one message are returned together in one binary message.
*/

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const (
	BRIDGE_OP_READ  = 0x01
	BRIDGE_OP_WRITE = 0x02
	BRIDGE_OP_KEY   = 0x03

	BRIDGE_CMD_SIZE = 10
	BRIDGE_PATH     = "/bus"
)

// BusBridge serves bus access to WebSocket clients.
type BusBridge struct {
	bus  Bus32
	keys func(code uint8, pressed bool)

	server   *http.Server
	listener net.Listener

	connsMutex sync.Mutex
	conns      map[net.Conn]struct{}
	wg         sync.WaitGroup
}

// NewBusBridge creates a bridge. keys receives BRIDGE_OP_KEY events and may
// be nil.
func NewBusBridge(bus Bus32, keys func(code uint8, pressed bool)) *BusBridge {
	b := &BusBridge{
		bus:   bus,
		keys:  keys,
		conns: make(map[net.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle(BRIDGE_PATH, http.HandlerFunc(b.upgrade))
	b.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return b
}

// Start listens on addr ("host:port", port 0 picks one) and serves in the
// background.
func (b *BusBridge) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bus bridge: %w", err)
	}
	b.listener = l
	go func() {
		if err := b.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logf(LOG_TAG_BRIDGE, "serve: %v", err)
		}
	}()
	logf(LOG_TAG_BRIDGE, "listening on ws://%s%s", l.Addr(), BRIDGE_PATH)
	return nil
}

// Addr returns the listening address, or nil before Start.
func (b *BusBridge) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Clients returns the number of connected clients.
func (b *BusBridge) Clients() int {
	b.connsMutex.Lock()
	defer b.connsMutex.Unlock()
	return len(b.conns)
}

// Stop closes the listener and every client connection.
func (b *BusBridge) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := b.server.Shutdown(ctx)

	b.connsMutex.Lock()
	for c := range b.conns {
		c.Close()
	}
	b.connsMutex.Unlock()
	b.wg.Wait()
	return err
}

func (b *BusBridge) upgrade(rw http.ResponseWriter, req *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(req, rw)
	if err != nil {
		logf(LOG_TAG_BRIDGE, "upgrade: %v", err)
		return
	}
	b.connsMutex.Lock()
	b.conns[conn] = struct{}{}
	b.connsMutex.Unlock()
	logf(LOG_TAG_BRIDGE, "client %s connected", conn.RemoteAddr())

	b.wg.Add(1)
	go b.serveConn(conn)
}

// serveConn owns conn until the client goes away.
func (b *BusBridge) serveConn(conn net.Conn) {
	defer b.wg.Done()
	defer func() {
		conn.Close()
		b.connsMutex.Lock()
		delete(b.conns, conn)
		b.connsMutex.Unlock()
		logf(LOG_TAG_BRIDGE, "client %s disconnected", conn.RemoteAddr())
	}()

	for {
		msg, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		if op != ws.OpBinary {
			continue
		}
		reply, err := b.execute(msg)
		if err != nil {
			logf(LOG_TAG_BRIDGE, "%s: %v", conn.RemoteAddr(), err)
			return
		}
		if len(reply) > 0 {
			if err := wsutil.WriteServerBinary(conn, reply); err != nil {
				return
			}
		}
	}
}

// execute runs every command in msg and returns the concatenated replies.
func (b *BusBridge) execute(msg []byte) ([]byte, error) {
	if len(msg)%BRIDGE_CMD_SIZE != 0 {
		return nil, fmt.Errorf("message length %d is not a multiple of %d", len(msg), BRIDGE_CMD_SIZE)
	}
	var reply []byte
	for off := 0; off < len(msg); off += BRIDGE_CMD_SIZE {
		cmd := msg[off : off+BRIDGE_CMD_SIZE]
		addr := binary.LittleEndian.Uint32(cmd[1:5])
		value := binary.LittleEndian.Uint32(cmd[5:9])
		size := int(cmd[9])

		switch cmd[0] {
		case BRIDGE_OP_READ:
			var v uint32
			switch size {
			case 1:
				v = uint32(b.bus.Read8(addr))
			case 2:
				v = uint32(b.bus.Read16(addr))
			case 4:
				v = b.bus.Read32(addr)
			default:
				return nil, fmt.Errorf("bad read size %d", size)
			}
			reply = binary.LittleEndian.AppendUint32(reply, v)
		case BRIDGE_OP_WRITE:
			switch size {
			case 1:
				b.bus.Write8(addr, uint8(value))
			case 2:
				b.bus.Write16(addr, uint16(value))
			case 4:
				b.bus.Write32(addr, value)
			default:
				return nil, fmt.Errorf("bad write size %d", size)
			}
		case BRIDGE_OP_KEY:
			if b.keys != nil {
				b.keys(uint8(addr), value != 0)
			}
		default:
			return nil, fmt.Errorf("unknown op 0x%02X", cmd[0])
		}
	}
	return reply, nil
}

// EncodeBridgeCommand builds one command for a bridge message.
func EncodeBridgeCommand(op uint8, addr, value uint32, size int) []byte {
	cmd := make([]byte, BRIDGE_CMD_SIZE)
	cmd[0] = op
	binary.LittleEndian.PutUint32(cmd[1:5], addr)
	binary.LittleEndian.PutUint32(cmd[5:9], value)
	cmd[9] = uint8(size)
	return cmd
}
