// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

package transport

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/internal/plog"
	"github.com/probenet/chainsync/wire"
)

var wsLog = plog.New("module", "transport")

// WSNetwork is a Network where each peer is one websocket connection.
// Unlike LoopbackNetwork, Send hands bytes to the kernel and returns; the
// matching Deliver calls happen on the connection's own read goroutine,
// so a real WSNetwork is the one reference transport where Send can
// genuinely suspend.
type WSNetwork struct {
	mu    sync.Mutex
	self  common.PeerID
	conns map[common.PeerID]*websocket.Conn
	recv  Receiver

	// onConnect/onDisconnect, when set, are invoked after a connection is
	// registered and after one is torn down. The node host uses them to
	// drive OnPeerConnected/OnPeerDisconnected.
	onConnect    func(common.PeerID)
	onDisconnect func(common.PeerID)
}

// NewWSNetwork returns a WSNetwork identified as self; recv is invoked for
// every message read off any registered connection.
func NewWSNetwork(self common.PeerID, recv Receiver) *WSNetwork {
	return &WSNetwork{self: self, conns: make(map[common.PeerID]*websocket.Conn), recv: recv}
}

// SetPeerHooks installs the connect/disconnect callbacks. Must be called
// before any connection is registered.
func (n *WSNetwork) SetPeerHooks(onConnect, onDisconnect func(common.PeerID)) {
	n.onConnect = onConnect
	n.onDisconnect = onDisconnect
}

// Register attaches an already-established connection to peer and starts
// its read pump.
func (n *WSNetwork) Register(peer common.PeerID, conn *websocket.Conn) {
	n.mu.Lock()
	n.conns[peer] = conn
	n.mu.Unlock()
	if n.onConnect != nil {
		n.onConnect(peer)
	}
	go n.readPump(peer, conn)
}

func (n *WSNetwork) readPump(peer common.PeerID, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			wsLog.Debug("peer read failed, dropping", "peer", peer, "err", err)
			n.drop(peer)
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			wsLog.Warn("dropping malformed frame", "peer", peer, "err", err)
			continue
		}
		n.recv.Deliver(peer, msg)
	}
}

// drop removes and closes peer's connection, then fires the disconnect
// hook exactly once.
func (n *WSNetwork) drop(peer common.PeerID) {
	n.mu.Lock()
	conn, ok := n.conns[peer]
	delete(n.conns, peer)
	n.mu.Unlock()
	if !ok {
		return
	}
	conn.Close()
	if n.onDisconnect != nil {
		n.onDisconnect(peer)
	}
}

func (n *WSNetwork) SelfID() common.PeerID { return n.self }

func (n *WSNetwork) Send(peer common.PeerID, msg wire.Message) error {
	n.mu.Lock()
	conn, ok := n.conns[peer]
	n.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (n *WSNetwork) Disconnect(peer common.PeerID) error {
	n.mu.Lock()
	_, ok := n.conns[peer]
	n.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	n.drop(peer)
	return nil
}
