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

	"github.com/google/uuid"

	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/wire"
)

// Hub wires a set of in-process LoopbackNetworks together. Send enqueues;
// Pump delivers. Queuing rather than delivering inline keeps a receiver's
// own sends from re-entering the sender mid-operation, the same
// one-operation-at-a-time model an event-driven host provides. Per-pair
// ordering is the queue's FIFO order.
type Hub struct {
	mu    sync.Mutex
	peers map[common.PeerID]Receiver
	queue []queued
}

type queued struct {
	from, to common.PeerID
	msg      wire.Message
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{peers: make(map[common.PeerID]Receiver)}
}

// Join registers id on the hub, returning its LoopbackNetwork endpoint.
// recv is delivered every message sent to id by another peer on the hub.
func (h *Hub) Join(id common.PeerID, recv Receiver) *LoopbackNetwork {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[id] = recv
	return &LoopbackNetwork{hub: h, self: id}
}

// Pump delivers queued messages, including any enqueued by the receivers
// it invokes, until the queue is empty. It returns the number delivered.
// Messages to a peer that left the hub are dropped.
func (h *Hub) Pump() int {
	delivered := 0
	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.mu.Unlock()
			return delivered
		}
		q := h.queue[0]
		h.queue = h.queue[1:]
		recv, ok := h.peers[q.to]
		h.mu.Unlock()

		if !ok {
			continue
		}
		recv.Deliver(q.from, q.msg)
		delivered++
	}
}

// NewPeerID generates a fresh random peer id. Tests and the syncnoded
// daemon both use it.
func NewPeerID() common.PeerID {
	u := uuid.New()
	var b [32]byte
	copy(b[:16], u[:])
	copy(b[16:], u[:])
	return common.BytesToPeerID(b[:])
}

// LoopbackNetwork is a Network backed by a shared in-process Hub.
type LoopbackNetwork struct {
	hub  *Hub
	self common.PeerID
}

func (n *LoopbackNetwork) SelfID() common.PeerID { return n.self }

func (n *LoopbackNetwork) Send(peer common.PeerID, msg wire.Message) error {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	if _, ok := n.hub.peers[peer]; !ok {
		return ErrUnknownPeer
	}
	n.hub.queue = append(n.hub.queue, queued{from: n.self, to: peer, msg: msg})
	return nil
}

func (n *LoopbackNetwork) Disconnect(peer common.PeerID) error {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	if _, ok := n.hub.peers[peer]; !ok {
		return ErrUnknownPeer
	}
	delete(n.hub.peers, peer)
	return nil
}
