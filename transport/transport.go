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

// Package transport is the network collaborator: sending messages to a
// peer and tearing down a peer's connection. The protocol engine only ever
// sees the Network interface; channel authentication and framing are this
// package's concern, not the engine's.
package transport

import (
	"errors"

	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/wire"
)

// ErrUnknownPeer is returned by Send/Disconnect for a peer id the
// transport has no connection for.
var ErrUnknownPeer = errors.New("transport: unknown peer")

// Network is the engine's view of the transport: who it is, and how to
// reach a given peer. Send and Disconnect may suspend: LoopbackNetwork
// only enqueues and returns, while WSNetwork.Send blocks on the socket
// write.
type Network interface {
	SelfID() common.PeerID
	Send(peer common.PeerID, msg wire.Message) error
	Disconnect(peer common.PeerID) error
}

// Receiver is implemented by whatever drives a Node's message handling; a
// Network delivers inbound messages to it. Kept separate from Network
// itself because the protocol spec's Network contract is send-only — a
// transport is handed a Receiver by its owner, not by the engine.
type Receiver interface {
	Deliver(from common.PeerID, msg wire.Message)
}
