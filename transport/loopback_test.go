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
	"testing"

	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/wire"
)

type recorder struct {
	from common.PeerID
	msg  wire.Message
	n    int
}

func (r *recorder) Deliver(from common.PeerID, msg wire.Message) {
	r.from, r.msg, r.n = from, msg, r.n+1
}

func TestLoopbackSendDelivers(t *testing.T) {
	hub := NewHub()
	a, b := NewPeerID(), NewPeerID()
	recvB := &recorder{}
	netA := hub.Join(a, &recorder{})
	_ = hub.Join(b, recvB)

	if err := netA.Send(b, wire.GetBlock{Height: 3}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if recvB.n != 0 {
		t.Fatalf("Send must not deliver before Pump")
	}
	if n := hub.Pump(); n != 1 {
		t.Fatalf("expected Pump to deliver 1 message, got %d", n)
	}
	if recvB.n != 1 {
		t.Fatalf("expected 1 delivery, got %d", recvB.n)
	}
	if recvB.from != a {
		t.Fatalf("expected sender %v, got %v", a, recvB.from)
	}
	if gb, ok := recvB.msg.(wire.GetBlock); !ok || gb.Height != 3 {
		t.Fatalf("unexpected delivered message: %+v", recvB.msg)
	}
}

func TestLoopbackSendToUnknownPeerFails(t *testing.T) {
	hub := NewHub()
	a := NewPeerID()
	netA := hub.Join(a, &recorder{})
	if err := netA.Send(NewPeerID(), wire.GetBlock{Height: 1}); err != ErrUnknownPeer {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}

func TestLoopbackDisconnectRemovesPeer(t *testing.T) {
	hub := NewHub()
	a, b := NewPeerID(), NewPeerID()
	netA := hub.Join(a, &recorder{})
	_ = hub.Join(b, &recorder{})

	if err := netA.Disconnect(b); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := netA.Send(b, wire.GetBlock{Height: 1}); err != ErrUnknownPeer {
		t.Fatalf("expected send to disconnected peer to fail, got %v", err)
	}
}

func TestHubDropsMessagesToDepartedPeer(t *testing.T) {
	hub := NewHub()
	a, b := NewPeerID(), NewPeerID()
	recvB := &recorder{}
	netA := hub.Join(a, &recorder{})
	netB := hub.Join(b, recvB)

	if err := netA.Send(b, wire.GetBlock{Height: 1}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := netB.Disconnect(b); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if n := hub.Pump(); n != 0 {
		t.Fatalf("expected queued message to a departed peer to be dropped, delivered %d", n)
	}
	if recvB.n != 0 {
		t.Fatalf("departed peer must not receive deliveries")
	}
}
