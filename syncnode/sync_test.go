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

package syncnode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probenet/chainsync/accumulator"
	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/mempool"
	"github.com/probenet/chainsync/netauth"
	"github.com/probenet/chainsync/shortid"
	"github.com/probenet/chainsync/state"
	"github.com/probenet/chainsync/storage"
	"github.com/probenet/chainsync/transport"
	"github.com/probenet/chainsync/verifier"
	"github.com/probenet/chainsync/wire"
)

// cluster wires two full nodes over an in-process hub, sharing one
// authority key, for end-to-end message-flow tests.
type cluster struct {
	hub  *transport.Hub
	a, b *Node
	aID  common.PeerID
	bID  common.PeerID
	priv *netauth.PrivateKey
}

func newCluster(t *testing.T) *cluster {
	t.Helper()
	priv, pub, err := netauth.GenerateKey()
	require.NoError(t, err)

	params := verifier.NewParams()
	genesis := state.Genesis(1000)
	hub := transport.NewHub()

	aID, bID := transport.NewPeerID(), transport.NewPeerID()

	build := func(id common.PeerID) *Node {
		fwd := &nodeReceiver{}
		net := hub.Join(id, fwd)
		n := New(id, pub, storage.NewMemory(), net, mempool.New(genesis, 1000, params), params, genesis)
		fwd.node = n
		return n
	}
	c := &cluster{hub: hub, aID: aID, bID: bID, priv: priv}
	c.a = build(aID)
	c.b = build(bID)

	c.a.OnPeerConnected(bID)
	c.b.OnPeerConnected(aID)
	hub.Pump()
	return c
}

type nodeReceiver struct {
	node *Node
}

func (r *nodeReceiver) Deliver(from common.PeerID, msg wire.Message) {
	r.node.Deliver(from, msg)
}

func TestFreshSyncCatchesUpOverTicks(t *testing.T) {
	c := newCluster(t)

	for i := 0; i < 3; i++ {
		_, err := c.b.CreateBlock(uint64(2000+i), c.priv)
		require.NoError(t, err)
	}
	require.Equal(t, uint64(3), c.b.tip().Height)

	// B announces its tip once A's GetInventory is answered; then each A
	// tick pulls exactly one block until the chains converge.
	c.b.OnTick()
	c.hub.Pump()
	require.Equal(t, uint64(3), c.a.TargetTip().Height)

	for i := 0; i < 3; i++ {
		c.a.OnTick()
		c.hub.Pump()
	}
	require.Equal(t, uint64(3), c.a.tip().Height)
	require.Equal(t, c.b.tip().ID(), c.a.tip().ID())
	require.Equal(t, c.b.TargetTip().ID(), c.a.TargetTip().ID())
}

func TestMempoolReconciliationTransfersAllTxs(t *testing.T) {
	c := newCluster(t)

	want := make(map[common.Hash]bool)
	for i := byte(1); i <= 3; i++ {
		tx := verifier.Tx{Outputs: []accumulator.Commitment{{i}}, Payload: []byte{i}}
		require.NoError(t, c.b.mempool.Append(tx))
	}
	for _, e := range c.b.mempool.Entries() {
		want[e.TxID()] = true
	}

	// B publishes its inventory, then A's next tick claims every advertised
	// short-id and B answers with the bodies.
	c.b.OnTick()
	c.hub.Pump()
	c.a.OnTick()
	c.hub.Pump()

	require.Equal(t, 3, c.a.mempool.Len())
	for _, e := range c.a.mempool.Entries() {
		require.True(t, want[e.TxID()], "unexpected txid %s", e.TxID())
	}
}

func TestReconciliationSkipsShortIDsWeAlreadyHold(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	tx := verifier.Tx{Outputs: []accumulator.Commitment{{0x33}}, Payload: []byte("held")}
	require.NoError(t, h.node.mempool.Append(tx))
	held := h.node.mempool.Entries()[0].TxID()

	// The peer advertises exactly the short-id our own entry shortens to;
	// a tip at our height is recorded without a signature check.
	sid := shortid.Shorten(h.node.ShortIDNonce(), h.node.selfID[:], held)
	perr := h.node.OnMessage(p, wire.Inventory{
		Version:      wire.CurrentVersion,
		Tip:          h.node.tip(),
		ShortIDNonce: h.node.ShortIDNonce(),
		ShortIDList:  sid.AppendTo(nil),
	})
	require.Nil(t, perr)

	h.node.OnTick()
	for _, sent := range h.network.sent {
		_, isReq := sent.msg.(wire.GetMempoolTxs)
		require.False(t, isReq, "must not request a short-id that is already assigned locally")
	}
}

func TestReconciliationClaimsEachShortIDOnce(t *testing.T) {
	h := newHarness(t)
	p1, p2 := peerID(2), peerID(3)
	h.node.OnPeerConnected(p1)
	h.node.OnPeerConnected(p2)

	var txid common.Hash
	txid[0] = 0x44
	sid := shortid.Shorten(h.node.ShortIDNonce(), h.node.selfID[:], txid)

	for _, p := range []common.PeerID{p1, p2} {
		perr := h.node.OnMessage(p, wire.Inventory{
			Version:      wire.CurrentVersion,
			Tip:          h.node.tip(),
			ShortIDNonce: h.node.ShortIDNonce(),
			ShortIDList:  sid.AppendTo(nil),
		})
		require.Nil(t, perr)
	}

	h.node.OnTick()
	requests := 0
	for _, sent := range h.network.sent {
		if req, ok := sent.msg.(wire.GetMempoolTxs); ok {
			requests += len(shortid.Scan(req.ShortIDList))
		}
	}
	require.Equal(t, 1, requests, "a short-id advertised by two peers must be fetched from exactly one")
}

func TestNonceRotationClearsPeerInventories(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	var txid common.Hash
	txid[0] = 0x55
	sid := shortid.Shorten(h.node.ShortIDNonce(), h.node.selfID[:], txid)
	perr := h.node.OnMessage(p, wire.Inventory{
		Version:      wire.CurrentVersion,
		Tip:          h.node.tip(),
		ShortIDNonce: h.node.ShortIDNonce(),
		ShortIDList:  sid.AppendTo(nil),
	})
	require.Nil(t, perr)

	before := h.node.ShortIDNonce()
	h.node.shortIDNonceTTL = 1
	h.node.OnTick()

	require.NotEqual(t, before, h.node.ShortIDNonce())
	peer, err := h.node.peers.get(p)
	require.NoError(t, err)
	require.Empty(t, peer.ShortIDList, "rotation must clear cached peer inventories")
	for _, sent := range h.network.sent {
		_, isReq := sent.msg.(wire.GetMempoolTxs)
		require.False(t, isReq, "no fetches may be issued from a cleared inventory")
	}
}

func TestTickRequestsInventoryFromSilentPeers(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)
	h.network.sent = nil

	start := time.Now()
	h.node.now = func() time.Time { return start.Add(InventoryRefreshInterval + time.Second) }
	h.node.OnTick()

	found := false
	for _, sent := range h.network.sent {
		if _, ok := sent.msg.(wire.GetInventory); ok && sent.to == p {
			found = true
		}
	}
	require.True(t, found, "a peer silent for over the refresh interval must be re-queried")
}

func TestTickRequestsNextBlockWhenLagging(t *testing.T) {
	c := newCluster(t)
	_, err := c.b.CreateBlock(2000, c.priv)
	require.NoError(t, err)

	c.b.OnTick() // answer A's pending GetInventory
	c.hub.Pump()
	require.Equal(t, uint64(1), c.a.TargetTip().Height)
	require.Equal(t, uint64(0), c.a.tip().Height)

	c.a.OnTick()
	c.hub.Pump()
	require.Equal(t, uint64(1), c.a.tip().Height)
}

func TestVersionMismatchLeavesPeerStateUntouched(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	err := h.node.OnMessage(p, wire.GetInventory{Version: wire.CurrentVersion + 1, ShortIDNonce: 9})
	require.Error(t, err)
	require.True(t, err.IsFatal())

	peer, perr := h.node.peers.get(p)
	require.NoError(t, perr)
	require.False(t, peer.NeedsOurInventory)
	require.Zero(t, peer.TheirShortIDNonce)
}
