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

	"github.com/stretchr/testify/require"

	"github.com/probenet/chainsync/accumulator"
	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/mempool"
	"github.com/probenet/chainsync/netauth"
	"github.com/probenet/chainsync/shortid"
	"github.com/probenet/chainsync/state"
	"github.com/probenet/chainsync/storage"
	"github.com/probenet/chainsync/verifier"
	"github.com/probenet/chainsync/wire"
)

// harness wires one Node to an in-memory store and a fake Network that just
// records what was sent, for assertions without a real transport.
type harness struct {
	node    *Node
	store   storage.Store
	network *fakeNetwork
	priv    *netauth.PrivateKey
	pub     *netauth.PublicKey
	params  verifier.Params
}

type sentMsg struct {
	to  common.PeerID
	msg wire.Message
}

type fakeNetwork struct {
	self common.PeerID
	sent []sentMsg
	disc []common.PeerID
}

func (f *fakeNetwork) SelfID() common.PeerID { return f.self }
func (f *fakeNetwork) Send(peer common.PeerID, msg wire.Message) error {
	f.sent = append(f.sent, sentMsg{to: peer, msg: msg})
	return nil
}
func (f *fakeNetwork) Disconnect(peer common.PeerID) error {
	f.disc = append(f.disc, peer)
	return nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	priv, pub, err := netauth.GenerateKey()
	require.NoError(t, err)

	params := verifier.NewParams()
	store := storage.NewMemory()
	genesis := state.Genesis(1000)
	mp := mempool.New(genesis, 1000, params)

	self := common.PeerID{0x01}
	net := &fakeNetwork{self: self}
	n := New(self, pub, store, net, mp, params, genesis)

	return &harness{node: n, store: store, network: net, priv: priv, pub: pub, params: params}
}

func peerID(b byte) common.PeerID {
	var p common.PeerID
	p[0] = b
	return p
}

func TestOnPeerConnectedSendsGetInventory(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	require.Len(t, h.network.sent, 1)
	req, ok := h.network.sent[0].msg.(wire.GetInventory)
	require.True(t, ok)
	require.Equal(t, wire.CurrentVersion, int(req.Version))
	require.Equal(t, p, h.network.sent[0].to)
}

func TestHandleInventoryRejectsWrongVersion(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	err := h.node.OnMessage(p, wire.Inventory{Version: wire.CurrentVersion + 1})
	require.Error(t, err)
	require.True(t, err.IsFatal())
}

func TestHandleInventoryRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	badHeader := blockHeaderAt(1)
	err := h.node.OnMessage(p, wire.Inventory{
		Version:      wire.CurrentVersion,
		Tip:          badHeader,
		TipSignature: []byte("not a signature"),
	})
	require.Error(t, err)
	require.True(t, err.IsFatal())
	require.IsType(t, &InvalidBlockSignatureError{}, err)
}

func TestHandleInventoryAdvancesTargetTipOnValidSignature(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	header := blockHeaderAt(1)
	sig, err := netauth.Sign(h.priv, header.ID())
	require.NoError(t, err)

	perr := h.node.OnMessage(p, wire.Inventory{
		Version:      wire.CurrentVersion,
		Tip:          header,
		TipSignature: sig,
	})
	require.Nil(t, perr)
	require.Equal(t, header.ID(), h.node.TargetTip().ID())
}

func TestHandleGetBlockNotFound(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	err := h.node.OnMessage(p, wire.GetBlock{Height: 5})
	require.Error(t, err)
	require.False(t, err.IsFatal())
	require.IsType(t, &BlockNotFoundError{}, err)
}

func TestHandleBlockRejectsNonSequentialHeight(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	err := h.node.OnMessage(p, wire.BlockMsg{Header: blockHeaderAt(5)})
	require.Error(t, err)
	require.False(t, err.IsFatal())
	require.IsType(t, &BlockNotRelevantError{}, err)
}

func TestCreateBlockThenAnotherNodeAcceptsIt(t *testing.T) {
	h := newHarness(t)

	b, err := h.node.CreateBlock(1500, h.priv)
	require.NoError(t, err)
	require.Equal(t, uint64(1), b.Header.Height)

	other := newHarness(t)
	other.priv, other.pub = h.priv, h.pub
	genesis := state.Genesis(1000)
	other.node = New(peerID(9), h.pub, storage.NewMemory(), other.network, mempool.New(genesis, 1000, other.params), other.params, genesis)

	p := peerID(2)
	other.node.OnPeerConnected(p)
	perr := other.node.OnMessage(p, wire.BlockMsg{Header: b.Header, Signature: b.Signature, Txs: b.Txs})
	require.Nil(t, perr)
	require.Equal(t, b.Header.ID(), other.node.TargetTip().ID())
}

func TestHandleGetMempoolTxsUsesRequesterIDNotSelfID(t *testing.T) {
	h := newHarness(t)
	requester := peerID(2)
	h.node.OnPeerConnected(requester)

	tx := verifier.Tx{Outputs: []accumulator.Commitment{{0xAA}}, Payload: []byte("p")}
	err := h.node.node0Mempool().Append(tx)
	require.NoError(t, err)

	entries := h.node.node0Mempool().Entries()
	require.Len(t, entries, 1)
	txid := entries[0].TxID()

	const nonce = uint64(42)
	idUnderRequester := shortid.Shorten(nonce, requester[:], txid)
	idUnderSelf := shortid.Shorten(nonce, h.node.selfID[:], txid)
	require.NotEqual(t, idUnderRequester, idUnderSelf)

	list := idUnderRequester.AppendTo(nil)
	perr := h.node.OnMessage(requester, wire.GetMempoolTxs{ShortIDNonce: nonce, ShortIDList: list})
	require.Nil(t, perr)

	require.Len(t, h.network.sent, 2) // GetInventory on connect, then MempoolTxs
	reply, ok := h.network.sent[1].msg.(wire.MempoolTxs)
	require.True(t, ok)
	require.Len(t, reply.Txs, 1)
	require.Equal(t, txid, reply.Txs[0].TxID)
}

func TestHandleMempoolTxsRejectsStaleTip(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)

	err := h.node.OnMessage(p, wire.MempoolTxs{Tip: common.Hash{0xFF}})
	require.Error(t, err)
	require.False(t, err.IsFatal())
	require.IsType(t, &StaleMempoolStateError{}, err)
}

func TestOnTickRotatesNonceAfterTTLExpires(t *testing.T) {
	h := newHarness(t)
	first := h.node.ShortIDNonce()
	for i := 0; i < TTLMax; i++ {
		h.node.OnTick()
	}
	require.NotEqual(t, first, h.node.ShortIDNonce())
}

func TestOnPeerDisconnectedRemovesFromPeerSet(t *testing.T) {
	h := newHarness(t)
	p := peerID(2)
	h.node.OnPeerConnected(p)
	require.Equal(t, 1, h.node.peers.len())
	h.node.OnPeerDisconnected(p)
	require.Equal(t, 0, h.node.peers.len())
}

func blockHeaderAt(height uint64) block.Header {
	return block.Header{Height: height}
}

// node0Mempool exposes the harness node's mempool for white-box assertions
// that need to feed entries directly, bypassing the wire path.
func (n *Node) node0Mempool() *mempool.Mempool { return n.mempool }
