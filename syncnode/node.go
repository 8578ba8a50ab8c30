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

// Package syncnode is the protocol engine: message dispatch over a peer
// set, tick-driven chain catch-up and mempool reconciliation, and tip
// signature verification.
package syncnode

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	lru "github.com/hashicorp/golang-lru"

	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/internal/plog"
	"github.com/probenet/chainsync/mempool"
	"github.com/probenet/chainsync/netauth"
	"github.com/probenet/chainsync/shortid"
	"github.com/probenet/chainsync/state"
	"github.com/probenet/chainsync/storage"
	"github.com/probenet/chainsync/transport"
	"github.com/probenet/chainsync/verifier"
	"github.com/probenet/chainsync/wire"
)

const (
	// TTLMax bounds shortIDNonceTTL; it resets here on rotation.
	TTLMax = 50

	// InventoryRefreshInterval is how long a peer may stay silent before
	// this node re-requests its inventory.
	InventoryRefreshInterval = 60 * time.Second

	// maxReconcileIterations bounds the round-robin offset walk in
	// synchronizeMempool.
	maxReconcileIterations = 1_000_000

	// claimedCacheSize bounds the per-tick "assigned shortids" bookkeeping
	// so that a peer advertising an unreasonably large shortid list can't
	// grow this node's memory without limit within a single tick.
	claimedCacheSize = 1 << 20
)

var syncLog = plog.New("module", "syncnode")

// Node is one peer's view of the synchronization protocol: peer table,
// short-id nonce/TTL, mempool, and the storage/network/verifier
// collaborators it drives. Every exported method takes the node's single
// coarse lock for its whole body, so each public operation is one
// non-reentrant atomic step.
type Node struct {
	mu sync.Mutex

	selfID        common.PeerID
	networkPubKey *netauth.PublicKey
	targetTip     block.Header

	peers *peerSet

	shortIDNonce    uint64
	shortIDNonceTTL uint64

	mempool *mempool.Mempool
	store   storage.Store
	network transport.Network
	params  verifier.Params

	// genesis is the agreed-upon starting state every node in the network
	// begins from. It is what store.Tip/BlockchainState fall back to before
	// the first block is stored.
	genesis state.BlockchainState

	rng *mrand.Rand
	now func() time.Time

	recentlyClaimed *lru.Cache
}

// New constructs a Node. mp must be sealed at the store's current state,
// which is genesis itself on an empty store; targetTip and the store's
// implicit starting state both fall back to genesis until a first block
// lands, so every node in the network must agree on the same value.
func New(selfID common.PeerID, networkPubKey *netauth.PublicKey, store storage.Store, network transport.Network, mp *mempool.Mempool, params verifier.Params, genesis state.BlockchainState) *Node {
	claimed, _ := lru.New(claimedCacheSize)
	n := &Node{
		selfID:          selfID,
		networkPubKey:   networkPubKey,
		peers:           newPeerSet(),
		shortIDNonce:    randomUint64(),
		shortIDNonceTTL: TTLMax,
		mempool:         mp,
		store:           store,
		network:         network,
		params:          params,
		genesis:         genesis,
		rng:             mrand.New(mrand.NewSource(int64(randomUint64()))),
		now:             time.Now,
		recentlyClaimed: claimed,
	}
	n.targetTip = n.tip()
	return n
}

// tip returns the store's current tip, falling back to genesis if nothing
// has been stored yet.
func (n *Node) tip() block.Header {
	if h, ok := n.store.Tip(); ok {
		return h
	}
	return n.genesis.Tip
}

// blockchainState returns the store's current state, falling back to
// genesis if nothing has been stored yet.
func (n *Node) blockchainState() state.BlockchainState {
	if s, ok := n.store.BlockchainState(); ok {
		return s
	}
	return n.genesis
}

func randomUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform's entropy source is
		// broken; there is nothing safe to do but fall back rather than
		// panic a running node.
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(b[:])
}

// TargetTip reports the highest authenticated tip this node knows about.
func (n *Node) TargetTip() block.Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.targetTip
}

// ShortIDNonce reports the node's current nonce (exported for tests that
// assert on TTL rotation).
func (n *Node) ShortIDNonce() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shortIDNonce
}

// Deliver implements transport.Receiver: it runs OnMessage and, for a
// fatal protocol error, disconnects the offending peer.
func (n *Node) Deliver(from common.PeerID, msg wire.Message) {
	err := n.OnMessage(from, msg)
	if err == nil {
		return
	}
	syncLog.Debug("on_message rejected", "peer", from, "kind", msg.Kind(), "err", err)
	if err.IsFatal() {
		n.network.Disconnect(from)
	}
}

// OnMessage dispatches one inbound message to its kind's handler.
func (n *Node) OnMessage(from common.PeerID, msg wire.Message) ProtocolError {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch m := msg.(type) {
	case wire.GetInventory:
		return n.handleGetInventory(from, m)
	case wire.Inventory:
		return n.handleInventory(from, m)
	case wire.GetBlock:
		return n.handleGetBlock(from, m)
	case wire.BlockMsg:
		return n.handleBlock(from, m)
	case wire.GetMempoolTxs:
		return n.handleGetMempoolTxs(from, m)
	case wire.MempoolTxs:
		return n.handleMempoolTxs(from, m)
	default:
		return nil
	}
}

func (n *Node) handleGetInventory(from common.PeerID, m wire.GetInventory) ProtocolError {
	if m.Version != wire.CurrentVersion {
		return &IncompatibleVersionError{Version: m.Version}
	}
	peer, err := n.peers.get(from)
	if err != nil {
		return nil
	}
	peer.NeedsOurInventory = true
	peer.TheirShortIDNonce = m.ShortIDNonce
	return nil
}

func (n *Node) handleInventory(from common.PeerID, m wire.Inventory) ProtocolError {
	if m.Version != wire.CurrentVersion {
		return &IncompatibleVersionError{Version: m.Version}
	}
	peer, err := n.peers.get(from)
	if err != nil {
		return nil
	}
	if m.Tip.Height > n.targetTip.Height {
		if !netauth.Verify(n.networkPubKey, m.Tip.ID(), m.TipSignature) {
			return &InvalidBlockSignatureError{}
		}
		n.targetTip = m.Tip
	}
	peer.Tip = m.Tip
	peer.HasTip = true
	peer.ShortIDNonce = m.ShortIDNonce
	peer.ShortIDList = m.ShortIDList
	peer.LastInventoryReceived = n.now()
	return nil
}

func (n *Node) handleGetBlock(from common.PeerID, m wire.GetBlock) ProtocolError {
	b, ok := n.store.BlockAt(m.Height)
	if !ok {
		return &BlockNotFoundError{Height: m.Height}
	}
	n.network.Send(from, wire.BlockMsg{Header: b.Header, Signature: b.Signature, Txs: b.Txs})
	return nil
}

func (n *Node) handleBlock(from common.PeerID, m wire.BlockMsg) ProtocolError {
	if m.Header.Height != n.tip().Height+1 {
		return &BlockNotRelevantError{Height: m.Header.Height}
	}
	if !netauth.Verify(n.networkPubKey, m.Header.ID(), m.Signature) {
		return &InvalidBlockSignatureError{}
	}

	cur := n.blockchainState()
	vtxs := make([]verifier.Tx, len(m.Txs))
	for i, tx := range m.Txs {
		vtxs[i] = tx.ToVerifierTx()
	}
	newState, catchup, _, err := cur.Apply(m.Header, vtxs, n.params)
	if err != nil {
		return &InternalError{Err: err}
	}
	n.mempool.UpdateState(newState, catchup)
	if err := n.store.StoreBlock(block.Block{Header: m.Header, Signature: m.Signature, Txs: m.Txs}, newState); err != nil {
		return &InternalError{Err: err}
	}
	if newState.Tip.Height > n.targetTip.Height {
		n.targetTip = newState.Tip
	}
	return nil
}

func (n *Node) handleGetMempoolTxs(from common.PeerID, m wire.GetMempoolTxs) ProtocolError {
	requested := make(map[shortid.ID]bool)
	for _, id := range shortid.Scan(m.ShortIDList) {
		requested[id] = true
	}
	shortener := shortid.New(m.ShortIDNonce, from[:])

	reply := wire.MempoolTxs{Tip: n.tip().ID()}
	for _, entry := range n.mempool.Entries() {
		txid := entry.TxID()
		if requested[shortener.Shorten(txid)] {
			reply.Txs = append(reply.Txs, entry.BlockTx())
		}
	}
	n.network.Send(from, reply)
	return nil
}

func (n *Node) handleMempoolTxs(from common.PeerID, m wire.MempoolTxs) ProtocolError {
	if m.Tip != n.tip().ID() {
		return &StaleMempoolStateError{Tip: m.Tip}
	}
	for _, tx := range m.Txs {
		err := n.mempool.Append(tx.ToVerifierTx())
		if err == nil {
			continue
		}
		if err == mempool.ErrConflict {
			continue
		}
		return classifyMempoolAppend(err)
	}
	return nil
}

// OnPeerConnected registers a new peer and requests its inventory.
func (n *Node) OnPeerConnected(peer common.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers.register(peer, n.now())
	n.network.Send(peer, wire.GetInventory{Version: wire.CurrentVersion, ShortIDNonce: n.shortIDNonce})
}

// OnPeerDisconnected removes a peer's bookkeeping.
func (n *Node) OnPeerDisconnected(peer common.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers.unregister(peer)
}

// OnTick runs one synchronization round: nonce rotation, inventory
// publication, chain catch-up or mempool reconciliation, and stale
// inventory refresh, in that order. It never fails.
func (n *Node) OnTick() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.rotateShortIDNonceIfNeeded()
	n.publishInventory()

	tip := n.tip()
	if n.targetTip.ID() != tip.ID() {
		n.synchronizeChain(tip)
	} else {
		n.synchronizeMempool()
	}

	n.refreshStaleInventory()
}

func (n *Node) rotateShortIDNonceIfNeeded() {
	if n.shortIDNonceTTL > 0 {
		n.shortIDNonceTTL--
	}
	if n.shortIDNonceTTL != 0 {
		return
	}
	n.shortIDNonceTTL = TTLMax
	n.shortIDNonce = randomUint64()
	for _, id := range n.peers.ids() {
		peer, err := n.peers.get(id)
		if err != nil {
			continue
		}
		peer.ShortIDNonce = 0
		peer.ShortIDList = nil
	}
}

func (n *Node) publishInventory() {
	tip := n.tip()
	tipSig := n.tipSignatureUnlocked()

	for _, id := range n.peers.ids() {
		peer, err := n.peers.get(id)
		if err != nil || !peer.NeedsOurInventory {
			continue
		}
		n.network.Send(id, wire.Inventory{
			Version:      wire.CurrentVersion,
			Tip:          tip,
			TipSignature: tipSig,
			ShortIDNonce: peer.TheirShortIDNonce,
			ShortIDList:  n.mempoolInventoryForPeer(id, peer.TheirShortIDNonce),
		})
	}
	for _, id := range n.peers.ids() {
		if peer, err := n.peers.get(id); err == nil {
			peer.NeedsOurInventory = false
		}
	}
}

// tipSignatureUnlocked returns the signature already on file for the
// current tip's block, the same bytes this node received (or produced via
// CreateBlock) when the tip was first adopted.
func (n *Node) tipSignatureUnlocked() []byte {
	tip, ok := n.store.Tip()
	if !ok {
		return nil
	}
	b, ok := n.store.BlockAt(tip.Height)
	if !ok {
		return nil
	}
	return b.Signature
}

func (n *Node) mempoolInventoryForPeer(peer common.PeerID, nonce uint64) []byte {
	shortener := shortid.New(nonce, peer[:])
	out := make([]byte, 0, n.mempool.Len()*shortid.Len)
	for _, entry := range n.mempool.Entries() {
		id := shortener.Shorten(entry.TxID())
		out = id.AppendTo(out)
	}
	return out
}

func (n *Node) synchronizeChain(tip block.Header) {
	ids := n.peers.ids()
	if len(ids) == 0 {
		return
	}
	pick := ids[n.rng.Intn(len(ids))]
	n.network.Send(pick, wire.GetBlock{Height: tip.Height + 1})
}

func (n *Node) synchronizeMempool() {
	n.recentlyClaimed.Purge()
	shortener := shortid.New(n.shortIDNonce, n.selfID[:])
	for _, entry := range n.mempool.Entries() {
		n.recentlyClaimed.Add(shortener.Shorten(entry.TxID()), true)
	}

	ids := n.peers.ids()
	claims := make(map[common.PeerID]mapset.Set, len(ids))

	for offset := 0; offset < maxReconcileIterations; offset++ {
		done := true
		for _, id := range ids {
			peer, err := n.peers.get(id)
			if err != nil {
				continue
			}
			sid, ok := shortid.AtPosition(offset, peer.ShortIDList)
			if !ok {
				continue
			}
			done = false
			if _, seen := n.recentlyClaimed.Get(sid); seen {
				continue
			}
			n.recentlyClaimed.Add(sid, true)
			if claims[id] == nil {
				claims[id] = mapset.NewThreadUnsafeSet()
			}
			claims[id].Add(sid)
		}
		if done {
			break
		}
	}

	for id, set := range claims {
		list := make([]byte, 0, set.Cardinality()*shortid.Len)
		for v := range set.Iter() {
			list = v.(shortid.ID).AppendTo(list)
		}
		n.network.Send(id, wire.GetMempoolTxs{ShortIDNonce: n.shortIDNonce, ShortIDList: list})
	}
}

func (n *Node) refreshStaleInventory() {
	now := n.now()
	for _, id := range n.peers.ids() {
		peer, err := n.peers.get(id)
		if err != nil {
			continue
		}
		if now.Sub(peer.LastInventoryReceived) > InventoryRefreshInterval {
			n.network.Send(id, wire.GetInventory{Version: wire.CurrentVersion, ShortIDNonce: n.shortIDNonce})
		}
	}
}

// CreateBlock seals the current mempool into a new block, signs it, and
// advances the node's own state. It is an authority-only
// operation; the caller is trusted to hold a key that corresponds to
// networkPubKey.
func (n *Node) CreateBlock(timestampMs uint64, signingKey *netauth.PrivateKey) (block.Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	cur := n.blockchainState()
	if timestampMs < cur.Tip.TimestampMs {
		timestampMs = cur.Tip.TimestampMs
	}
	n.mempool.UpdateTimestamp(timestampMs)

	newState, catchup := n.mempool.MakeBlock()

	sig, err := netauth.Sign(signingKey, newState.Tip.ID())
	if err != nil {
		return block.Block{}, &InternalError{Err: err}
	}

	txs := make([]block.Tx, 0, len(n.mempool.Entries()))
	for _, entry := range n.mempool.Entries() {
		txs = append(txs, entry.BlockTx())
	}
	b := block.Block{Header: newState.Tip, Signature: sig, Txs: txs}

	n.mempool.UpdateState(newState, catchup)
	if err := n.store.StoreBlock(b, newState); err != nil {
		return block.Block{}, &InternalError{Err: err}
	}
	if newState.Tip.Height > n.targetTip.Height {
		n.targetTip = newState.Tip
	}
	return b, nil
}
