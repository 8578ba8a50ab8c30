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
	"errors"
	"sync"
	"time"

	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/common"
)

// errPeerNotFound is returned by peerSet lookups for an id with no entry.
var errPeerNotFound = errors.New("syncnode: peer not registered")

// PeerInfo is the protocol engine's per-peer bookkeeping.
type PeerInfo struct {
	Tip    block.Header
	HasTip bool

	NeedsOurInventory bool

	// TheirShortIDNonce is the nonce the peer asked us to use when
	// shortening txids for them (set by GetInventory).
	TheirShortIDNonce uint64

	// ShortIDNonce is the nonce the peer told us it uses for its own
	// advertised list (set by Inventory).
	ShortIDNonce uint64

	// ShortIDList is the peer's most recently advertised concatenation of
	// short-ids, under ShortIDNonce.
	ShortIDList []byte

	LastInventoryReceived time.Time
}

// peerSet is a mutex-guarded peer table: insert on connect, delete on
// disconnect, no ordering guarantee across entries.
type peerSet struct {
	mu    sync.Mutex
	peers map[common.PeerID]*PeerInfo
}

func newPeerSet() *peerSet {
	return &peerSet{peers: make(map[common.PeerID]*PeerInfo)}
}

func (s *peerSet) register(id common.PeerID, now time.Time) *PeerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &PeerInfo{LastInventoryReceived: now}
	s.peers[id] = p
	return p
}

func (s *peerSet) unregister(id common.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
}

func (s *peerSet) get(id common.PeerID) (*PeerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return nil, errPeerNotFound
	}
	return p, nil
}

// ids returns every registered peer id, in the map's natural iteration
// order.
func (s *peerSet) ids() []common.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.PeerID, 0, len(s.peers))
	for id := range s.peers {
		out = append(out, id)
	}
	return out
}

func (s *peerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}
