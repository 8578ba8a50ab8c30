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
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/probenet/chainsync/common"
)

// ErrBadHandshake is returned when a peer's hello frame is malformed.
var ErrBadHandshake = errors.New("transport: bad handshake")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handshake on a fresh connection is a single binary frame in each
// direction carrying the sender's 32-byte peer id. The channel itself is
// assumed authenticated at setup time; the hello only names the endpoint.

func (n *WSNetwork) handshake(conn *websocket.Conn) (common.PeerID, error) {
	if err := conn.WriteMessage(websocket.BinaryMessage, n.self.Bytes()); err != nil {
		return common.PeerID{}, err
	}
	_, hello, err := conn.ReadMessage()
	if err != nil {
		return common.PeerID{}, err
	}
	if len(hello) != len(common.PeerID{}) {
		return common.PeerID{}, ErrBadHandshake
	}
	return common.BytesToPeerID(hello), nil
}

// Handler returns an http.Handler that upgrades inbound requests and
// registers the resulting connections. Mount it on whatever mux/listener
// the host runs.
func (n *WSNetwork) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			wsLog.Debug("upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		peer, err := n.handshake(conn)
		if err != nil {
			wsLog.Debug("handshake failed", "remote", r.RemoteAddr, "err", err)
			conn.Close()
			return
		}
		wsLog.Info("peer connected", "peer", peer, "remote", r.RemoteAddr)
		n.Register(peer, conn)
	})
}

// ListenAndServe accepts peers on addr until the process exits. It blocks,
// so hosts run it on its own goroutine.
func (n *WSNetwork) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, n.Handler())
}

// Dial connects out to a peer at url (ws://host:port), performs the hello
// exchange, and registers the connection.
func (n *WSNetwork) Dial(url string) (common.PeerID, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return common.PeerID{}, err
	}
	peer, err := n.handshake(conn)
	if err != nil {
		conn.Close()
		return common.PeerID{}, err
	}
	wsLog.Info("peer dialed", "peer", peer, "url", url)
	n.Register(peer, conn)
	return peer, nil
}
