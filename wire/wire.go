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

// Package wire is the canonical, deterministic encoder for the six message
// kinds of the synchronization protocol, snappy-compressed the same way
// devp2p's own eth/66 wire protocol compresses each message body.
package wire

import (
	"encoding/json"
	"errors"

	"github.com/golang/snappy"

	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/common"
)

// CurrentVersion is the only protocol version this node speaks.
const CurrentVersion = 0

// Kind tags a Message's concrete type on the wire.
type Kind uint8

const (
	KindGetInventory Kind = iota
	KindInventory
	KindGetBlock
	KindBlock
	KindGetMempoolTxs
	KindMempoolTxs
)

// Message is implemented by each of the six wire message types.
type Message interface {
	Kind() Kind
}

// GetInventory requests a peer announce its tip and mempool short-ids.
type GetInventory struct {
	Version      uint32
	ShortIDNonce uint64
}

func (GetInventory) Kind() Kind { return KindGetInventory }

// Inventory announces a peer's signed tip and its mempool's short-ids,
// concatenated as fixed-size chunks (shortid.Scan on the receiving end).
type Inventory struct {
	Version      uint32
	Tip          block.Header
	TipSignature []byte
	ShortIDNonce uint64
	ShortIDList  []byte
}

func (Inventory) Kind() Kind { return KindInventory }

// GetBlock requests the block at a given height.
type GetBlock struct {
	Height uint64
}

func (GetBlock) Kind() Kind { return KindGetBlock }

// BlockMsg carries a full signed block.
type BlockMsg struct {
	Header    block.Header
	Signature []byte
	Txs       []block.Tx
}

func (BlockMsg) Kind() Kind { return KindBlock }

// GetMempoolTxs requests the full bodies for a set of short-ids.
type GetMempoolTxs struct {
	ShortIDNonce uint64
	ShortIDList  []byte
}

func (GetMempoolTxs) Kind() Kind { return KindGetMempoolTxs }

// MempoolTxs replies with the requested transaction bodies, tagged with the
// sender's tip so the requester can detect a stale reply.
type MempoolTxs struct {
	Tip common.Hash
	Txs []block.Tx
}

func (MempoolTxs) Kind() Kind { return KindMempoolTxs }

var errUnknownKind = errors.New("wire: unknown message kind")

type envelope struct {
	Kind    Kind
	Payload json.RawMessage
}

// Encode canonically serializes msg and snappy-compresses the result.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(envelope{Kind: msg.Kind(), Payload: payload})
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// Decode decompresses and parses data into its concrete Message type.
func Decode(data []byte) (Message, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case KindGetInventory:
		var m GetInventory
		return m, json.Unmarshal(env.Payload, &m)
	case KindInventory:
		var m Inventory
		return m, json.Unmarshal(env.Payload, &m)
	case KindGetBlock:
		var m GetBlock
		return m, json.Unmarshal(env.Payload, &m)
	case KindBlock:
		var m BlockMsg
		return m, json.Unmarshal(env.Payload, &m)
	case KindGetMempoolTxs:
		var m GetMempoolTxs
		return m, json.Unmarshal(env.Payload, &m)
	case KindMempoolTxs:
		var m MempoolTxs
		return m, json.Unmarshal(env.Payload, &m)
	default:
		return nil, errUnknownKind
	}
}
