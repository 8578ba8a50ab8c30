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
	"fmt"

	"github.com/probenet/chainsync/common"
)

// ProtocolError is satisfied by every classified failure OnMessage can
// return. IsFatal tells the host whether to call network.Disconnect on the
// peer that caused it.
type ProtocolError interface {
	error
	IsFatal() bool
}

// IncompatibleVersionError is returned when a peer's message carries a
// protocol version other than wire.CurrentVersion. Fatal.
type IncompatibleVersionError struct{ Version uint32 }

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("syncnode: incompatible protocol version %d", e.Version)
}
func (e *IncompatibleVersionError) IsFatal() bool { return true }

// InvalidBlockSignatureError is returned when a tip or block signature
// fails to verify under the network's public key. Fatal.
type InvalidBlockSignatureError struct{}

func (e *InvalidBlockSignatureError) Error() string { return "syncnode: invalid block signature" }
func (e *InvalidBlockSignatureError) IsFatal() bool { return true }

// BlockNotRelevantError is returned when a received block does not extend
// the current tip by exactly one. Not fatal; late or duplicate arrivals
// are expected in a multi-peer setting.
type BlockNotRelevantError struct{ Height uint64 }

func (e *BlockNotRelevantError) Error() string {
	return fmt.Sprintf("syncnode: block at height %d is not relevant", e.Height)
}
func (e *BlockNotRelevantError) IsFatal() bool { return false }

// BlockNotFoundError is returned by OnMessage when a peer's GetBlock asks
// for a height the local store doesn't have. Nothing is sent back to the
// requester. Not fatal on either side.
type BlockNotFoundError struct{ Height uint64 }

func (e *BlockNotFoundError) Error() string {
	return fmt.Sprintf("syncnode: no block at height %d", e.Height)
}
func (e *BlockNotFoundError) IsFatal() bool { return false }

// StaleMempoolStateError is returned when a MempoolTxs reply names a tip
// the node has already moved past. Dropped silently; not fatal.
type StaleMempoolStateError struct{ Tip common.Hash }

func (e *StaleMempoolStateError) Error() string {
	return fmt.Sprintf("syncnode: stale mempool reply for tip %s", e.Tip)
}
func (e *StaleMempoolStateError) IsFatal() bool { return false }

// MempoolValidationFailedError wraps a mempool.ValidationError (a
// genuinely malformed or double-spending transaction). Fatal for whoever
// sent it; a bare mempool.ErrConflict never reaches this type.
type MempoolValidationFailedError struct{ Err error }

func (e *MempoolValidationFailedError) Error() string {
	return "syncnode: mempool validation failed: " + e.Err.Error()
}
func (e *MempoolValidationFailedError) Unwrap() error { return e.Err }
func (e *MempoolValidationFailedError) IsFatal() bool { return true }

// InternalError wraps an unexpected storage or verifier failure.
type InternalError struct{ Err error }

func (e *InternalError) Error() string { return "syncnode: internal error: " + e.Err.Error() }
func (e *InternalError) Unwrap() error { return e.Err }
func (e *InternalError) IsFatal() bool { return true }

// classifyMempoolAppend turns a mempool.Append error into the protocol's
// own vocabulary: ErrConflict is non-punishable and must be handled by the
// caller (skip and continue), anything else is fatal for the sender.
func classifyMempoolAppend(err error) ProtocolError {
	if err == nil {
		return nil
	}
	return &MempoolValidationFailedError{Err: err}
}
