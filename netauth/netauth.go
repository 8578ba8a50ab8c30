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

// Package netauth realizes the single-signer block signature scheme the
// protocol engine consumes only through Sign/Verify: the
// cryptographic detail of how a tip is authenticated is deliberately kept
// out of syncnode, which only ever calls netauth.Verify against the fixed
// network public key (and netauth.Sign when the authority seals a block).
package netauth

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec"
)

// transcriptLabel domain-separates block-id signatures from any other use
// of the authority key.
const transcriptLabel = "ZkVM.stubnet1:block_id"

func transcript(blockID [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(transcriptLabel))
	h.Write(blockID[:])
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// PublicKey is the fixed network authority key blocks are signed under.
type PublicKey = btcec.PublicKey

// PrivateKey signs new tips; held only by the authority node.
type PrivateKey = btcec.PrivateKey

// Sign authenticates a block id under the authority's signing key.
func Sign(priv *PrivateKey, blockID [32]byte) ([]byte, error) {
	digest := transcript(blockID)
	sig, err := priv.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// Verify checks that sig authenticates blockID under pub. It never returns
// an error: an unparseable or mismatched signature is simply invalid.
func Verify(pub *PublicKey, blockID [32]byte, sig []byte) bool {
	parsed, err := btcec.ParseDERSignature(sig, btcec.S256())
	if err != nil {
		return false
	}
	digest := transcript(blockID)
	return parsed.Verify(digest[:], pub)
}

// GenerateKey creates a fresh authority keypair, used by tests and by the
// `syncnoded keygen` CLI command to provision a new network.
func GenerateKey() (*PrivateKey, *PublicKey, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, nil, err
	}
	return priv, priv.PubKey(), nil
}

// ParsePublicKey decodes a serialized (compressed or uncompressed) network
// public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	return btcec.ParsePubKey(b, btcec.S256())
}

// ParsePrivateKey decodes a raw 32-byte signing key.
func ParsePrivateKey(b []byte) *PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), b)
	return priv
}

// SerializePublicKey returns pub in compressed form, the encoding the
// config file and keygen output use.
func SerializePublicKey(pub *PublicKey) []byte { return pub.SerializeCompressed() }

// SerializePrivateKey returns priv's raw 32-byte scalar.
func SerializePrivateKey(priv *PrivateKey) []byte { return priv.Serialize() }
