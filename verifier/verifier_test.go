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

package verifier

import (
	"testing"

	"github.com/probenet/chainsync/accumulator"
)

func commitment(b byte) accumulator.Commitment {
	var c accumulator.Commitment
	c[0] = b
	return c
}

func TestVerifyAcceptsValidSpend(t *testing.T) {
	acc := accumulator.New([]accumulator.Commitment{commitment(1), commitment(2)})
	proof, err := acc.Prove(commitment(1))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	p := NewParams()
	tx := Tx{
		Inputs:  []TxInput{{Commitment: commitment(1), Proof: proof}},
		Outputs: []accumulator.Commitment{commitment(3)},
		Payload: []byte("tx-1"),
	}
	v, err := p.Verify(tx, acc.Root())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.TxID.IsZero() {
		t.Fatalf("expected a non-zero txid")
	}
}

func TestVerifyRejectsStaleProof(t *testing.T) {
	acc := accumulator.New([]accumulator.Commitment{commitment(1), commitment(2)})
	proof, err := acc.Prove(commitment(1))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	next, _ := acc.ApplyBatch(nil, []accumulator.Commitment{commitment(1)})

	p := NewParams()
	tx := Tx{
		Inputs:  []TxInput{{Commitment: commitment(1), Proof: proof}},
		Outputs: []accumulator.Commitment{commitment(3)},
	}
	if _, err := p.Verify(tx, next.Root()); err != ErrInvalidProof {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}
}

func TestVerifyRejectsDoubleSpendWithinTx(t *testing.T) {
	acc := accumulator.New([]accumulator.Commitment{commitment(1)})
	proof, err := acc.Prove(commitment(1))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	p := NewParams()
	tx := Tx{
		Inputs: []TxInput{
			{Commitment: commitment(1), Proof: proof},
			{Commitment: commitment(1), Proof: proof},
		},
		Outputs: []accumulator.Commitment{commitment(2)},
	}
	if _, err := p.Verify(tx, acc.Root()); err != ErrDoubleSpend {
		t.Fatalf("expected ErrDoubleSpend, got %v", err)
	}
}

func TestVerifyIsDeterministic(t *testing.T) {
	p := NewParams()
	tx := Tx{Outputs: []accumulator.Commitment{commitment(9)}, Payload: []byte("x")}
	v1, err := p.Verify(tx, accumulator.Empty.Root())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	v2, err := p.Verify(tx, accumulator.Empty.Root())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v1.TxID != v2.TxID {
		t.Fatalf("verification of identical tx produced different txids")
	}
}
