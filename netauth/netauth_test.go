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

package netauth

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var id [32]byte
	id[0] = 0x42

	sig, err := Sign(priv, id)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(pub, id, sig) {
		t.Fatalf("Verify rejected a valid signature")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	_, otherPub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var id [32]byte
	id[0] = 0x7

	sig, err := Sign(priv, id)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if Verify(otherPub, id, sig) {
		t.Fatalf("Verify accepted a signature under the wrong key")
	}
}

func TestVerifyRejectsTamperedID(t *testing.T) {
	priv, pub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var id, tampered [32]byte
	id[0] = 0x1
	tampered[0] = 0x2

	sig, err := Sign(priv, id)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if Verify(pub, tampered, sig) {
		t.Fatalf("Verify accepted a signature over a different block id")
	}
}
