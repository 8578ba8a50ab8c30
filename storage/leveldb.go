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

package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/probenet/chainsync/block"
	"github.com/probenet/chainsync/state"
)

// blockCacheSize bounds the number of recently-read blocks kept in memory.
const blockCacheSize = 256

// Key layout: a single byte class prefix followed by a fixed-width
// big-endian height, so range scans over blocks stay in height order.
const (
	blockPrefix = 'h'
	tipKey      = "t"
)

func blockKey(height uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = blockPrefix
	binary.BigEndian.PutUint64(buf[1:], height)
	return buf
}

// LevelDB is a Store backed by a goleveldb database.
type LevelDB struct {
	db     *leveldb.DB
	blocks *lru.Cache
}

// OpenLevelDB opens (creating if absent) a LevelDB-backed store at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	cache, _ := lru.New(blockCacheSize)
	return &LevelDB{db: db, blocks: cache}, nil
}

// openLevelDBMemory opens an in-memory goleveldb instance, used by tests
// that want to exercise the real LevelDB codec without touching disk.
func openLevelDBMemory() (*LevelDB, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	cache, _ := lru.New(blockCacheSize)
	return &LevelDB{db: db, blocks: cache}, nil
}

func (l *LevelDB) Tip() (block.Header, bool) {
	b, err := l.db.Get([]byte(tipKey), nil)
	if err != nil {
		return block.Header{}, false
	}
	var e encodedState
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&e); err != nil {
		return block.Header{}, false
	}
	return e.Tip, true
}

func (l *LevelDB) TipHeight() uint64 {
	h, ok := l.Tip()
	if !ok {
		return 0
	}
	return h.Height
}

func (l *LevelDB) BlockAt(height uint64) (block.Block, bool) {
	if v, ok := l.blocks.Get(height); ok {
		return v.(block.Block), true
	}
	raw, err := l.db.Get(blockKey(height), nil)
	if err != nil {
		return block.Block{}, false
	}
	var b block.Block
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&b); err != nil {
		return block.Block{}, false
	}
	l.blocks.Add(height, b)
	return b, true
}

func (l *LevelDB) BlockchainState() (state.BlockchainState, bool) {
	raw, err := l.db.Get([]byte(tipKey), nil)
	if err != nil {
		return state.BlockchainState{}, false
	}
	var e encodedState
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		return state.BlockchainState{}, false
	}
	return decodeState(e), true
}

func (l *LevelDB) StoreBlock(b block.Block, s state.BlockchainState) error {
	blockBytes, err := json.Marshal(b)
	if err != nil {
		return err
	}
	stateBytes, err := json.Marshal(encodeState(s))
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(blockKey(b.Header.Height), blockBytes)
	batch.Put([]byte(tipKey), stateBytes)
	if err := l.db.Write(batch, nil); err != nil {
		return err
	}
	l.blocks.Add(b.Header.Height, b)
	return nil
}

func (l *LevelDB) Close() error { return l.db.Close() }
