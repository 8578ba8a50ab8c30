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

// Package config loads a node's TOML configuration file: a toml.Config
// with field names kept verbatim (no case-folding) and missing-field
// errors turned into reportable Go errors rather than silently ignored.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// StorageConfig selects and configures the node's block store.
type StorageConfig struct {
	// Driver is either "leveldb" or "memory".
	Driver string
	Path   string `toml:",omitempty"`
}

// TransportConfig selects and configures the node's peer transport.
type TransportConfig struct {
	// Driver is either "websocket" or "loopback". syncnoded itself runs
	// only "websocket" and refuses to start with any other value.
	Driver   string
	ListenOn string `toml:",omitempty"`
}

// NodeConfig is a syncnoded instance's full on-disk configuration.
type NodeConfig struct {
	Name             string
	NetworkPublicKey string `toml:",omitempty"`
	PrivateKeyFile   string `toml:",omitempty"`
	TickIntervalMs   uint64
	Storage          StorageConfig
	Transport        TransportConfig
	BootstrapPeers   []string `toml:",omitempty"`
}

// Default returns the configuration a freshly initialized node starts from.
func Default() NodeConfig {
	return NodeConfig{
		Name:           "syncnoded",
		TickIntervalMs: 1000,
		Storage:        StorageConfig{Driver: "leveldb", Path: "chaindata"},
		Transport:      TransportConfig{Driver: "websocket", ListenOn: ":30900"},
	}
}

// Load reads and decodes the TOML file at path into cfg.
func Load(path string, cfg *NodeConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return err
}
