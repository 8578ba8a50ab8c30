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

// syncnoded is the chain/mempool synchronization node daemon.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/probenet/chainsync/common"
	"github.com/probenet/chainsync/config"
	"github.com/probenet/chainsync/internal/plog"
	"github.com/probenet/chainsync/mempool"
	"github.com/probenet/chainsync/netauth"
	"github.com/probenet/chainsync/shortid"
	"github.com/probenet/chainsync/state"
	"github.com/probenet/chainsync/storage"
	"github.com/probenet/chainsync/syncnode"
	"github.com/probenet/chainsync/transport"
	"github.com/probenet/chainsync/verifier"
	"github.com/probenet/chainsync/wire"
)

const clientIdentifier = "syncnoded"

var (
	// version is overridden at link time by the release build.
	version = "1.0.0-unstable"

	log = plog.New("module", "main")

	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=error, 1=warn, 2=info, 3=debug, 4=trace",
		Value: 2,
	}
	mintIntervalFlag = cli.DurationFlag{
		Name:  "mint",
		Usage: "Seal a new block from the mempool at this interval (authority nodes only)",
	}

	keygenCommand = cli.Command{
		Action:    keygen,
		Name:      "keygen",
		Usage:     "Generate a network authority keypair",
		ArgsUsage: "<keyfile>",
		Description: `
Generates a fresh authority keypair, writes the private key to <keyfile>
(hex), and prints the compressed public key for distribution in every
node's configuration file.`,
	}
	dumpConfigCommand = cli.Command{
		Action: dumpConfig,
		Name:   "dumpconfig",
		Usage:  "Show default configuration values",
	}
	versionCommand = cli.Command{
		Action: printVersion,
		Name:   "version",
		Usage:  "Print version numbers",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = clientIdentifier
	app.Version = version
	app.Usage = "the chain/mempool synchronization node daemon"
	app.Action = runNode
	app.Flags = []cli.Flag{configFileFlag, verbosityFlag, mintIntervalFlag}
	app.Commands = []cli.Command{keygenCommand, dumpConfigCommand, versionCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func keygen(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: %s keygen <keyfile>", clientIdentifier)
	}
	priv, pub, err := netauth.GenerateKey()
	if err != nil {
		return err
	}
	keyfile := ctx.Args().First()
	enc := hex.EncodeToString(netauth.SerializePrivateKey(priv))
	if err := os.WriteFile(keyfile, []byte(enc+"\n"), 0600); err != nil {
		return err
	}
	fmt.Printf("Private key written to %s\n", keyfile)
	fmt.Printf("NetworkPublicKey = %q\n", hex.EncodeToString(netauth.SerializePublicKey(pub)))
	return nil
}

func dumpConfig(*cli.Context) error {
	cfg := config.Default()
	fmt.Printf("Name = %q\nTickIntervalMs = %d\n\n[Storage]\nDriver = %q\nPath = %q\n\n[Transport]\nDriver = %q\nListenOn = %q\n",
		cfg.Name, cfg.TickIntervalMs,
		cfg.Storage.Driver, cfg.Storage.Path,
		cfg.Transport.Driver, cfg.Transport.ListenOn)
	return nil
}

func printVersion(*cli.Context) error {
	fmt.Println(clientIdentifier, version)
	fmt.Println("Protocol version:", wire.CurrentVersion)
	fmt.Println("Short-id length:", shortid.Len)
	return nil
}

func loadNodeConfig(ctx *cli.Context) (config.NodeConfig, error) {
	cfg := config.Default()
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := config.Load(file, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func openStore(cfg config.NodeConfig) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemory(), nil
	case "leveldb":
		return storage.OpenLevelDB(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func loadSigningKey(cfg config.NodeConfig) (*netauth.PrivateKey, error) {
	if cfg.PrivateKeyFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return nil, err
	}
	dec, err := hex.DecodeString(string(trimNewline(raw)))
	if err != nil {
		return nil, fmt.Errorf("keyfile %s: %v", cfg.PrivateKeyFile, err)
	}
	return netauth.ParsePrivateKey(dec), nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func runNode(ctx *cli.Context) error {
	plog.SetLevel(plog.Lvl(ctx.GlobalInt(verbosityFlag.Name)))

	cfg, err := loadNodeConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.NetworkPublicKey == "" {
		return fmt.Errorf("NetworkPublicKey must be configured; run `%s keygen` to provision one", clientIdentifier)
	}
	pubBytes, err := hex.DecodeString(cfg.NetworkPublicKey)
	if err != nil {
		return fmt.Errorf("NetworkPublicKey: %v", err)
	}
	pub, err := netauth.ParsePublicKey(pubBytes)
	if err != nil {
		return fmt.Errorf("NetworkPublicKey: %v", err)
	}
	signingKey, err := loadSigningKey(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Transport.Driver != "websocket" {
		return fmt.Errorf("unknown transport driver %q", cfg.Transport.Driver)
	}

	params := verifier.NewParams()
	genesis := state.Genesis(0)
	nowMs := uint64(time.Now().UnixNano() / int64(time.Millisecond))
	mp := mempool.New(currentState(store, genesis), nowMs, params)

	// The receiver needs the node and the node needs the network; break the
	// cycle with a late-bound forwarder.
	selfID := transport.NewPeerID()
	fwd := &forwarder{}
	network := transport.NewWSNetwork(selfID, fwd)
	node := syncnode.New(selfID, pub, store, network, mp, params, genesis)
	fwd.node = node
	network.SetPeerHooks(node.OnPeerConnected, node.OnPeerDisconnected)

	go func() {
		log.Info("listening for peers", "addr", cfg.Transport.ListenOn, "self", selfID)
		if err := network.ListenAndServe(cfg.Transport.ListenOn); err != nil {
			log.Error("listener failed", "err", err)
		}
	}()
	for _, peer := range cfg.BootstrapPeers {
		if _, err := network.Dial(peer); err != nil {
			log.Warn("bootstrap dial failed", "peer", peer, "err", err)
		}
	}

	tick := time.NewTicker(time.Duration(cfg.TickIntervalMs) * time.Millisecond)
	defer tick.Stop()

	var mint <-chan time.Time
	if interval := ctx.GlobalDuration(mintIntervalFlag.Name); interval > 0 {
		if signingKey == nil {
			return fmt.Errorf("--mint requires PrivateKeyFile in the configuration")
		}
		minter := time.NewTicker(interval)
		defer minter.Stop()
		mint = minter.C
		log.Info("block production enabled", "interval", interval)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	log.Info("node started", "name", cfg.Name, "version", version)
	for {
		select {
		case <-tick.C:
			node.OnTick()
		case now := <-mint:
			ts := uint64(now.UnixNano() / int64(time.Millisecond))
			b, err := node.CreateBlock(ts, signingKey)
			if err != nil {
				log.Error("block production failed", "err", err)
				continue
			}
			log.Info("sealed block", "height", b.Header.Height, "txs", len(b.Txs), "id", b.Header.ID())
		case sig := <-sigc:
			log.Info("shutting down", "signal", sig)
			return nil
		}
	}
}

// currentState returns the store's persisted state, or genesis on a fresh
// data directory.
func currentState(store storage.Store, genesis state.BlockchainState) state.BlockchainState {
	if s, ok := store.BlockchainState(); ok {
		return s
	}
	return genesis
}

// forwarder is a transport.Receiver bound to its node after construction.
type forwarder struct {
	node *syncnode.Node
}

func (f *forwarder) Deliver(from common.PeerID, msg wire.Message) {
	f.node.Deliver(from, msg)
}
