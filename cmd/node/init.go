package main

import (
	"fmt"
	"os"
	"path/filepath"

	"MeshChain/internal/api"
	"MeshChain/internal/config"
	"MeshChain/internal/ledger"
	"MeshChain/internal/miner"
	"MeshChain/internal/peer"
	"MeshChain/internal/storage"
)

// initSettings loads the node directory.
func (n *Node) initSettings() error {
	s, err := config.Load(n.cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("load settings:\n%w", err)
	}

	n.settings = s

	return nil
}

// initStorage opens the Pebble store when a data directory is set.
func (n *Node) initStorage() error {
	if n.cfg.DataPath == "" {
		return nil
	}

	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.Open(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// initChain loads the chain and wires the outbound client to it.
func (n *Node) initChain() error {
	n.client = peer.New(n.settings.Peers, n.settings.Tools, peer.WithTimeout(n.cfg.HTTPTimeout))

	opts := []ledger.Option{
		ledger.WithObserver(ledger.ObserverFuncs{
			Mine: n.client.BroadcastBlock,
		}),
	}

	if n.storage != nil {
		opts = append(opts, ledger.WithStore(storage.NewBlockStore(n.storage)))
	}

	chain, err := ledger.NewChain(opts...)
	if err != nil {
		return fmt.Errorf("init chain:\n%w", err)
	}

	n.chain = chain

	return nil
}

// initServer builds the miner and the HTTP API.
func (n *Node) initServer() {
	n.miner = miner.New(n.chain, n.cfg.MineInterval)
	n.dedup = api.NewDedup(0)

	opts := []api.Option{
		api.WithMiner(n.miner),
		api.WithDedup(n.dedup),
	}

	if n.cfg.Events {
		n.hub = api.NewHub()
		n.chain.Observe(n.hub)
		opts = append(opts, api.WithHub(n.hub))
	}

	n.api = api.New(n.settings.Me.Addr(), n.settings.Name, n.chain, n.client, opts...)
}
