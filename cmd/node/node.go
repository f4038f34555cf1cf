package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"MeshChain/internal/api"
	"MeshChain/internal/config"
	"MeshChain/internal/ledger"
	"MeshChain/internal/logger"
	"MeshChain/internal/miner"
	"MeshChain/internal/peer"
	"MeshChain/internal/storage"
)

// Node represents a running MeshChain node.
type Node struct {
	cfg      *Config
	settings *config.Settings
	storage  *storage.Storage
	chain    *ledger.Chain
	client   *peer.Client
	miner    *miner.Miner
	dedup    *api.Dedup
	hub      *api.Hub
	api      *api.Server

	ctx       context.Context    // ctx is canceled at shutdown
	cancel    context.CancelFunc // cancel stops the startup download
	downloads sync.WaitGroup     // downloads tracks the startup download
}

// NewNode creates and initializes a new node.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg}
	n.ctx, n.cancel = context.WithCancel(context.Background())

	if err := n.initSettings(); err != nil {
		return nil, err
	}

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.initChain(); err != nil {
		n.Close()
		return nil, err
	}

	n.initServer()

	return n, nil
}

// Run starts serving and blocks until a shutdown signal arrives.
func (n *Node) Run() error {
	if err := n.api.Start(); err != nil {
		n.Close()
		return fmt.Errorf("start api:\n%w", err)
	}

	n.miner.Start()

	if n.cfg.Download && len(n.settings.Peers) > 0 {
		n.startDownload()
	}

	return n.waitForShutdown()
}

// startDownload fetches the chain from the peers in the background.
func (n *Node) startDownload() {
	n.downloads.Add(1)

	go func() {
		defer n.downloads.Done()
		n.client.DownloadChain(n.ctx, n.chain)
	}()
}

// waitForShutdown blocks until SIGINT or SIGTERM, then closes the node.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	n.cancel()

	if n.api != nil {
		n.api.Stop()
	}

	if n.miner != nil {
		n.miner.Stop()
	}

	n.downloads.Wait()

	if n.client != nil {
		n.client.Wait()
	}

	if n.dedup != nil {
		n.dedup.Close()
	}

	if n.storage != nil {
		return n.storage.Close()
	}

	return nil
}
