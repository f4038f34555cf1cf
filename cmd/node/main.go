package main

import (
	"fmt"
	"os"

	"MeshChain/internal/logger"
)

func main() {
	logger.Init()

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(node)

	return node.Run()
}

// printStartupInfo displays node configuration at startup.
func printStartupInfo(n *Node) {
	logger.Info("starting MeshChain node",
		"name", n.settings.Name,
		"http", n.settings.Me.Addr(),
		"peers", len(n.settings.Peers),
		"tools", len(n.settings.Tools),
		"data", n.cfg.DataPath,
		"height", n.chain.Height(),
	)
}
