// Package config loads the node directory: who this node is, which peers
// it gossips with and which modeling tools it feeds.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

// Node is a network endpoint of a peer or tool.
type Node struct {
	Host string `json:"host"` // Host is a hostname or IP
	Port int    `json:"port"` // Port is the HTTP port
}

// Addr returns host:port.
func (n Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// URL returns the base URL for requests to n.
func (n Node) URL() string {
	return "http://" + n.Addr()
}

// Settings is the node directory read at startup.
type Settings struct {
	Name  string `json:"name"`  // Name is written as the author of snapshot transactions
	Me    Node   `json:"me"`    // Me is the endpoint this node listens on
	Peers []Node `json:"peers"` // Peers receive transactions and blocks
	Tools []Node `json:"tools"` // Tools receive checked-out models
}

var (
	ErrNoName  = errors.New("settings: name is required")
	ErrBadPort = errors.New("settings: port out of range")
)

// Load reads and validates settings from a JSON file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s:\n%w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates settings JSON.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode settings:\n%w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks that the name is set and every endpoint is usable.
func (s *Settings) Validate() error {
	if s.Name == "" {
		return ErrNoName
	}

	if err := validateNode("me", s.Me); err != nil {
		return err
	}

	for i, p := range s.Peers {
		if err := validateNode(fmt.Sprintf("peers[%d]", i), p); err != nil {
			return err
		}
	}

	for i, t := range s.Tools {
		if err := validateNode(fmt.Sprintf("tools[%d]", i), t); err != nil {
			return err
		}
	}

	return nil
}

func validateNode(field string, n Node) error {
	if n.Port <= 0 || n.Port > 65535 {
		return fmt.Errorf("%s port %d:\n%w", field, n.Port, ErrBadPort)
	}

	return nil
}
