package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"MeshChain/internal/config"
	"MeshChain/internal/storage"
)

// newTestNode builds a node with on-disk storage whose only peer is url.
func newTestNode(t *testing.T, url string) (*Node, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "node-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	host, port, err := net.SplitHostPort(url[len("http://"):])
	if err != nil {
		t.Fatalf("split %s: %v", url, err)
	}
	p, _ := strconv.Atoi(port)

	settings := config.Settings{
		Name:  "node-test",
		Me:    config.Node{Host: "127.0.0.1", Port: 1},
		Peers: []config.Node{{Host: host, Port: p}},
	}
	data, _ := json.Marshal(settings)

	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	n, err := NewNode(&Config{
		SettingsPath: path,
		DataPath:     filepath.Join(dir, "data"),
		Download:     true,
		HTTPTimeout:  time.Minute,
	})
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("NewNode failed: %v", err)
	}

	return n, func() { os.RemoveAll(dir) }
}

func TestCloseWaitsForDownload(t *testing.T) {
	started := make(chan struct{})
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer peer.Close()

	n, cleanup := newTestNode(t, peer.URL)
	defer cleanup()

	n.startDownload()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("download never reached the peer")
	}

	closed := make(chan error, 1)
	go func() { closed <- n.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	// Close returned, so the download goroutine has finished.
	done := make(chan struct{})
	go func() {
		n.downloads.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("download still running after Close")
	}

	if err := n.storage.Set([]byte("k"), []byte("v")); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("storage Set after Close returned %v, want ErrClosed", err)
	}
}
