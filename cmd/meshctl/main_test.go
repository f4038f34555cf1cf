package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"MeshChain/internal/api"
	"MeshChain/internal/ledger"
	"MeshChain/internal/mesh"
)

// syncMiner mines on the request goroutine.
type syncMiner struct {
	chain *ledger.Chain
}

func (m syncMiner) Request() bool {
	m.chain.MineBlock()
	return true
}

func newTestNode(t *testing.T) (string, *ledger.Chain, func()) {
	t.Helper()

	chain, err := ledger.NewChain(ledger.WithClock(func() int64 { return 99 }))
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	srv := httptest.NewServer(api.New(":0", "ctl", chain, nil, api.WithMiner(syncMiner{chain})).Handler())

	return srv.URL, chain, srv.Close
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(append([]string{"meshctl"}, args...))

	return out.String(), err
}

func TestPushMineAndModel(t *testing.T) {
	url, chain, cleanup := newTestNode(t)
	defer cleanup()

	model := mesh.NewModel([]mesh.Face{{{X: 0}, {X: 1}, {Y: 1}}})
	data, _ := json.Marshal(model)

	dir := t.TempDir()
	in := filepath.Join(dir, "model.json")
	if err := os.WriteFile(in, data, 0644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	if _, err := runCLI(t, "-n", url, "push", "-f", in); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	if _, err := runCLI(t, "-n", url, "mine"); err != nil {
		t.Fatalf("mine failed: %v", err)
	}

	if chain.Height() != 2 {
		t.Fatalf("height = %d, want 2", chain.Height())
	}

	txHash := chain.LastTransaction().Hash()

	out, err := runCLI(t, "-n", url, "model", "-x", txHash)
	if err != nil {
		t.Fatalf("model failed: %v", err)
	}

	var got mesh.Model
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("model output is not JSON: %v", err)
	}
	if got.Hash() != model.Hash() {
		t.Error("model output differs from the pushed model")
	}

	outFile := filepath.Join(dir, "mesh.json")
	if _, err := runCLI(t, "-n", url, "model", "-x", txHash, "--mesh", "-o", outFile); err != nil {
		t.Fatalf("model --mesh failed: %v", err)
	}

	var tri mesh.Triangles
	raw, _ := os.ReadFile(outFile)
	if err := json.Unmarshal(raw, &tri); err != nil || len(tri.Indices) != 1 {
		t.Errorf("mesh file: %d triangles, %v", len(tri.Indices), err)
	}
}

func TestStatusAndBlocks(t *testing.T) {
	url, _, cleanup := newTestNode(t)
	defer cleanup()

	if _, err := runCLI(t, "-n", url, "status"); err != nil {
		t.Errorf("status failed: %v", err)
	}

	if _, err := runCLI(t, "-n", url, "blocks", "-l", "1"); err != nil {
		t.Errorf("blocks failed: %v", err)
	}
}

func TestRequiredFlags(t *testing.T) {
	url, _, cleanup := newTestNode(t)
	defer cleanup()

	for _, cmd := range []string{"model", "apply", "push"} {
		if _, err := runCLI(t, "-n", url, cmd); err == nil {
			t.Errorf("%s without flags should fail", cmd)
		}
	}
}
