package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli"

	"MeshChain/internal/hash"
	"MeshChain/internal/mesh"
)

func clientOf(c *cli.Context) *metadata {
	return c.App.Metadata["config"].(*metadata)
}

func runStatus(c *cli.Context) error {
	m := clientOf(c)

	s, err := m.client.Status()
	if err != nil {
		return err
	}

	body := pterm.Sprintfln("name:         %s", s.Name) +
		pterm.Sprintfln("height:       %d", s.Height) +
		pterm.Sprintfln("head:         %s", s.Head) +
		pterm.Sprintfln("pool:         %d", s.Pool) +
		pterm.Sprintf("last tx:      %s", s.LastTransaction)

	pterm.DefaultBox.WithTitle("node").WithHorizontalPadding(2).Println(body)

	return nil
}

func runMine(c *cli.Context) error {
	m := clientOf(c)

	queued, err := m.client.Mine()
	if err != nil {
		return err
	}

	if queued {
		pterm.Success.Println("mining run queued")
	} else {
		pterm.Info.Println("a mining run is already queued")
	}

	return nil
}

func runBlocks(c *cli.Context) error {
	m := clientOf(c)

	blocks, err := m.client.Blocks()
	if err != nil {
		return err
	}

	if limit := c.Int("limit"); limit > 0 && len(blocks) > limit {
		blocks = blocks[:limit]
	}

	data := pterm.TableData{{"hash", "previous", "time", "nonce", "txs"}}
	for _, b := range blocks {
		data = append(data, []string{
			hash.Short(b.Hash),
			hash.Short(b.PreviousHash),
			time.UnixMilli(b.Timestamp).Format("2006-01-02 15:04:05"),
			strconv.FormatInt(b.Nonce, 10),
			strconv.Itoa(len(b.Transactions)),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runModel(c *cli.Context) error {
	m := clientOf(c)

	txHash := c.String("hash")
	if txHash == "" {
		return fmt.Errorf("transaction hash is required")
	}

	var (
		out any
		err error
	)

	if c.Bool("mesh") {
		out, err = m.client.Mesh(txHash)
	} else {
		out, err = m.client.Model(txHash)
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output:\n%w", err)
	}

	path := c.String("output")
	if path == "" {
		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s:\n%w", path, err)
	}

	pterm.Success.Printfln("wrote %s", path)

	return nil
}

func runApply(c *cli.Context) error {
	m := clientOf(c)

	txHash := c.String("hash")
	if txHash == "" {
		return fmt.Errorf("transaction hash is required")
	}

	applied, err := m.client.Apply(txHash)
	if err != nil {
		return err
	}

	pterm.Success.Printfln("sent %d faces of %s to the tools", applied.Faces, hash.Short(applied.Hash))

	return nil
}

func runPush(c *cli.Context) error {
	m := clientOf(c)

	path := c.String("file")
	if path == "" {
		return fmt.Errorf("model file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s:\n%w", path, err)
	}

	var model mesh.Model
	if err := json.Unmarshal(data, &model); err != nil {
		return fmt.Errorf("decode %s:\n%w", path, err)
	}

	if err := m.client.PushModel(model); err != nil {
		return err
	}

	pterm.Success.Printfln("pushed %d faces (%s)", model.Len(), hash.Short(model.Hash()))

	return nil
}
