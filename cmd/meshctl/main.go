// Command meshctl is the operator tool for a MeshChain node: inspect the
// chain, trigger mining, check out a version to the modeling tools and push
// snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/urfave/cli"

	"MeshChain/client"
)

type metadata struct {
	client *client.Client
}

var version = "zero"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "meshctl"
	app.Usage = "operate a MeshChain node"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "node, n",
			Value:  "localhost:8000",
			Usage:  " node HTTP address `HOST:PORT`",
			EnvVar: "MESHCTL_NODE",
		},
		cli.DurationFlag{
			Name:  "timeout, t",
			Value: 0,
			Usage: " request timeout `DURATION` (0 for none)",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "status",
			Usage:  "show the node summary",
			Action: runStatus,
		},
		{
			Name:   "mine",
			Usage:  "mine the pending pool into a block",
			Action: runMine,
		},
		{
			Name:  "blocks",
			Usage: "list blocks, newest first",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "limit, l",
					Value: 20,
					Usage: " show at most `COUNT` blocks (0 for all)",
				},
			},
			Action: runBlocks,
		},
		{
			Name:      "model",
			Usage:     "print the mesh a mined transaction reconstructs to",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "hash, x",
					Value: "",
					Usage: "*transaction `HASH`",
				},
				cli.BoolFlag{
					Name:  "mesh, m",
					Usage: " print the triangulated mesh with normals",
				},
				cli.StringFlag{
					Name:  "output, o",
					Value: "",
					Usage: " write JSON to `FILE` instead of stdout",
				},
			},
			Action: runModel,
		},
		{
			Name:      "apply",
			Usage:     "send a mined transaction's model to the modeling tools",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "hash, x",
					Value: "",
					Usage: "*transaction `HASH`",
				},
			},
			Action: runApply,
		},
		{
			Name:      "push",
			Usage:     "submit a model snapshot as a modeling tool",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*model JSON `FILE`",
				},
			},
			Action: runPush,
		},
	}

	app.Before = func(c *cli.Context) error {
		node := c.GlobalString("node")
		if node == "" {
			return fmt.Errorf("node address is required")
		}

		c.App.Metadata = map[string]interface{}{
			"config": &metadata{
				client: client.NewClient(node, c.GlobalDuration("timeout")),
			},
		}

		return nil
	}

	return app
}
