// Command agent runs the device agent (C12): watches a source directory
// and syncs changed pages to the server.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/gottino/rmirror-cloud/agent"
	"github.com/gottino/rmirror-cloud/cmn/config"
	"github.com/gottino/rmirror-cloud/cmn/nlog"
)

func main() {
	app := cli.NewApp()
	app.Name = "rmirror-agent"
	app.Usage = "watch a local reMarkable-style source directory and sync pages to the cloud service"

	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Value: defaultConfigPath(), Usage: "path to agent config YAML"},
		cli.StringFlag{Name: "state-dir", Value: defaultStateDir(), Usage: "directory for the dedup cache and token"},
	}

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "start watching and syncing",
			Action: func(c *cli.Context) error {
				return runAgent(c.GlobalString("config"), c.GlobalString("state-dir"))
			},
		},
		{
			Name:  "status",
			Usage: "print the local agent's current status",
			Action: func(c *cli.Context) error {
				return printStatus(c.GlobalString("state-dir"))
			},
		},
		{
			Name:  "login",
			Usage: "store a bearer token obtained from the OAuth flow",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "token", Required: true},
			},
			Action: func(c *cli.Context) error {
				return saveToken(c.GlobalString("state-dir"), c.String("token"))
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("rmirror-agent: %v", err)
		os.Exit(1)
	}
}

func runAgent(configPath, stateDir string) error {
	cfg, err := config.LoadAgentConfig(configPath)
	if err != nil {
		return fmt.Errorf("load agent config: %w", err)
	}
	nlog.Init(nlog.Config{Pretty: true, Level: "info"})

	a, err := agent.New(cfg, stateDir)
	if err != nil {
		return err
	}
	defer a.Stop()

	go func() {
		nlog.Infoln("agent: status endpoint on :7777")
		http.ListenAndServe("127.0.0.1:7777", a.StatusHandler())
	}()

	color.Green("rmirror-agent: watching %s", cfg.SourceDirectory)
	return a.Run()
}

func printStatus(stateDir string) error {
	resp, err := http.Get("http://127.0.0.1:7777")
	if err != nil {
		return fmt.Errorf("agent not running: %w", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return fmt.Errorf("read agent status: %w", err)
	}
	return nil
}

func saveToken(stateDir, token string) error {
	th := agent.NewTokenHolder(stateDir)
	if err := th.Set(token); err != nil {
		return err
	}
	color.Green("rmirror-agent: token saved")
	return nil
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "rmirror-agent", "config.yaml")
}

func defaultStateDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "rmirror-agent")
}
