// Command pa-ctl is a thin admin CLI companion to paanalyzerd: it talks to
// the daemon's admin HTTP surface (GET /api/graph, /api/computing/state,
// /api/thermal/current, /api/action/drivers, POST /api/config) so an
// operator can inspect or reconfigure a running daemon without curl.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
)

// CLI is the top-level command set, flat Host flag shared by every
// subcommand plus one subcommand per admin endpoint.
type CLI struct {
	Host    string        `short:"H" default:"http://localhost:8080" help:"Base URL of the daemon's admin HTTP server."`
	Timeout time.Duration `default:"5s" help:"Request timeout."`

	Graph   graphCmd   `cmd:"" help:"Show the processing graph's topology and per-node stats."`
	State   stateCmd   `cmd:"" help:"Show the shared computing state (peaks and concentrations)."`
	Thermal thermalCmd `cmd:"" help:"Show current thermal regulator samples."`
	Drivers driversCmd `cmd:"" help:"Show action driver health."`
	Reload  reloadCmd  `cmd:"" help:"Push a new config.yaml to the daemon as a hot-reload."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("pa-ctl"),
		kong.Description("Admin CLI for the photoacoustic gas analyzer daemon."),
		kong.UsageOnError(),
	)
	client := &http.Client{Timeout: cli.Timeout}
	kctx.FatalIfErrorf(kctx.Run(client, &cli))
}

type graphCmd struct{}

func (c *graphCmd) Run(client *http.Client, cli *CLI) error {
	return getAndPrint(client, cli.Host+"/api/graph")
}

type stateCmd struct{}

func (c *stateCmd) Run(client *http.Client, cli *CLI) error {
	return getAndPrint(client, cli.Host+"/api/computing/state")
}

type thermalCmd struct{}

func (c *thermalCmd) Run(client *http.Client, cli *CLI) error {
	return getAndPrint(client, cli.Host+"/api/thermal/current")
}

type driversCmd struct{}

func (c *driversCmd) Run(client *http.Client, cli *CLI) error {
	return getAndPrint(client, cli.Host+"/api/action/drivers")
}

type reloadCmd struct {
	ConfigJSON string `arg:"" type:"existingfile" help:"Path to a JSON document matching config.yaml's shape."`
}

func (c *reloadCmd) Run(client *http.Client, cli *CLI) error {
	f, err := os.Open(c.ConfigJSON)
	if err != nil {
		return err
	}
	defer f.Close()

	resp, err := client.Post(cli.Host+"/api/config", "application/json", f)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func getAndPrint(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

// printResponse pretty-prints a JSON response body, or returns an error
// wrapping a non-2xx status and its body so kong.FatalIfErrorf reports it.
func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}
	if json.Valid(body) {
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			if out, err := json.MarshalIndent(v, "", "  "); err == nil {
				fmt.Fprintln(os.Stdout, string(out))
				return nil
			}
		}
	}
	fmt.Fprintln(os.Stdout, string(body))
	return nil
}
