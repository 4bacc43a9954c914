// Command beetle-bitswap is a minimal demo embedder: it wires a Bitswap
// instance to a libp2p host, logs every event the engine emits, and lets an
// operator issue want/find-providers commands from the command line. It
// exists to exercise the package, not as a production daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	gocid "github.com/ipfs/go-cid"

	beetle "github.com/RandyMcMillan/beetle"
	"github.com/RandyMcMillan/beetle/decision"
	"github.com/RandyMcMillan/beetle/internal/xlog"
)

var log = xlog.New("beetle-bitswap")

var (
	maxCachedPeersFlag = &cli.IntFlag{
		Name:  "max-cached-peers",
		Usage: "bound on the known-peer LRU",
		Value: decision.DefaultConfig().MaxCachedPeers,
	}
	maxLedgersFlag = &cli.IntFlag{
		Name:  "max-ledgers",
		Usage: "bound on the active-ledger LRU",
		Value: decision.DefaultConfig().MaxLedgers,
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "address to serve Prometheus /metrics on; empty disables it",
		Value: "",
	}
	wantFlag = &cli.StringSliceFlag{
		Name:  "want",
		Usage: "CID to want at startup, may be repeated",
	}
)

func main() {
	app := &cli.App{
		Name:  "beetle-bitswap",
		Usage: "run a standalone bitswap decision engine against a libp2p network",
		Flags: []cli.Flag{maxCachedPeersFlag, maxLedgersFlag, metricsAddrFlag, wantFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Errorw("fatal", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := decision.DefaultConfig()
	cfg.MaxCachedPeers = c.Int(maxCachedPeersFlag.Name)
	cfg.MaxLedgers = c.Int(maxLedgersFlag.Name)

	reg := prometheus.NewRegistry()
	net, err := newLibp2pNetwork(c.Context, reg)
	if err != nil {
		return fmt.Errorf("starting libp2p host: %w", err)
	}
	defer net.Close()

	bs := beetle.New(cfg, net, reg)
	bs.SetEventHandler(logEvent)
	net.receiver = bs.Engine()

	if addr := c.String(metricsAddrFlag.Name); addr != "" {
		go serveMetrics(addr, reg)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	go bs.Run(ctx)
	defer bs.Close()

	for _, s := range c.StringSlice(wantFlag.Name) {
		id, err := gocid.Decode(s)
		if err != nil {
			log.Errorw("skipping malformed --want CID", "value", s, "err", err)
			continue
		}
		bs.Engine().FindProviders(id, 1)
	}

	log.Infow("beetle-bitswap running", "peer_id", net.host.ID(), "addrs", net.host.Addrs())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	return nil
}

func logEvent(ev decision.Event) {
	switch ev.Kind {
	case decision.EventOutboundQueryCompleted:
		o := ev.Outbound
		if o.Ok {
			log.Infow("query completed", "kind", o.Kind, "cid", o.Cid, "provider", o.Provider)
		} else {
			log.Infow("query failed", "kind", o.Kind, "cid", o.Cid, "err", o.Err)
		}
	case decision.EventInboundRequest:
		i := ev.Inbound
		log.Infow("inbound wantlist entry", "kind", i.Kind, "peer", i.Sender, "cid", i.Cid, "priority", i.Priority)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	log.Infow("serving metrics", "addr", addr)
	if err := beetle.ServeMetrics(addr, reg); err != nil {
		log.Errorw("metrics server stopped", "err", err)
	}
}
