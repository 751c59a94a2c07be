package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/dnsmesh/internal/dnsrec"
	"github.com/danmuck/dnsmesh/internal/ledger"
	"github.com/danmuck/dnsmesh/internal/logging"
	"github.com/danmuck/dnsmesh/internal/mesh"
	"github.com/danmuck/dnsmesh/internal/statusweb"
)

var (
	configPath = flag.String("config", "config.toml", "Path to the dnsmesh TOML configuration.")
	runOnce    = flag.Bool("once", false, "Run a single reconciliation pass and exit.")
)

func main() {
	flag.Parse()
	logging.ConfigureRuntime()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadServiceConfig(*configPath)
	if err != nil {
		return err
	}

	l, err := ledger.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	peers := make([]mesh.Peer, 0, len(cfg.Controllers))
	for _, target := range cfg.Controllers {
		peer, err := mesh.NewUnifiPeer(target)
		if err != nil {
			return fmt.Errorf("controller %s: %w", target.Host, err)
		}
		peers = append(peers, peer)
	}

	engine := mesh.NewEngine(l, peers, dnsrec.NewKindSet(cfg.AllowedKinds))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WebListenAddr != "" {
		web, err := statusweb.NewServer(l, cfg.WebListenAddr)
		if err != nil {
			return err
		}
		go func() {
			if err := web.Run(ctx); err != nil {
				log.Error().Msgf("statusweb stopped: %v", err)
			}
		}()
	}

	log.Info().Msgf("dnsmeshctl starting controllers=%d interval=%s db=%q", len(peers), cfg.Interval, cfg.DBPath)
	if *runOnce {
		return engine.RunPass(ctx)
	}
	return mesh.NewRunner(engine, cfg.Interval).Run(ctx)
}
