package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyswarm/go-polyswarmd/buildinfo"
	"github.com/polyswarm/go-polyswarmd/internal/chains"
	"github.com/polyswarm/go-polyswarmd/internal/router"
	"github.com/polyswarm/go-polyswarmd/pkg/artifacts"
	"github.com/polyswarm/go-polyswarmd/pkg/auth"
	"github.com/polyswarm/go-polyswarmd/pkg/contracts"
	"github.com/polyswarm/go-polyswarmd/pkg/logging"
	"github.com/polyswarm/go-polyswarmd/pkg/messages"
	"github.com/polyswarm/go-polyswarmd/pkg/metadata"
	"github.com/polyswarm/go-polyswarmd/pkg/metrics"
)

const (
	// exitBadLogLevel distinguishes a bad LOG_LEVEL/LOG_FORMAT from other
	// startup failures.
	exitBadLogLevel = 10

	shutdownTimeout = time.Second * 10
)

func main() {
	conf := setupConfig()
	if err := logging.SetupLogger(buildinfo.GitCommit, conf.Log.Level, conf.Log.Format); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadLogLevel)
	}

	if err := metrics.SetupInstrumentation(":"+conf.Metrics.Port, "polyswarmd"); err != nil {
		log.Fatal().Err(err).Str("port", conf.Metrics.Port).Msg("setting up instrumentation")
	}

	var artifact *artifacts.Client
	var resolver messages.MetadataResolver
	if conf.Artifact.URI != "" {
		client, err := artifacts.NewClient(conf.Artifact.URI, conf.Artifact.MaxSize)
		if err != nil {
			log.Fatal().Err(err).Msg("creating artifact client")
		}
		artifact = client
		resolver, err = metadata.NewResolver(client)
		if err != nil {
			log.Fatal().Err(err).Msg("creating metadata resolver")
		}
	}

	ctx := context.Background()
	set := &chains.Set{}
	home, err := chains.New(ctx, chainFromConfig(chains.HomeName, conf.Home), resolver)
	if err != nil {
		log.Fatal().Err(err).Msg("setting up home chain")
	}
	set.Home = home
	if conf.Side.Endpoint != "" {
		side, err := chains.New(ctx, chainFromConfig(chains.SideName, conf.Side), resolver)
		if err != nil {
			log.Fatal().Err(err).Msg("setting up side chain")
		}
		set.Side = side
	}

	var verifier auth.Verifier
	if conf.Auth.URI != "" {
		client, err := auth.NewClient(conf.Auth.URI, conf.Community)
		if err != nil {
			log.Fatal().Err(err).Msg("creating auth client")
		}
		verifier = client
	}

	rateInterval, err := time.ParseDuration(conf.RateLimit.Interval)
	if err != nil {
		log.Fatal().Err(err).Msg("parsing rate limit interval")
	}
	rtr, err := router.ConfiguredRouter(
		set,
		artifact,
		verifier,
		conf.Auth.Required,
		conf.Community,
		conf.RateLimit.MaxRPI,
		rateInterval,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("configuring router")
	}

	server := &http.Server{
		Addr:    ":" + conf.HTTP.Port,
		Handler: rtr.Handler(),
	}
	go func() {
		log.Info().Str("port", conf.HTTP.Port).Msg("serving")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("serving http")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	sctx, cls := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cls()
	if err := server.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("draining http server")
	}
	set.Close()
	log.Info().Msg("bye")
}

func chainFromConfig(name string, cfg chainConfig) chains.Config {
	addrs := map[string]string{}
	put := func(contract, addr string) {
		if addr != "" {
			addrs[contract] = addr
		}
	}
	put(contracts.NectarToken, cfg.Contracts.NectarToken)
	put(contracts.BountyRegistry, cfg.Contracts.BountyRegistry)
	put(contracts.ArbiterStaking, cfg.Contracts.ArbiterStaking)
	put(contracts.ERC20Relay, cfg.Contracts.ERC20Relay)
	put(contracts.OfferRegistry, cfg.Contracts.OfferRegistry)

	return chains.Config{
		Name:      name,
		ChainID:   cfg.ChainID,
		Endpoint:  cfg.Endpoint,
		Free:      cfg.Free,
		Trace:     cfg.Trace,
		Contracts: addrs,
	}
}
