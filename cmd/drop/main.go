package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/danmuck/edgedrop/internal/client"
	"github.com/danmuck/edgedrop/internal/config"
	"github.com/danmuck/edgedrop/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "client config path (TOML)")
	host := flag.String("host", "", "receiver host")
	port := flag.Int("port", 0, "receiver port")
	file := flag.String("file", "", "file to send (required)")
	framing := flag.String("framing", "", "wire framing: framed|delimited")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "drop: --file is required")
		flag.Usage()
		os.Exit(2)
	}

	logger := observability.InitLogger("drop")

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := config.LoadClientConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load client config")
		}
		cfg = loaded
	}
	if *host != "" || *port != 0 {
		h, p, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("invalid configured addr")
		}
		if *host != "" {
			h = *host
		}
		if *port != 0 {
			p = strconv.Itoa(*port)
		}
		cfg.Addr = net.JoinHostPort(h, p)
	}
	if *framing != "" {
		cfg.Framing = *framing
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid client config")
	}
	opts, err := config.ClientOptions(cfg, &logger)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid client options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := client.SendFile(ctx, opts, *file)
	if err != nil {
		log.Error().Err(err).Str("file", *file).Msg("transfer not started")
		os.Exit(1)
	}
	if !res.Success() {
		log.Error().Err(res.Err).Str("reason", res.Reason).Msg("transfer failed")
		os.Exit(1)
	}
	log.Info().Str("stored", res.StoredName).Uint64("bytes", res.Bytes).Msg("file sent")
}
