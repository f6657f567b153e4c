package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/edgedrop/internal/config"
	"github.com/danmuck/edgedrop/internal/ledger"
	"github.com/danmuck/edgedrop/internal/observability"
	"github.com/danmuck/edgedrop/internal/server"
	"github.com/danmuck/edgedrop/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "server config path (TOML)")
	addr := flag.String("addr", "", "listen address (default "+server.DefaultAddr+")")
	dir := flag.String("dir", "", "destination directory for received files")
	framing := flag.String("framing", "", "wire framing: framed|delimited")
	admin := flag.String("admin", "", "admin HTTP address; empty disables")
	flag.Parse()

	logger := observability.InitLogger("dropd")
	gin.SetMode(gin.ReleaseMode)

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.LoadServerConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load server config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded server config")
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "dir":
			cfg.StorageDir = *dir
		case "framing":
			cfg.Framing = *framing
		case "admin":
			cfg.AdminAddr = *admin
		}
	})
	if err := config.ValidateServerConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid server config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := storage.NewDir(cfg.StorageDir, storage.TimestampNamer{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare storage dir")
	}
	book, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		log.Fatal().Err(err).Str("kind", cfg.Ledger.Kind).Msg("failed to open ledger")
	}
	defer book.Close()

	opts, err := config.ServerOptions(cfg, &logger)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid server options")
	}
	srv, err := server.New(opts, sink, book)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}
	log.Info().Str("dir", sink.Root()).Str("ledger", cfg.Ledger.Kind).Msg("storage ready")
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
