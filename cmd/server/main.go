package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/sectra2qupath/internal/config"
	"github.com/woozymasta/sectra2qupath/internal/logger"
	"github.com/woozymasta/sectra2qupath/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"   env:"CONFIG_FILE"    description:"Path to configuration file"`
	Addr       string `short:"a" long:"addr"     env:"LISTEN_ADDRESS" description:"Address to listen on" default:"0.0.0.0"`
	Port       int    `short:"p" long:"port"     env:"LISTEN_PORT"    description:"Port to listen on"    default:"8080"`
	MaxBody    int64  `long:"max-body"           env:"MAX_BODY"       description:"Largest accepted GeoJSON upload in bytes" default:"67108864"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	srvCtx, err := server.NewServerContext(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	if opts.MaxBody > 0 {
		srvCtx.MaxBody = opts.MaxBody
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("addr", listenAddr).
		Str("scheme", string(srvCtx.Scheme)).
		Msg("Web server started")

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
