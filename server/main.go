package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go_uftp/config"
	"go_uftp/constants"
	"go_uftp/fileio"
	"go_uftp/logging"
	"go_uftp/metrics"
	server "go_uftp/server/controller"

	"github.com/akamensky/argparse"
	"github.com/rs/zerolog/log"
)

func main() {
	args := argparse.NewParser("server", constants.Title)

	cfgPath := args.String("c", "config", &argparse.Options{Required: false, Help: "TOML configuration file"})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS on replies",
		Default: -1})
	idle := args.Int("i", "idle", &argparse.Options{Required: false, Help: "Seconds before a quiet peer is forgotten"})
	bind := args.String("l", "listen", &argparse.Options{Required: false, Help: "Listen on address"})
	metricsAddr := args.String("m", "metrics", &argparse.Options{Required: false, Help: "Serve Prometheus metrics on address"})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Listening port"})
	path := args.String("r", "root", &argparse.Options{Required: false, Help: "Root path for served files"})
	level := args.String("v", "verbosity", &argparse.Options{Required: false, Help: "Log level (debug, info, warn, error)"})
	compress := args.Flag("z", "compress", &argparse.Options{Help: "Compress file data with LZ4 where it helps"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	settings := config.Default()
	if *cfgPath != "" {
		if settings, err = config.Load(*cfgPath); err != nil {
			fmt.Println(err.Error())
			os.Exit(1)
		}
	}

	// Flags win over the configuration file.
	if *bind != "" || *port != 0 {
		host, p, _ := net.SplitHostPort(settings.Listen)
		if *bind != "" {
			host = *bind
		}
		if *port != 0 {
			p = strconv.Itoa(*port)
		}
		settings.Listen = net.JoinHostPort(host, p)
	}
	if *path != "" {
		settings.Root = *path
	}
	if *metricsAddr != "" {
		settings.MetricsAddr = *metricsAddr
	}
	if *level != "" {
		settings.LogLevel = *level
	}
	if *dscp >= 0 {
		settings.DSCP = *dscp
	}
	if *idle != 0 {
		settings.IdleTimeout = time.Duration(*idle) * time.Second
	}
	if *compress {
		settings.Transport.Compress = true
	}
	if err := config.Validate(settings); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	logging.Configure("server", settings.LogLevel)

	store, err := fileio.NewDiskStore(settings.Root)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot serve root")
	}

	if settings.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Info().Str("addr", settings.MetricsAddr).Msg("metrics listening")
			if err := http.ListenAndServe(settings.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(store, server.Settings{
		Transport:   settings.Transport,
		IdleTimeout: settings.IdleTimeout,
		MaxPeers:    settings.MaxPeers,
		DSCP:        settings.DSCP,
	})
	log.Info().Str("root", store.Root()).Msg("serving files")

	if err := srv.ListenAndServe(ctx, settings.Listen); err != nil {
		log.Fatal().Err(err).Str("addr", settings.Listen).Msg("could not bind listening socket")
	}
	log.Info().Msg("server stopped")
}
