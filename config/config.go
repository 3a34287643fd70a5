package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go_uftp/constants"
	"go_uftp/networking"

	"github.com/BurntSushi/toml"
)

// Settings is the full runtime configuration of a client or server
type Settings struct {
	Transport   networking.Options
	Listen      string
	Root        string
	MetricsAddr string
	LogLevel    string
	DSCP        int
	IdleTimeout time.Duration
	MaxPeers    int
}

type fileConfig struct {
	AckTimeout        string `toml:"ack_timeout"`
	MaxRetries        int    `toml:"max_retries"`
	FirstReplyTimeout string `toml:"first_reply_timeout"`
	StreamTimeout     string `toml:"stream_timeout"`
	Compress          bool   `toml:"compress"`
	Listen            string `toml:"listen"`
	Root              string `toml:"root"`
	MetricsAddr       string `toml:"metrics_addr"`
	LogLevel          string `toml:"log_level"`
	DSCP              int    `toml:"dscp"`
	IdleTimeout       string `toml:"idle_timeout"`
	MaxPeers          int    `toml:"max_peers"`
}

// Default returns the built-in configuration
func Default() Settings {
	return Settings{
		Transport:   networking.DefaultOptions(),
		Listen:      "0.0.0.0:" + strconv.Itoa(constants.DEFAULT_PORT),
		Root:        ".",
		LogLevel:    "info",
		IdleTimeout: constants.DEFAULT_IDLE_TIMEOUT_S * time.Second,
		MaxPeers:    constants.DEFAULT_MAX_PEERS,
	}
}

// Load reads a TOML file on top of Default. Keys absent from the file keep their default.
func Load(path string) (Settings, error) {
	return Overlay(Default(), path)
}

// Overlay reads a TOML file on top of base. Keys absent from the file keep the base value.
func Overlay(base Settings, path string) (Settings, error) {
	cfg := base

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"ack_timeout", raw.AckTimeout, &cfg.Transport.AckTimeout},
		{"first_reply_timeout", raw.FirstReplyTimeout, &cfg.Transport.FirstReplyTimeout},
		{"stream_timeout", raw.StreamTimeout, &cfg.Transport.StreamTimeout},
		{"idle_timeout", raw.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_retries") {
		cfg.Transport.MaxRetries = raw.MaxRetries
	}
	if meta.IsDefined("compress") {
		cfg.Transport.Compress = raw.Compress
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("root") {
		cfg.Root = strings.TrimSpace(raw.Root)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("dscp") {
		cfg.DSCP = raw.DSCP
	}
	if meta.IsDefined("max_peers") {
		cfg.MaxPeers = raw.MaxPeers
	}

	if err := Validate(cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// Validate rejects settings the transport cannot run with
func Validate(cfg Settings) error {
	t := cfg.Transport
	if t.AckTimeout <= 0 {
		return fmt.Errorf("ack_timeout must be positive")
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if t.FirstReplyTimeout <= 0 {
		return fmt.Errorf("first_reply_timeout must be positive")
	}
	if t.StreamTimeout <= 0 {
		return fmt.Errorf("stream_timeout must be positive")
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if cfg.DSCP < 0 || cfg.DSCP > 63 {
		return fmt.Errorf("dscp %d outside 0-63", cfg.DSCP)
	}
	if cfg.MaxPeers < 1 {
		return fmt.Errorf("max_peers must be at least 1")
	}
	return nil
}
