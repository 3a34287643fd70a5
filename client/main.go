package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"go_uftp/client/comms"
	"go_uftp/config"
	"go_uftp/constants"
	"go_uftp/logging"
	"go_uftp/networking"

	"github.com/akamensky/argparse"
)

func main() {
	args := argparse.NewParser("client", constants.Title)

	bind := args.String("a", "address", &argparse.Options{Required: true, Help: "Target host address"})
	cfgPath := args.String("c", "config", &argparse.Options{Required: false, Help: "TOML configuration file"})
	dscp := args.Int("d", "dscp", &argparse.Options{Required: false, Help: "DSCP field for QoS (default 10)",
		Default: -1})
	port := args.Int("p", "port", &argparse.Options{Required: false, Help: "Target port",
		Default: constants.DEFAULT_PORT})
	dir := args.String("r", "root", &argparse.Options{Required: false, Help: "Local folder for get and put (default .)"})
	level := args.String("v", "verbosity", &argparse.Options{Required: false, Help: "Log level (debug, info, warn, error)"})
	compress := args.Flag("z", "compress", &argparse.Options{Help: "Compress file data with LZ4 where it helps"})

	err := args.Parse(os.Args)

	if err != nil {
		fmt.Print(args.Usage(err))
		os.Exit(1)
	}

	settings, err := resolveSettings(*cfgPath, *dscp, *dir, *level, *compress)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	logging.Configure("client", settings.LogLevel)

	addr := net.JoinHostPort(*bind, strconv.Itoa(*port))

	link, err := networking.DialUDP(addr, settings.DSCP)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	client := comms.New(link, settings.Transport, settings.Root)
	defer client.Close()

	fmt.Println("Talking to", addr)

	input := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Please enter msg: ")
		if !input.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(input.Text())
		if line == "" {
			continue
		}

		cmd := networking.ParseCommand(line)
		out, err := client.Execute(cmd)
		fmt.Println(comms.Describe(cmd, out, err))

		if errors.Is(err, networking.ErrExit) {
			// Server ended the session.
			client.Close()
			os.Exit(0)
		}
	}
}

// resolveSettings layers the config file over client defaults, then the flags
// the user passed. dscp < 0 and empty strings mean the flag was not given.
func resolveSettings(cfgPath string, dscp int, dir, level string, compress bool) (config.Settings, error) {
	settings := config.Default()
	settings.DSCP = constants.DEFAULT_DSCP
	settings.LogLevel = "warn"
	if cfgPath != "" {
		var err error
		if settings, err = config.Overlay(settings, cfgPath); err != nil {
			return config.Settings{}, err
		}
	}
	if dscp >= 0 {
		settings.DSCP = dscp
	}
	if dir != "" {
		settings.Root = dir
	}
	if level != "" {
		settings.LogLevel = level
	}
	if compress {
		settings.Transport.Compress = true
	}
	return settings, config.Validate(settings)
}
