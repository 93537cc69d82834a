package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	log "github.com/sirupsen/logrus"
	"github.com/termtunnel/termtunnel/tunnel"
	"github.com/termtunnel/termtunnel/tunnel/config"
	"github.com/termtunnel/termtunnel/tunnel/console"
)

func main() {
	Main()
}

const version = "local-build"

const usage = `termtunnel %s

Usage:
  termtunnel host <address> <username> [<password>] [options]
  termtunnel connect <address> <username> [<password>] [options]
  termtunnel run --config=<file> [options]
  termtunnel -h | --help
  termtunnel --version

Options:
  -v --verbose       Enable Debug Logging.
  -t --trace         Enable Trace Logging (dump every sent message).
  --nojson           Disable JSON output (default).
  --logfile=<file>   Write log output to <file> instead of stderr.
  --config=<file>    Read settings from a YAML file. Command line values win.
  --salt=<salt>      Salt for the password digest, has to match the peer.
  -h --help          Show this screen.

The commands work as following:
   termtunnel host <address> <username>       Listens on <address> and chats with the first peer that knows the password.
   termtunnel connect <address> <username>    Connects to a host listening on <address>.
   termtunnel run --config=<file>             Takes role, address, username and password from <file>.

   The password is asked for if it is neither given as argument nor in the config file.
   Type "exit" and press enter, or press Ctrl-C, to leave a session.
`

// Main Exports main for testing
func Main() {
	arguments, err := docopt.ParseArgs(fmt.Sprintf(usage, version), os.Args[1:], version)
	if err != nil {
		log.Fatal(err)
	}

	values, err := valuesFromArguments(arguments)
	exitIfError("invalid configuration", err)
	setupLogging(arguments, values.LogFile)
	log.Debug(arguments)

	if values.Password == "" {
		values.Password, err = console.ReadPassword("Password: ")
		exitIfError("failed to read password", err)
	}
	cfg, err := values.Validate()
	exitIfError("invalid configuration", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = newTunnelRunner(cfg).Start(ctx, cfg)
	switch {
	case err == nil:
	case errors.Is(err, tunnel.ErrAuthFailed):
		log.Error("Incorrect password")
		os.Exit(1)
	case errors.Is(err, context.Canceled):
		log.Info("stopped")
	default:
		exitIfError("session failed", err)
	}
}

// valuesFromArguments merges the config file, if any, with the command line.
func valuesFromArguments(arguments docopt.Opts) (config.Values, error) {
	var file config.Values
	if path, _ := arguments.String("--config"); path != "" {
		var err error
		file, err = config.Load(path)
		if err != nil {
			return config.Values{}, err
		}
	}

	var cli config.Values
	if b, _ := arguments.Bool("host"); b {
		cli.Role = "host"
	}
	if b, _ := arguments.Bool("connect"); b {
		cli.Role = "connect"
	}
	cli.Address, _ = arguments.String("<address>")
	cli.Username, _ = arguments.String("<username>")
	cli.Password, _ = arguments.String("<password>")
	cli.Salt, _ = arguments.String("--salt")
	cli.LogFile, _ = arguments.String("--logfile")
	return file.Merge(cli), nil
}

func setupLogging(arguments docopt.Opts, logFile string) {
	disableJSON, _ := arguments.Bool("--nojson")
	if !disableJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		exitIfError("failed to open log file", err)
		log.SetOutput(f)
	}

	traceLevelEnabled, _ := arguments.Bool("--trace")
	if traceLevelEnabled {
		log.Info("Set Trace mode")
		log.SetLevel(log.TraceLevel)
	} else {
		verboseLoggingEnabled, _ := arguments.Bool("--verbose")
		if verboseLoggingEnabled {
			log.Info("Set Debug mode")
			log.SetLevel(log.DebugLevel)
		}
	}
}

func exitIfError(msg string, err error) {
	if err != nil {
		log.WithFields(log.Fields{"err": err}).Fatal(msg)
	}
}
