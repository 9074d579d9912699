package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/gridflow/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// setFlags collects every occurrence of a repeatable flag.
type setFlags []string

func (s *setFlags) String() string { return strings.Join(*s, ", ") }

func (s *setFlags) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Values come from the defaults, then the -config YAML file, then any flag
// given explicitly on the command line.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gridflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
gridflow - evaluate a dataflow graph of numbers, tables and formulas.

Usage:
  gridflow [options] [GRID_PATH]

Arguments:
  GRID_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Examples:
  gridflow -g grids/sales.hcl -set region.operand=EU
  gridflow -config gridflow.yaml -save out.hcl

Options:
`)
		flagSet.PrintDefaults()
	}

	defaults := app.DefaultConfig()
	var sets setFlags

	configFlag := flagSet.String("config", "", "Path to a YAML configuration file.")
	gridFlag := flagSet.String("grid", "", "Path to the grid file or directory.")
	gFlag := flagSet.String("g", "", "Path to the grid file or directory (shorthand).")
	saveFlag := flagSet.String("save", "", "Write the evaluated grid to this .hcl file.")
	logFormatFlag := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	timeoutFlag := flagSet.Duration("node-timeout", 0, "Maximum time a single node may compute. 0 is unlimited.")
	metricsPortFlag := flagSet.Int("metrics-port", 0, "Port for the HTTP /metrics and /health server. 0 is disabled.")
	natsFlag := flagSet.String("nats-url", "", "Publish graph changes to this NATS server.")
	socketIOFlag := flagSet.String("socketio-url", "", "Publish graph changes to this Socket.IO server.")
	flagSet.Var(&sets, "set", "Override a source value, as label.slot=value. Repeatable.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := defaults
	if *configFlag != "" {
		if err := app.LoadConfigFile(*configFlag, &cfg); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		slog.Debug("Config file loaded.", "path", *configFlag)
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "save":
			cfg.SavePath = *saveFlag
		case "log-format":
			cfg.LogFormat = *logFormatFlag
		case "log-level":
			cfg.LogLevel = *logLevelFlag
		case "node-timeout":
			cfg.NodeTimeout = *timeoutFlag
		case "metrics-port":
			cfg.MetricsPort = *metricsPortFlag
		case "nats-url":
			cfg.NATSURL = *natsFlag
		case "socketio-url":
			cfg.SocketIOURL = *socketIOFlag
		case "set":
			cfg.Sets = append(cfg.Sets, sets...)
		}
	})

	switch {
	case *gridFlag != "":
		cfg.GridPath = *gridFlag
	case *gFlag != "":
		cfg.GridPath = *gFlag
	case flagSet.NArg() > 0:
		cfg.GridPath = flagSet.Arg(0)
	}
	slog.Debug("Grid path determined.", "path", cfg.GridPath)

	if cfg.GridPath == "" {
		slog.Debug("No grid path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
