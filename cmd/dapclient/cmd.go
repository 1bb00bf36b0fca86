package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/nanashili/dap-client/internal/hostdelegate"
	"github.com/nanashili/dap-client/internal/jsonvalue"
	"github.com/nanashili/dap-client/internal/launcher"
	"github.com/nanashili/dap-client/internal/manifest"
	"github.com/nanashili/dap-client/internal/persistence"
	"github.com/nanashili/dap-client/internal/session"
)

var (
	// Set with `-ldflags="-X 'main.version=<version>'"`
	version = "dev"
)

func printVersion(o io.Writer) {
	fmt.Fprintf(o, "dapclient version %s\n", version)
}

func usage(o io.Writer) {
	printVersion(o)
	fmt.Fprintln(o)
	fmt.Fprintln(o, "dapclient {<option>} <adapter-identifier>")
	fmt.Fprintln(o)
	fmt.Fprintln(o, "Available options:")
	fmt.Fprintln(o, "  -h / --help                This message")
	fmt.Fprintln(o, "  -m / --manifest-dir <dir>  Directory of adapter manifest JSON files (default .)")
	fmt.Fprintln(o, "  -c / --config <file>       Launch/attach configuration JSON (default stdin)")
	fmt.Fprintln(o, "  -p / --persist-dir <dir>   Directory to persist session snapshots to")
	fmt.Fprintln(o, "  -l / --log-level           Set the log level. Allowed values: debug,info,warn,error")
	fmt.Fprintln(o, "  --version                  Print version")
	fmt.Fprintln(o)
	fmt.Fprintln(o, "In all cases:")
	fmt.Fprintln(o, "  Multichar options are expanded e.g. -mp becomes -m -p.")
	fmt.Fprintln(o, "  The -- option suppresses option processing for subsequent arguments.")
}

type config struct {
	identifier  string
	manifestDir string
	configPath  string
	persistDir  string
	logLevel    slog.Level
}

type processArgsStatus int

const (
	processArgsStatusContinue = iota
	processArgsStatusSuccessUsage
	processArgsStatusFailureUsage
	processArgsStatusSuccess
	processArgsStatusFailure
)

// nextArg retrieves the next argument from the commandline.
func nextArg(i *int, args []string) string {
	(*i)++
	if (*i) >= len(args) {
		fmt.Fprintln(os.Stderr, "Expected another commandline argument.")
		os.Exit(1)
	}
	return args[*i]
}

// simplifyArgs transforms an array of commandline arguments so that
// any -abc arg before the first -- (if any) are expanded into
// -a -b -c.
func simplifyArgs(args []string) (r []string) {
	r = make([]string, 0, len(args)*2)
	for i, arg := range args {
		if arg == "--" {
			for j := i; j < len(args); j++ {
				r = append(r, args[j])
			}
			break
		}
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' {
			for j := 1; j < len(arg); j++ {
				r = append(r, "-"+string(arg[j]))
			}
		} else {
			r = append(r, arg)
		}
	}
	return
}

func processArgs(givenArgs []string, cfg *config) (processArgsStatus, error) {
	args := simplifyArgs(givenArgs)

	remainingArgs := make([]string, 0, len(args))
	i := 0

	for ; i < len(args); i++ {
		arg := args[i]
		if arg == "-h" || arg == "--help" {
			return processArgsStatusSuccessUsage, nil
		} else if arg == "-v" || arg == "--version" {
			printVersion(os.Stdout)
			return processArgsStatusSuccess, nil
		} else if arg == "--" {
			i++
			for ; i < len(args); i++ {
				remainingArgs = append(remainingArgs, args[i])
			}
			break
		} else if arg == "-m" || arg == "--manifest-dir" {
			dir := nextArg(&i, args)
			if len(dir) == 0 {
				return processArgsStatusFailure, fmt.Errorf("-m argument was empty string")
			}
			cfg.manifestDir = dir
		} else if arg == "-c" || arg == "--config" {
			path := nextArg(&i, args)
			if len(path) == 0 {
				return processArgsStatusFailure, fmt.Errorf("-c argument was empty string")
			}
			cfg.configPath = path
		} else if arg == "-p" || arg == "--persist-dir" {
			dir := nextArg(&i, args)
			if len(dir) == 0 {
				return processArgsStatusFailure, fmt.Errorf("-p argument was empty string")
			}
			cfg.persistDir = dir
		} else if arg == "-l" || arg == "--log-level" {
			level := nextArg(&i, args)
			slvl := slog.LevelError
			switch level {
			case "debug":
				slvl = slog.LevelDebug
			case "info":
				slvl = slog.LevelInfo
			case "warn":
				slvl = slog.LevelWarn
			case "error":
				slvl = slog.LevelError
			default:
				return processArgsStatusFailure, fmt.Errorf("invalid log level %s. Allowed: debug,info,warn,error", level)
			}
			cfg.logLevel = slvl
		} else if len(arg) > 1 && arg[0] == '-' {
			return processArgsStatusFailure, fmt.Errorf("unrecognized argument: %s", arg)
		} else {
			remainingArgs = append(remainingArgs, arg)
		}
	}

	if len(remainingArgs) == 0 {
		return processArgsStatusFailureUsage, fmt.Errorf("must give an adapter identifier")
	}
	if len(remainingArgs) != 1 {
		return processArgsStatusFailureUsage, fmt.Errorf("expected a single adapter identifier")
	}
	cfg.identifier = remainingArgs[0]
	return processArgsStatusContinue, nil
}

func main() {
	cfg := config{
		manifestDir: ".",
		configPath:  "-",
		logLevel:    slog.LevelError,
	}
	status, err := processArgs(os.Args[1:], &cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: "+err.Error())
	}
	switch status {
	case processArgsStatusContinue:
		break
	case processArgsStatusSuccessUsage:
		usage(os.Stdout)
		os.Exit(0)
	case processArgsStatusFailureUsage:
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
		}
		usage(os.Stderr)
		os.Exit(1)
	case processArgsStatusSuccess:
		os.Exit(0)
	case processArgsStatusFailure:
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("dapclient terminated", "err", err)
		os.Exit(1)
	}
}

// readLaunchConfiguration reads the launch/attach configuration JSON
// from path, or from stdin if path is "-".
func readLaunchConfiguration(path string) (jsonvalue.Value, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return jsonvalue.Null(), fmt.Errorf("reading launch configuration: %w", err)
	}
	cfg, err := jsonvalue.Decode(raw)
	if err != nil {
		return jsonvalue.Null(), fmt.Errorf("parsing launch configuration: %w", err)
	}
	return cfg, nil
}

func run(cfg config, logger *slog.Logger) error {
	desc, err := manifest.Load(cfg.manifestDir, cfg.identifier)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	launchConfig, err := readLaunchConfiguration(cfg.configPath)
	if err != nil {
		return err
	}

	var store persistence.Store
	if cfg.persistDir != "" {
		fileStore, err := persistence.NewFileStore(cfg.persistDir)
		if err != nil {
			return fmt.Errorf("opening persistence directory: %w", err)
		}
		store = fileStore
	}

	proc, err := launcher.Launch(context.Background(), desc, logger)
	if err != nil {
		return fmt.Errorf("launching adapter %s: %w", desc.Identifier, err)
	}

	delegate := &hostdelegate.Delegate{
		ManifestDir: cfg.manifestDir,
		Store:       store,
		Logger:      logger,
	}

	sess := session.New(proc.Transport, session.Config{
		Identifier:          desc.Identifier,
		LaunchConfiguration: launchConfig,
		Delegate:            delegate,
		Logger:              logger,
		Store:               store,
	})

	handshakeErr := make(chan error, 1)
	go func() { handshakeErr <- sess.Start(proc.Stdout) }()

	repl := newReplSession(sess, desc)
	go repl.watchEvents()

	if err := <-handshakeErr; err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	repl.run()

	if err := sess.Stop(); err != nil {
		logger.Warn("error stopping session", "err", err)
	}
	return proc.Wait()
}
