package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"btpad"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("btpad v%s\n", version)
	fmt.Println("Bluetooth game controller input normalizer")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  btpad [OPTIONS] [MODE]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads raw events from a paired Bluetooth game controller (via a Linux")
	fmt.Println("  input event device), normalizes them into named button/axis states and")
	fmt.Println("  exposes them for diagnostics. The same pipeline is what a control loop")
	fmt.Println("  consumes through the btpad library's Poll API.")
	fmt.Println()
	fmt.Println("MODES:")
	fmt.Println("  log       Print each normalized (name, value) pair as it occurs (default)")
	fmt.Println("  profile   Measure raw events received per second over ten samples")
	fmt.Println("  serve     Stream normalized updates to WebSocket clients")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -device string")
	fmt.Println("        Explicit input event node (e.g. /dev/input/event6)")
	fmt.Println()
	fmt.Println("  -device-search string")
	fmt.Println("        Substring of the controller's device name to search for")
	fmt.Println("        (e.g. \"nintendo\"). Retries until the device appears.")
	fmt.Println()
	fmt.Println("  -mapping string")
	fmt.Println("        YAML mapping file (overrides -family)")
	fmt.Println()
	fmt.Printf("  -family string\n")
	fmt.Printf("        Built-in controller family: %s (default %q)\n",
		strings.Join(btpad.Families(), "|"), btpad.DefaultFamily)
	fmt.Println()
	fmt.Println("  -listen string")
	fmt.Println("        HTTP listen address for serve mode (default \"127.0.0.1:8385\")")
	fmt.Println()
	fmt.Println("  -rate-window-ms int")
	fmt.Println("        Sampling window for the events-per-second meter (default 1000)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Watch normalized events from a Wii U Pro controller")
	fmt.Println("  btpad -device-search nintendo log")
	fmt.Println()
	fmt.Println("  # Score an Xbox pad's event throughput")
	fmt.Println("  btpad -device /dev/input/event4 -family xbox profile")
	fmt.Println()
	fmt.Println("  # Stream a custom-mapped pad to WebSocket clients")
	fmt.Println("  btpad -device-search 8bitdo -mapping ~/.config/btpad/8bitdo.yaml serve")
}

func main() {
	// Handle help and version before flag parsing so they work anywhere
	// on the command line.
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		device       = flag.String("device", "", "Explicit input event node (e.g. /dev/input/event6)")
		deviceSearch = flag.String("device-search", "", "Substring of the controller's device name to search for")
		mappingPath  = flag.String("mapping", "", "YAML mapping file (overrides -family)")
		family       = flag.String("family", btpad.DefaultFamily, "Built-in controller family")
		listenAddr   = flag.String("listen", "127.0.0.1:8385", "HTTP listen address for serve mode")
		rateWindowMS = flag.Int("rate-window-ms", 1000, "Sampling window for the events-per-second meter (ms)")
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
	)

	flag.Usage = printUsage
	flag.Parse()

	logLevel, err := parseLogLevel(*logLevelStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	mode := flag.Arg(0)
	if mode == "" {
		mode = "log"
	}
	switch mode {
	case "log", "profile", "serve":
	default:
		fmt.Fprintf(os.Stderr, "error: unknown mode %q (must be log, profile or serve)\n", mode)
		os.Exit(1)
	}
	if *rateWindowMS <= 0 {
		fmt.Fprintln(os.Stderr, "error: -rate-window-ms must be > 0")
		os.Exit(1)
	}
	if *device == "" && *deviceSearch == "" {
		fmt.Fprintln(os.Stderr, "error: one of -device or -device-search is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal received, shutting down", "signal", s.String())
		cancel()
	}()

	src, err := openSource(ctx, *device, *deviceSearch, logger)
	if err != nil {
		logger.Error("failed to open input device", "error", err,
			"tip", "run as root or add your user to the 'input' group")
		os.Exit(1)
	}

	opts := []btpad.Option{
		btpad.WithLogger(logger),
		btpad.WithUpdates(256),
		btpad.WithRateWindow(time.Duration(*rateWindowMS) * time.Millisecond),
	}
	if *mappingPath != "" {
		opts = append(opts, btpad.WithMappingFile(*mappingPath))
	} else {
		opts = append(opts, btpad.WithFamily(*family))
	}

	ctrl, err := btpad.New(src, opts...)
	if err != nil {
		logger.Error("failed to build controller", "error", err)
		_ = src.Close()
		os.Exit(1)
	}
	ctrl.Start()
	defer ctrl.Stop()

	switch mode {
	case "log":
		runLog(ctx, ctrl, logger)
	case "profile":
		runProfile(ctx, ctrl, logger)
	case "serve":
		if err := runServe(ctx, ctrl, *listenAddr, logger); err != nil {
			logger.Error("serve mode exited", "error", err)
			ctrl.Stop()
			os.Exit(1)
		}
	}
}

// openSource resolves the event source: an explicit node wins, otherwise
// the device is searched by name until it shows up (a freshly paired pad
// can take a few seconds to register).
func openSource(ctx context.Context, device, search string, logger *slog.Logger) (btpad.Source, error) {
	if device != "" {
		d, err := btpad.OpenDevice(device)
		if err != nil {
			return nil, err
		}
		logger.Info("input device opened", "path", d.Path(), "name", d.Name())
		return d, nil
	}
	return btpad.WaitForDevice(ctx, search, logger)
}

// runLog prints every normalized control change until interrupted or the
// controller stops.
func runLog(ctx context.Context, ctrl *btpad.Controller, logger *slog.Logger) {
	logger.Info("logging normalized events, press Ctrl+C to exit")
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ctrl.Updates():
			if !ok {
				logger.Warn("controller stopped")
				return
			}
			logger.Info("control", "name", u.Name, "value", u.Value)
		}
	}
}
