/*
File: main.go
Version: 2.1.0
Description: Entry point. Loads configuration, wires the pipeline with the
             stand-in platform boundaries, and runs until SIGINT/SIGTERM.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const appVersion = "2.1.0"

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("blurguard %s\n", appVersion)
		return
	}

	if err := LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer ShutdownLogger()

	LogInfo("[MAIN] blurguard %s starting (config=%s)", appVersion, *configPath)

	// Stand-in boundaries. A device build swaps these for the real screenshot,
	// window, input, and model bridges.
	const screenW, screenH = 1080, 2400
	deps := GuardDeps{
		Source:     &SimulatedScreenSource{Width: screenW, Height: screenH, Fill: 0xFF3050A0},
		Classifier: &HeuristicClassifier{},
		Backend:    NewLoggingBackend(),
		Bridge:     &LoggingBridge{},
		ScreenW:    screenW,
		ScreenH:    screenH,
	}

	service := NewGuardService(config, deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Run(ctx); err != nil && err != context.Canceled {
		LogError("[MAIN] Pipeline error: %v", err)
		os.Exit(1)
	}
	LogInfo("[MAIN] Shutdown complete")
}
