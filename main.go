// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"voicefft/cmd"
	applog "voicefft/internal/log"
	"voicefft/pkg/build"
)

// main is the entry point for the voice analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and load configuration
//
// 2. Concurrent Phase (Hot Path):
//   - Live capture with the meter, or offline analysis of a file
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording and publishers, release PortAudio
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds run without ldflags.
	if err := build.Initialize(); err != nil {
		applog.Debugf("%v", err)
	}

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to audio engine (time-critical)
	// - One thread for UI and I/O operations
	runtime.GOMAXPROCS(2)

	options, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if options == nil {
		return // help or version
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, options, os.Stdout); err != nil && ctx.Err() == nil {
		stop()
		applog.Fatalf("%v", err)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	// Deferred closes in cmd.Run release the engine, transports and PortAudio.
}
