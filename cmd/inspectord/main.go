// Command inspectord runs the mcp-agent-inspector sidecar as a standalone
// process, for deployments that cannot embed package inspector directly into
// the host agent framework's binary. It reads configuration the same way
// package config documents (an optional YAML file plus env var overrides),
// starts the gateway, and shuts down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcp-agent-inspector/inspector"
	"github.com/mcp-agent-inspector/inspector/config"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on clean shutdown, 1 when the config
// cannot be loaded, the server cannot be constructed (traces directory or
// exporter setup), the gateway fails to serve (e.g. cannot bind its port),
// or the final shutdown flush fails.
func run() int {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspectord: load config: %v\n", err)
		return 1
	}

	srv, err := inspector.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspectord: init: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspectord: serve: %v\n", err)
			shutdown(srv)
			return 1
		}
	case <-ctx.Done():
		if err := <-errCh; err != nil {
			fmt.Fprintf(os.Stderr, "inspectord: serve: %v\n", err)
			shutdown(srv)
			return 1
		}
	}

	return shutdown(srv)
}

// shutdown flushes the exporter and tracer provider with a bounded grace
// period, independent of whatever cancelled the server's run context.
func shutdown(srv *inspector.Server) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "inspectord: shutdown: %v\n", err)
		return 1
	}
	return 0
}
