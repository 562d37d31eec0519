package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fwdns/fwdns/internal/dns/common/log"
	"github.com/fwdns/fwdns/internal/dns/config"
	"github.com/fwdns/fwdns/internal/dns/services/propagation"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "fwdnsd",
	Short:   "A local caching DNS forwarding proxy.",
	Version: version,
}

func init() {
	var interactive bool

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the DNS proxy.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(interactive)
		},
		SilenceUsage: true,
	}
	startCmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"run a propagation-test prompt while the proxy serves in the background")

	checkCmd := &cobra.Command{
		Use:   "check <domain>",
		Short: "Run a propagation test against twenty public resolvers.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter := propagation.New(propagation.Options{})
			return reporter.Run(cmd.Context(), args[0], os.Stdout)
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(startCmd, checkCmd)
}

func runStart(interactive bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}

	log.Info(map[string]any{
		"version":          version,
		"env":              cfg.Env,
		"log_level":        cfg.LogLevel,
		"listen":           cfg.ListenAddr(),
		"upstream":         cfg.Upstream,
		"upstream_timeout": cfg.UpstreamTimeout.String(),
	}, "Starting fwdns proxy")

	app, err := buildApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		// Bind failures are fatal: no retry, no fallback port.
		log.Error(map[string]any{"error": err.Error()}, "Failed to start proxy")
		return err
	}

	if interactive {
		go promptLoop(ctx, cancel)
	}

	app.Wait(ctx)
	log.Info(nil, "Proxy stopped")
	return nil
}

// promptLoop is the interactive companion to the proxy: each line typed is a
// domain to run a propagation test for; "quit" or "exit" shuts the proxy down.
func promptLoop(ctx context.Context, cancel context.CancelFunc) {
	reporter := propagation.New(propagation.Options{})
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Proxy is running in the background.")
	fmt.Println("Type a domain name to run a propagation test, or 'quit' to exit.")

	for {
		fmt.Print("\nDNS-CLI> ")
		if !scanner.Scan() {
			cancel()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			cancel()
			return
		default:
			if err := reporter.Run(ctx, line, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "propagation test failed: %v\n", err)
			}
		}
	}
}
