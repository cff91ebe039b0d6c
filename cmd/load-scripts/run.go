package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/scriptcache/internal/adapters/document"
	"github.com/Amund211/scriptcache/internal/adapters/sourceprovider"
	"github.com/Amund211/scriptcache/internal/config"
	"github.com/Amund211/scriptcache/internal/logging"
	"github.com/Amund211/scriptcache/internal/manifest"
	"github.com/Amund211/scriptcache/internal/ratelimiting"
	"github.com/Amund211/scriptcache/internal/scriptcache"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load every script in a manifest",
		Long: `Fetch and run every script in a manifest, then print how each load settled.

Exit codes:
  0 - Every script loaded
  1 - The manifest is invalid, a script failed, or the timeout passed`,
		RunE: runRun,
	}

	runCmd.Flags().StringP("file", "f", "", "path to manifest file (required)")
	runCmd.Flags().Duration("timeout", time.Minute, "how long to wait for every script to settle")
	runCmd.Flags().Duration("script-timeout", config.DEFAULT_SCRIPT_TIMEOUT, "how long a single script may run")
	runCmd.Flags().Int64("max-script-size", config.DEFAULT_MAX_SCRIPT_SIZE, "largest script source to download, in bytes")
	_ = runCmd.MarkFlagRequired("file")

	return runCmd
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	manifestFile, _ := cmd.Flags().GetString("file")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	scriptTimeout, _ := cmd.Flags().GetDuration("script-timeout")
	maxScriptSize, _ := cmd.Flags().GetInt64("max-script-size")

	entries, err := manifest.Load(manifestFile)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = logging.AddToContext(ctx, logger)

	hostRateLimiter, stopHostRateLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(4),
		ratelimiting.BurstSize(20),
	)
	defer stopHostRateLimiter()

	httpProvider, err := sourceprovider.NewHTTPSourceProvider(
		&http.Client{Timeout: 10 * time.Second},
		hostRateLimiter,
		maxScriptSize,
	)
	if err != nil {
		return fmt.Errorf("failed to create source provider: %w", err)
	}

	vm := document.NewVM(sourceprovider.NewMemoizedSourceProvider(httpProvider), scriptTimeout)
	defer vm.Close()

	cache := scriptcache.New(vm)
	registrations := cache.Cache(ctx, entries)

	out := cmd.OutOrStdout()
	failed := 0
	for _, registration := range registrations {
		if registration.Status == scriptcache.StatusSkipped {
			fmt.Fprintf(out, "%s: skipped (%s is already loaded)\n", registration.Name, registration.URL)
			continue
		}
		if registration.Status == scriptcache.StatusExisting {
			continue
		}

		record, err := cache.Wait(ctx, registration.Name)
		switch {
		case err == nil:
			duration := record.SettledAt().Sub(record.StartedAt())
			fmt.Fprintf(out, "%s: loaded in %s\n", registration.Name, duration.Round(time.Millisecond))
		case ctx.Err() != nil:
			return fmt.Errorf("gave up waiting for %s: %w", registration.Name, ctx.Err())
		default:
			failed++
			fmt.Fprintf(out, "%s: failed: %s\n", registration.Name, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed to load", failed, len(entries))
	}
	return nil
}
