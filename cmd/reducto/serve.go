package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gxo-labs/reducto/internal/httpapi"
	"github.com/gxo-labs/reducto/internal/natsstan"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store until interrupted",
	Long: `Open the configured application and keep it running: the HTTP API
(state, actions, SSE stream, /metrics), the NATS Streaming action consumer
when 'nats' is configured, and background snapshots when persistence is on.

SIGINT or SIGTERM shuts everything down and writes a final snapshot.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides http.addr)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := loadRuntime(ctx, path, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	log := rt.log

	var (
		received os.Signal
		sigMu    sync.Mutex
	)
	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			sigMu.Lock()
			received = sig
			sigMu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	if rt.persister != nil {
		if err := rt.persister.Start(ctx); err != nil {
			_ = rt.close()
			return err
		}
	}

	if addr == "" {
		addr = rt.cfg.HTTP.GetAddr()
	}
	server := httpapi.NewServer(rt.sess, rt.metrics.Handler(), log)
	if err := server.Start(ctx, addr); err != nil {
		_ = rt.close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if rt.cfg.NATS != nil {
		sub := natsstan.NewSubscriber(*rt.cfg.NATS, natsstan.NewHandler(rt.sess, log), log)
		g.Go(func() error { return sub.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	runErr := g.Wait()
	cancel()

	closeErr := rt.close()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	sigMu.Lock()
	sig := received
	sigMu.Unlock()
	switch sig {
	case syscall.SIGINT:
		return exitError(ExitSigInt)
	case syscall.SIGTERM:
		return exitError(ExitSigTerm)
	}
	return closeErr
}
