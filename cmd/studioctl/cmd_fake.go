package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/plextera-e2e/internal/fixtures"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/ratelimit"
	"github.com/kuitang/plextera-e2e/internal/studiofake"
)

var (
	fakeAddr      string
	fakeOutboxDir string
	fakeMailKey   string
	fakeRPS       float64
)

func init() {
	fakeCmd.Flags().StringVar(&fakeAddr, "addr", "127.0.0.1:8080", "listen address")
	fakeCmd.Flags().StringVar(&fakeOutboxDir, "outbox", "", "directory receiving a JSON copy of every sent email")
	fakeCmd.Flags().StringVar(&fakeMailKey, "mail-key", studiofake.DefaultMailAPIKey, "x-api-key accepted by the inbox API")
	fakeCmd.Flags().Float64Var(&fakeRPS, "rps", 0, "per-token request rate limit (0 disables)")
	rootCmd.AddCommand(fakeCmd)
}

var fakeCmd = &cobra.Command{
	Use:   "fake",
	Short: "Serve the local studio double seeded with the fixture accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts := studiofake.Options{
			CookieName: cfg.CookieName,
			MailAPIKey: fakeMailKey,
			OutboxDir:  fakeOutboxDir,
		}
		if fakeRPS > 0 {
			opts.RateLimit = ratelimit.Config{RPS: fakeRPS, Burst: max(1, int(fakeRPS)*2)}
		}
		fake, err := studiofake.New(opts)
		if err != nil {
			return err
		}
		defer fake.Close()
		if err := fake.Seed(fixtures.NewLoader(cfg.DataDir)); err != nil {
			return fmt.Errorf("seeding from %s: %w", cfg.DataDir, err)
		}

		srv := &http.Server{
			Addr:              fakeAddr,
			Handler:           fake.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		errCh := make(chan error, 1)
		go func() {
			obs.Pkg("studioctl").Info("fake_listening", "addr", fakeAddr, "data", cfg.DataDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", fakeAddr)
			fmt.Fprintf(cmd.OutOrStdout(), "Run the suite with PLEXTERA_STUDIO_URL=http://%[1]s MAIL_API_URL=http://%[1]s MAIL_API_KEY=%[2]s\n", fakeAddr, fakeMailKey)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-sig:
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}
