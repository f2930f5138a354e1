// studioctl is the operator companion of the browser suite: it issues role
// tokens, drives disposable inboxes, sweeps resources left by failed runs and
// serves the local studio double for manual debugging.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kuitang/plextera-e2e/internal/cleanup"
	"github.com/kuitang/plextera-e2e/internal/config"
	"github.com/kuitang/plextera-e2e/internal/fixtures"
	"github.com/kuitang/plextera-e2e/internal/mailbox"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/session"
	"github.com/kuitang/plextera-e2e/internal/studioapi"
)

var (
	studioURL string
	dataDir   string
)

var rootCmd = &cobra.Command{
	Use:          "studioctl",
	Short:        "Helpers for the Plextera Studio browser suite",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		obs.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&studioURL, "studio", "", "studio base URL (overrides PLEXTERA_STUDIO_URL)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "fixture directory (overrides PLEXTERA_DATA_DIR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// clients bundles what the API-facing commands need.
type clients struct {
	cfg      *config.Config
	data     *fixtures.Loader
	api      *studioapi.Client
	mail     *mailbox.Client
	sessions *session.Manager
}

func (c *clients) close() {
	c.api.Close()
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	if studioURL != "" {
		os.Setenv("PLEXTERA_STUDIO_URL", studioURL)
	}
	if dataDir != "" {
		os.Setenv("PLEXTERA_DATA_DIR", dataDir)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	return cfg, nil
}

// newClients builds the API and inbox clients for a deployed studio.
func newClients() (*clients, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Hermetic() {
		return nil, fmt.Errorf("no studio configured: set PLEXTERA_STUDIO_URL or pass --studio")
	}
	state := fixtures.NewState(cfg.DataDir)
	data := fixtures.NewLoader(cfg.DataDir).WithState(state)
	api := studioapi.New(studioapi.Options{
		AccountURL:   cfg.AccountAPIURL,
		DocumentsURL: cfg.DocumentsAPIURL,
		RPS:          cfg.APIRPS,
		Burst:        cfg.APIBurst,
	})
	return &clients{
		cfg:      cfg,
		data:     data,
		api:      api,
		mail:     mailbox.New(cfg.MailAPIURL, cfg.MailAPIKey),
		sessions: session.NewManager(cfg, data, api),
	}, nil
}

func (c *clients) deleter() *cleanup.Dispatcher {
	return &cleanup.Dispatcher{API: c.api, Tokens: c.sessions, Mail: c.mail}
}
