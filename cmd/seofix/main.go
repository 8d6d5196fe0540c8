// Package main implements the seofix CLI: automated SEO remediation for
// WordPress sites, runnable once from the command line or as an HTTP
// daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/backup"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/config"
	httpapi "github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/http"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/indexer"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/logging"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/remediate"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/store"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/telemetry"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/verify"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

var (
	configPath string
	storePath  string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "seofix",
	Short: "Automated SEO remediation for WordPress sites",
	Long: `seofix applies automated fixes for content-quality issues detected by an
SEO audit: meta descriptions, titles, heading structure, alt text, internal
links and more. Every run snapshots the targeted content first, verifies
each fix after writing, and rolls the whole session back when too many
fixes fail verification.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/seofix/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "issue/backup store file (default in-memory)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var (
	flagDryRun     bool
	flagSkipBackup bool
	flagReanalyze  bool
	flagMaxChanges int
	flagFixTypes   []string
	flagUserID     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one remediation run",
	Long: `Execute one remediation run against the configured site and print the
structured result as JSON.

Examples:
  # Preview what would change
  seofix run --dry-run

  # Apply at most 5 fixes, meta descriptions and titles only
  seofix run --max-changes 5 --fix-types meta_description,title_tag

  # Apply fixes and re-score afterwards
  seofix run --reanalyze`,
	RunE: runRemediation,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the remediation API over HTTP",
	Long: `Start the HTTP server exposing POST /api/v1/remediation/run and
GET /health on the configured address.`,
	RunE: runServe,
}

func init() {
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "estimate fixes without mutating the site")
	runCmd.Flags().BoolVar(&flagSkipBackup, "skip-backup", false, "skip the pre-fix snapshot (disables rollback)")
	runCmd.Flags().BoolVar(&flagReanalyze, "reanalyze", false, "trigger a re-score after the run (needs an auditor backend)")
	runCmd.Flags().IntVar(&flagMaxChanges, "max-changes", 0, "cap the number of fixes applied (0 = config default)")
	runCmd.Flags().StringSliceVar(&flagFixTypes, "fix-types", nil, "restrict to the given fix types")
	runCmd.Flags().StringVar(&flagUserID, "user", "", "user id recorded on status transitions and activity")
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	service remediate.Service
	store   *store.Store
	creds   wpclient.Credentials
	tel     *telemetry.Telemetry
}

// close tears the app down in reverse wiring order.
func (a *app) close() {
	a.service.Close() //nolint:errcheck
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	a.logger.Sync() //nolint:errcheck
}

func buildApp() (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	if cfg.Site.URL == "" {
		return nil, fmt.Errorf("site.url is not configured")
	}

	tel, err := telemetry.New(context.Background(), &cfg.Telemetry, version, logger)
	if err != nil {
		return nil, err
	}

	creds := wpclient.Credentials{
		BaseURL:     cfg.Site.URL,
		Username:    cfg.Site.Username,
		AppPassword: cfg.Site.AppPassword.Value(),
	}

	st, err := store.Open(storePath, logger)
	if err != nil {
		return nil, err
	}

	client := wpclient.New(&wpclient.Config{
		PageDelay: cfg.Remediation.PageDelay.Duration(),
	}, logger)

	backups, err := backup.NewManager(client, st, logger)
	if err != nil {
		return nil, err
	}

	engine, err := verify.NewEngine(&verify.Config{
		SettleDelay: cfg.Remediation.VerifySettleDelay.Duration(),
	}, client, logger)
	if err != nil {
		return nil, err
	}

	idx, err := indexer.New(client, logger)
	if err != nil {
		return nil, err
	}

	svc, err := remediate.NewService(&remediate.Config{
		RollbackFailureRate: cfg.Remediation.RollbackFailureRate,
		ContentLossRatio:    cfg.Remediation.ContentLossRatio,
		RecentFixWindow:     cfg.Remediation.RecentFixWindow.Duration(),
		ScanFallbackLimit:   cfg.Remediation.ScanFallbackLimit,
		MaxChanges:          cfg.Remediation.MaxChanges,
		ReanalysisDelay:     cfg.Remediation.ReanalysisDelay.Duration(),
	}, remediate.Dependencies{
		Client:   client,
		Backups:  backups,
		Verifier: engine,
		Tracker:  st,
		Activity: st,
		Indexer:  idx,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		service: svc,
		store:   st,
		creds:   creds,
		tel:     tel,
	}, nil
}

func runRemediation(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	// No auditor backend is wired yet, so the flag has nothing to call.
	if flagReanalyze {
		a.logger.Warn("re-analysis requested but no auditor backend is configured; the re-score will be skipped")
	}

	result, err := a.service.Run(cmd.Context(), &remediate.RunRequest{
		SiteID: a.cfg.Site.ID,
		UserID: flagUserID,
		DryRun: flagDryRun,
		Creds:  a.creds,
		Options: remediate.Options{
			FixTypes:         flagFixTypes,
			MaxChanges:       flagMaxChanges,
			SkipBackup:       flagSkipBackup,
			EnableReanalysis: flagReanalyze,
		},
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !result.Success {
		return fmt.Errorf("remediation failed: %s", result.Message)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	server, err := httpapi.NewServer(a.service, a.creds, a.cfg.Site.ID, a.logger, &httpapi.Config{
		Host: a.cfg.Server.Host,
		Port: a.cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		a.logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
