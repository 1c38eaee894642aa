package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/everstacklabs/curator/internal/catalog"
	"github.com/everstacklabs/curator/internal/config"
	"github.com/everstacklabs/curator/internal/fetch"
	_ "github.com/everstacklabs/curator/internal/fetch/providers/anthropic" // register Anthropic fetcher
	_ "github.com/everstacklabs/curator/internal/fetch/providers/mistral"   // register Mistral fetcher
	_ "github.com/everstacklabs/curator/internal/fetch/providers/openai"    // register OpenAI fetcher
	"github.com/everstacklabs/curator/internal/httpclient"
	"github.com/everstacklabs/curator/internal/pipeline"
	"github.com/everstacklabs/curator/internal/validate"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "curator",
		Short: "Automated model catalog curator",
		Long:  "Fetches current model listings from provider APIs, diffs them against the catalog, and opens PRs for review.",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(
		syncCmd(),
		diffCmd(),
		fetchCmd(),
		validateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Full pipeline: fetch → diff → validate → write → PR",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			store := catalog.NewFileStore(cfg.CatalogPath)
			opts := []pipeline.Option{}
			if cfg.GitHub.Token != "" {
				opts = append(opts, pipeline.WithPRCreator(
					pipeline.NewGitHubPRCreator(cfg.CatalogPath, cfg.GitHub)))
			}

			p := pipeline.New(cfg, store, opts...)
			decision, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			reportDecision(decision)

			if decision.Outcome == pipeline.OutcomePartialFetch {
				os.Exit(pipeline.ExitFetchFailed)
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Show what would change without writing")
	cmd.Flags().Bool("no-pr", false, "Write changes but skip the review request")
	cmd.Flags().StringSlice("providers", nil, "Providers to sync (default: all configured)")

	return cmd
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show what would change (no writes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.DryRun = true

			store := catalog.NewFileStore(cfg.CatalogPath)
			p := pipeline.New(cfg, store)
			decision, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			if decision.Outcome == pipeline.OutcomePartialFetch {
				slog.Error("all provider fetches failed", "providers", decision.FailedProviders)
				os.Exit(pipeline.ExitFetchFailed)
			}

			fmt.Println(decision.Report.RenderChangelog(decision.Unapplied))

			if decision.Report.HasChanges() {
				os.Exit(pipeline.ExitChanges)
			}
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one provider and print its entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			provider, _ := cmd.Flags().GetString("provider")
			f, err := fetch.Get(provider)
			if err != nil {
				return err
			}

			if c, ok := f.(interface {
				Configure(apiKey, baseURL string, client *httpclient.Client)
			}); ok {
				pc, err := cfg.Provider(provider)
				if err != nil {
					return err
				}
				c.Configure(pc.APIKey, pc.BaseURL, httpclient.New(
					httpclient.WithRateLimit(cfg.RateLimitRPS)))
			}

			entries, err := f.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			for _, e := range entries {
				fmt.Printf("%-40s %-30s %-10s %s\n", e.ID, e.WireID, e.CostTier, e.SpeedTier)
			}
			fmt.Printf("\nTotal: %d entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().String("provider", "", "Provider to fetch")
	_ = cmd.MarkFlagRequired("provider")

	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the existing catalog (CI check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogPath, _ := cmd.Flags().GetString("catalog-path")
			if catalogPath == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				catalogPath = cfg.CatalogPath
			}

			store := catalog.NewFileStore(catalogPath)
			snap, err := store.Load()
			if err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}

			results := validate.Snapshot(snap, time.Now())
			fmt.Println(validate.Format(results))

			if validate.HasErrors(results) {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().String("catalog-path", "", "Path to model catalog (default: from config)")

	return cmd
}

func reportDecision(d *pipeline.Decision) {
	switch d.Outcome {
	case pipeline.OutcomeNoChanges:
		slog.Info("catalog up to date")
	case pipeline.OutcomeApplied:
		slog.Info("changes applied",
			"summary", d.Report.Summary(),
			"unapplied", len(d.Unapplied),
			"dry_run", d.DryRun)
		if d.PRNumber > 0 {
			slog.Info("review requested", "pr", d.PRNumber, "draft", d.PRDraft)
		}
		if d.PRError != nil {
			slog.Warn("write succeeded but review request failed; retry with: curator sync",
				"error", d.PRError)
		}
	case pipeline.OutcomeRejected:
		slog.Warn("all changes rejected by validation", "summary", d.Report.Summary())
		fmt.Println(d.Report.RenderChangelog(d.Unapplied))
		fmt.Println(validate.Format(d.Validation))
	case pipeline.OutcomePartialFetch:
		slog.Error("every provider fetch failed", "providers", d.FailedProviders)
	}

	if len(d.FailedProviders) > 0 && d.Outcome != pipeline.OutcomePartialFetch {
		slog.Warn("some providers failed and were skipped", "providers", d.FailedProviders)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if f := cmd.Flags().Lookup("dry-run"); f != nil && f.Changed {
		cfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}
	if f := cmd.Flags().Lookup("no-pr"); f != nil && f.Changed {
		cfg.NoPR, _ = cmd.Flags().GetBool("no-pr")
	}
	if f := cmd.Flags().Lookup("providers"); f != nil && f.Changed {
		cfg.Providers, _ = cmd.Flags().GetStringSlice("providers")
	}

	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
