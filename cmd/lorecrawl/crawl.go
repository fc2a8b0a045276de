package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/lorecrawl/internal/cache"
	"github.com/nao1215/lorecrawl/internal/config"
	"github.com/nao1215/lorecrawl/internal/database"
	"github.com/nao1215/lorecrawl/internal/export"
	"github.com/nao1215/lorecrawl/internal/fetch"
	"github.com/nao1215/lorecrawl/internal/log"
	"github.com/nao1215/lorecrawl/internal/model"
	"github.com/nao1215/lorecrawl/internal/pipeline"
	"github.com/nao1215/lorecrawl/internal/report"
	"github.com/nao1215/lorecrawl/internal/source"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Collect the catalog and export every article",
		Long: `Crawl walks the story catalog and writes two files under <cache-dir>/final:
category_names.txt and all_articles.md (or all_articles.txt).

With --use-local=false every document is fetched over the network, one
request at a time spaced by --delay, and stored in the cache. With the
default --use-local=true nothing is fetched; the export is rebuilt from the
cache of an earlier crawl.

Examples:
  # First crawl: fetch everything
  lorecrawl crawl --use-local=false

  # Rebuild a plain text export from the cache
  lorecrawl crawl --format txt

  # Keep every category
  lorecrawl crawl --exclude ""

  # Route requests through a SOCKS5 proxy
  lorecrawl crawl -u=false --proxy 127.0.0.1:1080`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().BoolP("use-local", "u", true,
		"Replay the local cache instead of fetching over the network")
	cmd.Flags().BoolP("walk-tree", "w", false,
		"Replay by walking the cached catalog tree instead of every cached article")
	cmd.Flags().StringP("cache-dir", "d", config.DefaultCacheDir,
		"Cache root; exports are written to <cache-dir>/final")
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Article export format (md or txt)")
	cmd.Flags().StringArrayP("exclude", "x", config.DefaultExclude(),
		"Category name to leave out of the export (repeatable)")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Minimum spacing between network requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout of a single request")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries,
		"Retries after a transient network failure")
	cmd.Flags().Duration("max-age", 0,
		"Reuse documents fetched within this window (0 always fetches)")
	cmd.Flags().Int("concurrency", 0,
		"Cached articles decoded at once during a replay (0 uses one per CPU)")
	cmd.Flags().Int("max-depth", config.DefaultMaxDepth,
		"Deepest catalog nesting accepted")
	cmd.Flags().StringP("proxy", "p", "",
		"SOCKS5 proxy, host:port or socks5://host:port")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .lorecrawl in current or home directory)")
	cmd.Flags().BoolP("summary", "s", false,
		"Print the run summary as Markdown")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run ledger")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig layers the config file and the flags the user set over the
// defaults.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.Summary, err = flags.GetBool("summary"); err != nil {
		return nil, err
	}
	if cfg.UseLocal, err = flags.GetBool("use-local"); err != nil {
		return nil, err
	}
	if cfg.WalkTree, err = flags.GetBool("walk-tree"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	// File values win over flag defaults; only explicit flags override them.
	if flags.Changed("cache-dir") {
		if cfg.CacheDir, err = flags.GetString("cache-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("format") {
		if cfg.Format, err = flags.GetString("format"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("exclude") {
		exclude, err := flags.GetStringArray("exclude")
		if err != nil {
			return nil, err
		}
		cfg.Exclude = nonEmpty(exclude)
	}
	if flags.Changed("delay") {
		if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retries") {
		if cfg.Retries, err = flags.GetInt("retries"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-age") {
		if cfg.MaxAge, err = flags.GetDuration("max-age"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-depth") {
		if cfg.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// nonEmpty drops empty strings, so that --exclude "" clears the list.
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// runCrawl wires the components for one run and executes it. Progress lines
// and the summary go to out.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	mode := model.ModeReplay
	if !cfg.UseLocal {
		mode = model.ModeLive
	}
	logger.Info("starting crawl",
		"mode", mode,
		"cacheDir", cfg.CacheDir,
		"format", cfg.Format,
		"proxy", cfg.Proxy,
	)

	store := cache.NewStore(cfg.CacheDir)

	ledger := openLedger(cfg.DBDir, logger)
	if ledger != nil {
		defer ledger.Close()
	}

	selectorOpts := []source.Option{
		source.WithEndpoints(cfg.Endpoints()),
		source.WithDelay(cfg.Delay),
		source.WithRetries(cfg.Retries),
		source.WithMaxAge(cfg.MaxAge),
		source.WithConcurrency(cfg.Concurrency),
		source.WithMaxDepth(cfg.MaxDepth),
		source.WithLogger(logger),
		source.WithProgress(out),
	}
	if mode == model.ModeLive {
		client, err := fetch.NewHTTPClient(fetch.ClientConfig{
			Timeout: cfg.Timeout,
			Proxy:   cfg.Proxy,
		})
		if err != nil {
			return fmt.Errorf("failed to create HTTP client: %w", err)
		}
		selectorOpts = append(selectorOpts, source.WithFetcher(fetch.NewHTTPFetcher(
			fetch.WithHTTPClient(client),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithMaxBodySize(cfg.MaxBodySize),
		)))
	}

	pcfg := pipeline.DefaultPipelineConfig{
		WalkTree: cfg.WalkTree,
		Exporter: export.NewWriter(store.Fs(), store.Root()),
		Format:   cfg.ExportFormat(),
		Excluded: cfg.Exclude,
		Summary:  summaryWriter(cfg, out),
	}
	if ledger != nil {
		selectorOpts = append(selectorOpts, source.WithLedger(ledger))
		pcfg.Ledger = ledger
	}
	pcfg.Collector = source.NewSelector(store, selectorOpts...)

	p := pipeline.DefaultPipeline(pcfg, pipeline.WithLogger(logger))
	return p.Execute(ctx, model.NewRunReport(mode, cfg.CacheDir))
}

// openLedger opens the run ledger. A ledger that cannot be opened only
// disables run history; the crawl itself goes on.
func openLedger(dir string, logger *slog.Logger) *database.Ledger {
	if dir == "" {
		return nil
	}
	ledger, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		logger.Warn("run history disabled", "dir", dir, "error", err)
		return nil
	}
	logger.Debug("ledger opened", "path", ledger.Path())
	return ledger
}

// summaryWriter selects the run summary format.
func summaryWriter(cfg *config.Config, out io.Writer) report.Writer {
	if cfg.Summary {
		return report.NewMarkdownWriter(out)
	}
	return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
}
