// Package cmd provides the command-line interface for LinkHarvest.
// It handles command parsing, configuration loading, crawler execution and
// exporting the results.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/linkharvest/internal/config"
	"github.com/masahif/linkharvest/internal/crawler"
	"github.com/masahif/linkharvest/internal/export"
	"github.com/masahif/linkharvest/internal/logging"
	"github.com/masahif/linkharvest/internal/storage"
)

// defaultCLIDepth is the depth used when neither a flag nor a config file sets one
const defaultCLIDepth = 2

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkharvest [URL]",
	Short: "A bounded concurrent web crawler and page data extractor",
	Long: `LinkHarvest crawls a single website breadth-first from a seed URL.

It stays on the seed's host, stops at a configurable link depth, and extracts
titles, headings, paragraphs, links, images, forms, scripts and meta tags from
every page. Results are exported as JSON, a URL list and a Markdown report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawler,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./linkharvest.yml)")

	// Configuration management flags
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Crawl bounds
	rootCmd.Flags().IntP("depth", "d", defaultCLIDepth, "Maximum link depth from the seed URL (seed is depth 0)")
	rootCmd.Flags().IntP("threads", "t", defaults.MaxThreads, "Number of concurrent workers per batch")

	// Fetching flags
	rootCmd.Flags().Duration("timeout", defaults.RequestTimeout, "HTTP request timeout per attempt")
	rootCmd.Flags().Int("retries", defaults.MaxRetries, "Maximum attempts per URL")
	rootCmd.Flags().Duration("retry-delay", defaults.RetryDelay, "Backoff unit between attempts (attempt N waits N times this)")
	rootCmd.Flags().DurationP("delay", "r", defaults.RequestDelay, "Politeness delay between requests to the host")
	rootCmd.Flags().StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	rootCmd.Flags().StringSliceP("header", "H", []string{}, "Custom HTTP headers in 'Name: Value' format (use multiple times for multiple headers)")

	// URL filtering flags
	rootCmd.Flags().StringSlice("deny-ext", defaults.ExtensionDenylist, "File extensions that are never crawled")
	rootCmd.Flags().StringSlice("match", defaults.MatchPatterns, "URL keywords reported as matched")

	// Output flags
	rootCmd.Flags().StringP("output", "o", defaults.OutputDir, "Directory for exported results")
	rootCmd.Flags().StringSliceP("format", "f", defaults.Formats, "Export formats: json, txt, md, csv")
	rootCmd.Flags().String("database", "", "Also save the run to this SQLite database")
	rootCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while crawling (e.g. :9090)")

	// Logging flags
	rootCmd.Flags().String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-file", "", "Log file path (default is <output>/crawler_<timestamp>.log)")
	rootCmd.Flags().String("log-format", defaults.LogFormat, "Log format: json or text")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"max_depth", "depth"},
		{"max_threads", "threads"},
		{"request_timeout", "timeout"},
		{"max_retries", "retries"},
		{"retry_delay", "retry-delay"},
		{"request_delay", "delay"},
		{"user_agent", "user-agent"},
		{"headers", "header"},
		{"extension_denylist", "deny-ext"},
		{"match_patterns", "match"},
		{"output_dir", "output"},
		{"formats", "format"},
		{"database_path", "database"},
		{"metrics_addr", "metrics-addr"},
		{"log_level", "log-level"},
		{"log_file", "log-file"},
		{"log_format", "log-format"},
	}

	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.Flags().Lookup(bind.flagName)); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("linkharvest")
	}

	viper.AutomaticEnv() // read in environment variables that match
	viper.SetEnvPrefix("LH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	_ = viper.BindEnv("seed_url") // LH_SEED_URL, no flag of its own

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, viper sources and the URL argument
func loadConfig(args []string) (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()
	cfg.MaxDepth = defaultCLIDepth

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	return cfg, nil
}

func showCurrentConfig(w io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Validate configuration before showing it
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(w, "# Current LinkHarvest Configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# Configuration file search paths: ./linkharvest.yml\n")
	fmt.Fprintf(w, "# Environment variables prefix: LH_\n\n")

	fmt.Fprint(w, string(yamlData))

	fmt.Fprintf(w, "\n# Configuration source priority:\n")
	fmt.Fprintf(w, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(w, "# 2. Environment variables (LH_ prefix)\n")
	fmt.Fprintf(w, "# 3. Configuration file (linkharvest.yml)\n")
	fmt.Fprintf(w, "# 4. Default values (lowest priority)\n")

	return nil
}

func runCrawler(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	// Handle --show-config: display current configuration and exit
	if showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrNoSeedURL) {
			return fmt.Errorf("no URL provided\nUsage: %s", cmd.UseLine())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	start := time.Now()

	logCloser, err := setupLogging(cfg, start)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Starting crawler with configuration:\n")
	fmt.Fprintf(out, "  Seed URL: %s\n", cfg.SeedURL)
	fmt.Fprintf(out, "  Max Depth: %d\n", cfg.MaxDepth)
	fmt.Fprintf(out, "  Threads: %d\n", cfg.MaxThreads)
	fmt.Fprintf(out, "  Request Delay: %v\n", cfg.RequestDelay)
	fmt.Fprintf(out, "  Output: %s\n", cfg.OutputDir)
	if cfg.DatabasePath != "" {
		fmt.Fprintf(out, "  Database: %s\n", cfg.DatabasePath)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := crawler.NewMetrics(registry)

	if cfg.MetricsAddr != "" {
		addr, shutdown, err := serveMetrics(cfg.MetricsAddr, registry)
		if err != nil {
			return err
		}
		defer shutdown()
		slog.Info("Serving metrics", "addr", addr)
	}

	c, err := crawler.NewCrawler(cfg, crawler.WithMetrics(metrics), crawler.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("failed to initialize crawler: %w", err)
	}
	defer c.Close()

	result, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	if result.Interrupted {
		fmt.Fprintf(out, "\nCrawl interrupted, saving partial results...\n")
	}

	if err := export.WriteStatistics(out, result); err != nil {
		return fmt.Errorf("failed to print statistics: %w", err)
	}

	return saveResults(out, cfg, result, start)
}

// saveResults exports result to the output directory and, when configured,
// the SQLite database
func saveResults(out io.Writer, cfg *config.CrawlConfig, result *crawler.Result, start time.Time) error {
	paths, err := export.WriteAll(cfg.OutputDir, cfg.Formats, result, start)
	for _, p := range paths {
		fmt.Fprintf(out, "Results exported to: %s\n", p)
	}
	if err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}

	if cfg.DatabasePath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	runID, err := store.SaveRun(result)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	fmt.Fprintf(out, "Run %d saved to: %s\n", runID, cfg.DatabasePath)

	return nil
}

// setupLogging installs the default logger. Console output goes to stderr so
// that stdout carries only the run summary.
func setupLogging(cfg *config.CrawlConfig, start time.Time) (io.Closer, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logCfg.Console = os.Stderr
	logCfg.FilePath = cfg.LogFile
	if logCfg.FilePath == "" && cfg.OutputDir != "" {
		logCfg.FilePath = logging.RunLogFile(cfg.OutputDir, start)
	}

	return logging.SetDefault(*logCfg)
}

// serveMetrics exposes reg on addr until shutdown is called and returns the
// address actually bound
func serveMetrics(addr string, reg *prometheus.Registry) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "error", err)
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}

	return ln.Addr().String(), shutdown, nil
}
