package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/masahif/linkharvest/internal/crawler"
	"github.com/masahif/linkharvest/internal/storage"
)

func TestSetVersionInfo(t *testing.T) {
	version := "1.2.3"
	buildTime := "2023-12-01T10:00:00Z"

	SetVersionInfo(version, buildTime)

	expected := "1.2.3 (built 2023-12-01T10:00:00Z)"
	if rootCmd.Version != expected {
		t.Errorf("Expected version %s, got %s", expected, rootCmd.Version)
	}
}

func TestExecute(t *testing.T) {
	// Save original args
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	os.Args = []string{"linkharvest", "--help"}
	if err := Execute(); err != nil {
		t.Logf("Execute with help returned: %v", err)
	}
}

func TestInitConfig(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
seed_url: "http://example.test/"
max_threads: 5
request_delay: 2s
user_agent: "TestAgent/1.0"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	cfgFile = configFile
	defer func() {
		cfgFile = ""
		viper.Reset()
	}()

	initConfig()

	if viper.ConfigFileUsed() != configFile {
		t.Errorf("Expected config file %s, got %s", configFile, viper.ConfigFileUsed())
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.SeedURL != "http://example.test/" || cfg.MaxThreads != 5 || cfg.RequestDelay != 2*time.Second {
		t.Errorf("Config file values not applied: %+v", cfg)
	}
	if cfg.UserAgent != "TestAgent/1.0" {
		t.Errorf("Expected user agent from config file, got %q", cfg.UserAgent)
	}
}

func TestLoadConfigArgumentOverridesSeed(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("seed_url", "http://from-config.test/")

	cfg, err := loadConfig([]string{"http://from-args.test/"})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.SeedURL != "http://from-args.test/" {
		t.Errorf("SeedURL = %q, want the argument", cfg.SeedURL)
	}
	if cfg.MaxDepth != defaultCLIDepth {
		t.Errorf("MaxDepth = %d, want CLI default %d", cfg.MaxDepth, defaultCLIDepth)
	}
}

func TestRootCmd(t *testing.T) {
	if rootCmd.Use != "linkharvest [URL]" {
		t.Errorf("Expected use 'linkharvest [URL]', got %s", rootCmd.Use)
	}

	if rootCmd.RunE == nil {
		t.Error("RunE should be set to runCrawler")
	}

	if err := rootCmd.Args(rootCmd, []string{"http://a.test/", "http://b.test/"}); err == nil {
		t.Error("Expected more than one URL argument to be rejected")
	}
}

func TestFlagBinding(t *testing.T) {
	flags := rootCmd.Flags()

	expectedFlags := []string{
		"show-config",
		"depth",
		"threads",
		"timeout",
		"retries",
		"retry-delay",
		"delay",
		"user-agent",
		"header",
		"deny-ext",
		"match",
		"output",
		"format",
		"database",
		"metrics-addr",
		"log-level",
		"log-file",
		"log-format",
	}

	for _, flagName := range expectedFlags {
		if flags.Lookup(flagName) == nil {
			t.Errorf("Expected flag %s to be defined", flagName)
		}
	}

	if depth := flags.Lookup("depth"); depth != nil && depth.DefValue != "2" {
		t.Errorf("Expected depth default 2, got %s", depth.DefValue)
	}

	persistentFlags := rootCmd.PersistentFlags()
	if persistentFlags.Lookup("config") == nil {
		t.Error("Expected persistent flag 'config' to be defined")
	}
}

// newTestCommand returns a bare command carrying the flags runCrawler reads
func newTestCommand(t *testing.T, out io.Writer) *cobra.Command {
	t.Helper()

	cmd := &cobra.Command{}
	cmd.Flags().Bool("show-config", false, "")
	cmd.SetOut(out)
	cmd.SetContext(context.Background())
	return cmd
}

func TestRunCrawlerValidation(t *testing.T) {
	t.Run("NoURL", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		err := runCrawler(newTestCommand(t, io.Discard), nil)
		if err == nil || !strings.Contains(err.Error(), "no URL provided") {
			t.Errorf("Expected missing URL error, got: %v", err)
		}
	})

	t.Run("InvalidThreads", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()
		viper.Set("max_threads", 0)

		err := runCrawler(newTestCommand(t, io.Discard), []string{"http://example.test/"})
		if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
			t.Errorf("Expected invalid configuration error, got: %v", err)
		}
	})

	t.Run("InvalidHeader", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()
		viper.Set("headers", []string{"no-colon"})

		err := runCrawler(newTestCommand(t, io.Discard), []string{"http://example.test/"})
		if err == nil || !strings.Contains(err.Error(), "Name: Value") {
			t.Errorf("Expected header format error, got: %v", err)
		}
	})
}

func TestShowConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	var out bytes.Buffer
	cmd := newTestCommand(t, &out)
	if err := cmd.Flags().Set("show-config", "true"); err != nil {
		t.Fatalf("Failed to set flag: %v", err)
	}

	if err := runCrawler(cmd, []string{"http://example.test/"}); err != nil {
		t.Fatalf("runCrawler() error = %v", err)
	}

	for _, want := range []string{"# Current LinkHarvest Configuration", "seed_url: http://example.test/", "max_depth: 2", "LH_ prefix"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}

func TestRunCrawlerEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>
				<a href="/contact">Contact</a><a href="/gone">Gone</a></body></html>`))
		case "/contact":
			_, _ = w.Write([]byte(`<html><head><title>Contact</title></head><body><a href="/">Home</a></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tempDir := t.TempDir()
	outDir := filepath.Join(tempDir, "scraped_data")
	dbPath := filepath.Join(tempDir, "db", "runs.db")

	viper.Reset()
	defer viper.Reset()
	viper.Set("output_dir", outDir)
	viper.Set("database_path", dbPath)
	viper.Set("request_delay", time.Duration(0))
	viper.Set("retry_delay", time.Duration(0))
	viper.Set("log_level", "error")

	var out bytes.Buffer
	if err := runCrawler(newTestCommand(t, &out), []string{server.URL + "/"}); err != nil {
		t.Fatalf("runCrawler() error = %v", err)
	}

	for _, want := range []string{"CRAWLING STATISTICS", "URLs Crawled:         3", "Errors Encountered:   1", "Results exported to:", "Run 1 saved to:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}

	for _, pattern := range []string{"crawl_results_*.json", "discovered_urls_*.txt", "crawl_report_*.md", "crawler_*.log"} {
		matches, err := filepath.Glob(filepath.Join(outDir, pattern))
		if err != nil || len(matches) != 1 {
			t.Errorf("Expected one %s file, got %v (%v)", pattern, matches, err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = store.Close() }()

	count, err := store.CountPages(1)
	if err != nil {
		t.Fatalf("CountPages() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 stored pages, got %d", count)
	}
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := crawler.NewMetrics(reg)
	metrics.PagesExtracted.Inc()

	addr, shutdown, err := serveMetrics("127.0.0.1:0", reg)
	if err != nil {
		t.Fatalf("serveMetrics() error = %v", err)
	}
	defer shutdown()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("Failed to scrape metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}

	if !strings.Contains(string(body), "linkharvest_pages_extracted_total 1") {
		t.Errorf("Expected extracted pages metric, got:\n%s", body)
	}
}
