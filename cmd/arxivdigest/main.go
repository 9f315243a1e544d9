package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arxivdigest/arxivdigest/internal/archive"
	"github.com/arxivdigest/arxivdigest/internal/config"
	"github.com/arxivdigest/arxivdigest/internal/paper"
	"github.com/arxivdigest/arxivdigest/internal/pipeline"
	"github.com/arxivdigest/arxivdigest/internal/server"
	"github.com/arxivdigest/arxivdigest/internal/source"
	"github.com/arxivdigest/arxivdigest/internal/store"
	"github.com/arxivdigest/arxivdigest/internal/window"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "arxivdigest",
	Short:   "Daily arXiv paper digests",
	Long:    "arxivdigest collects, deduplicates, and summarizes newly announced arXiv papers into daily digests.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("arxivdigest", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/arxivdigest/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure categories, the paper source, and the LLM backend.")
		return nil
	},
}

// --- run command ---

var (
	runDate   string
	runSource string
	runModel  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> dedupe -> summarize -> report",
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDate, err := resolveDate(runDate)
		if err != nil {
			return err
		}
		if runSource != "" {
			cfg.Source = runSource
		}
		if runModel != "" {
			cfg.Summarization.Model = runModel
			cfg.Summarization.OpenAIModel = runModel
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, openStore(), db)
		if err != nil {
			return err
		}

		result := pipe.Run(context.Background(), targetDate)
		printSteps(result)

		if result.Failed() {
			return fmt.Errorf("pipeline failed")
		}
		fmt.Println("\nPipeline complete! Run 'arxivdigest serve' to browse the digest.")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "Target date (YYYY-MM-DD, default today)")
	runCmd.Flags().StringVar(&runSource, "source", "", "Override paper source (api, scrape, rss)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Override summarization model")
}

// --- report command ---

var (
	reportDate  string
	resummarize bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Regenerate reports from a stored batch without refetching",
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDate, err := resolveDate(reportDate)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, openStore(), db)
		if err != nil {
			return err
		}

		result := pipe.Rebuild(context.Background(), targetDate, resummarize)
		printSteps(result)

		if result.Failed() {
			return fmt.Errorf("report generation failed")
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Target date (YYYY-MM-DD, default today)")
	reportCmd.Flags().BoolVar(&resummarize, "resummarize", false, "Re-run summarization before rendering")
}

// --- lookup command ---

var lookupCmd = &cobra.Command{
	Use:   "lookup [id or title]",
	Short: "Look up a single paper by arXiv ID or exact title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := source.NewAPISource(window.Window{}, cfg.Categories, 1)
		rec, err := src.Lookup(context.Background(), args[0])
		if err != nil {
			return err
		}

		printRecord(rec)
		return nil
	},
}

func printRecord(rec *paper.Record) {
	fmt.Printf("%s\n", rec.Title)
	fmt.Printf("  ID:        %s\n", rec.ID)
	fmt.Printf("  URL:       %s\n", rec.URL)
	fmt.Printf("  PDF:       %s\n", rec.PDFURL)
	fmt.Printf("  Category:  %s\n", rec.PrimaryCategory)
	fmt.Printf("  Published: %s\n", rec.Published.Format("2006-01-02"))
	fmt.Printf("  Updated:   %s\n", rec.Updated.Format("2006-01-02"))
	if len(rec.Authors) > 0 {
		fmt.Printf("  Authors:   %s\n", joinTruncated(rec.Authors, 5))
	}
	if rec.Comments != "" {
		fmt.Printf("  Comments:  %s\n", rec.Comments)
	}
	if rec.Abstract != "" {
		fmt.Printf("\n%s\n", rec.Abstract)
	}
}

func joinTruncated(names []string, max int) string {
	if len(names) <= max {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:max], ", ") + fmt.Sprintf(" (and %d more)", len(names)-max)
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n\n", time.Now().In(paper.ArchiveZone).Format("2006-01-02"))
		fmt.Println("Archive:")
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Papers: %d\n", stats.Papers)
		fmt.Printf("  Failed summaries: %d\n", stats.FailedPapers)
		if stats.FirstRun != "" {
			fmt.Printf("  Range: %s to %s\n", stats.FirstRun, stats.LastRun)
		}
		if len(stats.TopClassifiers) > 0 {
			fmt.Println("\nTop classifiers:")
			for _, c := range stats.TopClassifiers {
				fmt.Printf("  %s: %d\n", c.Label, c.Count)
			}
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local digest viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		if port == 0 {
			port = 8000
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on")
}

// resolveDate parses an explicit --date flag or falls back to today in the
// archive's reference zone.
func resolveDate(flag string) (time.Time, error) {
	if flag == "" {
		return time.Now().In(paper.ArchiveZone), nil
	}
	t, err := time.ParseInLocation("2006-01-02", flag, paper.ArchiveZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", flag)
	}
	return t, nil
}

func printSteps(result *pipeline.Result) {
	total := len(result.Steps)
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, total, step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

func openStore() *store.Store {
	return store.New(filepath.Join(cfg.GetDataDir(), "papers"))
}

func openDB() (*archive.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "arxivdigest.db")
	return archive.Open(dbPath)
}
