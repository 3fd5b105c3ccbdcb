package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mvail/arbor"
	"github.com/mvail/arbor/internal/embed"
)

var (
	flagDataDir string
	flagFormat  string
)

// cfg is the process-wide configuration: flags layered over ARBOR_*
// environment variables layered over an optional config file.
var cfg = viper.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Python declaration analysis with semantic search",
	Long:          "Arbor parses Python files with tree-sitter into a declaration tree, caches results in SQLite, and indexes each declaration's digest for embedding-based search.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: ~/.arbor)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(similarityCmd)
	rootCmd.AddCommand(dropCacheCmd)
}

// initConfig wires viper: ARBOR_* environment variables, an optional
// config.yaml in the data directory, and defaults.
func initConfig() error {
	cfg.SetEnvPrefix("ARBOR")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	cfg.AutomaticEnv()

	cfg.SetDefault("openai.base-url", "")
	cfg.SetDefault("openai.api-key", "")
	cfg.SetDefault("embedding.model", "")
	cfg.SetDefault("provider.timeout", 60*time.Second)

	dir, err := dataDir()
	if err != nil {
		return err
	}
	cfg.SetConfigName("config")
	cfg.SetConfigType("yaml")
	cfg.AddConfigPath(dir)
	// A missing config file is fine; a malformed one is not.
	if err := cfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// dataDir resolves the data directory from --data-dir or the default ~/.arbor.
func dataDir() (string, error) {
	if flagDataDir != "" {
		return flagDataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".arbor"), nil
}

func dbPath(dir string) string {
	return filepath.Join(dir, "cache", "analyses.db")
}

func snapshotPath(dir string) string {
	return filepath.Join(dir, "embeddings", "embeddings.gob")
}

// newProvider builds the embedding client from configuration. Returns an
// error when no API key is configured.
func newProvider() (arbor.Provider, error) {
	return embed.NewClient(embed.Config{
		BaseURL: cfg.GetString("openai.base-url"),
		APIKey:  cfg.GetString("openai.api-key"),
		Model:   cfg.GetString("embedding.model"),
		Timeout: cfg.GetDuration("provider.timeout"),
	})
}

// newEngine opens the engine. requireProvider controls whether a missing
// API key is fatal or just disables embedding.
func newEngine(requireProvider bool) (*arbor.Engine, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, "cache"), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	provider, err := newProvider()
	if err != nil {
		if requireProvider {
			return nil, err
		}
		provider = nil
	}
	return arbor.New(dbPath(dir), snapshotPath(dir), provider)
}

var flagNoEmbed bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [directory]",
	Short: "Analyze Python files and build the declaration tree",
	Long:  "Parses Python files with tree-sitter, prints the declaration forest, caches it in SQLite, and embeds each declaration's digest for later search.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&flagNoEmbed, "no-embed", false, "skip embedding generation after analysis")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	engine, err := newEngine(!flagNoEmbed)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()
	trees, analyzeErr := engine.AnalyzeDirectory(ctx, targetDir)

	if flagFormat == "json" {
		if err := outputTreesJSON(os.Stdout, trees); err != nil {
			return err
		}
	} else {
		outputTreesText(os.Stdout, trees)
	}
	if analyzeErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", analyzeErr)
	}

	if !flagNoEmbed {
		engine.IngestTrees(trees)
		if err := engine.EmbedPending(ctx); err != nil {
			return fmt.Errorf("embedding: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "Analyzed %d file(s) in %s\n", len(trees), time.Since(start).Round(time.Millisecond))
	return nil
}

var (
	flagLimit     int
	flagThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find declarations similar to the query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&flagLimit, "limit", 5, "maximum number of results")
	searchCmd.Flags().Float64Var(&flagThreshold, "threshold", 0.7, "similarity threshold (0-1)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(true)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	matches, err := engine.Search(context.Background(), args[0], flagLimit, flagThreshold)
	if err != nil {
		return err
	}
	if flagFormat == "json" {
		return outputMatchesJSON(os.Stdout, matches)
	}
	outputMatchesText(os.Stdout, matches)
	return nil
}

var similarityCmd = &cobra.Command{
	Use:   "similarity <query> <file-or-text>",
	Short: "Score a query against a file's contents or a literal string",
	Args:  cobra.ExactArgs(2),
	RunE:  runSimilarity,
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(true)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	content := args[1]
	if data, err := os.ReadFile(args[1]); err == nil {
		content = string(data)
	}

	score, err := engine.SimilarityText(context.Background(), args[0], content)
	if err != nil {
		return err
	}
	fmt.Printf("%.4f\n", score)
	return nil
}

var dropCacheCmd = &cobra.Command{
	Use:   "drop-cache",
	Short: "Delete the analysis cache and embedding snapshot",
	Args:  cobra.NoArgs,
	RunE:  runDropCache,
}

func runDropCache(cmd *cobra.Command, args []string) error {
	dir, err := dataDir()
	if err != nil {
		return err
	}
	for _, path := range []string{dbPath(dir), snapshotPath(dir)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	fmt.Fprintf(os.Stderr, "Cleared cache under %s\n", dir)
	return nil
}

// resolveTargetDir returns the absolute path of the directory to analyze.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
