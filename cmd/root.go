package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/issuedeck/issuedeck/internal/activity"
	"github.com/issuedeck/issuedeck/internal/github"
	"github.com/issuedeck/issuedeck/internal/importer"
	"github.com/issuedeck/issuedeck/internal/llm"
	"github.com/issuedeck/issuedeck/internal/notify"
	"github.com/issuedeck/issuedeck/internal/output"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
	"github.com/issuedeck/issuedeck/internal/triage"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "issuedeck",
	Short: "Issue tracker with GitHub import and AI triage",
	Long: `issuedeck tracks projects and issues with a resolve/close lifecycle,
imports GitHub repositories with their issues, scans source trees for
code findings, and classifies issues with an LLM-backed triage engine
that degrades to deterministic heuristics.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/issuedeck/config.yaml)")
	rootCmd.PersistentFlags().String("user", "", "Acting user id for lifecycle operations")
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("issuedeck %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "issuedeck")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ISSUEDECK")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "issuedeck")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "issuedeck.db"))
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", llm.DefaultModel)
	viper.SetDefault("github.token", "")
	viper.SetDefault("slack.webhook_url", "")

	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store opens lazily so config/version commands run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// deps bundles the wired service graph for commands and servers.
type deps struct {
	store      store.Store
	tracker    *tracker.Service
	classifier *triage.Classifier
	importer   *importer.Importer
	activities *activity.Recorder
}

// buildDeps wires the service layer from config: store, LLM completer,
// GitHub client, Slack notifier, activity recorder.
func buildDeps() (*deps, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	completer := llm.NewClient(viper.GetString("anthropic.api_key"), viper.GetString("anthropic.model"))
	classifier := triage.NewClassifier(completer)
	recorder := activity.NewRecorder(s, logger)
	notifier := notify.NewNotifier(viper.GetString("slack.webhook_url"), logger)

	svc := tracker.NewService(s, recorder, notifier, completer, logger)
	gh := github.NewClient(viper.GetString("github.token"))
	imp := importer.NewImporter(s, gh, classifier, logger)

	return &deps{
		store:      s,
		tracker:    svc,
		classifier: classifier,
		importer:   imp,
		activities: recorder,
	}, nil
}

// actingUser returns the --user flag value, falling back to the
// ISSUEDECK_USER environment variable via viper.
func actingUser() string {
	return viper.GetString("user")
}
