package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/japaniel/wordchain/pkg/config"
	"github.com/japaniel/wordchain/pkg/db"
	"github.com/japaniel/wordchain/pkg/text"
	"github.com/japaniel/wordchain/pkg/wordchain"
)

// app is the state shared by every subcommand once the root pre-run has
// loaded configuration and opened the database.
type app struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	conn   *sql.DB
	engine *wordchain.Engine
}

// NewRootCmd builds the wordchain command tree.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "wordchain",
		Short: "Learn word trigrams and babble them back",
		Long: `wordchain learns which words follow which from plain text and
generates new phrases by a weighted random walk over what it has seen.

Reads configuration from --config, a .env file and the environment:
  WORDS_DB / WORDCHAIN_DB   location of the sqlite words db
  WORDCHAIN_DRIVER          sqlite3 (cgo) or sqlite (pure Go)
  WORDCHAIN_TRIGGER         word that triggers a reply
  WORDCHAIN_TOKENIZER       whitespace or japanese
  WORDCHAIN_WORKERS         tokenizer goroutines for read`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "wordchain.yaml", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to SQLite database (overrides config)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newSummaryCmd(a),
		newMigrateCmd(a),
		newCompleteCmd(a),
		newReplyCmd(a),
		newAddCmd(a),
		newReadCmd(a),
		newReadURLCmd(a),
	)

	// Post-run hooks are skipped when RunE fails, so teardown is deferred
	// inside every subcommand instead.
	for _, sub := range cmd.Commands() {
		run := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() { err = errors.Join(err, a.teardown()) }()
			return run(cmd, args)
		}
	}
	return cmd, a
}

func (a *app) setup(cmd *cobra.Command, args []string) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(err, a.teardown())
		}
	}()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.verbose {
		cfg.Log.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	// Initialize logger
	zc := zap.NewProductionConfig()
	if cfg.Log.Verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	a.logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tok, err := text.NewTokenizer(cfg.Tokenizer)
	if err != nil {
		return err
	}

	a.conn, err = db.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.engine = wordchain.New(a.conn,
		wordchain.WithLogger(a.logger),
		wordchain.WithTokenizer(tok),
		wordchain.WithWorkers(cfg.Ingest.Workers),
		wordchain.WithProgressEvery(cfg.Ingest.ProgressEvery),
	)
	return nil
}

func (a *app) teardown() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
