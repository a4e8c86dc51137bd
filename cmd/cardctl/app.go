// Command cardctl is a thin external event producer over internal/boundary
// (§6.4): it decodes flags into modifiers and submits them, but holds no
// ledger semantics of its own. One root command, one file per subcommand
// group, a shared App holding the opened backends.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/speki-dev/cardledger/internal/blobstore"
	"github.com/speki-dev/cardledger/internal/boundary"
	"github.com/speki-dev/cardledger/internal/card"
	"github.com/speki-dev/cardledger/internal/config"
	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/ledger"
	"github.com/speki-dev/cardledger/internal/review"
)

// App bundles the opened backend and the two category ledgers cardctl
// exposes: cards (the primary item category) and reviews (adjacent
// scheduling data, §4.G).
type App struct {
	Config  config.Config
	Cards   *boundary.Ledger[card.Card]
	Reviews *boundary.Ledger[review.Review]

	closers []func() error
}

func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	flagConfigFile string
	flagActor      string
	flagInMemory   bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cardctl",
		Short:         "Submit and query events against a cardledger ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to config.toml (default: ./.cardledger/config.toml)")
	root.PersistentFlags().StringVar(&flagActor, "actor", "", "actor name recorded on submitted events (overrides config)")
	root.PersistentFlags().BoolVar(&flagInMemory, "in-memory", false, "run without a durable backend")

	root.AddCommand(
		newCreateCmd(),
		newModifyCmd(),
		newDeleteCmd(),
		newShowCmd(),
		newQueryCmd(),
		newExportCmd(),
		newImportCmd(),
		newReviewCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cardctl:", err)
		os.Exit(1)
	}
}

// openApp resolves configuration and opens the backends every subcommand
// needs. Called once per invocation from each subcommand's RunE.
func openApp() (*App, error) {
	v := viper.New()
	configPath := flagConfigFile
	if configPath == "" {
		configPath = config.DefaultDir + "/config.toml"
	}
	cfg, err := config.Load(configPath, v)
	if err != nil {
		return nil, err
	}
	if flagActor != "" {
		cfg.Actor = flagActor
	}
	if flagInMemory {
		cfg.InMemory = true
	}

	app := &App{Config: cfg}

	var cardStore eventlog.Store
	var reviewStore eventlog.Store
	clock := func() time.Time { return time.Now() }

	if cfg.InMemory {
		cardStore = eventlog.NewMemoryStore()
		reviewStore = eventlog.NewMemoryStore()
	} else {
		dbPath := config.ResolveDatabasePath(cfg, ".")
		if err := os.MkdirAll(parentDir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		blobs, err := blobstore.OpenSQLiteStore(dbPath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, blobs.Close)

		cardStore, err = sqliteEventStore(blobs.DB(), "card")
		if err != nil {
			return nil, err
		}
		reviewStore, err = sqliteEventStore(blobs.DB(), "review")
		if err != nil {
			return nil, err
		}
	}

	// The card and review categories are entirely independent ledgers
	// (separate event logs, separate engines), so opening and replaying
	// each can proceed concurrently rather than one after the other.
	var g errgroup.Group
	g.Go(func() error {
		cardChain, err := eventlog.OpenChain(cardStore)
		if err != nil {
			return fmt.Errorf("open card event log: %w", err)
		}
		cardEngine, err := ledger.NewEngine[card.Card]("card", card.Model{}, cardChain, clock)
		if err != nil {
			return fmt.Errorf("rebuild card ledger: %w", err)
		}
		app.Cards = &boundary.Ledger[card.Card]{Engine: cardEngine, Chain: cardChain}
		return nil
	})
	g.Go(func() error {
		reviewChain, err := eventlog.OpenChain(reviewStore)
		if err != nil {
			return fmt.Errorf("open review event log: %w", err)
		}
		reviewEngine, err := ledger.NewEngine[review.Review]("review", review.Model{}, reviewChain, clock)
		if err != nil {
			return fmt.Errorf("rebuild review ledger: %w", err)
		}
		app.Reviews = &boundary.Ledger[review.Review]{Engine: reviewEngine, Chain: reviewChain}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return app, nil
}

func sqliteEventStore(db *sql.DB, category string) (*eventlog.SQLiteStore, error) {
	return eventlog.OpenSQLiteStore(db, category)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func actorFlag(app *App, override string) string {
	if override != "" {
		return override
	}
	return app.Config.Actor
}
