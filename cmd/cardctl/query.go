package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/speki-dev/cardledger/internal/card"
	"github.com/speki-dev/cardledger/internal/model"
	"github.com/speki-dev/cardledger/internal/query"
)

// newQueryCmd exposes a small slice of the set-algebra query engine
// (§4.F) as flags, since the CLI is a thin, informational producer (§6.4)
// rather than a place to carry a full query-string grammar.
func newQueryCmd() *cobra.Command {
	var (
		property   string
		dependents string
		depsOf     string
		transitive bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Evaluate a set-algebra query against the card ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			expr, err := buildQueryExpr(property, dependents, depsOf, transitive)
			if err != nil {
				return err
			}
			for k := range app.Cards.Evaluate(expr) {
				fmt.Println(k.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&property, "property", "", "select by name=value, e.g. kind=instance")
	cmd.Flags().StringVar(&dependents, "dependents-of", "", "select dependents of the given key")
	cmd.Flags().StringVar(&depsOf, "deps-of", "", "select dependencies of the given key")
	cmd.Flags().BoolVar(&transitive, "transitive", false, "follow dependents-of/deps-of transitively")

	return cmd
}

func buildQueryExpr(property, dependents, depsOf string, transitive bool) (query.Expr, error) {
	switch {
	case property != "":
		name, value, ok := strings.Cut(property, "=")
		if !ok {
			return nil, fmt.Errorf("--property must be name=value")
		}
		return query.Property{Name: name, Value: value}, nil

	case dependents != "":
		k, err := model.ParseKey(dependents)
		if err != nil {
			return nil, fmt.Errorf("--dependents-of: %w", err)
		}
		return query.Reference{
			Kind: card.ExplicitDep, Direction: model.Incoming,
			Seed: query.Explicit{Keys: []model.Key{k}}, Transitive: transitive,
		}, nil

	case depsOf != "":
		k, err := model.ParseKey(depsOf)
		if err != nil {
			return nil, fmt.Errorf("--deps-of: %w", err)
		}
		return query.Reference{
			Kind: card.ExplicitDep, Direction: model.Outgoing,
			Seed: query.Explicit{Keys: []model.Key{k}}, Transitive: transitive,
		}, nil

	default:
		return query.All{}, nil
	}
}
