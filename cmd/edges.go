// File: cmd/edges.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kgtool/api/schemas"
	"github.com/xkilldash9x/kgtool/internal/config"
	"github.com/xkilldash9x/kgtool/internal/graphdb"
	"github.com/xkilldash9x/kgtool/internal/knowledgegraph"
	"github.com/xkilldash9x/kgtool/internal/observability"
	"github.com/xkilldash9x/kgtool/internal/reporting"
	"github.com/xkilldash9x/kgtool/internal/sqlscript"
	"github.com/xkilldash9x/kgtool/internal/store"
)

// edgeStore is the PostgreSQL side of the edges command.
type edgeStore interface {
	LoadEdges(ctx context.Context, edges []schemas.Edge) error
	ExistingPairs(ctx context.Context) ([]schemas.Pair, error)
}

// scriptApplier runs a rendered script against SQLite.
type scriptApplier interface {
	Migrate(ctx context.Context) error
	ApplyScript(ctx context.Context, script string) error
	CountEdges(ctx context.Context) (int64, error)
	ExistingPairs(ctx context.Context) ([]schemas.Pair, error)
}

// graphMirror copies the result into a graph database.
type graphMirror interface {
	Sync(ctx context.Context, articles []schemas.Article, edges []schemas.Edge) (graphdb.Stats, error)
}

// sinkProvider opens the optional outputs of the edges command. Each Create
// returns a cleanup function that releases the connection.
type sinkProvider interface {
	Store(ctx context.Context, cfg config.Interface, logger *zap.Logger) (edgeStore, func(), error)
	SQLite(ctx context.Context, cfg config.Interface, logger *zap.Logger) (scriptApplier, func(), error)
	Graph(ctx context.Context, cfg config.Interface, logger *zap.Logger) (graphMirror, func(), error)
}

type defaultSinkProvider struct{}

func (defaultSinkProvider) Store(ctx context.Context, cfg config.Interface, logger *zap.Logger) (edgeStore, func(), error) {
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (KGTOOL_DATABASE_URL)")
	}
	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

func (defaultSinkProvider) SQLite(_ context.Context, cfg config.Interface, logger *zap.Logger) (scriptApplier, func(), error) {
	applier, err := store.OpenSQLite(cfg.SQLite().Path, logger)
	if err != nil {
		return nil, nil, err
	}
	return applier, func() {
		if err := applier.Close(); err != nil {
			logger.Warn("Failed to close sqlite database", zap.Error(err))
		}
	}, nil
}

func (defaultSinkProvider) Graph(ctx context.Context, cfg config.Interface, logger *zap.Logger) (graphMirror, func(), error) {
	driver, err := graphdb.NewNeo4jDriver(ctx, cfg.Neo4j())
	if err != nil {
		return nil, nil, err
	}
	return graphdb.NewMirror(driver, logger), func() {
		// The caller's context may already be cancelled.
		if err := driver.Close(context.Background()); err != nil {
			logger.Warn("Failed to close neo4j driver", zap.Error(err))
		}
	}, nil
}

func newEdgesCmd(sinks sinkProvider) *cobra.Command {
	edgesCmd := &cobra.Command{
		Use:   "edges",
		Short: "Generate knowledge graph edges and write them as a SQL script",
		Long: `Runs the edge passes (duplicates, categories, prerequisites, keywords, hubs,
gap filling and random fill) over the article catalogue and writes a SQLite
transaction script. The result can also be applied to SQLite, loaded into
PostgreSQL or mirrored into Neo4j.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runEdges(ctx, observability.GetLogger(), cfg, cmd.OutOrStdout(), sinks)
		},
	}

	flags := edgesCmd.Flags()
	flags.String("catalogue", "", "YAML catalogue file (default: embedded catalogue)")
	flags.StringP("output", "o", "", "SQL output path (default /tmp/generate_edges.sql)")
	flags.Int("target", 0, "total number of edges to reach (default 490)")
	flags.Uint64("seed", 0, "random seed, 0 picks one from the clock")
	flags.Int("max-attempts", 0, "upper bound on random fill draws")
	flags.Int("first-edge", 0, "number of the first edge comment in the script")
	flags.Bool("load-postgres", false, "insert the edges into PostgreSQL (database.url)")
	flags.Bool("existing-from-db", false, "skip pairs already linked in PostgreSQL or the --apply-sqlite file")
	flags.Bool("apply-sqlite", false, "execute the script against the SQLite file at --sqlite-path")
	flags.String("sqlite-path", "", "SQLite database file")
	flags.Bool("sqlite-migrate", false, "create the edge tables in the SQLite file first")
	flags.Bool("mirror-neo4j", false, "mirror articles and edges into Neo4j")
	flags.String("report", "", "write a run report to this path, - for stdout")
	flags.String("report-format", "", "run report format: json or yaml")
	return edgesCmd
}

// runEdges contains the testable core of the edges command.
func runEdges(ctx context.Context, logger *zap.Logger, cfg config.Interface, out io.Writer, sinks sinkProvider) error {
	synth := cfg.Synth()

	ds, err := knowledgegraph.LoadDataset(synth.Catalogue)
	if err != nil {
		return fmt.Errorf("failed to load catalogue: %w", err)
	}

	seed := synth.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Info("Generating knowledge edges",
		zap.String("catalogue", ds.Title),
		zap.Int("articles", len(ds.Articles)),
		zap.Int("target", synth.Target),
		zap.Uint64("seed", seed))

	opts := knowledgegraph.DefaultOptions()
	opts.Target = synth.Target
	opts.MaxFillAttempts = synth.MaxFillAttempts
	gen, err := knowledgegraph.NewGenerator(ds, rand.New(rand.NewPCG(seed, seed)), opts, logger)
	if err != nil {
		return err
	}

	db := cfg.Database()
	var pg edgeStore
	if db.LoadEdges || (db.SeedExisting && db.URL != "") {
		s, closeStore, err := sinks.Store(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to open edge store: %w", err)
		}
		defer closeStore()
		pg = s
	}

	var lite scriptApplier
	if cfg.SQLite().Apply {
		applier, closeDB, err := sinks.SQLite(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		defer closeDB()
		if cfg.SQLite().Migrate {
			if err := applier.Migrate(ctx); err != nil {
				return err
			}
		}
		lite = applier
	}

	if db.SeedExisting {
		pairs, err := existingPairs(ctx, logger, pg, lite)
		if err != nil {
			return err
		}
		gen.Seed(pairs)
	}

	res, err := gen.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(out, res)

	script := sqlscript.Script{Title: ds.Title, Edges: res.Edges, FirstEdgeNumber: synth.FirstEdgeNumber}
	if err := sqlscript.WriteFile(synth.Output, script); err != nil {
		return err
	}
	fmt.Fprintf(out, "SQL written to: %s\n", synth.Output)

	if synth.Report != "" {
		meta := reporting.Meta{Version: Version, Catalogue: ds.Title, Articles: len(ds.Articles), Seed: seed, Output: synth.Output}
		if err := writeReport(synth, reporting.NewReport(res, meta)); err != nil {
			return err
		}
		logger.Info("Run report written", zap.String("path", synth.Report), zap.String("format", synth.ReportFormat))
	}

	if lite != nil {
		if err := applySQLite(ctx, lite, cfg.SQLite().Path, out, script); err != nil {
			return err
		}
	}

	if cfg.Database().LoadEdges {
		if err := pg.LoadEdges(ctx, res.Edges); err != nil {
			return err
		}
		fmt.Fprintf(out, "Loaded %d edges into PostgreSQL\n", len(res.Edges))
	}

	if cfg.Neo4j().Enabled {
		mirror, closeGraph, err := sinks.Graph(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to open graph database: %w", err)
		}
		defer closeGraph()
		stats, err := mirror.Sync(ctx, ds.Articles, res.Edges)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Mirrored %d articles and %d relationships into Neo4j\n", stats.Articles, stats.Relationships)
	}
	return nil
}

func writeReport(synth config.SynthConfig, report *reporting.Report) error {
	reporter, err := reporting.New(synth.ReportFormat, synth.Report)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}
	if err := reporter.Write(report); err != nil {
		reporter.Close()
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return reporter.Close()
}

// existingPairs collects already linked pairs from every open sink.
func existingPairs(ctx context.Context, logger *zap.Logger, pg edgeStore, lite scriptApplier) ([]schemas.Pair, error) {
	var pairs []schemas.Pair
	if pg != nil {
		p, err := pg.ExistingPairs(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Seeded existing pairs from PostgreSQL", zap.Int("pairs", len(p)))
		pairs = append(pairs, p...)
	}
	if lite != nil {
		p, err := lite.ExistingPairs(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Seeded existing pairs from SQLite", zap.Int("pairs", len(p)))
		pairs = append(pairs, p...)
	}
	return pairs, nil
}

func applySQLite(ctx context.Context, applier scriptApplier, path string, out io.Writer, script sqlscript.Script) error {
	text, err := sqlscript.String(script)
	if err != nil {
		return err
	}
	if err := applier.ApplyScript(ctx, text); err != nil {
		return err
	}
	total, err := applier.CountEdges(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Applied script to %s (%d edges in table)\n", path, total)
	return nil
}

func printSummary(out io.Writer, res *knowledgegraph.Result) {
	rule := strings.Repeat("=", 60)
	for _, p := range res.Passes {
		fmt.Fprintf(out, "%-14s %4d edges\n", p.Name, p.Edges)
	}
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "TOTAL EDGES GENERATED: %d\n", len(res.Edges))
	if !res.Complete {
		fmt.Fprintf(out, "Target %d not reached: %d short after %d fill attempts\n", res.Target, res.Shortfall(), res.FillAttempts)
	}
	fmt.Fprintln(out, rule)
}
