package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlInsertEdge = `
        INSERT INTO knowledge_edges (document_id, relationship_type, weight, anchor_text, is_active, is_visible, created_at, updated_at)
        VALUES ($1, $2, $3, $4, TRUE, TRUE, $5, $5)
        RETURNING id;
    `
	sqlInsertSourceLink = `
        INSERT INTO knowledge_edges_source_article_lnk (knowledge_edge_id, article_id)
        VALUES ($1, $2);
    `
	sqlInsertTargetLink = `
        INSERT INTO knowledge_edges_target_article_lnk (knowledge_edge_id, article_id)
        VALUES ($1, $2);
    `
	sqlExistingPairs = `
        SELECT s.article_id, t.article_id
        FROM knowledge_edges_source_article_lnk s
        JOIN knowledge_edges_target_article_lnk t ON t.knowledge_edge_id = s.knowledge_edge_id;
    `
)

// Store loads generated edges into the CMS PostgreSQL database.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  time.Now,
	}, nil
}

// LoadEdges inserts every edge with its source and target links in a single
// transaction. Nothing is written if any statement fails.
func (s *Store) LoadEdges(ctx context.Context, edges []schemas.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	now := s.now().UTC()
	for i, e := range edges {
		if e.DocumentID == "" {
			return fmt.Errorf("edge %d (%s) has no document id", i, e)
		}

		var edgeID int64
		if err := tx.QueryRow(ctx, sqlInsertEdge, e.DocumentID, string(e.Type), e.Weight, e.Label, now).Scan(&edgeID); err != nil {
			return fmt.Errorf("failed to insert edge %s (index %d): %w", e.DocumentID, i, err)
		}
		if _, err := tx.Exec(ctx, sqlInsertSourceLink, edgeID, e.Source); err != nil {
			return fmt.Errorf("failed to link source of edge %s: %w", e.DocumentID, err)
		}
		if _, err := tx.Exec(ctx, sqlInsertTargetLink, edgeID, e.Target); err != nil {
			return fmt.Errorf("failed to link target of edge %s: %w", e.DocumentID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Loaded edges into PostgreSQL", zap.Int("edges", len(edges)))
	return nil
}

// ExistingPairs returns the unordered article pairs already connected in
// the database.
func (s *Store) ExistingPairs(ctx context.Context) ([]schemas.Pair, error) {
	rows, err := s.pool.Query(ctx, sqlExistingPairs)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing edges: %w", err)
	}
	defer rows.Close()

	var pairs []schemas.Pair
	for rows.Next() {
		var source, target int
		if err := rows.Scan(&source, &target); err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		pairs = append(pairs, schemas.NewPair(source, target))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	s.log.Debug("Read existing edges", zap.Int("pairs", len(pairs)))
	return pairs, nil
}
