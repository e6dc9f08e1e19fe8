package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

// KnowledgeEdge is the knowledge_edges row written by generated scripts.
type KnowledgeEdge struct {
	ID               uint   `gorm:"primaryKey"`
	DocumentID       string `gorm:"index"`
	RelationshipType string
	Weight           float64
	AnchorText       string
	IsActive         bool
	IsVisible        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (KnowledgeEdge) TableName() string { return "knowledge_edges" }

// EdgeSourceLink joins an edge to its source article.
type EdgeSourceLink struct {
	ID              uint `gorm:"primaryKey"`
	KnowledgeEdgeID uint `gorm:"index"`
	ArticleID       int  `gorm:"index"`
}

func (EdgeSourceLink) TableName() string { return "knowledge_edges_source_article_lnk" }

// EdgeTargetLink joins an edge to its target article.
type EdgeTargetLink struct {
	ID              uint `gorm:"primaryKey"`
	KnowledgeEdgeID uint `gorm:"index"`
	ArticleID       int  `gorm:"index"`
}

func (EdgeTargetLink) TableName() string { return "knowledge_edges_target_article_lnk" }

// SQLiteApplier runs generated SQL scripts against a SQLite database file.
type SQLiteApplier struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteApplier, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
	}
	// Scripts carry their own BEGIN/COMMIT, so every statement must share one connection.
	sqlDB.SetMaxOpenConns(1)
	return &SQLiteApplier{db: db, log: logger.Named("sqlite")}, nil
}

// Migrate creates the edge and link tables if they are missing. A CMS
// database already has them; this is for scratch files.
func (a *SQLiteApplier) Migrate(ctx context.Context) error {
	if err := a.db.WithContext(ctx).AutoMigrate(&KnowledgeEdge{}, &EdgeSourceLink{}, &EdgeTargetLink{}); err != nil {
		return fmt.Errorf("failed to migrate edge tables: %w", err)
	}
	return nil
}

// ApplyScript executes a full script, including its own BEGIN/COMMIT.
func (a *SQLiteApplier) ApplyScript(ctx context.Context, script string) error {
	if err := a.db.WithContext(ctx).Exec(script).Error; err != nil {
		// A failed statement leaves the script's transaction open.
		_ = a.db.Exec("ROLLBACK").Error
		return fmt.Errorf("failed to apply edge script: %w", err)
	}
	a.log.Info("Applied edge script to SQLite")
	return nil
}

// CountEdges returns the number of rows in knowledge_edges.
func (a *SQLiteApplier) CountEdges(ctx context.Context) (int64, error) {
	var n int64
	if err := a.db.WithContext(ctx).Model(&KnowledgeEdge{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return n, nil
}

// ExistingPairs returns the unordered article pairs already linked in the file.
func (a *SQLiteApplier) ExistingPairs(ctx context.Context) ([]schemas.Pair, error) {
	var rows []struct {
		Source int
		Target int
	}
	err := a.db.WithContext(ctx).
		Table("knowledge_edges_source_article_lnk AS s").
		Select("s.article_id AS source, t.article_id AS target").
		Joins("JOIN knowledge_edges_target_article_lnk AS t ON t.knowledge_edge_id = s.knowledge_edge_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read existing edges: %w", err)
	}

	pairs := make([]schemas.Pair, 0, len(rows))
	for _, r := range rows {
		pairs = append(pairs, schemas.NewPair(r.Source, r.Target))
	}
	return pairs, nil
}

// Close releases the underlying connection pool.
func (a *SQLiteApplier) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
