// Package graphdb mirrors generated knowledge edges into a Bolt graph
// database for exploration.
package graphdb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

const createArticleConstraint = "CREATE CONSTRAINT article_id IF NOT EXISTS FOR (a:Article) REQUIRE a.id IS UNIQUE"

const mergeArticles = `
UNWIND $articles AS a
MERGE (n:Article {id: a.id})
SET n.title = a.title, n.slug = a.slug, n.category = a.category`

// Relationship types cannot be parameters in Cypher, so one statement is
// rendered per type. Types are checked against the known set first.
const mergeEdgesTemplate = `
UNWIND $edges AS e
MATCH (s:Article {id: e.source})
MATCH (t:Article {id: e.target})
MERGE (s)-[r:%s {document_id: e.document_id}]->(t)
SET r.weight = e.weight, r.label = e.label, r.pass = e.pass`

// Stats counts what a Sync sent to the database.
type Stats struct {
	Articles      int
	Relationships int
}

// Mirror writes articles and edges into the graph.
type Mirror struct {
	driver GraphDriver
	log    *zap.Logger
}

func NewMirror(driver GraphDriver, logger *zap.Logger) *Mirror {
	return &Mirror{driver: driver, log: logger.Named("graphdb")}
}

// Sync merges every article as an :Article node and every edge as a typed
// relationship. Re-running with the same edges is a no-op.
func (m *Mirror) Sync(ctx context.Context, articles []schemas.Article, edges []schemas.Edge) (Stats, error) {
	var stats Stats

	if err := m.driver.BuildIndices(ctx); err != nil {
		// Memgraph and older servers reject the constraint syntax; MERGE still works.
		m.log.Warn("Could not create article constraint", zap.Error(err))
	}

	nodes := make([]map[string]any, 0, len(articles))
	for _, a := range articles {
		nodes = append(nodes, map[string]any{
			"id":       int64(a.ID),
			"title":    a.Title,
			"slug":     a.Slug,
			"category": a.Category,
		})
	}
	if len(nodes) > 0 {
		if _, err := m.driver.ExecuteQuery(ctx, mergeArticles, map[string]any{"articles": nodes}); err != nil {
			return stats, fmt.Errorf("failed to merge articles: %w", err)
		}
	}
	stats.Articles = len(nodes)

	byType := make(map[schemas.RelationshipType][]map[string]any)
	for _, e := range edges {
		if !e.Type.Valid() {
			return stats, fmt.Errorf("edge %s has unknown relationship type %q", e.DocumentID, e.Type)
		}
		byType[e.Type] = append(byType[e.Type], map[string]any{
			"document_id": e.DocumentID,
			"source":      int64(e.Source),
			"target":      int64(e.Target),
			"weight":      e.Weight,
			"label":       e.Label,
			"pass":        e.Pass,
		})
	}

	for _, rel := range schemas.RelationshipTypes {
		batch := byType[rel]
		if len(batch) == 0 {
			continue
		}
		query := fmt.Sprintf(mergeEdgesTemplate, rel)
		if _, err := m.driver.ExecuteQuery(ctx, query, map[string]any{"edges": batch}); err != nil {
			return stats, fmt.Errorf("failed to merge %s relationships: %w", rel, err)
		}
		stats.Relationships += len(batch)
	}

	m.log.Info("Mirrored knowledge graph",
		zap.Int("articles", stats.Articles),
		zap.Int("relationships", stats.Relationships))
	return stats, nil
}
