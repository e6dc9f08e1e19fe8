package sqlscript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

const expectedSingleEdge = `-- Generated Knowledge Edges for KSeF Graph
-- Total: 1 edges

BEGIN TRANSACTION;

-- Edge #11: Article 1 → Article 2 (DUPLICATE_OF)
INSERT INTO knowledge_edges (
    document_id, relationship_type, weight, anchor_text,
    is_active, is_visible, created_at, updated_at
) VALUES (
    'abc123',
    'DUPLICATE_OF',
    1.0,
    'Ten sam artykuł',
    1, 1,
    datetime('now'), datetime('now')
);

INSERT INTO knowledge_edges_source_article_lnk (knowledge_edge_id, article_id)
VALUES (last_insert_rowid(), 1);

INSERT INTO knowledge_edges_target_article_lnk (knowledge_edge_id, article_id)
VALUES ((SELECT id FROM knowledge_edges WHERE document_id = 'abc123'), 2);

COMMIT;
`

func TestRender_ExactLayout(t *testing.T) {
	out, err := String(Script{
		Title: "KSeF Graph",
		Edges: []schemas.Edge{{
			DocumentID: "abc123",
			Source:     1,
			Target:     2,
			Type:       schemas.RelationshipDuplicateOf,
			Weight:     1.0,
			Label:      "Ten sam artykuł",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, expectedSingleEdge, out)
}

func TestRender_NumberingAndCounts(t *testing.T) {
	edges := []schemas.Edge{
		{DocumentID: "a", Source: 1, Target: 2, Type: schemas.RelationshipRelatedTo, Weight: 0.7},
		{DocumentID: "b", Source: 2, Target: 3, Type: schemas.RelationshipNextStep, Weight: 0.65},
		{DocumentID: "c", Source: 3, Target: 4, Type: schemas.RelationshipBuildsOn, Weight: 0.8},
	}
	out, err := String(Script{Edges: edges, FirstEdgeNumber: 100})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "-- Generated Knowledge Edges for Knowledge Graph\n-- Total: 3 edges\n"))
	assert.Contains(t, out, "-- Edge #100: Article 1 → Article 2 (RELATED_TO)")
	assert.Contains(t, out, "-- Edge #102: Article 3 → Article 4 (BUILDS_ON)")
	assert.Equal(t, 3, strings.Count(out, "INSERT INTO knowledge_edges ("))
	assert.Equal(t, 3, strings.Count(out, "knowledge_edges_source_article_lnk"))
	assert.Equal(t, 3, strings.Count(out, "knowledge_edges_target_article_lnk"))
	assert.Contains(t, out, "    0.65,\n")
	assert.Equal(t, 1, strings.Count(out, "BEGIN TRANSACTION;"))
	assert.True(t, strings.HasSuffix(out, "COMMIT;\n"))
}

func TestRender_EscapesQuotes(t *testing.T) {
	out, err := String(Script{Edges: []schemas.Edge{{
		DocumentID: "x", Source: 1, Target: 2, Type: schemas.RelationshipRelatedTo, Weight: 0.5,
		Label: "Zobacz więcej o l'API",
	}}})
	require.NoError(t, err)
	assert.Contains(t, out, "'Zobacz więcej o l''API',")
}

func TestRender_RequiresDocumentID(t *testing.T) {
	_, err := String(Script{Edges: []schemas.Edge{{Source: 1, Target: 2}}})
	assert.Error(t, err)
}

func TestRender_Empty(t *testing.T) {
	out, err := String(Script{Title: "T"})
	require.NoError(t, err)
	assert.Equal(t, "-- Generated Knowledge Edges for T\n-- Total: 0 edges\n\nBEGIN TRANSACTION;\n\nCOMMIT;\n", out)
}

func TestFormatWeight(t *testing.T) {
	testCases := map[float64]string{
		1.0:  "1.0",
		0.9:  "0.9",
		0.85: "0.85",
		0.4:  "0.4",
		0:    "0.0",
	}
	for in, want := range testCases {
		assert.Equal(t, want, FormatWeight(in))
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "edges.sql")
	err := WriteFile(path, Script{Title: "KSeF Graph", Edges: []schemas.Edge{{
		DocumentID: "abc123", Source: 1, Target: 2, Type: schemas.RelationshipDuplicateOf, Weight: 1.0, Label: "Ten sam artykuł",
	}}})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, expectedSingleEdge, string(raw))
}
