// Package sqlscript renders generated knowledge edges as a SQLite
// transaction script for the CMS database.
package sqlscript

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

// DefaultFirstEdgeNumber is the number of the first edge comment. Edges
// numbered below it already exist in the target database.
const DefaultFirstEdgeNumber = 11

// Script describes one rendered transaction.
type Script struct {
	// Title names the graph in the header comment.
	Title           string
	Edges           []schemas.Edge
	FirstEdgeNumber int
}

// Render writes the script to w.
func Render(w io.Writer, s Script) error {
	title := s.Title
	if title == "" {
		title = "Knowledge Graph"
	}
	first := s.FirstEdgeNumber
	if first <= 0 {
		first = DefaultFirstEdgeNumber
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "-- Generated Knowledge Edges for %s\n", title)
	fmt.Fprintf(bw, "-- Total: %d edges\n\n", len(s.Edges))
	bw.WriteString("BEGIN TRANSACTION;\n\n")

	for i, e := range s.Edges {
		if e.DocumentID == "" {
			return fmt.Errorf("edge %s has no document id", e)
		}
		docID := Quote(e.DocumentID)
		fmt.Fprintf(bw, "-- Edge #%d: Article %d → Article %d (%s)\n", first+i, e.Source, e.Target, e.Type)
		bw.WriteString("INSERT INTO knowledge_edges (\n")
		bw.WriteString("    document_id, relationship_type, weight, anchor_text,\n")
		bw.WriteString("    is_active, is_visible, created_at, updated_at\n")
		bw.WriteString(") VALUES (\n")
		fmt.Fprintf(bw, "    %s,\n", docID)
		fmt.Fprintf(bw, "    %s,\n", Quote(string(e.Type)))
		fmt.Fprintf(bw, "    %s,\n", FormatWeight(e.Weight))
		fmt.Fprintf(bw, "    %s,\n", Quote(e.Label))
		bw.WriteString("    1, 1,\n")
		bw.WriteString("    datetime('now'), datetime('now')\n")
		bw.WriteString(");\n\n")
		bw.WriteString("INSERT INTO knowledge_edges_source_article_lnk (knowledge_edge_id, article_id)\n")
		fmt.Fprintf(bw, "VALUES (last_insert_rowid(), %d);\n\n", e.Source)
		// last_insert_rowid() now points at the source link row, so the
		// target link resolves the edge by document id.
		bw.WriteString("INSERT INTO knowledge_edges_target_article_lnk (knowledge_edge_id, article_id)\n")
		fmt.Fprintf(bw, "VALUES ((SELECT id FROM knowledge_edges WHERE document_id = %s), %d);\n\n", docID, e.Target)
	}

	bw.WriteString("COMMIT;\n")
	return bw.Flush()
}

// String renders the script into memory.
func String(s Script) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteFile renders the script to path, creating parent directories.
func WriteFile(path string, s Script) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Render(f, s); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Quote returns s as a single-quoted SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatWeight prints a weight with at least one decimal, e.g. 1.0, 0.9, 0.85.
func FormatWeight(w float64) string {
	s := strconv.FormatFloat(w, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
