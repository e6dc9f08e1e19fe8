package schemas

import "fmt"

// -- Canonical Knowledge Graph Data Model --

// RelationshipType defines the semantic type of a knowledge edge between
// two articles. The values match the relationship_type column of the CMS.
type RelationshipType string

const (
	RelationshipDuplicateOf  RelationshipType = "DUPLICATE_OF" // Same logical article published under two ids.
	RelationshipRelatedTo    RelationshipType = "RELATED_TO"   // Shared category, keyword or a random link.
	RelationshipPrerequisite RelationshipType = "PREREQUISITE" // Source should be read before the target.
	RelationshipBuildsOn     RelationshipType = "BUILDS_ON"    // Source extends the target.
	RelationshipNextStep     RelationshipType = "NEXT_STEP"    // Hub article pointing at further reading.
	RelationshipSimilarTo    RelationshipType = "SIMILAR_TO"
	RelationshipContrasts    RelationshipType = "CONTRASTS"
	RelationshipExemplifies  RelationshipType = "EXEMPLIFIES"
)

// RelationshipTypes lists every supported relationship type in a stable order.
var RelationshipTypes = []RelationshipType{
	RelationshipDuplicateOf,
	RelationshipRelatedTo,
	RelationshipPrerequisite,
	RelationshipBuildsOn,
	RelationshipNextStep,
	RelationshipSimilarTo,
	RelationshipContrasts,
	RelationshipExemplifies,
}

// Valid reports whether r is one of the known relationship types.
func (r RelationshipType) Valid() bool {
	for _, known := range RelationshipTypes {
		if r == known {
			return true
		}
	}
	return false
}

// Edge is a directed, typed and weighted association between two articles.
// Source and Target hold article ids, not document ids.
type Edge struct {
	DocumentID string           `json:"document_id" yaml:"document_id"`
	Source     int              `json:"source" yaml:"source"`
	Target     int              `json:"target" yaml:"target"`
	Type       RelationshipType `json:"relationship_type" yaml:"relationship_type"`
	Weight     float64          `json:"weight" yaml:"weight"`
	Label      string           `json:"anchor_text" yaml:"anchor_text"`
	// Category is the category the label was rendered against.
	Category string `json:"-" yaml:"-"`
	// Pass names the generation pass that produced the edge.
	Pass string `json:"-" yaml:"-"`
}

// Pair returns the unordered pair covered by the edge.
func (e Edge) Pair() Pair {
	return NewPair(e.Source, e.Target)
}

func (e Edge) String() string {
	return fmt.Sprintf("%d -[%s %.2f]-> %d", e.Source, e.Type, e.Weight, e.Target)
}

// Pair is an unordered pair of article ids, normalised so that A <= B.
type Pair struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
}

// NewPair builds the normalised pair for two article ids.
func NewPair(x, y int) Pair {
	if x > y {
		x, y = y, x
	}
	return Pair{A: x, B: y}
}
