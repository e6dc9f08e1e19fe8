package schemas

// Article is the catalogue view of a CMS content record used by the edge
// generator. Slugs are not unique: two ids sharing a slug are the same
// logical article.
type Article struct {
	ID         int    `json:"id" yaml:"id"`
	DocumentID string `json:"documentId,omitempty" yaml:"document_id,omitempty"`
	Title      string `json:"title" yaml:"title"`
	Slug       string `json:"slug" yaml:"slug"`
	Category   string `json:"category" yaml:"category"`
}
