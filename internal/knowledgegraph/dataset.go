package knowledgegraph

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

//go:embed data/ksef.yaml
var defaultDataset []byte

var (
	// ErrEmptyCatalogue is returned when a dataset has no articles.
	ErrEmptyCatalogue = errors.New("catalogue contains no articles")
	// ErrDuplicateID is returned when two catalogue entries share an id.
	ErrDuplicateID = errors.New("duplicate article id in catalogue")
)

// Keyword is a vocabulary entry. An article carries the keyword when its
// lowercased title contains any of the Match substrings.
type Keyword struct {
	Name  string   `yaml:"name"`
	Match []string `yaml:"match"`
}

// Buckets names the categories used by the prerequisite-chain pass.
type Buckets struct {
	Basics         string `yaml:"basics"`
	Implementation string `yaml:"implementation"`
	Technical      string `yaml:"technical"`
}

// Dataset is everything the generator needs to know about the content
// catalogue. It is loaded from YAML so the generator can be pointed at any
// catalogue, with the KSeF catalogue embedded as the default.
type Dataset struct {
	Title         string                                `yaml:"title"`
	Articles      []schemas.Article                     `yaml:"articles"`
	Hubs          []int                                 `yaml:"hubs"`
	ExistingEdges [][2]int                              `yaml:"existing_edges"`
	Buckets       Buckets                               `yaml:"buckets"`
	Keywords      []Keyword                             `yaml:"keywords"`
	TopicPattern  string                                `yaml:"topic_pattern"`
	Labels        map[schemas.RelationshipType][]string `yaml:"labels"`
}

// DefaultDataset returns the embedded KSeF catalogue.
func DefaultDataset() (*Dataset, error) {
	return ParseDataset(defaultDataset)
}

// LoadDataset reads a catalogue file. An empty path selects the embedded
// default.
func LoadDataset(path string) (*Dataset, error) {
	if path == "" {
		return DefaultDataset()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue %s: %w", path, err)
	}
	ds, err := ParseDataset(raw)
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return ds, nil
}

// ParseDataset decodes and validates a YAML catalogue.
func ParseDataset(raw []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode catalogue: %w", err)
	}
	ds.applyDefaults()
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (ds *Dataset) applyDefaults() {
	if ds.Title == "" {
		ds.Title = "Knowledge Graph"
	}
	if ds.TopicPattern == "" {
		ds.TopicPattern = DefaultTopicPattern
	}
	if len(ds.Labels) == 0 {
		ds.Labels = DefaultLabelTemplates()
	}
}

// Validate checks the catalogue for structural problems the passes cannot
// recover from.
func (ds *Dataset) Validate() error {
	if len(ds.Articles) == 0 {
		return ErrEmptyCatalogue
	}
	seen := make(map[int]struct{}, len(ds.Articles))
	for _, a := range ds.Articles {
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	if _, err := regexp.Compile(ds.TopicPattern); err != nil {
		return fmt.Errorf("invalid topic_pattern: %w", err)
	}
	for rel, templates := range ds.Labels {
		if !rel.Valid() {
			return fmt.Errorf("unknown relationship type %q in labels", rel)
		}
		if len(templates) == 0 {
			return fmt.Errorf("no label templates for %s", rel)
		}
	}
	for _, kw := range ds.Keywords {
		if kw.Name == "" || len(kw.Match) == 0 {
			return fmt.Errorf("keyword entries need a name and at least one match string")
		}
	}
	return nil
}

// ExistingPairs returns the pre-seeded pairs in unordered form.
func (ds *Dataset) ExistingPairs() []schemas.Pair {
	pairs := make([]schemas.Pair, 0, len(ds.ExistingEdges))
	for _, e := range ds.ExistingEdges {
		pairs = append(pairs, schemas.NewPair(e[0], e[1]))
	}
	return pairs
}

// KeywordsFor returns the vocabulary entries matching title, in vocabulary
// order.
func (ds *Dataset) KeywordsFor(title string) []string {
	lower := strings.ToLower(title)
	var found []string
	for _, kw := range ds.Keywords {
		for _, m := range kw.Match {
			if strings.Contains(lower, strings.ToLower(m)) {
				found = append(found, kw.Name)
				break
			}
		}
	}
	return found
}
