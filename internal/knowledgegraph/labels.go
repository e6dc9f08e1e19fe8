package knowledgegraph

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

// DefaultTopicPattern captures the subject that follows the product name in
// a title, e.g. "KSeF API: Kompletna..." yields "API".
const DefaultTopicPattern = `KSeF ([^-:]+)`

// DefaultLabelTemplates returns the anchor text templates per relationship
// type. {topic} and {category} are filled in by the Labeler.
func DefaultLabelTemplates() map[schemas.RelationshipType][]string {
	return map[schemas.RelationshipType][]string{
		schemas.RelationshipDuplicateOf:  {"Ten sam artykuł", "Duplikat"},
		schemas.RelationshipRelatedTo:    {"Zobacz więcej o {topic}", "Podobny temat: {category}", "Porównaj z {topic}"},
		schemas.RelationshipPrerequisite: {"Poznaj podstawy najpierw", "Zacznij od {topic}", "Wymaga wiedzy z {topic}"},
		schemas.RelationshipBuildsOn:     {"Rozszerza {topic}", "Pogłębia wiedzę o {topic}", "Buduje na {topic}"},
		schemas.RelationshipNextStep:     {"Następny krok: {topic}", "Dalej: {topic}", "Kontynuuj z {topic}"},
		schemas.RelationshipSimilarTo:    {"Podobne zagadnienie", "Zbliżony temat"},
		schemas.RelationshipContrasts:    {"Alternatywne podejście", "Inne spojrzenie"},
		schemas.RelationshipExemplifies:  {"Praktyczny przykład", "Konkretny przypadek", "Zobacz w praktyce"},
	}
}

// Labeler renders anchor text for an edge.
type Labeler struct {
	templates map[schemas.RelationshipType][]string
	topic     *regexp.Regexp
	rng       *rand.Rand
}

// NewLabeler builds a Labeler. The pattern must already be validated.
func NewLabeler(templates map[schemas.RelationshipType][]string, topicPattern string, rng *rand.Rand) *Labeler {
	if len(templates) == 0 {
		templates = DefaultLabelTemplates()
	}
	if topicPattern == "" {
		topicPattern = DefaultTopicPattern
	}
	return &Labeler{
		templates: templates,
		topic:     regexp.MustCompile(topicPattern),
		rng:       rng,
	}
}

// Topic extracts the subject of an article title, falling back to its
// category.
func (l *Labeler) Topic(target schemas.Article) string {
	if m := l.topic.FindStringSubmatch(target.Title); len(m) > 1 {
		if t := strings.TrimSpace(m[1]); t != "" {
			return t
		}
	}
	return target.Category
}

// Label picks a random template for rel and fills its placeholders.
// category is substituted for {category}; an empty value falls back to the
// target's category.
func (l *Labeler) Label(rel schemas.RelationshipType, target schemas.Article, category string) string {
	templates := l.templates[rel]
	if len(templates) == 0 {
		return string(rel)
	}
	return l.Render(templates[l.rng.IntN(len(templates))], target, category)
}

// Render fills a single template.
func (l *Labeler) Render(template string, target schemas.Article, category string) string {
	if category == "" {
		category = target.Category
	}
	out := template
	if strings.Contains(out, "{topic}") {
		out = strings.ReplaceAll(out, "{topic}", l.Topic(target))
	}
	return strings.ReplaceAll(out, "{category}", category)
}
