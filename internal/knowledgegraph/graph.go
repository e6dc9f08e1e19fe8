package knowledgegraph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

var (
	// ErrSelfLoop is returned when an edge would connect an article to itself.
	ErrSelfLoop = errors.New("edge would connect an article to itself")
	// ErrPairSeen is returned when the unordered pair already carries an edge.
	ErrPairSeen = errors.New("pair already connected")
	// ErrUnknownArticle is returned when an edge references an id outside the catalogue.
	ErrUnknownArticle = errors.New("article not in catalogue")
)

// Graph is the in-memory ledger of a generation run. It owns the article
// catalogue, the emitted edges and the seen-pairs set, and enforces that no
// unordered pair is connected twice.
type Graph struct {
	articles map[int]schemas.Article
	order    []int
	edges    []schemas.Edge
	seen     map[schemas.Pair]struct{}
	degree   map[int]int
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewGraph creates a ledger over the given catalogue.
func NewGraph(articles []schemas.Article, logger *zap.Logger) (*Graph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(articles) == 0 {
		return nil, ErrEmptyCatalogue
	}
	g := &Graph{
		articles: make(map[int]schemas.Article, len(articles)),
		order:    make([]int, 0, len(articles)),
		seen:     make(map[schemas.Pair]struct{}),
		degree:   make(map[int]int),
		log:      logger.Named("graph"),
	}
	for _, a := range articles {
		if _, dup := g.articles[a.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, a.ID)
		}
		g.articles[a.ID] = a
		g.order = append(g.order, a.ID)
	}
	return g, nil
}

// Seed marks pairs as already connected without emitting edges for them.
func (g *Graph) Seed(pairs []schemas.Pair) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range pairs {
		g.seen[p] = struct{}{}
	}
	g.log.Debug("Seeded existing pairs", zap.Int("count", len(pairs)))
}

// Article looks up a catalogue entry by id.
func (g *Graph) Article(id int) (schemas.Article, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.articles[id]
	return a, ok
}

// Articles returns the catalogue in its original order.
func (g *Graph) Articles() []schemas.Article {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]schemas.Article, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.articles[id])
	}
	return out
}

// Connected reports whether the unordered pair {a,b} is already taken.
func (g *Graph) Connected(a, b int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.seen[schemas.NewPair(a, b)]
	return ok
}

// AddEdge records an edge, rejecting self-loops, unknown ids and pairs that
// are already connected.
func (g *Graph) AddEdge(edge schemas.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if edge.Source == edge.Target {
		return ErrSelfLoop
	}
	if _, ok := g.articles[edge.Source]; !ok {
		return fmt.Errorf("%w: source %d", ErrUnknownArticle, edge.Source)
	}
	if _, ok := g.articles[edge.Target]; !ok {
		return fmt.Errorf("%w: target %d", ErrUnknownArticle, edge.Target)
	}
	pair := edge.Pair()
	if _, ok := g.seen[pair]; ok {
		return ErrPairSeen
	}

	g.seen[pair] = struct{}{}
	g.edges = append(g.edges, edge)
	g.degree[edge.Source]++
	g.degree[edge.Target]++
	return nil
}

// Edges returns a copy of the emitted edges in emission order.
func (g *Graph) Edges() []schemas.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]schemas.Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len is the number of emitted edges. Seeded pairs are not counted.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Degree is the number of emitted edges touching id.
func (g *Graph) Degree(id int) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.degree[id]
}

// Isolated returns the ids of articles no emitted edge touches, sorted.
func (g *Graph) Isolated() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []int
	for _, id := range g.order {
		if g.degree[id] == 0 {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// FreePairs counts unordered pairs of distinct catalogue articles that are
// still available.
func (g *Graph) FreePairs() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := len(g.order)
	total := n * (n - 1) / 2
	taken := 0
	for p := range g.seen {
		_, okA := g.articles[p.A]
		_, okB := g.articles[p.B]
		if okA && okB && p.A != p.B {
			taken++
		}
	}
	return total - taken
}
