package knowledgegraph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kgtool/api/schemas"
)

// Pass names, carried on every emitted edge.
const (
	PassDuplicate    = "duplicate"
	PassCategory     = "category"
	PassPrerequisite = "prerequisite"
	PassKeyword      = "keyword"
	PassHub          = "hub"
	PassGapFill      = "gap_fill"
	PassFill         = "fill"
)

const (
	categoryLabelTemplate = "Podobny temat: {category}"
	keywordLabelTemplate  = "Zobacz więcej o {topic}"
	duplicateLabel        = "Ten sam artykuł"

	// fillCheckInterval is how many fill attempts pass between context checks.
	fillCheckInterval = 1024
)

// weightRange is a closed interval edge weights are drawn from.
type weightRange struct{ lo, hi float64 }

var (
	categoryWeights = weightRange{0.70, 0.85}
	keywordWeights  = weightRange{0.75, 0.90}
	hubWeights      = weightRange{0.60, 0.75}
	gapFillWeights  = weightRange{0.50, 0.70}
	fillWeights     = weightRange{0.40, 0.60}
)

// Options tunes a generation run. Zero values are replaced by DefaultOptions.
type Options struct {
	// Target is the total number of edges the fill pass tops up to.
	Target int
	// MaxFillAttempts bounds the random draws of the fill pass.
	MaxFillAttempts int
	// CategoryMin and CategoryMax bound the per-article fan-out of the
	// category pass.
	CategoryMin int
	CategoryMax int
	// BasicsLimit is how many basics articles seed prerequisite chains.
	BasicsLimit int
	// HubFanOut is how many cross-category targets each hub gets.
	HubFanOut int
	// GapFillPerArticle is how many edges an isolated article receives.
	GapFillPerArticle int
	// NewID produces edge document ids.
	NewID func() string
}

// DefaultOptions returns the standard run settings.
func DefaultOptions() Options {
	return Options{
		Target:            490,
		MaxFillAttempts:   200000,
		CategoryMin:       3,
		CategoryMax:       5,
		BasicsLimit:       5,
		HubFanOut:         10,
		GapFillPerArticle: 3,
		NewID:             NewDocumentID,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Target <= 0 {
		o.Target = d.Target
	}
	if o.MaxFillAttempts <= 0 {
		o.MaxFillAttempts = d.MaxFillAttempts
	}
	if o.CategoryMin <= 0 {
		o.CategoryMin = d.CategoryMin
	}
	if o.CategoryMax < o.CategoryMin {
		o.CategoryMax = max(d.CategoryMax, o.CategoryMin)
	}
	if o.BasicsLimit <= 0 {
		o.BasicsLimit = d.BasicsLimit
	}
	if o.HubFanOut <= 0 {
		o.HubFanOut = d.HubFanOut
	}
	if o.GapFillPerArticle <= 0 {
		o.GapFillPerArticle = d.GapFillPerArticle
	}
	if o.NewID == nil {
		o.NewID = d.NewID
	}
	return o
}

// NewDocumentID returns a random UUID as 32 hex characters without dashes.
func NewDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// PassStat records how many edges a pass produced.
type PassStat struct {
	Name  string `json:"name" yaml:"name"`
	Edges int    `json:"edges" yaml:"edges"`
}

// Result is the outcome of a generation run.
type Result struct {
	Edges  []schemas.Edge
	Passes []PassStat
	Target int
	// Complete is false when the fill pass gave up before reaching Target.
	Complete     bool
	FillAttempts int
	// Isolated lists catalogue ids without any emitted edge.
	Isolated []int
}

// Shortfall is how many edges short of the target the run ended.
func (r *Result) Shortfall() int {
	return max(0, r.Target-len(r.Edges))
}

// Generator runs the ordered edge passes over a catalogue. A Generator is
// single use: call Run once.
type Generator struct {
	ds     *Dataset
	opts   Options
	rng    *rand.Rand
	labels *Labeler
	graph  *Graph
	hubs   map[int]struct{}
	log    *zap.Logger
	ran    bool
}

// NewGenerator prepares a run over ds. The dataset's existing edges are
// seeded into the seen-pairs set.
func NewGenerator(ds *Dataset, rng *rand.Rand, opts Options, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ds == nil {
		return nil, ErrEmptyCatalogue
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("a random source is required")
	}

	graph, err := NewGraph(ds.Articles, logger)
	if err != nil {
		return nil, err
	}
	graph.Seed(ds.ExistingPairs())

	hubs := make(map[int]struct{}, len(ds.Hubs))
	for _, h := range ds.Hubs {
		hubs[h] = struct{}{}
	}

	return &Generator{
		ds:     ds,
		opts:   opts.withDefaults(),
		rng:    rng,
		labels: NewLabeler(ds.Labels, ds.TopicPattern, rng),
		graph:  graph,
		hubs:   hubs,
		log:    logger.Named("generator"),
	}, nil
}

// Seed adds further already-connected pairs, e.g. read from the live
// database. It must be called before Run.
func (g *Generator) Seed(pairs []schemas.Pair) {
	g.graph.Seed(pairs)
}

// Run executes all passes in order and returns the emitted edges.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	if g.ran {
		return nil, errors.New("generator already ran")
	}
	g.ran = true

	passes := []struct {
		name string
		run  func(context.Context) error
	}{
		{PassDuplicate, g.duplicatePass},
		{PassCategory, g.categoryPass},
		{PassPrerequisite, g.prerequisitePass},
		{PassKeyword, g.keywordPass},
		{PassHub, g.hubPass},
		{PassGapFill, g.gapFillPass},
	}

	res := &Result{Target: g.opts.Target}
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation interrupted before %s pass: %w", p.name, err)
		}
		before := g.graph.Len()
		if err := p.run(ctx); err != nil {
			return nil, fmt.Errorf("%s pass failed: %w", p.name, err)
		}
		res.Passes = append(res.Passes, g.recordPass(p.name, before))
	}

	before := g.graph.Len()
	attempts, err := g.fillPass(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s pass failed: %w", PassFill, err)
	}
	res.Passes = append(res.Passes, g.recordPass(PassFill, before))
	res.FillAttempts = attempts

	res.Edges = g.graph.Edges()
	res.Complete = len(res.Edges) >= g.opts.Target
	res.Isolated = g.graph.Isolated()

	if !res.Complete {
		g.log.Warn("Target edge count not reached",
			zap.Int("target", res.Target),
			zap.Int("generated", len(res.Edges)),
			zap.Int("shortfall", res.Shortfall()),
			zap.Int("fill_attempts", attempts),
		)
	}
	g.log.Info("Edge generation finished",
		zap.Int("edges", len(res.Edges)),
		zap.Int("target", res.Target),
		zap.Bool("complete", res.Complete),
		zap.Ints("isolated", res.Isolated),
	)
	return res, nil
}

func (g *Generator) recordPass(name string, before int) PassStat {
	stat := PassStat{Name: name, Edges: g.graph.Len() - before}
	g.log.Info("Pass complete", zap.String("pass", name), zap.Int("edges", stat.Edges), zap.Int("total", g.graph.Len()))
	return stat
}

// emit adds an edge when the pair is free. Weight and label are only
// evaluated for free pairs so rejected candidates do not consume randomness.
func (g *Generator) emit(pass string, src, dst schemas.Article, rel schemas.RelationshipType, weight func() float64, label func() string, category string) bool {
	if src.ID == dst.ID || g.graph.Connected(src.ID, dst.ID) {
		return false
	}
	if category == "" {
		category = dst.Category
	}
	edge := schemas.Edge{
		DocumentID: g.opts.NewID(),
		Source:     src.ID,
		Target:     dst.ID,
		Type:       rel,
		Weight:     weight(),
		Label:      label(),
		Category:   category,
		Pass:       pass,
	}
	if err := g.graph.AddEdge(edge); err != nil {
		g.log.Debug("Edge rejected", zap.Stringer("edge", edge), zap.Error(err))
		return false
	}
	return true
}

func (g *Generator) fixed(w float64) func() float64 {
	return func() float64 { return w }
}

func (g *Generator) uniform(r weightRange) func() float64 {
	return func() float64 {
		return round2(r.lo + g.rng.Float64()*(r.hi-r.lo))
	}
}

func (g *Generator) label(rel schemas.RelationshipType, target schemas.Article) func() string {
	return func() string { return g.labels.Label(rel, target, "") }
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// -- Passes --

func (g *Generator) duplicatePass(context.Context) error {
	for _, grp := range groupBy(g.graph.Articles(), func(a schemas.Article) string { return a.Slug }) {
		if grp.key == "" || len(grp.members) < 2 {
			continue
		}
		for i := 0; i < len(grp.members); i++ {
			for j := i + 1; j < len(grp.members); j++ {
				g.emit(PassDuplicate, grp.members[i], grp.members[j], schemas.RelationshipDuplicateOf,
					g.fixed(1.0), func() string { return duplicateLabel }, "")
			}
		}
	}
	return nil
}

func (g *Generator) categoryPass(context.Context) error {
	for _, grp := range groupBy(g.graph.Articles(), func(a schemas.Article) string { return a.Category }) {
		for _, a := range grp.members {
			others := without(grp.members, a.ID)
			spread := g.opts.CategoryMax - g.opts.CategoryMin + 1
			n := min(g.opts.CategoryMin+g.rng.IntN(spread), len(others))
			g.shuffle(others)
			for _, other := range others[:n] {
				g.emit(PassCategory, a, other, schemas.RelationshipRelatedTo, g.uniform(categoryWeights),
					func() string { return g.labels.Render(categoryLabelTemplate, other, grp.key) }, grp.key)
			}
		}
	}
	return nil
}

func (g *Generator) prerequisitePass(context.Context) error {
	articles := g.graph.Articles()
	basics := inCategory(articles, g.ds.Buckets.Basics)
	impl := inCategory(articles, g.ds.Buckets.Implementation)
	tech := inCategory(articles, g.ds.Buckets.Technical)

	leaders := basics[:min(g.opts.BasicsLimit, len(basics))]
	for _, base := range leaders {
		for _, target := range g.sample(impl, 3) {
			g.emit(PassPrerequisite, base, target, schemas.RelationshipPrerequisite, g.fixed(0.90),
				g.label(schemas.RelationshipPrerequisite, target), "")
		}
	}
	for _, base := range leaders {
		for _, target := range g.sample(tech, 2) {
			g.emit(PassPrerequisite, base, target, schemas.RelationshipPrerequisite, g.fixed(0.85),
				g.label(schemas.RelationshipPrerequisite, target), "")
		}
	}
	for _, a := range impl {
		for _, target := range g.sample(basics, 2) {
			g.emit(PassPrerequisite, a, target, schemas.RelationshipBuildsOn, g.fixed(0.80),
				g.label(schemas.RelationshipBuildsOn, target), "")
		}
	}
	return nil
}

func (g *Generator) keywordPass(ctx context.Context) error {
	articles := g.graph.Articles()
	keywords := make([][]string, len(articles))
	for i, a := range articles {
		keywords[i] = g.ds.KeywordsFor(a.Title)
	}

	for i := range articles {
		if len(keywords[i]) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for j := i + 1; j < len(articles); j++ {
			shared, ok := firstShared(keywords[i], keywords[j])
			if !ok {
				continue
			}
			g.emit(PassKeyword, articles[i], articles[j], schemas.RelationshipRelatedTo, g.uniform(keywordWeights),
				func() string { return strings.ReplaceAll(keywordLabelTemplate, "{topic}", shared) }, "")
		}
	}
	return nil
}

func (g *Generator) hubPass(context.Context) error {
	articles := g.graph.Articles()
	for _, hubID := range g.ds.Hubs {
		hub, ok := g.graph.Article(hubID)
		if !ok {
			g.log.Warn("Hub article not in catalogue, skipping", zap.Int("hub_id", hubID))
			continue
		}
		var others []schemas.Article
		for _, a := range articles {
			if a.ID != hub.ID && a.Category != hub.Category {
				others = append(others, a)
			}
		}
		g.shuffle(others)
		for _, target := range others[:min(g.opts.HubFanOut, len(others))] {
			g.emit(PassHub, hub, target, schemas.RelationshipNextStep, g.uniform(hubWeights),
				g.label(schemas.RelationshipNextStep, target), "")
		}
	}
	return nil
}

func (g *Generator) gapFillPass(context.Context) error {
	articles := g.graph.Articles()
	touched := make(map[int]bool, len(articles))
	for _, a := range articles {
		touched[a.ID] = g.graph.Degree(a.ID) > 0
	}

	for _, a := range articles {
		if touched[a.ID] {
			continue
		}
		var candidates []schemas.Article
		for _, c := range articles {
			if c.ID == a.ID {
				continue
			}
			if _, hub := g.hubs[c.ID]; hub || c.Category == a.Category {
				candidates = append(candidates, c)
			}
		}
		g.shuffle(candidates)

		emitted := 0
		for _, c := range candidates {
			if emitted == g.opts.GapFillPerArticle {
				break
			}
			if g.emit(PassGapFill, a, c, schemas.RelationshipRelatedTo, g.uniform(gapFillWeights),
				g.label(schemas.RelationshipRelatedTo, c), "") {
				emitted++
				touched[a.ID] = true
				touched[c.ID] = true
			}
		}
		if emitted == 0 {
			g.log.Warn("No free candidate for isolated article", zap.Int("article_id", a.ID))
		}
	}
	return nil
}

// fillPass tops the edge count up to the target with random pairs. It is
// bounded by MaxFillAttempts and stops early once no free pair is left.
func (g *Generator) fillPass(ctx context.Context) (int, error) {
	articles := g.graph.Articles()
	free := g.graph.FreePairs()
	attempts := 0
	for g.graph.Len() < g.opts.Target && attempts < g.opts.MaxFillAttempts {
		if free == 0 {
			g.log.Warn("Pair space exhausted before target", zap.Int("edges", g.graph.Len()))
			break
		}
		if attempts%fillCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return attempts, err
			}
		}
		attempts++

		src := articles[g.rng.IntN(len(articles))]
		dst := articles[g.rng.IntN(len(articles))]
		if g.emit(PassFill, src, dst, schemas.RelationshipRelatedTo, g.uniform(fillWeights),
			g.label(schemas.RelationshipRelatedTo, dst), "") {
			free--
		}
	}
	return attempts, nil
}

// -- Helpers --

type group struct {
	key     string
	members []schemas.Article
}

// groupBy buckets articles by key, keeping groups in first-seen order.
func groupBy(articles []schemas.Article, key func(schemas.Article) string) []group {
	index := make(map[string]int)
	var groups []group
	for _, a := range articles {
		k := key(a)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{key: k})
		}
		groups[i].members = append(groups[i].members, a)
	}
	return groups
}

func without(articles []schemas.Article, id int) []schemas.Article {
	out := make([]schemas.Article, 0, len(articles))
	for _, a := range articles {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

func inCategory(articles []schemas.Article, category string) []schemas.Article {
	if category == "" {
		return nil
	}
	var out []schemas.Article
	for _, a := range articles {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

func (g *Generator) shuffle(articles []schemas.Article) {
	g.rng.Shuffle(len(articles), func(i, j int) { articles[i], articles[j] = articles[j], articles[i] })
}

// sample draws up to k distinct articles without replacement.
func (g *Generator) sample(articles []schemas.Article, k int) []schemas.Article {
	pool := make([]schemas.Article, len(articles))
	copy(pool, articles)
	g.shuffle(pool)
	return pool[:min(k, len(pool))]
}

// firstShared returns the first entry of a that also appears in b. Both
// slices are in vocabulary order.
func firstShared(a, b []string) (string, bool) {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return x, true
			}
		}
	}
	return "", false
}
