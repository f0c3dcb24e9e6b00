// Package retrieval decides how to answer an utterance: exact hospital
// lookup, semantic search, a clarifying question, or a polite refusal.
package retrieval

import (
	"context"
	"regexp"
	"strings"

	"github.com/loophealth/voicebot/internal/hospital"
	"github.com/loophealth/voicebot/internal/vectorindex"
	"github.com/sirupsen/logrus"
)

// Options tunes the routing heuristics.
type Options struct {
	// TopK is how many semantic results a generic query returns.
	TopK int
	// MinScore is the relevance floor below which a semantic query is treated
	// as out of scope. Chosen empirically against held-out queries.
	MinScore float32
	// DefaultCount is used when a listing query gives no number.
	DefaultCount int
	// MaxCount caps how many hospitals a single reply may list.
	MaxCount int
}

func DefaultOptions() Options {
	return Options{
		TopK:         3,
		MinScore:     0.25,
		DefaultCount: 3,
		MaxCount:     10,
	}
}

// Router owns the decision procedure over the immutable store and index.
type Router struct {
	store   *hospital.Store
	index   *vectorindex.Index
	opts    Options
	logger  *logrus.Logger
	nameVoc map[string]bool   // distinctive tokens from stored hospital names
	cityVoc map[string]string // normalized city token -> display name
}

// Tokens too generic to identify a particular hospital by name.
var genericNameTokens = map[string]bool{
	"hospital": true, "hospitals": true, "clinic": true, "centre": true,
	"center": true, "medical": true, "health": true, "care": true,
	"road": true, "street": true, "the": true, "and": true,
}

// Domain keywords that keep an utterance in scope even when it names no
// stored hospital or city.
var domainKeywords = []string{
	"hospital", "hospitals", "clinic", "medical", "health", "doctor",
	"healthcare", "network", "address", "location", "admit", "treatment",
	"empanelled", "cashless", "insurance",
}

// Spellings commonly heard for cities in the dataset.
var cityAliases = map[string]string{
	"bengaluru": "bangalore",
	"gurgaon":   "gurugram",
	"bombay":    "mumbai",
	"madras":    "chennai",
	"calcutta":  "kolkata",
}

var (
	countPattern   = regexp.MustCompile(`\b(\d{1,2})\s+(?:hospitals?|clinics?)\b`)
	confirmPattern = regexp.MustCompile(`\b(?:confirm|check|verify|is|whether)\b`)
	listingPattern = regexp.MustCompile(`\b(?:show|list|tell|find|suggest|give|recommend|what|which|any|near|nearby|around|hospitals|clinics)\b`)
)

// NewRouter builds the routing vocabulary from the loaded dataset.
func NewRouter(store *hospital.Store, index *vectorindex.Index, opts Options, logger *logrus.Logger) *Router {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = DefaultOptions().DefaultCount
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = DefaultOptions().MaxCount
	}

	nameVoc := make(map[string]bool)
	for _, r := range store.Records() {
		for _, tok := range strings.Fields(hospital.Normalize(r.Name)) {
			if !genericNameTokens[tok] && len(tok) > 2 {
				nameVoc[tok] = true
			}
		}
	}

	cityVoc := make(map[string]string)
	for _, city := range store.Cities() {
		for _, tok := range strings.Fields(hospital.Normalize(city)) {
			cityVoc[tok] = city
		}
	}

	return &Router{
		store:   store,
		index:   index,
		opts:    opts,
		logger:  logger,
		nameVoc: nameVoc,
		cityVoc: cityVoc,
	}
}

// Route classifies the utterance and gathers the records needed to answer it.
// It always returns one of the four outcome kinds; failures inside the
// matcher or index are downgraded, never propagated.
func (r *Router) Route(ctx context.Context, utterance string) (outcome Outcome) {
	// A panic anywhere in the heuristics must not take down the request.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithField("panic", rec).Error("Routing panicked")
			outcome = Outcome{Kind: KindOutOfScope}
		}
	}()

	normalized := hospital.Normalize(utterance)
	if normalized == "" {
		return Outcome{Kind: KindNeedsClarification, Reason: ReasonEmptyQuery}
	}

	tokens := strings.Fields(normalized)
	city := r.extractCity(tokens)

	if !r.inScope(normalized, tokens, city) {
		r.logger.WithField("utterance", utterance).Debug("Utterance out of scope")
		return Outcome{Kind: KindOutOfScope}
	}

	// A named hospital short-circuits to the exact matcher.
	if nameQuery := r.extractNameQuery(tokens); nameQuery != "" {
		if outcome, ok := r.routeExact(nameQuery, city); ok {
			return outcome
		}
	}

	// Listing queries need a place to list around.
	if count, isListing := r.listingIntent(normalized); isListing {
		if city == "" {
			return Outcome{Kind: KindNeedsClarification, Reason: ReasonMissingLocation}
		}
		return r.routeSemantic(ctx, utterance, city, count, true)
	}

	return r.routeSemantic(ctx, utterance, city, r.opts.TopK, false)
}

// routeExact runs the exact matcher. The second return is false when nothing
// matched and the caller should continue with semantic search.
func (r *Router) routeExact(nameQuery, city string) (Outcome, bool) {
	matches := r.store.FindByNameAndCity(nameQuery, city)
	if len(matches) == 0 && city != "" {
		// The spoken city may not be in the dataset; retry unconstrained.
		matches = r.store.FindByName(nameQuery)
	}
	if len(matches) == 0 {
		return Outcome{}, false
	}

	if city == "" {
		if cities := distinctCities(matches); len(cities) > 1 {
			return Outcome{
				Kind:   KindNeedsClarification,
				Reason: ReasonMultipleCities,
				Cities: cities,
			}, true
		}
	}

	r.logger.WithFields(logrus.Fields{
		"name_query": nameQuery,
		"matches":    len(matches),
	}).Debug("Exact match")
	return Outcome{Kind: KindExactHit, Records: matches}, true
}

// routeSemantic searches the vector index, biasing toward the given city when
// one was recognized.
func (r *Router) routeSemantic(ctx context.Context, utterance, city string, count int, listing bool) Outcome {
	if count > r.opts.MaxCount {
		count = r.opts.MaxCount
	}

	var hits []vectorindex.Hit
	var err error

	if city != "" {
		hits, err = r.cityBiasedSearch(ctx, utterance, city, count)
	} else {
		hits, err = r.index.Search(ctx, utterance, count)
	}
	if err != nil {
		r.logger.WithError(err).Warn("Semantic search unavailable, asking caller to retry")
		return Outcome{Kind: KindNeedsClarification, Reason: ReasonRetrievalUnavailable}
	}

	// Listing queries with a recognized city are in scope even when scores
	// are weak; only generic queries fall through to out-of-scope.
	if !listing && (len(hits) == 0 || hits[0].Score < r.opts.MinScore) {
		return Outcome{Kind: KindOutOfScope}
	}
	if len(hits) == 0 {
		return Outcome{Kind: KindOutOfScope}
	}

	scored := make([]ScoredRecord, 0, len(hits))
	for _, h := range hits {
		if rec, ok := r.store.Get(h.ID); ok {
			scored = append(scored, ScoredRecord{Record: rec, Score: h.Score})
		}
	}
	return Outcome{Kind: KindSemanticHits, Hits: scored}
}

// cityBiasedSearch ranks records in the requested city first and tops up from
// the global ranking when the city has fewer than count records.
func (r *Router) cityBiasedSearch(ctx context.Context, utterance, city string, count int) ([]vectorindex.Hit, error) {
	cityKey := hospital.Normalize(city)
	inCity := func(id int) bool {
		rec, ok := r.store.Get(id)
		return ok && strings.Contains(hospital.Normalize(rec.City), cityKey)
	}

	hits, err := r.index.SearchFiltered(ctx, utterance, count, inCity)
	if err != nil {
		return nil, err
	}
	if len(hits) >= count {
		return hits, nil
	}

	taken := make(map[int]bool, len(hits))
	for _, h := range hits {
		taken[h.ID] = true
	}
	rest, err := r.index.SearchFiltered(ctx, utterance, count-len(hits), func(id int) bool {
		return !taken[id] && !inCity(id)
	})
	if err != nil {
		return nil, err
	}
	return append(hits, rest...), nil
}

// inScope reports whether the utterance belongs to the hospital domain at
// all: a domain keyword, a stored hospital name token, or a known city.
func (r *Router) inScope(normalized string, tokens []string, city string) bool {
	if city != "" {
		return true
	}
	for _, kw := range domainKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	for _, tok := range tokens {
		if r.nameVoc[tok] {
			return true
		}
	}
	return false
}

// extractNameQuery pulls the utterance tokens that occur in stored hospital
// names, in spoken order. An empty result means no hospital was named.
func (r *Router) extractNameQuery(tokens []string) string {
	var parts []string
	for _, tok := range tokens {
		if r.nameVoc[tok] {
			parts = append(parts, tok)
		}
	}
	return strings.Join(parts, " ")
}

// extractCity finds a known city mentioned in the utterance, resolving
// common alternate spellings.
func (r *Router) extractCity(tokens []string) string {
	for _, tok := range tokens {
		if alias, ok := cityAliases[tok]; ok {
			tok = alias
		}
		if city, ok := r.cityVoc[tok]; ok {
			return city
		}
	}
	return ""
}

// listingIntent detects count/listing queries and the requested count.
func (r *Router) listingIntent(normalized string) (int, bool) {
	if m := countPattern.FindStringSubmatch(normalized); m != nil {
		count := 0
		for _, c := range m[1] {
			count = count*10 + int(c-'0')
		}
		if count <= 0 {
			count = r.opts.DefaultCount
		}
		return count, true
	}
	if strings.Contains(normalized, "hospital") && listingPattern.MatchString(normalized) && !confirmPattern.MatchString(normalized) {
		return r.opts.DefaultCount, true
	}
	return 0, false
}

func distinctCities(records []hospital.Record) []string {
	seen := make(map[string]bool)
	var cities []string
	for _, r := range records {
		key := hospital.Normalize(r.City)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		cities = append(cities, r.City)
	}
	return cities
}
