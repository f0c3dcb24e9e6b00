package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/loophealth/voicebot/internal/hospital"
	"github.com/loophealth/voicebot/internal/vectorindex"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEmbedder maps known texts to fixed vectors so routing is deterministic.
// Unknown texts embed to the zero vector, which scores 0 against everything.
type fixedEmbedder struct {
	vectors map[string][]float32
	dim     int
	err     error
}

func (f *fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = append([]float32(nil), v...)
		} else {
			out[i] = make([]float32, f.dim)
		}
	}
	return out, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func basis(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

// newTestRouter indexes the sample dataset with one basis vector per document.
func newTestRouter(t *testing.T) (*Router, *hospital.Store, *fixedEmbedder) {
	t.Helper()

	store := hospital.NewStoreFromRecords(hospital.SampleRecords(), testLogger())
	records := store.Records()
	dim := len(records) + 1

	embedder := &fixedEmbedder{vectors: map[string][]float32{}, dim: dim}
	docs := make([]string, len(records))
	for i, rec := range records {
		docs[i] = rec.Document()
		embedder.vectors[rec.Document()] = basis(dim, i)
	}

	// Queries the tests route through semantic search.
	embedder.vectors["Tell me 3 hospitals around Bangalore"] = []float32{1, 1, 0, 0, 1, 0}
	embedder.vectors["cashless treatment in bangalore"] = basis(dim, 0)

	index, err := vectorindex.Build(context.Background(), docs, embedder, testLogger())
	require.NoError(t, err)

	return NewRouter(store, index, DefaultOptions(), testLogger()), store, embedder
}

func TestRoute_ExactHit(t *testing.T) {
	router, _, _ := newTestRouter(t)

	outcome := router.Route(context.Background(), "Is Apollo Hospital in network?")
	assert.Equal(t, KindExactHit, outcome.Kind)
	require.Len(t, outcome.Records, 1)
	assert.Equal(t, "Apollo Hospital", outcome.Records[0].Name)
	assert.True(t, outcome.Records[0].InNetwork)
}

func TestRoute_ExactHit_OutOfNetworkRecord(t *testing.T) {
	router, _, _ := newTestRouter(t)

	outcome := router.Route(context.Background(), "Can you check if Manipal Hospital in Delhi is in network")
	assert.Equal(t, KindExactHit, outcome.Kind)
	require.Len(t, outcome.Records, 1)
	assert.Equal(t, "Delhi", outcome.Records[0].City)
	assert.False(t, outcome.Records[0].InNetwork)
}

func TestRoute_ExactHit_PartialName(t *testing.T) {
	router, _, _ := newTestRouter(t)

	outcome := router.Route(context.Background(), "Is Manipal Sarjapur in the network?")
	assert.Equal(t, KindExactHit, outcome.Kind)
	require.Len(t, outcome.Records, 1)
	assert.Equal(t, "Manipal Hospital, Sarjapur Road", outcome.Records[0].Name)
}

func TestRoute_ConfirmWithNameAndCity(t *testing.T) {
	router, _, _ := newTestRouter(t)

	outcome := router.Route(context.Background(), "Can you confirm if Manipal Sarjapur in Bangalore is in my network?")
	assert.Equal(t, KindExactHit, outcome.Kind)
	require.Len(t, outcome.Records, 1)
	assert.Equal(t, "Manipal Hospital, Sarjapur Road", outcome.Records[0].Name)
	assert.True(t, outcome.Records[0].InNetwork)
}

func TestRoute_AmbiguousName_AsksForCity(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// Manipal exists in two cities and the caller named neither.
	outcome := router.Route(context.Background(), "Is Manipal Hospital in network?")
	assert.Equal(t, KindNeedsClarification, outcome.Kind)
	assert.Equal(t, ReasonMultipleCities, outcome.Reason)
	assert.ElementsMatch(t, []string{"Bangalore", "Delhi"}, outcome.Cities)
}

func TestRoute_ListingWithCountAndCity(t *testing.T) {
	router, _, _ := newTestRouter(t)

	outcome := router.Route(context.Background(), "Tell me 3 hospitals around Bangalore")
	assert.Equal(t, KindSemanticHits, outcome.Kind)
	require.Len(t, outcome.Hits, 3)
	for _, hit := range outcome.Hits {
		assert.Equal(t, "Bangalore", hit.Record.City)
	}
}

func TestRoute_ListingWithoutCity_AsksForLocation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	outcome := router.Route(context.Background(), "Show me hospitals")
	assert.Equal(t, KindNeedsClarification, outcome.Kind)
	assert.Equal(t, ReasonMissingLocation, outcome.Reason)
}

func TestRoute_SemanticHit(t *testing.T) {
	router, _, _ := newTestRouter(t)

	outcome := router.Route(context.Background(), "cashless treatment in bangalore")
	assert.Equal(t, KindSemanticHits, outcome.Kind)
	require.NotEmpty(t, outcome.Hits)
	assert.Equal(t, "Apollo Hospital", outcome.Hits[0].Record.Name)
	assert.InDelta(t, 1.0, float64(outcome.Hits[0].Score), 0.001)
}

func TestRoute_OutOfScope(t *testing.T) {
	router, _, _ := newTestRouter(t)

	outcome := router.Route(context.Background(), "What's the weather like today?")
	assert.Equal(t, KindOutOfScope, outcome.Kind)
	assert.Empty(t, outcome.Records)
	assert.Empty(t, outcome.Hits)
}

func TestRoute_LowScores_OutOfScope(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// In the hospital domain by keyword, but nothing in the index relates:
	// the query embeds to the zero vector so every score is below the floor.
	outcome := router.Route(context.Background(), "hospital billing paperwork dispute")
	assert.Equal(t, KindOutOfScope, outcome.Kind)
}

func TestRoute_EmptyUtterance(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, utterance := range []string{"", "   ", " ,.! "} {
		outcome := router.Route(context.Background(), utterance)
		assert.Equal(t, KindNeedsClarification, outcome.Kind)
		assert.Equal(t, ReasonEmptyQuery, outcome.Reason)
	}
}

func TestRoute_EmbeddingFailure_AsksToRetry(t *testing.T) {
	router, _, embedder := newTestRouter(t)
	embedder.err = errors.New("embedding service down")

	outcome := router.Route(context.Background(), "suggest hospitals near bangalore")
	assert.Equal(t, KindNeedsClarification, outcome.Kind)
	assert.Equal(t, ReasonRetrievalUnavailable, outcome.Reason)
}

func TestRoute_CityAlias(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// "Bengaluru" resolves to the stored "Bangalore" and the Manipal lookup
	// narrows to one city instead of asking for clarification.
	outcome := router.Route(context.Background(), "Is Manipal Hospital in Bengaluru in network?")
	assert.Equal(t, KindExactHit, outcome.Kind)
	require.Len(t, outcome.Records, 1)
	assert.Equal(t, "Bangalore", outcome.Records[0].City)
}

func TestRoute_NeverPanics(t *testing.T) {
	store := hospital.NewStoreFromRecords(hospital.SampleRecords(), testLogger())
	router := NewRouter(store, nil, DefaultOptions(), testLogger())

	// A nil index panics inside semantic search; Route must swallow it.
	outcome := router.Route(context.Background(), "suggest hospitals near bangalore")
	assert.Equal(t, KindOutOfScope, outcome.Kind)
}

func TestOutcome_AllRecords(t *testing.T) {
	records := hospital.SampleRecords()

	exact := Outcome{Kind: KindExactHit, Records: records[:1]}
	assert.Len(t, exact.AllRecords(), 1)

	semantic := Outcome{Kind: KindSemanticHits, Hits: []ScoredRecord{
		{Record: records[0], Score: 0.9},
		{Record: records[1], Score: 0.8},
	}}
	assert.Len(t, semantic.AllRecords(), 2)
	assert.Equal(t, records[0].Name, semantic.AllRecords()[0].Name)

	assert.Empty(t, Outcome{Kind: KindOutOfScope}.AllRecords())
}
