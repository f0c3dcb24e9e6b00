package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a fixed vector per known text so searches are
// deterministic without a hosted model.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			return nil, errors.New("unknown text: " + text)
		}
		// Copy so the index's in-place normalization cannot corrupt the fixture.
		out[i] = append([]float32(nil), v...)
	}
	return out, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestIndex(t *testing.T) (*Index, *fakeEmbedder) {
	t.Helper()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"doc a":    {1, 0, 0},
		"doc b":    {0, 1, 0},
		"doc c":    {1, 1, 0},
		"query a":  {1, 0, 0},
		"query ab": {1, 0.5, 0},
	}}

	index, err := Build(context.Background(), []string{"doc a", "doc b", "doc c"}, embedder, testLogger())
	require.NoError(t, err)
	return index, embedder
}

func TestBuild(t *testing.T) {
	index, _ := newTestIndex(t)
	assert.Equal(t, 3, index.Len())
	assert.Equal(t, 3, index.Dimension())
}

func TestBuild_EmptyDocs(t *testing.T) {
	_, err := Build(context.Background(), nil, &fakeEmbedder{}, testLogger())
	require.Error(t, err)
}

func TestBuild_DimensionMismatch(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"doc a": {1, 0, 0},
		"doc b": {0, 1},
	}}
	_, err := Build(context.Background(), []string{"doc a", "doc b"}, embedder, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestSearch_OrdersByScoreDescending(t *testing.T) {
	index, _ := newTestIndex(t)

	hits, err := index.Search(context.Background(), "query ab", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// "doc c" sits between the axes and is closest to the tilted query,
	// "doc a" follows, "doc b" trails.
	assert.Equal(t, 2, hits[0].ID)
	assert.Equal(t, 0, hits[1].ID)
	assert.Equal(t, 1, hits[2].ID)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
}

func TestSearch_Deterministic(t *testing.T) {
	index, _ := newTestIndex(t)

	first, err := index.Search(context.Background(), "query a", 3)
	require.NoError(t, err)
	second, err := index.Search(context.Background(), "query a", 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSearch_TruncatesToK(t *testing.T) {
	index, _ := newTestIndex(t)

	hits, err := index.Search(context.Background(), "query a", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].ID)
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	index, _ := newTestIndex(t)

	hits, err := index.Search(context.Background(), "query a", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSearch_ZeroK(t *testing.T) {
	index, embedder := newTestIndex(t)
	buildCalls := embedder.calls

	hits, err := index.Search(context.Background(), "query a", 0)
	require.NoError(t, err)
	assert.Nil(t, hits)
	// No embedding call should happen for a no-op search.
	assert.Equal(t, buildCalls, embedder.calls)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"first":  {1, 0},
		"second": {1, 0},
		"third":  {1, 0},
		"query":  {1, 0},
	}}
	index, err := Build(context.Background(), []string{"first", "second", "third"}, embedder, testLogger())
	require.NoError(t, err)

	hits, err := index.Search(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestSearchFiltered(t *testing.T) {
	index, _ := newTestIndex(t)

	hits, err := index.SearchFiltered(context.Background(), "query a", 3, func(id int) bool {
		return id != 0
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, hit := range hits {
		assert.NotEqual(t, 0, hit.ID)
	}
}

func TestSearch_EmbedderFailure(t *testing.T) {
	index, embedder := newTestIndex(t)
	embedder.err = errors.New("service down")

	_, err := index.Search(context.Background(), "query a", 3)
	require.Error(t, err)
}
