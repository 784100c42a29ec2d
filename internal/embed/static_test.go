package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_EmbedQuery_ReturnsCorrectDimensions(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.EmbedQuery(context.Background(), "func main() {}")

	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
}

func TestStaticEmbedder_EmbedQuery_VectorIsNormalized(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.EmbedQuery(context.Background(), "func main() {}")
	require.NoError(t, err)

	magnitude := vectorMagnitude(embedding)
	assert.InDelta(t, 1.0, magnitude, 0.001, "vector should be normalized to unit length")
}

func TestStaticEmbedder_EmbedQuery_IsDeterministic(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	text := "func add(a, b int) int { return a + b }"

	emb1, err1 := embedder.EmbedQuery(context.Background(), text)
	emb2, err2 := embedder.EmbedQuery(context.Background(), text)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, emb1, emb2, "same text should produce identical vectors")
}

func TestStaticEmbedder_EmbedQuery_DeterministicAcrossInstances(t *testing.T) {
	embedder1 := NewStaticEmbedder()
	embedder2 := NewStaticEmbedder()
	defer func() { _ = embedder1.Close() }()
	defer func() { _ = embedder2.Close() }()

	text := "func getUserById(id string) (*User, error)"

	emb1, _ := embedder1.EmbedQuery(context.Background(), text)
	emb2, _ := embedder2.EmbedQuery(context.Background(), text)

	assert.Equal(t, emb1, emb2, "same text should produce identical vectors across instances")
}

func TestStaticEmbedder_DifferentTextsProduceDifferentVectors(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	emb1, _ := embedder.EmbedQuery(context.Background(), "func add()")
	emb2, _ := embedder.EmbedQuery(context.Background(), "class Database")

	assert.NotEqual(t, emb1, emb2, "different texts should produce different vectors")
}

func TestStaticEmbedder_EmbedQuery_EmptyInput_ReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.EmbedQuery(context.Background(), "")

	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)

	for i, v := range embedding {
		assert.Equal(t, float32(0), v, "element %d should be zero", i)
	}
}

func TestStaticEmbedder_EmbedQuery_WhitespaceOnly_ReturnsZeroVector(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embedding, err := embedder.EmbedQuery(context.Background(), "   \t\n  ")

	require.NoError(t, err)
	for _, v := range embedding {
		assert.Equal(t, float32(0), v)
	}
}

func TestStaticEmbedder_SimilarCode_HasHigherSimilarity(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	add := "func add(a, b int) int { return a + b }"
	sum := "func sum(x, y int) int { return x + y }"
	repository := "class UserRepository { findById() }"

	addEmb, _ := embedder.EmbedQuery(context.Background(), add)
	sumEmb, _ := embedder.EmbedQuery(context.Background(), sum)
	repoEmb, _ := embedder.EmbedQuery(context.Background(), repository)

	addSumSim := cosineSimilarity(addEmb, sumEmb)
	addRepoSim := cosineSimilarity(addEmb, repoEmb)

	assert.Greater(t, addSumSim, addRepoSim,
		"similar code should have higher similarity (add/sum: %.4f) than different code (add/repo: %.4f)",
		addSumSim, addRepoSim)
}

func TestStaticEmbedder_CamelCase_Tokenization(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	camelEmb, _ := embedder.EmbedQuery(context.Background(), "getUserById")
	spaceEmb, _ := embedder.EmbedQuery(context.Background(), "get user by id")

	similarity := cosineSimilarity(camelEmb, spaceEmb)
	assert.Greater(t, similarity, float64(0.3),
		"camelCase should tokenize similarly to space-separated (similarity: %.4f)", similarity)
}

func TestStaticEmbedder_SnakeCase_Tokenization(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	snakeEmb, _ := embedder.EmbedQuery(context.Background(), "get_user_by_id")
	spaceEmb, _ := embedder.EmbedQuery(context.Background(), "get user by id")

	similarity := cosineSimilarity(snakeEmb, spaceEmb)
	assert.Greater(t, similarity, float64(0.3),
		"snake_case should tokenize similarly to space-separated (similarity: %.4f)", similarity)
}

func TestStaticEmbedder_Available_AlwaysTrue(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	assert.True(t, embedder.Available(context.Background()), "static embedder should always be available")
}

func TestStaticEmbedder_Available_TrueEvenWithCancelledContext(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, embedder.Available(ctx), "static embedder should be available even with cancelled context")
}

func TestStaticEmbedder_Performance(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := make([]string, 1000)
	for i := range texts {
		texts[i] = "func test" + string(rune('A'+i%26)) + "() { return i + 1 }"
	}

	start := time.Now()
	for _, text := range texts {
		_, err := embedder.EmbedQuery(context.Background(), text)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 1*time.Second,
		"embedding 1000 texts should take < 1s (took %v)", elapsed)
}

func TestStaticEmbedder_ImplementsEmbedderInterface(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	var _ Embedder = embedder
}

func TestStaticEmbedder_Dimension_Returns256(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, StaticDimensions, embedder.Dimension())
}

func TestStaticEmbedder_ProviderID_ReturnsStatic(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, "static", embedder.ProviderID())
}

func TestStaticEmbedder_EmbedPassages_ReturnsCorrectCount(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{"func add()", "func sub()", "class User"}

	embeddings, err := embedder.EmbedPassages(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, embeddings, 3)

	for i, emb := range embeddings {
		assert.Len(t, emb, StaticDimensions, "embedding %d should have correct dimensions", i)
	}
}

func TestStaticEmbedder_EmbedPassages_EmptyList_ReturnsEmpty(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	embeddings, err := embedder.EmbedPassages(context.Background(), []string{})

	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestStaticEmbedder_EmbedPassages_HandlesEmptyStringsInBatch(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{
		"func add(a, b int) int { return a + b }",
		"",
		"func multiply(a, b int) int { return a * b }",
	}

	embeddings, err := embedder.EmbedPassages(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, embeddings, 3)

	for _, v := range embeddings[1] {
		assert.Equal(t, float32(0), v)
	}
}

func TestStaticEmbedder_Close_IsIdempotent(t *testing.T) {
	embedder := NewStaticEmbedder()

	err1 := embedder.Close()
	err2 := embedder.Close()
	err3 := embedder.Close()

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.NoError(t, err3)
}

func TestStaticEmbedder_EmbedQuery_AfterClose_ReturnsError(t *testing.T) {
	embedder := NewStaticEmbedder()
	_ = embedder.Close()

	_, err := embedder.EmbedQuery(context.Background(), "test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestStaticEmbedder_Available_AfterClose_ReturnsFalse(t *testing.T) {
	embedder := NewStaticEmbedder()
	_ = embedder.Close()

	assert.False(t, embedder.Available(context.Background()))
}

func TestStaticEmbedder_Tokenize_CamelCase(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{"basic camelCase", "getUserById", []string{"get", "user", "id"}},
		{"acronym at start", "HTTPRequest", []string{"http", "request"}},
		{"acronym in middle", "parseJSONData", []string{"parse", "json", "data"}},
	}

	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			camelEmb, _ := embedder.EmbedQuery(context.Background(), tt.input)
			tokensEmb, _ := embedder.EmbedQuery(context.Background(), joinStrings(tt.contains, " "))

			similarity := cosineSimilarity(camelEmb, tokensEmb)
			assert.Greater(t, similarity, float64(0.2),
				"camelCase '%s' should match tokens (similarity: %.4f)", tt.input, similarity)
		})
	}
}

func TestStaticEmbedder_Tokenize_SnakeCase(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{"basic snake_case", "get_user_by_id", []string{"get", "user", "id"}},
		{"uppercase snake_case", "MAX_BUFFER_SIZE", []string{"max", "buffer", "size"}},
	}

	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snakeEmb, _ := embedder.EmbedQuery(context.Background(), tt.input)
			tokensEmb, _ := embedder.EmbedQuery(context.Background(), joinStrings(tt.contains, " "))

			similarity := cosineSimilarity(snakeEmb, tokensEmb)
			assert.Greater(t, similarity, float64(0.2),
				"snake_case '%s' should match tokens (similarity: %.4f)", tt.input, similarity)
		})
	}
}

func TestStaticEmbedder_StopWordFiltering(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	withStopWords := "func return int string bool void"
	withoutStopWords := "calculate process validate"

	embWith, _ := embedder.EmbedQuery(context.Background(), withStopWords)
	embWithout, _ := embedder.EmbedQuery(context.Background(), withoutStopWords)

	similarity := cosineSimilarity(embWith, embWithout)
	assert.Less(t, similarity, float64(0.5),
		"stop words should be filtered, making vectors different (similarity: %.4f)", similarity)
}

func TestStaticEmbedder_EmbedQuery_UnicodeText_NoError(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	texts := []string{
		"func 日本語() {}",
		"// Комментарий на русском",
		"const emoji = '🚀'",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			embedding, err := embedder.EmbedQuery(context.Background(), text)
			require.NoError(t, err)
			assert.Len(t, embedding, StaticDimensions)
		})
	}
}

func TestStaticEmbedder_EmbedQuery_LongText_NoError(t *testing.T) {
	embedder := NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	longText := ""
	for i := 0; i < 10000; i++ {
		longText += "word "
	}

	embedding, err := embedder.EmbedQuery(context.Background(), longText)
	require.NoError(t, err)
	assert.Len(t, embedding, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(embedding), 0.001)
}

func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for i := 1; i < len(strs); i++ {
		result += sep + strs[i]
	}
	return result
}
