package lantern

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lantern/internal/encode"
	"github.com/jward/lantern/internal/entity"
)

// countingEncoder maps each distinct text to a fixed deterministic vector
// and counts invocations, so tests can observe caching and coalescing.
type countingEncoder struct {
	calls atomic.Int64
}

func (c *countingEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r)
	}
	return vec, nil
}

func searchFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "app.py", ""+
		"def parse_config():\n    pass\n\n"+
		"def loadUserProfile():\n    pass\n\n"+
		"class HttpClient:\n    pass\n")
	return root
}

// =============================================================================
// Token queries and the presence filter
// =============================================================================

func TestFindEntities_MatchesNamePieces(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, searchFixture(t))
	q := eng.Query()

	names := func(token string) []string {
		var out []string
		for _, e := range q.FindEntities(token) {
			out = append(out, e.Name)
		}
		return out
	}

	assert.Equal(t, []string{"parse_config"}, names("config"))
	assert.Equal(t, []string{"parse_config"}, names("parse_config"))
	assert.Equal(t, []string{"loadUserProfile"}, names("profile"))
	assert.Equal(t, []string{"HttpClient"}, names("HTTP"))
	assert.Empty(t, names("nonexistent_token_xyz"))
	assert.Empty(t, names(""))
}

func TestFindEntities_KindFilter(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, searchFixture(t))
	q := eng.Query()

	all := q.FindEntities("client")
	require.Len(t, all, 1)

	assert.Len(t, q.FindEntities("client", KindClass), 1)
	assert.Empty(t, q.FindEntities("client", KindFunction))
	assert.Len(t, q.FindEntities("client", KindFunction, KindClass), 1)
}

func TestFindEntities_SubstringFallbackOverNames(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, searchFixture(t))
	q := eng.Query()

	// "onf" is not an identifier token of any name; the substring fallback
	// still finds parse_config.
	got := q.FindEntities("onf")
	require.Len(t, got, 1)
	assert.Equal(t, "parse_config", got[0].Name)

	// Kind restriction applies to fallback matches too.
	assert.Empty(t, q.FindEntities("onf", KindClass))
}

func TestFindEntities_SubstringFallbackOverPaths(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "handlers/auth.py", "def login():\n    pass\n")
	writeFile(t, root, "models/user.py", "def fields():\n    pass\n")
	eng, _ := buildEngine(t, root)

	// A directory fragment matches every entity in that file: the module
	// node plus login.
	got := eng.Query().FindEntities("handlers")
	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, "handlers/auth.py", e.FilePath)
	}
}

func TestFindEntities_PinnedBuilderSurvivesRebuild(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.py", "def zqxwv_unique_token():\n    pass\n")
	eng, _ := buildEngine(t, root)

	old := eng.Query()
	require.Len(t, old.FindEntities("zqxwv_unique_token"), 1)

	writeFile(t, root, "a.py", "def renamed_elsewhere():\n    pass\n")
	_, err := eng.Build(context.Background())
	require.NoError(t, err)

	// Each snapshot carries its own presence filter, so a builder pinned to
	// the old generation keeps finding the old name.
	assert.Len(t, old.FindEntities("zqxwv_unique_token"), 1)
	assert.Empty(t, eng.Query().FindEntities("zqxwv_unique_token"))
	assert.Len(t, eng.Query().FindEntities("renamed_elsewhere"), 1)
}

func TestFindEntities_SkipsImports(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.py", "import config\n")
	eng, _ := buildEngine(t, root)

	assert.Empty(t, eng.Query().FindEntities("config"))
}

func TestPresenceFilter_NoFalseNegatives(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	var src string
	for i := range 500 {
		src += fmt.Sprintf("def handler_%04d():\n    pass\n\n", i)
	}
	writeFile(t, root, "handlers.py", src)
	eng, _ := buildEngine(t, root)

	// Every indexed token must pass the filter; a miss would make
	// FindEntities wrongly return nothing.
	q := eng.Query()
	for i := range 500 {
		token := fmt.Sprintf("handler_%04d", i)
		require.Len(t, q.FindEntities(token), 1, "token %s", token)
	}
}

func TestPresenceFilter_RandomizedTokenTrials(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	entities := map[string][]*entity.Entity{"gen.py": nil}
	names := make([]string, 0, 10000)
	for range 10000 {
		name := randomIdentifier(rng)
		names = append(names, name)
		entities["gen.py"] = append(entities["gen.py"], &entity.Entity{Name: name})
	}

	// Every token of every indexed name must test positive; the filter only
	// ever errs toward false positives.
	filter := newPresenceFilter(entities, 0.01)
	for _, name := range names {
		for _, tok := range nameTokens(name) {
			if !filter.TestString(tok) {
				t.Fatalf("indexed token %q missing from filter", tok)
			}
		}
	}
}

// randomIdentifier produces identifiers mixing case, digits, and
// underscores so every token-splitting path gets exercised.
func randomIdentifier(rng *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 3+rng.Intn(14))
	for i := range b {
		switch {
		case i > 0 && i < len(b)-1 && rng.Intn(6) == 0:
			b[i] = '_'
		case i > 0 && rng.Intn(8) == 0:
			b[i] = byte('0' + rng.Intn(10))
		default:
			b[i] = letters[rng.Intn(len(letters))]
		}
	}
	return string(b)
}

// =============================================================================
// Lazy embeddings
// =============================================================================

func TestVectorFor_ComputedOnceThenCached(t *testing.T) {
	t.Parallel()
	enc := &countingEncoder{}
	eng, _ := buildEngine(t, searchFixture(t), WithEncoder(enc))

	id := eng.Query().EntitiesIn("app.py")[1].ID // parse_config
	ctx := context.Background()

	first, err := eng.VectorFor(ctx, id)
	require.NoError(t, err)
	second, err := eng.VectorFor(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), enc.calls.Load())
}

func TestVectorFor_ConcurrentCallersCoalesce(t *testing.T) {
	t.Parallel()
	enc := &countingEncoder{}
	eng, _ := buildEngine(t, searchFixture(t), WithEncoder(enc))

	id := eng.Query().EntitiesIn("app.py")[1].ID

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.VectorFor(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), enc.calls.Load())
}

func TestVectorFor_DigestChangeInvalidatesCache(t *testing.T) {
	t.Parallel()
	enc := &countingEncoder{}
	root := t.TempDir()
	writeFile(t, root, "a.py", "def work():\n    return 1\n")
	eng, _ := buildEngine(t, root, WithEncoder(enc))

	ctx := context.Background()
	id := eng.Query().EntitiesIn("a.py")[1].ID
	_, err := eng.VectorFor(ctx, id)
	require.NoError(t, err)

	// Same entity ID, changed body: the cached vector must not be reused.
	writeFile(t, root, "a.py", "def work():\n    return 2\n")
	_, err = eng.Build(ctx)
	require.NoError(t, err)

	_, err = eng.VectorFor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), enc.calls.Load())
}

func TestVectorFor_NoEncoderConfigured(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, searchFixture(t))

	id := eng.Query().EntitiesIn("app.py")[0].ID
	_, err := eng.VectorFor(context.Background(), id)
	assert.ErrorIs(t, err, ErrEncoderUnavailable)
}

func TestVectorFor_UnknownEntity(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, searchFixture(t), WithEncoder(&countingEncoder{}))

	_, err := eng.VectorFor(context.Background(), "no/such.py::function::x@1")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestVectorFor_EncodeFailureRetries(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	flaky := encode.Func(func(_ context.Context, text string) ([]float32, error) {
		if calls.Add(1) == 1 {
			return nil, fmt.Errorf("transient")
		}
		return []float32{1, 2, 3}, nil
	})
	eng, _ := buildEngine(t, searchFixture(t), WithEncoder(flaky))

	ctx := context.Background()
	id := eng.Query().EntitiesIn("app.py")[0].ID

	_, err := eng.VectorFor(ctx, id)
	require.ErrorIs(t, err, ErrEncoderUnavailable)

	// The failure is not cached; the next call recomputes.
	vec, err := eng.VectorFor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

// =============================================================================
// Semantic search
// =============================================================================

func TestSearch_RanksAndTruncates(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, searchFixture(t), WithEncoder(&countingEncoder{}))

	ctx := context.Background()
	results, err := eng.Search(ctx, "parse_config parse_config", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearch_Deterministic(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, searchFixture(t), WithEncoder(&countingEncoder{}))

	ctx := context.Background()
	first, err := eng.Search(ctx, "load user profile", 3)
	require.NoError(t, err)
	second, err := eng.Search(ctx, "load user profile", 3)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Entity.ID, second[i].Entity.ID)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestSearch_NoEncoder(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, searchFixture(t))

	_, err := eng.Search(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrEncoderUnavailable)
}

// =============================================================================
// Tokenization
// =============================================================================

func TestNameTokens_Splitting(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		[]string{"parseconfig_v2", "parseconfig", "parse", "config", "v2"},
		nameTokens("parseConfig_v2"))
	assert.Equal(t, []string{"simple"}, nameTokens("simple"))
	assert.Nil(t, nameTokens(""))
}

func TestCosine_EdgeCases(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine(nil, nil))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
}
