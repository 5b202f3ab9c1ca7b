package lantern

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/jward/lantern/internal/encode"
	"github.com/jward/lantern/internal/entity"
	"github.com/jward/lantern/internal/store"
)

// searchLayer owns the lazy embedding cache. Presence filters belong to
// individual snapshots, so pinned generations keep consistent answers;
// cached vectors survive rebuilds as long as their entity's text digest is
// unchanged.
type searchLayer struct {
	encoder encode.Encoder
	store   *store.Store

	mu    sync.RWMutex
	cells map[string]*vectorCell // entity ID -> memoized computation
}

// vectorCell memoizes one entity's embedding. Concurrent callers for the
// same uncached entity coalesce on the cell's once.
type vectorCell struct {
	digest string
	once   sync.Once
	vec    []float32
	err    error
}

func newSearchLayer(enc encode.Encoder, s *store.Store) *searchLayer {
	return &searchLayer{
		encoder: enc,
		store:   s,
		cells:   make(map[string]*vectorCell),
	}
}

// newPresenceFilter builds a bloom filter over every name token in the
// entity set, sized from the distinct token count at the given false
// positive rate. A token that was indexed always tests positive; false
// negatives are impossible by construction.
func newPresenceFilter(entities map[string][]*entity.Entity, fpRate float64) *bloom.BloomFilter {
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	tokens := make(map[string]bool)
	for _, ents := range entities {
		for _, e := range ents {
			for _, tok := range nameTokens(e.Name) {
				tokens[tok] = true
			}
		}
	}

	n := uint(len(tokens))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, fpRate)
	for tok := range tokens {
		filter.AddString(tok)
	}
	return filter
}

// invalidate drops cached vector cells whose entity vanished or whose
// digest went stale in the new snapshot.
func (s *searchLayer) invalidate(snap *snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cell := range s.cells {
		ent, ok := snap.byID[id]
		if !ok || ent.Digest() != cell.digest {
			delete(s.cells, id)
		}
	}
}

// vectorFor returns the entity's embedding, computing it on first access.
// A changed digest invalidates the cached vector and forces recomputation.
func (s *searchLayer) vectorFor(ctx context.Context, ent *entity.Entity) ([]float32, error) {
	if s.encoder == nil {
		return nil, ErrEncoderUnavailable
	}
	digest := ent.Digest()

	s.mu.Lock()
	cell, ok := s.cells[ent.ID]
	if !ok || cell.digest != digest {
		cell = &vectorCell{digest: digest}
		s.cells[ent.ID] = cell
	}
	s.mu.Unlock()

	cell.once.Do(func() {
		if s.store != nil {
			if vec, err := s.store.LoadVector(ent.ID, digest); err == nil && vec != nil {
				cell.vec = vec
				return
			}
		}
		vec, err := s.encoder.Encode(ctx, ent.Text())
		if err != nil {
			cell.err = fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
			return
		}
		cell.vec = vec
		if s.store != nil {
			_ = s.store.SaveVector(ent.ID, digest, vec)
		}
	})
	if cell.err != nil {
		// Failed computations are not cached; the next caller retries.
		s.mu.Lock()
		if s.cells[ent.ID] == cell {
			delete(s.cells, ent.ID)
		}
		s.mu.Unlock()
	}
	return cell.vec, cell.err
}

// query embeds the query text and ranks every entity by cosine similarity.
// Linear in entity count; n is bounded by one codebase, so no approximate
// index is kept.
func (s *searchLayer) query(ctx context.Context, snap *snapshot, text string, k int) ([]SearchResult, error) {
	if s.encoder == nil {
		return nil, ErrEncoderUnavailable
	}
	if k < 1 {
		k = 1
	}

	qvec, err := s.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
	}

	// Sorted ID order keeps scoring deterministic across runs.
	ids := make([]string, 0, len(snap.byID))
	for id := range snap.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]SearchResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ent := snap.byID[id]
		vec, err := s.vectorFor(ctx, ent)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Entity: ent, Score: cosine(qvec, vec)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.ID < results[j].Entity.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// cosine computes cosine similarity. Mismatched or zero-length vectors
// score zero.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// nameTokens splits an identifier into lowercase tokens: the whole name,
// separator-split pieces, and camelCase humps within each piece.
// "parseConfig_v2" yields parseconfig_v2, parseconfig, parse, config, v2.
func nameTokens(name string) []string {
	if name == "" {
		return nil
	}
	var tokens []string
	lower := strings.ToLower(name)
	tokens = append(tokens, lower)

	pieces := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, piece := range pieces {
		pl := strings.ToLower(piece)
		if pl != lower {
			tokens = append(tokens, pl)
		}
		tokens = append(tokens, camelSplit(piece)...)
	}
	return tokens
}

// camelSplit breaks one identifier piece at lower-to-upper boundaries.
func camelSplit(piece string) []string {
	var parts []string
	runes := []rune(piece)
	start := 0
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i-1]) {
			parts = append(parts, strings.ToLower(string(runes[start:i])))
			start = i
		}
	}
	if start > 0 {
		parts = append(parts, strings.ToLower(string(runes[start:])))
	}
	return parts
}
