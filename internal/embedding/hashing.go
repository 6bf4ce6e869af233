package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashingDim matches the MiniLM output width so vectors are interchangeable in tests.
const DefaultHashingDim = 384

var (
	seedIndex = []byte("semantic-idx-v1::")
	seedSign  = []byte("semantic-sgn-v1::")
)

// Hashing is a FastText-style subword hashing embedder. Words sharing character
// n-grams land close together; there is no notion of meaning beyond spelling.
type Hashing struct {
	dim      int
	minNgram int
	maxNgram int
}

// NewHashing returns a hashing embedder with the given dimensionality.
func NewHashing(dim int) (*Hashing, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding: invalid dimension %d", dim)
	}
	return &Hashing{dim: dim, minNgram: 3, maxNgram: 5}, nil
}

// Embed hashes text into a unit vector. Text without letters or digits has no
// features and yields the zero vector, which scores 0 against anything.
func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	tokens := tokenizeWords(strings.ToLower(text))
	if len(tokens) == 0 {
		return vec, nil
	}
	for _, tok := range tokens {
		h.addWord(vec, tok)
	}
	if !normalize(vec) {
		return nil, errors.New("embedding: zero vector")
	}
	return vec, nil
}

// addWord hashes the bounded word and each of its character n-grams into vec.
func (h *Hashing) addWord(vec []float32, word string) {
	bounded := []rune("<" + word + ">")
	h.addFeature(vec, string(bounded))
	for n := h.minNgram; n <= h.maxNgram && n <= len(bounded); n++ {
		for i := 0; i+n <= len(bounded); i++ {
			h.addFeature(vec, string(bounded[i:i+n]))
		}
	}
}

func (h *Hashing) addFeature(vec []float32, feature string) {
	idx := int(stableHash(seedIndex, feature) % uint64(h.dim))
	if stableHash(seedSign, feature)%2 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

func stableHash(seed []byte, token string) uint64 {
	f := fnv.New64a()
	_, _ = f.Write(seed)
	_, _ = f.Write([]byte(token))
	return f.Sum64()
}

func tokenizeWords(s string) []string {
	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}
