package embedding

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// maxLexicalTokens caps how many tokens contribute hashed buckets.
const maxLexicalTokens = 20

// keywordBoost is added to each bucket of a domain keyword per occurrence.
const keywordBoost = 2.0

// semanticKeywords maps domain terms to fixed buckets. Keeping the table
// constant is what makes lexical vectors comparable across runs.
var semanticKeywords = []struct {
	term    string
	buckets [4]int
}{
	{"music", [4]int{0, 50, 100, 150}},
	{"concert", [4]int{1, 51, 101, 151}},
	{"festival", [4]int{2, 52, 102, 152}},
	{"technology", [4]int{10, 60, 110, 160}},
	{"conference", [4]int{11, 61, 111, 161}},
	{"art", [4]int{20, 70, 120, 170}},
	{"sports", [4]int{30, 80, 130, 180}},
	{"outdoor", [4]int{40, 90, 140, 190}},
	{"indoor", [4]int{41, 91, 141, 191}},
}

// LexicalEmbedding is the deterministic bag-of-words fallback. Tokens are
// hashed with xxhash (unsalted), so the same text yields bit-identical
// vectors in every process.
func LexicalEmbedding(text string, dim int) []float32 {
	vec := make([]float64, dim)
	lower := strings.ToLower(text)

	tokens := strings.Fields(lower)
	if len(tokens) > maxLexicalTokens {
		tokens = tokens[:maxLexicalTokens]
	}
	for _, tok := range tokens {
		vec[xxhash.Sum64String(tok)%uint64(dim)] += 1.0
	}

	for _, kw := range semanticKeywords {
		n := strings.Count(lower, kw.term)
		if n == 0 {
			continue
		}
		for _, b := range kw.buckets {
			if b < dim {
				vec[b] += keywordBoost * float64(n)
			}
		}
	}

	return normalize(vec)
}

// SeededEmbedding draws a standard normal vector seeded by the lower-cased
// text. It carries no meaning and exists only so Embed never fails.
func SeededEmbedding(text string, dim int) []float32 {
	seed := xxhash.Sum64String(strings.ToLower(text))
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	out := make([]float32, dim)
	for i := range out {
		out[i] = float32(rng.NormFloat64())
	}
	return out
}

// normalize L2-normalizes into float32, leaving zero vectors untouched.
func normalize(vec []float64) []float32 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(vec))
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}

// finite reports whether every component is a real number.
func finite(vec []float32) bool {
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
