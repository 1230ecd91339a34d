package retrieval

import (
	"math"
	"strings"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(text string) []float64
	Dimension() int
}

// FinancialTerms is the curated vocabulary of the term-frequency embedding.
// "goal" appears twice on purpose so stored vectors keep their dimension.
var FinancialTerms = []string{
	"money", "save", "spend", "earn", "invest", "budget", "credit",
	"debt", "interest", "goal", "bank", "account", "stock", "bond",
	"profit", "loss", "income", "expense", "financial", "wealth",
	"rich", "poor", "buy", "sell", "trade", "price", "value",
	"kid", "child", "education", "learn", "understand", "financial literacy",
	"smart", "wise", "future", "plan", "goal", "business", "work",
}

// TermFrequencyEmbedder counts substring occurrences of each vocabulary
// term in the lowercased text and L2-normalizes the counts.
type TermFrequencyEmbedder struct {
	terms []string
}

func NewTermFrequencyEmbedder(terms []string) *TermFrequencyEmbedder {
	if len(terms) == 0 {
		terms = FinancialTerms
	}
	return &TermFrequencyEmbedder{terms: terms}
}

func (e *TermFrequencyEmbedder) Dimension() int { return len(e.terms) }

func (e *TermFrequencyEmbedder) Embed(text string) []float64 {
	lower := strings.ToLower(text)
	vec := make([]float64, len(e.terms))
	for i, term := range e.terms {
		vec[i] = float64(strings.Count(lower, term))
	}
	normalize(vec)
	return vec
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

func cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		na += v * v
	}
	for _, v := range b {
		nb += v * v
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
