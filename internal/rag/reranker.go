package rag

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters, standard Okapi values.
const (
	bm25K1 = 1.5
	bm25B  = 0.75

	// semanticWeight and lexicalWeight blend the two scores.
	semanticWeight = 0.6
	lexicalWeight  = 0.4
)

// LexicalReranker reorders retrieval candidates by blending the semantic
// score with a BM25-Okapi score computed over the candidate set itself.
type LexicalReranker struct{}

// NewLexicalReranker builds a reranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rerank scores chunks against the query and returns the top k by the
// blended score. BM25 scores are squashed to [0,1) with s/(s+1) before
// blending. Ties and zero-information queries preserve the incoming
// (semantic) order.
func (r *LexicalReranker) Rerank(query string, chunks []RetrievedChunk, k int) []RetrievedChunk {
	if len(chunks) == 0 || k <= 0 {
		return nil
	}

	queryTerms := tokenizeQuery(query)
	if len(queryTerms) == 0 {
		return topN(chunks, k)
	}

	lexical := bm25Scores(queryTerms, chunks)

	allZero := true
	for _, s := range lexical {
		if s > 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return topN(chunks, k)
	}

	type scored struct {
		chunk RetrievedChunk
		score float64
	}
	scoredChunks := make([]scored, len(chunks))
	for i, c := range chunks {
		normalized := lexical[i] / (lexical[i] + 1)
		scoredChunks[i] = scored{
			chunk: c,
			score: semanticWeight*c.Score + lexicalWeight*normalized,
		}
	}
	sort.SliceStable(scoredChunks, func(i, j int) bool {
		return scoredChunks[i].score > scoredChunks[j].score
	})

	n := min(k, len(scoredChunks))
	result := make([]RetrievedChunk, n)
	for i := 0; i < n; i++ {
		result[i] = scoredChunks[i].chunk
		result[i].Score = scoredChunks[i].score
	}
	return result
}

// bm25Scores computes BM25-Okapi for each chunk, with document frequency and
// average length taken over the candidate set.
func bm25Scores(queryTerms []string, chunks []RetrievedChunk) []float64 {
	docs := make([]map[string]int, len(chunks))
	lengths := make([]int, len(chunks))
	var totalLen int
	for i, c := range chunks {
		tf := make(map[string]int)
		terms := tokenizeQuery(c.Text)
		for _, t := range terms {
			tf[t]++
		}
		docs[i] = tf
		lengths[i] = len(terms)
		totalLen += len(terms)
	}
	avgLen := float64(totalLen) / float64(len(chunks))
	if avgLen == 0 {
		return make([]float64, len(chunks))
	}

	df := make(map[string]int)
	for _, term := range queryTerms {
		for _, tf := range docs {
			if tf[term] > 0 {
				df[term]++
			}
		}
	}

	n := float64(len(chunks))
	scores := make([]float64, len(chunks))
	for i := range chunks {
		var score float64
		for _, term := range queryTerms {
			f := float64(docs[i][term])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			norm := f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*float64(lengths[i])/avgLen))
			score += idf * norm
		}
		scores[i] = score
	}
	return scores
}

func tokenizeQuery(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func topN(chunks []RetrievedChunk, k int) []RetrievedChunk {
	n := min(k, len(chunks))
	result := make([]RetrievedChunk, n)
	copy(result, chunks[:n])
	return result
}
