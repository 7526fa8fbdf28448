package rag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/anishks07/SupaQuery/internal/llm"
)

const (
	// DefaultQualityThreshold is the mean score an answer needs to stand.
	DefaultQualityThreshold = 0.7

	// retryTriggerScore is the per-dimension score below which the retry
	// plan switches on the matching remedy.
	retryTriggerScore = 0.6

	// retryTopK is the widened top-k prescribed for retries.
	retryTopK = 10

	// noChunksRelevance is the floor relevance for answers generated
	// without any retrieved context.
	noChunksRelevance = 0.2
)

// Evaluation scores one generated answer.
type Evaluation struct {
	Quality      float64
	Completeness float64
	Relevance    float64
	Overall      float64
	Sufficient   bool
	Retry        *RetryPlan
}

// RetryPlan prescribes how the next attempt should differ. Nil when the
// answer is sufficient or retries are exhausted.
type RetryPlan struct {
	ExpandSearch bool
	TopK         int
	UseEntities  bool
	RefineQuery  bool
}

// Evaluator judges answers on quality, completeness, and grounding. The LLM
// scores quality and completeness; when it fails, deterministic fallbacks
// keep the pipeline moving.
type Evaluator struct {
	client    llm.Client
	threshold float64
	logger    *slog.Logger
}

// NewEvaluator builds an evaluator with the given sufficiency threshold
// (DefaultQualityThreshold when zero).
func NewEvaluator(client llm.Client, threshold float64, logger *slog.Logger) *Evaluator {
	if threshold <= 0 {
		threshold = DefaultQualityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{client: client, threshold: threshold, logger: logger}
}

// Evaluate scores the answer and, when it falls short, prescribes a retry.
func (e *Evaluator) Evaluate(ctx context.Context, query, answer string, chunks []RetrievedChunk) Evaluation {
	quality := e.scoreQuality(ctx, query, answer)
	completeness := e.scoreCompleteness(ctx, query, answer)
	relevance := scoreRelevance(answer, chunks)

	overall := (quality + completeness + relevance) / 3
	eval := Evaluation{
		Quality:      quality,
		Completeness: completeness,
		Relevance:    relevance,
		Overall:      overall,
		Sufficient:   overall >= e.threshold,
	}
	if !eval.Sufficient {
		eval.Retry = &RetryPlan{
			ExpandSearch: completeness < retryTriggerScore,
			TopK:         retryTopK,
			UseEntities:  relevance < retryTriggerScore,
			RefineQuery:  quality < retryTriggerScore,
		}
	}
	return eval
}

var scoreRe = regexp.MustCompile(`\b(10|\d)(?:\.\d+)?\b`)

// scoreQuality asks the LLM for a 0-10 rating. Empty and formulaic refusal
// answers are scored heuristically without an LLM call. On LLM failure it
// falls back to a length-banded estimate: very short answers rarely carry
// substance.
func (e *Evaluator) scoreQuality(ctx context.Context, query, answer string) float64 {
	if score, ok := refusalScore(answer); ok {
		return score
	}

	prompt := fmt.Sprintf(
		"Rate the quality of this answer on a scale of 0 to 10. "+
			"Consider clarity, directness, and whether it actually addresses the question. "+
			"Reply with just the number.\n\nQuestion: %s\n\nAnswer: %s",
		query, answer)

	raw, err := e.client.Generate(ctx, prompt, &llm.Options{Temperature: 0.1, MaxTokens: 8})
	if err == nil {
		if score, ok := parseScore(raw); ok {
			return score / 10
		}
		e.logger.Debug("unparseable quality rating, using length fallback", "raw", strings.TrimSpace(raw))
	} else {
		e.logger.Debug("quality evaluation failed, using length fallback", "error", err)
	}
	return lengthBandScore(answer)
}

// refusalScore recognizes empty answers and stock refusals, which never
// merit a retry-saving score however confidently the LLM might rate them.
func refusalScore(answer string) (float64, bool) {
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) < 10 {
		return 0.0, true
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "i don't know"),
		strings.Contains(lower, "cannot answer"):
		return 0.3, true
	case strings.Contains(lower, "don't have enough information"),
		strings.Contains(lower, "couldn't find anything relevant"):
		return 0.4, true
	}
	return 0, false
}

func lengthBandScore(answer string) float64 {
	switch n := len(strings.TrimSpace(answer)); {
	case n < 50:
		return 0.3
	case n < 200:
		return 0.5
	default:
		return 0.7
	}
}

// scoreCompleteness asks the LLM whether the answer covers the whole
// question. On failure it falls back to Jaccard overlap of content words.
func (e *Evaluator) scoreCompleteness(ctx context.Context, query, answer string) float64 {
	prompt := fmt.Sprintf(
		"Does this answer fully address every part of the question? "+
			"Rate completeness 0 to 10 and reply with just the number.\n\nQuestion: %s\n\nAnswer: %s",
		query, answer)

	raw, err := e.client.Generate(ctx, prompt, &llm.Options{Temperature: 0.1, MaxTokens: 8})
	if err == nil {
		if score, ok := parseScore(raw); ok {
			return score / 10
		}
	} else {
		e.logger.Debug("completeness evaluation failed, using overlap fallback", "error", err)
	}
	return jaccard(tokenizeQuery(query), tokenizeQuery(answer))
}

// scoreRelevance measures grounding: the fraction of answer content words
// found in the retrieved chunks, boosted by 1.5 and capped at 1.0 since
// answers legitimately paraphrase. With no chunks the score floors at 0.2.
func scoreRelevance(answer string, chunks []RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return noChunksRelevance
	}

	contextTerms := make(map[string]bool)
	for _, c := range chunks {
		for _, t := range tokenizeQuery(c.Text) {
			contextTerms[t] = true
		}
	}

	answerTerms := tokenizeQuery(answer)
	var content, grounded int
	for _, t := range answerTerms {
		if len(t) < 4 || queryStopWords[t] {
			continue
		}
		content++
		if contextTerms[t] {
			grounded++
		}
	}
	if content == 0 {
		return noChunksRelevance
	}
	score := float64(grounded) / float64(content) * 1.5
	return min(score, 1.0)
}

func parseScore(raw string) (float64, bool) {
	match := scoreRe.FindString(strings.TrimSpace(raw))
	if match == "" {
		return 0, false
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil || score < 0 || score > 10 {
		return 0, false
	}
	return score, true
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]bool)
	for _, t := range a {
		if len(t) >= 3 {
			setA[t] = true
		}
	}
	setB := make(map[string]bool)
	for _, t := range b {
		if len(t) >= 3 {
			setB[t] = true
		}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	var intersection int
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}
