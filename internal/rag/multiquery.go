package rag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/anishks07/SupaQuery/internal/llm"
)

// DefaultVariations is the number of paraphrases requested from the LLM.
const DefaultVariations = 3

// minVariationChars drops degenerate paraphrases ("Yes.", stray fragments).
const minVariationChars = 10

var listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)]|[a-z][.)])\s*`)

// MultiQueryGenerator expands a question into paraphrases so retrieval sees
// multiple phrasings of the same intent.
type MultiQueryGenerator struct {
	client     llm.Client
	variations int
	logger     *slog.Logger
}

// NewMultiQueryGenerator builds a generator asking for n paraphrases per
// query (DefaultVariations when n <= 0).
func NewMultiQueryGenerator(client llm.Client, n int, logger *slog.Logger) *MultiQueryGenerator {
	if n <= 0 {
		n = DefaultVariations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiQueryGenerator{client: client, variations: n, logger: logger}
}

// historyTurns is how many trailing conversation turns condition the
// paraphrase prompt.
const historyTurns = 3

// Generate returns the original query first, followed by up to n distinct
// paraphrases. Simple factual questions skip expansion entirely, and any LLM
// failure degrades to the original query alone.
func (g *MultiQueryGenerator) Generate(ctx context.Context, query string) []string {
	return g.GenerateWith(ctx, query, nil)
}

// GenerateWith conditions the paraphrases on recent conversation turns, so
// follow-up questions ("what about 2019?") expand with their referent.
func (g *MultiQueryGenerator) GenerateWith(ctx context.Context, query string, history []Turn) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if isSimpleQuestion(query) {
		return []string{query}
	}

	prompt := fmt.Sprintf(
		"%sRephrase the following question in %d different ways that keep its exact meaning. "+
			"Reply with one rephrasing per line and nothing else.\n\nQuestion: %s",
		historyPreamble(history), g.variations, query)

	raw, err := g.client.Generate(ctx, prompt, &llm.Options{Temperature: 0.7})
	if err != nil {
		g.logger.Debug("query expansion failed, using original only", "error", err)
		return []string{query}
	}

	queries := []string{query}
	seen := map[string]bool{normalizeQuery(query): true}
	for _, line := range strings.Split(raw, "\n") {
		variation := cleanVariation(line)
		if len(variation) < minVariationChars {
			continue
		}
		key := normalizeQuery(variation)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, variation)
		if len(queries) == g.variations+1 {
			break
		}
	}
	return queries
}

// isSimpleQuestion spots short factual lookups where paraphrasing adds
// latency without recall: few words, one clause, a question word up front.
func isSimpleQuestion(query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 || len(words) > 6 {
		return false
	}
	if strings.ContainsAny(query, ",;") {
		return false
	}
	switch words[0] {
	case "who", "what", "when", "where", "which", "how":
		return true
	}
	return false
}

// historyPreamble renders the last few turns ahead of the instruction, or
// nothing when there is no history.
func historyPreamble(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, turn := range history {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(turn.Content))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func cleanVariation(line string) string {
	s := listMarkerRe.ReplaceAllString(strings.TrimSpace(line), "")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(q), "?!. "))
}
