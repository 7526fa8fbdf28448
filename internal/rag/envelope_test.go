package rag

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anishks07/SupaQuery/internal/chunk"
)

func TestAnswerEnvelope(t *testing.T) {
	pages := chunk.EncodeCitation(chunk.PageCitation{Pages: []int{3, 4}, PageRange: "3-4"})
	ans := &Answer{
		Text:      "The settlement totals four million dollars.",
		Strategy:  StrategyRetrieve,
		QueryType: QueryFact,
		Attempts:  2,
		Sources: []Source{
			{DocID: "doc1", Filename: "contract.pdf"},
			{DocID: "doc1", Filename: "contract.pdf"},
			{DocID: "doc2"},
		},
		Chunks: []RetrievedChunk{
			{
				ChunkID:  "doc1_chunk_0",
				DocID:    "doc1",
				Source:   "contract.pdf",
				Text:     "  The settlement totals four million dollars, payable quarterly.  ",
				Citation: pages,
				Entities: []string{"Acme Corp", "Acme Corp", "Berlin"},
			},
		},
		Evaluation: &Evaluation{Quality: 0.9, Completeness: 0.8, Relevance: 1.0, Overall: 0.9},
	}

	env := ans.Envelope()

	assert.Equal(t, ans.Text, env.Answer)
	assert.Equal(t, "retrieve", env.Strategy)
	assert.Equal(t, "fact", env.QueryType)
	assert.Equal(t, 2, env.Attempts)

	require.Len(t, env.Citations, 1)
	c := env.Citations[0]
	assert.Equal(t, "doc1_chunk_0", c.ChunkID)
	assert.Equal(t, "contract.pdf", c.Source)
	assert.Equal(t, "pp. 3-4", c.Location)
	assert.Equal(t, "The settlement totals four million dollars, payable quarterly.", c.Text)

	// Duplicate filenames collapse; a missing filename falls back to the doc ID.
	require.Len(t, env.Sources, 2)
	assert.Equal(t, "contract.pdf", env.Sources[0].Filename)
	assert.Equal(t, "doc2", env.Sources[1].Filename)

	require.Len(t, env.Entities, 2)
	assert.Equal(t, "Acme Corp", env.Entities[0].Name)
	assert.Equal(t, "Berlin", env.Entities[1].Name)

	require.NotNil(t, env.Evaluation)
	assert.Equal(t, 0.9, env.Evaluation.Overall)
	assert.Equal(t, 2, env.Evaluation.Attempts)
}

func TestAnswerEnvelope_JSONShape(t *testing.T) {
	ans := &Answer{Text: "hi", Strategy: StrategyDirectReply}
	data, err := json.Marshal(ans.Envelope())
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, `"answer":"hi"`)
	assert.Contains(t, body, `"strategy":"direct_reply"`)
	// Empty slices serialize as [], not null.
	assert.Contains(t, body, `"citations":[]`)
	assert.Contains(t, body, `"sources":[]`)
	// Optional blocks drop out entirely.
	assert.NotContains(t, body, "evaluation")
	assert.NotContains(t, body, "query_type")
}

func TestExcerptTruncatesOnWordBoundary(t *testing.T) {
	long := strings.Repeat("settlement clause ", 30)
	out := excerpt(long)
	assert.LessOrEqual(t, len(out), citationExcerptLen+3)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(out, "..."), " "))
}
