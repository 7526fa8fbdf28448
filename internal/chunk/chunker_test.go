package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentences(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about renewable energy policy. ", i)
	}
	return strings.TrimSpace(sb.String())
}

func TestSplit_EmptyInputYieldsNoChunks(t *testing.T) {
	c := NewChunker()

	assert.Empty(t, c.Split("doc1", "a.pdf", "", PositionMap{}))
	assert.Empty(t, c.Split("doc1", "a.pdf", "   \n\t  ", PositionMap{}))
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	c := NewChunker()

	chunks := c.Split("doc1", "a.pdf", "A single short paragraph.", PositionMap{})

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc1_chunk_0", chunks[0].ID)
	assert.Equal(t, "doc1", chunks[0].DocID)
	assert.Equal(t, "a.pdf", chunks[0].Source)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, CitationNone, chunks[0].Citation.Kind())
}

func TestSplit_LongTextProducesOverlappingChunks(t *testing.T) {
	c := NewChunker()
	text := sentences(300) // ~2100 words

	chunks := c.Split("doc1", "a.pdf", text, PositionMap{})

	require.Greater(t, len(chunks), 2)
	for i, ch := range chunks {
		assert.Equal(t, ChunkID("doc1", i), ch.ID)
		assert.Equal(t, i, ch.Ordinal)
		assert.NotEmpty(t, strings.TrimSpace(ch.Text))
	}
	// Consecutive chunks overlap: the next chunk starts before the
	// previous one ends.
	for i := 1; i < len(chunks); i++ {
		assert.Less(t, chunks[i].StartChar, chunks[i-1].EndChar,
			"chunk %d should overlap its predecessor", i)
	}
}

func TestSplit_NeverSplitsMidWord(t *testing.T) {
	c := &Chunker{ChunkTokens: 10, OverlapTokens: 2}
	text := sentences(20)

	chunks := c.Split("doc1", "a.pdf", text, PositionMap{})

	for _, ch := range chunks {
		if ch.StartChar > 0 {
			assert.Equal(t, byte(' '), text[ch.StartChar-1],
				"chunk must start at a word boundary")
		}
		if ch.EndChar < len(text) {
			assert.Equal(t, byte(' '), text[ch.EndChar],
				"chunk must end at a word boundary")
		}
	}
}

func TestSplit_PageCitationsIntersectPositionMap(t *testing.T) {
	c := &Chunker{ChunkTokens: 40, OverlapTokens: 5}
	text := sentences(30)
	third := len(text) / 3
	pos := PositionMap{Pages: []PageSpan{
		{Page: 1, Start: 0, End: third},
		{Page: 2, Start: third, End: 2 * third},
		{Page: 3, Start: 2 * third, End: len(text)},
	}}

	chunks := c.Split("doc1", "report.pdf", text, pos)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		pc, ok := ch.Citation.(PageCitation)
		require.True(t, ok, "paginated source must yield page citations")
		require.NotEmpty(t, pc.Pages)
		for _, p := range pc.Pages {
			assert.GreaterOrEqual(t, p, 1)
			assert.LessOrEqual(t, p, 3)
		}
	}

	// First chunk starts on page 1; last chunk reaches page 3.
	first := chunks[0].Citation.(PageCitation)
	assert.Equal(t, 1, first.Pages[0])
	last := chunks[len(chunks)-1].Citation.(PageCitation)
	assert.Equal(t, 3, last.Pages[len(last.Pages)-1])
}

func TestSplit_ChunkSpanningTwoPagesListsBoth(t *testing.T) {
	c := NewChunker()
	text := sentences(10)
	mid := len(text) / 2
	pos := PositionMap{Pages: []PageSpan{
		{Page: 3, Start: 0, End: mid},
		{Page: 4, Start: mid, End: len(text)},
	}}

	chunks := c.Split("doc1", "report.pdf", text, pos)
	require.Len(t, chunks, 1)

	pc := chunks[0].Citation.(PageCitation)
	assert.Equal(t, []int{3, 4}, pc.Pages)
	assert.Equal(t, "3-4", pc.PageRange)
}

func TestSplit_TimeCitationsCoverSegments(t *testing.T) {
	c := &Chunker{ChunkTokens: 25, OverlapTokens: 3}
	text := sentences(20)
	half := len(text) / 2
	pos := PositionMap{Segments: []AudioSegment{
		{Start: 0, End: 42.5, StartChar: 0, EndChar: half},
		{Start: 42.5, End: 90, StartChar: half, EndChar: len(text)},
	}}

	chunks := c.Split("doc1", "interview.wav", text, pos)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		tc, ok := ch.Citation.(TimeCitation)
		require.True(t, ok)
		assert.GreaterOrEqual(t, tc.Start, 0.0)
		assert.LessOrEqual(t, tc.Start, tc.End)
		assert.LessOrEqual(t, tc.End, 90.0)
		assert.NotEmpty(t, tc.TimestampRange)
	}

	first := chunks[0].Citation.(TimeCitation)
	assert.Equal(t, 0.0, first.Start)
	last := chunks[len(chunks)-1].Citation.(TimeCitation)
	assert.Equal(t, 90.0, last.End)
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{61, "01:01"},
		{135.7, "02:15"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{7325, "02:02:05"},
		{-5, "00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.seconds))
		})
	}
}

func TestCitationRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		c    Citation
	}{
		{"pages", PageCitation{Pages: []int{3, 4}, PageRange: "3-4"}},
		{"time", TimeCitation{Start: 135, End: 220, Timestamp: "02:15", TimestampRange: "02:15 - 03:40"}},
		{"none", NoCitation{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeCitation(tt.c)
			decoded, err := DecodeCitation(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.c, decoded)
		})
	}
}

func TestDecodeCitation_Malformed(t *testing.T) {
	_, err := DecodeCitation("{not json")
	assert.Error(t, err)

	_, err = DecodeCitation(`{"type":"carrier-pigeon"}`)
	assert.Error(t, err)
}

func TestEncodeCitation_NilIsEmpty(t *testing.T) {
	assert.Empty(t, EncodeCitation(nil))
}
