package chunk

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultChunkTokens is the approximate chunk body size in tokens.
	DefaultChunkTokens = 512
	// DefaultOverlapTokens is the approximate token overlap between
	// consecutive chunks.
	DefaultOverlapTokens = 50
)

// Chunker splits extracted document text into overlapping chunks that carry
// citations computed from the document's position map.
type Chunker struct {
	ChunkTokens   int
	OverlapTokens int
}

// NewChunker returns a chunker with the default token budget.
func NewChunker() *Chunker {
	return &Chunker{
		ChunkTokens:   DefaultChunkTokens,
		OverlapTokens: DefaultOverlapTokens,
	}
}

// sentenceEnd matches sentence terminators followed by whitespace.
var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// Split chunks the extracted text of one document. Empty or whitespace-only
// input yields an empty list. Splitting respects sentence boundaries when
// possible and never splits mid-word.
func (c *Chunker) Split(docID, source, text string, pos PositionMap) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunkTokens := c.ChunkTokens
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	overlap := c.OverlapTokens
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkTokens {
		overlap = chunkTokens / 2
	}

	words := splitWords(text)
	if len(words) == 0 {
		return nil
	}

	// Sentence-final word indexes let chunk boundaries snap to sentence
	// ends when one falls near the token budget.
	sentenceEnds := sentenceEndWordIndexes(text, words)

	var chunks []Chunk
	start := 0
	ordinal := 0
	for start < len(words) {
		end := start + chunkTokens
		if end >= len(words) {
			end = len(words)
		} else {
			end = snapToSentence(sentenceEnds, start, end)
		}

		startChar := words[start].start
		endChar := words[end-1].end
		body := text[startChar:endChar]

		chunks = append(chunks, Chunk{
			ID:        ChunkID(docID, ordinal),
			DocID:     docID,
			Source:    source,
			Text:      body,
			Ordinal:   ordinal,
			StartChar: startChar,
			EndChar:   endChar,
			Citation:  citationFor(startChar, endChar, pos),
		})
		ordinal++

		if end >= len(words) {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// wordSpan records one whitespace-delimited token's character interval.
type wordSpan struct {
	start int
	end   int
}

func splitWords(text string) []wordSpan {
	var spans []wordSpan
	inWord := false
	wordStart := 0
	for i, r := range text {
		space := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		switch {
		case !space && !inWord:
			inWord = true
			wordStart = i
		case space && inWord:
			inWord = false
			spans = append(spans, wordSpan{start: wordStart, end: i})
		}
	}
	if inWord {
		spans = append(spans, wordSpan{start: wordStart, end: len(text)})
	}
	return spans
}

// sentenceEndWordIndexes returns, sorted ascending, the indexes of words
// that end a sentence.
func sentenceEndWordIndexes(text string, words []wordSpan) []int {
	matches := sentenceEnd.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	var ends []int
	for _, m := range matches {
		// The terminator character sits at m[0]; find the word containing it.
		idx := sort.Search(len(words), func(i int) bool { return words[i].end > m[0] })
		if idx < len(words) {
			ends = append(ends, idx+1) // exclusive word boundary
		}
	}
	return ends
}

// snapToSentence moves the exclusive word boundary back to the nearest
// sentence end, provided it stays within the back half of the chunk.
func snapToSentence(sentenceEnds []int, start, end int) int {
	if len(sentenceEnds) == 0 {
		return end
	}
	floor := start + (end-start)/2
	idx := sort.SearchInts(sentenceEnds, end+1) - 1
	if idx >= 0 && sentenceEnds[idx] > floor && sentenceEnds[idx] <= end {
		return sentenceEnds[idx]
	}
	return end
}

// citationFor intersects a chunk's character interval with the position map.
func citationFor(startChar, endChar int, pos PositionMap) Citation {
	switch {
	case len(pos.Pages) > 0:
		return pageCitationFor(startChar, endChar, pos.Pages)
	case len(pos.Segments) > 0:
		return timeCitationFor(startChar, endChar, pos.Segments)
	}
	return NoCitation{}
}

func pageCitationFor(startChar, endChar int, spans []PageSpan) Citation {
	var pages []int
	seen := map[int]bool{}
	for _, ps := range spans {
		if ps.Start < endChar && ps.End > startChar && !seen[ps.Page] {
			seen[ps.Page] = true
			pages = append(pages, ps.Page)
		}
	}
	if len(pages) == 0 {
		return NoCitation{}
	}
	sort.Ints(pages)
	return PageCitation{Pages: pages, PageRange: formatPageRange(pages)}
}

func formatPageRange(pages []int) string {
	if len(pages) == 1 {
		return fmt.Sprintf("%d", pages[0])
	}
	return fmt.Sprintf("%d-%d", pages[0], pages[len(pages)-1])
}

func timeCitationFor(startChar, endChar int, segs []AudioSegment) Citation {
	first := -1
	last := -1
	for i, s := range segs {
		if s.StartChar < endChar && s.EndChar > startChar {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 {
		return NoCitation{}
	}
	start := segs[first].Start
	end := segs[last].End
	return TimeCitation{
		Start:          start,
		End:            end,
		Timestamp:      FormatTimestamp(start),
		TimestampRange: FormatTimestamp(start) + " - " + FormatTimestamp(end),
	}
}
