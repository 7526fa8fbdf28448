package store

import (
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// WordTokenizerName is the registered name of the word tokenizer.
	WordTokenizerName = "supaquery_word"
	// TextAnalyzerName is the registered name of the chunk text analyzer.
	TextAnalyzerName = "supaquery_text"
)

// wordTokenizer splits on anything that is not a letter or digit. Chunk text
// is prose, so there is no identifier splitting; casing is handled by the
// lowercase filter in the analyzer chain.
type wordTokenizer struct{}

func (t *wordTokenizer) Tokenize(input []byte) analysis.TokenStream {
	stream := make(analysis.TokenStream, 0, len(input)/6)
	position := 0
	start := -1
	for i := 0; i < len(input); {
		r, size := utf8.DecodeRune(input[i:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			position++
			stream = append(stream, &analysis.Token{
				Term:     input[start:i],
				Start:    start,
				End:      i,
				Position: position,
				Type:     analysis.AlphaNumeric,
			})
			start = -1
		}
		i += size
	}
	if start >= 0 {
		position++
		stream = append(stream, &analysis.Token{
			Term:     input[start:],
			Start:    start,
			End:      len(input),
			Position: position,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}

func wordTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &wordTokenizer{}, nil
}

func init() {
	registry.RegisterTokenizer(WordTokenizerName, wordTokenizerConstructor)
}
