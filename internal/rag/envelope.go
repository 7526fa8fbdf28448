package rag

import (
	"strings"

	"github.com/anishks07/SupaQuery/internal/chunk"
)

// citationExcerptLen bounds the evidence text carried per citation.
const citationExcerptLen = 200

// Envelope is the serializable response shape shared by the CLI's JSON
// output and the MCP tools.
type Envelope struct {
	Answer     string            `json:"answer"`
	Citations  []CitationRef     `json:"citations"`
	Sources    []SourceRef       `json:"sources"`
	Entities   []EntityRef       `json:"entities,omitempty"`
	Strategy   string            `json:"strategy"`
	QueryType  string            `json:"query_type,omitempty"`
	Attempts   int               `json:"attempts,omitempty"`
	Evaluation *EvaluationScores `json:"evaluation,omitempty"`
}

// CitationRef ties an evidence excerpt back to its position in a source.
type CitationRef struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	DocID    string `json:"doc_id"`
	ChunkID  string `json:"chunk_id"`
	Location string `json:"location,omitempty"`
}

// SourceRef is one contributing document.
type SourceRef struct {
	Filename string `json:"filename"`
}

// EntityRef is an entity surfaced by the answer's documents.
type EntityRef struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Mentions int    `json:"mentions,omitempty"`
}

// EvaluationScores is the serialized evaluation block.
type EvaluationScores struct {
	Overall      float64 `json:"overall_score"`
	Quality      float64 `json:"quality_score"`
	Completeness float64 `json:"completeness_score"`
	Relevance    float64 `json:"relevance_score"`
	Attempts     int     `json:"attempts"`
}

// Envelope converts the answer to its wire shape.
func (a *Answer) Envelope() Envelope {
	env := Envelope{
		Answer:    a.Text,
		Citations: []CitationRef{},
		Sources:   []SourceRef{},
		Strategy:  string(a.Strategy),
		QueryType: string(a.QueryType),
		Attempts:  a.Attempts,
	}

	for _, c := range a.Chunks {
		ref := CitationRef{
			Text:    excerpt(c.Text),
			Source:  c.Source,
			DocID:   c.DocID,
			ChunkID: c.ChunkID,
		}
		if c.Citation != "" {
			if cit, err := chunk.DecodeCitation(c.Citation); err == nil {
				ref.Location = cit.Label()
			}
		}
		env.Citations = append(env.Citations, ref)
	}

	seenSource := make(map[string]bool)
	for _, s := range a.Sources {
		name := s.Filename
		if name == "" {
			name = s.DocID
		}
		if name == "" || seenSource[name] {
			continue
		}
		seenSource[name] = true
		env.Sources = append(env.Sources, SourceRef{Filename: name})
	}

	if len(a.Entities) > 0 {
		for _, e := range a.Entities {
			env.Entities = append(env.Entities, EntityRef{
				Name: e.Name, Type: e.Type, Mentions: e.Mentions,
			})
		}
	} else {
		// Graph unavailable: fall back to the chunk-level mentions.
		seenEntity := make(map[string]bool)
		for _, c := range a.Chunks {
			for _, name := range c.Entities {
				if name == "" || seenEntity[name] {
					continue
				}
				seenEntity[name] = true
				env.Entities = append(env.Entities, EntityRef{Name: name})
			}
		}
	}

	if a.Evaluation != nil {
		env.Evaluation = &EvaluationScores{
			Overall:      a.Evaluation.Overall,
			Quality:      a.Evaluation.Quality,
			Completeness: a.Evaluation.Completeness,
			Relevance:    a.Evaluation.Relevance,
			Attempts:     a.Attempts,
		}
	}
	return env
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= citationExcerptLen {
		return text
	}
	cut := text[:citationExcerptLen]
	if i := strings.LastIndexByte(cut, ' '); i > citationExcerptLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
