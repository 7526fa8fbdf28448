// Package chunk defines the retrieval unit of SupaQuery — bounded text
// segments carrying source-position citations — and the chunker that
// produces them from extracted document text.
package chunk

import (
	"encoding/json"
	"fmt"
)

// MediaType tags the source format of a document.
type MediaType string

const (
	MediaPDF   MediaType = "pdf"
	MediaDocx  MediaType = "docx"
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

// CitationKind discriminates the Citation variants.
type CitationKind string

const (
	CitationPages CitationKind = "pdf"
	CitationTime  CitationKind = "audio"
	CitationNone  CitationKind = "none"
)

// Citation is source-position metadata on a chunk: a page range for
// paginated sources, a time range for audio, or absent. It is a closed sum;
// the only implementations live in this package.
type Citation interface {
	Kind() CitationKind
	// Label is the human-readable position ("pp. 3-4", "02:15 - 03:40").
	Label() string
}

// PageCitation is the citation variant for paginated sources.
type PageCitation struct {
	// Pages is the ordered list of page numbers the chunk spans.
	Pages []int `json:"pages"`
	// PageRange is the pre-formatted label, e.g. "3-4" or "7".
	PageRange string `json:"page_range"`
}

func (c PageCitation) Kind() CitationKind { return CitationPages }

func (c PageCitation) Label() string {
	if c.PageRange != "" {
		return "pp. " + c.PageRange
	}
	return ""
}

// TimeCitation is the citation variant for audio sources.
type TimeCitation struct {
	// Start and End are offsets in seconds.
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
	// Timestamp is the formatted start offset (MM:SS or HH:MM:SS).
	Timestamp string `json:"timestamp"`
	// TimestampRange is the formatted span, e.g. "02:15 - 03:40".
	TimestampRange string `json:"timestamp_range"`
}

func (c TimeCitation) Kind() CitationKind { return CitationTime }

func (c TimeCitation) Label() string { return c.TimestampRange }

// NoCitation is the absent-citation variant.
type NoCitation struct{}

func (NoCitation) Kind() CitationKind { return CitationNone }

func (NoCitation) Label() string { return "" }

// citationEnvelope is the serialized form shared with the graph store
// property and the vector metadata sidecar.
type citationEnvelope struct {
	Type           CitationKind `json:"type"`
	Pages          []int        `json:"pages,omitempty"`
	PageRange      string       `json:"page_range,omitempty"`
	Start          float64      `json:"start_time,omitempty"`
	End            float64      `json:"end_time,omitempty"`
	Timestamp      string       `json:"timestamp,omitempty"`
	TimestampRange string       `json:"timestamp_range,omitempty"`
}

// EncodeCitation serializes a citation to its compact JSON string form.
// NoCitation (and nil) encode to the empty string.
func EncodeCitation(c Citation) string {
	if c == nil || c.Kind() == CitationNone {
		return ""
	}
	var env citationEnvelope
	switch v := c.(type) {
	case PageCitation:
		env = citationEnvelope{Type: CitationPages, Pages: v.Pages, PageRange: v.PageRange}
	case TimeCitation:
		env = citationEnvelope{
			Type: CitationTime, Start: v.Start, End: v.End,
			Timestamp: v.Timestamp, TimestampRange: v.TimestampRange,
		}
	default:
		return ""
	}
	data, err := json.Marshal(env)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeCitation parses the JSON string form back into a Citation.
// The empty string decodes to NoCitation.
func DecodeCitation(s string) (Citation, error) {
	if s == "" {
		return NoCitation{}, nil
	}
	var env citationEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return NoCitation{}, fmt.Errorf("malformed citation %q: %w", s, err)
	}
	switch env.Type {
	case CitationPages:
		return PageCitation{Pages: env.Pages, PageRange: env.PageRange}, nil
	case CitationTime:
		return TimeCitation{
			Start: env.Start, End: env.End,
			Timestamp: env.Timestamp, TimestampRange: env.TimestampRange,
		}, nil
	case CitationNone, "":
		return NoCitation{}, nil
	}
	return NoCitation{}, fmt.Errorf("unknown citation type %q", env.Type)
}

// Chunk is a bounded text segment derived from one source document.
type Chunk struct {
	// ID is "<doc-id>_chunk_<ordinal>".
	ID string
	// DocID is the owning document's external identifier.
	DocID string
	// Source is the owning document's display filename.
	Source string
	// Text is the chunk body.
	Text string
	// Ordinal is the chunk's position within the document.
	Ordinal int
	// StartChar and EndChar are the chunk's interval in the extracted text.
	StartChar int
	EndChar   int
	// Citation is the source-position metadata.
	Citation Citation
}

// ChunkID formats the canonical chunk identifier.
func ChunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, ordinal)
}

// PageSpan maps a page number to its character interval in the extracted
// text. Intervals are half-open [Start, End).
type PageSpan struct {
	Page  int
	Start int
	End   int
}

// AudioSegment maps a transcript segment's character interval to its time
// offsets in seconds.
type AudioSegment struct {
	Start     float64
	End       float64
	StartChar int
	EndChar   int
}

// PositionMap carries the source-position structure of a document's
// extracted text. At most one of Pages and Segments is populated.
type PositionMap struct {
	Pages    []PageSpan
	Segments []AudioSegment
}

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS past the hour.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
