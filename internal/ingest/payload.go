package ingest

import (
	"encoding/json"
	"strings"

	"github.com/anishks07/SupaQuery/internal/chunk"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/store"
)

// Payload is the external parser's output for one document: extracted text
// already segmented, with per-chunk citations. Parsing individual formats
// (PDF extraction, OCR, speech-to-text) happens upstream of this process.
type Payload struct {
	ID       string         `json:"id"`
	Filename string         `json:"filename"`
	Type     string         `json:"type"`
	UserID   string         `json:"user_id,omitempty"`
	Chunks   []PayloadChunk `json:"chunk_data"`
}

// PayloadChunk is one pre-segmented chunk from the parser.
type PayloadChunk struct {
	ChunkID  string `json:"chunk_id"`
	Text     string `json:"text"`
	StartIdx int    `json:"start_idx"`
	EndIdx   int    `json:"end_idx"`
	// Citation is the serialized citation envelope, absent for sources
	// without positions.
	Citation json.RawMessage `json:"citation,omitempty"`
}

var mediaTypes = map[string]chunk.MediaType{
	"pdf":   chunk.MediaPDF,
	"docx":  chunk.MediaDocx,
	"image": chunk.MediaImage,
	"audio": chunk.MediaAudio,
}

// ParsePayload decodes and validates a parser payload, returning the
// catalog record and the chunks ready for indexing.
func ParsePayload(data []byte) (store.Document, []chunk.Chunk, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return store.Document{}, nil, sqerrors.New(sqerrors.ErrCodeInvalidDocument,
			"malformed ingestion payload", err)
	}
	return p.Materialize()
}

// Materialize validates the payload and converts it to the catalog record
// plus indexable chunks. Whitespace-only chunks are dropped; citations are
// decoded and re-checked against the media type.
func (p Payload) Materialize() (store.Document, []chunk.Chunk, error) {
	if strings.TrimSpace(p.ID) == "" {
		return store.Document{}, nil, sqerrors.New(sqerrors.ErrCodeInvalidDocument,
			"payload is missing the document id", nil)
	}
	if strings.TrimSpace(p.Filename) == "" {
		return store.Document{}, nil, sqerrors.New(sqerrors.ErrCodeInvalidDocument,
			"payload is missing the filename", nil)
	}
	mediaType, ok := mediaTypes[strings.ToLower(strings.TrimSpace(p.Type))]
	if !ok {
		return store.Document{}, nil, sqerrors.New(sqerrors.ErrCodeInvalidDocument,
			"unknown media type "+p.Type, nil).
			WithSuggestion("supported types: pdf, docx, image, audio")
	}

	doc := store.Document{
		ID:       p.ID,
		Filename: p.Filename,
		Type:     mediaType,
		UserID:   p.UserID,
	}

	chunks := make([]chunk.Chunk, 0, len(p.Chunks))
	for i, pc := range p.Chunks {
		text := strings.TrimSpace(pc.Text)
		if text == "" {
			continue
		}
		id := pc.ChunkID
		if id == "" {
			id = chunk.ChunkID(p.ID, i)
		}
		citation, err := decodeChunkCitation(pc.Citation, mediaType)
		if err != nil {
			return store.Document{}, nil, err
		}
		trackDocumentExtent(&doc, citation)
		chunks = append(chunks, chunk.Chunk{
			ID:        id,
			DocID:     p.ID,
			Source:    p.Filename,
			Text:      text,
			Ordinal:   i,
			StartChar: pc.StartIdx,
			EndChar:   pc.EndIdx,
			Citation:  citation,
		})
	}
	if len(chunks) == 0 {
		return store.Document{}, nil, sqerrors.New(sqerrors.ErrCodeInvalidDocument,
			"payload has no non-empty chunks", nil)
	}
	doc.TotalChunks = len(chunks)
	return doc, chunks, nil
}

func decodeChunkCitation(raw json.RawMessage, mediaType chunk.MediaType) (chunk.Citation, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return chunk.NoCitation{}, nil
	}
	citation, err := chunk.DecodeCitation(string(raw))
	if err != nil {
		return nil, sqerrors.New(sqerrors.ErrCodeInvalidCitation,
			"undecodable chunk citation", err)
	}
	switch citation.Kind() {
	case chunk.CitationPages:
		if mediaType != chunk.MediaPDF && mediaType != chunk.MediaDocx {
			return nil, sqerrors.New(sqerrors.ErrCodeInvalidCitation,
				"page citation on non-paginated source", nil)
		}
	case chunk.CitationTime:
		if mediaType != chunk.MediaAudio {
			return nil, sqerrors.New(sqerrors.ErrCodeInvalidCitation,
				"time citation on non-audio source", nil)
		}
	}
	return citation, nil
}

// trackDocumentExtent folds a chunk citation into the document-level page
// count / duration.
func trackDocumentExtent(doc *store.Document, citation chunk.Citation) {
	switch c := citation.(type) {
	case chunk.PageCitation:
		for _, page := range c.Pages {
			if page > doc.PageCount {
				doc.PageCount = page
			}
		}
	case chunk.TimeCitation:
		if c.End > doc.Duration {
			doc.Duration = c.End
		}
	}
}
