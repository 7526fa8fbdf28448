// Package output renders results to the terminal, with a JSON mode for
// scripting and a plain mode when stdout is not a TTY.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anishks07/SupaQuery/internal/chunk"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/ingest"
	"github.com/anishks07/SupaQuery/internal/rag"
	"github.com/anishks07/SupaQuery/internal/service"
	"github.com/anishks07/SupaQuery/internal/store"
)

// Options controls the render mode.
type Options struct {
	// JSON emits machine-readable output and suppresses all decoration.
	JSON bool
	// NoColor forces plain text even on a TTY.
	NoColor bool
}

// Writer renders CLI output.
type Writer struct {
	out    io.Writer
	styles Styles
	json   bool
}

// New creates a Writer. Color is used only when out is a TTY and neither
// the NoColor option nor the NO_COLOR convention disables it.
func New(out io.Writer, opts Options) *Writer {
	noColor := opts.JSON || opts.NoColor || DetectNoColor() || !IsTTY(out)
	return &Writer{
		out:    out,
		styles: GetStyles(noColor),
		json:   opts.JSON,
	}
}

// JSONMode reports whether the writer emits JSON.
func (w *Writer) JSONMode() bool { return w.json }

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if w.json {
		return
	}
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error with its code and suggestion when available.
// In JSON mode it emits an {"error": ...} object instead.
func (w *Writer) Error(err error) {
	if err == nil {
		return
	}
	var se *sqerrors.SupaError
	if !errors.As(err, &se) {
		if w.json {
			w.emitJSON(map[string]any{"error": map[string]any{"message": err.Error()}})
			return
		}
		_, _ = fmt.Fprintf(w.out, "❌ %s\n", w.styles.Error.Render(err.Error()))
		return
	}
	if w.json {
		body := map[string]any{"code": se.Code, "message": se.Message}
		if se.Suggestion != "" {
			body["suggestion"] = se.Suggestion
		}
		w.emitJSON(map[string]any{"error": body})
		return
	}
	_, _ = fmt.Fprintf(w.out, "❌ %s %s\n",
		w.styles.Error.Render(se.Message), w.styles.Dim.Render("("+se.Code+")"))
	if se.Suggestion != "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", w.styles.Label.Render(se.Suggestion))
	}
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	if w.json {
		return
	}
	_, _ = fmt.Fprintln(w.out)
}

// Answer renders a pipeline answer with its sources and evaluation footer.
func (w *Writer) Answer(a *rag.Answer) {
	if w.json {
		w.emitJSON(a.Envelope())
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Answer.Render(a.Text))
	if len(a.Sources) > 0 {
		w.Newline()
		_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Sources:"))
		for _, s := range a.Sources {
			_, _ = fmt.Fprintf(w.out, "  - %s\n", w.styles.Source.Render(sourceLine(s)))
		}
	}
	footer := fmt.Sprintf("strategy=%s", a.Strategy)
	if a.QueryType != "" {
		footer += fmt.Sprintf(" type=%s", a.QueryType)
	}
	if a.Attempts > 0 {
		footer += fmt.Sprintf(" attempts=%d", a.Attempts)
	}
	if a.Evaluation != nil {
		footer += fmt.Sprintf(" score=%.2f", a.Evaluation.Overall)
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(footer))
}

// SearchResults renders retrieved chunks for the search command.
func (w *Writer) SearchResults(chunks []rag.RetrievedChunk) {
	if w.json {
		ans := rag.Answer{Chunks: chunks}
		w.emitJSON(map[string]any{"results": ans.Envelope().Citations})
		return
	}
	if len(chunks) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Label.Render("No matching chunks."))
		return
	}
	for i, c := range chunks {
		label := c.Source
		if loc := citationLabel(c.Citation); loc != "" {
			label += ", " + loc
		}
		_, _ = fmt.Fprintf(w.out, "%s %s %s\n",
			w.styles.Header.Render(fmt.Sprintf("%d.", i+1)),
			w.styles.Source.Render(label),
			w.styles.Dim.Render(fmt.Sprintf("(score %.2f, %s)", c.Score, c.Origin)))
		_, _ = fmt.Fprintf(w.out, "   %s\n", w.styles.Answer.Render(strings.TrimSpace(c.Text)))
	}
}

// Documents renders the catalog listing.
func (w *Writer) Documents(docs []store.Document) {
	if w.json {
		w.emitJSON(map[string]any{"documents": documentRefs(docs)})
		return
	}
	if len(docs) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Label.Render("No documents ingested yet."))
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(fmt.Sprintf("%d document(s):", len(docs))))
	for _, d := range docs {
		extent := ""
		switch {
		case d.PageCount > 0:
			extent = fmt.Sprintf(", %d pages", d.PageCount)
		case d.Duration > 0:
			extent = ", " + chunk.FormatTimestamp(d.Duration)
		}
		_, _ = fmt.Fprintf(w.out, "  %s %s\n",
			w.styles.Source.Render(d.Filename),
			w.styles.Dim.Render(fmt.Sprintf("(%s, %d chunks%s, id %s)", d.Type, d.TotalChunks, extent, d.ID)))
	}
}

// Stats renders aggregated index statistics.
func (w *Writer) Stats(st *service.Stats) {
	if w.json {
		w.emitJSON(st)
		return
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Index:"))
	w.statLine("documents", fmt.Sprintf("%d", st.Documents))
	w.statLine("vectors", fmt.Sprintf("%d (dim %d)", st.Vector.TotalVectors, st.Vector.Dimensions))
	w.statLine("keyword docs", fmt.Sprintf("%d", st.KeywordDocs))
	if st.Graph != nil {
		w.statLine("graph", fmt.Sprintf("%d chunks, %d entities, %d mentions",
			st.Graph.Chunks, st.Graph.Entities, st.Graph.Mentions))
	} else {
		w.statLine("graph", "unavailable")
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render("Models:"))
	w.statLine("embedding", st.EmbedModel)
	llm := st.LLMModel
	if !st.LLMAvailable {
		llm += " (unavailable)"
	}
	w.statLine("llm", llm)
}

// Ingested reports a completed ingestion.
func (w *Writer) Ingested(res *ingest.Result) {
	if w.json {
		w.emitJSON(map[string]any{
			"doc_id":   res.DocID,
			"filename": res.Filename,
			"chunks":   res.Chunks,
			"entities": res.Entities,
		})
		return
	}
	w.Successf("ingested %s (%d chunks, %d entities, id %s)",
		res.Filename, res.Chunks, res.Entities, res.DocID)
}

// Consistency renders a doctor report.
func (w *Writer) Consistency(rep *ingest.ConsistencyReport) {
	if w.json {
		w.emitJSON(map[string]any{
			"documents_checked": rep.DocumentsChecked,
			"inconsistencies":   inconsistencyRefs(rep.Inconsistencies),
			"repaired":          rep.Repaired,
		})
		return
	}
	if rep.Clean() {
		w.Successf("checked %d document(s), indexes are consistent", rep.DocumentsChecked)
		return
	}
	w.Warningf("checked %d document(s), found %d inconsistencies (%d repaired)",
		rep.DocumentsChecked, len(rep.Inconsistencies), rep.Repaired)
	for _, inc := range rep.Inconsistencies {
		detail := inc.DocID
		if inc.ChunkID != "" {
			detail = inc.ChunkID
		}
		_, _ = fmt.Fprintf(w.out, "  - %s %s\n",
			w.styles.Label.Render(string(inc.Kind)), w.styles.Dim.Render(detail))
	}
}

func (w *Writer) statLine(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n",
		w.styles.Label.Render(label+":"), w.styles.Answer.Render(value))
}

func (w *Writer) emitJSON(v any) {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func sourceLine(s rag.Source) string {
	name := s.Filename
	if name == "" {
		name = s.DocID
	}
	if loc := citationLabel(s.Citation); loc != "" {
		return name + " (" + loc + ")"
	}
	return name
}

func citationLabel(encoded string) string {
	if encoded == "" {
		return ""
	}
	cit, err := chunk.DecodeCitation(encoded)
	if err != nil {
		return ""
	}
	return cit.Label()
}

type documentRef struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Type     string  `json:"type"`
	Chunks   int     `json:"chunks"`
	Pages    int     `json:"pages,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func documentRefs(docs []store.Document) []documentRef {
	refs := make([]documentRef, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, documentRef{
			ID:       d.ID,
			Filename: d.Filename,
			Type:     string(d.Type),
			Chunks:   d.TotalChunks,
			Pages:    d.PageCount,
			Duration: d.Duration,
		})
	}
	return refs
}

type inconsistencyRef struct {
	Kind    string `json:"kind"`
	DocID   string `json:"doc_id"`
	ChunkID string `json:"chunk_id,omitempty"`
}

func inconsistencyRefs(incs []ingest.Inconsistency) []inconsistencyRef {
	refs := make([]inconsistencyRef, 0, len(incs))
	for _, inc := range incs {
		refs = append(refs, inconsistencyRef{
			Kind:    string(inc.Kind),
			DocID:   inc.DocID,
			ChunkID: inc.ChunkID,
		})
	}
	return refs
}
