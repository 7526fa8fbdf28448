package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/ingest"
	"github.com/anishks07/SupaQuery/internal/rag"
	"github.com/anishks07/SupaQuery/internal/service"
	"github.com/anishks07/SupaQuery/internal/store"
	"github.com/anishks07/SupaQuery/pkg/version"
)

// Engine is the slice of the application the MCP tools need.
// *service.Service satisfies it.
type Engine interface {
	Ask(ctx context.Context, question string, opts rag.AskOptions) (*rag.Answer, error)
	IngestPayload(ctx context.Context, payload []byte) (*ingest.Result, error)
	DeleteDocument(ctx context.Context, docID string) error
	ListDocuments(ctx context.Context) ([]store.Document, error)
	Stats(ctx context.Context) service.Stats
}

// Server is the MCP server bridging AI clients with the engine.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	logger *slog.Logger
}

// AskInput defines the input schema for the ask tool.
type AskInput struct {
	Question  string     `json:"question" jsonschema:"the question to answer from the ingested documents"`
	DocFilter []string   `json:"doc_filter,omitempty" jsonschema:"restrict retrieval to these document IDs"`
	TopK      int        `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve per attempt"`
	History   []rag.Turn `json:"conversation_history,omitempty" jsonschema:"preceding conversation turns with role and content"`
}

// IngestInput defines the input schema for the ingest_document tool.
type IngestInput struct {
	Payload json.RawMessage `json:"payload" jsonschema:"parser payload JSON with document metadata and chunk_data"`
}

// IngestOutput defines the output schema for the ingest_document tool.
type IngestOutput struct {
	DocID    string `json:"doc_id" jsonschema:"identifier of the ingested document"`
	Filename string `json:"filename" jsonschema:"original filename"`
	Chunks   int    `json:"chunks" jsonschema:"number of chunks indexed"`
	Entities int    `json:"entities" jsonschema:"number of entity mentions linked"`
}

// ListDocumentsInput defines the input schema for list_documents (no parameters).
type ListDocumentsInput struct{}

// ListDocumentsOutput defines the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentInfo `json:"documents" jsonschema:"ingested documents"`
}

// DocumentInfo is one catalog entry.
type DocumentInfo struct {
	ID       string  `json:"id" jsonschema:"document identifier"`
	Filename string  `json:"filename" jsonschema:"original filename"`
	Type     string  `json:"type" jsonschema:"media type: pdf, docx, image, audio"`
	Chunks   int     `json:"chunks" jsonschema:"number of indexed chunks"`
	Pages    int     `json:"pages,omitempty" jsonschema:"page count for paginated sources"`
	Duration float64 `json:"duration,omitempty" jsonschema:"duration in seconds for audio sources"`
}

// DeleteInput defines the input schema for the delete_document tool.
type DeleteInput struct {
	DocID string `json:"doc_id" jsonschema:"identifier of the document to delete"`
}

// DeleteOutput defines the output schema for the delete_document tool.
type DeleteOutput struct {
	DocID   string `json:"doc_id"`
	Deleted bool   `json:"deleted"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// NewServer creates an MCP server over the engine.
func NewServer(engine Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: engine,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "SupaQuery",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "SupaQuery", version.Version
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the ingested documents. Returns the answer with citations back to the source documents (page numbers for PDFs, timestamps for audio).",
	}, s.askHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Index a parsed document payload into the vector index, keyword index, and knowledge graph. The payload is the parser output JSON with document metadata and chunk_data.",
	}, s.ingestHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the ingested documents with their media type, chunk count, and extent (pages or duration).",
	}, s.listDocumentsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document from the catalog and every derived index.",
	}, s.deleteDocumentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Report index statistics: document, vector, keyword, and graph counts plus the active embedding and LLM models.",
	}, s.statsHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

func (s *Server) askHandler(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (
	*mcp.CallToolResult,
	rag.Envelope,
	error,
) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, rag.Envelope{}, NewInvalidParamsError("question parameter is required")
	}

	ans, err := s.engine.Ask(ctx, input.Question, rag.AskOptions{
		DocFilter: input.DocFilter,
		TopK:      input.TopK,
		History:   input.History,
	})
	if err != nil {
		s.logger.Error("ask failed", sqerrors.LogAttrs(err)...)
		return nil, rag.Envelope{}, MapError(err)
	}

	s.logger.Info("ask completed",
		slog.String("strategy", string(ans.Strategy)),
		slog.Int("sources", len(ans.Sources)))
	return nil, ans.Envelope(), nil
}

func (s *Server) ingestHandler(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (
	*mcp.CallToolResult,
	IngestOutput,
	error,
) {
	if len(input.Payload) == 0 {
		return nil, IngestOutput{}, NewInvalidParamsError("payload parameter is required")
	}

	res, err := s.engine.IngestPayload(ctx, input.Payload)
	if err != nil {
		s.logger.Error("ingest failed", sqerrors.LogAttrs(err)...)
		return nil, IngestOutput{}, MapError(err)
	}

	s.logger.Info("document ingested",
		slog.String("doc_id", res.DocID),
		slog.Int("chunks", res.Chunks))
	return nil, IngestOutput{
		DocID:    res.DocID,
		Filename: res.Filename,
		Chunks:   res.Chunks,
		Entities: res.Entities,
	}, nil
}

func (s *Server) listDocumentsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListDocumentsInput) (
	*mcp.CallToolResult,
	ListDocumentsOutput,
	error,
) {
	docs, err := s.engine.ListDocuments(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, MapError(err)
	}

	out := ListDocumentsOutput{Documents: make([]DocumentInfo, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, DocumentInfo{
			ID:       d.ID,
			Filename: d.Filename,
			Type:     string(d.Type),
			Chunks:   d.TotalChunks,
			Pages:    d.PageCount,
			Duration: d.Duration,
		})
	}
	return nil, out, nil
}

func (s *Server) deleteDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInput) (
	*mcp.CallToolResult,
	DeleteOutput,
	error,
) {
	if strings.TrimSpace(input.DocID) == "" {
		return nil, DeleteOutput{}, NewInvalidParamsError("doc_id parameter is required")
	}

	if err := s.engine.DeleteDocument(ctx, input.DocID); err != nil {
		attrs := append([]any{slog.String("doc_id", input.DocID)}, sqerrors.LogAttrs(err)...)
		s.logger.Error("delete failed", attrs...)
		return nil, DeleteOutput{}, MapError(err)
	}

	s.logger.Info("document deleted", slog.String("doc_id", input.DocID))
	return nil, DeleteOutput{DocID: input.DocID, Deleted: true}, nil
}

func (s *Server) statsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	service.Stats,
	error,
) {
	return nil, s.engine.Stats(ctx), nil
}

// Serve runs the server over stdio until the context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
