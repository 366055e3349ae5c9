// Package mcpsurface exposes tokenize and search as Model Context Protocol
// tools, grounded on the teacher's internal/mcp server: the same
// mcp.AddTool registration pattern and stdio-transport Serve loop,
// generalized from codebase search to the search proxy's query pipeline.
package mcpsurface

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
	"github.com/thaiproxy/searchproxy/internal/proxy"
	"github.com/thaiproxy/searchproxy/internal/tokenizer"
	"github.com/thaiproxy/searchproxy/pkg/version"
)

// Server wraps an MCP server exposing the search proxy's query pipeline
// as tools for AI coding assistants.
type Server struct {
	mcp   *mcp.Server
	tok   *tokenizer.Tokenizer
	proxy *proxy.Proxy
}

// TokenizeInput is the input schema for the tokenize tool.
type TokenizeInput struct {
	Text string `json:"text" jsonschema:"the Thai (or mixed) text to tokenize"`
}

// TokenizeOutput is the output schema for the tokenize tool.
type TokenizeOutput struct {
	Tokens     []string `json:"tokens" jsonschema:"the resulting token strings"`
	IsCompound []bool   `json:"is_compound" jsonschema:"whether each token matched a configured compound"`
	Engine     string   `json:"engine" jsonschema:"the segmenter variant that produced the residue tokens"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query to execute"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Offset int    `json:"offset,omitempty" jsonschema:"pagination offset, default 0"`
}

// SearchResultOutput is one ranked hit in a SearchOutput.
type SearchResultOutput struct {
	DocID             string   `json:"doc_id"`
	Score             float64  `json:"score" jsonschema:"final ranking score: variant weight times normalised raw score, plus exact/compound match bonuses; may exceed 1"`
	ProducingVariants []string `json:"producing_variants" jsonschema:"which query variants produced this hit: ORIGINAL, TOKENISED, COMPOUND_SPLIT, and/or FALLBACK_CHAR"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results      []SearchResultOutput `json:"results"`
	TotalCount   int                  `json:"total_count"`
	FallbackUsed bool                 `json:"fallback_used" jsonschema:"true if one or more query variants failed and the response used the remainder"`
}

// New builds a Server wrapping an MCP server wired to tok and p.
func New(tok *tokenizer.Tokenizer, p *proxy.Proxy) *Server {
	s := &Server{tok: tok, proxy: p}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "thaiproxy",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tokenize",
		Description: "Tokenize Thai (or mixed) text using the compound dictionary and segmenter chain. Use this to inspect how a query will be split before searching.",
	}, s.tokenizeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Run a Thai-aware search: the query is expanded into weighted variants (original, tokenised, compound-split, character fallback), dispatched to the search backend, and re-ranked.",
	}, s.searchHandler)

	slog.Debug("mcp_tools_registered", slog.Int("count", 2))
}

func (s *Server) tokenizeHandler(ctx context.Context, _ *mcp.CallToolRequest, input TokenizeInput) (*mcp.CallToolResult, TokenizeOutput, error) {
	if input.Text == "" {
		return nil, TokenizeOutput{}, invalidParams("text parameter is required")
	}

	result, err := s.tok.Tokenize(ctx, input.Text)
	if err != nil {
		return nil, TokenizeOutput{}, mapError(err)
	}

	return nil, TokenizeOutput{
		Tokens:     result.Tokens,
		IsCompound: result.IsCompound,
		Engine:     result.Engine,
	}, nil
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, invalidParams("query parameter is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	resp, err := s.proxy.Search(ctx, proxy.Request{Query: input.Query, Limit: limit, Offset: input.Offset})
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	results := make([]SearchResultOutput, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		kinds := make([]string, 0, len(h.ProducingVariants))
		for _, k := range h.ProducingVariants {
			kinds = append(kinds, string(k))
		}
		results = append(results, SearchResultOutput{DocID: h.DocID, Score: h.FinalScore, ProducingVariants: kinds})
	}

	return nil, SearchOutput{Results: results, TotalCount: resp.TotalCount, FallbackUsed: resp.FallbackUsed}, nil
}

// Serve starts the MCP server over stdio. stdout is reserved exclusively
// for JSON-RPC messages once this runs: nothing else may write to it.
func (s *Server) Serve(ctx context.Context) error {
	slog.Info("mcp_server_starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		slog.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	slog.Info("mcp_server_stopped")
	return nil
}

// invalidParams builds an MCP invalid-params error (JSON-RPC code -32602).
func invalidParams(msg string) error {
	return &mcpError{code: -32602, message: msg}
}

// mapError converts internal apierrors into MCP JSON-RPC errors.
func mapError(err error) error {
	pe, ok := err.(*apierrors.ProxyError)
	if !ok {
		return &mcpError{code: -32603, message: err.Error()}
	}
	switch pe.Kind {
	case apierrors.KindRequestDeadlineExceeded:
		return &mcpError{code: -32003, message: "request timed out"}
	case apierrors.KindInvalidInput:
		return &mcpError{code: -32602, message: pe.Message}
	default:
		return &mcpError{code: -32603, message: pe.Message}
	}
}

type mcpError struct {
	code    int
	message string
}

func (e *mcpError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.code, e.message)
}
