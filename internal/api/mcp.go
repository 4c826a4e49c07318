package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/akshayreddy1906/gemini-resume/internal/document"
	"github.com/akshayreddy1906/gemini-resume/internal/history"
	"github.com/akshayreddy1906/gemini-resume/internal/pipeline"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Orchestrator *pipeline.Orchestrator
	Version      string
}

// NewMCPServer creates an MCP server exposing document processing and the
// session history.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"gemini-resume",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("gemini-resume sends one document plus an instruction to Gemini and keeps a history of the results."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("process_document",
			mcp.WithDescription("Send a document with an instruction to Gemini and return the generated text. Provide either path or content."),
			mcp.WithString("instruction", mcp.Description("What to do with the document, e.g. \"Summarize\""), mcp.Required()),
			mcp.WithString("path", mcp.Description("Path of a .txt, .pdf, .doc or .docx file readable by the server")),
			mcp.WithString("content", mcp.Description("Inline plain-text document content, used when path is empty")),
			mcp.WithString("name", mcp.Description("Display name for inline content (default document.txt)")),
		),
		mcpProcessDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("list_history",
			mcp.WithDescription("List recent results, most recent first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 10)")),
		),
		mcpListHistory(deps),
	)

	s.AddTool(
		mcp.NewTool("get_history_entry",
			mcp.WithDescription("Return one history entry, including the full result text."),
			mcp.WithString("id", mcp.Description("History entry ID"), mcp.Required()),
		),
		mcpGetHistoryEntry(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Results",
			mcp.WithResourceDescription("Last 10 history entries (previews only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpProcessDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		instruction, err := req.RequireString("instruction")
		if err != nil {
			return mcpError("instruction is required"), nil
		}

		path := req.GetString("path", "")
		content := req.GetString("content", "")

		var candidate document.Candidate
		switch {
		case path != "":
			candidate, err = document.FileCandidate(path)
			if err != nil {
				return mcpError(fmt.Sprintf("cannot read document: %v", err)), nil
			}
		case content != "":
			name := req.GetString("name", "document.txt")
			candidate = document.BytesCandidate(name, document.TypePlainText, []byte(content))
		default:
			return mcpError("one of path or content is required"), nil
		}

		o := deps.Orchestrator
		if o.State().Status == pipeline.InFlight {
			return mcpError(pipeline.ErrInFlight.Error()), nil
		}
		if _, err := o.SelectDocument(candidate); err != nil {
			return mcpError(err.Error()), nil
		}
		o.SetInstruction(instruction)

		entry, err := o.Submit(context.WithoutCancel(ctx))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if !entry.OK() {
			return mcpError(entry.Error), nil
		}
		return mcpText(entry.Text), nil
	}
}

type entrySummary struct {
	ID           string          `json:"id"`
	Timestamp    string          `json:"timestamp"`
	Outcome      history.Outcome `json:"outcome"`
	DocumentName string          `json:"document_name,omitempty"`
	Instruction  string          `json:"instruction,omitempty"`
	Preview      string          `json:"preview"`
}

func summarize(entries []history.Entry) []entrySummary {
	out := make([]entrySummary, len(entries))
	for i, e := range entries {
		preview := e.Text
		if !e.OK() {
			preview = e.Error
		}
		out[i] = entrySummary{
			ID:           e.ID,
			Timestamp:    e.Timestamp.Format(time.RFC3339Nano),
			Outcome:      e.Outcome,
			DocumentName: e.DocumentName,
			Instruction:  truncateRunes(e.Instruction, 200),
			Preview:      truncateRunes(preview, 200),
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func mcpListHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		entries := deps.Orchestrator.History().Recent(limit, 0)
		b, err := json.Marshal(summarize(entries))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal history: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetHistoryEntry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		entry, ok := deps.Orchestrator.History().Get(id)
		if !ok {
			return mcpError(fmt.Sprintf("history entry %q not found", id)), nil
		}

		b, err := json.Marshal(entry)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal entry: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(summarize(deps.Orchestrator.History().Recent(10, 0)))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
