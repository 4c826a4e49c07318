package api

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/akshayreddy1906/gemini-resume/internal/history"
	"github.com/akshayreddy1906/gemini-resume/internal/inference"
	"github.com/akshayreddy1906/gemini-resume/internal/pipeline"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T, inv inference.Invoker) MCPDeps {
	t.Helper()
	return MCPDeps{
		Orchestrator: pipeline.NewOrchestrator(pipeline.Session{Invoker: inv, History: history.NewStore()}),
		Version:      "test",
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func echoInvoker() inference.Invoker {
	return inference.InvokerFunc(func(ctx context.Context, req inference.Request) (string, error) {
		return "processed: " + req.Instruction, nil
	})
}

// --- tests ---

func TestMCPTool_ProcessDocument_Content(t *testing.T) {
	deps := newTestMCPDeps(t, echoInvoker())
	handler := mcpProcessDocument(deps)

	result, err := handler(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{
		"instruction": "Summarize",
		"content":     "twelve bytes",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "processed: Summarize" {
		t.Errorf("text = %q", got)
	}

	entries := deps.Orchestrator.History().All()
	if len(entries) != 1 || entries[0].DocumentName != "document.txt" {
		t.Errorf("history = %+v", entries)
	}
}

func TestMCPTool_ProcessDocument_Path(t *testing.T) {
	deps := newTestMCPDeps(t, echoInvoker())
	path := filepath.Join(t.TempDir(), "resume.txt")
	if err := os.WriteFile(path, []byte("experience"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := mcpProcessDocument(deps)(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{
		"instruction": "Review",
		"path":        path,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if e := deps.Orchestrator.History().All()[0]; e.DocumentName != "resume.txt" {
		t.Errorf("DocumentName = %q", e.DocumentName)
	}
}

func TestMCPTool_ProcessDocument_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantMsg string
	}{
		{"missing instruction", map[string]interface{}{"content": "x"}, "instruction is required"},
		{"missing document", map[string]interface{}{"instruction": "x"}, "one of path or content is required"},
		{"unsupported file", map[string]interface{}{"instruction": "x", "path": "/definitely/not/here.png"}, "cannot read document"},
		{"blank instruction", map[string]interface{}{"instruction": "   ", "content": "x"}, pipeline.ErrEmptyInstruction.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestMCPDeps(t, echoInvoker())
			result, err := mcpProcessDocument(deps)(context.Background(), makeCallToolRequest("process_document", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatalf("expected tool error, got %q", toolText(t, result))
			}
			if got := toolText(t, result); !strings.Contains(got, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", got, tt.wantMsg)
			}
			if deps.Orchestrator.History().Len() != 0 {
				t.Error("rejected call recorded history")
			}
		})
	}
}

func TestMCPTool_ProcessDocument_RemoteFailure(t *testing.T) {
	deps := newTestMCPDeps(t, inference.InvokerFunc(func(ctx context.Context, req inference.Request) (string, error) {
		return "", &inference.Error{Reason: inference.RemoteError, Detail: "quota exceeded"}
	}))

	result, err := mcpProcessDocument(deps)(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{
		"instruction": "Summarize",
		"content":     "abc",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || toolText(t, result) != "quota exceeded" {
		t.Errorf("result = %+v", result)
	}
	if deps.Orchestrator.History().Len() != 1 {
		t.Errorf("history len = %d, want 1", deps.Orchestrator.History().Len())
	}
}

func TestMCPTool_ListHistory(t *testing.T) {
	deps := newTestMCPDeps(t, echoInvoker())
	store := deps.Orchestrator.History()
	store.Record(history.NewSuccess("first"))
	store.Record(history.NewFailure("second"))
	store.Record(history.NewSuccess(strings.Repeat("long ", 100)))

	result, err := mcpListHistory(deps)(context.Background(), makeCallToolRequest("list_history", map[string]interface{}{
		"limit": float64(2),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []entrySummary
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if !strings.HasSuffix(got[0].Preview, "...") {
		t.Errorf("long preview not truncated: %q", got[0].Preview)
	}
	if got[1].Outcome != history.Failure || got[1].Preview != "second" {
		t.Errorf("second entry = %+v", got[1])
	}
}

func TestMCPTool_GetHistoryEntry(t *testing.T) {
	deps := newTestMCPDeps(t, echoInvoker())
	e := deps.Orchestrator.History().Record(history.NewSuccess("full text"))

	result, err := mcpGetHistoryEntry(deps)(context.Background(), makeCallToolRequest("get_history_entry", map[string]interface{}{
		"id": e.ID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got history.Entry
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if got.ID != e.ID || got.Text != "full text" {
		t.Errorf("entry = %+v", got)
	}

	result, _ = mcpGetHistoryEntry(deps)(context.Background(), makeCallToolRequest("get_history_entry", map[string]interface{}{
		"id": "missing",
	}))
	if !result.IsError {
		t.Error("expected error for missing entry")
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps := newTestMCPDeps(t, echoInvoker())
	for i := 0; i < 12; i++ {
		deps.Orchestrator.History().Record(history.NewSuccess("r"))
	}

	contents, err := mcpResourceRecent(deps)(context.Background(), makeReadResourceRequest("history://recent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "history://recent" || tc.MIMEType != "application/json" {
		t.Errorf("contents = %+v", tc)
	}

	var got []entrySummary
	if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
		t.Fatalf("parsing resource: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("got %d entries, want 10", len(got))
	}
}

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(newTestMCPDeps(t, echoInvoker())); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
