package inference

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"
)

func TestGenAI_MissingCredential(t *testing.T) {
	g, err := NewGenAIClient(context.Background(), Options{})
	if err != nil {
		t.Fatalf("NewGenAIClient: %v", err)
	}
	if g.Model() != DefaultModel {
		t.Errorf("Model = %q, want %q", g.Model(), DefaultModel)
	}
	_, err = g.Invoke(context.Background(), testRequest())
	requireReason(t, err, MissingCredential)
}

func TestGenAI_InvalidPayload(t *testing.T) {
	g, err := NewGenAIClient(context.Background(), Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewGenAIClient: %v", err)
	}
	req := testRequest()
	req.Payload = "not base64!"
	_, err = g.Invoke(context.Background(), req)
	requireReason(t, err, TransportFailure)
}

func TestClassifyGenAI(t *testing.T) {
	apiErr := genai.APIError{Code: 429, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"}

	ie := classifyGenAI(context.Background(), fmt.Errorf("generate: %w", apiErr))
	if ie.Reason != RemoteError || ie.Detail != "quota exceeded" || ie.Status != 429 {
		t.Errorf("value APIError classified as %+v", ie)
	}

	ie = classifyGenAI(context.Background(), &genai.APIError{Code: 500})
	if ie.Reason != RemoteError || ie.Detail != "unexpected status 500" {
		t.Errorf("pointer APIError classified as %+v", ie)
	}

	ie = classifyGenAI(context.Background(), errors.New("dial tcp: connection refused"))
	if ie.Reason != TransportFailure {
		t.Errorf("network error classified as %+v", ie)
	}

	ie = classifyGenAI(context.Background(), context.DeadlineExceeded)
	if ie.Reason != TransportFailure {
		t.Errorf("deadline classified as %+v", ie)
	}
}

func TestGenAIText(t *testing.T) {
	ok := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(" OK ", genai.RoleModel),
		}},
	}
	text, err := genAIText(ok)
	if err != nil || text != "OK" {
		t.Errorf("genAIText = %q, %v; want OK", text, err)
	}

	blocked := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}
	_, err = genAIText(blocked)
	requireReason(t, err, RemoteError)

	_, err = genAIText(&genai.GenerateContentResponse{})
	requireReason(t, err, RemoteError)

	_, err = genAIText(nil)
	requireReason(t, err, RemoteError)
}
