package inference

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/akshayreddy1906/gemini-resume/internal/codec"
)

// GenAIClient calls Gemini through the official SDK. The SDK wants raw
// bytes for inline data, so the payload is decoded before sending.
type GenAIClient struct {
	model  string
	client *genai.Client
}

// NewGenAIClient builds an SDK-backed invoker. With an empty API key no SDK
// client is created and every Invoke fails with MissingCredential.
func NewGenAIClient(ctx context.Context, opts Options) (*GenAIClient, error) {
	opts = opts.withDefaults()
	g := &GenAIClient{model: opts.Model}
	if opts.APIKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    opts.BaseURL + "/",
			APIVersion: opts.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initializing gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Model returns the model name requests are sent to.
func (g *GenAIClient) Model() string { return g.model }

func (g *GenAIClient) Invoke(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", errMissingCredential()
	}

	data, err := codec.Decode(req.Payload)
	if err != nil {
		return "", transportError(err, "preparing request")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, req.MediaType),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classifyGenAI(ctx, err)
	}
	return genAIText(resp)
}

func classifyGenAI(ctx context.Context, err error) *Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return remoteError(apiErr.Code, apiErrorDetail(apiErr))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return remoteError(apiErrPtr.Code, apiErrorDetail(*apiErrPtr))
	}
	return classifyTransport(ctx, err)
}

func apiErrorDetail(e genai.APIError) string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func genAIText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", remoteError(0, "model returned no candidates")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", remoteError(0, fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", remoteError(0, "model returned no candidates")
	}

	var finish string
	if c := resp.Candidates[0]; c != nil {
		finish = string(c.FinishReason)
	}
	return nonEmpty(resp.Text(), finish)
}
