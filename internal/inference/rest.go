package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBody bounds how much of a non-2xx body is kept for the detail.
const maxErrorBody = 4 << 10

// RESTClient calls the generateContent endpoint directly over HTTP. The
// payload is already base64, so it is placed in the request unchanged.
type RESTClient struct {
	apiKey     string
	model      string
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewRESTClient creates a REST invoker from opts, filling in defaults.
func NewRESTClient(opts Options) *RESTClient {
	opts = opts.withDefaults()
	return &RESTClient{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    opts.BaseURL,
		apiVersion: opts.APIVersion,
		httpClient: opts.HTTPClient,
	}
}

// NewRESTClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewRESTClientWithBaseURL(apiKey, baseURL string) *RESTClient {
	return NewRESTClient(Options{APIKey: apiKey, BaseURL: baseURL})
}

// Model returns the model name requests are sent to.
func (c *RESTClient) Model() string { return c.model }

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *RESTClient) endpoint() string {
	return fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, url.PathEscape(c.model))
}

// Invoke sends one generateContent request. It never touches the network
// when no API key is configured.
func (c *RESTClient) Invoke(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", errMissingCredential()
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: req.MediaType, Data: req.Payload}},
				{Text: req.Instruction},
			},
		}},
	})
	if err != nil {
		return "", transportError(err, "marshaling request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", transportError(err, "creating request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", remoteError(resp.StatusCode, statusDetail(resp.StatusCode, respBody))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", classifyTransport(ctx, err)
		}
		return "", transportError(err, "decoding response")
	}
	return out.text()
}

// statusDetail prefers the API's own error message over the raw body.
func statusDetail(status int, body []byte) string {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return fmt.Sprintf("unexpected status %d: %s", status, s)
	}
	return fmt.Sprintf("unexpected status %d", status)
}

func (r *generateResponse) text() (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", remoteError(0, "prompt blocked: "+r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 {
		return "", remoteError(0, "model returned no candidates")
	}

	cand := r.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return nonEmpty(sb.String(), cand.FinishReason)
}

// nonEmpty trims text and turns an empty reply into a RemoteError naming
// the finish reason when one other than STOP was given.
func nonEmpty(text, finishReason string) (string, error) {
	text = strings.TrimSpace(text)
	if text != "" {
		return text, nil
	}
	if finishReason != "" && finishReason != "STOP" {
		return "", remoteError(0, "response blocked: "+finishReason)
	}
	return "", remoteError(0, "model returned no text")
}
