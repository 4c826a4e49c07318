// Package inference sends a document and an instruction to a Gemini model
// and normalizes the reply into text or an *Error.
package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-1.5-flash"
	DefaultTimeout    = 120 * time.Second
)

// Transport names accepted by New.
const (
	TransportREST  = "rest"
	TransportGenAI = "genai"
)

// Request is one document-plus-instruction call. Payload is the base64
// form of the document.
type Request struct {
	MediaType   string
	Payload     string
	Instruction string
}

// Invoker calls the remote model once and returns its text.
// Failures are always *Error.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req Request) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Reason classifies an inference failure.
type Reason string

const (
	MissingCredential Reason = "missing_credential"
	TransportFailure  Reason = "transport_failure"
	RemoteError       Reason = "remote_error"
)

// Error is the single failure type returned by invokers. Error() returns
// Detail unchanged so it can be shown to the user as-is.
type Error struct {
	Reason Reason
	Detail string
	// Status is the HTTP status of a RemoteError, when known.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf returns the Reason of err, or "" when err is not an *Error.
func ReasonOf(err error) Reason {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return ""
}

func errMissingCredential() *Error {
	return &Error{Reason: MissingCredential, Detail: "API key not configured"}
}

func transportError(err error, format string, args ...any) *Error {
	detail := fmt.Sprintf(format, args...)
	if err != nil {
		detail = fmt.Sprintf("%s: %v", detail, err)
	}
	return &Error{Reason: TransportFailure, Detail: detail, Err: err}
}

func remoteError(status int, detail string) *Error {
	return &Error{Reason: RemoteError, Detail: detail, Status: status}
}

// classifyTransport maps a low-level call error. Timeouts and cancellations
// get a fixed prefix so they read clearly in history.
func classifyTransport(ctx context.Context, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		return transportError(err, "request timed out")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return transportError(err, "request cancelled")
	default:
		return transportError(err, "request failed")
	}
}

// Options configures New.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	APIVersion string
	Transport  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.APIVersion == "" {
		o.APIVersion = DefaultAPIVersion
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// New builds the invoker selected by opts.Transport. An empty API key is
// not an error here; the returned invoker fails each call with
// MissingCredential instead.
func New(opts Options) (Invoker, error) {
	switch strings.ToLower(opts.Transport) {
	case "", TransportREST:
		return NewRESTClient(opts), nil
	case TransportGenAI:
		g, err := NewGenAIClient(context.Background(), opts)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown inference transport %q (want %q or %q)", opts.Transport, TransportREST, TransportGenAI)
	}
}
