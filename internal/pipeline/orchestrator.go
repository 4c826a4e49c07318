// Package pipeline drives a single document-plus-instruction submission
// from selection through inference to a recorded history entry, allowing
// at most one attempt in flight at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akshayreddy1906/gemini-resume/internal/codec"
	"github.com/akshayreddy1906/gemini-resume/internal/document"
	"github.com/akshayreddy1906/gemini-resume/internal/history"
	"github.com/akshayreddy1906/gemini-resume/internal/inference"
)

// Status is the submission state.
type Status string

const (
	Idle     Status = "idle"
	InFlight Status = "in_flight"
)

// Rejections returned by Begin. None of them changes any state.
var (
	ErrInFlight         = errors.New("a submission is already in flight")
	ErrNoDocument       = errors.New("no document selected")
	ErrEmptyInstruction = errors.New("instruction is empty")
)

// DocumentSummary describes the selected document without its content.
type DocumentSummary struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Pages     int    `json:"pages,omitempty"`
}

// State is a snapshot of the orchestrator. LastError is set only while
// Idle, after a failed attempt, and cleared by the next accepted one.
type State struct {
	Status      Status           `json:"status"`
	Document    *DocumentSummary `json:"document,omitempty"`
	Instruction string           `json:"instruction"`
	LastError   string           `json:"last_error,omitempty"`
	AttemptID   string           `json:"attempt_id,omitempty"`
}

// Ready reports whether a submission would currently be accepted.
func (s State) Ready() bool {
	return s.Status == Idle && s.Document != nil && strings.TrimSpace(s.Instruction) != ""
}

// Attempt is the snapshot taken when a submission is accepted. Later
// document or instruction changes do not affect it.
type Attempt struct {
	ID           string
	DocumentName string
	MediaType    string
	Size         int64
	Instruction  string
	Payload      string
	accepted     time.Time
}

// Request builds the inference request for the attempt.
func (a *Attempt) Request() inference.Request {
	return inference.Request{
		MediaType:   a.MediaType,
		Payload:     a.Payload,
		Instruction: a.Instruction,
	}
}

// Session holds the collaborators an Orchestrator works with. History
// defaults to a fresh store, Logger to slog.Default() and Now to time.Now.
type Session struct {
	Invoker inference.Invoker
	History *history.Store
	Logger  *slog.Logger
	Now     func() time.Time
}

// Orchestrator owns the document slot, the instruction and the submission
// state. It is safe for concurrent use.
type Orchestrator struct {
	invoker inference.Invoker
	store   *history.Store
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	doc         *document.Document
	instruction string
	status      Status
	lastError   string
	attemptID   string
	observers   map[int]func(State)
	nextObs     int
}

// NewOrchestrator creates an idle Orchestrator for the given session.
func NewOrchestrator(s Session) *Orchestrator {
	if s.History == nil {
		s.History = history.NewStore()
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &Orchestrator{
		invoker:   s.Invoker,
		store:     s.History,
		logger:    s.Logger,
		now:       s.Now,
		status:    Idle,
		observers: make(map[int]func(State)),
	}
}

// History returns the store entries are recorded to.
func (o *Orchestrator) History() *history.Store { return o.store }

// SelectDocument loads c and, if it passes validation, replaces the current
// document. A failed load leaves the previous document in place.
// Selection is allowed while an attempt is in flight.
func (o *Orchestrator) SelectDocument(c document.Candidate) (*document.Document, error) {
	doc, err := document.Load(c)
	if err != nil {
		o.logger.Debug("document rejected", "name", c.Name(), "error", err)
		return nil, err
	}

	o.mu.Lock()
	o.doc = doc
	st := o.stateLocked()
	o.mu.Unlock()

	o.logger.Debug("document selected", "name", doc.Name, "media_type", doc.MediaType, "size", doc.Size)
	o.notify(st)
	return doc, nil
}

// ClearDocument empties the document slot.
func (o *Orchestrator) ClearDocument() {
	o.mu.Lock()
	o.doc = nil
	st := o.stateLocked()
	o.mu.Unlock()
	o.notify(st)
}

// SetInstruction replaces the instruction. It is validated at Begin, not here.
func (o *Orchestrator) SetInstruction(instruction string) {
	o.mu.Lock()
	o.instruction = instruction
	st := o.stateLocked()
	o.mu.Unlock()
	o.notify(st)
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	st := State{
		Status:      o.status,
		Instruction: o.instruction,
		LastError:   o.lastError,
		AttemptID:   o.attemptID,
	}
	if o.doc != nil {
		st.Document = &DocumentSummary{
			Name:      o.doc.Name,
			MediaType: o.doc.MediaType,
			Size:      o.doc.Size,
			Pages:     o.doc.Pages,
		}
	}
	return st
}

// Begin accepts a submission: it checks readiness, moves to InFlight and
// returns the attempt snapshot with the encoded payload. On rejection
// nothing changes and no request is made.
func (o *Orchestrator) Begin() (*Attempt, error) {
	o.mu.Lock()
	switch {
	case o.status == InFlight:
		o.mu.Unlock()
		return nil, ErrInFlight
	case o.doc == nil:
		o.mu.Unlock()
		return nil, ErrNoDocument
	case strings.TrimSpace(o.instruction) == "":
		o.mu.Unlock()
		return nil, ErrEmptyInstruction
	}

	doc := o.doc
	a := &Attempt{
		ID:           uuid.NewString(),
		DocumentName: doc.Name,
		MediaType:    doc.MediaType,
		Size:         doc.Size,
		Instruction:  strings.TrimSpace(o.instruction),
		accepted:     o.now(),
	}
	o.status = InFlight
	o.lastError = ""
	o.attemptID = a.ID
	st := o.stateLocked()
	o.mu.Unlock()

	// Document content is immutable, so encoding can happen outside the lock.
	a.Payload = codec.Encode(doc.Content())

	o.logger.Info("submission accepted",
		"attempt_id", a.ID,
		"document", a.DocumentName,
		"media_type", a.MediaType,
		"size", a.Size,
	)
	o.notify(st)
	return a, nil
}

// Run performs the remote call for an attempt returned by Begin, records
// exactly one history entry and returns the orchestrator to Idle. It never
// fails: every error, including a panic in the invoker, becomes a Failure
// entry.
func (o *Orchestrator) Run(ctx context.Context, a *Attempt) history.Entry {
	var entry history.Entry
	defer func() {
		o.finish(a, entry)
	}()

	text, err := o.invoke(ctx, a)

	if err != nil {
		entry = history.NewFailure(err.Error())
	} else {
		entry = history.NewSuccess(text)
	}
	entry.AttemptID = a.ID
	entry.DocumentName = a.DocumentName
	entry.MediaType = a.MediaType
	entry.Instruction = a.Instruction
	entry.DurationMS = o.now().Sub(a.accepted).Milliseconds()

	entry = o.store.Record(entry)
	return entry
}

func (o *Orchestrator) invoke(ctx context.Context, a *Attempt) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("inference panicked", "attempt_id", a.ID, "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	if o.invoker == nil {
		return "", errors.New("internal error: no inference client configured")
	}
	return o.invoker.Invoke(ctx, a.Request())
}

func (o *Orchestrator) finish(a *Attempt, entry history.Entry) {
	o.mu.Lock()
	if o.attemptID == a.ID {
		o.status = Idle
		o.attemptID = ""
		o.lastError = ""
		if entry.Outcome == history.Failure {
			o.lastError = entry.Error
		} else if entry.Outcome == "" {
			o.lastError = "internal error: attempt not recorded"
		}
	}
	st := o.stateLocked()
	o.mu.Unlock()

	if entry.Outcome == history.Success {
		o.logger.Info("submission succeeded", "attempt_id", a.ID, "entry_id", entry.ID, "duration_ms", entry.DurationMS)
	} else {
		o.logger.Warn("submission failed", "attempt_id", a.ID, "entry_id", entry.ID, "error", st.LastError)
	}
	o.notify(st)
}

// Submit is Begin followed by Run. The error is non-nil only when the
// submission was rejected; remote failures are reported in the entry.
func (o *Orchestrator) Submit(ctx context.Context) (history.Entry, error) {
	a, err := o.Begin()
	if err != nil {
		return history.Entry{}, err
	}
	return o.Run(ctx, a), nil
}

// Subscribe registers fn to receive every state change. fn runs outside
// the orchestrator's lock and must not block. The returned func removes it.
func (o *Orchestrator) Subscribe(fn func(State)) (cancel func()) {
	o.mu.Lock()
	id := o.nextObs
	o.nextObs++
	o.observers[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.observers, id)
			o.mu.Unlock()
		})
	}
}

func (o *Orchestrator) notify(st State) {
	o.mu.Lock()
	fns := make([]func(State), 0, len(o.observers))
	for _, fn := range o.observers {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
