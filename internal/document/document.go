package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxSize is the largest accepted document, in bytes.
const MaxSize = 10 << 20 // 10,485,760

const (
	TypePlainText = "text/plain"
	TypePDF       = "application/pdf"
	TypeWord      = "application/msword"
	TypeWordXML   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var allowedTypes = map[string]bool{
	TypePlainText: true,
	TypePDF:       true,
	TypeWord:      true,
	TypeWordXML:   true,
}

// AllowedTypes returns the accepted media types.
func AllowedTypes() []string {
	return []string{TypePlainText, TypePDF, TypeWord, TypeWordXML}
}

// Reason classifies a validation failure.
type Reason string

const (
	UnsupportedType Reason = "unsupported_type"
	TooLarge        Reason = "too_large"
)

// ValidationError is returned by Load when a candidate is rejected.
type ValidationError struct {
	Reason    Reason
	Name      string
	MediaType string
	Size      int64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case UnsupportedType:
		return fmt.Sprintf("unsupported file type %q for %s (supported: TXT, PDF, DOC, DOCX)", e.MediaType, e.Name)
	case TooLarge:
		return fmt.Sprintf("file %s is %d bytes, exceeds the %d byte limit", e.Name, e.Size, MaxSize)
	default:
		return fmt.Sprintf("invalid document %s", e.Name)
	}
}

// IsValidationError reports whether err is a *ValidationError with the given reason.
func IsValidationError(err error, reason Reason) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Reason == reason
}

// Document is a validated, fully read input file. Its content never changes
// after Load returns.
type Document struct {
	Name      string
	MediaType string
	Size      int64
	// Pages is the PDF page count, or 0 when unknown or not a PDF.
	Pages int

	data []byte
}

// Bytes returns a copy of the document content.
func (d *Document) Bytes() []byte {
	return bytes.Clone(d.data)
}

// Content returns the document content without copying. Callers must not
// modify the returned slice.
func (d *Document) Content() []byte {
	return d.data
}

// Load validates c and reads its content. Media type is checked before size,
// and nothing is read from c unless both checks pass.
func Load(c Candidate) (*Document, error) {
	name := c.Name()
	mediaType := normalizeType(c.MediaType())

	if !allowedTypes[mediaType] {
		return nil, &ValidationError{Reason: UnsupportedType, Name: name, MediaType: c.MediaType(), Size: c.Size()}
	}
	if c.Size() > MaxSize {
		return nil, &ValidationError{Reason: TooLarge, Name: name, MediaType: mediaType, Size: c.Size()}
	}

	rc, err := c.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	// Read one byte past the limit so an understated Size is still caught.
	data, err := io.ReadAll(io.LimitReader(rc, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > MaxSize {
		return nil, &ValidationError{Reason: TooLarge, Name: name, MediaType: mediaType, Size: int64(len(data))}
	}

	doc := &Document{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		data:      data,
	}
	if mediaType == TypePDF {
		doc.Pages = countPages(data)
	}
	return doc, nil
}

// normalizeType strips parameters and case from a media type.
func normalizeType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// countPages is best effort: a PDF the parser cannot read is still sent to
// the model unchanged.
func countPages(data []byte) (n int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("pdf page count failed", "panic", r)
			n = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Debug("pdf page count failed", "error", err)
		return 0
	}
	return r.NumPage()
}
