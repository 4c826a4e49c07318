package document

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Candidate is a file offered for loading. Size and MediaType are declared
// by the source and checked before Open is called.
type Candidate interface {
	Name() string
	MediaType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

var extensionTypes = map[string]string{
	".txt":  TypePlainText,
	".pdf":  TypePDF,
	".doc":  TypeWord,
	".docx": TypeWordXML,
}

// TypeByName guesses a media type from a file name's extension. It returns
// "" when the extension is unknown.
func TypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if ext == "" {
		return ""
	}
	return normalizeType(mime.TypeByExtension(ext))
}

type fileCandidate struct {
	path      string
	mediaType string
	size      int64
}

// FileCandidate stats the file at path and declares its media type from the
// extension, sniffing the first 512 bytes when the extension is unknown.
func FileCandidate(path string) (Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mediaType := TypeByName(path)
	if mediaType == "" {
		mediaType, err = sniffFile(path)
		if err != nil {
			return nil, err
		}
	}

	return &fileCandidate{path: path, mediaType: mediaType, size: info.Size()}, nil
}

func sniffFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return normalizeType(http.DetectContentType(head[:n])), nil
}

func (c *fileCandidate) Name() string      { return filepath.Base(c.path) }
func (c *fileCandidate) MediaType() string { return c.mediaType }
func (c *fileCandidate) Size() int64       { return c.size }

func (c *fileCandidate) Open() (io.ReadCloser, error) {
	return os.Open(c.path)
}

type bytesCandidate struct {
	name      string
	mediaType string
	data      []byte
}

// BytesCandidate wraps in-memory content.
func BytesCandidate(name, mediaType string, data []byte) Candidate {
	return &bytesCandidate{name: name, mediaType: mediaType, data: data}
}

func (c *bytesCandidate) Name() string      { return c.name }
func (c *bytesCandidate) MediaType() string { return c.mediaType }
func (c *bytesCandidate) Size() int64       { return int64(len(c.data)) }

func (c *bytesCandidate) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(c.data)), nil
}

type multipartCandidate struct {
	fh        *multipart.FileHeader
	mediaType string
}

// MultipartCandidate adapts an uploaded form file. A missing or generic
// Content-Type falls back to the file name's extension.
func MultipartCandidate(fh *multipart.FileHeader) Candidate {
	mediaType := normalizeType(fh.Header.Get("Content-Type"))
	if mediaType == "" || mediaType == "application/octet-stream" {
		if byName := TypeByName(fh.Filename); byName != "" {
			mediaType = byName
		}
	}
	return &multipartCandidate{fh: fh, mediaType: mediaType}
}

func (c *multipartCandidate) Name() string      { return c.fh.Filename }
func (c *multipartCandidate) MediaType() string { return c.mediaType }
func (c *multipartCandidate) Size() int64       { return c.fh.Size }

func (c *multipartCandidate) Open() (io.ReadCloser, error) {
	return c.fh.Open()
}
