// Package billvalidation checks uploaded transfer receipts before they are stored.
package billvalidation

import (
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// Limits bounds an uploaded bill
type Limits struct {
	MaxFileSizeMB int
	MaxPDFPages   int
}

var DefaultLimits = Limits{
	MaxFileSizeMB: 10,
	MaxPDFPages:   5,
}

var allowed = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
}

// Result describes a bill that passed validation
type Result struct {
	ContentType string
	Extension   string
	Size        int64
	PageCount   int
}

// ValidationError is a user-facing reason the bill was refused
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func refuse(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate sniffs content (ignoring the client's claimed type) and enforces limits.
// PDFs must parse and stay within the page limit.
func Validate(content []byte, limits Limits) (*Result, error) {
	size := int64(len(content))
	if size == 0 {
		return nil, refuse("Bill image is empty")
	}
	maxSize := int64(limits.MaxFileSizeMB) * 1024 * 1024
	if size > maxSize {
		return nil, refuse("File size exceeds maximum allowed size of %dMB", limits.MaxFileSizeMB)
	}

	mt := mimetype.Detect(content)
	contentType := mt.String()
	for base := mt; base != nil; base = base.Parent() {
		if allowed[base.String()] {
			contentType = base.String()
			break
		}
	}
	if !allowed[contentType] {
		return nil, refuse("Unsupported bill format %s: upload a JPEG, PNG, WEBP or PDF", mt.String())
	}

	res := &Result{ContentType: contentType, Extension: mt.Extension(), Size: size}
	if contentType != "application/pdf" {
		return res, nil
	}

	pages, err := pageCount(content)
	if err != nil {
		return nil, refuse("Failed to read PDF: %v", err)
	}
	if pages == 0 {
		return nil, refuse("PDF has no pages")
	}
	if pages > limits.MaxPDFPages {
		return nil, refuse("PDF has %d pages, which exceeds the maximum of %d pages for a bill", pages, limits.MaxPDFPages)
	}
	res.PageCount = pages
	res.Extension = ".pdf"
	return res, nil
}

// trimAfterEOF drops trailing bytes some generators append after the last %%EOF
func trimAfterEOF(content []byte) []byte {
	eof := []byte("%%EOF")
	last := bytes.LastIndex(content, eof)
	if last == -1 {
		return content
	}
	end := last + len(eof)
	for end < len(content) && (content[end] == '\n' || content[end] == '\r') {
		end++
	}
	return content[:end]
}

func pageCount(content []byte) (n int, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF")
		}
	}()
	content = trimAfterEOF(content)
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}
	return r.NumPage(), nil
}
