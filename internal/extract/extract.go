// Package extract turns uploaded study documents into plain text for chunking.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"studyrag/internal/contextutil"
)

var (
	// ErrEmptyFile is returned for zero-length input.
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnsupportedFormat is returned for an unknown file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrTranscriptionUnavailable is returned for audio/video when no Transcriber is configured.
	ErrTranscriptionUnavailable = errors.New("no transcriber configured for audio/video input")
)

// Format names the detected source format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatDOC      Format = "doc"
	FormatXLSX     Format = "xlsx"
	FormatRTF      Format = "rtf"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatLaTeX    Format = "tex"
	FormatAudio    Format = "audio"
)

// Document is the extracted text of one file.
type Document struct {
	Text   string
	Format Format
	// HasMath is the math hint handed to the chunker.
	HasMath bool
	// Markdown is set when headings in Text use ATX syntax.
	Markdown bool
	// PageOffsets[i] is the byte offset in Text where page i+1 starts. Empty for unpaged formats.
	PageOffsets []int
	Warnings    []string
}

// PageAt returns the 1-based page containing byte offset off, or 0 for unpaged documents.
func (d *Document) PageAt(off int) int {
	page := 0
	for i, start := range d.PageOffsets {
		if off < start {
			break
		}
		page = i + 1
	}
	return page
}

// Transcriber converts audio or video to text. No provider is bundled.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, data []byte) (string, error)
}

// Extractor dispatches on file extension.
type Extractor struct {
	transcriber Transcriber
}

// New creates an Extractor. transcriber may be nil.
func New(transcriber Transcriber) *Extractor {
	return &Extractor{transcriber: transcriber}
}

var mathMarker = regexp.MustCompile(`\$\$|\\\[|\\\(|\\begin\{(equation|align|gather|multline)\*?\}|\\(frac|sum|int|sqrt|lim)\b`)

// DetectMath reports whether text contains LaTeX math markers.
func DetectMath(text string) bool {
	return mathMarker.MatchString(text)
}

// Extract returns the text of data interpreted according to filename's extension.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	logger := contextutil.LoggerFromContext(ctx)

	ext := strings.ToLower(filepath.Ext(filename))
	var (
		doc *Document
		err error
	)
	switch ext {
	case ".pdf":
		doc, err = extractPDF(data)
	case ".docx":
		doc, err = extractDOCX(data)
	case ".doc":
		doc = &Document{Format: FormatDOC, Text: extractLegacyDoc(data)}
	case ".xlsx":
		doc, err = extractXLSX(data)
	case ".rtf":
		doc = &Document{Format: FormatRTF, Text: stripRTF(string(data))}
	case ".txt":
		doc, err = decodeText(data, FormatText)
	case ".md", ".markdown":
		doc, err = decodeText(data, FormatMarkdown)
		if doc != nil {
			doc.Markdown = true
		}
	case ".tex":
		doc, err = decodeText(data, FormatLaTeX)
		if doc != nil {
			doc.HasMath = true
		}
	case ".mp3", ".wav", ".m4a", ".mp4":
		if e.transcriber == nil {
			return nil, ErrTranscriptionUnavailable
		}
		text, terr := e.transcriber.Transcribe(ctx, filename, data)
		if terr != nil {
			return nil, fmt.Errorf("failed to transcribe %s: %w", filename, terr)
		}
		doc = &Document{Format: FormatAudio, Text: text}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filename, err)
	}

	if !doc.HasMath && DetectMath(doc.Text) {
		doc.HasMath = true
	}
	for _, w := range doc.Warnings {
		logger.Warn("extraction warning", "filename", filename, "warning", w)
	}
	logger.Debug("extracted document", "filename", filename, "format", doc.Format, "chars", len(doc.Text), "has_math", doc.HasMath)
	return doc, nil
}

func decodeText(data []byte, format Format) (*Document, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8", format)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return &Document{Format: format, Text: text}, nil
}
