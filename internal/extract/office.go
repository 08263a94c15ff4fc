package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

func extractPDF(data []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	doc := &Document{Format: FormatPDF}
	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		doc.PageOffsets = append(doc.PageOffsets, text.Len())
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("page %d: %v", i, err))
			continue
		}
		text.WriteString(strings.TrimSpace(pageText))
		text.WriteString("\n\n")
	}
	doc.Text = text.String()
	return doc, nil
}

func extractDOCX(data []byte) (*Document, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer func() {
		_ = r.Close()
	}()

	text, err := wordXMLToMarkdown(r.Editable().GetContent())
	if err != nil {
		return nil, err
	}
	return &Document{Format: FormatDOCX, Text: text, Markdown: true}, nil
}

// wordXMLToMarkdown walks WordprocessingML. HeadingN paragraph styles become ATX
// headings and Office Math runs become $...$ (or $$...$$ for display math).
func wordXMLToMarkdown(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))

	var (
		out         []string
		para        strings.Builder
		heading     int
		inText      bool
		mathDepth   int
		displayOpen bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if mathDepth == 0 {
					para.Reset()
					heading = 0
				}
			case "pStyle":
				heading = headingLevel(attr(t, "val"))
			case "t":
				inText = true
			case "tab":
				if mathDepth == 0 {
					para.WriteByte('\t')
				}
			case "br":
				if mathDepth == 0 {
					para.WriteByte('\n')
				}
			case "oMathPara":
				para.WriteString("$$")
				displayOpen = true
				mathDepth++
			case "oMath":
				if !displayOpen {
					para.WriteByte('$')
				}
				mathDepth++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "oMath":
				mathDepth--
				if !displayOpen {
					para.WriteByte('$')
				}
			case "oMathPara":
				mathDepth--
				para.WriteString("$$")
				displayOpen = false
			case "p":
				if mathDepth > 0 {
					continue
				}
				line := strings.TrimSpace(para.String())
				if line == "" {
					continue
				}
				if heading > 0 {
					line = strings.Repeat("#", heading) + " " + line
				}
				out = append(out, line)
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(out, "\n\n"), nil
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps Word style ids ("Heading1", "heading 2", "Title") to ATX levels.
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return 1
	}
	if !strings.HasPrefix(s, "heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}

func extractXLSX(data []byte) (*Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	doc := &Document{Format: FormatXLSX, Markdown: true}
	var text strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("sheet %s: %v", sheet, err))
			continue
		}
		fmt.Fprintf(&text, "# %s\n\n", sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			text.WriteString(line)
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	doc.Text = text.String()
	return doc, nil
}
