package indexer

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"studyrag/internal/storage"
)

const (
	DefaultTargetTokens = 350
	DefaultMaxTokens    = 512
	DefaultMinTokens    = 20
)

// EstimateTokens approximates the token count of s as ceil(runes / 4).
func EstimateTokens(s string) int {
	return tokensFor(utf8.RuneCountInString(s))
}

func tokensFor(runes int) int {
	return (runes + RunesPerToken - 1) / RunesPerToken
}

// Chunker splits extracted study material into retrieval units. It follows the
// document's heading structure, keeps math spans and labelled blocks intact and
// packs paragraphs up to a token budget.
type Chunker struct {
	targetTokens int
	maxTokens    int
	minTokens    int
	parser       goldmark.Markdown
}

// NewChunker creates a chunker. Non-positive values fall back to the defaults.
func NewChunker(targetTokens, maxTokens, minTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if targetTokens > maxTokens {
		targetTokens = maxTokens
	}
	if minTokens < 0 {
		minTokens = DefaultMinTokens
	}
	return &Chunker{
		targetTokens: targetTokens,
		maxTokens:    maxTokens,
		minTokens:    minTokens,
		parser:       goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

type span struct{ start, end int }

type line struct {
	start, end int // end excludes the newline
}

type heading struct {
	level     int
	title     string
	number    int
	hasNumber bool
}

type blockKind int

const (
	blockBody blockKind = iota
	blockHeading
)

type block struct {
	span
	kind    blockKind
	label   storage.ContentType
	heading heading
}

// piece is a chunk candidate expressed as a range of the source text.
type piece struct {
	span
	label   storage.ContentType
	section int
	meta    storage.ChunkMetadata
}

// Chunk returns the drafts for in, indexed 0..N-1. Empty or whitespace-only
// input yields no drafts.
func (c *Chunker) Chunk(in Input) []Draft {
	src := in.Text
	if strings.TrimSpace(src) == "" {
		return nil
	}

	spans := findMathSpans(src, in.HasMath)
	lines := splitLines(src)

	var headings map[int]heading
	var skip map[int]bool
	if in.Markdown {
		headings, skip = c.markdownHeadings(src, lines)
	} else {
		headings = lineHeadings(src, lines, spans)
	}

	blocks := segment(src, lines, headings, skip, spans)
	pieces := c.pack(src, blocks, chapterLevel(headings), spans, in.PageAt)
	pieces = c.mergeSmall(src, pieces)

	drafts := make([]Draft, 0, len(pieces))
	for _, p := range pieces {
		d, ok := finalize(src, p, spans)
		if !ok {
			continue
		}
		d.Index = len(drafts)
		drafts = append(drafts, d)
	}
	return drafts
}

func splitLines(src string) []line {
	var lines []line
	start := 0
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			lines = append(lines, line{start: start, end: i})
			start = i + 1
		}
	}
	if start < len(src) {
		lines = append(lines, line{start: start, end: len(src)})
	}
	return lines
}

var setextUnderline = regexp.MustCompile(`^\s*(=+|-+)\s*$`)

// markdownHeadings finds headings with goldmark so fenced code and other
// non-heading '#' lines are ignored. Keys are line indexes; skip marks setext
// underlines.
func (c *Chunker) markdownHeadings(src string, lines []line) (map[int]heading, map[int]bool) {
	content := []byte(src)
	doc := c.parser.Parser().Parse(text.NewReader(content))

	headings := make(map[int]heading)
	skip := make(map[int]bool)
	lineOf := func(offset int) int {
		lo, hi := 0, len(lines)-1
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if lines[mid].start <= offset {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		return lo
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		segs := h.Lines()
		if segs.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		first := lineOf(segs.At(0).Start)
		last := lineOf(segs.At(segs.Len() - 1).Start)
		headings[first] = parseHeadingTitle(h.Level, extractTextFromNode(h, content))
		for k := first + 1; k <= last; k++ {
			skip[k] = true
		}
		atx := bytes.HasPrefix(bytes.TrimSpace(content[lines[first].start:lines[first].end]), []byte("#"))
		if next := last + 1; !atx && next < len(lines) && setextUnderline.MatchString(src[lines[next].start:lines[next].end]) {
			skip[next] = true
		}
		return ast.WalkSkipChildren, nil
	})
	return headings, skip
}

// extractTextFromNode concatenates the text of all descendants of n.
func extractTextFromNode(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

var (
	atxHeading     = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.+?)\s*#*\s*$`)
	keywordHeading = regexp.MustCompile(`^\s*(?i:(part|chapter|unit|module|lecture))\s+([0-9]+|[IVXLCDM]+)\b\s*([:.\-–—]?)\s*(.*)$`)
	latexHeading   = regexp.MustCompile(`^\s*\\(part|chapter|section|subsection|subsubsection)\*?\{(.+)\}\s*$`)
	leadingNumber  = regexp.MustCompile(`^([0-9]+)[.:)]?\s+\S`)
)

const maxHeadingRunes = 80

var latexLevels = map[string]int{"part": 0, "chapter": 1, "section": 2, "subsection": 3, "subsubsection": 4}

// lineHeadings recognises headings in plain extracted text: ATX lines, LaTeX
// sectioning commands and short "Chapter 3: Title" style lines.
func lineHeadings(src string, lines []line, spans []mathSpan) map[int]heading {
	headings := make(map[int]heading)
	for i, l := range lines {
		if insideSpan(spans, l.start) {
			continue
		}
		s := src[l.start:l.end]
		if m := atxHeading.FindStringSubmatch(s); m != nil {
			headings[i] = parseHeadingTitle(len(m[1]), m[2])
			continue
		}
		if m := latexHeading.FindStringSubmatch(s); m != nil {
			headings[i] = parseHeadingTitle(latexLevels[m[1]], m[2])
			continue
		}
		if h, ok := keywordLine(s); ok {
			headings[i] = h
		}
	}
	return headings
}

// keywordLine matches "Chapter 3: Limits", "UNIT IV" and similar. Long lines and
// sentences ("Lecture 5 notes were posted.") are rejected.
func keywordLine(s string) (heading, bool) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxHeadingRunes {
		return heading{}, false
	}
	m := keywordHeading.FindStringSubmatch(s)
	if m == nil {
		return heading{}, false
	}
	sep, rest := m[3], m[4]
	if rest != "" {
		first, _ := utf8.DecodeRuneInString(rest)
		if sep == "" && !unicode.IsUpper(first) && !unicode.IsDigit(first) {
			return heading{}, false
		}
		if strings.HasSuffix(rest, ".") {
			return heading{}, false
		}
	}
	level := 1
	if strings.EqualFold(m[1], "part") {
		level = 0
	}
	n, ok := parseOrdinal(m[2])
	return heading{level: level, title: s, number: n, hasNumber: ok}, true
}

// parseHeadingTitle builds a heading from its text, picking up a chapter number
// from "Chapter 3 ..." or "3. ..." forms.
func parseHeadingTitle(level int, title string) heading {
	title = strings.TrimSpace(title)
	h := heading{level: level, title: title}
	if m := keywordHeading.FindStringSubmatch(title); m != nil {
		h.number, h.hasNumber = parseOrdinal(m[2])
	} else if m := leadingNumber.FindStringSubmatch(title); m != nil {
		h.number, h.hasNumber = parseOrdinal(m[1])
	}
	return h
}

func parseOrdinal(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, n > 0
	}
	return romanToInt(s)
}

// maxRomanChapter bounds roman chapter numbers so lettered parts ("Part C",
// "Unit D") stay unnumbered instead of reading as 100 or 500.
const maxRomanChapter = 50

func romanToInt(s string) (int, bool) {
	values := map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}
	if len(s) == 1 && s != "I" && s != "V" && s != "X" {
		return 0, false
	}
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := values[s[i]]
		if !ok {
			return 0, false
		}
		if i+1 < len(s) && values[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total, total > 0 && total <= maxRomanChapter
}

// chapterLevel is the shallowest heading level that occurs at least twice, or the
// shallowest level present when none repeats. It returns -1 without headings.
func chapterLevel(headings map[int]heading) int {
	counts := make(map[int]int)
	for _, h := range headings {
		counts[h.level]++
	}
	best, shallowest := -1, -1
	for level, n := range counts {
		if shallowest == -1 || level < shallowest {
			shallowest = level
		}
		if n >= 2 && (best == -1 || level < best) {
			best = level
		}
	}
	if best == -1 {
		return shallowest
	}
	return best
}

// segment groups lines into blocks. Blank lines, headings and labelled lines
// end a block except inside a math span.
func segment(src string, lines []line, headings map[int]heading, skip map[int]bool, spans []mathSpan) []block {
	var (
		blocks []block
		cur    *block
	)
	flush := func() {
		if cur != nil {
			blocks = append(blocks, *cur)
			cur = nil
		}
	}

	for i, l := range lines {
		if cur != nil && insideSpan(spans, l.start) {
			cur.end = l.end
			continue
		}
		if skip[i] {
			continue
		}
		if h, ok := headings[i]; ok {
			flush()
			blocks = append(blocks, block{span: span{l.start, l.end}, kind: blockHeading, heading: h})
			continue
		}
		s := src[l.start:l.end]
		if strings.TrimSpace(s) == "" {
			flush()
			continue
		}
		if label := labelOf(s); label != "" {
			flush()
			cur = &block{span: span{l.start, l.end}, label: label}
			continue
		}
		if cur == nil {
			cur = &block{span: span{l.start, l.end}}
			continue
		}
		cur.end = l.end
	}
	flush()
	return blocks
}

// pack assigns section metadata to body blocks and combines them into pieces no
// larger than the target budget. Blocks above the ceiling are split.
func (c *Chunker) pack(src string, blocks []block, chapterLvl int, spans []mathSpan, pageAt func(int) int) []piece {
	var (
		pieces  []piece
		pending *piece
		chapter *storage.ChapterInfo
		topics  []heading
		section int
		lastNum int
	)
	flush := func() {
		if pending != nil {
			pieces = append(pieces, *pending)
			pending = nil
		}
	}

	meta := func(start int) storage.ChunkMetadata {
		m := storage.ChunkMetadata{}
		if pageAt != nil {
			m.Page = pageAt(start)
		}
		if chapter != nil {
			ch := *chapter
			for _, t := range topics {
				ch.Topics = append(ch.Topics, t.title)
			}
			m.Chapter = &ch
		}
		return m
	}

	for _, b := range blocks {
		if b.kind == blockHeading {
			flush()
			section++
			h := b.heading
			switch {
			case h.level == chapterLvl:
				n := lastNum + 1
				if h.hasNumber {
					n = h.number
				}
				lastNum = n
				chapter = &storage.ChapterInfo{Number: n, Title: h.title}
				topics = nil
			case h.level > chapterLvl:
				for len(topics) > 0 && topics[len(topics)-1].level >= h.level {
					topics = topics[:len(topics)-1]
				}
				topics = append(topics, h)
			default:
				chapter = nil
				topics = nil
			}
			continue
		}

		if EstimateTokens(src[b.start:b.end]) > c.maxTokens {
			flush()
			for _, r := range c.splitBlock(src, b.span, spans) {
				pieces = append(pieces, piece{span: r, label: b.label, section: section, meta: meta(r.start)})
			}
			continue
		}
		if b.label != "" || pending == nil || EstimateTokens(src[pending.start:b.end]) > c.targetTokens {
			flush()
			pending = &piece{span: b.span, label: b.label, section: section, meta: meta(b.start)}
			continue
		}
		pending.end = b.end
	}
	flush()
	return pieces
}

// splitBlock breaks an oversized block at sentence ends, then at whitespace,
// never inside a math span. A single span above the ceiling stays whole.
func (c *Chunker) splitBlock(src string, b span, spans []mathSpan) []span {
	var units []span
	for _, s := range sentences(src, b, spans) {
		if EstimateTokens(src[s.start:s.end]) > c.maxTokens {
			units = append(units, c.splitWords(src, s, spans)...)
			continue
		}
		units = append(units, s)
	}
	if len(units) == 0 {
		return nil
	}

	var out []span
	cur := units[0]
	for _, u := range units[1:] {
		if EstimateTokens(src[cur.start:u.end]) <= c.targetTokens {
			cur.end = u.end
			continue
		}
		out = append(out, cur)
		cur = u
	}
	return append(out, cur)
}

func sentences(src string, b span, spans []mathSpan) []span {
	var out []span
	start := b.start
	for i := b.start; i < b.end-1; i++ {
		ch := src[i]
		boundary := ch == '\n' || ((ch == '.' || ch == '!' || ch == '?') && isSpace(src[i+1]))
		if !boundary || insideSpan(spans, i+1) {
			continue
		}
		if strings.TrimSpace(src[start:i+1]) != "" {
			out = append(out, span{start, i + 1})
		}
		start = i + 1
	}
	if strings.TrimSpace(src[start:b.end]) != "" {
		out = append(out, span{start, b.end})
	}
	return out
}

func (c *Chunker) splitWords(src string, s span, spans []mathSpan) []span {
	var out []span
	segStart, lastCut := s.start, -1
	segRunes, runesAtCut := 0, 0
	for off, r := range src[s.start:s.end] {
		i := s.start + off
		if unicode.IsSpace(r) && !insideSpan(spans, i) {
			if tokensFor(segRunes) > c.maxTokens && lastCut > segStart {
				out = append(out, span{segStart, lastCut})
				segStart = lastCut
				segRunes -= runesAtCut
			}
			lastCut = i
			runesAtCut = segRunes
		}
		segRunes++
	}
	if tokensFor(segRunes) > c.maxTokens && lastCut > segStart {
		out = append(out, span{segStart, lastCut})
		segStart = lastCut
	}
	return append(out, span{segStart, s.end})
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// mergeSmall folds pieces below the minimum into the next piece of the same
// section, or the previous one at the end of a section, when the result fits
// under the ceiling.
func (c *Chunker) mergeSmall(src string, pieces []piece) []piece {
	out := make([]piece, 0, len(pieces))
	small := func(p piece) bool { return EstimateTokens(src[p.start:p.end]) < c.minTokens }
	fits := func(start, end int) bool { return EstimateTokens(src[start:end]) <= c.maxTokens }

	for i := 0; i < len(pieces); i++ {
		p := pieces[i]
		for small(p) && i+1 < len(pieces) && pieces[i+1].section == p.section && fits(p.start, pieces[i+1].end) {
			next := pieces[i+1]
			p.end = next.end
			if p.label == "" {
				p.label = next.label
			}
			i++
		}
		if small(p) && len(out) > 0 {
			prev := &out[len(out)-1]
			if prev.section == p.section && fits(prev.start, p.end) {
				prev.end = p.end
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func finalize(src string, p piece, spans []mathSpan) (Draft, bool) {
	raw := strings.TrimSpace(src[p.start:p.end])
	if raw == "" {
		return Draft{}, false
	}
	d := Draft{ContentType: storage.ContentText, Metadata: p.meta}
	if overlapsSpan(spans, p.start, p.end) {
		d.ContentType = storage.ContentEquation
		d.HasMath = true
		d.LatexContent = raw
		d.Content = normalizeMath(raw)
	} else {
		if p.label != "" {
			d.ContentType = p.label
		}
		d.Content = normalizeText(raw)
	}
	if d.Content == "" {
		d.Content = raw
	}
	d.TokenCount = EstimateTokens(d.Content)
	return d, true
}
