package indexer

import (
	"regexp"
	"sort"
	"strings"

	"studyrag/internal/storage"
)

// mathSpan is a byte range [start, end) of source text that is never split.
type mathSpan struct {
	start, end int
	display    bool
}

var displayEnvs = map[string]bool{
	"equation": true, "equation*": true,
	"align": true, "align*": true,
	"gather": true, "gather*": true,
	"multline": true, "multline*": true,
	"eqnarray": true, "eqnarray*": true,
	"displaymath": true,
}

// findMathSpans locates display math ($$..$$, \[..\], math environments) and, when
// inline is set, inline math ($..$, \(..\)). Escaped delimiters are skipped and a
// dollar sign followed by a digit or whitespace is treated as currency. Unclosed
// delimiters produce no span. Spans are returned in order and never overlap.
func findMathSpans(text string, inline bool) []mathSpan {
	var spans []mathSpan
	n := len(text)
	for i := 0; i < n; {
		switch text[i] {
		case '\\':
			if i+1 >= n {
				i++
				continue
			}
			next := text[i+1]
			switch {
			case next == '$' || next == '\\':
				i += 2
			case next == '[':
				if end := indexFrom(text, i+2, `\]`); end >= 0 {
					spans = append(spans, mathSpan{start: i, end: end + 2, display: true})
					i = end + 2
					continue
				}
				i += 2
			case next == '(' && inline:
				if end := indexFrom(text, i+2, `\)`); end >= 0 {
					spans = append(spans, mathSpan{start: i, end: end + 2})
					i = end + 2
					continue
				}
				i += 2
			case strings.HasPrefix(text[i:], `\begin{`):
				if env, ok := mathEnv(text[i+len(`\begin{`):]); ok {
					closing := `\end{` + env + `}`
					if end := indexFrom(text, i, closing); end >= 0 {
						spans = append(spans, mathSpan{start: i, end: end + len(closing), display: true})
						i = end + len(closing)
						continue
					}
				}
				i += len(`\begin{`)
			default:
				i++
			}
		case '$':
			if i+1 < n && text[i+1] == '$' {
				if end := indexUnescaped(text, i+2, "$$"); end >= 0 {
					spans = append(spans, mathSpan{start: i, end: end + 2, display: true})
					i = end + 2
					continue
				}
				i += 2
				continue
			}
			if inline {
				if end, ok := inlineDollarEnd(text, i); ok {
					spans = append(spans, mathSpan{start: i, end: end + 1})
					i = end + 1
					continue
				}
			}
			i++
		default:
			i++
		}
	}
	return spans
}

func mathEnv(rest string) (string, bool) {
	idx := strings.IndexByte(rest, '}')
	if idx <= 0 {
		return "", false
	}
	env := rest[:idx]
	return env, displayEnvs[env]
}

func indexFrom(text string, from int, sub string) int {
	if from > len(text) {
		return -1
	}
	idx := strings.Index(text[from:], sub)
	if idx < 0 {
		return -1
	}
	return from + idx
}

func indexUnescaped(text string, from int, sub string) int {
	for {
		idx := indexFrom(text, from, sub)
		if idx < 0 {
			return -1
		}
		if idx > 0 && text[idx-1] == '\\' {
			from = idx + 1
			continue
		}
		return idx
	}
}

// inlineDollarEnd finds the closing dollar of an inline span opened at i. The span
// may not cross a paragraph break.
func inlineDollarEnd(text string, i int) (int, bool) {
	if i+1 >= len(text) {
		return 0, false
	}
	next := text[i+1]
	if next == ' ' || next == '\t' || next == '\n' || isDigit(next) {
		return 0, false
	}
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '\n':
			if j+1 < len(text) && text[j+1] == '\n' {
				return 0, false
			}
		case '$':
			if text[j-1] == ' ' || text[j-1] == '\t' {
				return 0, false
			}
			if j+1 < len(text) && isDigit(text[j+1]) {
				return 0, false
			}
			return j, true
		}
	}
	return 0, false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// insideSpan reports whether pos falls strictly inside a span, i.e. cutting the
// text at pos would break the span apart.
func insideSpan(spans []mathSpan, pos int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > pos })
	return i < len(spans) && spans[i].start < pos
}

// overlapsSpan reports whether [start, end) intersects any span.
func overlapsSpan(spans []mathSpan, start, end int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > start })
	return i < len(spans) && spans[i].start < end
}

var (
	mathEnvDelim = regexp.MustCompile(`\\(?:begin|end)\{[a-zA-Z*]+\}`)
	latexFrac    = regexp.MustCompile(`\\[dt]?frac\{([^{}]*)\}\{([^{}]*)\}`)
	latexCommand = regexp.MustCompile(`\\([a-zA-Z]+)`)
	blankRuns    = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

var latexWords = map[string]string{
	"le": "<=", "leq": "<=", "ge": ">=", "geq": ">=", "neq": "!=", "ne": "!=",
	"cdot": "*", "times": "x", "div": "/", "pm": "+-", "approx": "~",
	"to": "->", "rightarrow": "->", "Rightarrow": "=>", "implies": "=>", "iff": "<=>",
	"infty": "infinity", "int": "integral", "iint": "double integral", "oint": "contour integral",
	"partial": "partial", "nabla": "nabla", "in": "in", "forall": "for all", "exists": "exists",
	"left": "", "right": "", "quad": " ", "qquad": " ", "displaystyle": "", "mathrm": "", "text": "",
	"mathbf": "", "mathbb": "", "operatorname": "", "label": "", "nonumber": "",
}

// normalizeMath renders LaTeX markup as plain text for embedding and display.
// The verbatim source is kept separately, so this may be lossy.
func normalizeMath(raw string) string {
	const dollar = "\x00"
	s := strings.ReplaceAll(raw, `\$`, dollar)
	s = mathEnvDelim.ReplaceAllString(s, " ")
	for _, d := range []string{"$$", `\[`, `\]`, `\(`, `\)`, "$"} {
		s = strings.ReplaceAll(s, d, " ")
	}
	s = latexFrac.ReplaceAllString(s, "($1)/($2)")
	s = latexCommand.ReplaceAllStringFunc(s, func(cmd string) string {
		name := cmd[1:]
		if word, ok := latexWords[name]; ok {
			return " " + word + " "
		}
		return " " + name + " "
	})
	s = strings.NewReplacer("{", "", "}", "", "&", " ", `\\`, "\n").Replace(s)
	s = strings.ReplaceAll(s, dollar, "$")
	return normalizeText(s)
}

// normalizeText collapses horizontal whitespace and long blank-line runs.
func normalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRuns.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

var (
	labelledLine  = regexp.MustCompile(`^\s*(?:\*\*|__)?(Theorem|Lemma|Corollary|Proposition|Proof|Definition|Example|Exercise)(?:\s+[0-9]+(?:\.[0-9]+)*)?(?:\s*\([^)\n]*\))?(?:\*\*|__)?\s*[.:]`)
	labelledLaTeX = regexp.MustCompile(`^\s*\\begin\{(theorem|lemma|corollary|proposition|proof|definition|example|exercise)\*?\}`)
)

// labelOf classifies a line that opens a labelled block. It returns "" for ordinary lines.
func labelOf(line string) storage.ContentType {
	var word string
	if m := labelledLine.FindStringSubmatch(line); m != nil {
		word = m[1]
	} else if m := labelledLaTeX.FindStringSubmatch(line); m != nil {
		word = m[1]
	} else {
		return ""
	}
	switch strings.ToLower(word) {
	case "definition":
		return storage.ContentDefinition
	case "example", "exercise":
		return storage.ContentExample
	default:
		return storage.ContentTheorem
	}
}
