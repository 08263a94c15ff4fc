package generator

import (
	"fmt"
	"sort"
	"strings"

	"studyrag/internal/indexer"
	"studyrag/internal/rag"
	"studyrag/internal/storage"
)

// headerTokens approximates the label line written before each source.
const headerTokens = 12

// source is one chunk offered to the model, labelled S1, S2, ...
type source struct {
	label         string
	chunkID       string
	materialTitle string
	chapter       *int
	chapterTitle  string
	content       string
	latex         string
	tokens        int
}

func sourceFromChunk(c storage.ChunkRecord, title string) source {
	s := source{
		chunkID:       c.ID,
		materialTitle: title,
		chapterTitle:  c.Metadata.ChapterTitle(),
		content:       c.Content,
		tokens:        c.TokenCount,
	}
	if c.HasMath {
		s.latex = c.LatexContent
	}
	if n, ok := c.Metadata.ChapterNumber(); ok {
		s.chapter = &n
	}
	if s.tokens <= 0 {
		s.tokens = indexer.EstimateTokens(c.Content)
	}
	return s
}

func sourceFromResult(r rag.Result) source {
	s := source{
		chunkID:       r.ChunkID,
		materialTitle: r.MaterialTitle,
		chapter:       r.Chapter,
		chapterTitle:  r.ChapterTitle,
		content:       r.Content,
		latex:         r.LatexContent,
		tokens:        indexer.EstimateTokens(r.Content),
	}
	return s
}

func (s source) cost() int {
	return s.tokens + indexer.EstimateTokens(s.latex) + headerTokens
}

// allocate splits budget across weights: every positive weight gets one slot
// while the budget lasts, the rest is shared proportionally by largest
// remainder. No entry receives more than its weight.
func allocate(weights []int, budget int) []int {
	alloc := make([]int, len(weights))
	total := 0
	for _, w := range weights {
		total += max(w, 0)
	}
	if total <= budget {
		for i, w := range weights {
			alloc[i] = max(w, 0)
		}
		return alloc
	}

	remaining := budget
	for i, w := range weights {
		if w > 0 && remaining > 0 {
			alloc[i] = 1
			remaining--
		}
	}
	if remaining == 0 {
		return alloc
	}

	capacity := 0
	for i, w := range weights {
		capacity += max(w, 0) - alloc[i]
	}

	type share struct {
		i   int
		rem float64
	}
	shares := make([]share, 0, len(weights))
	given := 0
	for i, w := range weights {
		spare := max(w, 0) - alloc[i]
		if spare <= 0 {
			continue
		}
		exact := float64(remaining) * float64(spare) / float64(capacity)
		add := int(exact)
		alloc[i] += add
		given += add
		shares = append(shares, share{i: i, rem: exact - float64(add)})
	}
	sort.SliceStable(shares, func(a, b int) bool { return shares[a].rem > shares[b].rem })
	for left := remaining - given; left > 0; {
		progressed := false
		for _, s := range shares {
			if left == 0 {
				break
			}
			if alloc[s.i] < weights[s.i] {
				alloc[s.i]++
				left--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return alloc
}

// evenly returns k indexes spread across [0, n), in ascending order.
func evenly(n, k int) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if k <= 0 {
		return nil
	}
	out := make([]int, k)
	for i := range out {
		out[i] = i * n / k
	}
	return out
}

// fitBudget keeps as many sources as fit within budget tokens, dropping evenly
// across the selection. A single source that is still too large is truncated.
func fitBudget(sources []source, budget int) (kept []source, trimmed bool) {
	total := 0
	for _, s := range sources {
		total += s.cost()
	}
	if total <= budget || len(sources) == 0 {
		return sources, false
	}

	for k := len(sources) - 1; k >= 1; k-- {
		picked := make([]source, 0, k)
		sum := 0
		for _, i := range evenly(len(sources), k) {
			picked = append(picked, sources[i])
			sum += sources[i].cost()
		}
		if sum <= budget {
			return picked, true
		}
	}

	one := sources[0]
	one.latex = ""
	maxRunes := max(budget-headerTokens, 1) * indexer.RunesPerToken
	if r := []rune(one.content); len(r) > maxRunes {
		one.content = string(r[:maxRunes])
	}
	return []source{one}, true
}

// label assigns S1..Sn in order and returns the label to chunk id mapping.
func label(sources []source) map[string]string {
	ids := make(map[string]string, len(sources))
	for i := range sources {
		sources[i].label = fmt.Sprintf("S%d", i+1)
		ids[sources[i].label] = sources[i].chunkID
	}
	return ids
}

func renderContext(sources []source) string {
	var b strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&b, "[%s] %s", s.label, s.materialTitle)
		if s.chapter != nil {
			fmt.Fprintf(&b, " | Chapter %d: %s", *s.chapter, s.chapterTitle)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.content))
		b.WriteString("\n")
		if s.latex != "" {
			b.WriteString("Original markup: ")
			b.WriteString(strings.TrimSpace(s.latex))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
