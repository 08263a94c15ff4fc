package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"studyrag/internal/contextutil"
	"studyrag/internal/service"
	"studyrag/internal/storage"
)

// PageHandler serves stored quizzes and flashcard sets as HTML pages.
// Question, answer and card text is rendered as markdown.
type PageHandler struct {
	svc      service.StudyService
	md       goldmark.Markdown
	template *template.Template
}

type pageItem struct {
	Heading string
	Body    template.HTML
	Options []pageOption
	Answer  template.HTML
	Meta    string
}

type pageOption struct {
	Key  string
	Text template.HTML
}

type pageData struct {
	Title       string
	Kind        string
	Description string
	Items       []pageItem
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} ({{.Kind}})</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; margin: 0 auto; padding: 2rem; max-width: 900px; line-height: 1.6; background: #050b18; color: #e4ecff; }
    h1 { margin-top: 0; color: #fff; }
    section { background: rgba(12, 19, 35, 0.85); border: 1px solid rgba(99, 102, 241, 0.2); border-radius: 12px; padding: 1.25rem 1.5rem; margin-bottom: 1rem; }
    h2 { font-size: 1.05rem; color: #c7d2fe; margin: 0 0 0.5rem; }
    ul { list-style: none; padding-left: 0; }
    li b { color: #93c5fd; margin-right: 0.4rem; }
    details { margin-top: 0.75rem; color: #cbd5f5; }
    code { background: rgba(99, 102, 241, 0.18); padding: 2px 5px; border-radius: 6px; }
    .meta { color: #94a3b8; font-size: 0.9rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .Description}}<p class="meta">{{.Description}}</p>{{end}}
  {{range .Items}}
  <section>
    <h2>{{.Heading}}</h2>
    {{.Body}}
    {{if .Options}}<ul>{{range .Options}}<li><b>{{.Key}}</b>{{.Text}}</li>{{end}}</ul>{{end}}
    <details><summary>Answer</summary>{{.Answer}}</details>
    {{if .Meta}}<p class="meta">{{.Meta}}</p>{{end}}
  </section>
  {{end}}
</body>
</html>`

// NewPageHandler creates a new PageHandler.
func NewPageHandler(svc service.StudyService) *PageHandler {
	return &PageHandler{
		svc: svc,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
		),
		template: template.Must(template.New("page").Parse(pageTemplate)),
	}
}

// Quiz renders a stored quiz.
func (h *PageHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	quiz, err := h.svc.GetQuiz(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := pageData{Title: quiz.Name, Kind: "quiz", Description: quiz.Description}
	for i, q := range quiz.Questions {
		item := pageItem{
			Heading: "Question " + strconv.Itoa(i+1),
			Body:    h.render(q.Question),
			Answer:  h.render("**" + q.CorrectAnswer + "**\n\n" + q.Explanation),
			Meta:    questionMeta(q),
		}
		for _, key := range optionKeys(q.Options) {
			item.Options = append(item.Options, pageOption{Key: key, Text: h.render(q.Options[key])})
		}
		data.Items = append(data.Items, item)
	}
	h.write(w, r, data)
}

// FlashcardSet renders a stored flashcard set.
func (h *PageHandler) FlashcardSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, err := h.svc.GetFlashcardSet(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := pageData{Title: set.Name, Kind: "flashcards", Description: set.Description}
	for i, c := range set.Cards {
		data.Items = append(data.Items, pageItem{
			Heading: "Card " + strconv.Itoa(i+1),
			Body:    h.render(c.Front),
			Answer:  h.render(c.Back),
			Meta:    c.Topic,
		})
	}
	h.write(w, r, data)
}

// render converts markdown to HTML. Raw HTML in generated text is escaped.
func (h *PageHandler) render(src string) template.HTML {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func (h *PageHandler) write(w http.ResponseWriter, r *http.Request, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, data); err != nil {
		contextutil.LoggerFromContext(r.Context()).Error("failed to execute page template", "error", err)
	}
}

func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err, "failed to load page")
	contextutil.LoggerFromContext(r.Context()).Warn("page lookup failed", "error", err, "status", status)
	http.Error(w, msg, status)
}

func optionKeys(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// True first
	if len(keys) == 2 && keys[0] == "False" && keys[1] == "True" {
		keys[0], keys[1] = keys[1], keys[0]
	}
	return keys
}

func questionMeta(q storage.Question) string {
	meta := q.Difficulty
	if q.Topic != "" {
		meta += " · " + q.Topic
	}
	if q.Chapter != nil {
		meta += " · chapter " + strconv.Itoa(*q.Chapter)
	}
	return meta
}
