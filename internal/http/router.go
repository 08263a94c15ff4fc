package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studyrag/internal/handlers"
	"studyrag/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Study  service.StudyService
	Health http.Handler
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	materials := handlers.NewMaterialHandler(deps.Study)
	search := handlers.NewSearchHandler(deps.Study)
	generation := handlers.NewGenerationHandler(deps.Study)
	pages := handlers.NewPageHandler(deps.Study)

	r.Route("/api", func(r chi.Router) {
		if deps.Health != nil {
			r.Method(http.MethodGet, "/health", deps.Health)
		}

		r.Post("/materials", materials.Create)
		r.Delete("/materials/{id}", materials.Delete)
		r.Post("/materials/{id}/backfill", materials.Backfill)

		r.Post("/search", search.Search)
		r.Post("/hints", search.Hints)
		r.Get("/sections/{id}/structure", search.Structure)

		r.Post("/quizzes", generation.CreateQuiz)
		r.Get("/quizzes/{id}", generation.GetQuiz)
		r.Post("/quizzes/{id}/flashcards", generation.DeriveFlashcards)
		r.Post("/flashcard-sets", generation.CreateFlashcardSet)
		r.Get("/flashcard-sets/{id}", generation.GetFlashcardSet)
	})

	r.Get("/quizzes/{id}", pages.Quiz)
	r.Get("/flashcard-sets/{id}", pages.FlashcardSet)

	return r
}
