package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"studyrag/internal/generator"
	"studyrag/internal/indexer"
	"studyrag/internal/library"
	"studyrag/internal/rag"
	"studyrag/internal/service"
	"studyrag/internal/storage"
)

// withApp wires the application for a single command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progress prints generation stages to stderr so stdout stays valid JSON.
func progress(stage string) {
	fmt.Fprintf(os.Stderr, "... %s\n", stage)
}

// resolveSections accepts section ids or names. Names must already exist.
func resolveSections(ctx context.Context, sections storage.SectionStore, refs []string) ([]int64, error) {
	var all []storage.Section
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		if all == nil {
			var err error
			if all, err = sections.ListAll(ctx); err != nil {
				return nil, err
			}
		}
		found := false
		for _, s := range all {
			if strings.EqualFold(s.Name, ref) {
				ids = append(ids, s.ID)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown section %q", service.ErrNotFound, ref)
		}
	}
	return ids, nil
}

// parseChapterFilter reads "materialID=1,2" pairs.
func parseChapterFilter(pairs []string) (rag.ChapterFilter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(rag.ChapterFilter, len(pairs))
	for _, p := range pairs {
		id, list, ok := strings.Cut(p, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid chapter filter %q, want material_id=1,2", p)
		}
		var chapters []int
		for _, s := range strings.Split(list, ",") {
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("invalid chapter %q in filter %q", s, p)
			}
			chapters = append(chapters, n)
		}
		filter[id] = append(filter[id], chapters...)
	}
	return filter, nil
}

// readFiles builds one request per readable path from base. Paths that
// cannot be read come back as failed results so the rest still ingest.
func readFiles(paths []string, base indexer.Request) ([]indexer.Request, []indexer.Result) {
	reqs := make([]indexer.Request, 0, len(paths))
	var unreadable []indexer.Result
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			unreadable = append(unreadable, indexer.Result{
				Filename: filepath.Base(path),
				Status:   indexer.StatusFailed,
				Error:    fmt.Sprintf("failed to read %s: %v", path, err),
			})
			continue
		}
		req := base
		req.Filename = filepath.Base(path)
		req.Data = data
		reqs = append(reqs, req)
	}
	return reqs, unreadable
}

func newIngestCommand() *cobra.Command {
	var section, materialType, title string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Extract, chunk, embed and store documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if title != "" && len(args) > 1 {
				return fmt.Errorf("--title applies to a single file")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				sec, err := a.sections.GetOrCreateByName(ctx, section)
				if err != nil {
					return err
				}

				reqs, unreadable := readFiles(args, indexer.Request{
					SectionID: sec.ID,
					Type:      storage.MaterialType(materialType),
					Title:     title,
				})

				results, err := a.pipeline.IngestBatch(ctx, reqs)
				if perr := printJSON(append(results, unreadable...)); perr != nil {
					return perr
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&section, "section", "s", "", "Section name (created if missing)")
	cmd.Flags().StringVarP(&materialType, "type", "t", "", "Material type: textbook, syllabus, lecture_notes, practice_questions, custom")
	cmd.Flags().StringVar(&title, "title", "", "Material title (default: file name)")
	_ = cmd.MarkFlagRequired("section")

	return cmd
}

func newIngestDirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-dir <root>",
		Short: "Ingest a folder tree; each top-level folder is a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				lib, err := library.New(args[0], a.sections, nil)
				if err != nil {
					return err
				}
				results, err := a.pipeline.IngestDirectory(ctx, lib)
				if perr := printJSON(results); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

func newSearchCommand() *cobra.Command {
	var sections, materials, chapters []string
	var topK int
	var threshold float32
	var contentType string
	var hints bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank stored chunks by similarity to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseChapterFilter(chapters)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				sectionIDs, err := resolveSections(ctx, a.sections, sections)
				if err != nil {
					return err
				}
				q := rag.Query{
					Text: strings.Join(args, " "),
					Scope: rag.Scope{
						All:         len(sectionIDs) == 0 && len(materials) == 0,
						MaterialIDs: materials,
						SectionIDs:  sectionIDs,
					},
					TopK:          topK,
					ChapterFilter: filter,
					ContentType:   storage.ContentType(contentType),
				}
				if cmd.Flags().Changed("threshold") {
					q.Threshold = &threshold
				}

				run := a.study.Search
				if hints {
					run = a.study.Hints
				}
				results, err := run(ctx, q)
				if err != nil {
					return err
				}
				return printJSON(results)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&sections, "section", "s", nil, "Section ids or names to search")
	cmd.Flags().StringSliceVarP(&materials, "material", "m", nil, "Material ids to search")
	cmd.Flags().StringArrayVar(&chapters, "chapters", nil, "Chapter filter as material_id=1,2 (repeatable)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (default 5, max 50)")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum similarity (0 disables the hint floor)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Only chunks of this content type")
	cmd.Flags().BoolVar(&hints, "hints", false, "Hint mode: few results above the hint similarity floor")

	return cmd
}

func newStructureCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "structure <section>",
		Short: "Report the chapter structure of each material in a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ids, err := resolveSections(ctx, a.sections, args)
				if err != nil {
					return err
				}
				res, err := a.study.SectionStructure(ctx, ids[0])
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
}

func newQuizCommand() *cobra.Command {
	var sections, chapters []string
	var req generator.QuizRequest
	var questionType, difficulty string

	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate a quiz grounded in the materials of some sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseChapterFilter(chapters)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if req.SectionIDs, err = resolveSections(ctx, a.sections, sections); err != nil {
					return err
				}
				req.ChapterFilter = filter
				req.QuestionType = generator.QuestionType(questionType)
				req.Difficulty = generator.Difficulty(difficulty)

				res, err := a.study.GenerateQuiz(ctx, req, progress)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&sections, "section", "s", nil, "Section ids or names")
	cmd.Flags().StringArrayVar(&chapters, "chapters", nil, "Chapter filter as material_id=1,2 (repeatable)")
	cmd.Flags().IntVarP(&req.QuestionCount, "count", "n", 0, "Number of questions (default 10)")
	cmd.Flags().StringVar(&questionType, "type", "", "multiple_choice or true_false")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "easy, medium, hard or mixed")
	cmd.Flags().StringVar(&req.Name, "name", "", "Quiz name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Quiz description")
	_ = cmd.MarkFlagRequired("section")

	return cmd
}

func newFlashcardsCommand() *cobra.Command {
	var sections, chapters []string
	var req generator.FlashcardRequest

	cmd := &cobra.Command{
		Use:   "flashcards",
		Short: "Generate a flashcard set, optionally focused on a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseChapterFilter(chapters)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if req.SectionIDs, err = resolveSections(ctx, a.sections, sections); err != nil {
					return err
				}
				req.ChapterFilter = filter

				res, err := a.study.GenerateFlashcards(ctx, req, progress)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&sections, "section", "s", nil, "Section ids or names")
	cmd.Flags().StringArrayVar(&chapters, "chapters", nil, "Chapter filter as material_id=1,2 (repeatable)")
	cmd.Flags().IntVarP(&req.Count, "count", "n", 0, "Number of cards (default 20)")
	cmd.Flags().StringVar(&req.Topic, "topic", "", "Select source chunks by similarity to this topic")
	cmd.Flags().StringVar(&req.Name, "name", "", "Set name")
	_ = cmd.MarkFlagRequired("section")

	return cmd
}

func newDeriveCommand() *cobra.Command {
	var req generator.DeriveRequest

	cmd := &cobra.Command{
		Use:   "derive <quiz-id>",
		Short: "Turn a stored quiz into a flashcard set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.QuizID = args[0]
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.study.DeriveFlashcards(ctx, req, progress)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Set name (default: quiz name + flashcards)")

	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <material-id>",
		Short: "Delete a material with its chunks and vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.study.DeleteMaterial(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "deleted material %s\n", args[0])
				return nil
			})
		},
	}
}

func newBackfillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill <material-id>",
		Short: "Retry embedding for chunks stored without a vector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.study.BackfillMaterial(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
}
