package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// Study material retrieval and grounded quiz/flashcard generation.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: studyrag API
//   description: |
//     Ingest study documents into a chunked, embedded index, search them, inspect their
//     chapter structure and generate quizzes and flashcards grounded in them.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	rootCmd := &cobra.Command{
		Use:           "studyrag",
		Short:         "Index study materials and generate grounded quizzes and flashcards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newIngestCommand(),
		newIngestDirCommand(),
		newSearchCommand(),
		newStructureCommand(),
		newQuizCommand(),
		newFlashcardsCommand(),
		newDeriveCommand(),
		newDeleteCommand(),
		newBackfillCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
