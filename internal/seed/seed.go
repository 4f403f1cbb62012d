// Package seed provides the bundled flashcard and question catalogs.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/example/passdrill/internal/config"
	"github.com/example/passdrill/internal/excel"
	"github.com/example/passdrill/internal/logger"
	"github.com/example/passdrill/pkg/models"
)

//go:embed flashcards.json
var flashcardsJSON []byte

//go:embed questions.json
var questionsJSON []byte

// Flashcards returns the bundled flashcard catalog.
func Flashcards() ([]models.Flashcard, error) {
	var cards []models.Flashcard
	if err := json.Unmarshal(flashcardsJSON, &cards); err != nil {
		return nil, fmt.Errorf("failed to decode bundled flashcards: %w", err)
	}
	return cards, nil
}

// Questions returns the bundled question catalog.
func Questions() ([]models.Question, error) {
	var questions []models.Question
	if err := json.Unmarshal(questionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode bundled questions: %w", err)
	}
	return questions, nil
}

// Load returns the catalogs, reading a spreadsheet instead of the bundled data where cfg names one.
func Load(cfg config.SeedConfig, log *logger.Logger) ([]models.Flashcard, []models.Question, error) {
	var (
		cards     []models.Flashcard
		questions []models.Question
		err       error
	)

	if cfg.FlashcardsFile != "" {
		var result *excel.ImportResult
		cards, result, err = excel.ImportFlashcards(excel.DefaultImportConfig(cfg.FlashcardsFile))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to import flashcards: %w", err)
		}
		logImport(log, "flashcards", cfg.FlashcardsFile, result)
	} else if cards, err = Flashcards(); err != nil {
		return nil, nil, err
	}

	if cfg.QuestionsFile != "" {
		var result *excel.ImportResult
		questions, result, err = excel.ImportQuestions(excel.DefaultImportConfig(cfg.QuestionsFile))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to import questions: %w", err)
		}
		logImport(log, "questions", cfg.QuestionsFile, result)
	} else if questions, err = Questions(); err != nil {
		return nil, nil, err
	}

	return cards, questions, nil
}

func logImport(log *logger.Logger, what, path string, result *excel.ImportResult) {
	log.Info("catalog imported", "catalog", what, "file", path, "imported", result.Imported, "skipped", result.Skipped)
	for _, e := range result.Errors {
		log.Warn("catalog row skipped", "catalog", what, "error", e)
	}
}
