package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/passdrill/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath  string // Path to the Excel or CSV file
	SheetName string // Name of the sheet to import, the first sheet when empty
	StartRow  int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration for path
func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath: path,
		StartRow: 2, // By default, start from the second row (skip header)
	}
}

// Flashcard sheet layout: id, term, definition, chapter
const (
	cardIDColumn         = "A"
	cardTermColumn       = "B"
	cardDefinitionColumn = "C"
	cardChapterColumn    = "D"
)

// Question sheet layout: id, chapter, text, correct choice (1-based), explanation, choices...
const (
	questionIDColumn          = "A"
	questionChapterColumn     = "B"
	questionTextColumn        = "C"
	questionAnswerColumn      = "D"
	questionExplanationColumn = "E"
	questionFirstChoiceColumn = "F"
)

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string
}

// ImportFlashcards reads flashcards from an Excel or CSV file.
// A row holding only its first cell starts a chapter for the rows below it that leave the chapter column empty.
func ImportFlashcards(config ImportConfig) ([]models.Flashcard, *ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	seen := make(map[int]bool)
	var cards []models.Flashcard
	currentChapter := ""

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow || isBlank(row) {
			continue
		}
		if isChapterHeader(row) {
			currentChapter = cell(row, "A")
			continue
		}

		result.TotalProcessed++
		card, err := parseFlashcardRow(row, currentChapter)
		if err == nil && seen[card.ID] {
			err = fmt.Errorf("duplicate id %d", card.ID)
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		seen[card.ID] = true
		cards = append(cards, card)
		result.Imported++
	}

	return cards, result, nil
}

// ImportQuestions reads quiz questions from an Excel or CSV file
func ImportQuestions(config ImportConfig) ([]models.Question, *ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	seen := make(map[int]bool)
	var questions []models.Question

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow || isBlank(row) {
			continue
		}

		result.TotalProcessed++
		q, err := parseQuestionRow(row)
		if err == nil && seen[q.ID] {
			err = fmt.Errorf("duplicate id %d", q.ID)
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		seen[q.ID] = true
		questions = append(questions, q)
		result.Imported++
	}

	return questions, result, nil
}

func parseFlashcardRow(row []string, currentChapter string) (models.Flashcard, error) {
	id, err := strconv.Atoi(cell(row, cardIDColumn))
	if err != nil || id <= 0 {
		return models.Flashcard{}, fmt.Errorf("invalid id %q", cell(row, cardIDColumn))
	}

	card := models.Flashcard{
		ID:         id,
		Term:       cell(row, cardTermColumn),
		Definition: cell(row, cardDefinitionColumn),
		Chapter:    cell(row, cardChapterColumn),
	}
	if card.Chapter == "" {
		card.Chapter = currentChapter
	}

	if card.Term == "" {
		return models.Flashcard{}, fmt.Errorf("term cannot be empty")
	}
	if card.Definition == "" {
		return models.Flashcard{}, fmt.Errorf("definition cannot be empty")
	}
	if card.Chapter == "" {
		return models.Flashcard{}, fmt.Errorf("chapter cannot be empty")
	}
	return card, nil
}

func parseQuestionRow(row []string) (models.Question, error) {
	id, err := strconv.Atoi(cell(row, questionIDColumn))
	if err != nil || id <= 0 {
		return models.Question{}, fmt.Errorf("invalid id %q", cell(row, questionIDColumn))
	}

	q := models.Question{
		ID:          id,
		Chapter:     cell(row, questionChapterColumn),
		Text:        cell(row, questionTextColumn),
		Explanation: cell(row, questionExplanationColumn),
	}
	for i := columnToIndex(questionFirstChoiceColumn); i < len(row); i++ {
		if choice := strings.TrimSpace(row[i]); choice != "" {
			q.Choices = append(q.Choices, choice)
		}
	}

	if q.Chapter == "" {
		return models.Question{}, fmt.Errorf("chapter cannot be empty")
	}
	if q.Text == "" {
		return models.Question{}, fmt.Errorf("question text cannot be empty")
	}
	if len(q.Choices) < 2 {
		return models.Question{}, fmt.Errorf("need at least 2 choices, got %d", len(q.Choices))
	}

	answer, err := strconv.Atoi(cell(row, questionAnswerColumn))
	if err != nil || answer < 1 || answer > len(q.Choices) {
		return models.Question{}, fmt.Errorf("invalid answer %q", cell(row, questionAnswerColumn))
	}
	q.AnswerIndex = answer - 1
	return q, nil
}

// readRows returns every row of the file. The extension decides between CSV and Excel.
func readRows(config ImportConfig) ([][]string, error) {
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		return readCSV(config.FilePath)
	}
	return readExcel(config)
}

func readExcel(config ImportConfig) ([][]string, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// isChapterHeader matches rows like "第1章：AI,,," that only carry a chapter name
func isChapterHeader(row []string) bool {
	if cell(row, "A") == "" {
		return false
	}
	if _, err := strconv.Atoi(cell(row, "A")); err == nil {
		return false
	}
	for i := 1; i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return false
		}
	}
	return true
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cell returns the trimmed value of column, or "" when the row is shorter
func cell(row []string, column string) string {
	if idx := columnToIndex(column); idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
