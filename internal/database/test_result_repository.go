package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/passdrill/pkg/models"
)

// TestResultRepository archives finished tests for reporting
type TestResultRepository struct {
	db *sqlx.DB
}

// NewTestResultRepository creates a new repository instance
func NewTestResultRepository(db *sqlx.DB) *TestResultRepository {
	return &TestResultRepository{db: db}
}

type testResultRow struct {
	TestDate      string `db:"test_date"`
	TestType      string `db:"test_type"`
	Score         int    `db:"score"`
	AnsweredCount int    `db:"answered_count"`
	ChapterScores string `db:"chapter_scores"`
}

// Archive inserts a test result
func (r *TestResultRepository) Archive(ctx context.Context, result models.TestResult) error {
	scores, err := json.Marshal(result.ChapterScores)
	if err != nil {
		return fmt.Errorf("failed to encode chapter scores: %w", err)
	}
	query := `
		INSERT INTO test_results (test_date, test_type, score, answered_count, chapter_scores)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query),
		result.Date,
		string(result.Type),
		result.Score,
		result.AnsweredCount,
		string(scores),
	)
	if err != nil {
		return fmt.Errorf("failed to archive test result: %w", err)
	}
	return nil
}

// Recent returns up to limit results, newest first
func (r *TestResultRepository) Recent(ctx context.Context, limit int) ([]models.TestResult, error) {
	var rows []testResultRow
	query := `
		SELECT test_date, test_type, score, answered_count, chapter_scores
		FROM test_results
		ORDER BY id DESC
		LIMIT ?
	`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), limit); err != nil {
		return nil, fmt.Errorf("failed to get test results: %w", err)
	}

	results := make([]models.TestResult, 0, len(rows))
	for _, row := range rows {
		result := models.TestResult{
			Date:          row.TestDate,
			Type:          models.TestKind(row.TestType),
			Score:         row.Score,
			AnsweredCount: row.AnsweredCount,
		}
		if err := json.Unmarshal([]byte(row.ChapterScores), &result.ChapterScores); err != nil {
			return nil, fmt.Errorf("failed to decode chapter scores: %w", err)
		}
		results = append(results, result)
	}
	return results, nil
}

// CountByType returns how many tests of each type were archived
func (r *TestResultRepository) CountByType(ctx context.Context) (map[models.TestKind]int, error) {
	var rows []struct {
		TestType string `db:"test_type"`
		Count    int    `db:"count"`
	}
	query := "SELECT test_type, COUNT(*) AS count FROM test_results GROUP BY test_type"
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count test results: %w", err)
	}
	counts := make(map[models.TestKind]int, len(rows))
	for _, row := range rows {
		counts[models.TestKind(row.TestType)] = row.Count
	}
	return counts, nil
}
