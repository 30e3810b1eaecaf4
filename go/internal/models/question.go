package models

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty defines the difficulty rating of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TestCase is a single input/expected-output pair used for grading.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Question is an immutable problem spec. Questions are created by an
// external authoring flow and are read-only to the engine.
type Question struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	TestCases   []TestCase `json:"test_cases"`
	StarterCode string     `json:"starter_code"`
	CreatedAt   time.Time  `json:"created_at"`
}
