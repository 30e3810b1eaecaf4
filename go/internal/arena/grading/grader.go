package grading

import (
	"context"

	"github.com/dmehra21/codebid/go/internal/models"
)

// Grader scores submitted code against a question's test cases. It is
// an external capability: implementations must be side-effect-free on
// failure, and a failure is treated by the gateway as a zero score.
type Grader interface {
	Grade(ctx context.Context, code string, testCases []models.TestCase) (passed, total int, err error)
}

// UnscoredGrader is the default stub used until a real sandbox is
// wired in. Every submission scores zero passes out of the full test
// count, which matches auto-submitting untouched allotments.
type UnscoredGrader struct{}

func (UnscoredGrader) Grade(ctx context.Context, code string, testCases []models.TestCase) (int, int, error) {
	return 0, len(testCases), nil
}

// GraderFunc adapts a function to the Grader interface.
type GraderFunc func(ctx context.Context, code string, testCases []models.TestCase) (int, int, error)

func (f GraderFunc) Grade(ctx context.Context, code string, testCases []models.TestCase) (int, int, error) {
	return f(ctx, code, testCases)
}
