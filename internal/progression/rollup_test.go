package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/backend/internal/models"
)

func TestGroupAnswerDeltasSpanningScopes(t *testing.T) {
	// Mixed difficulties, two categories, three subcategories, one miss.
	answers := []models.AnswerRecord{
		{CategoryID: "math", SubcategoryID: "algebra", Difficulty: "basic", Correct: true, EarnedXP: 10},
		{CategoryID: "math", SubcategoryID: "geometry", Difficulty: "advanced", Correct: true, EarnedXP: 30},
		{CategoryID: "logic", SubcategoryID: "deduction", Difficulty: "intermediate", Correct: false, EarnedXP: 0},
		{CategoryID: "math", SubcategoryID: "algebra", Difficulty: "intermediate", Correct: true, EarnedXP: 20},
	}

	byCategory, bySubcategory := groupAnswerDeltas(answers)

	require.Len(t, byCategory, 2)
	require.Len(t, bySubcategory, 3)

	math := byCategory["math"]
	assert.Equal(t, int64(60), math.xp)
	assert.Equal(t, 3, math.answered)
	assert.Equal(t, 3, math.correct)

	logic := byCategory["logic"]
	assert.Zero(t, logic.xp)
	assert.Equal(t, 1, logic.answered)
	assert.Zero(t, logic.correct)

	algebra := bySubcategory["algebra"]
	assert.Equal(t, int64(30), algebra.xp)
	assert.Equal(t, 2, algebra.answered)
	assert.Equal(t, 2, algebra.correct)
	assert.Equal(t, "math", algebra.category)

	geometry := bySubcategory["geometry"]
	assert.Equal(t, int64(30), geometry.xp)
	assert.Equal(t, 1, geometry.answered)

	deduction := bySubcategory["deduction"]
	assert.Zero(t, deduction.xp)
	assert.Equal(t, "logic", deduction.category)

	// Each grouping partitions the session's base XP and answer count.
	var catXP, subXP int64
	var catAnswered, subAnswered int
	for _, d := range byCategory {
		catXP += d.xp
		catAnswered += d.answered
	}
	for _, d := range bySubcategory {
		subXP += d.xp
		subAnswered += d.answered
	}
	assert.Equal(t, int64(60), catXP)
	assert.Equal(t, catXP, subXP)
	assert.Equal(t, len(answers), catAnswered)
	assert.Equal(t, len(answers), subAnswered)
}

func TestGroupAnswerDeltasEmpty(t *testing.T) {
	byCategory, bySubcategory := groupAnswerDeltas(nil)
	assert.Empty(t, byCategory)
	assert.Empty(t, bySubcategory)
}

// End to end through the service: a perfect session spanning two categories
// credits each scope only its own answers' XP, with the accuracy bonus going
// to the global row alone.
func TestSubmitQuizSessionScopedRollups(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	resp, err := svc.SubmitQuizSession(7, models.SubmitQuizRequest{
		QuestionCount: 3,
		Answers: []models.QuizAnswerInput{
			{CategoryID: "math", SubcategoryID: "algebra", Difficulty: "basic", Correct: true},
			{CategoryID: "math", SubcategoryID: "algebra", Difficulty: "basic", Correct: true},
			{CategoryID: "logic", SubcategoryID: "deduction", Difficulty: "intermediate", Correct: true},
		},
	})
	require.NoError(t, err)

	// Base 10+10+20, perfect bonus 50; SKP 3*2 + perfect 5.
	assert.Equal(t, 40, resp.BaseXP)
	assert.Equal(t, 50, resp.BonusXP)
	assert.Equal(t, 90, resp.TotalXP)
	assert.Equal(t, 11, resp.SKPEarned)

	assert.Equal(t, int64(90), fs.stats.TotalXP)
	assert.Equal(t, int64(40), fs.stats.QuizXP)
	assert.Equal(t, int64(50), fs.stats.BonusXP)
	assert.Equal(t, int64(11), fs.stats.TotalSKP)

	require.Contains(t, fs.categories, "math")
	require.Contains(t, fs.categories, "logic")
	assert.Equal(t, int64(20), fs.categories["math"].TotalXP)
	assert.Equal(t, int64(20), fs.categories["logic"].TotalXP)
	assert.Equal(t, int64(20), fs.subcategories["algebra"].TotalXP)
	assert.Equal(t, int64(20), fs.subcategories["deduction"].TotalXP)

	require.Len(t, fs.ledger, 1)
	assert.Equal(t, 11, fs.ledger[0].amount)
}
