package progression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/backend/internal/models"
)

func validQuizRequest() models.SubmitQuizRequest {
	return models.SubmitQuizRequest{
		QuestionCount: 2,
		Answers: []models.QuizAnswerInput{
			{CategoryID: "grammar", SubcategoryID: "particles", Difficulty: "basic", Correct: true},
			{CategoryID: "grammar", SubcategoryID: "particles", Difficulty: "basic", Correct: false},
		},
	}
}

func TestValidateQuizRequest(t *testing.T) {
	require.NoError(t, validateQuizRequest(validQuizRequest()))

	t.Run("cardinality mismatch", func(t *testing.T) {
		req := validQuizRequest()
		req.QuestionCount = 3
		err := validateQuizRequest(req)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "answers", ve.Field)
	})

	t.Run("zero questions rejected", func(t *testing.T) {
		req := models.SubmitQuizRequest{QuestionCount: 0}
		err := validateQuizRequest(req)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("answer missing category", func(t *testing.T) {
		req := validQuizRequest()
		req.Answers[1].CategoryID = ""
		var ve *ValidationError
		require.ErrorAs(t, validateQuizRequest(req), &ve)
	})

	t.Run("answer missing subcategory", func(t *testing.T) {
		req := validQuizRequest()
		req.Answers[0].SubcategoryID = ""
		var ve *ValidationError
		require.ErrorAs(t, validateQuizRequest(req), &ve)
	})

	t.Run("answer missing difficulty", func(t *testing.T) {
		req := validQuizRequest()
		req.Answers[0].Difficulty = ""
		var ve *ValidationError
		require.ErrorAs(t, validateQuizRequest(req), &ve)
	})
}

func TestValidateCourseRequest(t *testing.T) {
	valid := models.SubmitCourseRequest{
		Unit: models.UnitKey{CourseID: "jlpt-n5", GenreID: "grammar", ThemeID: "particles", SessionNumber: 3},
	}
	require.NoError(t, validateCourseRequest(valid))

	t.Run("missing unit fields", func(t *testing.T) {
		req := valid
		req.Unit.ThemeID = ""
		var ve *ValidationError
		require.ErrorAs(t, validateCourseRequest(req), &ve)
	})

	t.Run("non-positive session number", func(t *testing.T) {
		req := valid
		req.Unit.SessionNumber = 0
		var ve *ValidationError
		require.ErrorAs(t, validateCourseRequest(req), &ve)
	})

	t.Run("negative duration", func(t *testing.T) {
		req := valid
		req.DurationSeconds = -1
		var ve *ValidationError
		require.ErrorAs(t, validateCourseRequest(req), &ve)
	})
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")
	pe := &PersistenceError{Op: "record quiz session", Err: cause}
	assert.ErrorIs(t, pe, cause)
	assert.Contains(t, pe.Error(), "record quiz session")

	rc := &RaceConflict{UserID: 7, Unit: "c/g/t/1"}
	assert.Contains(t, rc.Error(), "c/g/t/1")

	pf := &PartialAggregateFailure{Scopes: []string{"category:grammar", "daily"}}
	assert.Contains(t, pf.Error(), "category:grammar")
}

func TestUnitTag(t *testing.T) {
	u := models.UnitKey{CourseID: "jlpt-n5", GenreID: "grammar", ThemeID: "particles", SessionNumber: 3}
	assert.Equal(t, "jlpt-n5/grammar/particles/3", unitTag(u))
}
