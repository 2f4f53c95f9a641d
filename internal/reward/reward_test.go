package reward

import (
	"testing"

	"github.com/skillpath/backend/internal/rates"
)

func answers(difficulty string, correct, total int) []AnswerInput {
	out := make([]AnswerInput, total)
	for i := range out {
		out[i] = AnswerInput{
			CategoryID:    "grammar",
			SubcategoryID: "particles",
			Difficulty:    difficulty,
			Correct:       i < correct,
		}
	}
	return out
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		correct, total int
		want           float64
	}{
		{0, 0, 0},
		{3, 3, 100},
		{4, 5, 80},
		{2, 3, 66.67},
		{1, 3, 33.33},
		{799, 1000, 79.9},
	}

	for _, tt := range tests {
		if got := Accuracy(tt.correct, tt.total); got != tt.want {
			t.Errorf("Accuracy(%d, %d) = %v, want %v", tt.correct, tt.total, got, tt.want)
		}
	}
}

func TestCalculateQuizBasicTwoOfThree(t *testing.T) {
	rt := rates.Default()
	r := CalculateQuiz(answers("basic", 2, 3), rt)

	if r.BaseXP != 20 {
		t.Errorf("BaseXP = %d, want 20", r.BaseXP)
	}
	if r.BonusXP != 0 {
		t.Errorf("BonusXP = %d, want 0 (66.67%% is below the 80%% tier)", r.BonusXP)
	}
	if r.TotalXP != 20 {
		t.Errorf("TotalXP = %d, want 20", r.TotalXP)
	}
	wantSKP := 2*rt.SKPCorrect + 1*rt.SKPIncorrect
	if r.SKP != wantSKP {
		t.Errorf("SKP = %d, want %d", r.SKP, wantSKP)
	}
	if r.WisdomCards != 0 {
		t.Errorf("WisdomCards = %d, want 0", r.WisdomCards)
	}
}

func TestCalculateQuizPerfect(t *testing.T) {
	rt := rates.Default()
	r := CalculateQuiz(answers("basic", 3, 3), rt)

	if r.BaseXP != 30 {
		t.Errorf("BaseXP = %d, want 30", r.BaseXP)
	}
	if r.BonusXP != rt.Accuracy100Bonus {
		t.Errorf("BonusXP = %d, want accuracy_100 bonus %d", r.BonusXP, rt.Accuracy100Bonus)
	}
	wantSKP := 3*rt.SKPCorrect + rt.SKPPerfectBonus
	if r.SKP != wantSKP {
		t.Errorf("SKP = %d, want %d (includes perfect bonus)", r.SKP, wantSKP)
	}
	if r.WisdomCards != 1 {
		t.Errorf("WisdomCards = %d, want 1", r.WisdomCards)
	}
}

func TestCalculateQuizAccuracyTierBoundaries(t *testing.T) {
	rt := rates.Default()

	// Exactly 100% with a single question: accuracy_100 bonus and a wisdom
	// card, but no perfect SKP bonus (needs >= 3 questions).
	r := CalculateQuiz(answers("basic", 1, 1), rt)
	if r.BonusXP != rt.Accuracy100Bonus {
		t.Errorf("1/1 BonusXP = %d, want %d", r.BonusXP, rt.Accuracy100Bonus)
	}
	if r.WisdomCards != 1 {
		t.Errorf("1/1 WisdomCards = %d, want 1", r.WisdomCards)
	}
	if r.SKP != rt.SKPCorrect {
		t.Errorf("1/1 SKP = %d, want %d (no perfect bonus below 3 questions)", r.SKP, rt.SKPCorrect)
	}

	// Exactly 80% triggers accuracy_80, not accuracy_100.
	r = CalculateQuiz(answers("basic", 4, 5), rt)
	if r.Accuracy != 80.0 {
		t.Errorf("4/5 Accuracy = %v, want 80.0", r.Accuracy)
	}
	if r.BonusXP != rt.Accuracy80Bonus {
		t.Errorf("4/5 BonusXP = %d, want %d", r.BonusXP, rt.Accuracy80Bonus)
	}

	// 79.9% triggers neither.
	r = CalculateQuiz(answers("basic", 799, 1000), rt)
	if r.Accuracy != 79.9 {
		t.Errorf("799/1000 Accuracy = %v, want 79.9", r.Accuracy)
	}
	if r.BonusXP != 0 {
		t.Errorf("799/1000 BonusXP = %d, want 0", r.BonusXP)
	}
}

func TestCalculateQuizPerAnswerXPSumsToBase(t *testing.T) {
	rt := rates.Default()
	in := []AnswerInput{
		{CategoryID: "a", SubcategoryID: "a1", Difficulty: "basic", Correct: true},
		{CategoryID: "a", SubcategoryID: "a2", Difficulty: "advanced", Correct: true},
		{CategoryID: "b", SubcategoryID: "b1", Difficulty: "intermediate", Correct: false},
	}
	r := CalculateQuiz(in, rt)

	sum := 0
	for _, xp := range r.PerAnswerXP {
		sum += xp
	}
	if sum != r.BaseXP {
		t.Errorf("sum(PerAnswerXP) = %d, want BaseXP %d", sum, r.BaseXP)
	}
	if r.PerAnswerXP[2] != 0 {
		t.Errorf("incorrect answer earned %d XP, want 0", r.PerAnswerXP[2])
	}
}

func TestCalculateQuizClampsUnknownDifficulty(t *testing.T) {
	rt := rates.Default()
	in := []AnswerInput{
		{CategoryID: "a", SubcategoryID: "a1", Difficulty: "legendary", Correct: true},
		{CategoryID: "a", SubcategoryID: "a1", Difficulty: "legendary", Correct: true},
	}
	r := CalculateQuiz(in, rt)

	if r.BaseXP != 2*rt.QuizXP[rates.DifficultyBasic] {
		t.Errorf("BaseXP = %d, want clamped basic rate", r.BaseXP)
	}
	if len(r.ClampedDifficulties) != 1 || r.ClampedDifficulties[0] != "legendary" {
		t.Errorf("ClampedDifficulties = %v, want [legendary] deduplicated", r.ClampedDifficulties)
	}
}

func TestCalculateCourse(t *testing.T) {
	rt := rates.Default()

	// First completion, confirmation correct, intermediate difficulty.
	r := CalculateCourse("intermediate", true, true, rt)
	if r.XP != rt.CourseXP["intermediate"] {
		t.Errorf("XP = %d, want %d", r.XP, rt.CourseXP["intermediate"])
	}
	if r.SKP != rt.SKPCourseCorrect {
		t.Errorf("SKP = %d, want %d", r.SKP, rt.SKPCourseCorrect)
	}

	// First completion, confirmation wrong: no XP, lower SKP.
	r = CalculateCourse("intermediate", true, false, rt)
	if r.XP != 0 {
		t.Errorf("XP = %d, want 0 when confirmation quiz is wrong", r.XP)
	}
	if r.SKP != rt.SKPCourseIncorrect {
		t.Errorf("SKP = %d, want %d", r.SKP, rt.SKPCourseIncorrect)
	}

	// Review: nothing.
	r = CalculateCourse("intermediate", false, true, rt)
	if r.XP != 0 || r.SKP != 0 {
		t.Errorf("review reward = %+v, want zero", r)
	}
}

func TestStreakBonusDue(t *testing.T) {
	rt := rates.Default() // daily 5, ten-day 50

	tests := []struct {
		days int
		want int
	}{
		{0, 0},
		{-3, 0},
		{1, 5},
		{9, 45},
		{10, 100},
		{12, 110},
		{20, 200},
	}

	for _, tt := range tests {
		if got := StreakBonusDue(tt.days, rt); got != tt.want {
			t.Errorf("StreakBonusDue(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}

// Awards are paid as due-minus-paid, so replaying the same streak day must
// owe nothing, and each new day owes only its increment.
func TestStreakBonusDueMinusPaid(t *testing.T) {
	rt := rates.Default()

	paid := 0
	wantIncrements := map[int]int{9: 5, 10: 55, 11: 5}
	for days := 1; days <= 11; days++ {
		owed := StreakBonusDue(days, rt) - paid
		if want, ok := wantIncrements[days]; ok && owed != want {
			t.Errorf("day %d increment = %d, want %d", days, owed, want)
		}
		paid += owed

		// Replay of the same trigger pays nothing more.
		if again := StreakBonusDue(days, rt) - paid; again != 0 {
			t.Errorf("day %d replay owes %d, want 0", days, again)
		}
	}
}
