// Package reward computes XP and SKP awards from session data and the rate
// table. Pure functions, no I/O — persistence and rollups live in the
// progression package.
package reward

import (
	"math"

	"github.com/skillpath/backend/internal/rates"
)

// AnswerInput is the per-question slice of a quiz submission the calculator
// needs. Correctness is already graded upstream.
type AnswerInput struct {
	CategoryID    string
	SubcategoryID string
	Difficulty    string
	Correct       bool
}

// QuizReward is the full reward breakdown for one quiz session.
type QuizReward struct {
	BaseXP      int
	BonusXP     int
	TotalXP     int
	Accuracy    float64
	SKP         int
	WisdomCards int

	// PerAnswerXP parallels the input answers; the sum equals BaseXP.
	PerAnswerXP []int

	// ClampedDifficulties lists unknown difficulty values that fell back to
	// the lowest tier, deduplicated, for anomaly reporting.
	ClampedDifficulties []string
}

// Accuracy returns correct/total as a percentage rounded to 2 decimals.
// A zero total yields 0; zero-question sessions are rejected upstream and
// never reach the calculator.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*100*100) / 100
}

// CalculateQuiz computes the reward for a quiz session.
//
// XP: rate per correct answer by difficulty, 0 for incorrect. Bonus XP at
// exactly 100% accuracy, or at >= 80%. SKP: per-answer rates plus a flat
// perfect bonus when the session has at least 3 questions. A perfect session
// also awards wisdom cards.
func CalculateQuiz(answers []AnswerInput, rt *rates.Table) QuizReward {
	r := QuizReward{PerAnswerXP: make([]int, len(answers))}

	correct := 0
	seenClamped := map[string]bool{}
	for i, a := range answers {
		if _, clamped := rates.Normalize(a.Difficulty); clamped && !seenClamped[a.Difficulty] {
			seenClamped[a.Difficulty] = true
			r.ClampedDifficulties = append(r.ClampedDifficulties, a.Difficulty)
		}

		if a.Correct {
			correct++
			xp := rt.QuizXPFor(a.Difficulty)
			r.PerAnswerXP[i] = xp
			r.BaseXP += xp
			r.SKP += rt.SKPCorrect
		} else {
			r.SKP += rt.SKPIncorrect
		}
	}

	total := len(answers)
	r.Accuracy = Accuracy(correct, total)
	perfect := total > 0 && correct == total

	switch {
	case perfect:
		r.BonusXP = rt.Accuracy100Bonus
	case r.Accuracy >= 80.0:
		r.BonusXP = rt.Accuracy80Bonus
	}

	if perfect {
		r.WisdomCards = rt.WisdomCardsPerPerfect
		if total >= 3 {
			r.SKP += rt.SKPPerfectBonus
		}
	}

	r.TotalXP = r.BaseXP + r.BonusXP
	return r
}

// CourseReward is the reward for one course-session completion attempt.
type CourseReward struct {
	XP  int
	SKP int
}

// CalculateCourse computes the reward for a course session. XP is awarded
// only on a first completion with a correct confirmation quiz; SKP is awarded
// on first completion regardless of the confirmation result, at the lower
// rate when incorrect. Reviews earn nothing.
func CalculateCourse(difficulty string, firstCompletion, confirmationCorrect bool, rt *rates.Table) CourseReward {
	if !firstCompletion {
		return CourseReward{}
	}

	var r CourseReward
	if confirmationCorrect {
		r.XP = rt.CourseXPFor(difficulty)
		r.SKP = rt.SKPCourseCorrect
	} else {
		r.SKP = rt.SKPCourseIncorrect
	}
	return r
}

// StreakBonusDue returns the cumulative SKP owed for a streak of the given
// length: a per-day rate plus a larger bonus for every 10 full days. The
// caller subtracts what was already paid, which keeps repeated invocations
// idempotent.
func StreakBonusDue(streakDays int, rt *rates.Table) int {
	if streakDays <= 0 {
		return 0
	}
	return streakDays*rt.StreakDailySKP + (streakDays/10)*rt.StreakTenDaySKP
}
