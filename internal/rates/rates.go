package rates

import (
	"encoding/json"
	"fmt"
	"os"
)

// Known difficulty tiers, lowest first.
const (
	DifficultyBasic        = "basic"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Table holds every reward constant used by the progression engine. Loaded
// once at startup and treated as read-only thereafter.
type Table struct {
	Version int `json:"version"`

	// XP per correct quiz answer, by difficulty.
	QuizXP map[string]int `json:"quiz_xp"`

	// Session-level accuracy bonuses. Accuracy100 applies at exactly 100%,
	// Accuracy80 at >= 80% (and below 100%).
	Accuracy100Bonus int `json:"accuracy_100_bonus"`
	Accuracy80Bonus  int `json:"accuracy_80_bonus"`

	// Flat XP for a first course-session completion, by course difficulty.
	CourseXP map[string]int `json:"course_xp"`

	// Flat XP for completing every unit of a course.
	CourseCompletionXP int `json:"course_completion_xp"`

	// SKP rates.
	SKPCorrect         int `json:"skp_correct"`
	SKPIncorrect       int `json:"skp_incorrect"`
	SKPPerfectBonus    int `json:"skp_perfect_bonus"`
	SKPCourseCorrect   int `json:"skp_course_correct"`
	SKPCourseIncorrect int `json:"skp_course_incorrect"`

	// Streak bonus rates: due = days*Daily + (days/10)*TenDay.
	StreakDailySKP  int `json:"streak_daily_skp"`
	StreakTenDaySKP int `json:"streak_ten_day_skp"`

	// A perfect quiz session additionally awards one wisdom card.
	WisdomCardsPerPerfect int `json:"wisdom_cards_per_perfect"`
}

// Default returns the built-in rate table.
func Default() *Table {
	return &Table{
		Version: 1,
		QuizXP: map[string]int{
			DifficultyBasic:        10,
			DifficultyIntermediate: 20,
			DifficultyAdvanced:     30,
		},
		Accuracy100Bonus: 50,
		Accuracy80Bonus:  20,
		CourseXP: map[string]int{
			DifficultyBasic:        50,
			DifficultyIntermediate: 100,
			DifficultyAdvanced:     150,
		},
		CourseCompletionXP:    300,
		SKPCorrect:            2,
		SKPIncorrect:          1,
		SKPPerfectBonus:       5,
		SKPCourseCorrect:      10,
		SKPCourseIncorrect:    3,
		StreakDailySKP:        5,
		StreakTenDaySKP:       50,
		WisdomCardsPerPerfect: 1,
	}
}

// Load returns the default table overlaid with values from the JSON file at
// path. An empty path returns the defaults unchanged.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse rate table %s: %w", path, err)
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("rate table %s: %w", path, err)
	}
	return t, nil
}

func (t *Table) validate() error {
	for _, d := range []string{DifficultyBasic, DifficultyIntermediate, DifficultyAdvanced} {
		if _, ok := t.QuizXP[d]; !ok {
			return fmt.Errorf("quiz_xp missing difficulty %q", d)
		}
		if _, ok := t.CourseXP[d]; !ok {
			return fmt.Errorf("course_xp missing difficulty %q", d)
		}
	}
	return nil
}

// Normalize maps an incoming difficulty string to a known tier. Unknown
// values clamp to the lowest tier rather than failing, so bad content data
// never blocks a completion; clamped reports whether that happened.
func Normalize(difficulty string) (tier string, clamped bool) {
	switch difficulty {
	case DifficultyBasic, DifficultyIntermediate, DifficultyAdvanced:
		return difficulty, false
	default:
		return DifficultyBasic, true
	}
}

// QuizXPFor returns XP per correct answer at the given difficulty.
func (t *Table) QuizXPFor(difficulty string) int {
	tier, _ := Normalize(difficulty)
	return t.QuizXP[tier]
}

// CourseXPFor returns the flat first-completion XP for a course session.
func (t *Table) CourseXPFor(difficulty string) int {
	tier, _ := Normalize(difficulty)
	return t.CourseXP[tier]
}
