package models

import "time"

// ── Session Kinds & Statuses ──────────────────────────────

const (
	SessionKindQuiz   = "quiz"
	SessionKindCourse = "course"
)

const (
	SessionStatusRecorded  = "recorded"
	SessionStatusFinalized = "finalized"
	SessionStatusReview    = "review"
)

// ── Learning Unit ─────────────────────────────────────────

// UnitKey identifies the finest-grained completable item in the
// course hierarchy (course → genre → theme → session).
type UnitKey struct {
	CourseID      string `json:"course_id"`
	GenreID       string `json:"genre_id"`
	ThemeID       string `json:"theme_id"`
	SessionNumber int    `json:"session_number"`
}

// ── Event Log Entities ────────────────────────────────────

// SessionRecord is one row of the append-only learning event log. Immutable
// after creation except for a single finalization update.
type SessionRecord struct {
	ID                int64     `json:"-"`
	PublicID          string    `json:"session_id"`
	UserID            int64     `json:"user_id"`
	Kind              string    `json:"kind"`
	CategoryID        string    `json:"category_id,omitempty"`
	SubcategoryID     string    `json:"subcategory_id,omitempty"`
	Difficulty        string    `json:"difficulty"`
	TotalQuestions    int       `json:"total_questions"`
	CorrectAnswers    int       `json:"correct_answers"`
	Accuracy          float64   `json:"accuracy"`
	DurationSeconds   int       `json:"duration_seconds"`
	EarnedXP          int       `json:"earned_xp"`
	Status            string    `json:"status"`
	Unit              *UnitKey  `json:"unit,omitempty"`
	IsFirstCompletion bool      `json:"is_first_completion"`
	CreatedAt         time.Time `json:"created_at"`
}

// AnswerRecord is one row per question answered within a quiz session.
type AnswerRecord struct {
	ID            int64     `json:"id"`
	SessionID     int64     `json:"session_id"`
	UserID        int64     `json:"user_id"`
	CategoryID    string    `json:"category_id"`
	SubcategoryID string    `json:"subcategory_id"`
	Difficulty    string    `json:"difficulty"`
	Correct       bool      `json:"correct"`
	EarnedXP      int       `json:"earned_xp"`
	CreatedAt     time.Time `json:"created_at"`
}

// SKPLedgerEntry is one row of the append-only SKP transaction log.
type SKPLedgerEntry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Direction   string    `json:"direction"`
	Amount      int       `json:"amount"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	LedgerEarned = "earned"
	LedgerSpent  = "spent"
)

// ── Rollup Entities ───────────────────────────────────────

// UserStats is the mutable global rollup row for one user.
type UserStats struct {
	UserID            int64     `json:"user_id"`
	TotalXP           int64     `json:"total_xp"`
	QuizXP            int64     `json:"quiz_xp"`
	CourseXP          int64     `json:"course_xp"`
	BonusXP           int64     `json:"bonus_xp"`
	QuizSessions      int       `json:"quiz_sessions"`
	CourseSessions    int       `json:"course_sessions"`
	QuestionsAnswered int       `json:"questions_answered"`
	QuestionsCorrect  int       `json:"questions_correct"`
	Accuracy          float64   `json:"accuracy"`
	QuizSKP           int64     `json:"quiz_skp"`
	CourseSKP         int64     `json:"course_skp"`
	StreakSKP         int64     `json:"streak_skp"`
	TotalSKP          int64     `json:"total_skp"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ScopeStats is a per-category or per-subcategory rollup row.
type ScopeStats struct {
	UserID            int64     `json:"user_id"`
	ScopeID           string    `json:"scope_id"`
	CategoryID        string    `json:"category_id,omitempty"`
	TotalXP           int64     `json:"total_xp"`
	QuestionsAnswered int       `json:"questions_answered"`
	QuestionsCorrect  int       `json:"questions_correct"`
	Accuracy          float64   `json:"accuracy"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DailyActivity is the per-(user, calendar date) activity row used to
// derive streaks.
type DailyActivity struct {
	UserID           int64     `json:"user_id"`
	Date             time.Time `json:"date"`
	QuizSessions     int       `json:"quiz_sessions"`
	CourseSessions   int       `json:"course_sessions"`
	QuizXP           int64     `json:"quiz_xp"`
	CourseXP         int64     `json:"course_xp"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
}

// Sessions reports whether the day had any learning activity.
func (d DailyActivity) Sessions() int {
	return d.QuizSessions + d.CourseSessions
}

// ── Request Types ─────────────────────────────────────────

type QuizAnswerInput struct {
	QuestionID    string `json:"question_id"`
	CategoryID    string `json:"category_id"`
	SubcategoryID string `json:"subcategory_id"`
	Difficulty    string `json:"difficulty"`
	Correct       bool   `json:"correct"`
}

type SubmitQuizRequest struct {
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	QuestionCount int               `json:"question_count"`
	Answers       []QuizAnswerInput `json:"answers"`
}

type SubmitCourseRequest struct {
	Unit                      UnitKey `json:"unit"`
	Difficulty                string  `json:"difficulty"`
	CategoryID                string  `json:"category_id"`
	SubcategoryID             string  `json:"subcategory_id"`
	ConfirmationQuizCorrect   bool    `json:"confirmation_quiz_correct"`
	ClientFirstCompletionHint *bool   `json:"client_first_completion_hint,omitempty"`
	DurationSeconds           int     `json:"duration_seconds"`
}

// ── Response Types ────────────────────────────────────────

type SubmitQuizResponse struct {
	SessionID          string `json:"session_id"`
	TotalXP            int    `json:"total_xp"`
	BaseXP             int    `json:"base_xp"`
	BonusXP            int    `json:"bonus_xp"`
	SKPEarned          int    `json:"skp_earned"`
	WisdomCardsAwarded int    `json:"wisdom_cards_awarded"`
}

type SubmitCourseResponse struct {
	SessionID         string `json:"session_id"`
	EarnedXP          int    `json:"earned_xp"`
	SKPEarned         int    `json:"skp_earned"`
	IsFirstCompletion bool   `json:"is_first_completion"`
}

type CompleteCourseResponse struct {
	CourseID          string   `json:"course_id"`
	CompletionBonusXP int      `json:"completion_bonus_xp"`
	AlreadyCompleted  bool     `json:"already_completed"`
	BadgesAwarded     []string `json:"badges_awarded"`
}

type StreakBonusResult struct {
	StreakDays      int `json:"streak_days"`
	NewlyAwardedSKP int `json:"newly_awarded_skp"`
}

type ProgressionResponse struct {
	Stats         UserStats    `json:"stats"`
	StreakDays    int          `json:"streak_days"`
	Categories    []ScopeStats `json:"categories"`
	Subcategories []ScopeStats `json:"subcategories"`
}

type LedgerResponse struct {
	Entries []SKPLedgerEntry `json:"entries"`
	Balance int64            `json:"balance"`
}
