package progression

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/skillpath/backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation. This is the authoritative race-loss signal for concurrent
// first completions.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ── Event Recorder: Sessions & Answers ──────────────────

func (s *Store) InsertQuizSession(rec *models.SessionRecord) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO learning_sessions
		    (public_id, user_id, kind, total_questions, correct_answers, accuracy,
		     duration_seconds, status, created_at)
		 VALUES ($1, $2, 'quiz', $3, $4, $5, $6, $7, NOW())
		 RETURNING id`,
		rec.PublicID, rec.UserID, rec.TotalQuestions, rec.CorrectAnswers,
		rec.Accuracy, rec.DurationSeconds, models.SessionStatusRecorded,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quiz session: %w", err)
	}
	return id, nil
}

func (s *Store) InsertAnswers(sessionID, userID int64, answers []models.AnswerRecord) error {
	for _, a := range answers {
		_, err := s.db.Exec(
			`INSERT INTO session_answers
			    (session_id, user_id, category_id, subcategory_id, difficulty, correct, earned_xp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sessionID, userID, a.CategoryID, a.SubcategoryID, a.Difficulty, a.Correct, a.EarnedXP,
		)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}
	return nil
}

func (s *Store) InsertCourseSession(rec *models.SessionRecord) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO learning_sessions
		    (public_id, user_id, kind, category_id, subcategory_id, difficulty,
		     total_questions, correct_answers, accuracy, duration_seconds, status,
		     course_id, genre_id, theme_id, session_number, created_at)
		 VALUES ($1, $2, 'course', $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		 RETURNING id`,
		rec.PublicID, rec.UserID, rec.CategoryID, rec.SubcategoryID, rec.Difficulty,
		rec.TotalQuestions, rec.CorrectAnswers, rec.Accuracy, rec.DurationSeconds,
		models.SessionStatusRecorded,
		rec.Unit.CourseID, rec.Unit.GenreID, rec.Unit.ThemeID, rec.Unit.SessionNumber,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert course session: %w", err)
	}
	return id, nil
}

// FinalizeSession performs the single terminal update of a session record.
// Finalizing with firstCompletion=true can lose the race against a concurrent
// submission of the same unit; the unique index rejects the second winner and
// the caller downgrades to a review.
func (s *Store) FinalizeSession(id int64, earnedXP int, firstCompletion bool, status string) error {
	_, err := s.db.Exec(
		`UPDATE learning_sessions
		 SET earned_xp = $2, is_first_completion = $3, status = $4, finalized_at = NOW()
		 WHERE id = $1 AND finalized_at IS NULL`,
		id, earnedXP, firstCompletion, status,
	)
	return err
}

// ── First-Completion Determinator ───────────────────────

func (s *Store) IsUnitCompleted(userID int64, unit models.UnitKey) (bool, error) {
	var completed bool
	err := s.db.QueryRow(
		`SELECT completed FROM progress_markers
		 WHERE user_id = $1 AND course_id = $2 AND genre_id = $3 AND theme_id = $4 AND session_number = $5`,
		userID, unit.CourseID, unit.GenreID, unit.ThemeID, unit.SessionNumber,
	).Scan(&completed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get progress marker: %w", err)
	}
	return completed, nil
}

// MarkUnitCompleted flips the marker to completed. The transition is
// monotonic: a marker never goes back to not-completed.
func (s *Store) MarkUnitCompleted(userID int64, unit models.UnitKey) error {
	_, err := s.db.Exec(
		`INSERT INTO progress_markers (user_id, course_id, genre_id, theme_id, session_number, completed, updated_at)
		 VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
		 ON CONFLICT (user_id, course_id, genre_id, theme_id, session_number)
		 DO UPDATE SET completed = TRUE, updated_at = NOW()`,
		userID, unit.CourseID, unit.GenreID, unit.ThemeID, unit.SessionNumber,
	)
	if err != nil {
		return fmt.Errorf("mark unit completed: %w", err)
	}
	return nil
}

// CountCompletedUnits reports how many units of a course the user has
// actually completed according to the progress markers.
func (s *Store) CountCompletedUnits(userID int64, courseID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM progress_markers
		 WHERE user_id = $1 AND course_id = $2 AND completed`,
		userID, courseID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed units: %w", err)
	}
	return n, nil
}

// ── Course Completion Marker ────────────────────────────

// InsertCourseCompletion records the one-time course completion bonus.
// Returns false when the course was already completed (no row written).
func (s *Store) InsertCourseCompletion(userID int64, courseID string, bonusXP int) (bool, error) {
	res, err := s.db.Exec(
		`INSERT INTO course_completions (user_id, course_id, bonus_xp)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, course_id) DO NOTHING`,
		userID, courseID, bonusXP,
	)
	if err != nil {
		return false, fmt.Errorf("insert course completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ── Aggregate Rollups ───────────────────────────────────

const userStatsColumns = `user_id, total_xp, quiz_xp, course_xp, bonus_xp,
	quiz_sessions, course_sessions, questions_answered, questions_correct, accuracy,
	quiz_skp, course_skp, streak_skp, total_skp, created_at, updated_at`

func (s *Store) GetOrCreateUserStats(userID int64) (*models.UserStats, error) {
	_, err := s.db.Exec(
		`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user stats: %w", err)
	}

	var st models.UserStats
	err = s.db.QueryRow(
		`SELECT `+userStatsColumns+` FROM user_stats WHERE user_id = $1`,
		userID,
	).Scan(&st.UserID, &st.TotalXP, &st.QuizXP, &st.CourseXP, &st.BonusXP,
		&st.QuizSessions, &st.CourseSessions, &st.QuestionsAnswered, &st.QuestionsCorrect, &st.Accuracy,
		&st.QuizSKP, &st.CourseSKP, &st.StreakSKP, &st.TotalSKP, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user stats: %w", err)
	}
	return &st, nil
}

func (s *Store) UpdateUserStats(st *models.UserStats) error {
	_, err := s.db.Exec(
		`UPDATE user_stats SET
		    total_xp = $2, quiz_xp = $3, course_xp = $4, bonus_xp = $5,
		    quiz_sessions = $6, course_sessions = $7,
		    questions_answered = $8, questions_correct = $9, accuracy = $10,
		    quiz_skp = $11, course_skp = $12, streak_skp = $13, total_skp = $14,
		    updated_at = NOW()
		 WHERE user_id = $1`,
		st.UserID, st.TotalXP, st.QuizXP, st.CourseXP, st.BonusXP,
		st.QuizSessions, st.CourseSessions,
		st.QuestionsAnswered, st.QuestionsCorrect, st.Accuracy,
		st.QuizSKP, st.CourseSKP, st.StreakSKP, st.TotalSKP,
	)
	return err
}

func (s *Store) GetOrCreateCategoryStats(userID int64, categoryID string) (*models.ScopeStats, error) {
	_, err := s.db.Exec(
		`INSERT INTO category_stats (user_id, category_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, category_id) DO NOTHING`,
		userID, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert category stats: %w", err)
	}

	var st models.ScopeStats
	err = s.db.QueryRow(
		`SELECT user_id, category_id, total_xp, questions_answered, questions_correct, accuracy, updated_at
		 FROM category_stats WHERE user_id = $1 AND category_id = $2`,
		userID, categoryID,
	).Scan(&st.UserID, &st.ScopeID, &st.TotalXP, &st.QuestionsAnswered, &st.QuestionsCorrect, &st.Accuracy, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get category stats: %w", err)
	}
	return &st, nil
}

func (s *Store) UpdateCategoryStats(st *models.ScopeStats) error {
	_, err := s.db.Exec(
		`UPDATE category_stats SET
		    total_xp = $3, questions_answered = $4, questions_correct = $5, accuracy = $6, updated_at = NOW()
		 WHERE user_id = $1 AND category_id = $2`,
		st.UserID, st.ScopeID, st.TotalXP, st.QuestionsAnswered, st.QuestionsCorrect, st.Accuracy,
	)
	return err
}

func (s *Store) GetOrCreateSubcategoryStats(userID int64, subcategoryID, categoryID string) (*models.ScopeStats, error) {
	_, err := s.db.Exec(
		`INSERT INTO subcategory_stats (user_id, subcategory_id, category_id) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, subcategory_id) DO NOTHING`,
		userID, subcategoryID, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subcategory stats: %w", err)
	}

	var st models.ScopeStats
	err = s.db.QueryRow(
		`SELECT user_id, subcategory_id, category_id, total_xp, questions_answered, questions_correct, accuracy, updated_at
		 FROM subcategory_stats WHERE user_id = $1 AND subcategory_id = $2`,
		userID, subcategoryID,
	).Scan(&st.UserID, &st.ScopeID, &st.CategoryID, &st.TotalXP, &st.QuestionsAnswered, &st.QuestionsCorrect, &st.Accuracy, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get subcategory stats: %w", err)
	}
	return &st, nil
}

func (s *Store) UpdateSubcategoryStats(st *models.ScopeStats) error {
	_, err := s.db.Exec(
		`UPDATE subcategory_stats SET
		    total_xp = $3, questions_answered = $4, questions_correct = $5, accuracy = $6, updated_at = NOW()
		 WHERE user_id = $1 AND subcategory_id = $2`,
		st.UserID, st.ScopeID, st.TotalXP, st.QuestionsAnswered, st.QuestionsCorrect, st.Accuracy,
	)
	return err
}

func (s *Store) ListCategoryStats(userID int64) ([]models.ScopeStats, error) {
	rows, err := s.db.Query(
		`SELECT user_id, category_id, total_xp, questions_answered, questions_correct, accuracy, updated_at
		 FROM category_stats WHERE user_id = $1 ORDER BY category_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list category stats: %w", err)
	}
	defer rows.Close()

	var out []models.ScopeStats
	for rows.Next() {
		var st models.ScopeStats
		if err := rows.Scan(&st.UserID, &st.ScopeID, &st.TotalXP, &st.QuestionsAnswered, &st.QuestionsCorrect, &st.Accuracy, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) ListSubcategoryStats(userID int64) ([]models.ScopeStats, error) {
	rows, err := s.db.Query(
		`SELECT user_id, subcategory_id, category_id, total_xp, questions_answered, questions_correct, accuracy, updated_at
		 FROM subcategory_stats WHERE user_id = $1 ORDER BY subcategory_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subcategory stats: %w", err)
	}
	defer rows.Close()

	var out []models.ScopeStats
	for rows.Next() {
		var st models.ScopeStats
		if err := rows.Scan(&st.UserID, &st.ScopeID, &st.CategoryID, &st.TotalXP, &st.QuestionsAnswered, &st.QuestionsCorrect, &st.Accuracy, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ── Daily Activity ──────────────────────────────────────

// AddDailyActivity increments the per-day counters additively. Daily rows
// carry no derived fields, so an atomic upsert is safe here.
func (s *Store) AddDailyActivity(userID int64, date time.Time, delta models.DailyActivity) error {
	_, err := s.db.Exec(
		`INSERT INTO daily_activity
		    (user_id, activity_date, quiz_sessions, course_sessions, quiz_xp, course_xp, time_spent_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, activity_date) DO UPDATE SET
		    quiz_sessions = daily_activity.quiz_sessions + EXCLUDED.quiz_sessions,
		    course_sessions = daily_activity.course_sessions + EXCLUDED.course_sessions,
		    quiz_xp = daily_activity.quiz_xp + EXCLUDED.quiz_xp,
		    course_xp = daily_activity.course_xp + EXCLUDED.course_xp,
		    time_spent_seconds = daily_activity.time_spent_seconds + EXCLUDED.time_spent_seconds`,
		userID, date.Format("2006-01-02"),
		delta.QuizSessions, delta.CourseSessions, delta.QuizXP, delta.CourseXP, delta.TimeSpentSeconds,
	)
	if err != nil {
		return fmt.Errorf("add daily activity: %w", err)
	}
	return nil
}

func (s *Store) ListRecentDailyActivity(userID int64, limit int) ([]models.DailyActivity, error) {
	rows, err := s.db.Query(
		`SELECT user_id, activity_date, quiz_sessions, course_sessions, quiz_xp, course_xp, time_spent_seconds
		 FROM daily_activity WHERE user_id = $1
		 ORDER BY activity_date DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily activity: %w", err)
	}
	defer rows.Close()

	var out []models.DailyActivity
	for rows.Next() {
		var d models.DailyActivity
		if err := rows.Scan(&d.UserID, &d.Date, &d.QuizSessions, &d.CourseSessions, &d.QuizXP, &d.CourseXP, &d.TimeSpentSeconds); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) HasActivityOn(userID int64, date time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COALESCE(quiz_sessions + course_sessions, 0)
		 FROM daily_activity WHERE user_id = $1 AND activity_date = $2`,
		userID, date.Format("2006-01-02"),
	).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check daily activity: %w", err)
	}
	return n > 0, nil
}

// ── SKP Ledger ──────────────────────────────────────────

func (s *Store) InsertLedgerEntry(userID int64, direction string, amount int, source, description string) error {
	_, err := s.db.Exec(
		`INSERT INTO skp_ledger (user_id, direction, amount, source, description)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, direction, amount, source, description,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// SumStreakPaid returns the total streak-bonus SKP already credited. The
// full-history scan keeps the bonus calculation idempotent; rows are narrow
// and bounded by account age.
func (s *Store) SumStreakPaid(userID int64) (int, error) {
	var total int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM skp_ledger
		 WHERE user_id = $1 AND direction = 'earned' AND source LIKE 'streak\_%'`,
		userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum streak paid: %w", err)
	}
	return total, nil
}

func (s *Store) LedgerBalance(userID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN direction = 'earned' THEN amount ELSE -amount END), 0)
		 FROM skp_ledger WHERE user_id = $1`,
		userID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}
	return balance, nil
}

func (s *Store) ListLedger(userID int64, limit int) ([]models.SKPLedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, direction, amount, source, description, created_at
		 FROM skp_ledger WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []models.SKPLedgerEntry
	for rows.Next() {
		var e models.SKPLedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Direction, &e.Amount, &e.Source, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ── Anomalies ───────────────────────────────────────────

func (s *Store) InsertAnomaly(userID int64, kind string, detail map[string]interface{}) error {
	var detailJSON *string
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			str := string(b)
			detailJSON = &str
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO anomaly_events (user_id, kind, detail) VALUES ($1, $2, $3)`,
		userID, kind, detailJSON,
	)
	if err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}
