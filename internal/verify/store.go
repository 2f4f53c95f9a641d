package verify

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/skillpath/backend/internal/models"
)

// Store is the verifier's read-only view of the event log and the rollup
// tables. It never writes.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// RawTotals is everything recomputed directly from the append-only tables
// (sessions, answers, ledger) — never from the rollups being checked.
type RawTotals struct {
	TotalXP           int64
	QuizBaseXP        int64
	QuizTotalXP       int64
	CourseXP          int64
	CompletionBonusXP int64
	QuizSessions      int
	CourseSessions    int
	QuestionsAnswered int
	QuestionsCorrect  int
	SKPBalance        int64
	StreakSKP         int64
	CategoryXP        map[string]int64
	SubcategoryXP     map[string]int64
}

// BonusXP is the derived bonus portion: quiz session totals above the
// per-answer base, plus course completion bonuses.
func (r RawTotals) BonusXP() int64 {
	return (r.QuizTotalXP - r.QuizBaseXP) + r.CompletionBonusXP
}

func (s *Store) RawUserTotals(userID int64) (RawTotals, error) {
	raw := RawTotals{
		CategoryXP:    map[string]int64{},
		SubcategoryXP: map[string]int64{},
	}

	query, args, err := psql.
		Select(
			"COALESCE(SUM(earned_xp), 0)",
			"COALESCE(SUM(earned_xp) FILTER (WHERE kind = 'quiz'), 0)",
			"COALESCE(SUM(earned_xp) FILTER (WHERE kind = 'course'), 0)",
			"COUNT(*) FILTER (WHERE kind = 'quiz')",
			"COUNT(*) FILTER (WHERE kind = 'course')",
		).
		From("learning_sessions").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return raw, err
	}
	var sessionXP int64
	err = s.db.QueryRow(query, args...).Scan(
		&sessionXP, &raw.QuizTotalXP, &raw.CourseXP, &raw.QuizSessions, &raw.CourseSessions)
	if err != nil {
		return raw, fmt.Errorf("recompute session totals: %w", err)
	}

	query, args, err = psql.
		Select(
			"COALESCE(SUM(earned_xp), 0)",
			"COUNT(*)",
			"COUNT(*) FILTER (WHERE correct)",
		).
		From("session_answers").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return raw, err
	}
	err = s.db.QueryRow(query, args...).Scan(&raw.QuizBaseXP, &raw.QuestionsAnswered, &raw.QuestionsCorrect)
	if err != nil {
		return raw, fmt.Errorf("recompute answer totals: %w", err)
	}

	query, args, err = psql.
		Select("COALESCE(SUM(bonus_xp), 0)").
		From("course_completions").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return raw, err
	}
	if err := s.db.QueryRow(query, args...).Scan(&raw.CompletionBonusXP); err != nil {
		return raw, fmt.Errorf("recompute completion bonuses: %w", err)
	}

	raw.TotalXP = sessionXP + raw.CompletionBonusXP

	query, args, err = psql.
		Select(
			"COALESCE(SUM(CASE WHEN direction = 'earned' THEN amount ELSE -amount END), 0)",
			"COALESCE(SUM(amount) FILTER (WHERE direction = 'earned' AND source LIKE 'streak\\_%'), 0)",
		).
		From("skp_ledger").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return raw, err
	}
	if err := s.db.QueryRow(query, args...).Scan(&raw.SKPBalance, &raw.StreakSKP); err != nil {
		return raw, fmt.Errorf("recompute ledger totals: %w", err)
	}

	if err := s.rawScopeXP(userID, "category_id", raw.CategoryXP); err != nil {
		return raw, err
	}
	if err := s.rawScopeXP(userID, "subcategory_id", raw.SubcategoryXP); err != nil {
		return raw, err
	}

	return raw, nil
}

// rawScopeXP recomputes per-scope XP: per-answer XP from the answer log plus
// course session XP attributed to the same scope column.
func (s *Store) rawScopeXP(userID int64, column string, out map[string]int64) error {
	query, args, err := psql.
		Select(column, "COALESCE(SUM(earned_xp), 0)").
		From("session_answers").
		Where(sq.Eq{"user_id": userID}).
		GroupBy(column).
		ToSql()
	if err != nil {
		return err
	}
	if err := s.sumInto(query, args, out); err != nil {
		return fmt.Errorf("recompute answer %s totals: %w", column, err)
	}

	query, args, err = psql.
		Select(column, "COALESCE(SUM(earned_xp), 0)").
		From("learning_sessions").
		Where(sq.And{
			sq.Eq{"user_id": userID, "kind": "course"},
			sq.NotEq{column: ""},
		}).
		GroupBy(column).
		ToSql()
	if err != nil {
		return err
	}
	if err := s.sumInto(query, args, out); err != nil {
		return fmt.Errorf("recompute course %s totals: %w", column, err)
	}
	return nil
}

func (s *Store) sumInto(query string, args []interface{}, out map[string]int64) error {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var scope string
		var xp int64
		if err := rows.Scan(&scope, &xp); err != nil {
			return err
		}
		out[scope] += xp
	}
	return rows.Err()
}

// ── Stored Rollups ──────────────────────────────────────

// StoredTotals is the rollup state as the mutable tables currently claim it.
type StoredTotals struct {
	Stats         *models.UserStats
	Categories    []models.ScopeStats
	Subcategories []models.ScopeStats
}

func (s *Store) StoredUserTotals(userID int64) (StoredTotals, error) {
	var st StoredTotals

	var stats models.UserStats
	query, args, err := psql.
		Select("user_id", "total_xp", "quiz_xp", "course_xp", "bonus_xp",
			"quiz_sessions", "course_sessions", "questions_answered", "questions_correct", "accuracy",
			"quiz_skp", "course_skp", "streak_skp", "total_skp", "created_at", "updated_at").
		From("user_stats").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return st, err
	}
	err = s.db.QueryRow(query, args...).Scan(
		&stats.UserID, &stats.TotalXP, &stats.QuizXP, &stats.CourseXP, &stats.BonusXP,
		&stats.QuizSessions, &stats.CourseSessions, &stats.QuestionsAnswered, &stats.QuestionsCorrect, &stats.Accuracy,
		&stats.QuizSKP, &stats.CourseSKP, &stats.StreakSKP, &stats.TotalSKP, &stats.CreatedAt, &stats.UpdatedAt)
	if err == nil {
		st.Stats = &stats
	} else if err != sql.ErrNoRows {
		return st, fmt.Errorf("read user stats: %w", err)
	}

	st.Categories, err = s.scopeStats(userID, "category_stats", "category_id")
	if err != nil {
		return st, err
	}
	st.Subcategories, err = s.scopeStats(userID, "subcategory_stats", "subcategory_id")
	if err != nil {
		return st, err
	}
	return st, nil
}

func (s *Store) scopeStats(userID int64, table, column string) ([]models.ScopeStats, error) {
	query, args, err := psql.
		Select(column, "total_xp", "questions_answered", "questions_correct").
		From(table).
		Where(sq.Eq{"user_id": userID}).
		OrderBy(column).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var out []models.ScopeStats
	for rows.Next() {
		st := models.ScopeStats{UserID: userID}
		if err := rows.Scan(&st.ScopeID, &st.TotalXP, &st.QuestionsAnswered, &st.QuestionsCorrect); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ── Anomalies & User Enumeration ────────────────────────

func (s *Store) ListAnomalies(userID int64, limit int) ([]models.AnomalyEvent, error) {
	query, args, err := psql.
		Select("id", "user_id", "kind", "COALESCE(detail::text, '')", "created_at").
		From("anomaly_events").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()

	var out []models.AnomalyEvent
	for rows.Next() {
		var a models.AnomalyEvent
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListActiveUserIDs returns every user with any recorded session, for the
// verify-all pass.
func (s *Store) ListActiveUserIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT user_id FROM learning_sessions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
