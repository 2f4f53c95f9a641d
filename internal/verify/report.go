package verify

import (
	"sort"
	"time"

	"github.com/skillpath/backend/internal/models"
)

// Mismatch weights. Global drift is worth far more than a single scope row:
// a wrong grand total means the pipeline itself is broken, a wrong scope row
// usually means one partial-failure update was dropped.
const (
	weightGlobal = 25
	weightScope  = 8
	weightCount  = 4
)

// BuildReport compares recomputed totals against the stored rollups and
// produces a deterministic health report. The score is 100 only when no
// mismatch was found; every critical issue deducts its weight, floored at
// zero. Anomaly rows are informational warnings: they describe events that
// were already handled, so they never move the score.
func BuildReport(userID int64, raw RawTotals, stored StoredTotals, anomalies []models.AnomalyEvent, now time.Time) *models.HealthReport {
	report := &models.HealthReport{
		UserID:         userID,
		Score:          100,
		CriticalIssues: []models.Mismatch{},
		Warnings:       []models.Mismatch{},
		CheckedAt:      now,
	}

	var stats models.UserStats
	if stored.Stats != nil {
		stats = *stored.Stats
	}

	critical := func(issue, scope, field string, storedV, computed int64, weight int) {
		if storedV == computed {
			return
		}
		report.CriticalIssues = append(report.CriticalIssues, models.Mismatch{
			Issue: issue, Scope: scope, Field: field, Stored: storedV, Computed: computed,
		})
		report.Score -= weight
	}
	warning := func(issue, scope, field string, storedV, computed int64) {
		report.Warnings = append(report.Warnings, models.Mismatch{
			Issue: issue, Scope: scope, Field: field, Stored: storedV, Computed: computed,
		})
	}

	critical(models.IssueGlobalXP, "global", "total_xp", stats.TotalXP, raw.TotalXP, weightGlobal)
	critical(models.IssueGlobalXP, "global", "quiz_xp", stats.QuizXP, raw.QuizBaseXP, weightGlobal)
	critical(models.IssueGlobalXP, "global", "course_xp", stats.CourseXP, raw.CourseXP, weightGlobal)
	critical(models.IssueGlobalXP, "global", "bonus_xp", stats.BonusXP, raw.BonusXP(), weightGlobal)
	critical(models.IssueGlobalSKP, "global", "total_skp", stats.TotalSKP, raw.SKPBalance, weightGlobal)
	critical(models.IssueLedgerDrift, "global", "streak_skp", stats.StreakSKP, raw.StreakSKP, weightGlobal)

	critical(models.IssueSessionCnt, "global", "quiz_sessions", int64(stats.QuizSessions), int64(raw.QuizSessions), weightCount)
	critical(models.IssueSessionCnt, "global", "course_sessions", int64(stats.CourseSessions), int64(raw.CourseSessions), weightCount)
	critical(models.IssueAnswerCnt, "global", "questions_answered", int64(stats.QuestionsAnswered), int64(raw.QuestionsAnswered), weightCount)
	critical(models.IssueAnswerCnt, "global", "questions_correct", int64(stats.QuestionsCorrect), int64(raw.QuestionsCorrect), weightCount)

	compareScopes(models.IssueCategoryXP, stored.Categories, raw.CategoryXP, critical)
	compareScopes(models.IssueSubcatXP, stored.Subcategories, raw.SubcategoryXP, critical)

	for _, a := range anomalies {
		switch a.Kind {
		case models.WarnUnknownDifficulty, models.WarnHintMismatch:
			warning(a.Kind, "global", "anomaly", a.ID, a.ID)
		}
	}

	if report.Score < 0 {
		report.Score = 0
	}
	return report
}

// compareScopes checks every stored scope row against the recomputed map and
// flags scopes the raw log knows about but the rollup table is missing.
func compareScopes(issue string, stored []models.ScopeStats, raw map[string]int64, critical func(issue, scope, field string, storedV, computed int64, weight int)) {
	seen := make(map[string]bool, len(stored))
	for _, st := range stored {
		seen[st.ScopeID] = true
		critical(issue, st.ScopeID, "total_xp", st.TotalXP, raw[st.ScopeID], weightScope)
	}

	missing := make([]string, 0)
	for scope, xp := range raw {
		if !seen[scope] && xp != 0 {
			missing = append(missing, scope)
		}
	}
	sort.Strings(missing)
	for _, scope := range missing {
		critical(issue, scope, "total_xp", 0, raw[scope], weightScope)
	}
}
