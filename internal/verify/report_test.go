package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/backend/internal/models"
)

func consistentFixture() (RawTotals, StoredTotals) {
	raw := RawTotals{
		TotalXP:           170,
		QuizBaseXP:        20,
		QuizTotalXP:       20,
		CourseXP:          150,
		CompletionBonusXP: 0,
		QuizSessions:      1,
		CourseSessions:    1,
		QuestionsAnswered: 3,
		QuestionsCorrect:  2,
		SKPBalance:        15,
		StreakSKP:         0,
		CategoryXP:        map[string]int64{"math": 170},
		SubcategoryXP:     map[string]int64{"algebra": 170},
	}
	stored := StoredTotals{
		Stats: &models.UserStats{
			UserID:            7,
			TotalXP:           170,
			QuizXP:            20,
			CourseXP:          150,
			BonusXP:           0,
			QuizSessions:      1,
			CourseSessions:    1,
			QuestionsAnswered: 3,
			QuestionsCorrect:  2,
			TotalSKP:          15,
		},
		Categories: []models.ScopeStats{
			{UserID: 7, ScopeID: "math", TotalXP: 170, QuestionsAnswered: 3, QuestionsCorrect: 2},
		},
		Subcategories: []models.ScopeStats{
			{UserID: 7, ScopeID: "algebra", TotalXP: 170, QuestionsAnswered: 3, QuestionsCorrect: 2},
		},
	}
	return raw, stored
}

func TestBuildReportConsistentStateScoresFull(t *testing.T) {
	raw, stored := consistentFixture()

	report := BuildReport(7, raw, stored, nil, time.Now())

	assert.Equal(t, 100, report.Score)
	assert.Empty(t, report.CriticalIssues)
	assert.Empty(t, report.Warnings)
}

func TestBuildReportSkippedScopeUpdate(t *testing.T) {
	raw, stored := consistentFixture()
	// A partial-failure scenario: global stats were updated but the category
	// rollup write was dropped.
	stored.Categories[0].TotalXP = 0

	report := BuildReport(7, raw, stored, nil, time.Now())

	assert.Less(t, report.Score, 100)
	require.NotEmpty(t, report.CriticalIssues)
	issue := report.CriticalIssues[0]
	assert.Equal(t, models.IssueCategoryXP, issue.Issue)
	assert.Equal(t, "math", issue.Scope)
	assert.Equal(t, int64(0), issue.Stored)
	assert.Equal(t, int64(170), issue.Computed)
}

func TestBuildReportMissingScopeRow(t *testing.T) {
	raw, stored := consistentFixture()
	stored.Subcategories = nil

	report := BuildReport(7, raw, stored, nil, time.Now())

	assert.Less(t, report.Score, 100)
	require.Len(t, report.CriticalIssues, 1)
	assert.Equal(t, models.IssueSubcatXP, report.CriticalIssues[0].Issue)
	assert.Equal(t, "algebra", report.CriticalIssues[0].Scope)
}

func TestBuildReportGlobalDriftOutweighsScopeDrift(t *testing.T) {
	raw, stored := consistentFixture()
	stored.Stats.TotalXP = 120

	global := BuildReport(7, raw, stored, nil, time.Now())

	raw2, stored2 := consistentFixture()
	stored2.Categories[0].TotalXP = 120

	scoped := BuildReport(7, raw2, stored2, nil, time.Now())

	assert.Less(t, global.Score, scoped.Score)
}

func TestBuildReportLedgerDrift(t *testing.T) {
	raw, stored := consistentFixture()
	stored.Stats.TotalSKP = 99

	report := BuildReport(7, raw, stored, nil, time.Now())

	require.Len(t, report.CriticalIssues, 1)
	assert.Equal(t, models.IssueGlobalSKP, report.CriticalIssues[0].Issue)
}

func TestBuildReportMissingStatsRowWithActivity(t *testing.T) {
	raw, stored := consistentFixture()
	stored.Stats = nil

	report := BuildReport(7, raw, stored, nil, time.Now())

	assert.Less(t, report.Score, 100)
	assert.NotEmpty(t, report.CriticalIssues)
}

func TestBuildReportAnomaliesAreWarningsOnly(t *testing.T) {
	raw, stored := consistentFixture()
	anomalies := []models.AnomalyEvent{
		{ID: 1, UserID: 7, Kind: models.WarnUnknownDifficulty},
		{ID: 2, UserID: 7, Kind: models.WarnHintMismatch},
	}

	report := BuildReport(7, raw, stored, anomalies, time.Now())

	assert.Empty(t, report.CriticalIssues)
	assert.Len(t, report.Warnings, 2)

	// Historical anomalies were already handled at submission time; they must
	// not stop a drift-free user from scoring 100, on this verify or any
	// later one.
	assert.Equal(t, 100, report.Score)
}

func TestBuildReportScoreFloorsAtZero(t *testing.T) {
	raw, _ := consistentFixture()
	stored := StoredTotals{
		Stats: &models.UserStats{UserID: 7, TotalXP: 1, QuizXP: 1, CourseXP: 1, BonusXP: 1, TotalSKP: 1, StreakSKP: 1},
	}

	report := BuildReport(7, raw, stored, nil, time.Now())

	assert.Equal(t, 0, report.Score)
}
