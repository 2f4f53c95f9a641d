package models

import "time"

// ── Integrity Report Types ────────────────────────────────

const (
	IssueGlobalXP    = "global_xp_mismatch"
	IssueGlobalSKP   = "global_skp_mismatch"
	IssueCategoryXP  = "category_xp_mismatch"
	IssueSubcatXP    = "subcategory_xp_mismatch"
	IssueSessionCnt  = "session_count_mismatch"
	IssueAnswerCnt   = "answer_count_mismatch"
	IssueLedgerDrift = "ledger_balance_mismatch"

	WarnUnknownDifficulty = "unknown_difficulty_clamped"
	WarnHintMismatch      = "first_completion_hint_mismatch"
)

// Mismatch is one detected discrepancy between a stored rollup value and the
// value recomputed from the raw event log.
type Mismatch struct {
	Issue    string `json:"issue"`
	Scope    string `json:"scope"`
	Field    string `json:"field"`
	Stored   int64  `json:"stored"`
	Computed int64  `json:"computed"`
}

// HealthReport is the result of one integrity verification pass.
type HealthReport struct {
	UserID         int64      `json:"user_id,omitempty"`
	Score          int        `json:"score"`
	CriticalIssues []Mismatch `json:"critical_issues"`
	Warnings       []Mismatch `json:"warnings"`
	CheckedAt      time.Time  `json:"checked_at"`
}

// AnomalyEvent is a persisted anomaly signal (difficulty clamps, client
// first-completion hint disagreements) surfaced as verifier warnings.
type AnomalyEvent struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
