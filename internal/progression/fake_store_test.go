package progression

import (
	"sync"
	"time"

	"github.com/skillpath/backend/internal/models"
)

// fakeStore is an in-memory sessionStore for service tests. The two methods
// touched by background goroutines (HasActivityOn, ListRecentDailyActivity)
// are stateless so tests can read the recorded fields without locking.
type fakeStore struct {
	mu sync.Mutex

	unitCompleted  bool
	completedUnits int
	finalizeErr    error // returned by the first FinalizeSession call only

	finalizeCalls []finalizeCall
	markedUnits   []models.UnitKey
	ledger        []fakeLedgerEntry
	anomalies     []fakeAnomaly
	stats         models.UserStats
	categories    map[string]*models.ScopeStats
	subcategories map[string]*models.ScopeStats
	daily         []models.DailyActivity
	completions   map[string]bool
}

type finalizeCall struct {
	sessionID       int64
	earnedXP        int
	firstCompletion bool
	status          string
}

type fakeLedgerEntry struct {
	direction string
	amount    int
	source    string
}

type fakeAnomaly struct {
	kind   string
	detail map[string]interface{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories:    map[string]*models.ScopeStats{},
		subcategories: map[string]*models.ScopeStats{},
		completions:   map[string]bool{},
	}
}

func (f *fakeStore) InsertQuizSession(rec *models.SessionRecord) (int64, error) {
	return 1, nil
}

func (f *fakeStore) InsertAnswers(sessionID, userID int64, answers []models.AnswerRecord) error {
	return nil
}

func (f *fakeStore) InsertCourseSession(rec *models.SessionRecord) (int64, error) {
	return 1, nil
}

func (f *fakeStore) FinalizeSession(id int64, earnedXP int, firstCompletion bool, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeCalls = append(f.finalizeCalls, finalizeCall{
		sessionID: id, earnedXP: earnedXP, firstCompletion: firstCompletion, status: status,
	})
	if len(f.finalizeCalls) == 1 && f.finalizeErr != nil {
		return f.finalizeErr
	}
	return nil
}

func (f *fakeStore) IsUnitCompleted(userID int64, unit models.UnitKey) (bool, error) {
	return f.unitCompleted, nil
}

func (f *fakeStore) MarkUnitCompleted(userID int64, unit models.UnitKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedUnits = append(f.markedUnits, unit)
	return nil
}

func (f *fakeStore) InsertCourseCompletion(userID int64, courseID string, bonusXP int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completions[courseID] {
		return false, nil
	}
	f.completions[courseID] = true
	return true, nil
}

func (f *fakeStore) CountCompletedUnits(userID int64, courseID string) (int, error) {
	return f.completedUnits, nil
}

func (f *fakeStore) GetOrCreateUserStats(userID int64) (*models.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.stats
	st.UserID = userID
	return &st, nil
}

func (f *fakeStore) UpdateUserStats(st *models.UserStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = *st
	return nil
}

func (f *fakeStore) GetOrCreateCategoryStats(userID int64, categoryID string) (*models.ScopeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.categories[categoryID]; ok {
		cp := *st
		return &cp, nil
	}
	return &models.ScopeStats{UserID: userID, ScopeID: categoryID}, nil
}

func (f *fakeStore) UpdateCategoryStats(st *models.ScopeStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *st
	f.categories[st.ScopeID] = &cp
	return nil
}

func (f *fakeStore) GetOrCreateSubcategoryStats(userID int64, subcategoryID, categoryID string) (*models.ScopeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.subcategories[subcategoryID]; ok {
		cp := *st
		return &cp, nil
	}
	return &models.ScopeStats{UserID: userID, ScopeID: subcategoryID, CategoryID: categoryID}, nil
}

func (f *fakeStore) UpdateSubcategoryStats(st *models.ScopeStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *st
	f.subcategories[st.ScopeID] = &cp
	return nil
}

func (f *fakeStore) ListCategoryStats(userID int64) ([]models.ScopeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScopeStats
	for _, st := range f.categories {
		out = append(out, *st)
	}
	return out, nil
}

func (f *fakeStore) ListSubcategoryStats(userID int64) ([]models.ScopeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScopeStats
	for _, st := range f.subcategories {
		out = append(out, *st)
	}
	return out, nil
}

func (f *fakeStore) AddDailyActivity(userID int64, date time.Time, delta models.DailyActivity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.daily = append(f.daily, delta)
	return nil
}

func (f *fakeStore) ListRecentDailyActivity(userID int64, limit int) ([]models.DailyActivity, error) {
	return nil, nil
}

func (f *fakeStore) HasActivityOn(userID int64, date time.Time) (bool, error) {
	return false, nil
}

func (f *fakeStore) InsertLedgerEntry(userID int64, direction string, amount int, source, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledger = append(f.ledger, fakeLedgerEntry{direction: direction, amount: amount, source: source})
	return nil
}

func (f *fakeStore) SumStreakPaid(userID int64) (int, error) {
	return 0, nil
}

func (f *fakeStore) LedgerBalance(userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var balance int64
	for _, e := range f.ledger {
		if e.direction == models.LedgerEarned {
			balance += int64(e.amount)
		} else {
			balance -= int64(e.amount)
		}
	}
	return balance, nil
}

func (f *fakeStore) ListLedger(userID int64, limit int) ([]models.SKPLedgerEntry, error) {
	return nil, nil
}

func (f *fakeStore) InsertAnomaly(userID int64, kind string, detail map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anomalies = append(f.anomalies, fakeAnomaly{kind: kind, detail: detail})
	return nil
}
