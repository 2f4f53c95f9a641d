package progression

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/skillpath/backend/internal/models"
	"github.com/skillpath/backend/internal/rates"
	"github.com/skillpath/backend/internal/reward"
	"github.com/skillpath/backend/internal/telemetry"
)

// sessionStore is the persistence surface the service writes through. *Store
// is the production implementation; tests substitute an in-memory fake.
type sessionStore interface {
	InsertQuizSession(rec *models.SessionRecord) (int64, error)
	InsertAnswers(sessionID, userID int64, answers []models.AnswerRecord) error
	InsertCourseSession(rec *models.SessionRecord) (int64, error)
	FinalizeSession(id int64, earnedXP int, firstCompletion bool, status string) error
	IsUnitCompleted(userID int64, unit models.UnitKey) (bool, error)
	MarkUnitCompleted(userID int64, unit models.UnitKey) error
	InsertCourseCompletion(userID int64, courseID string, bonusXP int) (bool, error)
	CountCompletedUnits(userID int64, courseID string) (int, error)
	GetOrCreateUserStats(userID int64) (*models.UserStats, error)
	UpdateUserStats(st *models.UserStats) error
	GetOrCreateCategoryStats(userID int64, categoryID string) (*models.ScopeStats, error)
	UpdateCategoryStats(st *models.ScopeStats) error
	GetOrCreateSubcategoryStats(userID int64, subcategoryID, categoryID string) (*models.ScopeStats, error)
	UpdateSubcategoryStats(st *models.ScopeStats) error
	ListCategoryStats(userID int64) ([]models.ScopeStats, error)
	ListSubcategoryStats(userID int64) ([]models.ScopeStats, error)
	AddDailyActivity(userID int64, date time.Time, delta models.DailyActivity) error
	ListRecentDailyActivity(userID int64, limit int) ([]models.DailyActivity, error)
	HasActivityOn(userID int64, date time.Time) (bool, error)
	InsertLedgerEntry(userID int64, direction string, amount int, source, description string) error
	SumStreakPaid(userID int64) (int, error)
	LedgerBalance(userID int64) (int64, error)
	ListLedger(userID int64, limit int) ([]models.SKPLedgerEntry, error)
	InsertAnomaly(userID int64, kind string, detail map[string]interface{}) error
}

type Service struct {
	store          sessionStore
	rates          *rates.Table
	streakScanDays int
}

func NewService(store *Store, rt *rates.Table, streakScanDays int) *Service {
	if streakScanDays <= 0 {
		streakScanDays = 400
	}
	return &Service{store: store, rates: rt, streakScanDays: streakScanDays}
}

// ── Validation ──────────────────────────────────────────

func validateQuizRequest(req models.SubmitQuizRequest) error {
	if req.QuestionCount <= 0 {
		return &ValidationError{Field: "question_count", Reason: "must be positive"}
	}
	if len(req.Answers) != req.QuestionCount {
		return &ValidationError{
			Field:  "answers",
			Reason: fmt.Sprintf("got %d answers for %d declared questions", len(req.Answers), req.QuestionCount),
		}
	}
	for i, a := range req.Answers {
		if a.CategoryID == "" {
			return &ValidationError{Field: fmt.Sprintf("answers[%d].category_id", i), Reason: "required"}
		}
		if a.SubcategoryID == "" {
			return &ValidationError{Field: fmt.Sprintf("answers[%d].subcategory_id", i), Reason: "required"}
		}
		if a.Difficulty == "" {
			return &ValidationError{Field: fmt.Sprintf("answers[%d].difficulty", i), Reason: "required"}
		}
	}
	return nil
}

func validateCourseRequest(req models.SubmitCourseRequest) error {
	u := req.Unit
	if u.CourseID == "" || u.GenreID == "" || u.ThemeID == "" {
		return &ValidationError{Field: "unit", Reason: "course_id, genre_id and theme_id are required"}
	}
	if u.SessionNumber <= 0 {
		return &ValidationError{Field: "unit.session_number", Reason: "must be positive"}
	}
	if req.DurationSeconds < 0 {
		return &ValidationError{Field: "duration_seconds", Reason: "must not be negative"}
	}
	return nil
}

// ── Quiz Submission ─────────────────────────────────────

// SubmitQuizSession records the quiz event, computes the reward, applies the
// rollups and credits the SKP ledger. Rollup failures after the event write
// never fail the request; the verifier picks up the drift later.
func (s *Service) SubmitQuizSession(userID int64, req models.SubmitQuizRequest) (*models.SubmitQuizResponse, error) {
	if err := validateQuizRequest(req); err != nil {
		return nil, err
	}

	answers := make([]reward.AnswerInput, len(req.Answers))
	correct := 0
	for i, a := range req.Answers {
		answers[i] = reward.AnswerInput{
			CategoryID:    a.CategoryID,
			SubcategoryID: a.SubcategoryID,
			Difficulty:    a.Difficulty,
			Correct:       a.Correct,
		}
		if a.Correct {
			correct++
		}
	}
	rw := reward.CalculateQuiz(answers, s.rates)

	duration := 0
	if req.EndTime.After(req.StartTime) {
		duration = int(req.EndTime.Sub(req.StartTime).Seconds())
	}

	rec := &models.SessionRecord{
		PublicID:        uuid.NewString(),
		UserID:          userID,
		Kind:            models.SessionKindQuiz,
		TotalQuestions:  len(req.Answers),
		CorrectAnswers:  correct,
		Accuracy:        rw.Accuracy,
		DurationSeconds: duration,
	}

	sessionID, err := s.store.InsertQuizSession(rec)
	if err != nil {
		return nil, &PersistenceError{Op: "record quiz session", Err: err}
	}

	answerRecs := make([]models.AnswerRecord, len(req.Answers))
	for i, a := range req.Answers {
		answerRecs[i] = models.AnswerRecord{
			CategoryID:    a.CategoryID,
			SubcategoryID: a.SubcategoryID,
			Difficulty:    a.Difficulty,
			Correct:       a.Correct,
			EarnedXP:      rw.PerAnswerXP[i],
		}
	}
	if err := s.store.InsertAnswers(sessionID, userID, answerRecs); err != nil {
		return nil, &PersistenceError{Op: "record quiz answers", Err: err}
	}

	if err := s.store.FinalizeSession(sessionID, rw.TotalXP, false, models.SessionStatusFinalized); err != nil {
		// Event and answers are durable; the session row just lacks its XP
		// stamp. Detectable by the verifier.
		log.Printf("[progression] finalize quiz session %d failed: %v", sessionID, err)
		telemetry.PartialAggregateFailures.WithLabelValues("session").Inc()
	}

	failed := s.applyQuizRollups(userID, rw, answerRecs, duration)

	if err := s.store.InsertLedgerEntry(userID, models.LedgerEarned, rw.SKP,
		"quiz_"+rec.PublicID, fmt.Sprintf("Quiz session, %d/%d correct", correct, len(req.Answers))); err != nil {
		log.Printf("[progression] ledger entry for quiz %s failed: %v", rec.PublicID, err)
		failed = append(failed, "ledger")
	}

	if len(failed) > 0 {
		pf := &PartialAggregateFailure{Scopes: failed}
		log.Printf("[progression] quiz %s for user %d: %v", rec.PublicID, userID, pf)
		for _, scope := range failed {
			telemetry.PartialAggregateFailures.WithLabelValues(scope).Inc()
		}
	}

	s.recordClampAnomalies(userID, rec.PublicID, rw.ClampedDifficulties)
	telemetry.XPAwarded.WithLabelValues(models.SessionKindQuiz).Add(float64(rw.TotalXP))
	telemetry.SKPAwarded.WithLabelValues("quiz").Add(float64(rw.SKP))

	// Streak bonus runs in the background; its failure never fails the
	// submission, and the ledger keeps a retry idempotent.
	go s.awardStreakBonus(userID)

	return &models.SubmitQuizResponse{
		SessionID:          rec.PublicID,
		TotalXP:            rw.TotalXP,
		BaseXP:             rw.BaseXP,
		BonusXP:            rw.BonusXP,
		SKPEarned:          rw.SKP,
		WisdomCardsAwarded: rw.WisdomCards,
	}, nil
}

// applyQuizRollups updates every aggregate scope independently and returns
// the scopes that failed. A failure in one scope never rolls back another.
func (s *Service) applyQuizRollups(userID int64, rw reward.QuizReward, answers []models.AnswerRecord, duration int) []string {
	var failed []string

	if err := s.applyGlobalQuizDelta(userID, rw, answers); err != nil {
		log.Printf("[progression] global rollup for user %d failed: %v", userID, err)
		failed = append(failed, "global")
	}

	byCategory, bySubcategory := groupAnswerDeltas(answers)

	for categoryID, d := range byCategory {
		st, err := s.store.GetOrCreateCategoryStats(userID, categoryID)
		if err == nil {
			st.TotalXP += d.xp
			st.QuestionsAnswered += d.answered
			st.QuestionsCorrect += d.correct
			st.Accuracy = reward.Accuracy(st.QuestionsCorrect, st.QuestionsAnswered)
			err = s.store.UpdateCategoryStats(st)
		}
		if err != nil {
			log.Printf("[progression] category %s rollup for user %d failed: %v", categoryID, userID, err)
			failed = append(failed, "category:"+categoryID)
		}
	}

	for subcategoryID, d := range bySubcategory {
		st, err := s.store.GetOrCreateSubcategoryStats(userID, subcategoryID, d.category)
		if err == nil {
			st.TotalXP += d.xp
			st.QuestionsAnswered += d.answered
			st.QuestionsCorrect += d.correct
			st.Accuracy = reward.Accuracy(st.QuestionsCorrect, st.QuestionsAnswered)
			err = s.store.UpdateSubcategoryStats(st)
		}
		if err != nil {
			log.Printf("[progression] subcategory %s rollup for user %d failed: %v", subcategoryID, userID, err)
			failed = append(failed, "subcategory:"+subcategoryID)
		}
	}

	daily := models.DailyActivity{QuizSessions: 1, QuizXP: int64(rw.TotalXP), TimeSpentSeconds: duration}
	if err := s.store.AddDailyActivity(userID, todayUTC(), daily); err != nil {
		log.Printf("[progression] daily rollup for user %d failed: %v", userID, err)
		failed = append(failed, "daily")
	}

	return failed
}

func (s *Service) applyGlobalQuizDelta(userID int64, rw reward.QuizReward, answers []models.AnswerRecord) error {
	st, err := s.store.GetOrCreateUserStats(userID)
	if err != nil {
		return err
	}

	correct := 0
	for _, a := range answers {
		if a.Correct {
			correct++
		}
	}

	st.TotalXP += int64(rw.TotalXP)
	st.QuizXP += int64(rw.BaseXP)
	st.BonusXP += int64(rw.BonusXP)
	st.QuizSessions++
	st.QuestionsAnswered += len(answers)
	st.QuestionsCorrect += correct
	st.Accuracy = reward.Accuracy(st.QuestionsCorrect, st.QuestionsAnswered)
	st.QuizSKP += int64(rw.SKP)
	st.TotalSKP += int64(rw.SKP)

	return s.store.UpdateUserStats(st)
}

// ── Course Submission ───────────────────────────────────

// SubmitCourseSession records a course-session completion attempt. The
// server-side first-completion determination is authoritative; the client
// hint is compared for anomaly detection only. A concurrent duplicate first
// completion is detected through the unique index and downgraded to a
// zero-reward review.
func (s *Service) SubmitCourseSession(userID int64, req models.SubmitCourseRequest) (*models.SubmitCourseResponse, error) {
	if err := validateCourseRequest(req); err != nil {
		return nil, err
	}

	if _, clamped := rates.Normalize(req.Difficulty); clamped {
		s.recordClampAnomalies(userID, "", []string{req.Difficulty})
	}

	correctAnswers := 0
	if req.ConfirmationQuizCorrect {
		correctAnswers = 1
	}
	unit := req.Unit
	rec := &models.SessionRecord{
		PublicID:        uuid.NewString(),
		UserID:          userID,
		Kind:            models.SessionKindCourse,
		CategoryID:      req.CategoryID,
		SubcategoryID:   req.SubcategoryID,
		Difficulty:      req.Difficulty,
		TotalQuestions:  1,
		CorrectAnswers:  correctAnswers,
		Accuracy:        reward.Accuracy(correctAnswers, 1),
		DurationSeconds: req.DurationSeconds,
		Unit:            &unit,
	}

	sessionID, err := s.store.InsertCourseSession(rec)
	if err != nil {
		return nil, &PersistenceError{Op: "record course session", Err: err}
	}

	// Re-check the marker immediately before crediting: a concurrent request
	// may have completed the unit since the client loaded it.
	completed, err := s.store.IsUnitCompleted(userID, req.Unit)
	if err != nil {
		return nil, &PersistenceError{Op: "read progress marker", Err: err}
	}
	isFirst := !completed

	rw := reward.CalculateCourse(req.Difficulty, isFirst, req.ConfirmationQuizCorrect, s.rates)

	status := models.SessionStatusFinalized
	if !isFirst {
		status = models.SessionStatusReview
	}
	if err := s.store.FinalizeSession(sessionID, rw.XP, isFirst, status); err != nil {
		if isFirst && isUniqueViolation(err) {
			// Lost the first-completion race: another request already holds
			// the reward-bearing record for this unit. Downgrade post hoc.
			conflict := &RaceConflict{UserID: userID, Unit: unitTag(req.Unit)}
			log.Printf("[progression] %v — downgrading to review", conflict)
			telemetry.RaceConflicts.Inc()

			isFirst = false
			rw = reward.CourseReward{}
			if err := s.store.FinalizeSession(sessionID, 0, false, models.SessionStatusReview); err != nil {
				log.Printf("[progression] downgrade session %d failed: %v", sessionID, err)
			}
		} else {
			log.Printf("[progression] finalize course session %d failed: %v", sessionID, err)
			telemetry.PartialAggregateFailures.WithLabelValues("session").Inc()
		}
	}

	// Compare the client hint against the settled decision, not the pre-race
	// view: a request that lost the race is a review, whatever the client or
	// the earlier marker read believed.
	if req.ClientFirstCompletionHint != nil && *req.ClientFirstCompletionHint != isFirst {
		log.Printf("[progression] user %d unit %s: client hint first_completion=%v disagrees with server %v",
			userID, unitTag(req.Unit), *req.ClientFirstCompletionHint, isFirst)
		if err := s.store.InsertAnomaly(userID, models.WarnHintMismatch, map[string]interface{}{
			"unit":        unitTag(req.Unit),
			"client_hint": *req.ClientFirstCompletionHint,
			"server":      isFirst,
		}); err != nil {
			log.Printf("[progression] record hint anomaly: %v", err)
		}
	}

	// The marker write must be durable before the response goes out, or an
	// immediate duplicate submission would see "not completed" again.
	if isFirst {
		if err := s.store.MarkUnitCompleted(userID, req.Unit); err != nil {
			return nil, &PersistenceError{Op: "write progress marker", Err: err}
		}
	}

	failed := s.applyCourseRollups(userID, rec, rw)

	if rw.SKP > 0 {
		if err := s.store.InsertLedgerEntry(userID, models.LedgerEarned, rw.SKP,
			"course_"+rec.PublicID, "Course session "+unitTag(req.Unit)); err != nil {
			log.Printf("[progression] ledger entry for course %s failed: %v", rec.PublicID, err)
			failed = append(failed, "ledger")
		}
	}

	if len(failed) > 0 {
		pf := &PartialAggregateFailure{Scopes: failed}
		log.Printf("[progression] course %s for user %d: %v", rec.PublicID, userID, pf)
		for _, scope := range failed {
			telemetry.PartialAggregateFailures.WithLabelValues(scope).Inc()
		}
	}

	telemetry.XPAwarded.WithLabelValues(models.SessionKindCourse).Add(float64(rw.XP))
	telemetry.SKPAwarded.WithLabelValues("course").Add(float64(rw.SKP))

	// More conservative than the quiz path: only recompute the streak when
	// today's activity row is already in place.
	go func() {
		if ok, err := s.store.HasActivityOn(userID, todayUTC()); err != nil || !ok {
			return
		}
		s.awardStreakBonus(userID)
	}()

	return &models.SubmitCourseResponse{
		SessionID:         rec.PublicID,
		EarnedXP:          rw.XP,
		SKPEarned:         rw.SKP,
		IsFirstCompletion: isFirst,
	}, nil
}

func (s *Service) applyCourseRollups(userID int64, rec *models.SessionRecord, rw reward.CourseReward) []string {
	var failed []string

	st, err := s.store.GetOrCreateUserStats(userID)
	if err == nil {
		st.TotalXP += int64(rw.XP)
		st.CourseXP += int64(rw.XP)
		st.CourseSessions++
		st.CourseSKP += int64(rw.SKP)
		st.TotalSKP += int64(rw.SKP)
		err = s.store.UpdateUserStats(st)
	}
	if err != nil {
		log.Printf("[progression] global rollup for user %d failed: %v", userID, err)
		failed = append(failed, "global")
	}

	if rec.CategoryID != "" {
		cst, err := s.store.GetOrCreateCategoryStats(userID, rec.CategoryID)
		if err == nil {
			cst.TotalXP += int64(rw.XP)
			err = s.store.UpdateCategoryStats(cst)
		}
		if err != nil {
			log.Printf("[progression] category %s rollup for user %d failed: %v", rec.CategoryID, userID, err)
			failed = append(failed, "category:"+rec.CategoryID)
		}
	}

	if rec.SubcategoryID != "" {
		sst, err := s.store.GetOrCreateSubcategoryStats(userID, rec.SubcategoryID, rec.CategoryID)
		if err == nil {
			sst.TotalXP += int64(rw.XP)
			err = s.store.UpdateSubcategoryStats(sst)
		}
		if err != nil {
			log.Printf("[progression] subcategory %s rollup for user %d failed: %v", rec.SubcategoryID, userID, err)
			failed = append(failed, "subcategory:"+rec.SubcategoryID)
		}
	}

	daily := models.DailyActivity{
		CourseSessions:   1,
		CourseXP:         int64(rw.XP),
		TimeSpentSeconds: rec.DurationSeconds,
	}
	if err := s.store.AddDailyActivity(userID, todayUTC(), daily); err != nil {
		log.Printf("[progression] daily rollup for user %d failed: %v", userID, err)
		failed = append(failed, "daily")
	}

	return failed
}

// ── Course Completion Bonus ─────────────────────────────

// CompleteCourse awards the flat course completion bonus exactly once. The
// claim must be backed by at least one completed progress marker, and the
// completion row guards against double payment.
func (s *Service) CompleteCourse(userID int64, courseID string) (*models.CompleteCourseResponse, error) {
	if courseID == "" {
		return nil, &ValidationError{Field: "course_id", Reason: "required"}
	}

	// A completion claim with no recorded progress is rejected outright;
	// the progress markers are the authority on what was actually done.
	units, err := s.store.CountCompletedUnits(userID, courseID)
	if err != nil {
		return nil, &PersistenceError{Op: "count completed units", Err: err}
	}
	if units == 0 {
		return nil, &ValidationError{Field: "course_id", Reason: "no completed sessions recorded for this course"}
	}

	bonus := s.rates.CourseCompletionXP
	awarded, err := s.store.InsertCourseCompletion(userID, courseID, bonus)
	if err != nil {
		return nil, &PersistenceError{Op: "record course completion", Err: err}
	}
	if !awarded {
		return &models.CompleteCourseResponse{
			CourseID:         courseID,
			AlreadyCompleted: true,
			BadgesAwarded:    []string{},
		}, nil
	}

	st, err := s.store.GetOrCreateUserStats(userID)
	if err == nil {
		st.TotalXP += int64(bonus)
		st.BonusXP += int64(bonus)
		err = s.store.UpdateUserStats(st)
	}
	if err != nil {
		log.Printf("[progression] completion bonus rollup for user %d course %s failed: %v", userID, courseID, err)
		telemetry.PartialAggregateFailures.WithLabelValues("global").Inc()
	}

	telemetry.XPAwarded.WithLabelValues("course_completion").Add(float64(bonus))

	return &models.CompleteCourseResponse{
		CourseID:          courseID,
		CompletionBonusXP: bonus,
		BadgesAwarded:     []string{"course_complete_" + courseID},
	}, nil
}

// ── Streak Bonus ────────────────────────────────────────

// ComputeAndAwardStreakBonus derives the current streak from daily activity
// and credits any newly crossed bonus. "Recompute full amount due, subtract
// already paid" keeps it idempotent under retries and duplicate triggers.
func (s *Service) ComputeAndAwardStreakBonus(userID int64) (*models.StreakBonusResult, error) {
	days, err := s.store.ListRecentDailyActivity(userID, s.streakScanDays)
	if err != nil {
		return nil, fmt.Errorf("list daily activity: %w", err)
	}

	streak := StreakLength(todayUTC(), days)
	if streak == 0 {
		return &models.StreakBonusResult{}, nil
	}

	due := reward.StreakBonusDue(streak, s.rates)
	paid, err := s.store.SumStreakPaid(userID)
	if err != nil {
		return nil, fmt.Errorf("sum paid streak bonus: %w", err)
	}

	newBonus := due - paid
	if newBonus <= 0 {
		return &models.StreakBonusResult{StreakDays: streak}, nil
	}

	source := fmt.Sprintf("streak_%ddays", streak)
	if err := s.store.InsertLedgerEntry(userID, models.LedgerEarned, newBonus, source,
		fmt.Sprintf("Streak bonus for %d consecutive days", streak)); err != nil {
		return nil, fmt.Errorf("credit streak bonus: %w", err)
	}

	st, err := s.store.GetOrCreateUserStats(userID)
	if err == nil {
		st.StreakSKP += int64(newBonus)
		st.TotalSKP += int64(newBonus)
		err = s.store.UpdateUserStats(st)
	}
	if err != nil {
		log.Printf("[progression] streak rollup for user %d failed: %v", userID, err)
		telemetry.PartialAggregateFailures.WithLabelValues("global").Inc()
	}

	telemetry.StreakBonusesPaid.Inc()
	telemetry.SKPAwarded.WithLabelValues("streak").Add(float64(newBonus))

	return &models.StreakBonusResult{StreakDays: streak, NewlyAwardedSKP: newBonus}, nil
}

// awardStreakBonus is the fire-and-forget wrapper for background triggers.
func (s *Service) awardStreakBonus(userID int64) {
	if res, err := s.ComputeAndAwardStreakBonus(userID); err != nil {
		log.Printf("[progression] background streak bonus for user %d failed: %v", userID, err)
	} else if res.NewlyAwardedSKP > 0 {
		log.Printf("[progression] user %d: %d SKP streak bonus at %d days", userID, res.NewlyAwardedSKP, res.StreakDays)
	}
}

// ── Reads ───────────────────────────────────────────────

func (s *Service) GetProgression(userID int64) (*models.ProgressionResponse, error) {
	st, err := s.store.GetOrCreateUserStats(userID)
	if err != nil {
		return nil, err
	}

	days, err := s.store.ListRecentDailyActivity(userID, s.streakScanDays)
	if err != nil {
		return nil, err
	}

	categories, err := s.store.ListCategoryStats(userID)
	if err != nil {
		return nil, err
	}
	subcategories, err := s.store.ListSubcategoryStats(userID)
	if err != nil {
		return nil, err
	}

	if categories == nil {
		categories = []models.ScopeStats{}
	}
	if subcategories == nil {
		subcategories = []models.ScopeStats{}
	}

	return &models.ProgressionResponse{
		Stats:         *st,
		StreakDays:    StreakLength(todayUTC(), days),
		Categories:    categories,
		Subcategories: subcategories,
	}, nil
}

func (s *Service) GetLedger(userID int64, limit int) (*models.LedgerResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.store.ListLedger(userID, limit)
	if err != nil {
		return nil, err
	}
	balance, err := s.store.LedgerBalance(userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.SKPLedgerEntry{}
	}
	return &models.LedgerResponse{Entries: entries, Balance: balance}, nil
}

// ── Helpers ─────────────────────────────────────────────

func (s *Service) recordClampAnomalies(userID int64, sessionPublicID string, difficulties []string) {
	for _, d := range difficulties {
		if err := s.store.InsertAnomaly(userID, models.WarnUnknownDifficulty, map[string]interface{}{
			"difficulty": d,
			"session_id": sessionPublicID,
		}); err != nil {
			log.Printf("[progression] record clamp anomaly: %v", err)
		}
	}
}

func unitTag(u models.UnitKey) string {
	return fmt.Sprintf("%s/%s/%s/%d", u.CourseID, u.GenreID, u.ThemeID, u.SessionNumber)
}

func todayUTC() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
