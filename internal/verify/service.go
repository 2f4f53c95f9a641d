package verify

import (
	"fmt"
	"log"
	"time"

	"github.com/skillpath/backend/internal/models"
	"github.com/skillpath/backend/internal/telemetry"
)

const anomalyWindow = 50

// Service runs integrity verification passes. It is strictly read-only: it
// recomputes what the rollups should say and reports drift, it never repairs.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// VerifyUser recomputes one user's totals from the raw event log and compares
// them against the stored rollups.
func (s *Service) VerifyUser(userID int64) (*models.HealthReport, error) {
	raw, err := s.store.RawUserTotals(userID)
	if err != nil {
		telemetry.IntegrityChecks.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("verify user %d: %w", userID, err)
	}
	stored, err := s.store.StoredUserTotals(userID)
	if err != nil {
		telemetry.IntegrityChecks.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("verify user %d: %w", userID, err)
	}
	anomalies, err := s.store.ListAnomalies(userID, anomalyWindow)
	if err != nil {
		telemetry.IntegrityChecks.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("verify user %d: %w", userID, err)
	}

	report := BuildReport(userID, raw, stored, anomalies, time.Now().UTC())
	if report.Score == 100 {
		telemetry.IntegrityChecks.WithLabelValues("clean").Inc()
	} else {
		telemetry.IntegrityChecks.WithLabelValues("drift").Inc()
		log.Printf("[verify] user %d score %d: %d critical, %d warnings",
			userID, report.Score, len(report.CriticalIssues), len(report.Warnings))
	}
	return report, nil
}

// VerifyAll runs VerifyUser for every user with recorded activity. A failure
// for one user is logged and skipped so a single bad row cannot hide the
// reports for everyone else.
func (s *Service) VerifyAll() ([]*models.HealthReport, error) {
	userIDs, err := s.store.ListActiveUserIDs()
	if err != nil {
		return nil, fmt.Errorf("verify all: %w", err)
	}

	reports := make([]*models.HealthReport, 0, len(userIDs))
	for _, id := range userIDs {
		report, err := s.VerifyUser(id)
		if err != nil {
			log.Printf("[verify] skipping user %d: %v", id, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
