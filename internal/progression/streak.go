package progression

import (
	"time"

	"github.com/skillpath/backend/internal/models"
)

const dateLayout = "2006-01-02"

// StreakLength walks backwards from today one calendar day at a time and
// counts consecutive days with at least one quiz or course session. A today
// with no activity short-circuits to 0 — no bonus computation is needed.
func StreakLength(today time.Time, days []models.DailyActivity) int {
	sessions := make(map[string]int, len(days))
	for _, d := range days {
		sessions[d.Date.Format(dateLayout)] += d.Sessions()
	}

	streak := 0
	cursor := today
	for sessions[cursor.Format(dateLayout)] > 0 {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}
