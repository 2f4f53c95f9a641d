package progression

import "github.com/skillpath/backend/internal/models"

// scopeDelta is the increment one quiz session contributes to a single
// category or subcategory rollup row.
type scopeDelta struct {
	xp       int64
	answered int
	correct  int
	category string
}

// groupAnswerDeltas splits a session's answers into per-category and
// per-subcategory deltas. Each delta carries only the XP and answer counts
// attributable to its own scope, so a session spanning K categories and M
// subcategories produces exactly K + M deltas whose XP each sum to the
// session's base XP.
func groupAnswerDeltas(answers []models.AnswerRecord) (byCategory, bySubcategory map[string]*scopeDelta) {
	byCategory = map[string]*scopeDelta{}
	bySubcategory = map[string]*scopeDelta{}

	for _, a := range answers {
		c, ok := byCategory[a.CategoryID]
		if !ok {
			c = &scopeDelta{}
			byCategory[a.CategoryID] = c
		}
		sub, ok := bySubcategory[a.SubcategoryID]
		if !ok {
			sub = &scopeDelta{category: a.CategoryID}
			bySubcategory[a.SubcategoryID] = sub
		}
		c.xp += int64(a.EarnedXP)
		sub.xp += int64(a.EarnedXP)
		c.answered++
		sub.answered++
		if a.Correct {
			c.correct++
			sub.correct++
		}
	}
	return byCategory, bySubcategory
}
