// Package rank holds the domain types shared by the leaderboard read path,
// the score aggregator, and reward settlement.
package rank

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stride-lab/project-stride/internal/core/period"
)

// Category partitions scores within a period by activity device type.
type Category int

const (
	CategoryRun      Category = 0
	CategoryRowing   Category = 1
	CategoryBicycle  Category = 2
	CategoryBracelet Category = 3
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c >= CategoryRun && c <= CategoryBracelet
}

func (c Category) String() string {
	switch c {
	case CategoryRun:
		return "run"
	case CategoryRowing:
		return "rowing"
	case CategoryBicycle:
		return "bicycle"
	case CategoryBracelet:
		return "bracelet"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Scope identifies one board: every row in it competes for the same ranks.
type Scope struct {
	Kind     period.Kind
	PeriodID int
	Category Category
}

// Key identifies one participant's accumulator row within a scope.
type Key struct {
	Scope
	UserID int64
}

// Row is one participant's running total as stored.
type Row struct {
	UserID    int64
	Score     decimal.Decimal
	UpdatedAt time.Time
}

// Entry is a ranked participant. Rank follows standard competition ranking:
// equal scores share a rank and the next distinct score resumes at
// (count of strictly better entries) + 1.
type Entry struct {
	UserID int64           `json:"user_id"`
	Score  decimal.Decimal `json:"score"`
	Rank   int             `json:"rank"`
}

// Rank assigns competition ranks to rows already ordered by score descending
// with ties broken by earliest update (first to reach a score ranks higher).
func Rank(rows []Row) []Entry {
	entries := make([]Entry, 0, len(rows))
	lastRank := 0
	var lastScore decimal.Decimal
	for i, row := range rows {
		if i == 0 || !row.Score.Equal(lastScore) {
			lastRank = i + 1
			lastScore = row.Score
		}
		entries = append(entries, Entry{UserID: row.UserID, Score: row.Score, Rank: lastRank})
	}
	return entries
}

// RankFromCount derives a single participant's competition rank from the
// number of participants with a strictly greater score.
func RankFromCount(countGreater int) int {
	return countGreater + 1
}
