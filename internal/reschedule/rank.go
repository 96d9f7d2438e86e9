package reschedule

import "github.com/zulandar/foreman/internal/models"

// MinRankGap is the smallest gap between neighbours before a column must be
// renormalized.
const MinRankGap = 1e-9

// RankBetween returns a rank strictly between prev and next. A nil prev
// places the task at the start of the column, a nil next at the end.
func RankBetween(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return 1
	case prev == nil:
		return *next - 1
	case next == nil:
		return *prev + 1
	}
	return *prev + (*next-*prev)/2
}

// NeedsRenormalize reports whether the gap between prev and next is too
// small for another midpoint insertion.
func NeedsRenormalize(prev, next *float64) bool {
	if prev == nil || next == nil {
		return false
	}
	return *next-*prev < MinRankGap
}

// Renormalize assigns evenly spaced ranks 1..n in column order and returns
// the tasks whose rank changed.
func Renormalize(column []models.Task) []models.Task {
	var changed []models.Task
	for i := range column {
		r := float64(i + 1)
		if column[i].Rank != r {
			column[i].Rank = r
			changed = append(changed, column[i])
		}
	}
	return changed
}

// maxRank returns the highest rank in column, or nil for an empty column.
func maxRank(column []models.Task) *float64 {
	if len(column) == 0 {
		return nil
	}
	m := column[0].Rank
	for _, t := range column[1:] {
		if t.Rank > m {
			m = t.Rank
		}
	}
	return &m
}
