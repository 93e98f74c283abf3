package model

import "sort"

// priorityRank orders High < Medium < Low; unknown values sort last.
func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// DisplayLess is the presentation ordering: incomplete before completed, then
// by priority, then due date ascending (tasks without one last), then creation
// time descending as the final tiebreak.
func DisplayLess(a, b *Task) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}
	if ra, rb := priorityRank(a.Priority), priorityRank(b.Priority); ra != rb {
		return ra < rb
	}
	switch {
	case a.DueDate != nil && b.DueDate == nil:
		return true
	case a.DueDate == nil && b.DueDate != nil:
		return false
	case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
		return a.DueDate.Before(*b.DueDate)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// SortForDisplay orders tasks in place per DisplayLess.
func SortForDisplay(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return DisplayLess(&tasks[i], &tasks[j])
	})
}
