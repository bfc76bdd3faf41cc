package service

import (
	"math"

	"github.com/ignatij/taskflow/pkg/models"
)

// ComputeProgress derives a completion percentage from a checklist and the
// stored progress of the task's resolved subtasks. With both present each
// contributes half.
func ComputeProgress(checklist []models.ChecklistItem, subtaskProgress []int) int {
	hasChecklist := len(checklist) > 0
	hasSubtasks := len(subtaskProgress) > 0

	var checklistPct, subtaskPct float64
	if hasChecklist {
		done := 0
		for _, item := range checklist {
			if item.IsCompleted {
				done++
			}
		}
		checklistPct = 100 * float64(done) / float64(len(checklist))
	}
	if hasSubtasks {
		sum := 0
		for _, p := range subtaskProgress {
			sum += p
		}
		subtaskPct = float64(sum) / float64(len(subtaskProgress))
	}

	var pct float64
	switch {
	case hasChecklist && hasSubtasks:
		pct = 0.5*checklistPct + 0.5*subtaskPct
	case hasChecklist:
		pct = checklistPct
	case hasSubtasks:
		pct = subtaskPct
	default:
		return 0
	}
	return clampPercent(int(math.Round(pct)))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
