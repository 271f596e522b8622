package project

// ProgressResult is what the stored progress/status should advance to.
type ProgressResult struct {
	Progress int
	Status   Status
}

// ComputeProgress derives a project's progress and suggested status from its
// delivery and feedback facts. It is pure and used only on ad-hoc recompute
// paths; evaluate never consults it (finalizing always forces 100).
//
// Rules, in order, each raising the floor:
//   - FINALIZATION is terminal: 100, nothing else applies.
//   - a briefing document: >= 25, BRIEFING advances to PROTOTYPE.
//   - a real deliverable:  >= 50, PROTOTYPE advances to REVIEW.
//   - any feedback:        >= 75.
//
// Callers persist the result only when it advances the stored values;
// a computed value below the stored progress is never written back.
func ComputeProgress(prj Project, deliveries []Delivery, feedbackCount int) ProgressResult {
	if prj.IsFinalized() {
		return ProgressResult{Progress: 100, Status: StatusFinalization}
	}

	var hasBriefingDoc, hasDeliverable bool
	for _, d := range deliveries {
		if d.IsBriefingDoc() {
			hasBriefingDoc = true
		} else {
			hasDeliverable = true
		}
	}

	res := ProgressResult{Status: prj.Status}
	if hasBriefingDoc {
		res.Progress = 25
		if res.Status == StatusBriefing {
			res.Status = StatusPrototype
		}
	}
	if hasDeliverable {
		res.Progress = 50
		if res.Status == StatusPrototype {
			res.Status = StatusReview
		}
	}
	if feedbackCount > 0 {
		res.Progress = 75
	}
	return res
}
