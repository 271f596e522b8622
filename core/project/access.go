package project

import "github.com/trezcool/atelier/core/user"

// Authorization policy for lifecycle actions. All role/ownership decisions
// live here; handlers and services never check roles inline.

func CanCreateProject(principal user.User) bool {
	return principal.IsStudent()
}

func CanViewProject(principal user.User, prj Project) bool {
	return principal.IsTeacher() || principal.ID == prj.StudentID
}

func CanEditProject(principal user.User, prj Project) bool {
	return principal.IsTeacher() || (principal.IsStudent() && principal.ID == prj.StudentID)
}

func CanFinalize(principal user.User) bool {
	return principal.IsTeacher()
}

func CanGiveFeedback(principal user.User) bool {
	return principal.IsTeacher()
}

func CanReplyToFeedback(principal user.User, prj Project) bool {
	return principal.IsTeacher() || (principal.IsStudent() && principal.ID == prj.StudentID)
}

// CanDeleteProject lets any teacher delete any project, not only ones they
// supervise; students may only delete their own. The teacher-wide permission
// is kept from the legacy behavior (see DESIGN.md) and is trivially
// tightened here if that turns out unintended.
func CanDeleteProject(principal user.User, prj Project) bool {
	return principal.IsTeacher() || (principal.IsStudent() && principal.ID == prj.StudentID)
}
