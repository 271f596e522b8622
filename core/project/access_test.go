package project

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/atelier/core/user"
)

func TestAccessPolicy(t *testing.T) {
	student := user.User{ID: "stu-1", Role: user.RoleStudent}
	otherStudent := user.User{ID: "stu-2", Role: user.RoleStudent}
	teacher := user.User{ID: "tea-1", Role: user.RoleTeacher}

	ownPrj := Project{ID: "prj-1", StudentID: student.ID}

	t.Run("create", func(t *testing.T) {
		assert.True(t, CanCreateProject(student))
		assert.False(t, CanCreateProject(teacher))
	})

	t.Run("view", func(t *testing.T) {
		assert.True(t, CanViewProject(student, ownPrj))
		assert.False(t, CanViewProject(otherStudent, ownPrj))
		assert.True(t, CanViewProject(teacher, ownPrj))
	})

	t.Run("edit", func(t *testing.T) {
		assert.True(t, CanEditProject(student, ownPrj))
		assert.False(t, CanEditProject(otherStudent, ownPrj))
		assert.True(t, CanEditProject(teacher, ownPrj))
	})

	t.Run("finalize and feedback are teacher-only", func(t *testing.T) {
		assert.False(t, CanFinalize(student))
		assert.True(t, CanFinalize(teacher))
		assert.False(t, CanGiveFeedback(student))
		assert.True(t, CanGiveFeedback(teacher))
	})

	t.Run("reply", func(t *testing.T) {
		assert.True(t, CanReplyToFeedback(student, ownPrj))
		assert.False(t, CanReplyToFeedback(otherStudent, ownPrj))
		assert.True(t, CanReplyToFeedback(teacher, ownPrj))
	})

	t.Run("delete", func(t *testing.T) {
		assert.True(t, CanDeleteProject(student, ownPrj))
		assert.False(t, CanDeleteProject(otherStudent, ownPrj))
		assert.True(t, CanDeleteProject(teacher, ownPrj))
	})
}
