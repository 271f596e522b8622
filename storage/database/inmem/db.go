package inmemdb

import (
	"sync"

	"github.com/trezcool/atelier/core/feedback"
	"github.com/trezcool/atelier/core/notification"
	"github.com/trezcool/atelier/core/project"
	"github.com/trezcool/atelier/core/user"
)

// DB is a mutex-guarded in-memory store. It backs tests and local runs
// without Postgres; the compare-and-set guards behave like the SQL ones.
type DB struct {
	user         *userTable
	project      *projectTable
	delivery     *deliveryTable
	checklist    *checklistTable
	feedback     *feedbackTable
	reply        *replyTable
	notification *notificationTable
}

func NewDB() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		project:      &projectTable{table: make(map[string]*project.Project)},
		delivery:     &deliveryTable{table: make(map[string]*project.Delivery)},
		checklist:    &checklistTable{table: make(map[string]*project.ChecklistItem)},
		feedback:     &feedbackTable{table: make(map[string]*feedback.Feedback)},
		reply:        &replyTable{table: make(map[string]*feedback.Reply)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}

type userTable struct {
	mutex sync.RWMutex
	table map[string]*user.User
}

type projectTable struct {
	mutex sync.RWMutex
	table map[string]*project.Project
}

type deliveryTable struct {
	mutex sync.RWMutex
	table map[string]*project.Delivery
}

type checklistTable struct {
	mutex sync.RWMutex
	table map[string]*project.ChecklistItem
}

type feedbackTable struct {
	mutex sync.RWMutex
	table map[string]*feedback.Feedback
}

type replyTable struct {
	mutex sync.RWMutex
	table map[string]*feedback.Reply
}

type notificationTable struct {
	mutex sync.RWMutex
	table map[string]*notification.Notification
}
