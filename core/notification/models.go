package notification

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Notification types.
const (
	TypeProjectApproved        = "PROJECT_APPROVED"
	TypeFeedbackReceived       = "FEEDBACK_RECEIVED"
	TypeProjectReviewRequested = "PROJECT_REVIEW_REQUESTED"
	TypeGradePublished         = "GRADE_PUBLISHED"
)

// Notification is created only by the dispatcher as a side effect of a
// lifecycle transition, and mutated only by the mark-read operations.
type Notification struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Type      string      `json:"type"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	ProjectID null.String `json:"project_id"`
	RelatedID null.String `json:"related_id"`
	IsRead    bool        `json:"is_read"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	ReadAt    null.Time   `json:"read_at"`
}

// New describes a notification owed to a user. RecipientEmail is optional;
// when set, a copy of the notification is emailed.
type New struct {
	UserID         string
	RecipientEmail string
	Type           string
	Title          string
	Message        string
	ProjectID      string
	RelatedID      string
}

// Inbox is the per-user notification listing.
type Inbox struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
