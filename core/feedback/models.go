package feedback

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/atelier/core"
)

// Feedback is a teacher's comment on a project. Replies hang off a single
// feedback and never nest further.
type Feedback struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"` // UTC
	Replies   []Reply   `json:"replies"`
}

type Reply struct {
	ID         string    `json:"id"`
	FeedbackID string    `json:"feedback_id"`
	UserID     string    `json:"user_id"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// NewFeedback contains information needed to leave feedback on a project.
type NewFeedback struct {
	ProjectID string `json:"project_id" validate:"required"`
	Comment   string `json:"comment" validate:"required"`
}

func (nf *NewFeedback) Validate(validate *validator.Validate) error {
	nf.Comment = core.CleanString(nf.Comment)
	return validate.Struct(nf)
}

// NewReply contains information needed to reply to a feedback. The reply is
// always persisted server-side, whatever the client does with it locally.
type NewReply struct {
	FeedbackID string `json:"feedback_id" validate:"required"`
	Comment    string `json:"comment" validate:"required"`
}

func (nr *NewReply) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}
