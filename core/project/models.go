package project

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/atelier/core"
)

// Project lifecycle statuses. FINALIZATION is terminal: no operation may
// move a project out of it.
type Status string

const (
	StatusBriefing     Status = "BRIEFING"
	StatusPrototype    Status = "PROTOTYPE"
	StatusReview       Status = "REVIEW"
	StatusFinalization Status = "FINALIZATION"
)

var AllStatuses = []Status{StatusBriefing, StatusPrototype, StatusReview, StatusFinalization}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Delivery kinds. The legacy data encoded the kind in the delivery name
// ("Briefing - *" marked a briefing attachment); the kind column is now the
// source of truth and the prefix is only recognized for payloads that omit it.
type DeliveryKind string

const (
	KindBriefingDoc DeliveryKind = "BRIEFING_DOC"
	KindDeliverable DeliveryKind = "DELIVERABLE"

	briefingNamePrefix = "Briefing - "
)

// KindFromName maps a legacy delivery name to a kind.
func KindFromName(name string) DeliveryKind {
	if strings.HasPrefix(name, briefingNamePrefix) {
		return KindBriefingDoc
	}
	return KindDeliverable
}

type Project struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Briefing    string       `json:"briefing"`
	Deadline    core.Date    `json:"deadline"`
	Status      Status       `json:"status"`
	Progress    int          `json:"progress"`
	Grade       null.Float64 `json:"grade"`
	StudentID   string       `json:"student_id"`
	TeacherID   null.String  `json:"teacher_id"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

func (p *Project) IsFinalized() bool { return p.Status == StatusFinalization }

// Delivery is append-only: never updated nor deleted on its own, only
// cascade-deleted with its project.
type Delivery struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Kind      DeliveryKind `json:"kind"`
	Comments  string       `json:"comments"`
	FileURL   null.String  `json:"file_url"`
	ProjectID string       `json:"project_id"`
	UserID    string       `json:"user_id"`
	CreatedAt time.Time    `json:"created_at"` // UTC
}

func (d *Delivery) IsBriefingDoc() bool { return d.Kind == KindBriefingDoc }

// ChecklistItem is written only by the evaluate transition.
type ChecklistItem struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	IsDone    bool   `json:"is_done"`
}

// NewProject contains information needed to create a new Project.
type NewProject struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Briefing    string    `json:"briefing"`
	Deadline    core.Date `json:"deadline"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	np.Briefing = core.CleanString(np.Briefing)

	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.Deadline.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "deadline", Error: "this field is required"})
	}
	return nil
}

// UpdateProject is the generic-edit payload; only status and progress may
// be edited through this path.
type UpdateProject struct {
	Status   *Status `json:"status"`
	Progress *int    `json:"progress"`
}

// DecodeUpdateProject strictly decodes an UpdateProject payload; any field
// outside {status, progress} is a validation error.
func DecodeUpdateProject(r io.Reader) (UpdateProject, error) {
	var up UpdateProject
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&up); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			return up, core.NewValidationError(errors.New("only status and progress may be edited"))
		}
		return up, core.NewValidationError(errors.Wrap(err, "malformed payload"))
	}
	return up, nil
}

func (up *UpdateProject) Validate() error {
	if up.Status != nil && !up.Status.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "unknown status"})
	}
	if up.Progress != nil && (*up.Progress < 0 || *up.Progress > 100) {
		return core.NewValidationError(nil, core.FieldError{Field: "progress", Error: "progress must be between 0 and 100"})
	}
	return nil
}

func (up *UpdateProject) IsEmpty() bool { return up.Status == nil && up.Progress == nil }

// ChecklistEntry is one evaluate-payload checklist line; an entry carrying an
// id updates the existing item, one without inserts a new item.
type ChecklistEntry struct {
	ID     string `json:"id"`
	Title  string `json:"title" validate:"required"`
	IsDone bool   `json:"is_done"`
}

// EvaluateProject is the grade-and-finalize payload.
type EvaluateProject struct {
	Grade     *float64         `json:"grade" validate:"required,min=0,max=10"`
	Checklist []ChecklistEntry `json:"checklist" validate:"omitempty,dive"`
}

func (ep *EvaluateProject) Validate(validate *validator.Validate) error {
	for i := range ep.Checklist {
		ep.Checklist[i].Title = core.CleanString(ep.Checklist[i].Title)
	}
	return validate.Struct(ep)
}

// EvaluatedProject is the evaluate result: the finalized project plus a
// confirmation message for the caller.
type EvaluatedProject struct {
	Message string  `json:"message"`
	Project Project `json:"project"`
}

// NewDelivery contains information needed to attach a delivery to a project.
type NewDelivery struct {
	ProjectID string       `json:"project_id" validate:"required"`
	Name      string       `json:"name" validate:"required"`
	Kind      DeliveryKind `json:"kind" validate:"omitempty,oneof=BRIEFING_DOC DELIVERABLE"`
	Comments  string       `json:"comments"`
	FileURL   string       `json:"file_url" validate:"omitempty,url"`
}

func (nd *NewDelivery) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	nd.Comments = core.CleanString(nd.Comments)

	if err := validate.Struct(nd); err != nil {
		return err
	}
	if nd.Kind == "" {
		// legacy clients do not send a kind; fall back to the name convention
		nd.Kind = KindFromName(nd.Name)
	}
	return nil
}

// QueryFilter applies AND on its set fields.
type QueryFilter struct {
	StudentID    string
	Status       Status
	DeadlineFrom core.Date
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.Status == "" && qf.DeadlineFrom.IsZero()
}
