package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/notification"
	"github.com/trezcool/atelier/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("project not found")

	// ErrAlreadyFinalized is returned by repositories when a guarded write
	// loses against a concurrent finalization.
	ErrAlreadyFinalized = errors.New("project already finalized")

	// ErrNotInReview is returned by Repository.FinalizeProject when the
	// compare-and-set on REVIEW fails.
	ErrNotInReview = errors.New("project not under review")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, prj Project, exec ...core.DBExecutor) (Project, error)
		GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (Project, error)
		QueryProjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Project, error)
		// UpdateProjectUnlessFinal persists prj's mutable fields if and only if
		// the stored row is not in FINALIZATION; it returns ErrAlreadyFinalized
		// otherwise. This is the per-row serialization point for every
		// non-finalizing write.
		UpdateProjectUnlessFinal(ctx context.Context, prj Project, exec ...core.DBExecutor) (Project, error)
		// FinalizeProject persists grade/status/progress and upserts the
		// checklist in a single transaction, guarded by a compare-and-set on
		// REVIEW; a losing concurrent call gets ErrNotInReview (or
		// ErrAlreadyFinalized when the winner got there first).
		FinalizeProject(ctx context.Context, prj Project, checklist []ChecklistItem) (Project, error)
		// FixFinalizedProgress repairs finalized rows whose progress is not 100,
		// scoped to ids when given, all rows otherwise. Idempotent.
		FixFinalizedProgress(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		// DeleteProject removes the project and cascades to its deliveries,
		// feedback (and replies) and checklist items.
		DeleteProject(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateDelivery(ctx context.Context, d Delivery, exec ...core.DBExecutor) (Delivery, error)
		QueryDeliveries(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]Delivery, error)
		QueryChecklist(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]ChecklistItem, error)
		CountFeedback(ctx context.Context, projectID string, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, principal user.User, np NewProject) (Project, error)
		Get(ctx context.Context, principal user.User, id string) (Project, error)
		Query(ctx context.Context, principal user.User, ordering ...core.DBOrdering) ([]Project, error)
		QueryUnderReview(ctx context.Context, principal user.User) ([]Project, error)
		QueryOnTime(ctx context.Context, principal user.User) ([]Project, error)
		Update(ctx context.Context, principal user.User, id string, up UpdateProject) (Project, error)
		RequestApproval(ctx context.Context, principal user.User, id string) (Project, error)
		Evaluate(ctx context.Context, principal user.User, id string, ep EvaluateProject) (EvaluatedProject, error)
		Delete(ctx context.Context, principal user.User, id string) error
		AddDelivery(ctx context.Context, principal user.User, nd NewDelivery) (Delivery, error)
		Deliveries(ctx context.Context, principal user.User, projectID string) ([]Delivery, error)
		Checklist(ctx context.Context, principal user.User, projectID string) ([]ChecklistItem, error)
		RefreshProgress(ctx context.Context, id string) (Project, error)
		FixFinalizedProgress(ctx context.Context) (int, error)
	}

	service struct {
		repo     Repository
		usrSvc   user.ServiceInterface
		notifSvc notification.ServiceInterface
		logger   core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	usrSvc user.ServiceInterface,
	notifSvc notification.ServiceInterface,
	logger core.Logger,
) *service {
	return &service{
		repo:     repo,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
		logger:   logger,
	}
}

func (svc *service) Create(ctx context.Context, principal user.User, np NewProject) (Project, error) {
	if !CanCreateProject(principal) {
		return Project{}, core.NewPermissionError("only students can create projects")
	}

	now := time.Now().UTC()
	prj := Project{
		Title:       np.Title,
		Description: np.Description,
		Briefing:    np.Briefing,
		Deadline:    np.Deadline,
		Status:      StatusBriefing,
		Progress:    0,
		StudentID:   principal.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateProject(ctx, prj)
}

func (svc *service) Get(ctx context.Context, principal user.User, id string) (Project, error) {
	prj, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if !CanViewProject(principal, prj) {
		return Project{}, core.NewPermissionError("you may not access this project")
	}
	svc.healProgress(ctx, &prj)
	return prj, nil
}

func (svc *service) Query(ctx context.Context, principal user.User, ordering ...core.DBOrdering) ([]Project, error) {
	filter := new(QueryFilter)
	if principal.IsStudent() {
		filter.StudentID = principal.ID
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}

	projects, err := svc.repo.QueryProjects(ctx, filter, ordering)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying projects")
	}
	svc.healAllProgress(ctx, projects)
	return projects, nil
}

func (svc *service) QueryUnderReview(ctx context.Context, principal user.User) ([]Project, error) {
	if !CanFinalize(principal) {
		return nil, core.NewPermissionError("only teachers can view the review queue")
	}
	return svc.repo.QueryProjects(
		ctx,
		&QueryFilter{Status: StatusReview},
		[]core.DBOrdering{{Field: "deadline", Ascending: true}},
	)
}

func (svc *service) QueryOnTime(ctx context.Context, principal user.User) ([]Project, error) {
	if !CanFinalize(principal) {
		return nil, core.NewPermissionError("only teachers can view this report")
	}
	projects, err := svc.repo.QueryProjects(
		ctx,
		&QueryFilter{Status: StatusFinalization, DeadlineFrom: core.Today()},
		[]core.DBOrdering{{Field: "deadline", Ascending: true}},
	)
	if err != nil {
		return nil, err
	}
	svc.healAllProgress(ctx, projects)
	return projects, nil
}

func (svc *service) Update(ctx context.Context, principal user.User, id string, up UpdateProject) (Project, error) {
	prj, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if !CanEditProject(principal, prj) {
		return Project{}, core.NewPermissionError("you may not edit this project")
	}
	if err := up.Validate(); err != nil {
		return Project{}, err
	}
	// this guard is unconditional: once finalized, not even the owner or a
	// teacher may edit through this path
	if prj.IsFinalized() {
		return Project{}, core.NewConflictError("project is already finalized and can no longer be changed")
	}
	if up.Status != nil && *up.Status == StatusFinalization && !CanFinalize(principal) {
		return Project{}, core.NewPermissionError("only teachers may finalize a project")
	}

	if up.Status != nil {
		prj.Status = *up.Status
	}
	if up.Progress != nil {
		prj.Progress = *up.Progress
	}
	prj.UpdatedAt = time.Now().UTC()

	updated, err := svc.repo.UpdateProjectUnlessFinal(ctx, prj)
	if err == ErrAlreadyFinalized {
		return Project{}, core.NewConflictError("project is already finalized and can no longer be changed")
	}
	return updated, err
}

func (svc *service) RequestApproval(ctx context.Context, principal user.User, id string) (Project, error) {
	prj, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if !(principal.IsStudent() && principal.ID == prj.StudentID) {
		return Project{}, core.NewPermissionError("only the owning student can request a review")
	}
	if prj.IsFinalized() {
		return Project{}, core.NewConflictError("project is already finalized")
	}

	// re-enterable on purpose: a student may resubmit for review any number
	// of times while the project is not finalized
	prj.Status = StatusReview
	prj.UpdatedAt = time.Now().UTC()
	updated, err := svc.repo.UpdateProjectUnlessFinal(ctx, prj)
	if err == ErrAlreadyFinalized {
		return Project{}, core.NewConflictError("project is already finalized")
	}
	if err != nil {
		return Project{}, err
	}

	svc.notifyTeachers(ctx, principal, updated)
	return updated, nil
}

func (svc *service) Evaluate(ctx context.Context, principal user.User, id string, ep EvaluateProject) (EvaluatedProject, error) {
	if !CanFinalize(principal) {
		return EvaluatedProject{}, core.NewPermissionError("only teachers can evaluate projects")
	}
	// guard here too; non-HTTP callers bypass the payload's Validate
	if ep.Grade == nil {
		return EvaluatedProject{}, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: "this field is required"})
	}

	prj, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return EvaluatedProject{}, err
	}
	if prj.IsFinalized() {
		return EvaluatedProject{}, core.NewConflictError("project is already finalized")
	}
	if prj.Status != StatusReview {
		return EvaluatedProject{}, core.NewConflictError("project must be under review before it can be evaluated")
	}

	// grade/finalize always yields full progress, regardless of delivery
	// history; this path never consults ComputeProgress
	prj.Grade = null.Float64From(*ep.Grade)
	prj.Status = StatusFinalization
	prj.Progress = 100
	prj.TeacherID = null.StringFrom(principal.ID)
	prj.UpdatedAt = time.Now().UTC()

	checklist := make([]ChecklistItem, 0, len(ep.Checklist))
	for _, entry := range ep.Checklist {
		checklist = append(checklist, ChecklistItem{
			ID:        entry.ID,
			ProjectID: prj.ID,
			Title:     entry.Title,
			IsDone:    entry.IsDone,
		})
	}

	updated, err := svc.repo.FinalizeProject(ctx, prj, checklist)
	switch err {
	case nil:
	case ErrAlreadyFinalized:
		return EvaluatedProject{}, core.NewConflictError("project is already finalized")
	case ErrNotInReview:
		return EvaluatedProject{}, core.NewConflictError("project is no longer under review")
	default:
		return EvaluatedProject{}, pkgerrors.Wrap(err, "finalizing project")
	}

	svc.notifyStudentApproved(ctx, updated)
	return EvaluatedProject{Message: "project evaluated and approved", Project: updated}, nil
}

func (svc *service) Delete(ctx context.Context, principal user.User, id string) error {
	prj, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if !CanDeleteProject(principal, prj) {
		return core.NewPermissionError("you may not delete this project")
	}
	return svc.repo.DeleteProject(ctx, id)
}

func (svc *service) AddDelivery(ctx context.Context, principal user.User, nd NewDelivery) (Delivery, error) {
	prj, err := svc.repo.GetProject(ctx, nd.ProjectID)
	if err != nil {
		return Delivery{}, err
	}
	if !CanEditProject(principal, prj) {
		return Delivery{}, core.NewPermissionError("you may not attach deliveries to this project")
	}
	if prj.IsFinalized() {
		return Delivery{}, core.NewConflictError("project is already finalized")
	}

	d := Delivery{
		Name:      nd.Name,
		Kind:      nd.Kind,
		Comments:  nd.Comments,
		FileURL:   null.NewString(nd.FileURL, nd.FileURL != ""),
		ProjectID: prj.ID,
		UserID:    principal.ID,
		CreatedAt: time.Now().UTC(),
	}
	d, err = svc.repo.CreateDelivery(ctx, d)
	if err != nil {
		return Delivery{}, pkgerrors.Wrap(err, "creating delivery")
	}

	if _, err := svc.RefreshProgress(ctx, prj.ID); err != nil {
		svc.logger.Error(fmt.Sprintf("refreshing progress for project %s after delivery", prj.ID), err)
	}
	return d, nil
}

func (svc *service) Deliveries(ctx context.Context, principal user.User, projectID string) ([]Delivery, error) {
	prj, err := svc.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !CanViewProject(principal, prj) {
		return nil, core.NewPermissionError("you may not access this project")
	}
	return svc.repo.QueryDeliveries(ctx, projectID)
}

func (svc *service) Checklist(ctx context.Context, principal user.User, projectID string) ([]ChecklistItem, error) {
	prj, err := svc.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !CanViewProject(principal, prj) {
		return nil, core.NewPermissionError("you may not access this project")
	}
	return svc.repo.QueryChecklist(ctx, projectID)
}

// RefreshProgress is the ad-hoc recompute path: it re-derives progress and
// status from the project's deliveries and feedback and persists the result
// only when it advances the stored values.
func (svc *service) RefreshProgress(ctx context.Context, id string) (Project, error) {
	prj, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if prj.IsFinalized() {
		return prj, nil
	}

	deliveries, err := svc.repo.QueryDeliveries(ctx, id)
	if err != nil {
		return Project{}, pkgerrors.Wrap(err, "querying deliveries")
	}
	fbCount, err := svc.repo.CountFeedback(ctx, id)
	if err != nil {
		return Project{}, pkgerrors.Wrap(err, "counting feedback")
	}

	res := ComputeProgress(prj, deliveries, fbCount)
	if res.Progress <= prj.Progress && res.Status == prj.Status {
		return prj, nil // nothing advanced; avoid a redundant write
	}
	if res.Progress > prj.Progress {
		prj.Progress = res.Progress
	}
	prj.Status = res.Status
	prj.UpdatedAt = time.Now().UTC()

	updated, err := svc.repo.UpdateProjectUnlessFinal(ctx, prj)
	if err == ErrAlreadyFinalized {
		// finalized underneath us; the stored row already satisfies the invariant
		return svc.repo.GetProject(ctx, id)
	}
	return updated, err
}

// FixFinalizedProgress is the explicit bulk repair job for finalized rows
// carrying stale progress (records created before the progress invariant
// existed). Idempotent.
func (svc *service) FixFinalizedProgress(ctx context.Context) (int, error) {
	n, err := svc.repo.FixFinalizedProgress(ctx, nil)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "repairing finalized progress")
	}
	if n > 0 {
		svc.logger.Info(fmt.Sprintf("repaired progress on %d finalized project(s)", n))
	}
	return n, nil
}

// healProgress repairs a finalized row with stale progress at read time.
// It is a migration backstop; the explicit repair lives in FixFinalizedProgress.
func (svc *service) healProgress(ctx context.Context, prj *Project) {
	if !prj.IsFinalized() || prj.Progress == 100 {
		return
	}
	if _, err := svc.repo.FixFinalizedProgress(ctx, []string{prj.ID}); err != nil {
		svc.logger.Error(fmt.Sprintf("repairing progress for finalized project %s", prj.ID), err)
		return
	}
	svc.logger.Warn(fmt.Sprintf("repaired stale progress on finalized project %s", prj.ID))
	prj.Progress = 100
}

func (svc *service) healAllProgress(ctx context.Context, projects []Project) {
	for i := range projects {
		svc.healProgress(ctx, &projects[i])
	}
}

func (svc *service) notifyTeachers(ctx context.Context, student user.User, prj Project) {
	teachers, err := svc.usrSvc.Query(ctx, &user.QueryFilter{Role: user.RoleTeacher})
	if err != nil {
		// fan-out is not transactional with the transition; log and move on
		svc.logger.Error(fmt.Sprintf("querying teachers to notify for project %s", prj.ID), err)
		return
	}
	for _, teacher := range teachers {
		svc.notifSvc.Notify(ctx, notification.New{
			UserID:         teacher.ID,
			RecipientEmail: teacher.Email,
			Type:           notification.TypeProjectReviewRequested,
			Title:          "New Approval Request",
			Message:        fmt.Sprintf("%s requested approval for project %q", student.Name, prj.Title),
			ProjectID:      prj.ID,
		})
	}
}

func (svc *service) notifyStudentApproved(ctx context.Context, prj Project) {
	var email string
	if student, err := svc.usrSvc.GetByID(ctx, prj.StudentID); err == nil {
		email = student.Email
	}
	svc.notifSvc.Notify(ctx, notification.New{
		UserID:         prj.StudentID,
		RecipientEmail: email,
		Type:           notification.TypeProjectApproved,
		Title:          "Project Approved!",
		Message:        fmt.Sprintf("Your project %q has been approved! Grade: %v/10", prj.Title, prj.Grade.Float64),
		ProjectID:      prj.ID,
	})
}
