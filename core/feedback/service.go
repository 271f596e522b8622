package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/notification"
	"github.com/trezcool/atelier/core/project"
	"github.com/trezcool/atelier/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("feedback not found")
)

type (
	Repository interface {
		CreateFeedback(ctx context.Context, fb Feedback, exec ...core.DBExecutor) (Feedback, error)
		GetFeedback(ctx context.Context, id string, exec ...core.DBExecutor) (Feedback, error)
		// QueryFeedback returns a project's feedback, oldest first, with
		// replies attached.
		QueryFeedback(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]Feedback, error)
		CreateReply(ctx context.Context, rp Reply, exec ...core.DBExecutor) (Reply, error)
	}

	// projectService is the slice of the project service this package needs.
	projectService interface {
		Get(ctx context.Context, principal user.User, id string) (project.Project, error)
		RefreshProgress(ctx context.Context, id string) (project.Project, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, principal user.User, nf NewFeedback) (Feedback, error)
		Reply(ctx context.Context, principal user.User, nr NewReply) (Reply, error)
		QueryByProject(ctx context.Context, principal user.User, projectID string) ([]Feedback, error)
	}

	service struct {
		repo     Repository
		prjSvc   projectService
		usrSvc   user.ServiceInterface
		notifSvc notification.ServiceInterface
		logger   core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	prjSvc projectService,
	usrSvc user.ServiceInterface,
	notifSvc notification.ServiceInterface,
	logger core.Logger,
) *service {
	return &service{
		repo:     repo,
		prjSvc:   prjSvc,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
		logger:   logger,
	}
}

func (svc *service) Create(ctx context.Context, principal user.User, nf NewFeedback) (Feedback, error) {
	if !project.CanGiveFeedback(principal) {
		return Feedback{}, core.NewPermissionError("only teachers can leave feedback")
	}

	prj, err := svc.prjSvc.Get(ctx, principal, nf.ProjectID)
	if err != nil {
		return Feedback{}, err
	}

	fb := Feedback{
		ProjectID: prj.ID,
		UserID:    principal.ID,
		Comment:   nf.Comment,
		CreatedAt: time.Now().UTC(),
	}
	fb, err = svc.repo.CreateFeedback(ctx, fb)
	if err != nil {
		return Feedback{}, pkgerrors.Wrap(err, "creating feedback")
	}

	svc.notifyUser(ctx, prj.StudentID, notification.New{
		Type:      notification.TypeFeedbackReceived,
		Title:     "New Feedback",
		Message:   fmt.Sprintf("%s left feedback on your project %q", principal.Name, prj.Title),
		ProjectID: prj.ID,
		RelatedID: fb.ID,
	})

	// feedback raises the progress floor
	if _, err := svc.prjSvc.RefreshProgress(ctx, prj.ID); err != nil {
		svc.logger.Error("refreshing progress after feedback", pkgerrors.Wrap(err, prj.ID))
	}
	return fb, nil
}

func (svc *service) Reply(ctx context.Context, principal user.User, nr NewReply) (Reply, error) {
	fb, err := svc.repo.GetFeedback(ctx, nr.FeedbackID)
	if err != nil {
		return Reply{}, err
	}
	prj, err := svc.prjSvc.Get(ctx, principal, fb.ProjectID)
	if err != nil {
		return Reply{}, err
	}
	if !project.CanReplyToFeedback(principal, prj) {
		return Reply{}, core.NewPermissionError("you may not reply to this feedback")
	}

	rp := Reply{
		FeedbackID: fb.ID,
		UserID:     principal.ID,
		Comment:    nr.Comment,
		CreatedAt:  time.Now().UTC(),
	}
	rp, err = svc.repo.CreateReply(ctx, rp)
	if err != nil {
		return Reply{}, pkgerrors.Wrap(err, "creating reply")
	}

	// cross-notify: the student's reply goes to the feedback's author, a
	// teacher's reply goes to the project's student. A teacher replying to
	// their own feedback still notifies the student, never themselves.
	recipientID := fb.UserID
	if principal.IsTeacher() {
		recipientID = prj.StudentID
	}
	if recipientID != principal.ID {
		svc.notifyUser(ctx, recipientID, notification.New{
			Type:      notification.TypeFeedbackReceived,
			Title:     "New Reply",
			Message:   fmt.Sprintf("%s replied to feedback on project %q", principal.Name, prj.Title),
			ProjectID: prj.ID,
			RelatedID: fb.ID,
		})
	}
	return rp, nil
}

func (svc *service) QueryByProject(ctx context.Context, principal user.User, projectID string) ([]Feedback, error) {
	if _, err := svc.prjSvc.Get(ctx, principal, projectID); err != nil {
		return nil, err
	}
	return svc.repo.QueryFeedback(ctx, projectID)
}

func (svc *service) notifyUser(ctx context.Context, userID string, nn notification.New) {
	nn.UserID = userID
	if usr, err := svc.usrSvc.GetByID(ctx, userID); err == nil {
		nn.RecipientEmail = usr.Email
	}
	svc.notifSvc.Notify(ctx, nn)
}
