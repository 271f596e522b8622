package notification

import (
	"context"
	"errors"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/user"
)

// listCap bounds ListForUser to the most recent notifications.
const listCap = 50

var (
	// errors
	ErrNotFound = errors.New("notification not found")
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		// QueryNotifications returns a user's notifications, most recent first,
		// at most limit entries.
		QueryNotifications(ctx context.Context, userID string, limit int, exec ...core.DBExecutor) ([]Notification, error)
		CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
		GetNotification(ctx context.Context, id string, exec ...core.DBExecutor) (Notification, error)
		UpdateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		// Notify records a notification. It is fire-and-forget: failures are
		// logged, never propagated, so a dispatch problem can never roll back
		// the transition that triggered it.
		Notify(ctx context.Context, nn New)
		ListForUser(ctx context.Context, userID string) (Inbox, error)
		MarkRead(ctx context.Context, principal user.User, id string) (Notification, error)
		MarkAllRead(ctx context.Context, principal user.User) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) *service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *service) Notify(ctx context.Context, nn New) {
	n := Notification{
		UserID:    nn.UserID,
		Type:      nn.Type,
		Title:     nn.Title,
		Message:   nn.Message,
		ProjectID: null.NewString(nn.ProjectID, nn.ProjectID != ""),
		RelatedID: null.NewString(nn.RelatedID, nn.RelatedID != ""),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := svc.repo.CreateNotification(ctx, n); err != nil {
		svc.logger.Error("recording notification", pkgerrors.Wrap(err, nn.Type))
		return
	}

	if svc.mailSvc != nil && nn.RecipientEmail != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Address: nn.RecipientEmail}},
			Subject:      nn.Title,
			TemplateName: "notification",
			TemplateData: nn,
		})
	}
}

func (svc *service) ListForUser(ctx context.Context, userID string) (Inbox, error) {
	notifs, err := svc.repo.QueryNotifications(ctx, userID, listCap)
	if err != nil {
		return Inbox{}, pkgerrors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []Notification{}
	}
	unread, err := svc.repo.CountUnread(ctx, userID)
	if err != nil {
		return Inbox{}, pkgerrors.Wrap(err, "counting unread notifications")
	}
	return Inbox{Notifications: notifs, UnreadCount: unread}, nil
}

func (svc *service) MarkRead(ctx context.Context, principal user.User, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != principal.ID {
		return Notification{}, core.NewPermissionError("you may not modify this notification")
	}
	n.IsRead = true
	n.ReadAt = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateNotification(ctx, n)
}

func (svc *service) MarkAllRead(ctx context.Context, principal user.User) error {
	_, err := svc.repo.MarkAllNotificationsRead(ctx, principal.ID, time.Now().UTC())
	return pkgerrors.Wrap(err, "marking notifications read")
}
