package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/notification"
)

type notificationRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	Type      string      `db:"type"`
	Title     string      `db:"title"`
	Message   string      `db:"message"`
	ProjectID null.String `db:"project_id"`
	RelatedID null.String `db:"related_id"`
	IsRead    bool        `db:"is_read"`
	CreatedAt time.Time   `db:"created_at"`
	ReadAt    null.Time   `db:"read_at"`
}

func (r notificationRow) toNotification() notification.Notification {
	return notification.Notification(r)
}

type notificationRepository struct {
	exec core.DBExecutor
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{exec: exec}
}

func (repo notificationRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps psql "no rows" err to notification.ErrNotFound
func (repo notificationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return notification.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	n.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO notification (id, user_id, type, title, message, project_id, related_id, is_read, created_at, read_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.ProjectID, n.RelatedID, n.IsRead, n.CreatedAt.UTC(), n.ReadAt,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, userID string, limit int, exec ...core.DBExecutor) ([]notification.Notification, error) {
	var rows []notificationRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		"SELECT * FROM notification WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2", userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.toNotification())
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	var n int
	err := repo.getExec(exec).GetContext(ctx, &n,
		"SELECT COUNT(*) FROM notification WHERE user_id = $1 AND NOT is_read", userID)
	if err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return n, nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, id string, exec ...core.DBExecutor) (notification.Notification, error) {
	var r notificationRow
	if err := repo.getExec(exec).GetContext(ctx, &r, "SELECT * FROM notification WHERE id = $1", id); err != nil {
		return notification.Notification{}, repo.trapNoRowsErr(err, "getting notification")
	}
	return r.toNotification(), nil
}

func (repo notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		"UPDATE notification SET is_read = $2, read_at = $3 WHERE id = $1",
		n.ID, n.IsRead, n.ReadAt,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}

func (repo notificationRepository) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		"UPDATE notification SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT is_read",
		userID, at.UTC(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
