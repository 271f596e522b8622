package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/feedback"
)

type feedbackRow struct {
	ID        string    `db:"id"`
	ProjectID string    `db:"project_id"`
	UserID    string    `db:"user_id"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
}

func (r feedbackRow) toFeedback() feedback.Feedback {
	return feedback.Feedback{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		UserID:    r.UserID,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

type replyRow struct {
	ID         string    `db:"id"`
	FeedbackID string    `db:"feedback_id"`
	UserID     string    `db:"user_id"`
	Comment    string    `db:"comment"`
	CreatedAt  time.Time `db:"created_at"`
}

type feedbackRepository struct {
	exec core.DBExecutor
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(exec core.DBExecutor) *feedbackRepository {
	return &feedbackRepository{exec: exec}
}

func (repo feedbackRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps psql "no rows" err to feedback.ErrNotFound
func (repo feedbackRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return feedback.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo feedbackRepository) CreateFeedback(ctx context.Context, fb feedback.Feedback, exec ...core.DBExecutor) (feedback.Feedback, error) {
	fb.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		"INSERT INTO feedback (id, project_id, user_id, comment, created_at) VALUES ($1, $2, $3, $4, $5)",
		fb.ID, fb.ProjectID, fb.UserID, fb.Comment, fb.CreatedAt.UTC(),
	)
	if err != nil {
		return feedback.Feedback{}, errors.Wrap(err, "inserting feedback")
	}
	return fb, nil
}

func (repo feedbackRepository) GetFeedback(ctx context.Context, id string, exec ...core.DBExecutor) (feedback.Feedback, error) {
	var r feedbackRow
	if err := repo.getExec(exec).GetContext(ctx, &r, "SELECT * FROM feedback WHERE id = $1", id); err != nil {
		return feedback.Feedback{}, repo.trapNoRowsErr(err, "getting feedback")
	}
	fb := r.toFeedback()
	replies, err := repo.queryReplies(ctx, repo.getExec(exec), []string{fb.ID})
	if err != nil {
		return feedback.Feedback{}, err
	}
	fb.Replies = replies[fb.ID]
	return fb, nil
}

func (repo feedbackRepository) QueryFeedback(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]feedback.Feedback, error) {
	var rows []feedbackRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		"SELECT * FROM feedback WHERE project_id = $1 ORDER BY created_at ASC", projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying feedback")
	}
	if len(rows) == 0 {
		return []feedback.Feedback{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	replies, err := repo.queryReplies(ctx, repo.getExec(exec), ids)
	if err != nil {
		return nil, err
	}

	fbs := make([]feedback.Feedback, 0, len(rows))
	for _, r := range rows {
		fb := r.toFeedback()
		fb.Replies = replies[fb.ID]
		fbs = append(fbs, fb)
	}
	return fbs, nil
}

func (repo feedbackRepository) CreateReply(ctx context.Context, rp feedback.Reply, exec ...core.DBExecutor) (feedback.Reply, error) {
	rp.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		"INSERT INTO feedback_reply (id, feedback_id, user_id, comment, created_at) VALUES ($1, $2, $3, $4, $5)",
		rp.ID, rp.FeedbackID, rp.UserID, rp.Comment, rp.CreatedAt.UTC(),
	)
	if err != nil {
		return feedback.Reply{}, errors.Wrap(err, "inserting reply")
	}
	return rp, nil
}

func (repo feedbackRepository) queryReplies(ctx context.Context, exec core.DBExecutor, feedbackIDs []string) (map[string][]feedback.Reply, error) {
	holders := make([]string, 0, len(feedbackIDs))
	args := make([]interface{}, 0, len(feedbackIDs))
	for _, id := range feedbackIDs {
		args = append(args, id)
		holders = append(holders, "$"+itoa(len(args)))
	}

	var rows []replyRow
	err := exec.SelectContext(ctx, &rows,
		"SELECT * FROM feedback_reply WHERE feedback_id IN ("+strings.Join(holders, ",")+") ORDER BY created_at ASC",
		args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying replies")
	}

	byFeedback := make(map[string][]feedback.Reply, len(feedbackIDs))
	for _, r := range rows {
		byFeedback[r.FeedbackID] = append(byFeedback[r.FeedbackID], feedback.Reply(r))
	}
	return byFeedback, nil
}
