package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/feedback"
)

type feedbackRepository struct {
	db *DB
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *DB) *feedbackRepository {
	return &feedbackRepository{db: db}
}

func (repo *feedbackRepository) replies(feedbackID string) []feedback.Reply {
	repo.db.reply.mutex.RLock()
	defer repo.db.reply.mutex.RUnlock()

	replies := make([]feedback.Reply, 0)
	for _, rp := range repo.db.reply.table {
		if rp.FeedbackID == feedbackID {
			replies = append(replies, *rp)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].CreatedAt.Before(replies[j].CreatedAt) })
	return replies
}

func (repo *feedbackRepository) CreateFeedback(ctx context.Context, fb feedback.Feedback, exec ...core.DBExecutor) (feedback.Feedback, error) {
	repo.db.feedback.mutex.Lock()
	defer repo.db.feedback.mutex.Unlock()

	fb.ID = uuid.New().String()
	repo.db.feedback.table[fb.ID] = &fb
	return fb, nil
}

func (repo *feedbackRepository) GetFeedback(ctx context.Context, id string, exec ...core.DBExecutor) (feedback.Feedback, error) {
	repo.db.feedback.mutex.RLock()
	fb, ok := repo.db.feedback.table[id]
	repo.db.feedback.mutex.RUnlock()

	if !ok {
		return feedback.Feedback{}, feedback.ErrNotFound
	}
	out := *fb
	out.Replies = repo.replies(id)
	return out, nil
}

func (repo *feedbackRepository) QueryFeedback(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]feedback.Feedback, error) {
	repo.db.feedback.mutex.RLock()
	fbs := make([]feedback.Feedback, 0)
	for _, fb := range repo.db.feedback.table {
		if fb.ProjectID == projectID {
			fbs = append(fbs, *fb)
		}
	}
	repo.db.feedback.mutex.RUnlock()

	sort.Slice(fbs, func(i, j int) bool { return fbs[i].CreatedAt.Before(fbs[j].CreatedAt) })
	for i := range fbs {
		fbs[i].Replies = repo.replies(fbs[i].ID)
	}
	return fbs, nil
}

func (repo *feedbackRepository) CreateReply(ctx context.Context, rp feedback.Reply, exec ...core.DBExecutor) (feedback.Reply, error) {
	repo.db.reply.mutex.Lock()
	defer repo.db.reply.mutex.Unlock()

	rp.ID = uuid.New().String()
	repo.db.reply.table[rp.ID] = &rp
	return rp, nil
}
