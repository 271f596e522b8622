package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/project"
)

type projectRepository struct {
	db *DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo *projectRepository) CreateProject(ctx context.Context, prj project.Project, exec ...core.DBExecutor) (project.Project, error) {
	repo.db.project.mutex.Lock()
	defer repo.db.project.mutex.Unlock()

	prj.ID = uuid.New().String()
	repo.db.project.table[prj.ID] = &prj
	return prj, nil
}

func (repo *projectRepository) GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (project.Project, error) {
	repo.db.project.mutex.RLock()
	defer repo.db.project.mutex.RUnlock()

	if prj, ok := repo.db.project.table[id]; ok {
		return *prj, nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter *project.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Project, error) {
	repo.db.project.mutex.RLock()
	defer repo.db.project.mutex.RUnlock()

	projects := make([]project.Project, 0, len(repo.db.project.table))
	for _, prj := range repo.db.project.table {
		if filter != nil {
			if filter.StudentID != "" && prj.StudentID != filter.StudentID {
				continue
			}
			if filter.Status != "" && prj.Status != filter.Status {
				continue
			}
			if !filter.DeadlineFrom.IsZero() && prj.Deadline.Before(filter.DeadlineFrom.Time) {
				continue
			}
		}
		projects = append(projects, *prj)
	}
	sortProjects(projects, ordering)
	return projects, nil
}

func sortProjects(projects []project.Project, ordering []core.DBOrdering) {
	less := func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) }
	if len(ordering) > 0 {
		ord := ordering[0]
		switch ord.Field {
		case "deadline":
			less = func(i, j int) bool {
				if ord.Ascending {
					return projects[i].Deadline.Before(projects[j].Deadline.Time)
				}
				return projects[i].Deadline.After(projects[j].Deadline.Time)
			}
		case "created_at":
			less = func(i, j int) bool {
				if ord.Ascending {
					return projects[i].CreatedAt.Before(projects[j].CreatedAt)
				}
				return projects[i].CreatedAt.After(projects[j].CreatedAt)
			}
		}
	}
	sort.Slice(projects, less)
}

func (repo *projectRepository) UpdateProjectUnlessFinal(ctx context.Context, prj project.Project, exec ...core.DBExecutor) (project.Project, error) {
	repo.db.project.mutex.Lock()
	defer repo.db.project.mutex.Unlock()

	current, ok := repo.db.project.table[prj.ID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	if current.IsFinalized() {
		return project.Project{}, project.ErrAlreadyFinalized
	}
	// immutable columns survive whatever the caller sends
	prj.Grade = current.Grade
	prj.TeacherID = current.TeacherID
	prj.StudentID = current.StudentID
	prj.CreatedAt = current.CreatedAt
	repo.db.project.table[prj.ID] = &prj
	return prj, nil
}

func (repo *projectRepository) FinalizeProject(ctx context.Context, prj project.Project, checklist []project.ChecklistItem) (project.Project, error) {
	repo.db.project.mutex.Lock()
	defer repo.db.project.mutex.Unlock()

	current, ok := repo.db.project.table[prj.ID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	if current.IsFinalized() {
		return project.Project{}, project.ErrAlreadyFinalized
	}
	if current.Status != project.StatusReview {
		return project.Project{}, project.ErrNotInReview
	}
	repo.db.project.table[prj.ID] = &prj

	repo.db.checklist.mutex.Lock()
	defer repo.db.checklist.mutex.Unlock()
	for i := range checklist {
		item := checklist[i]
		item.ProjectID = prj.ID
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		repo.db.checklist.table[item.ID] = &item
	}
	return prj, nil
}

func (repo *projectRepository) FixFinalizedProgress(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.project.mutex.Lock()
	defer repo.db.project.mutex.Unlock()

	scoped := make(map[string]bool, len(ids))
	for _, id := range ids {
		scoped[id] = true
	}

	var n int
	for _, prj := range repo.db.project.table {
		if len(ids) > 0 && !scoped[prj.ID] {
			continue
		}
		if prj.IsFinalized() && prj.Progress != 100 {
			prj.Progress = 100
			n++
		}
	}
	return n, nil
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.project.mutex.Lock()
	defer repo.db.project.mutex.Unlock()

	if _, ok := repo.db.project.table[id]; !ok {
		return project.ErrNotFound
	}
	delete(repo.db.project.table, id)

	// cascade
	repo.db.delivery.mutex.Lock()
	for did, d := range repo.db.delivery.table {
		if d.ProjectID == id {
			delete(repo.db.delivery.table, did)
		}
	}
	repo.db.delivery.mutex.Unlock()

	repo.db.checklist.mutex.Lock()
	for cid, item := range repo.db.checklist.table {
		if item.ProjectID == id {
			delete(repo.db.checklist.table, cid)
		}
	}
	repo.db.checklist.mutex.Unlock()

	repo.db.feedback.mutex.Lock()
	feedbackIDs := make(map[string]bool)
	for fid, fb := range repo.db.feedback.table {
		if fb.ProjectID == id {
			feedbackIDs[fid] = true
			delete(repo.db.feedback.table, fid)
		}
	}
	repo.db.feedback.mutex.Unlock()

	repo.db.reply.mutex.Lock()
	for rid, rp := range repo.db.reply.table {
		if feedbackIDs[rp.FeedbackID] {
			delete(repo.db.reply.table, rid)
		}
	}
	repo.db.reply.mutex.Unlock()

	repo.db.notification.mutex.Lock()
	for nid, n := range repo.db.notification.table {
		if n.ProjectID.String == id {
			delete(repo.db.notification.table, nid)
		}
	}
	repo.db.notification.mutex.Unlock()
	return nil
}

func (repo *projectRepository) CreateDelivery(ctx context.Context, d project.Delivery, exec ...core.DBExecutor) (project.Delivery, error) {
	repo.db.delivery.mutex.Lock()
	defer repo.db.delivery.mutex.Unlock()

	d.ID = uuid.New().String()
	repo.db.delivery.table[d.ID] = &d
	return d, nil
}

func (repo *projectRepository) QueryDeliveries(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]project.Delivery, error) {
	repo.db.delivery.mutex.RLock()
	defer repo.db.delivery.mutex.RUnlock()

	deliveries := make([]project.Delivery, 0)
	for _, d := range repo.db.delivery.table {
		if d.ProjectID == projectID {
			deliveries = append(deliveries, *d)
		}
	}
	sort.Slice(deliveries, func(i, j int) bool { return deliveries[i].CreatedAt.Before(deliveries[j].CreatedAt) })
	return deliveries, nil
}

func (repo *projectRepository) QueryChecklist(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]project.ChecklistItem, error) {
	repo.db.checklist.mutex.RLock()
	defer repo.db.checklist.mutex.RUnlock()

	items := make([]project.ChecklistItem, 0)
	for _, item := range repo.db.checklist.table {
		if item.ProjectID == projectID {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (repo *projectRepository) CountFeedback(ctx context.Context, projectID string, exec ...core.DBExecutor) (int, error) {
	repo.db.feedback.mutex.RLock()
	defer repo.db.feedback.mutex.RUnlock()

	var n int
	for _, fb := range repo.db.feedback.table {
		if fb.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}
