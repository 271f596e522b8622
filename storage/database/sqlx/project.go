package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/project"
)

type projectRow struct {
	ID          string       `db:"id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	Briefing    string       `db:"briefing"`
	Deadline    core.Date    `db:"deadline"`
	Status      string       `db:"status"`
	Progress    int          `db:"progress"`
	Grade       null.Float64 `db:"grade"`
	StudentID   string       `db:"student_id"`
	TeacherID   null.String  `db:"teacher_id"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

func (r projectRow) toProject() project.Project {
	return project.Project{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Briefing:    r.Briefing,
		Deadline:    r.Deadline,
		Status:      project.Status(r.Status),
		Progress:    r.Progress,
		Grade:       r.Grade,
		StudentID:   r.StudentID,
		TeacherID:   r.TeacherID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type deliveryRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Kind      string      `db:"kind"`
	Comments  string      `db:"comments"`
	FileURL   null.String `db:"file_url"`
	ProjectID string      `db:"project_id"`
	UserID    string      `db:"user_id"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r deliveryRow) toDelivery() project.Delivery {
	return project.Delivery{
		ID:        r.ID,
		Name:      r.Name,
		Kind:      project.DeliveryKind(r.Kind),
		Comments:  r.Comments,
		FileURL:   r.FileURL,
		ProjectID: r.ProjectID,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
	}
}

type checklistItemRow struct {
	ID        string `db:"id"`
	ProjectID string `db:"project_id"`
	Title     string `db:"title"`
	IsDone    bool   `db:"is_done"`
}

type projectRepository struct {
	db *sqlx.DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo projectRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to project.ErrNotFound
func (repo projectRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return project.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo projectRepository) CreateProject(ctx context.Context, prj project.Project, exec ...core.DBExecutor) (project.Project, error) {
	prj.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO project (id, title, description, briefing, deadline, status, progress, grade, student_id, teacher_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		prj.ID, prj.Title, prj.Description, prj.Briefing, prj.Deadline, prj.Status, prj.Progress,
		prj.Grade, prj.StudentID, prj.TeacherID, prj.CreatedAt.UTC(), prj.UpdatedAt.UTC(),
	)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return prj, nil
}

func (repo projectRepository) GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (project.Project, error) {
	var r projectRow
	if err := repo.getExec(exec).GetContext(ctx, &r, "SELECT * FROM project WHERE id = $1", id); err != nil {
		return project.Project{}, repo.trapNoRowsErr(err, "getting project")
	}
	return r.toProject(), nil
}

func (repo projectRepository) QueryProjects(ctx context.Context, filter *project.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Project, error) {
	query := "SELECT * FROM project"
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.StudentID != "" {
			args = append(args, filter.StudentID)
			conds = append(conds, "student_id = $"+itoa(len(args)))
		}
		if filter.Status != "" {
			args = append(args, filter.Status)
			conds = append(conds, "status = $"+itoa(len(args)))
		}
		if !filter.DeadlineFrom.IsZero() {
			args = append(args, filter.DeadlineFrom)
			conds = append(conds, "deadline >= $"+itoa(len(args)))
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering, "created_at DESC")

	var rows []projectRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.toProject())
	}
	return projects, nil
}

func (repo projectRepository) UpdateProjectUnlessFinal(ctx context.Context, prj project.Project, exec ...core.DBExecutor) (project.Project, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE project
		 SET title = $2, description = $3, briefing = $4, deadline = $5, status = $6, progress = $7, updated_at = $8
		 WHERE id = $1 AND status <> $9`,
		prj.ID, prj.Title, prj.Description, prj.Briefing, prj.Deadline, prj.Status, prj.Progress,
		prj.UpdatedAt.UTC(), project.StatusFinalization,
	)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// the guard failed: either the row is gone or already finalized
		current, err := repo.GetProject(ctx, prj.ID, exec...)
		if err != nil {
			return project.Project{}, err
		}
		if current.IsFinalized() {
			return project.Project{}, project.ErrAlreadyFinalized
		}
		return project.Project{}, errors.New("project update affected no rows")
	}
	return prj, nil
}

func (repo projectRepository) FinalizeProject(ctx context.Context, prj project.Project, checklist []project.ChecklistItem) (project.Project, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// grade, status and progress land atomically, guarded on REVIEW so that
	// exactly one of two concurrent evaluations wins
	res, err := tx.ExecContext(ctx,
		`UPDATE project
		 SET grade = $2, status = $3, progress = $4, teacher_id = $5, updated_at = $6
		 WHERE id = $1 AND status = $7`,
		prj.ID, prj.Grade, project.StatusFinalization, prj.Progress, prj.TeacherID,
		prj.UpdatedAt.UTC(), project.StatusReview,
	)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "finalizing project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		current, err := repo.GetProject(ctx, prj.ID)
		if err != nil {
			return project.Project{}, err
		}
		if current.IsFinalized() {
			return project.Project{}, project.ErrAlreadyFinalized
		}
		return project.Project{}, project.ErrNotInReview
	}

	for i := range checklist {
		item := &checklist[i]
		item.ProjectID = prj.ID
		if item.ID != "" {
			_, err = tx.ExecContext(ctx,
				"UPDATE checklist_item SET title = $2, is_done = $3 WHERE id = $1 AND project_id = $4",
				item.ID, item.Title, item.IsDone, prj.ID)
		} else {
			item.ID = uuid.New().String()
			_, err = tx.ExecContext(ctx,
				"INSERT INTO checklist_item (id, project_id, title, is_done) VALUES ($1, $2, $3, $4)",
				item.ID, prj.ID, item.Title, item.IsDone)
		}
		if err != nil {
			return project.Project{}, errors.Wrap(err, "upserting checklist item")
		}
	}

	if err = tx.Commit(); err != nil {
		return project.Project{}, errors.Wrap(err, "committing finalization")
	}
	return prj, nil
}

func (repo projectRepository) FixFinalizedProgress(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	query := "UPDATE project SET progress = 100 WHERE status = $1 AND progress <> 100"
	args := []interface{}{project.StatusFinalization}
	if len(ids) > 0 {
		holders := make([]string, 0, len(ids))
		for _, id := range ids {
			args = append(args, id)
			holders = append(holders, "$"+itoa(len(args)))
		}
		query += " AND id IN (" + strings.Join(holders, ",") + ")"
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "repairing finalized progress")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo projectRepository) DeleteProject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	// deliveries, feedback, replies, checklist items and notifications go
	// with it via ON DELETE CASCADE
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM project WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.ErrNotFound
	}
	return nil
}

func (repo projectRepository) CreateDelivery(ctx context.Context, d project.Delivery, exec ...core.DBExecutor) (project.Delivery, error) {
	d.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO delivery (id, name, kind, comments, file_url, project_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Name, d.Kind, d.Comments, d.FileURL, d.ProjectID, d.UserID, d.CreatedAt.UTC(),
	)
	if err != nil {
		return project.Delivery{}, errors.Wrap(err, "inserting delivery")
	}
	return d, nil
}

func (repo projectRepository) QueryDeliveries(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]project.Delivery, error) {
	var rows []deliveryRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		"SELECT * FROM delivery WHERE project_id = $1 ORDER BY created_at ASC", projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying deliveries")
	}
	deliveries := make([]project.Delivery, 0, len(rows))
	for _, r := range rows {
		deliveries = append(deliveries, r.toDelivery())
	}
	return deliveries, nil
}

func (repo projectRepository) QueryChecklist(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]project.ChecklistItem, error) {
	var rows []checklistItemRow
	err := repo.getExec(exec).SelectContext(ctx, &rows,
		"SELECT * FROM checklist_item WHERE project_id = $1", projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying checklist")
	}
	items := make([]project.ChecklistItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, project.ChecklistItem(r))
	}
	return items, nil
}

func (repo projectRepository) CountFeedback(ctx context.Context, projectID string, exec ...core.DBExecutor) (int, error) {
	var n int
	err := repo.getExec(exec).GetContext(ctx, &n,
		"SELECT COUNT(*) FROM feedback WHERE project_id = $1", projectID)
	if err != nil {
		return 0, errors.Wrap(err, "counting feedback")
	}
	return n, nil
}
