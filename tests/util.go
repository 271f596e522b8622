package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/project"
	"github.com/trezcool/atelier/core/user"
	logsvc "github.com/trezcool/atelier/services/logger"
)

func NewLogger() core.Logger {
	return logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, name, email string) user.User {
	return CreateUser(t, repo, name, email, "Secret123", user.RoleStudent, true)
}

func CreateTeacher(t *testing.T, repo user.Repository, name, email string) user.User {
	return CreateUser(t, repo, name, email, "Secret123", user.RoleTeacher, true)
}

func CreateProject(
	t *testing.T,
	repo project.Repository,
	title string,
	student user.User,
	status project.Status,
	deadline core.Date,
) project.Project {
	now := time.Now().UTC()
	prj := project.Project{
		Title:     title,
		Deadline:  deadline,
		Status:    status,
		StudentID: student.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	prj, err := repo.CreateProject(context.Background(), prj)
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return prj
}

func CreateDelivery(
	t *testing.T,
	repo project.Repository,
	prj project.Project,
	owner user.User,
	name string,
	kind project.DeliveryKind,
) project.Delivery {
	d := project.Delivery{
		Name:      name,
		Kind:      kind,
		ProjectID: prj.ID,
		UserID:    owner.ID,
		CreatedAt: time.Now().UTC(),
	}
	d, err := repo.CreateDelivery(context.Background(), d)
	if err != nil {
		t.Fatalf("CreateDelivery() failed: %v", err)
	}
	return d
}
