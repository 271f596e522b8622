package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	echoapi "github.com/trezcool/atelier/apps/api/echo"
	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/project"
	testutil "github.com/trezcool/atelier/tests"
)

func deadline(daysFromNow int) core.Date {
	day := time.Now().UTC().AddDate(0, 0, daysFromNow)
	return core.NewDate(day.Year(), day.Month(), day.Day())
}

func Test_projectApi_create(t *testing.T) {
	env := setup(t)

	student := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", token: env.getToken(t, student), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "deadline required", token: env.getToken(t, student), wantCode: http.StatusBadRequest,
			body:     []byte(`{"title": "Chair"}`),
			wantData: marchallObj(t, map[string]string{"deadline": "this field is required"}),
		},
		{
			name: "teachers may not create", token: env.getToken(t, teacher), wantCode: http.StatusForbidden,
			body:     marchallObj(t, project.NewProject{Title: "Chair", Deadline: deadline(30)}),
			wantData: marchallObj(t, httpErr{Error: "only students can create projects"}),
		},
		{
			name: "created", token: env.getToken(t, student), wantCode: http.StatusCreated,
			body: marchallObj(t, project.NewProject{Title: "Chair", Briefing: "A chair.", Deadline: deadline(30)}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/projects"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var prj project.Project
				if err := json.Unmarshal(rec.Body.Bytes(), &prj); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if prj.ID == "" {
					t.Error("failed! empty project ID")
				}
				if prj.Status != project.StatusBriefing {
					t.Errorf("failed! status = %v; want %v", prj.Status, project.StatusBriefing)
				}
				if prj.Progress != 0 {
					t.Errorf("failed! progress = %v; want 0", prj.Progress)
				}
				if prj.StudentID != student.ID {
					t.Errorf("failed! student_id = %v; want %v", prj.StudentID, student.ID)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_projectApi_queryAndRetrieve(t *testing.T) {
	env := setup(t)

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	ben := testutil.CreateStudent(t, env.usrRepo, "Ben", "ben@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")

	awaPrj := testutil.CreateProject(t, env.prjRepo, "Chair", awa, project.StatusBriefing, deadline(10))
	benPrj := testutil.CreateProject(t, env.prjRepo, "Lamp", ben, project.StatusReview, deadline(5))
	finalPrj := testutil.CreateProject(t, env.prjRepo, "Done", awa, project.StatusFinalization, deadline(1))
	finalPrj.Progress = 100 // reads heal finalized rows

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/projects", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "students see only their own", method: http.MethodGet, path: "/v1/projects",
			token: env.getToken(t, awa), wantData: marchallList(t, awaPrj, finalPrj),
		},
		{
			name: "teachers see all", method: http.MethodGet, path: "/v1/projects",
			token: env.getToken(t, teacher), wantData: marchallList(t, awaPrj, benPrj, finalPrj),
		},
		{
			name: "retrieve own", method: http.MethodGet, path: "/v1/projects/" + awaPrj.ID,
			token: env.getToken(t, awa), wantData: marchallObj(t, awaPrj),
		},
		{
			name: "retrieve another student's", method: http.MethodGet, path: "/v1/projects/" + benPrj.ID,
			token:    env.getToken(t, awa), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you may not access this project"}),
		},
		{
			name: "retrieve unknown", method: http.MethodGet, path: "/v1/projects/nope",
			token:    env.getToken(t, teacher), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "project not found"}),
		},
		{
			name: "review queue is teacher-only", method: http.MethodGet, path: "/v1/projects/review-queue",
			token:    env.getToken(t, awa), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "review queue", method: http.MethodGet, path: "/v1/projects/review-queue",
			token: env.getToken(t, teacher), wantData: marchallList(t, benPrj),
		},
		{
			name: "on-time report", method: http.MethodGet, path: "/v1/projects/on-time",
			token: env.getToken(t, teacher), wantData: marchallList(t, finalPrj),
		},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_projectApi_update(t *testing.T) {
	env := setup(t)

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	ben := testutil.CreateStudent(t, env.usrRepo, "Ben", "ben@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")

	prj := testutil.CreateProject(t, env.prjRepo, "Chair", awa, project.StatusBriefing, deadline(10))
	finalPrj := testutil.CreateProject(t, env.prjRepo, "Done", awa, project.StatusFinalization, deadline(1))

	tests := []httpTest{
		{name: "Auth required", path: "/v1/projects/" + prj.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "unknown fields rejected", path: "/v1/projects/" + prj.ID, token: env.getToken(t, awa),
			body:     []byte(`{"title": "Hacked"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "only status and progress may be edited"}),
		},
		{
			name: "unknown status rejected", path: "/v1/projects/" + prj.ID, token: env.getToken(t, awa),
			body:     []byte(`{"status": "LIMBO"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "unknown status"}),
		},
		{
			name: "progress out of range", path: "/v1/projects/" + prj.ID, token: env.getToken(t, awa),
			body:     []byte(`{"progress": 150}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"progress": "progress must be between 0 and 100"}),
		},
		{
			name: "stranger may not edit", path: "/v1/projects/" + prj.ID, token: env.getToken(t, ben),
			body:     []byte(`{"progress": 10}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you may not edit this project"}),
		},
		{
			name: "students may not finalize", path: "/v1/projects/" + prj.ID, token: env.getToken(t, awa),
			body:     []byte(`{"status": "FINALIZATION"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only teachers may finalize a project"}),
		},
		{
			name: "finalized is frozen", path: "/v1/projects/" + finalPrj.ID, token: env.getToken(t, teacher),
			body:     []byte(`{"progress": 10}`),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "project is already finalized and can no longer be changed"}),
		},
		{
			name: "owner edits", path: "/v1/projects/" + prj.ID, token: env.getToken(t, awa),
			body: []byte(`{"status": "PROTOTYPE", "progress": 30}`), wantCode: http.StatusOK,
		},
		{
			name: "empty payload is a passthrough read", path: "/v1/projects/" + prj.ID, token: env.getToken(t, awa),
			body: []byte(`{}`), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPatch

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var got project.Project
				if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if got.Status != project.StatusPrototype {
					t.Errorf("failed! status = %v; want %v", got.Status, project.StatusPrototype)
				}
				if got.Progress != 30 {
					t.Errorf("failed! progress = %v; want 30", got.Progress)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_projectApi_lifecycle(t *testing.T) {
	env := setup(t)

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")
	awaToken := env.getToken(t, awa)
	teacherToken := env.getToken(t, teacher)
	ctx := context.Background()

	prj := testutil.CreateProject(t, env.prjRepo, "Chair", awa, project.StatusBriefing, deadline(30))

	serve := func(t *testing.T, method, path, token string, body []byte, wantCode int) []byte {
		t.Helper()
		req, rec := newAuthRequest(method, path, token, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != wantCode {
			t.Fatalf("%s %s: code = %v; wantCode %v; body %s", method, path, rec.Code, wantCode, rec.Body.String())
		}
		return rec.Body.Bytes()
	}

	// the student attaches the briefing document, then a prototype
	body := serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/deliveries", awaToken,
		marchallObj(t, project.NewDelivery{Name: "Briefing - chair.pdf", Kind: project.KindBriefingDoc}), http.StatusCreated)
	var d project.Delivery
	if err := json.Unmarshal(body, &d); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if d.ProjectID != prj.ID || d.UserID != awa.ID {
		t.Fatalf("failed! delivery = %+v", d)
	}

	serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/deliveries", awaToken,
		marchallObj(t, project.NewDelivery{Name: "proto-v1.zip", Kind: project.KindDeliverable}), http.StatusCreated)

	got, err := env.prjRepo.GetProject(ctx, prj.ID)
	if err != nil {
		t.Fatalf("GetProject() failed: %v", err)
	}
	if got.Status != project.StatusReview || got.Progress != 50 {
		t.Fatalf("failed! status = %v, progress = %v; want REVIEW, 50", got.Status, got.Progress)
	}

	// the student asks for approval (re-entering review is fine)
	serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/request-approval", awaToken, nil, http.StatusOK)

	// a student cannot evaluate
	evalBody := marchallObj(t, map[string]interface{}{
		"grade": 8.5,
		"checklist": []project.ChecklistEntry{
			{Title: "Ergonomics reviewed", IsDone: true},
		},
	})
	serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/evaluate", awaToken, evalBody, http.StatusForbidden)

	// the teacher evaluates
	body = serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/evaluate", teacherToken, evalBody, http.StatusOK)
	var evaluated project.EvaluatedProject
	if err := json.Unmarshal(body, &evaluated); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if evaluated.Message != "project evaluated and approved" {
		t.Errorf("failed! message = %q", evaluated.Message)
	}
	if evaluated.Project.Status != project.StatusFinalization || evaluated.Project.Progress != 100 {
		t.Errorf("failed! project = %+v", evaluated.Project)
	}
	if evaluated.Project.Grade.Float64 != 8.5 {
		t.Errorf("failed! grade = %v; want 8.5", evaluated.Project.Grade.Float64)
	}

	// checklist was persisted
	body = serve(t, http.MethodGet, "/v1/projects/"+prj.ID+"/checklist", awaToken, nil, http.StatusOK)
	var items []project.ChecklistItem
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Ergonomics reviewed" || !items[0].IsDone {
		t.Errorf("failed! checklist = %+v", items)
	}

	// finalized projects are frozen
	serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/evaluate", teacherToken, evalBody, http.StatusConflict)
	serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/request-approval", awaToken, nil, http.StatusConflict)
	serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/deliveries", awaToken,
		marchallObj(t, project.NewDelivery{Name: "late.zip", Kind: project.KindDeliverable}), http.StatusConflict)

	// the student got the approval notification
	inbox, err := env.notifRepo.QueryNotifications(ctx, awa.ID, 10)
	if err != nil {
		t.Fatalf("QueryNotifications() failed: %v", err)
	}
	var found bool
	for _, n := range inbox {
		if n.Title == "Project Approved!" {
			found = true
		}
	}
	if !found {
		t.Error("failed! approval notification missing")
	}
}

func Test_projectApi_destroy(t *testing.T) {
	env := setup(t)

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	ben := testutil.CreateStudent(t, env.usrRepo, "Ben", "ben@test.test")
	prj := testutil.CreateProject(t, env.prjRepo, "Chair", awa, project.StatusBriefing, deadline(10))

	t.Run("stranger may not delete", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you may not delete this project"})}
		req, rec := newAuthRequest(http.MethodDelete, "/v1/projects/"+prj.ID, env.getToken(t, ben))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("owner deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/projects/"+prj.ID, env.getToken(t, awa))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/projects/"+prj.ID, env.getToken(t, awa))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNotFound)
		}
	})
}

func Test_projectApi_fixProgress(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")

	// legacy finalized rows stuck below 100
	for i := 0; i < 2; i++ {
		prj := testutil.CreateProject(t, env.prjRepo, fmt.Sprintf("Legacy %d", i), awa, project.StatusReview, deadline(10))
		prj.Status = project.StatusFinalization
		prj.Progress = 50
		if _, err := env.prjRepo.FinalizeProject(ctx, prj, nil); err != nil {
			t.Fatalf("FinalizeProject() failed: %v", err)
		}
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher required", token: env.getToken(t, awa), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "repairs stale rows", token: env.getToken(t, teacher), wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.FixProgressResponse{Fixed: 2}),
		},
		{
			name: "idempotent", token: env.getToken(t, teacher), wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.FixProgressResponse{Fixed: 0}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/admin/fix-progress"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
