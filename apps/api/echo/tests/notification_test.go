package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/atelier/core/notification"
	"github.com/trezcool/atelier/core/project"
	testutil "github.com/trezcool/atelier/tests"
)

func Test_notificationApi(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	ben := testutil.CreateStudent(t, env.usrRepo, "Ben", "ben@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")
	awaToken := env.getToken(t, awa)

	// a review request fans out to teachers; feedback lands in awa's inbox
	prj := testutil.CreateProject(t, env.prjRepo, "Chair", awa, project.StatusPrototype, deadline(10))
	req, rec := newAuthRequest(http.MethodPost, "/v1/projects/"+prj.ID+"/request-approval", awaToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("request-approval failed: %v %s", rec.Code, rec.Body.String())
	}
	req, rec = newAuthRequest(http.MethodPost, "/v1/projects/"+prj.ID+"/feedback", env.getToken(t, teacher),
		marchallObj(t, map[string]string{"comment": "rethink the legs"}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("feedback failed: %v %s", rec.Code, rec.Body.String())
	}

	t.Run("Auth required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newRequest(http.MethodGet, "/v1/notifications")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	var target notification.Notification
	t.Run("inbox", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", awaToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var inbox notification.Inbox
		if err := json.Unmarshal(rec.Body.Bytes(), &inbox); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if len(inbox.Notifications) != 1 {
			t.Fatalf("failed! len(notifications) = %d; want 1", len(inbox.Notifications))
		}
		if inbox.UnreadCount != 1 {
			t.Errorf("failed! unread_count = %d; want 1", inbox.UnreadCount)
		}
		target = inbox.Notifications[0]
		if target.Type != notification.TypeFeedbackReceived {
			t.Errorf("failed! type = %v; want %v", target.Type, notification.TypeFeedbackReceived)
		}
		if target.ProjectID.String != prj.ID {
			t.Errorf("failed! project_id = %v; want %v", target.ProjectID.String, prj.ID)
		}
	})

	t.Run("only the owner may mark read", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you may not modify this notification"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+target.ID+"/read", env.getToken(t, ben))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("mark read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+target.ID+"/read", awaToken)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var n notification.Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if !n.IsRead || !n.ReadAt.Valid {
			t.Errorf("failed! notification = %+v", n)
		}
	})

	t.Run("unknown notification", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "notification not found"})}
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/nope/read", awaToken)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("mark all read", func(t *testing.T) {
		// the review request fan-out sits unread in the teacher's inbox
		unread, err := env.notifRepo.CountUnread(ctx, teacher.ID)
		if err != nil {
			t.Fatalf("CountUnread() failed: %v", err)
		}
		if unread != 1 {
			t.Fatalf("failed! unread = %d; want 1", unread)
		}

		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/read-all", env.getToken(t, teacher))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}

		unread, err = env.notifRepo.CountUnread(ctx, teacher.ID)
		if err != nil {
			t.Fatalf("CountUnread() failed: %v", err)
		}
		if unread != 0 {
			t.Errorf("failed! unread = %d; want 0", unread)
		}
	})
}
