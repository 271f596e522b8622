package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/atelier/core/feedback"
	"github.com/trezcool/atelier/core/project"
	testutil "github.com/trezcool/atelier/tests"
)

func Test_feedbackApi_create(t *testing.T) {
	env := setup(t)

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")
	prj := testutil.CreateProject(t, env.prjRepo, "Chair", awa, project.StatusReview, deadline(10))

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher required", token: env.getToken(t, awa), wantCode: http.StatusForbidden,
			body:     marchallObj(t, feedback.NewFeedback{Comment: "nice"}),
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: env.getToken(t, teacher), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"comment": "this field is required"}),
		},
		{
			name: "created", token: env.getToken(t, teacher), wantCode: http.StatusCreated,
			body: marchallObj(t, feedback.NewFeedback{Comment: "rethink the legs"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/projects/" + prj.ID + "/feedback"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var fb feedback.Feedback
				if err := json.Unmarshal(rec.Body.Bytes(), &fb); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if fb.ProjectID != prj.ID || fb.UserID != teacher.ID {
					t.Errorf("failed! feedback = %+v", fb)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_feedbackApi_thread(t *testing.T) {
	env := setup(t)

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	ben := testutil.CreateStudent(t, env.usrRepo, "Ben", "ben@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")
	prj := testutil.CreateProject(t, env.prjRepo, "Chair", awa, project.StatusReview, deadline(10))

	serve := func(t *testing.T, method, path, token string, body []byte, wantCode int) []byte {
		t.Helper()
		req, rec := newAuthRequest(method, path, token, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != wantCode {
			t.Fatalf("%s %s: code = %v; wantCode %v; body %s", method, path, rec.Code, wantCode, rec.Body.String())
		}
		return rec.Body.Bytes()
	}

	body := serve(t, http.MethodPost, "/v1/projects/"+prj.ID+"/feedback", env.getToken(t, teacher),
		marchallObj(t, feedback.NewFeedback{Comment: "rethink the legs"}), http.StatusCreated)
	var fb feedback.Feedback
	if err := json.Unmarshal(body, &fb); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}

	// a stranger may neither read nor reply
	serve(t, http.MethodGet, "/v1/projects/"+prj.ID+"/feedback", env.getToken(t, ben), nil, http.StatusForbidden)
	serve(t, http.MethodPost, "/v1/feedback/"+fb.ID+"/replies", env.getToken(t, ben),
		marchallObj(t, feedback.NewReply{Comment: "me too"}), http.StatusForbidden)

	// the student replies
	body = serve(t, http.MethodPost, "/v1/feedback/"+fb.ID+"/replies", env.getToken(t, awa),
		marchallObj(t, feedback.NewReply{Comment: "will do"}), http.StatusCreated)
	var rp feedback.Reply
	if err := json.Unmarshal(body, &rp); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if rp.FeedbackID != fb.ID || rp.UserID != awa.ID {
		t.Errorf("failed! reply = %+v", rp)
	}

	// the whole thread, replies attached
	body = serve(t, http.MethodGet, "/v1/projects/"+prj.ID+"/feedback", env.getToken(t, awa), nil, http.StatusOK)
	var threads []feedback.Feedback
	if err := json.Unmarshal(body, &threads); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("failed! len(threads) = %d; want 1", len(threads))
	}
	if threads[0].Comment != "rethink the legs" {
		t.Errorf("failed! comment = %q", threads[0].Comment)
	}
	if len(threads[0].Replies) != 1 || threads[0].Replies[0].Comment != "will do" {
		t.Errorf("failed! replies = %+v", threads[0].Replies)
	}
}
