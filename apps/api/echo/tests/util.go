package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/atelier/apps/api/echo"
	"github.com/trezcool/atelier/core"
	"github.com/trezcool/atelier/core/feedback"
	"github.com/trezcool/atelier/core/notification"
	"github.com/trezcool/atelier/core/project"
	"github.com/trezcool/atelier/core/user"
	emailsvc "github.com/trezcool/atelier/services/email"
	inmemdb "github.com/trezcool/atelier/storage/database/inmem"
	testutil "github.com/trezcool/atelier/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	conf      *core.Config
	app       *echoapi.Server
	usrRepo   user.Repository
	prjRepo   project.Repository
	fbRepo    feedback.Repository
	notifRepo notification.Repository
}

func setup(t *testing.T) *env {
	t.Helper()
	os.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	// set up repos
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	prjRepo := inmemdb.NewProjectRepository(db)
	fbRepo := inmemdb.NewFeedbackRepository(db)
	notifRepo := inmemdb.NewNotificationRepository(db)

	// set up services
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	notifSvc := notification.NewService(notifRepo, mailSvc, logger)
	prjSvc := project.NewService(prjRepo, usrSvc, notifSvc, logger)
	fbSvc := feedback.NewService(fbRepo, prjSvc, usrSvc, notifSvc, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	app := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			UserSvc:         usrSvc,
			ProjectSvc:      prjSvc,
			FeedbackSvc:     fbSvc,
			NotificationSvc: notifSvc,
			Validate:        validate,
			Translator:      translator,
		},
	)

	return &env{
		conf:      conf,
		app:       app,
		usrRepo:   usrRepo,
		prjRepo:   prjRepo,
		fbRepo:    fbRepo,
		notifRepo: notifRepo,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func (e *env) getToken(t *testing.T, usr user.User) string {
	claims := e.app.Auth().GetUserClaims(usr)
	token, err := e.app.Auth().GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
