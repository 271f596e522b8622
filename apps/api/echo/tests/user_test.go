package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	echoapi "github.com/trezcool/atelier/apps/api/echo"
	"github.com/trezcool/atelier/core/user"
	testutil "github.com/trezcool/atelier/tests"
)

func Test_userApi_register(t *testing.T) {
	env := setup(t)

	testutil.CreateStudent(t, env.usrRepo, "Taken", "taken@test.test")

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             reqMsg,
				"email":            reqMsg,
				"password":         reqMsg,
				"password_confirm": reqMsg,
			}),
		},
		{
			name: "invalid email", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				Name: "Awa", Email: "lol", Password: "Secret123", PasswordConfirm: "Secret123",
			}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "password confirm mismatch", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				Name: "Awa", Email: "awa@test.test", Password: "Secret123", PasswordConfirm: "lol12345",
			}),
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "unknown role", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				Name: "Awa", Email: "awa@test.test", Password: "Secret123", PasswordConfirm: "Secret123", Role: "BOSS",
			}),
			wantData: marchallObj(t, map[string]string{"role": "must be one of STUDENT, TEACHER"}),
		},
		{
			name: "email taken", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				Name: "Copy Cat", Email: "taken@test.test", Password: "Secret123", PasswordConfirm: "Secret123",
			}),
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "registered as student by default", wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewUser{
				Name: "Awa", Email: "awa@test.test", Password: "Secret123", PasswordConfirm: "Secret123",
			}),
		},
		{
			name: "registered as teacher", wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewUser{
				Name: "Mr K", Email: "k@test.test", Password: "Secret123", PasswordConfirm: "Secret123", Role: user.RoleTeacher,
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/register"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if usr.ID == "" {
					t.Error("failed! empty user ID")
				}
				if !usr.IsActive {
					t.Error("failed! new account not active")
				}
				wantRole := user.RoleStudent
				if tt.name == "registered as teacher" {
					wantRole = user.RoleTeacher
				}
				if usr.Role != wantRole {
					t.Errorf("failed! role = %v; want %v", usr.Role, wantRole)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	student := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog@test.test", "Secret123", user.RoleStudent, false)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "who@test.test", Password: "Secret123"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: student.Email, Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "ndog@test.test", Password: "Secret123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "logged in", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Email: student.Email, Password: "Secret123"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			// cannot guess the token; just check that it is not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed: %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)

	student := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog@test.test", "Secret123", user.RoleStudent, false)

	// mint a token whose refresh window has lapsed
	staleIat := time.Now().Add(-2 * env.conf.Server.JWTRefreshExpirationDelta).Unix()
	staleClaims := env.app.Auth().GetUserClaims(student, staleIat)
	unrefreshableToken, err := env.app.Auth().GenerateToken(staleClaims)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", token: env.getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", token: env.getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed: %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	env := setup(t)

	awa := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	ben := testutil.CreateStudent(t, env.usrRepo, "Ben", "ben@test.test")
	teacher := testutil.CreateTeacher(t, env.usrRepo, "Mr K", "k@test.test")
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog@test.test", "Secret123", user.RoleStudent, false)

	teacherToken := env.getToken(t, teacher)

	path := func(search, role string, isActive string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if role != "" {
			v.Add("role", role)
		}
		if isActive != "" {
			v.Add("is_active", isActive)
		}
		return "/v1/users?" + v.Encode()
	}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teacher required", path: "/v1/users", token: env.getToken(t, awa),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/v1/users", token: teacherToken, wantData: marchallList(t, awa, ben, teacher, naughty)},
		{name: "search (unknown)", path: path("lol", "", ""), token: teacherToken, wantData: marchallList(t)},
		{name: "search by name", path: path("awa", "", ""), token: teacherToken, wantData: marchallList(t, awa)},
		{name: "search by email", path: path("ndog@", "", ""), token: teacherToken, wantData: marchallList(t, naughty)},
		{name: "role=TEACHER", path: path("", user.RoleTeacher, ""), token: teacherToken, wantData: marchallList(t, teacher)},
		{name: "is_active=false", path: path("", "", "false"), token: teacherToken, wantData: marchallList(t, naughty)},
		{name: "combo", path: path("test.test", user.RoleStudent, "true"), token: teacherToken, wantData: marchallList(t, awa, ben)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
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

func Test_userApi_me(t *testing.T) {
	env := setup(t)

	student := testutil.CreateStudent(t, env.usrRepo, "Awa", "awa@test.test")
	token := env.getToken(t, student)

	t.Run("Auth required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newRequest(http.MethodGet, "/v1/users/me")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("own profile", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, student)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("update profile", func(t *testing.T) {
		body := marchallObj(t, user.UpdateProfile{Name: "Awa B."})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", token, body)
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if usr.Name != "Awa B." {
			t.Errorf("failed! name = %v; want %v", usr.Name, "Awa B.")
		}
		if usr.Email != student.Email {
			t.Errorf("failed! email = %v; want %v", usr.Email, student.Email)
		}
	})

	t.Run("change password", func(t *testing.T) {
		body := marchallObj(t, user.ChangePassword{
			CurrentPassword: "Secret123", NewPassword: "NewSecret123", NewPasswordConfirm: "NewSecret123",
		})
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been changed."}),
		}
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me/password", token, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
