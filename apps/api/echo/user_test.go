package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mwalefaith2021/jjschool/apps/api/echo"
	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/user"
	testutil "github.com/mwalefaith2021/jjschool/tests"
)

func (app *testApp) login(t *testing.T, uname, pwd string) echoapi.LoginResponse {
	t.Helper()
	body := marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	req, rec := newRequest(http.MethodPost, "/api/login", body)
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp echoapi.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	pwd := "Pass1234!"
	usr := testutil.CreateUser(t, app.store.Users, "Ama Banda", "ama.banda", "ama@test.mw", pwd, user.RoleStudent, true)
	testutil.CreateUser(t, app.store.Users, "Gone", "gone", "gone@test.mw", pwd, user.RoleStudent, false)

	badCreds := marchallObj(t, httpErr{Message: user.ErrInvalidCredentials.Error()})
	runHTTPTests(t, app, []httpTest{
		{name: "empty body", method: http.MethodPost, path: "/api/login", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "wrong password", method: http.MethodPost, path: "/api/login", body: []byte(`{"username": "ama.banda", "password": "nope"}`), wantCode: http.StatusUnauthorized, wantData: badCreds},
		{name: "unknown user", method: http.MethodPost, path: "/api/login", body: []byte(`{"username": "kofi", "password": "nope"}`), wantCode: http.StatusUnauthorized, wantData: badCreds},
		{name: "inactive user", method: http.MethodPost, path: "/api/login", body: []byte(`{"username": "gone", "password": "Pass1234!"}`), wantCode: http.StatusUnauthorized, wantData: badCreds},
	})

	t.Run("username is case insensitive", func(t *testing.T) {
		resp := app.login(t, "  AMA.Banda ", pwd)
		assert.Equal(t, "Login successful", resp.Message)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, usr.ID, resp.User.ID)
		assert.NotNil(t, resp.User.LastLogin)
		assert.False(t, resp.RequiresPasswordReset)
	})
}

func Test_userApi_tokenLifecycle(t *testing.T) {
	app := setup(t)
	pwd := "Pass1234!"
	usr := testutil.CreateUser(t, app.store.Users, "Ama Banda", "ama.banda", "ama@test.mw", pwd, user.RoleStudent, true)

	token := app.login(t, usr.Username, pwd).Token

	t.Run("verify", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/verify", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var got user.User
		resp := decode(t, rec, &got)
		assert.Equal(t, "Token is valid", resp.Message)
		assert.Equal(t, usr.ID, got.ID)
	})

	t.Run("refresh", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/token-refresh", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp echoapi.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.NotEqual(t, token, resp.Token)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/logout", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		runHTTPTests(t, app, []httpTest{
			{name: "verify", path: "/api/verify", token: token, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
			{name: "logout again", method: http.MethodPost, path: "/api/logout", token: token, wantCode: http.StatusUnauthorized},
		})
	})

	t.Run("deactivated user", func(t *testing.T) {
		other := testutil.CreateUser(t, app.store.Users, "Kofi", "kofi", "kofi@test.mw", pwd, user.RoleStudent, true)
		token := app.getToken(t, other)
		other.IsActive = false
		_, err := app.store.Users.UpdateUser(ctxBg(), other)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodGet, "/api/verify", token)
		app.serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_userApi_changePassword(t *testing.T) {
	app := setup(t)
	pwd := "Pass1234!"
	usr := testutil.CreateUser(t, app.store.Users, "Ama Banda", "ama.banda", "ama@test.mw", pwd, user.RoleStudent, true)
	token := app.login(t, usr.Username, pwd).Token

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/api/change-password", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "old password required", method: http.MethodPost, path: "/api/change-password", token: token,
			body: []byte(`{"newPassword": "NewPass123"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "wrong old password", method: http.MethodPost, path: "/api/change-password", token: token,
			body: []byte(`{"oldPassword": "nope", "newPassword": "NewPass123"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "weak password", method: http.MethodPost, path: "/api/change-password", token: token,
			body: []byte(`{"oldPassword": "Pass1234!", "newPassword": "12345678"}`), wantCode: http.StatusBadRequest,
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/api/change-password", token, []byte(`{"oldPassword": "Pass1234!", "newPassword": "NewPass123"}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp echoapi.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Password changed successfully", resp.Message)
	assert.NotEqual(t, token, resp.Token)

	runHTTPTests(t, app, []httpTest{
		{name: "old token revoked", path: "/api/verify", token: token, wantCode: http.StatusUnauthorized},
		{name: "new token works", path: "/api/verify", token: resp.Token, wantCode: http.StatusOK},
	})
	app.login(t, usr.Username, "NewPass123")
}

func Test_userApi_adminEndpoints(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.store.Users, "Admin", "admin", "admin@test.mw", "", user.RoleAdmin, true)
	student := testutil.CreateUser(t, app.store.Users, "Ama Banda", "ama.banda", "ama@test.mw", "Pass1234!", user.RoleStudent, true)
	adminToken := app.getToken(t, admin)

	runHTTPTests(t, app, []httpTest{
		{
			name: "register requires admin", method: http.MethodPost, path: "/api/register", token: app.getToken(t, student),
			body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "register validation", method: http.MethodPost, path: "/api/register", token: adminToken,
			body: []byte(`{"username": "x", "email": "nope"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate username", method: http.MethodPost, path: "/api/register", token: adminToken,
			body: []byte(`{"username": "ama.banda", "email": "other@test.mw", "fullName": "Other", "password": "Pass1234!"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "register weak password", method: http.MethodPost, path: "/api/register", token: adminToken,
			body: []byte(`{"username": "clerk", "email": "clerk@test.mw", "fullName": "Clerk", "password": "12345678"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: "validation failed", Errors: []core.FieldError{{Field: "password", Error: "password cannot be entirely numeric"}}}),
		},
		{
			name: "reset unknown user", method: http.MethodPost, path: "/api/users/nope/reset-password", token: adminToken,
			wantCode: http.StatusNotFound,
		},
	})

	t.Run("register", func(t *testing.T) {
		body := []byte(`{"username": "Kofi", "email": "Kofi@Test.mw", "fullName": "Kofi Mensah", "password": "Pass1234!"}`)
		req, rec := newAuthRequest(http.MethodPost, "/api/register", adminToken, body)
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "kofi", usr.Username)
		assert.Equal(t, "kofi@test.mw", usr.Email)
		assert.Equal(t, user.RoleStudent, usr.Role)
		assert.True(t, usr.IsActive)

		app.login(t, "kofi", "Pass1234!")
	})

	t.Run("reset password forces a change", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/users/"+student.ID+"/reset-password", adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		msg := app.lastMail(t, student.Email)
		assert.Equal(t, "password_reset", msg.TemplateName)
		otp := mailValue(t, msg, "Temporary password")

		login := app.login(t, student.Username, otp)
		assert.True(t, login.RequiresPasswordReset)

		runHTTPTests(t, app, []httpTest{
			{name: "guarded route", path: "/api/students/" + student.ID, token: login.Token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errPasswordReset)},
			{name: "refresh is guarded", method: http.MethodPost, path: "/api/token-refresh", token: login.Token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errPasswordReset)},
			{name: "verify is allowed", path: "/api/verify", token: login.Token, wantCode: http.StatusOK},
		})

		// no old password while resetting
		req, rec = newAuthRequest(http.MethodPost, "/api/change-password", login.Token, []byte(`{"newPassword": "Fresh1234"}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.RequiresPasswordReset)

		req, rec = newAuthRequest(http.MethodGet, "/api/students/"+student.ID, resp.Token)
		app.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
