package echoapi_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mwalefaith2021/jjschool/apps/api/echo"
	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/signup"
	"github.com/mwalefaith2021/jjschool/core/user"
	testutil "github.com/mwalefaith2021/jjschool/tests"
)

type approvedSignup struct {
	Signup signup.PendingSignup `json:"signup"`
	User   user.User            `json:"user"`
}

// acceptApplication submits an application and accepts it, returning the provisioned signup.
func (app *testApp) acceptApplication(t *testing.T, adminToken, first, last, email string) (admission.Admission, signup.PendingSignup) {
	t.Helper()
	req, rec := newRequest(http.MethodPost, "/api/submit-application", marchallObj(t, testutil.NewAdmission(first, last, email)))
	app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var adm admission.Admission
	decode(t, rec, &adm)

	req, rec = newAuthRequest(http.MethodPut, "/api/applications/"+adm.ID+"/status", adminToken, []byte(`{"status": "accepted"}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, "/api/pending-signups", adminToken)
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var signups []signup.PendingSignup
	decode(t, rec, &signups)
	for _, ps := range signups {
		if ps.ApplicationID == adm.ID {
			return adm, ps
		}
	}
	t.Fatalf("no signup provisioned for %s", adm.ApplicationNumber)
	return adm, signup.PendingSignup{}
}

func Test_signupApi_onboarding(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.store.Users, "Admin", "admin", "admin@test.mw", "", user.RoleAdmin, true)
	adminToken := app.getToken(t, admin)

	adm, ps := app.acceptApplication(t, adminToken, "Ama", "Banda", "ama@test.mw")
	assert.Equal(t, signup.StatusPending, ps.Status)
	assert.Equal(t, "ama.banda", ps.DesiredUsername)

	otpMail := app.lastMail(t, "ama@test.mw")
	assert.Equal(t, "signup_otp", otpMail.TemplateName)
	assert.Equal(t, ps.OTP, mailValue(t, otpMail, "One-time password"))

	// approve
	req, rec := newAuthRequest(http.MethodPost, "/api/pending-signups/"+ps.ID+"/approve", adminToken)
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var approved approvedSignup
	resp := decode(t, rec, &approved)
	assert.Equal(t, "Signup approved and user created", resp.Message)
	assert.Equal(t, signup.StatusApproved, approved.Signup.Status)
	assert.Equal(t, approved.User.ID, approved.Signup.UserID)
	assert.Equal(t, "ama.banda", approved.User.Username)
	assert.Equal(t, user.RoleStudent, approved.User.Role)
	assert.True(t, approved.User.RequiresPasswordReset)

	accountMail := app.lastMail(t, "ama@test.mw")
	assert.Equal(t, "account_approved", accountMail.TemplateName)
	otp := mailValue(t, accountMail, "Password")

	t.Run("second decision conflicts", func(t *testing.T) {
		runHTTPTests(t, app, []httpTest{
			{name: "approve", method: http.MethodPost, path: "/api/pending-signups/" + ps.ID + "/approve", token: adminToken, wantCode: http.StatusConflict},
			{name: "reject", method: http.MethodPost, path: "/api/pending-signups/" + ps.ID + "/reject", token: adminToken, body: []byte(`{}`), wantCode: http.StatusConflict},
		})
	})

	// first login with the one-time password
	login := app.login(t, "ama.banda", otp)
	require.True(t, login.RequiresPasswordReset)
	studentPath := "/api/students/" + login.User.ID

	runHTTPTests(t, app, []httpTest{
		{name: "reset pending", path: studentPath, token: login.Token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errPasswordReset)},
	})

	req, rec = newAuthRequest(http.MethodPost, "/api/change-password", login.Token, []byte(`{"newPassword": "MyOwnPass9"}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var changed echoapi.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changed))
	token := changed.Token

	t.Run("own profile", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, studentPath, token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "Ama Banda", usr.FullName)
		assert.False(t, usr.RequiresPasswordReset)
	})

	t.Run("own application", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, studentPath+"/application", token)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var got admission.Admission
		decode(t, rec, &got)
		assert.Equal(t, adm.ApplicationNumber, got.ApplicationNumber)
		assert.Equal(t, admission.StatusAccepted, got.Status)
	})
}

func Test_signupApi_adminEndpoints(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.store.Users, "Admin", "admin", "admin@test.mw", "", user.RoleAdmin, true)
	student := testutil.CreateUser(t, app.store.Users, "Student", "student", "student@test.mw", "", user.RoleStudent, true)
	adminToken := app.getToken(t, admin)

	_, ps := app.acceptApplication(t, adminToken, "Kofi", "Mensah", "kofi@test.mw")
	pending, err := app.admissionSvc.Submit(ctxBg(), testutil.NewAdmission("Chisomo", "Phiri", "chisomo@test.mw"))
	require.NoError(t, err)

	runHTTPTests(t, app, []httpTest{
		{name: "admin required", path: "/api/pending-signups", token: app.getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "unknown signup", path: "/api/pending-signups/nope", token: adminToken, wantCode: http.StatusNotFound},
		{name: "approve unknown", method: http.MethodPost, path: "/api/pending-signups/nope/approve", token: adminToken, wantCode: http.StatusNotFound},
		{name: "retrieve", path: "/api/pending-signups/" + ps.ID, token: adminToken, wantCode: http.StatusOK},
		{
			name: "create for an undecided application", method: http.MethodPost, path: "/api/pending-signups", token: adminToken,
			body: marchallObj(t, signup.NewSignup{ApplicationID: pending.ID}), wantCode: http.StatusConflict,
		},
		{
			name: "create twice", method: http.MethodPost, path: "/api/pending-signups", token: adminToken,
			body: marchallObj(t, signup.NewSignup{ApplicationID: ps.ApplicationID}), wantCode: http.StatusConflict,
		},
		{
			name: "create without application", method: http.MethodPost, path: "/api/pending-signups", token: adminToken,
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("reject", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/pending-signups/"+ps.ID+"/reject", adminToken, []byte(`{"reason": "incomplete documents"}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got signup.PendingSignup
		decode(t, rec, &got)
		assert.Equal(t, signup.StatusRejected, got.Status)
		assert.Equal(t, "incomplete documents", got.Reason)
		assert.Equal(t, "signup_rejected", app.lastMail(t, "kofi@test.mw").TemplateName)

		_, err := app.store.Users.GetUser(ctxBg(), user.GetFilter{Username: "kofi.mensah"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("list filters by status", func(t *testing.T) {
		for status, want := range map[string]int{"": 0, "rejected": 1, "all": 1} {
			req, rec := newAuthRequest(http.MethodGet, "/api/pending-signups?status="+status, adminToken)
			app.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decode(t, rec, nil)
			require.NotNil(t, resp.Count)
			assert.Equal(t, want, *resp.Count, "status %q", status)
		}
	})
}
