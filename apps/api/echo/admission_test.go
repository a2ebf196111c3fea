package echoapi_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mwalefaith2021/jjschool/apps/api/echo"
	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/signup"
	"github.com/mwalefaith2021/jjschool/core/user"
	testutil "github.com/mwalefaith2021/jjschool/tests"
)

func Test_admissionApi_submit(t *testing.T) {
	app := setup(t)
	year := time.Now().UTC().Year()

	body := marchallObj(t, testutil.NewAdmission("Ama", "Banda", "Ama@Test.mw"))
	req, rec := newRequest(http.MethodPost, "/api/submit-application", body)
	app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		echoapi.SubmitResponse
		Data admission.Admission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, fmt.Sprintf("APP%d0001", year), resp.ApplicationNumber)
	assert.Equal(t, resp.ApplicationNumber, resp.Data.ApplicationNumber)
	assert.Equal(t, admission.StatusPending, resp.Data.Status)
	assert.Equal(t, "ama@test.mw", resp.Data.ContactInfo.Email)

	sent := app.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "application_received", sent[0].TemplateName)

	t.Run("second application", func(t *testing.T) {
		body := marchallObj(t, testutil.NewAdmission("Kondwani", "Phiri", "kondwani@test.mw"))
		req, rec := newRequest(http.MethodPost, "/api/submit-application", body)
		app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp echoapi.SubmitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, fmt.Sprintf("APP%d0002", year), resp.ApplicationNumber)
	})
}

func Test_admissionApi_submit_validation(t *testing.T) {
	app := setup(t)

	t.Run("every failing field is reported", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/submit-application", []byte(`{"email": "not-an-email", "gender": "x"}`))
		app.serve(req, rec)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httpErr
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "validation failed", resp.Message)

		fields := make(map[string]string, len(resp.Errors))
		for _, fe := range resp.Errors {
			fields[fe.Field] = fe.Error
		}
		for _, f := range []string{"firstName", "lastName", "dateOfBirth", "gender", "email", "applyingFor", "guardianPhone", "reference"} {
			assert.Contains(t, fields, f)
		}
		assert.Equal(t, "this field is required", fields["firstName"])
	})

	t.Run("malformed JSON", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/submit-application", []byte(`{"firstName":`))
		app.serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	assert.Empty(t, app.mailSvc.SentMessages())
}

func Test_admissionApi_adminEndpoints(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.store.Users, "Admin", "admin", "admin@test.mw", "", user.RoleAdmin, true)
	student := testutil.CreateUser(t, app.store.Users, "Student", "student", "student@test.mw", "", user.RoleStudent, true)
	adminToken := app.getToken(t, admin)

	ama, err := app.admissionSvc.Submit(ctxBg(), testutil.NewAdmission("Ama", "Banda", "ama@test.mw"))
	require.NoError(t, err)
	_, err = app.admissionSvc.Submit(ctxBg(), testutil.NewAdmission("Kondwani", "Phiri", "kondwani@test.mw"))
	require.NoError(t, err)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/api/applications", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", path: "/api/applications", token: "nope", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "admin required", path: "/api/applications", token: app.getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "unknown application", path: "/api/applications/nope", token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: "application not found"})},
		{
			name: "invalid status", method: http.MethodPut, path: "/api/applications/" + ama.ID + "/status", token: adminToken,
			body: []byte(`{"status": "maybe"}`), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/applications?search=ama", adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var adms []admission.Admission
		resp := decode(t, rec, &adms)
		require.NotNil(t, resp.Count)
		assert.Equal(t, 1, *resp.Count)
		assert.Equal(t, ama.ID, adms[0].ID)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/applications/"+ama.ID, adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var adm admission.Admission
		decode(t, rec, &adm)
		assert.Equal(t, ama.ApplicationNumber, adm.ApplicationNumber)
	})

	t.Run("accept provisions a signup", func(t *testing.T) {
		body := []byte(`{"status": "accepted", "adminNotes": "welcome"}`)
		req, rec := newAuthRequest(http.MethodPut, "/api/applications/"+ama.ID+"/status", adminToken, body)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var adm admission.Admission
		decode(t, rec, &adm)
		assert.Equal(t, admission.StatusAccepted, adm.Status)
		assert.Equal(t, "admin", adm.ReviewedBy, "defaults to the acting admin")
		assert.NotNil(t, adm.ReviewedAt)

		signups, err := app.store.Signups.QuerySignups(ctxBg(), signup.QueryFilter{Status: signup.StatusPending})
		require.NoError(t, err)
		require.Len(t, signups, 1)
		assert.Equal(t, ama.ID, signups[0].ApplicationID)
	})

	t.Run("decided applications are final", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/applications/"+ama.ID+"/status", adminToken, []byte(`{"status": "rejected"}`))
		app.serve(req, rec)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/applications-stats", adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats admission.Stats
		decode(t, rec, &stats)
		assert.Equal(t, 2, stats.Total)
		counts := make(map[string]int)
		for _, sc := range stats.ByStatus {
			counts[sc.Status] = sc.Count
		}
		assert.Equal(t, 1, counts[admission.StatusAccepted])
		assert.Equal(t, 1, counts[admission.StatusPending])
	})
}
