package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/user"
	testutil "github.com/mwalefaith2021/jjschool/tests"
)

func Test_studentApi(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.store.Users, "Admin", "admin", "admin@test.mw", "", user.RoleAdmin, true)
	ama := testutil.CreateUser(t, app.store.Users, "Ama Banda", "ama.banda", "ama@test.mw", "", user.RoleStudent, true)
	kofi := testutil.CreateUser(t, app.store.Users, "Kofi Mensah", "kofi", "kofi@test.mw", "", user.RoleStudent, true)
	testutil.CreateUser(t, app.store.Users, "Old Timer", "old", "old@test.mw", "", user.RoleStudent, false, time.Now().AddDate(-1, 0, 0))
	adminToken := app.getToken(t, admin)
	amaToken := app.getToken(t, ama)

	runHTTPTests(t, app, []httpTest{
		{name: "list requires admin", path: "/api/students", token: amaToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "other student", path: "/api/students/" + kofi.ID, token: amaToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "other student payments", path: "/api/students/" + kofi.ID + "/payments", token: amaToken, wantCode: http.StatusForbidden},
		{name: "self", path: "/api/students/" + ama.ID, token: amaToken, wantCode: http.StatusOK},
		{name: "admin reads any", path: "/api/students/" + kofi.ID, token: adminToken, wantCode: http.StatusOK},
		{name: "admin is not a student", path: "/api/students/" + admin.ID, token: adminToken, wantCode: http.StatusNotFound},
		{name: "no application on file", path: "/api/students/" + ama.ID + "/application", token: amaToken, wantCode: http.StatusNotFound},
		{name: "students cannot deactivate", method: http.MethodDelete, path: "/api/students/" + ama.ID, token: amaToken, wantCode: http.StatusForbidden},
		{name: "bad isActive", path: "/api/students?isActive=maybe", token: adminToken, wantCode: http.StatusBadRequest},
	})

	t.Run("list", func(t *testing.T) {
		tests := []struct {
			query string
			want  int
		}{
			{query: "", want: 2},
			{query: "?isActive=false", want: 1},
			{query: "?search=banda", want: 1},
			{query: "?search=TEST.MW", want: 2},
		}
		for _, tt := range tests {
			req, rec := newAuthRequest(http.MethodGet, "/api/students"+tt.query, adminToken)
			app.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var students []user.User
			resp := decode(t, rec, &students)
			assert.Equal(t, tt.want, *resp.Count, tt.query)
			assert.Len(t, students, tt.want, tt.query)
		}
	})

	t.Run("update self", func(t *testing.T) {
		body := []byte(`{"fullName": "  Ama K. Banda ", "email": "AMA.B@test.mw"}`)
		req, rec := newAuthRequest(http.MethodPut, "/api/students/"+ama.ID, amaToken, body)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "Ama K. Banda", usr.FullName)
		assert.Equal(t, "ama.b@test.mw", usr.Email)
		assert.Equal(t, "ama.banda", usr.Username)
	})

	t.Run("email taken", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/students/"+ama.ID, amaToken, []byte(`{"email": "kofi@test.mw"}`))
		app.serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("payments", func(t *testing.T) {
		for _, amount := range []float64{100, 50} {
			_, err := app.paymentSvc.Submit(ctxBg(), payment.NewPayment{StudentID: ama.ID, Amount: amount, Type: "tuition", Method: "bank", Reference: "REF"})
			require.NoError(t, err)
		}
		_, err := app.paymentSvc.Submit(ctxBg(), payment.NewPayment{StudentID: kofi.ID, Amount: 10, Type: "tuition", Method: "bank", Reference: "REF"})
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodGet, "/api/students/"+ama.ID+"/payments", amaToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var got struct {
			Payments []payment.Payment `json:"payments"`
			Totals   payment.Totals    `json:"totals"`
		}
		resp := decode(t, rec, &got)
		assert.Equal(t, 2, *resp.Count)
		assert.Len(t, got.Payments, 2)
		assert.Equal(t, 2, got.Totals.Count)
		assert.Equal(t, 150.0, got.Totals.Amount)
	})

	t.Run("stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/students-stats", adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats struct {
			Total        int            `json:"total"`
			NewThisMonth int            `json:"newThisMonth"`
			Payments     payment.Totals `json:"payments"`
		}
		decode(t, rec, &stats)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 2, stats.NewThisMonth)
		assert.Equal(t, 3, stats.Payments.Count)
		assert.Equal(t, 3, stats.Payments.Get(payment.StatusPending).Count)
	})

	t.Run("deactivate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/students/"+kofi.ID, adminToken)
		app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var usr user.User
		decode(t, rec, &usr)
		assert.False(t, usr.IsActive)

		// the token outlives the account
		req, rec = newAuthRequest(http.MethodGet, "/api/students/"+kofi.ID, app.getToken(t, kofi))
		app.serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
