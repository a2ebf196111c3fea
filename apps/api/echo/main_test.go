package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	echoapi "github.com/mwalefaith2021/jjschool/apps/api/echo"
	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/fee"
	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/signup"
	"github.com/mwalefaith2021/jjschool/core/user"
	emailsvc "github.com/mwalefaith2021/jjschool/services/email"
	metricsvc "github.com/mwalefaith2021/jjschool/services/metrics"
	"github.com/mwalefaith2021/jjschool/storage/database"
	testutil "github.com/mwalefaith2021/jjschool/tests"
)

var (
	errMissingToken  = httpErr{Message: "missing or malformed token"}
	errInvalidToken  = httpErr{Message: "invalid or expired token"}
	errForbidden     = httpErr{Message: "permission denied"}
	errPasswordReset = httpErr{Message: "password reset required"}
	errDeactivated   = httpErr{Message: "account deactivated"}
)

type testApp struct {
	conf    *core.Config
	store   *database.Store
	mailSvc *emailsvc.Service
	metrics *metricsvc.Metrics
	server  *echoapi.Server

	admissionSvc *admission.Service
	paymentSvc   *payment.Service
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.NewConfig()
	store := database.NewMemoryStore()
	validate, translator := testutil.NewValidator()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	metrics := metricsvc.New()

	usrSvc := user.NewService(store.Users, mailSvc, conf)
	signupSvc := signup.NewService(store.Signups, store.Admissions, usrSvc, mailSvc, conf)
	admissionSvc := admission.NewService(store.Admissions, signupSvc, mailSvc, conf)
	paymentSvc := payment.NewService(store.Payments, usrSvc, mailSvc)
	feeSvc := fee.NewService(store.Fees, usrSvc)

	server := echoapi.NewServer(echoapi.Deps{
		Conf:         conf,
		Logger:       testutil.NewLogger(conf),
		Validate:     validate,
		Translator:   translator,
		Store:        store,
		UserSvc:      usrSvc,
		AdmissionSvc: admissionSvc,
		SignupSvc:    signupSvc,
		PaymentSvc:   paymentSvc,
		FeeSvc:       feeSvc,
		MailSvc:      mailSvc,
		Deliveries:   mailSvc,
		Metrics:      metrics,
	})

	return &testApp{
		conf:         conf,
		store:        store,
		mailSvc:      mailSvc,
		metrics:      metrics,
		server:       server,
		admissionSvc: admissionSvc,
		paymentSvc:   paymentSvc,
	}
}

func ctxBg() context.Context {
	return context.Background()
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	app.server.ServeHTTP(rec, req)
}

type httpErr struct {
	Message string            `json:"message"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
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

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// decode unmarshals the `data` field of an envelope into dst.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) echoapi.Response {
	t.Helper()
	var raw struct {
		echoapi.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(raw.Data, dst), rec.Body.String())
	}
	return raw.Response
}

// mailValue extracts the value following "label: " in the text body of msg.
func mailValue(t *testing.T, msg core.EmailMessage, label string) string {
	t.Helper()
	m := regexp.MustCompile(regexp.QuoteMeta(label) + `: (\S+)`).FindStringSubmatch(msg.TextContent)
	require.Len(t, m, 2, "%q not found in %q", label, msg.TextContent)
	return m[1]
}

// lastMail returns the most recent message sent to addr.
func (app *testApp) lastMail(t *testing.T, addr string) core.EmailMessage {
	t.Helper()
	sent := app.mailSvc.SentMessages()
	for i := len(sent) - 1; i >= 0; i-- {
		for _, to := range sent[i].To {
			if to.Address == addr {
				return sent[i]
			}
		}
	}
	t.Fatalf("no email sent to %s", addr)
	return core.EmailMessage{}
}
