package emailsvc

import (
	"context"
	"net/mail"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwalefaith2021/jjschool/core"
)

type flakyTransport struct {
	mu      sync.Mutex
	fails   int
	failErr error
	calls   int
	sent    []core.EmailMessage
}

func (t *flakyTransport) Name() string { return "flaky" }

func (t *flakyTransport) Send(_ context.Context, msg core.EmailMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.calls <= t.fails {
		return t.failErr
	}
	t.sent = append(t.sent, msg)
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	statuses map[string]int
}

func (o *countingObserver) EmailDelivered(status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.statuses == nil {
		o.statuses = make(map[string]int)
	}
	o.statuses[status]++
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "J & J Secondary School",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: "J & J Secondary School <noreply@jjschool.local>",
		TestMode:         true,
		Email:            core.EmailConfig{Backend: BackendConsole, MaxAttempts: 3, LogSize: 10},
	}
}

func plainMessage(to, subject string) *core.EmailMessage {
	return &core.EmailMessage{To: []mail.Address{{Address: to}}, Subject: subject, BodyStr: "hello"}
}

func TestService_SendMessages(t *testing.T) {
	tests := []struct {
		name         string
		fails        int
		failErr      error
		wantStatus   string
		wantAttempts int
		wantCalls    int
	}{
		{name: "first attempt", wantStatus: core.DeliverySent, wantAttempts: 1, wantCalls: 1},
		{name: "retried", fails: 2, failErr: errors.New("timeout"), wantStatus: core.DeliverySent, wantAttempts: 3, wantCalls: 3},
		{name: "exhausted", fails: 5, failErr: errors.New("timeout"), wantStatus: core.DeliveryFailed, wantAttempts: 3, wantCalls: 3},
		{name: "permanent", fails: 5, failErr: Permanent(errors.New("bad credentials")), wantStatus: core.DeliveryFailed, wantAttempts: 1, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &flakyTransport{fails: tt.fails, failErr: tt.failErr}
			obs := new(countingObserver)
			svc := newService(testConfig(), nil, tr, obs)

			svc.SendMessages(plainMessage("ama@test.mw", "Hi"))
			svc.Wait()

			deliveries := svc.Deliveries(0)
			require.Len(t, deliveries, 1)
			assert.Equal(t, tt.wantStatus, deliveries[0].Status)
			assert.Equal(t, tt.wantAttempts, deliveries[0].Attempts)
			assert.Equal(t, []string{"ama@test.mw"}, deliveries[0].To)
			assert.Equal(t, tt.wantCalls, tr.calls)
			assert.Equal(t, 1, obs.statuses[tt.wantStatus])
			if tt.wantStatus == core.DeliveryFailed {
				assert.NotEmpty(t, deliveries[0].LastError)
			}
		})
	}
}

func TestService_SendMessages_skipped(t *testing.T) {
	tr := new(flakyTransport)
	svc := newService(testConfig(), nil, tr, nil)

	svc.SendMessages(&core.EmailMessage{Subject: "nobody", BodyStr: "hello"}, nil)
	svc.Wait()

	deliveries := svc.Deliveries(0)
	require.Len(t, deliveries, 1)
	assert.Equal(t, core.DeliverySkipped, deliveries[0].Status)
	assert.Zero(t, tr.calls)
}

func TestService_SendMessages_unknownTemplate(t *testing.T) {
	svc := NewConsoleServiceMock(testConfig())
	svc.SendMessages(core.NewEmailMessage(mail.Address{Address: "ama@test.mw"}, "Hi", "does_not_exist", nil))

	deliveries := svc.Deliveries(0)
	require.Len(t, deliveries, 1)
	assert.Equal(t, core.DeliveryFailed, deliveries[0].Status)
	assert.Contains(t, deliveries[0].LastError, "does_not_exist")
	assert.Empty(t, svc.SentMessages())
}

func TestNewConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(testConfig())
	assert.Equal(t, BackendConsole, svc.Backend())

	svc.SendMessages(
		plainMessage("ama@test.mw", "first"),
		plainMessage("kondwani@test.mw", "second"),
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "first", sent[0].Subject)
	assert.Equal(t, "hello", sent[1].TextContent)

	deliveries := svc.Deliveries(1)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "second", deliveries[0].Subject)
}

func TestNewService(t *testing.T) {
	conf := testConfig()
	for _, backend := range []string{BackendConsole, BackendSMTP, BackendSendgrid} {
		conf.Email.Backend = backend
		svc, err := NewService(conf, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, backend, svc.Backend())
	}

	conf.Email.Backend = "pigeon"
	_, err := NewService(conf, nil, nil)
	assert.Error(t, err)
}

func TestUnconfiguredTransportsArePermanent(t *testing.T) {
	conf := testConfig()
	msg := *plainMessage("ama@test.mw", "Hi")
	msg.TextContent = "hello"

	assert.True(t, isPermanent(newSMTPTransport(conf).Send(context.Background(), msg)))
	assert.True(t, isPermanent(newSendgridTransport(conf).Send(context.Background(), msg)))
}

func TestTracker_Deliveries(t *testing.T) {
	tr := newTracker(3)
	ids := make([]string, 0, 5)
	for _, subj := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, tr.queue(plainMessage("ama@test.mw", subj)))
	}

	got := tr.Deliveries(0)
	require.Len(t, got, 3)
	subjects := make([]string, 0, len(got))
	for _, d := range got {
		subjects = append(subjects, d.Subject)
	}
	assert.Equal(t, "e,d,c", strings.Join(subjects, ","))

	tr.update(ids[0], core.DeliverySent, 1, nil) // evicted
	tr.update(ids[4], core.DeliveryFailed, 2, errors.New("boom"))
	got = tr.Deliveries(1)
	require.Len(t, got, 1)
	assert.Equal(t, core.DeliveryFailed, got[0].Status)
	assert.Equal(t, "boom", got[0].LastError)
}

func TestBuildMIME(t *testing.T) {
	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Ama Banda", Address: "ama@test.mw"}},
		Bcc:         []mail.Address{{Address: "secret@test.mw"}},
		TextContent: "plain body",
		HTMLContent: "<p>html body</p>",
	}
	body, err := buildMIME(mail.Address{Address: "noreply@jjschool.local"}, "Admission Update", msg)
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, "From: <noreply@jjschool.local>\r\n")
	assert.Contains(t, s, `To: "Ama Banda" <ama@test.mw>`)
	assert.Contains(t, s, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, s, "plain body")
	assert.Contains(t, s, "<p>html body</p>")
	assert.NotContains(t, s, "secret@test.mw")
}
