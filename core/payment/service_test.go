package payment_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/user"
	emailsvc "github.com/mwalefaith2021/jjschool/services/email"
	inmemdb "github.com/mwalefaith2021/jjschool/storage/database/inmem"
	testutil "github.com/mwalefaith2021/jjschool/tests"
)

func setup(t *testing.T) (*payment.Service, user.Repository, *emailsvc.Service) {
	t.Helper()
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	users := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(users, mailSvc, conf)
	return payment.NewService(inmemdb.NewPaymentRepository(db), usrSvc, mailSvc), users, mailSvc
}

func newPayment(studentID string, amount float64, ref string) payment.NewPayment {
	return payment.NewPayment{StudentID: studentID, Amount: amount, Type: "tuition", Method: "airtel_money", Reference: ref}
}

func TestNewPayment_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		data    payment.NewPayment
		wantErr bool
	}{
		{name: "valid", data: newPayment("abc", 150000, "TX-1")},
		{name: "zero amount", data: newPayment("abc", 0, "TX-1"), wantErr: true},
		{name: "negative amount", data: newPayment("abc", -5, "TX-1"), wantErr: true},
		{name: "blank reference", data: newPayment("abc", 10, "   "), wantErr: true},
		{name: "blank student", data: newPayment("", 10, "TX-1"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := setup(t)
	ama := testutil.CreateUser(t, users, "Ama Banda", "ama.banda", "ama@test.mw", "", user.RoleStudent, true)
	admin := testutil.CreateUser(t, users, "Admin", "admin", "admin@test.mw", "", user.RoleAdmin, true)
	gone := testutil.CreateUser(t, users, "Gone Student", "gone", "gone@test.mw", "", user.RoleStudent, false)

	p, err := svc.Submit(ctx, newPayment(ama.ID, 150000, "TX-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, payment.StatusPending, p.Status)
	assert.Nil(t, p.ReviewedAt)

	_, err = svc.Submit(ctx, newPayment(admin.ID, 10, "TX-2"))
	assert.True(t, core.IsNotFound(err), "admins are not students")

	_, err = svc.Submit(ctx, newPayment("nope", 10, "TX-3"))
	assert.True(t, core.IsNotFound(err))

	_, err = svc.Submit(ctx, newPayment(gone.ID, 10, "TX-4"))
	assert.Equal(t, user.ErrStudentNotFound, errors.Cause(err), "deactivated students cannot pay")

	payments, err := svc.Query(ctx, payment.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status string
		label  string
	}{
		{name: "confirm", status: payment.StatusConfirmed, label: "Confirmed"},
		{name: "reject", status: payment.StatusRejected, label: "Rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, mailSvc := setup(t)
			ama := testutil.CreateUser(t, users, "Ama Banda", "ama.banda", "ama@test.mw", "", user.RoleStudent, true)
			p, err := svc.Submit(ctx, newPayment(ama.ID, 150000, "TX-1"))
			require.NoError(t, err)

			got, err := svc.UpdateStatus(ctx, p.ID, payment.UpdateStatus{Status: tt.status})
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			require.NotNil(t, got.ReviewedAt)

			sent := mailSvc.SentMessages()
			require.Len(t, sent, 1)
			assert.Equal(t, "payment_status", sent[0].TemplateName)
			assert.Equal(t, "Payment "+tt.label+" - TX-1", sent[0].Subject)
			assert.Contains(t, sent[0].TextContent, "150000.00")

			_, err = svc.UpdateStatus(ctx, p.ID, payment.UpdateStatus{Status: payment.StatusConfirmed})
			assert.Equal(t, payment.ErrAlreadyDecided, errors.Cause(err))
			assert.True(t, core.IsConflict(err))
			assert.Len(t, mailSvc.SentMessages(), 1)
		})
	}

	t.Run("unknown payment", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.UpdateStatus(ctx, "nope", payment.UpdateStatus{Status: payment.StatusConfirmed})
		assert.True(t, core.IsNotFound(err))
	})
}

func TestUpdateStatus_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	us := payment.UpdateStatus{Status: " Confirmed "}
	require.NoError(t, us.Validate(validate))
	assert.Equal(t, payment.StatusConfirmed, us.Status)

	us = payment.UpdateStatus{Status: payment.StatusPending}
	assert.Error(t, us.Validate(validate), "pending is not a decision")
}

func TestService_QueryAndTotals(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := setup(t)
	ama := testutil.CreateUser(t, users, "Ama Banda", "ama.banda", "ama@test.mw", "", user.RoleStudent, true)
	kondwani := testutil.CreateUser(t, users, "Kondwani Phiri", "kondwani.phiri", "kondwani@test.mw", "", user.RoleStudent, true)

	p1, err := svc.Submit(ctx, newPayment(ama.ID, 100, "TX-1"))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, newPayment(ama.ID, 50, "TX-2"))
	require.NoError(t, err)
	p3, err := svc.Submit(ctx, newPayment(kondwani.ID, 30, "TX-3"))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, p1.ID, payment.UpdateStatus{Status: payment.StatusConfirmed})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, p3.ID, payment.UpdateStatus{Status: payment.StatusRejected})
	require.NoError(t, err)

	queries := []struct {
		name   string
		filter payment.QueryFilter
		want   int
	}{
		{name: "all", want: 3},
		{name: "by student", filter: payment.QueryFilter{StudentID: ama.ID}, want: 2},
		{name: "by status", filter: payment.QueryFilter{Status: payment.StatusPending}, want: 1},
		{name: "by student and status", filter: payment.QueryFilter{StudentID: kondwani.ID, Status: payment.StatusConfirmed}, want: 0},
	}
	for _, tt := range queries {
		t.Run(tt.name, func(t *testing.T) {
			payments, err := svc.Query(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, payments, tt.want)
		})
	}

	t.Run("totals", func(t *testing.T) {
		totals, err := svc.Totals(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 3, totals.Count)
		assert.InDelta(t, 180, totals.Amount, 0.001)
		require.Len(t, totals.ByStatus, len(payment.AllStatuses))
		assert.InDelta(t, 100, totals.Get(payment.StatusConfirmed).Amount, 0.001)
		assert.Equal(t, 1, totals.Get(payment.StatusRejected).Count)

		mine, err := svc.Totals(ctx, ama.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, mine.Count)
		assert.InDelta(t, 50, mine.Get(payment.StatusPending).Amount, 0.001)
		assert.Zero(t, mine.Get(payment.StatusRejected).Count)
	})
}
