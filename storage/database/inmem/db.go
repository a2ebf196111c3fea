package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mwalefaith2021/jjschool/core/admission"
	"github.com/mwalefaith2021/jjschool/core/fee"
	"github.com/mwalefaith2021/jjschool/core/payment"
	"github.com/mwalefaith2021/jjschool/core/signup"
	"github.com/mwalefaith2021/jjschool/core/user"
)

type (
	// DB is a process-local store used in development and tests.
	// Each table guards its rows with its own lock; stored values are copies.
	DB struct {
		counters  *counterTable
		user      *userTable
		admission *admissionTable
		signup    *signupTable
		payment   *paymentTable
		fee       *feeTable
	}

	counterTable struct {
		sync.Mutex
		table map[string]int64
	}

	userTable struct {
		sync.RWMutex
		table map[string]user.User
	}

	admissionTable struct {
		sync.RWMutex
		table map[string]admission.Admission
	}

	signupTable struct {
		sync.RWMutex
		table map[string]signup.PendingSignup
	}

	paymentTable struct {
		sync.RWMutex
		table map[string]payment.Payment
	}

	feeTable struct {
		sync.RWMutex
		table map[string]fee.Fee
	}
)

func Open() *DB {
	return &DB{
		counters:  &counterTable{table: make(map[string]int64)},
		user:      &userTable{table: make(map[string]user.User)},
		admission: &admissionTable{table: make(map[string]admission.Admission)},
		signup:    &signupTable{table: make(map[string]signup.PendingSignup)},
		payment:   &paymentTable{table: make(map[string]payment.Payment)},
		fee:       &feeTable{table: make(map[string]fee.Fee)},
	}
}

func (db *DB) Ping(context.Context) error  { return nil }
func (db *DB) Close(context.Context) error { return nil }

func newID() string {
	return uuid.NewString()
}
