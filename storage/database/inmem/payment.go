package inmemdb

import (
	"context"
	"sort"

	"github.com/mwalefaith2021/jjschool/core/payment"
)

type paymentRepository struct {
	db *paymentTable
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db.payment}
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p.ID = newID()
	repo.db.table[p.ID] = p
	return p, nil
}

func (repo *paymentRepository) GetPayment(_ context.Context, id string) (payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return p, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(_ context.Context, filter payment.QueryFilter) ([]payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	payments := make([]payment.Payment, 0)
	for _, p := range repo.db.table {
		if filter.Matches(p) {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })
	return payments, nil
}

func (repo *paymentRepository) UpdatePaymentIf(_ context.Context, p payment.Payment, expectedStatus string) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[p.ID]
	if !ok || stored.Status != expectedStatus {
		return payment.Payment{}, payment.ErrNotFound
	}
	repo.db.table[p.ID] = p
	return p, nil
}

func (repo *paymentRepository) TotalsByStatus(_ context.Context, studentID string) ([]payment.StatusTotal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	totals := make(map[string]payment.StatusTotal)
	for _, p := range repo.db.table {
		if studentID != "" && p.StudentID != studentID {
			continue
		}
		t := totals[p.Status]
		t.Status = p.Status
		t.Count++
		t.Amount += p.Amount
		totals[p.Status] = t
	}
	res := make([]payment.StatusTotal, 0, len(totals))
	for _, t := range totals {
		res = append(res, t)
	}
	return res, nil
}
