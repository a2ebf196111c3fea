package inmemdb

import (
	"context"
	"sort"

	"github.com/mwalefaith2021/jjschool/core/fee"
)

type feeRepository struct {
	db *feeTable
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db.fee}
}

func (repo *feeRepository) CreateFee(_ context.Context, f fee.Fee) (fee.Fee, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	f.ID = newID()
	repo.db.table[f.ID] = f
	return f, nil
}

func (repo *feeRepository) GetFee(_ context.Context, id string) (fee.Fee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f, ok := repo.db.table[id]; ok {
		return f, nil
	}
	return fee.Fee{}, fee.ErrNotFound
}

func (repo *feeRepository) QueryFees(_ context.Context, filter fee.QueryFilter) ([]fee.Fee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	fees := make([]fee.Fee, 0)
	for _, f := range repo.db.table {
		if filter.Matches(f) {
			fees = append(fees, f)
		}
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i].DueDate.After(fees[j].DueDate) })
	return fees, nil
}

func (repo *feeRepository) UpdateFeeIf(_ context.Context, f fee.Fee, expectedVersion int) (fee.Fee, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[f.ID]
	if !ok || stored.Version != expectedVersion {
		return fee.Fee{}, fee.ErrNotFound
	}
	f.Version = expectedVersion + 1
	repo.db.table[f.ID] = f
	return f, nil
}

func (repo *feeRepository) TotalsByStatus(context.Context) ([]fee.StatusTotal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	totals := make(map[string]fee.StatusTotal)
	for _, f := range repo.db.table {
		t := totals[f.Status]
		t.Status = f.Status
		t.Count++
		t.TotalAmount += f.Amount
		t.PaidAmount += f.PaidAmount
		totals[f.Status] = t
	}
	res := make([]fee.StatusTotal, 0, len(totals))
	for _, t := range totals {
		res = append(res, t)
	}
	return res, nil
}
