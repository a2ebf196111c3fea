package inmemdb

import (
	"context"
	"sort"

	"github.com/mwalefaith2021/jjschool/core/signup"
)

type signupRepository struct {
	db *signupTable
}

var _ signup.Repository = (*signupRepository)(nil) // interface compliance check

func NewSignupRepository(db *DB) signup.Repository {
	return &signupRepository{db: db.signup}
}

func (repo *signupRepository) CreateSignup(_ context.Context, ps signup.PendingSignup) (signup.PendingSignup, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.db.table {
		if s.ApplicationID == ps.ApplicationID {
			return signup.PendingSignup{}, signup.ErrSignupExists
		}
	}
	ps.ID = newID()
	repo.db.table[ps.ID] = ps
	return ps, nil
}

func (repo *signupRepository) GetSignup(_ context.Context, filter signup.GetFilter) (signup.PendingSignup, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if ps, ok := repo.db.table[filter.ID]; ok {
			return ps, nil
		}
		return signup.PendingSignup{}, signup.ErrNotFound
	}
	for _, ps := range repo.db.table {
		if filter.ApplicationID != "" && ps.ApplicationID == filter.ApplicationID {
			return ps, nil
		}
	}
	return signup.PendingSignup{}, signup.ErrNotFound
}

func (repo *signupRepository) QuerySignups(_ context.Context, filter signup.QueryFilter) ([]signup.PendingSignup, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	signups := make([]signup.PendingSignup, 0)
	for _, ps := range repo.db.table {
		if filter.Status == "" || ps.Status == filter.Status {
			signups = append(signups, ps)
		}
	}
	sort.Slice(signups, func(i, j int) bool { return signups[i].CreatedAt.After(signups[j].CreatedAt) })
	return signups, nil
}

func (repo *signupRepository) UpdateSignupIf(_ context.Context, ps signup.PendingSignup, expectedStatus string) (signup.PendingSignup, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[ps.ID]
	if !ok || stored.Status != expectedStatus {
		return signup.PendingSignup{}, signup.ErrNotFound
	}
	repo.db.table[ps.ID] = ps
	return ps, nil
}
