package inmemdb

import (
	"context"
	"sort"

	"github.com/mwalefaith2021/jjschool/core/admission"
)

type admissionRepository struct {
	db       *admissionTable
	counters *counterTable
}

var _ admission.Repository = (*admissionRepository)(nil) // interface compliance check

func NewAdmissionRepository(db *DB) admission.Repository {
	return &admissionRepository{db: db.admission, counters: db.counters}
}

func (repo *admissionRepository) NextSequence(_ context.Context, key string) (int64, error) {
	repo.counters.Lock()
	defer repo.counters.Unlock()

	repo.counters.table[key]++
	return repo.counters.table[key], nil
}

func (repo *admissionRepository) CreateAdmission(_ context.Context, adm admission.Admission) (admission.Admission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.table {
		if a.ApplicationNumber == adm.ApplicationNumber {
			return admission.Admission{}, admission.ErrDuplicateNumber
		}
	}
	adm.ID = newID()
	repo.db.table[adm.ID] = adm
	return adm, nil
}

func (repo *admissionRepository) GetAdmission(_ context.Context, id string) (admission.Admission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if adm, ok := repo.db.table[id]; ok {
		return adm, nil
	}
	return admission.Admission{}, admission.ErrNotFound
}

func (repo *admissionRepository) QueryAdmissions(_ context.Context, filter admission.QueryFilter) ([]admission.Admission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	adms := make([]admission.Admission, 0)
	for _, adm := range repo.db.table {
		if filter.Matches(adm) {
			adms = append(adms, adm)
		}
	}
	sort.Slice(adms, func(i, j int) bool { return adms[i].DateSubmitted.After(adms[j].DateSubmitted) })
	return adms, nil
}

func (repo *admissionRepository) UpdateAdmissionIf(_ context.Context, adm admission.Admission, expectedStatus string) (admission.Admission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[adm.ID]
	if !ok {
		return admission.Admission{}, admission.ErrNotFound
	}
	if stored.Status != expectedStatus {
		return admission.Admission{}, admission.ErrStatusConflict
	}
	repo.db.table[adm.ID] = adm
	return adm, nil
}

func (repo *admissionRepository) CountByStatus(context.Context) ([]admission.StatusCount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, adm := range repo.db.table {
		counts[adm.Status]++
	}
	res := make([]admission.StatusCount, 0, len(counts))
	for status, count := range counts {
		res = append(res, admission.StatusCount{Status: status, Count: count})
	}
	return res, nil
}
