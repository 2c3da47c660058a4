package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/daruliman/pondok/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		students = append(students, *s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].FullName < students[j].FullName })
	return students
}

func (repo *studentRepository) GetStudent(_ context.Context, id uuid.UUID) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return *s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryActiveResident(_ context.Context) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	eligible := make([]student.Student, 0)
	for _, s := range repo.query() {
		if s.IsEligible() {
			eligible = append(eligible, s)
		}
	}
	return eligible, nil
}

func (repo *studentRepository) FilterStudents(_ context.Context, filter student.QueryFilter) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := repo.query()
	if filter.IsEmpty() {
		return students, nil
	}

	filtered := make([]student.Student, 0, len(students))
	search := strings.ToLower(filter.Search)
	for _, s := range students {
		if search != "" &&
			!strings.Contains(strings.ToLower(s.FullName), search) &&
			!strings.Contains(strings.ToLower(s.Code), search) {
			continue
		}
		if filter.Category != "" && s.Category != filter.Category {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered, nil
}
