package student

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("student not found")

type (
	// Repository is the directory storage. The finance engine treats it as
	// read-only; enrollment is managed elsewhere.
	Repository interface {
		GetStudent(ctx context.Context, id uuid.UUID) (Student, error)
		// QueryActiveResident returns the live overhead-eligible set.
		QueryActiveResident(ctx context.Context) ([]Student, error)
		// FilterStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Student.FullName or Student.Code.
		FilterStudents(ctx context.Context, filter QueryFilter) ([]Student, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetByID(ctx context.Context, id uuid.UUID) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) ActiveResidents(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryActiveResident(ctx)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Student, error) {
	return svc.repo.FilterStudents(ctx, filter)
}
